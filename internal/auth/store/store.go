package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/taskdeck/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrUnavailable wraps any failure to reach a backend. Callers must fail
	// closed on it.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the credential database. Concrete drivers (sqlite, postgres)
// implement it.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Close releases the underlying connection pool.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during sign-in. Email matching is exact; callers
	// normalise before storing and looking up.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID). A
	// duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error
}

// RefreshTokenIDs maps a user id to the one refresh token id that may still
// be exchanged. Operations on a single user are linearizable.
type RefreshTokenIDs interface {
	// Insert overwrites whatever id the user had. The record expires after ttl.
	Insert(ctx context.Context, userID, refreshTokenID string, ttl time.Duration) error

	// Validate reports whether refreshTokenID is the user's current id.
	Validate(ctx context.Context, userID, refreshTokenID string) (bool, error)

	// Invalidate removes the user's record. Removing nothing is not an error.
	Invalidate(ctx context.Context, userID string) error

	// Consume atomically deletes the user's record if it holds refreshTokenID
	// and reports whether it did. Of any number of concurrent callers with the
	// same id at most one sees true.
	Consume(ctx context.Context, userID, refreshTokenID string) (bool, error)

	Ping(ctx context.Context) error
}
