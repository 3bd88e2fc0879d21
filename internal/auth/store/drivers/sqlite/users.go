package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taskdeck/internal/auth/domain"
)

const userColumns = `id, email, username, password_hash, task_view, created_at, updated_at`

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`

const createUser = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

type usersRepo struct {
	db *sql.DB
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, getUserByID, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, getUserByEmail, email)
}

func (r *usersRepo) getOne(ctx context.Context, query string, arg string) (domain.User, error) {
	var row userRow
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&row.ID,
		&row.Email,
		&row.Username,
		&row.PasswordHash,
		&row.TaskView,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	if u.TaskView == "" {
		u.TaskView = domain.DefaultTaskView
	}

	_, err := r.db.ExecContext(ctx, createUser,
		u.ID,
		u.Email,
		mapStringNull(u.Username),
		u.PasswordHash,
		u.TaskView,
		u.CreatedAt,
		u.UpdatedAt,
	)
	return mapUniqueViolation(err)
}
