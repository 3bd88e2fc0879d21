package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aussiebroadwan/taskdeck/internal/auth/domain"
	"github.com/aussiebroadwan/taskdeck/internal/auth/metrics"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store"
	"github.com/aussiebroadwan/taskdeck/pkg/cryptox"
	"github.com/aussiebroadwan/taskdeck/pkg/idx"
	"github.com/aussiebroadwan/taskdeck/pkg/jwtx"
	"github.com/aussiebroadwan/taskdeck/pkg/slogx"
)

const (
	MaxPasswordLength = 128
	MaxUsernameLength = 64
)

// PasswordHasher turns plaintext into a stored digest and back.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// TokenCodec mints and checks the session tokens.
type TokenCodec interface {
	jwtx.Signer
	VerifyRefresh(token string) (jwtx.Claims, error)
	Issuer() string
	Audience() string
	Now() time.Time
}

// SessionService runs the session lifecycle. A user has at most one live
// refresh token id; issuing a new one supersedes the last.
type SessionService struct {
	Users           store.Users
	RefreshTokenIDs store.RefreshTokenIDs
	Hasher          PasswordHasher
	Codec           TokenCodec
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	Metrics         *metrics.Metrics

	// NewRefreshTokenID defaults to a random UUIDv4.
	NewRefreshTokenID func() string

	dummyOnce   sync.Once
	dummyDigest string
}

// SignUp creates the account and opens its first session.
func (s *SessionService) SignUp(ctx context.Context, email, password, username string) (sess domain.Session, err error) {
	defer s.observe("sign_up", time.Now(), &err)

	email, err = normaliseEmail(email)
	if err != nil {
		return domain.Session{}, err
	}
	username = strings.TrimSpace(username)
	if err := validatePassword(password); err != nil {
		return domain.Session{}, err
	}
	if len(username) > MaxUsernameLength {
		return domain.Session{}, fmt.Errorf("%w: username too long", ErrInvalidRequest)
	}

	digest, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.Session{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: digest,
		TaskView:     domain.DefaultTaskView,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Session{}, ErrCredentialConflict
		}
		return domain.Session{}, storeErr(err)
	}

	slogx.FromContext(ctx).Info("user signed up", "user_id", user.ID)
	return s.GenerateTokens(ctx, user)
}

// SignIn checks the credentials and opens a fresh session, silently ending
// any earlier one. Unknown email and wrong password are indistinguishable.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (sess domain.Session, err error) {
	defer s.observe("sign_in", time.Now(), &err)
	log := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.Users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Burn the same time a real verification would.
		s.Hasher.Verify(password, s.dummy())
		log.Info("sign in failed", "reason", "unknown_email")
		return domain.Session{}, ErrInvalidCredentials
	case err != nil:
		return domain.Session{}, storeErr(err)
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		log.Info("sign in failed", "reason", "password_mismatch", "user_id", user.ID)
		return domain.Session{}, ErrInvalidCredentials
	}

	return s.GenerateTokens(ctx, user)
}

// GenerateTokens mints a new refresh token id, signs both tokens in
// parallel and records the id as the user's only valid one.
func (s *SessionService) GenerateTokens(ctx context.Context, user domain.User) (domain.Session, error) {
	refreshTokenID := s.newRefreshTokenID()
	now := s.Codec.Now()

	var (
		pair domain.TokenPair
		g    errgroup.Group
	)
	g.Go(func() error {
		var err error
		pair.AccessToken, err = s.Codec.Sign(jwtx.NewAccessClaims(
			user.ID, user.Email, s.AccessTTL, s.Codec.Issuer(), s.Codec.Audience(), now))
		return err
	})
	g.Go(func() error {
		var err error
		pair.RefreshToken, err = s.Codec.Sign(jwtx.NewRefreshClaims(
			user.ID, refreshTokenID, s.RefreshTTL, s.Codec.Issuer(), s.Codec.Audience(), now))
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Session{}, fmt.Errorf("sign tokens: %w", err)
	}

	if err := s.RefreshTokenIDs.Insert(ctx, user.ID, refreshTokenID, s.RefreshTTL); err != nil {
		return domain.Session{}, storeErr(err)
	}

	pair.ExpiresIn = s.AccessTTL
	return domain.Session{TokenPair: pair, User: user}, nil
}

// RefreshTokens exchanges a refresh token for a new pair. The presented id is
// consumed atomically, so of several concurrent exchanges of one token at
// most one wins. A token whose id is already gone is treated as replay.
func (s *SessionService) RefreshTokens(ctx context.Context, refreshToken string) (sess domain.Session, err error) {
	defer s.observe("refresh", time.Now(), &err)
	log := slogx.FromContext(ctx)

	claims, err := s.Codec.VerifyRefresh(refreshToken)
	if err != nil {
		s.Metrics.TokenRejected(jwtx.Kind(err))
		log.Warn("refresh token rejected", "kind", jwtx.Kind(err), "err", err)
		return domain.Session{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	user, err := s.Users.GetUserByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warn("refresh token for unknown user", "user_id", claims.Subject)
		return domain.Session{}, ErrUnauthorized
	case err != nil:
		return domain.Session{}, storeErr(err)
	}

	consumed, err := s.RefreshTokenIDs.Consume(ctx, user.ID, claims.RefreshTokenID)
	if err != nil {
		return domain.Session{}, storeErr(err)
	}
	if !consumed {
		s.Metrics.RefreshReuseDetected()
		log.Error("refresh token reuse detected",
			slog.String("user_id", user.ID),
			slog.String("refresh_token_fp", cryptox.FingerprintToken(claims.RefreshTokenID)),
			slog.String("jti", claims.ID),
		)
		return domain.Session{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrInvalidatedRefreshToken)
	}

	return s.GenerateTokens(ctx, user)
}

// Logout ends the user's session. Logging out twice is fine.
func (s *SessionService) Logout(ctx context.Context, userID string) (err error) {
	defer s.observe("logout", time.Now(), &err)

	if err := s.RefreshTokenIDs.Invalidate(ctx, userID); err != nil {
		return storeErr(err)
	}
	slogx.FromContext(ctx).Info("user logged out", "user_id", userID)
	return nil
}

func (s *SessionService) newRefreshTokenID() string {
	if s.NewRefreshTokenID != nil {
		return s.NewRefreshTokenID()
	}
	return uuid.NewString()
}

// dummy is a real digest of a throwaway password, so that failed lookups pay
// the full verification cost.
func (s *SessionService) dummy() string {
	s.dummyOnce.Do(func() {
		d, err := s.Hasher.Hash("taskdeck-timing-equaliser")
		if err == nil {
			s.dummyDigest = d
		}
	})
	return s.dummyDigest
}

func (s *SessionService) observe(op string, start time.Time, errp *error) {
	if s.Metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	switch err := *errp; {
	case err == nil:
	case errors.Is(err, ErrStoreUnavailable):
		outcome = metrics.OutcomeUnavailable
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrCredentialConflict),
		errors.Is(err, ErrInvalidRequest):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}
	s.Metrics.ObserveOp(op, outcome, time.Since(start))
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func normaliseEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidRequest)
	}
	return email, nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidRequest)
	case len(password) > MaxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d characters", ErrInvalidRequest, MaxPasswordLength)
	}
	return nil
}
