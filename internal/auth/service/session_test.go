package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskdeck/internal/auth/domain"
	"github.com/aussiebroadwan/taskdeck/internal/auth/metrics"
	"github.com/aussiebroadwan/taskdeck/internal/auth/service"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/taskdeck/pkg/cryptox"
	"github.com/aussiebroadwan/taskdeck/pkg/jwtx"
)

const (
	testEmail    = "a@x.com"
	testPassword = "p1-correct-horse"
)

// countingHasher records how often Verify ran so timing equalisation can be
// asserted without measuring time.
type countingHasher struct {
	*cryptox.Argon2id
	verifies atomic.Int32
}

func (h *countingHasher) Verify(password, digest string) bool {
	h.verifies.Add(1)
	return h.Argon2id.Verify(password, digest)
}

type harness struct {
	svc     *service.SessionService
	codec   *jwtx.HS256Codec
	rts     *memory.RefreshTokenIDs
	hasher  *countingHasher
	metrics *metrics.Metrics

	mu  sync.Mutex
	now time.Time
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	h := &harness{
		rts:     memory.NewRefreshTokenIDs(),
		metrics: metrics.New(),
		hasher: &countingHasher{Argon2id: &cryptox.Argon2id{
			Params: cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16},
			Pepper: "pepper",
		}},
		now: time.Now().Truncate(time.Second),
	}
	h.rts.SetClock(h.clock)

	h.codec, err = jwtx.NewHS256Codec(jwtx.HS256Options{
		Secret:   []byte("0123456789abcdef0123456789abcdef"),
		Issuer:   "taskdeck",
		Audience: "taskdeck-clients",
		Now:      h.clock,
	})
	require.NoError(t, err)

	h.svc = &service.SessionService{
		Users:           db.Users(),
		RefreshTokenIDs: h.rts,
		Hasher:          h.hasher,
		Codec:           h.codec,
		AccessTTL:       15 * time.Minute,
		RefreshTTL:      24 * time.Hour,
		Metrics:         h.metrics,
	}
	return h
}

func (h *harness) signUp(t *testing.T) domain.Session {
	t.Helper()
	sess, err := h.svc.SignUp(context.Background(), testEmail, testPassword, "ay")
	require.NoError(t, err)
	return sess
}

func (h *harness) refreshID(t *testing.T, token string) string {
	t.Helper()
	c, err := h.codec.VerifyRefresh(token)
	require.NoError(t, err)
	return c.RefreshTokenID
}

func TestSignUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess := h.signUp(t)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)
	require.Equal(t, 15*time.Minute, sess.ExpiresIn)
	require.Equal(t, testEmail, sess.User.Email)
	require.Equal(t, "ay", sess.User.Username)
	require.Equal(t, domain.DefaultTaskView, sess.User.TaskView)
	require.NotEqual(t, testPassword, sess.User.PasswordHash)

	access, err := h.codec.VerifyAccess(sess.AccessToken)
	require.NoError(t, err)
	require.Equal(t, sess.User.ID, access.Subject)
	require.Equal(t, testEmail, access.Email)

	ok, err := h.rts.Validate(ctx, sess.User.ID, h.refreshID(t, sess.RefreshToken))
	require.NoError(t, err)
	require.True(t, ok, "sign-up opens a session")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := h.svc.SignUp(ctx, "  A@X.com ", "another-password", "")
		require.ErrorIs(t, err, service.ErrCredentialConflict)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := h.svc.SignUp(ctx, "not-an-email", testPassword, "")
		require.ErrorIs(t, err, service.ErrInvalidRequest)

		_, err = h.svc.SignUp(ctx, "b@x.com", "", "")
		require.ErrorIs(t, err, service.ErrInvalidRequest)

		_, err = h.svc.SignUp(ctx, "b@x.com", strings.Repeat("x", service.MaxPasswordLength+1), "")
		require.ErrorIs(t, err, service.ErrInvalidRequest)

		_, err = h.svc.SignUp(ctx, "Name <b@x.com>", testPassword, "")
		require.ErrorIs(t, err, service.ErrInvalidRequest)
	})
}

func TestSignUp_ShortPasswordThenDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.svc.SignUp(ctx, "a@x.com", "p1", "")
	require.NoError(t, err)
	require.NotEmpty(t, sess.AccessToken)
	require.NotEmpty(t, sess.RefreshToken)

	_, err = h.svc.SignUp(ctx, "a@x.com", "p1", "")
	require.ErrorIs(t, err, service.ErrCredentialConflict)

	_, err = h.svc.SignIn(ctx, "a@x.com", "p1")
	require.NoError(t, err)
}

func TestSignIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t)

	t.Run("success", func(t *testing.T) {
		sess, err := h.svc.SignIn(ctx, "A@x.com", testPassword)
		require.NoError(t, err)
		require.Equal(t, testEmail, sess.User.Email)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		_, errWrong := h.svc.SignIn(ctx, testEmail, "wrong-password")
		_, errUnknown := h.svc.SignIn(ctx, "nobody@x.com", testPassword)

		require.ErrorIs(t, errWrong, service.ErrInvalidCredentials)
		require.ErrorIs(t, errUnknown, service.ErrInvalidCredentials)
		require.Equal(t, errWrong.Error(), errUnknown.Error())
	})

	t.Run("unknown email still verifies a digest", func(t *testing.T) {
		before := h.hasher.verifies.Load()
		_, err := h.svc.SignIn(ctx, "ghost@x.com", testPassword)
		require.ErrorIs(t, err, service.ErrInvalidCredentials)
		require.Equal(t, before+1, h.hasher.verifies.Load())
	})
}

func TestRefreshTokens_RotatesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t)

	first, err := h.svc.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	second, err := h.svc.RefreshTokens(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, h.refreshID(t, first.RefreshToken), h.refreshID(t, second.RefreshToken))
	require.Equal(t, first.User.ID, second.User.ID)

	_, err = h.svc.RefreshTokens(ctx, first.RefreshToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)
	require.ErrorIs(t, err, service.ErrInvalidatedRefreshToken)
	require.Equal(t, 1.0, reuseCount(t, h.metrics))

	third, err := h.svc.RefreshTokens(ctx, second.RefreshToken)
	require.NoError(t, err, "a rejected replay leaves the current session alone")
	require.NotEmpty(t, third.AccessToken)
}

// reuseCount reads the replay counter through the registry.
func reuseCount(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "taskdeck_auth_refresh_token_reuse_detected_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestRefreshTokens_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sess := h.signUp(t)

	t.Run("garbage", func(t *testing.T) {
		_, err := h.svc.RefreshTokens(ctx, "not-a-token")
		require.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := h.svc.RefreshTokens(ctx, sess.AccessToken)
		require.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("unknown subject", func(t *testing.T) {
		tok, err := h.codec.Sign(jwtx.NewRefreshClaims("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", "rt", time.Hour,
			h.codec.Issuer(), h.codec.Audience(), h.clock()))
		require.NoError(t, err)
		_, err = h.svc.RefreshTokens(ctx, tok)
		require.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		h.advance(25 * time.Hour)
		_, err := h.svc.RefreshTokens(ctx, sess.RefreshToken)
		require.ErrorIs(t, err, service.ErrUnauthorized)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sess := h.signUp(t)

	require.NoError(t, h.svc.Logout(ctx, sess.User.ID))
	require.NoError(t, h.svc.Logout(ctx, sess.User.ID))

	_, err := h.svc.RefreshTokens(ctx, sess.RefreshToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)
	require.Zero(t, h.rts.Len())
}

func TestSignIn_SupersedesPreviousSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signUp(t)

	first, err := h.svc.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	second, err := h.svc.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	_, err = h.svc.RefreshTokens(ctx, first.RefreshToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = h.svc.RefreshTokens(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshTokens_ConcurrentSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sess := h.signUp(t)

	const racers = 8
	var (
		wg           sync.WaitGroup
		wins, denied atomic.Int32
		start        = make(chan struct{})
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.svc.RefreshTokens(ctx, sess.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, service.ErrUnauthorized):
				denied.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, racers-1, denied.Load())
}

func TestStoreUnavailable_FailsClosed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sess := h.signUp(t)

	h.rts.SetUnavailable(true)
	t.Cleanup(func() { h.rts.SetUnavailable(false) })

	_, err := h.svc.SignIn(ctx, testEmail, testPassword)
	require.ErrorIs(t, err, service.ErrStoreUnavailable)
	require.NotErrorIs(t, err, service.ErrUnauthorized)

	_, err = h.svc.RefreshTokens(ctx, sess.RefreshToken)
	require.ErrorIs(t, err, service.ErrStoreUnavailable)

	require.ErrorIs(t, h.svc.Logout(ctx, sess.User.ID), service.ErrStoreUnavailable)

	h.rts.SetUnavailable(false)
	_, err = h.svc.RefreshTokens(ctx, sess.RefreshToken)
	require.NoError(t, err, "a failed attempt must not burn the token")
}

func TestGenerateTokens_UsesInjectedID(t *testing.T) {
	h := newHarness(t)
	h.svc.NewRefreshTokenID = func() string { return "fixed-id" }

	sess, err := h.svc.GenerateTokens(context.Background(), domain.User{ID: "u-1", Email: "u@x.com"})
	require.NoError(t, err)
	require.Equal(t, "fixed-id", h.refreshID(t, sess.RefreshToken))

	ok, err := h.rts.Validate(context.Background(), "u-1", "fixed-id")
	require.NoError(t, err)
	require.True(t, ok)
}
