package httpx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskdeck/pkg/httpx"
	"github.com/aussiebroadwan/taskdeck/pkg/jwtx"
)

// stubVerifier accepts exactly one token and records whether it was called.
type stubVerifier struct {
	token  string
	err    error
	called int
}

func (s *stubVerifier) Verify(token string) (jwtx.Claims, error) {
	s.called++
	if s.err != nil {
		return jwtx.Claims{}, s.err
	}
	if token != s.token {
		return jwtx.Claims{}, jwtx.ErrInvalidSig
	}
	c := jwtx.Claims{Use: jwtx.UseAccess, Email: "a@x.com"}
	c.Subject = "user-1"
	return c, nil
}

func serve(t *testing.T, mw httpx.Middleware, authz string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var seen *http.Request
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestGuards_DefaultsToBearer(t *testing.T) {
	v := &stubVerifier{token: "good"}
	guards := httpx.NewGuards().Register(httpx.AuthBearer, httpx.BearerGuard(v))

	rec, seen := serve(t, guards.Require(), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, seen)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_request"`)
	require.Zero(t, v.called, "verifier must not run without a bearer header")

	rec, seen = serve(t, guards.Require(), "Bearer good")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)

	id, ok := httpx.UserIDFromContext(seen.Context())
	require.True(t, ok)
	assert.Equal(t, "user-1", id)
	assert.Equal(t, "a@x.com", httpx.EmailFromContext(seen.Context()))
	claims, ok := httpx.ClaimsFromContext(seen.Context())
	require.True(t, ok)
	assert.Equal(t, jwtx.UseAccess, claims.Use)
}

func TestBearerGuard_MalformedHeader(t *testing.T) {
	v := &stubVerifier{token: "good"}
	guards := httpx.NewGuards().Register(httpx.AuthBearer, httpx.BearerGuard(v))

	for _, h := range []string{"good", "Basic Zm9vOmJhcg==", "Bearer", "Bearer ", "Bearer a b"} {
		rec, _ := serve(t, guards.Require(httpx.AuthBearer), h)
		require.Equal(t, http.StatusUnauthorized, rec.Code, h)
	}
	require.Zero(t, v.called)

	rec, _ := serve(t, guards.Require(httpx.AuthBearer), "bearer good")
	require.Equal(t, http.StatusNoContent, rec.Code, "scheme is case-insensitive")
}

func TestBearerGuard_VerifyFailure(t *testing.T) {
	v := &stubVerifier{err: jwtx.ErrExpired}
	guards := httpx.NewGuards().Register(httpx.AuthBearer, httpx.BearerGuard(v))

	rec, seen := serve(t, guards.Require(), "Bearer whatever")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, seen)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "token expired")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestGuards_NoneAlwaysPasses(t *testing.T) {
	guards := httpx.NewGuards()

	rec, seen := serve(t, guards.Require(httpx.AuthNone), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := httpx.UserIDFromContext(seen.Context())
	require.False(t, ok)
}

func TestGuards_OrSemantics(t *testing.T) {
	v := &stubVerifier{token: "good"}
	guards := httpx.NewGuards().Register(httpx.AuthBearer, httpx.BearerGuard(v))
	mw := guards.Require(httpx.AuthBearer, httpx.AuthNone)

	t.Run("bearer success attaches principal", func(t *testing.T) {
		_, seen := serve(t, mw, "Bearer good")
		id, ok := httpx.UserIDFromContext(seen.Context())
		require.True(t, ok)
		require.Equal(t, "user-1", id)
	})

	t.Run("anonymous falls through to none", func(t *testing.T) {
		rec, seen := serve(t, mw, "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		_, ok := httpx.UserIDFromContext(seen.Context())
		require.False(t, ok)
	})

	t.Run("short circuits on first success", func(t *testing.T) {
		calls := 0
		counting := httpx.GuardFunc(func(r *http.Request) (*http.Request, error) {
			calls++
			return r, nil
		})
		g := httpx.NewGuards().Register(httpx.AuthBearer, counting)
		rec, _ := serve(t, g.Require(httpx.AuthNone, httpx.AuthBearer), "")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Zero(t, calls)
	})
}

func TestGuards_LastErrorWins(t *testing.T) {
	first := errors.New("first")
	last := &httpx.AuthError{Code: "invalid_token", Description: "second"}

	g := httpx.NewGuards().
		Register(httpx.AuthBearer, httpx.GuardFunc(func(*http.Request) (*http.Request, error) { return nil, first })).
		Register(httpx.AuthType(7), httpx.GuardFunc(func(*http.Request) (*http.Request, error) { return nil, last }))

	var reported error
	g.OnFailure(func(_ *http.Request, err error) { reported = err })

	rec, _ := serve(t, g.Require(httpx.AuthBearer, httpx.AuthType(7)), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error_description="second"`)
	require.ErrorIs(t, reported, last)
}

func TestGuards_UnregisteredStrategy(t *testing.T) {
	g := httpx.NewGuards()

	rec, seen := serve(t, g.Require(httpx.AuthBearer), "Bearer good")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, seen)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler, mk("a"), nil, mk("b"), httpx.NoStore)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"a", "b"}, order)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
