package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/taskdeck/pkg/jwtx"
	"github.com/aussiebroadwan/taskdeck/pkg/slogx"
)

// AuthType names an authentication strategy a route can accept.
type AuthType int

const (
	AuthBearer AuthType = iota
	AuthNone
)

func (t AuthType) String() string {
	switch t {
	case AuthBearer:
		return "bearer"
	case AuthNone:
		return "none"
	default:
		return fmt.Sprintf("AuthType(%d)", int(t))
	}
}

// Guard authenticates a single request. On success it returns the request to
// hand downstream, usually carrying the principal on its context.
type Guard interface {
	Authenticate(r *http.Request) (*http.Request, error)
}

// GuardFunc adapts a function to the Guard interface.
type GuardFunc func(r *http.Request) (*http.Request, error)

func (f GuardFunc) Authenticate(r *http.Request) (*http.Request, error) { return f(r) }

// AuthError is a guard failure rendered as an RFC 6750 challenge.
type AuthError struct {
	// Code is the RFC 6750 error code, "invalid_request" or "invalid_token".
	Code        string
	Description string
	Err         error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Description + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Description
}

func (e *AuthError) Unwrap() error { return e.Err }

var (
	// ErrUnauthenticated is reported when no guard produced a more specific error.
	ErrUnauthenticated = errors.New("httpx: unauthenticated")

	errUnknownGuard = errors.New("httpx: no guard registered for strategy")
)

// NoneGuard lets every request through untouched.
var NoneGuard Guard = GuardFunc(func(r *http.Request) (*http.Request, error) { return r, nil })

// BearerGuard verifies "Authorization: Bearer <token>" with v. A missing or
// malformed header fails before the verifier is consulted.
func BearerGuard(v jwtx.Verifier) Guard {
	return GuardFunc(func(r *http.Request) (*http.Request, error) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			return nil, &AuthError{Code: "invalid_request", Description: "missing bearer token"}
		}

		claims, err := v.Verify(raw)
		if err != nil {
			desc := "token verification failed"
			if errors.Is(err, jwtx.ErrExpired) {
				desc = "token expired"
			}
			return nil, &AuthError{Code: "invalid_token", Description: desc, Err: err}
		}

		return r.WithContext(WithPrincipal(r.Context(), claims)), nil
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// Guards resolves AuthType values to Guard implementations. Register all
// strategies before serving; the registry is read-only afterwards.
type Guards struct {
	guards    map[AuthType]Guard
	onFailure func(r *http.Request, err error)
}

// NewGuards builds a registry with NoneGuard already registered.
func NewGuards() *Guards {
	return &Guards{guards: map[AuthType]Guard{AuthNone: NoneGuard}}
}

// Register installs g for t, replacing any previous guard.
func (g *Guards) Register(t AuthType, guard Guard) *Guards {
	g.guards[t] = guard
	return g
}

// OnFailure installs a hook called with the error written for a rejected
// request. Used for metrics.
func (g *Guards) OnFailure(fn func(r *http.Request, err error)) *Guards {
	g.onFailure = fn
	return g
}

// Require gates a handler behind the listed strategies. They are tried in
// order and the first success wins. With no strategies listed the route
// requires a bearer token. When every strategy fails the last error is
// written as a 401.
func (g *Guards) Require(types ...AuthType) Middleware {
	if len(types) == 0 {
		types = []AuthType{AuthBearer}
	}
	types = append([]AuthType(nil), types...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var lastErr error
			for _, t := range types {
				guard, ok := g.guards[t]
				if !ok {
					lastErr = fmt.Errorf("%w: %s", errUnknownGuard, t)
					continue
				}
				authed, err := guard.Authenticate(r)
				if err == nil {
					next.ServeHTTP(w, authed)
					return
				}
				lastErr = err
			}

			if lastErr == nil {
				lastErr = ErrUnauthenticated
			}
			slogx.FromContext(r.Context()).Warn("request not authenticated", "err", lastErr)
			if g.onFailure != nil {
				g.onFailure(r, lastErr)
			}
			WriteAuthError(w, lastErr)
		})
	}
}

// WriteAuthError writes an RFC 6750 401 for err.
func WriteAuthError(w http.ResponseWriter, err error) {
	challenge := `Bearer realm="taskdeck"`
	var ae *AuthError
	if errors.As(err, &ae) {
		challenge += `, error="` + ae.Code + `", error_description="` + ae.Description + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": "Authentication is required to access this resource.",
	})
}
