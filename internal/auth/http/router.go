package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/taskdeck/internal/auth/metrics"
	"github.com/aussiebroadwan/taskdeck/internal/auth/service"
	"github.com/aussiebroadwan/taskdeck/pkg/httpx"
	"github.com/aussiebroadwan/taskdeck/pkg/slogx"

	_ "github.com/aussiebroadwan/taskdeck/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Limits are the rate limits the router applies.
type Limits struct {
	// Default is the global per-IP throttle on every route
	Default httpx.RateLimitConfig
	// Strict guards sign-up and sign-in against credential guessing
	Strict httpx.RateLimitConfig
}

// DefaultLimits returns the production rate limits.
func DefaultLimits() Limits {
	return Limits{Default: httpx.DefaultLimit, Strict: httpx.StrictLimit}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	guards       *httpx.Guards
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	database     Pinger
	cache        Pinger

	SessionService *service.SessionService
	UserService    *service.UserService
	Metrics        *metrics.Metrics
	Limits         Limits
}

// NewRouter builds a router. database and cache are probed by /readyz.
func NewRouter(
	guards *httpx.Guards,
	buildVersion string,
	database, cache Pinger,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		guards:       guards,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		database:     database,
		cache:        cache,
		logger:       logger,
		Limits:       DefaultLimits(),
	}
}

func (r *Router) ApplyRoutes() {
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.NoStore,
		httpx.RateLimitByIP(r.Limits.Default),
	}

	r.registerAuth()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			taskdeck Authentication API
//	@version		0.1.0
//	@description	Session lifecycle for taskdeck: sign-up, sign-in, refresh token rotation and logout.
//	@description
//	@description				Access and refresh tokens are HS256 JWTs. Refresh tokens are single use.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/taskdeck
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{SessionService: r.SessionService}

	public := r.guards.Require(httpx.AuthNone)
	strict := httpx.RateLimitByIP(r.Limits.Strict)

	// Credential endpoints share one strict bucket per IP
	r.Mux.Handle("POST /v1/auth/sign-up",
		httpx.Chain(http.HandlerFunc(h.HandleSignUp), public, strict),
	)
	r.Mux.Handle("POST /v1/auth/sign-in",
		httpx.Chain(http.HandlerFunc(h.HandleSignIn), public, strict),
	)

	// The refresh token in the body is the credential here
	r.Mux.Handle("POST /v1/auth/refresh-tokens",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh), public),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			r.guards.Require(), // bearer
			httpx.RateLimitByUser(r.Limits.Default),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserHandler{UserService: r.UserService}

	r.Mux.Handle("GET /v1/users/me",
		httpx.Chain(h,
			r.guards.Require(httpx.AuthBearer),
			httpx.RateLimitByUser(r.Limits.Default),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.database, r.cache))
	r.Mux.Handle("GET /metrics", r.Metrics.Handler())
}
