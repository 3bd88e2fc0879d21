package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/taskdeck/internal/auth/http"
	"github.com/aussiebroadwan/taskdeck/internal/auth/metrics"
	"github.com/aussiebroadwan/taskdeck/internal/auth/service"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/taskdeck/pkg/cryptox"
	"github.com/aussiebroadwan/taskdeck/pkg/httpx"
	"github.com/aussiebroadwan/taskdeck/pkg/jwtx"
	"github.com/aussiebroadwan/taskdeck/pkg/slogx"

	goredis "github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	startupTimeout = 5 * time.Second
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db              store.Store
	rdb             *goredis.Client // nil when refresh token ids live in memory
	refreshTokenIDs store.RefreshTokenIDs
	codec           *jwtx.HS256Codec
	metrics         *metrics.Metrics

	// Services
	sessionService *service.SessionService
	userService    *service.UserService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	return NewWithLogger(cfg, slogx.New(slogx.Config{
		Service: "taskdeck-auth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

// NewWithLogger is New with a caller supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := &Application{cfg: cfg, logger: logger, metrics: metrics.New()}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.initRefreshTokenIDs(ctx); err != nil {
		app.closeStores()
		return nil, err
	}

	codec, err := InitTokenCodec(cfg, logger)
	if err != nil {
		app.closeStores()
		return nil, err
	}
	app.codec = codec

	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGrace)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase opens the credential store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initRefreshTokenIDs connects the revocation store. Without REDIS_HOST
// (dev only) the ids are kept in process memory.
func (app *Application) initRefreshTokenIDs(ctx context.Context) error {
	if app.cfg.RedisHost == "" {
		app.logger.Warn("REDIS_HOST not set, keeping refresh token ids in memory; sessions will not survive a restart")
		app.refreshTokenIDs = memory.NewRefreshTokenIDs()
		return nil
	}

	app.rdb = redis.NewClient(redis.Options{
		Host:     app.cfg.RedisHost,
		Port:     app.cfg.RedisPort,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	rts := redis.NewRefreshTokenIDs(app.rdb, app.cfg.RedisKeyPrefix)
	if err := rts.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	app.refreshTokenIDs = rts

	app.logger.Info("redis connected", "host", app.cfg.RedisHost, "port", app.cfg.RedisPort, "db", app.cfg.RedisDB)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.sessionService = &service.SessionService{
		Users:           app.db.Users(),
		RefreshTokenIDs: app.refreshTokenIDs,
		Hasher:          cryptox.NewArgon2id(pepper),
		Codec:           app.codec,
		AccessTTL:       app.cfg.AccessTTL,
		RefreshTTL:      app.cfg.RefreshTTL,
		Metrics:         app.metrics,
	}
	app.userService = &service.UserService{Users: app.db.Users()}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	guards := httpx.NewGuards().
		Register(httpx.AuthBearer, httpx.BearerGuard(jwtx.AccessVerifier{HS256Codec: app.codec})).
		OnFailure(func(_ *http.Request, err error) {
			app.metrics.TokenRejected(jwtx.Kind(err))
		})

	router := httpapi.NewRouter(guards, BuildVersion, app.db, app.refreshTokenIDs, app.logger)
	router.SessionService = app.sessionService
	router.UserService = app.userService
	router.Metrics = app.metrics
	router.Limits = httpapi.Limits{
		Default: app.cfg.DefaultLimit(),
		Strict:  app.cfg.StrictLimit(),
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
