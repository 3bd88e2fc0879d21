package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aussiebroadwan/taskdeck/pkg/httpx"
	"github.com/aussiebroadwan/taskdeck/pkg/jwtx"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	EnvDev = "dev"
)

type Config struct {
	Port                int    `mapstructure:"PORT"`
	Env                 string `mapstructure:"ENV"`       // dev, staging, prod
	LogLevel            string `mapstructure:"LOG_LEVEL"` // debug, info, warn, error
	LogFormat           string `mapstructure:"LOG_FORMAT"`
	ShutdownGracePeriod string `mapstructure:"SHUTDOWN_GRACE_PERIOD"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`    // sqlite or postgres
	DatabaseFile   string `mapstructure:"AUTH_DATABASE_FILE"` // sqlite only
	DatabaseURL    string `mapstructure:"DATABASE_URL"`       // postgres only
	PepperFile     string `mapstructure:"AUTH_PEPPER_FILE"`

	// JWTSecret may be empty in dev, where a throwaway one is generated.
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	JWTIssuer     string `mapstructure:"JWT_TOKEN_ISSUER"`
	JWTAudience   string `mapstructure:"JWT_TOKEN_AUDIENCE"`
	JWTAccessTTL  string `mapstructure:"JWT_ACCESS_TOKEN_TTL"`
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TOKEN_TTL"`

	// RedisHost may be empty in dev, where refresh token ids are kept in
	// process memory.
	RedisHost      string `mapstructure:"REDIS_HOST"`
	RedisPort      int    `mapstructure:"REDIS_PORT"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	RateLimitStrictRequests   int `mapstructure:"RATELIMIT_STRICT_REQUESTS"`
	RateLimitStrictWindowSec  int `mapstructure:"RATELIMIT_STRICT_WINDOW_SEC"`
	RateLimitStrictBurst      int `mapstructure:"RATELIMIT_STRICT_BURST"`
	RateLimitDefaultRequests  int `mapstructure:"RATELIMIT_DEFAULT_REQUESTS"`
	RateLimitDefaultWindowSec int `mapstructure:"RATELIMIT_DEFAULT_WINDOW_SEC"`
	RateLimitDefaultBurst     int `mapstructure:"RATELIMIT_DEFAULT_BURST"`

	// Resolved by LoadConfig
	AccessTTL     time.Duration `mapstructure:"-"`
	RefreshTTL    time.Duration `mapstructure:"-"`
	ShutdownGrace time.Duration `mapstructure:"-"`
}

// LoadConfig reads ./.env if present, then the environment.
func LoadConfig() (Config, error) {
	return LoadConfigFile(".env")
}

// LoadConfigFile reads an optional env-format file, then the environment,
// which wins. A missing file is not an error.
func LoadConfigFile(path string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // ignore a missing file
	}

	v.AutomaticEnv()
	_ = v.BindEnv("JWT_TOKEN_ISSUER", "JWT_TOKEN_ISSUER", "JWT_ISSUER")
	_ = v.BindEnv("JWT_TOKEN_AUDIENCE", "JWT_TOKEN_AUDIENCE", "JWT_AUDIENCE")

	v.SetDefault("PORT", 8080)
	v.SetDefault("ENV", EnvDev)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", "10s")
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("AUTH_DATABASE_FILE", "auth.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTH_PEPPER_FILE", "pepper")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TOKEN_ISSUER", "taskdeck")
	v.SetDefault("JWT_TOKEN_AUDIENCE", "taskdeck-clients")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL.String())
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL.String())
	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "user-")
	v.SetDefault("RATELIMIT_STRICT_REQUESTS", httpx.StrictLimit.RequestsPerWindow)
	v.SetDefault("RATELIMIT_STRICT_WINDOW_SEC", int(httpx.StrictLimit.Window.Seconds()))
	v.SetDefault("RATELIMIT_STRICT_BURST", httpx.StrictLimit.Burst)
	v.SetDefault("RATELIMIT_DEFAULT_REQUESTS", httpx.DefaultLimit.RequestsPerWindow)
	v.SetDefault("RATELIMIT_DEFAULT_WINDOW_SEC", int(httpx.DefaultLimit.Window.Seconds()))
	v.SetDefault("RATELIMIT_DEFAULT_BURST", httpx.DefaultLimit.Burst)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	var err error
	if c.AccessTTL, err = parseDuration("JWT_ACCESS_TOKEN_TTL", c.JWTAccessTTL); err != nil {
		return err
	}
	if c.RefreshTTL, err = parseDuration("JWT_REFRESH_TOKEN_TTL", c.JWTRefreshTTL); err != nil {
		return err
	}
	if c.ShutdownGrace, err = parseDuration("SHUTDOWN_GRACE_PERIOD", c.ShutdownGracePeriod); err != nil {
		return err
	}
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	return c.Validate()
}

// Validate reports the first configuration error.
func (c Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	case c.DatabaseDriver != DriverSQLite && c.DatabaseDriver != DriverPostgres:
		return fmt.Errorf("config: DATABASE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DatabaseDriver)
	case c.DatabaseDriver == DriverPostgres && c.DatabaseURL == "":
		return errors.New("config: DATABASE_URL must be set for the postgres driver")
	case c.JWTSecret == "" && !c.IsDev():
		return errors.New("config: JWT_SECRET must be set outside dev")
	case c.JWTSecret != "" && len(c.JWTSecret) < jwtx.MinSecretLength:
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", jwtx.MinSecretLength)
	case c.RedisHost == "" && !c.IsDev():
		return errors.New("config: REDIS_HOST must be set outside dev")
	case c.AccessTTL >= c.RefreshTTL:
		return errors.New("config: JWT_ACCESS_TOKEN_TTL must be shorter than JWT_REFRESH_TOKEN_TTL")
	}
	if err := c.StrictLimit().Validate(); err != nil {
		return fmt.Errorf("config: RATELIMIT_STRICT_*: %w", err)
	}
	if err := c.DefaultLimit().Validate(); err != nil {
		return fmt.Errorf("config: RATELIMIT_DEFAULT_*: %w", err)
	}
	return nil
}

func (c Config) IsDev() bool { return c.Env == EnvDev }

func (c Config) StrictLimit() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		RequestsPerWindow: c.RateLimitStrictRequests,
		Window:            time.Duration(c.RateLimitStrictWindowSec) * time.Second,
		Burst:             c.RateLimitStrictBurst,
	}
}

func (c Config) DefaultLimit() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{
		RequestsPerWindow: c.RateLimitDefaultRequests,
		Window:            time.Duration(c.RateLimitDefaultWindowSec) * time.Second,
		Burst:             c.RateLimitDefaultBurst,
	}
}

// parseDuration accepts a Go duration ("15m") or whole seconds ("900").
func parseDuration(key, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d, nil
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("config: %s must be a positive duration or number of seconds, got %q", key, value)
}
