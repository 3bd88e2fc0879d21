package app

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskdeck/pkg/authsdk"
	"github.com/aussiebroadwan/taskdeck/pkg/slogx"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cleanEnv(t)
	dir := t.TempDir()
	t.Setenv("AUTH_DATABASE_FILE", filepath.Join(dir, "auth.db"))
	t.Setenv("AUTH_PEPPER_FILE", filepath.Join(dir, "pepper"))
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "1000")
	t.Setenv("RATELIMIT_STRICT_BURST", "1000")

	cfg, err := LoadConfigFile("")
	require.NoError(t, err)
	return cfg
}

func start(t *testing.T, cfg Config) *authsdk.SDKClient {
	t.Helper()
	application, err := NewWithLogger(cfg, slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.closeStores() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)
	return authsdk.NewSDKClient(srv.URL)
}

func TestApplication_DevDefaults(t *testing.T) {
	client := start(t, testConfig(t))
	ctx := t.Context()

	session, err := client.Register(ctx, authsdk.SignUpRequest{Email: "dev@example.com", Password: "dev-password"})
	require.NoError(t, err)
	require.NoError(t, session.Refresh(ctx))

	health, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, BuildVersion, health.Version)
}

func TestApplication_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisHost = mr.Host()
	cfg.RedisPort, _ = strconv.Atoi(mr.Port())
	cfg.RedisKeyPrefix = "td:"

	client := start(t, cfg)
	ctx := t.Context()

	session, err := client.Register(ctx, authsdk.SignUpRequest{Email: "r@example.com", Password: "redis-password"})
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "td:"+session.User().ID, keys[0])

	require.NoError(t, session.Logout(ctx))
	assert.Empty(t, mr.Keys())

	// Redis going away makes the service unready and refresh fail closed
	fresh, err := client.AuthenticateWithPassword(ctx, "r@example.com", "redis-password")
	require.NoError(t, err)
	mr.Close()

	require.ErrorIs(t, fresh.Refresh(ctx), authsdk.ErrServerError)
	_, err = client.GetReadiness(ctx)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}

func TestApplication_RedisUnreachableAtStartup(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisHost = mr.Host()
	cfg.RedisPort, _ = strconv.Atoi(mr.Port())
	mr.Close()

	_, err := NewWithLogger(cfg, slogx.Discard())
	require.ErrorContains(t, err, "redis")
}

// openHandles lists this process's file descriptors that point at path or
// its -wal/-shm siblings.
func openHandles(t *testing.T, path string) []string {
	t.Helper()
	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd on this platform")
	}
	var open []string
	for _, fd := range fds {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", fd.Name()))
		if err == nil && strings.HasPrefix(target, path) {
			open = append(open, target)
		}
	}
	return open
}

func TestApplication_MigrationFailureReleasesDatabase(t *testing.T) {
	cfg := testConfig(t)
	dbPath, err := filepath.EvalSymlinks(filepath.Dir(cfg.DatabaseFile))
	require.NoError(t, err)
	dbPath = filepath.Join(dbPath, filepath.Base(cfg.DatabaseFile))

	// A dirty version row makes every later migration run fail.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE schema_migrations (version uint64, dirty bool)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_migrations (version, dirty) VALUES (1, 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Empty(t, openHandles(t, dbPath))

	_, err = NewWithLogger(cfg, slogx.Discard())
	require.ErrorContains(t, err, "migrations")
	assert.Empty(t, openHandles(t, dbPath), "database left open after a failed start")
}

func TestInitTokenCodec(t *testing.T) {
	cfg := testConfig(t)

	codec, err := InitTokenCodec(cfg, slogx.Discard())
	require.NoError(t, err, "dev generates a secret")
	assert.Equal(t, "HS256", codec.Alg())

	cfg.Env = "prod"
	_, err = InitTokenCodec(cfg, slogx.Discard())
	require.Error(t, err)

	cfg.JWTSecret = secret
	_, err = InitTokenCodec(cfg, slogx.Discard())
	require.NoError(t, err)
}
