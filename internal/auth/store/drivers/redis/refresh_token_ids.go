package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/taskdeck/internal/auth/store"
)

// DefaultKeyPrefix is prepended to the user id to form the record key.
const DefaultKeyPrefix = "user-"

// consumeScript deletes the key only while it still holds the presented id.
var consumeScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Options describes how to reach Redis.
type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewClient builds a go-redis client. No connection is made until first use.
func NewClient(opts Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// RefreshTokenIDs keeps one string key per user.
type RefreshTokenIDs struct {
	rdb    goredis.UniversalClient
	prefix string
}

var _ store.RefreshTokenIDs = (*RefreshTokenIDs)(nil)

func NewRefreshTokenIDs(rdb goredis.UniversalClient, prefix string) *RefreshTokenIDs {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RefreshTokenIDs{rdb: rdb, prefix: prefix}
}

func (s *RefreshTokenIDs) key(userID string) string { return s.prefix + userID }

func (s *RefreshTokenIDs) Insert(ctx context.Context, userID, refreshTokenID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(userID), refreshTokenID, max(ttl, 0)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RefreshTokenIDs) Validate(ctx context.Context, userID, refreshTokenID string) (bool, error) {
	stored, err := s.rdb.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(err)
	}
	return stored == refreshTokenID, nil
}

func (s *RefreshTokenIDs) Invalidate(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, s.key(userID)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RefreshTokenIDs) Consume(ctx context.Context, userID, refreshTokenID string) (bool, error) {
	deleted, err := consumeScript.Run(ctx, s.rdb, []string{s.key(userID)}, refreshTokenID).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return deleted == 1, nil
}

func (s *RefreshTokenIDs) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: redis: %v", store.ErrUnavailable, err)
}
