// Package storetest holds behaviour tests shared by every RefreshTokenIDs
// driver.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/taskdeck/internal/auth/store"
)

// RunRefreshTokenIDs exercises s. Each subtest uses its own user ids, so one
// store can serve all of them.
func RunRefreshTokenIDs(t *testing.T, s store.RefreshTokenIDs) {
	ctx := context.Background()

	t.Run("absent is invalid", func(t *testing.T) {
		ok, err := s.Validate(ctx, "absent", "rt")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("insert then validate", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "u-insert", "rt-1", time.Hour))

		ok, err := s.Validate(ctx, "u-insert", "rt-1")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Validate(ctx, "u-insert", "rt-other")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("latest insert wins", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "u-latest", "rt-1", time.Hour))
		require.NoError(t, s.Insert(ctx, "u-latest", "rt-2", time.Hour))

		ok, err := s.Validate(ctx, "u-latest", "rt-1")
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = s.Validate(ctx, "u-latest", "rt-2")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("users are independent", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "u-a", "same", time.Hour))
		require.NoError(t, s.Insert(ctx, "u-b", "same", time.Hour))
		require.NoError(t, s.Invalidate(ctx, "u-a"))

		ok, err := s.Validate(ctx, "u-b", "same")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("invalidate is idempotent", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "u-inv", "rt-1", time.Hour))
		require.NoError(t, s.Invalidate(ctx, "u-inv"))
		require.NoError(t, s.Invalidate(ctx, "u-inv"))

		ok, err := s.Validate(ctx, "u-inv", "rt-1")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("consume deletes only on match", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "u-consume", "rt-1", time.Hour))

		ok, err := s.Consume(ctx, "u-consume", "rt-wrong")
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = s.Validate(ctx, "u-consume", "rt-1")
		require.NoError(t, err)
		require.True(t, ok, "mismatched consume must leave the record alone")

		ok, err = s.Consume(ctx, "u-consume", "rt-1")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Consume(ctx, "u-consume", "rt-1")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		require.NoError(t, s.Insert(ctx, "u-race", "rt-1", time.Hour))

		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.Consume(ctx, "u-race", "rt-1")
				if err == nil && ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, wins.Load())
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})
}
