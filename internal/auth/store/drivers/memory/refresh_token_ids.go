// Package memory is a process-local RefreshTokenIDs for tests and single
// instance development. It does not survive restarts and is not shared
// between replicas.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/taskdeck/internal/auth/store"
)

type entry struct {
	id      string
	expires time.Time // zero means never
}

type RefreshTokenIDs struct {
	mu   sync.Mutex
	m    map[string]entry
	now  func() time.Time
	down error
}

var _ store.RefreshTokenIDs = (*RefreshTokenIDs)(nil)

func NewRefreshTokenIDs() *RefreshTokenIDs {
	return &RefreshTokenIDs{m: make(map[string]entry), now: time.Now}
}

// SetClock replaces the clock used for TTL expiry.
func (s *RefreshTokenIDs) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetUnavailable makes every call fail with store.ErrUnavailable until
// called again with false.
func (s *RefreshTokenIDs) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if down {
		s.down = store.ErrUnavailable
	} else {
		s.down = nil
	}
}

// Len reports how many live records are held.
func (s *RefreshTokenIDs) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.m {
		if _, ok := s.lookup(k); ok {
			n++
		}
	}
	return n
}

// lookup must be called with mu held.
func (s *RefreshTokenIDs) lookup(userID string) (string, bool) {
	e, ok := s.m[userID]
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.m, userID)
		return "", false
	}
	return e.id, true
}

func (s *RefreshTokenIDs) Insert(_ context.Context, userID, refreshTokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down != nil {
		return s.down
	}
	e := entry{id: refreshTokenID}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.m[userID] = e
	return nil
}

func (s *RefreshTokenIDs) Validate(_ context.Context, userID, refreshTokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down != nil {
		return false, s.down
	}
	id, ok := s.lookup(userID)
	return ok && id == refreshTokenID, nil
}

func (s *RefreshTokenIDs) Invalidate(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down != nil {
		return s.down
	}
	delete(s.m, userID)
	return nil
}

func (s *RefreshTokenIDs) Consume(_ context.Context, userID, refreshTokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down != nil {
		return false, s.down
	}
	id, ok := s.lookup(userID)
	if !ok || id != refreshTokenID {
		return false, nil
	}
	delete(s.m, userID)
	return true, nil
}

func (s *RefreshTokenIDs) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}
