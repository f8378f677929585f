package hedging

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// singleFlight rejects re-entrant cycles instead of queuing them.
type singleFlight struct {
	running atomic.Bool
}

func (s *singleFlight) tryEnter() bool {
	return s.running.CompareAndSwap(false, true)
}

func (s *singleFlight) exit() {
	s.running.Store(false)
}

// LocalLocks is an in-process domain.LockManager for single-instance
// deployments and tests. Acquisition never blocks.
type LocalLocks struct {
	mu   sync.Mutex
	held map[string]time.Time // key -> expiry
	now  func() time.Time
}

// NewLocalLocks creates an empty lock table.
func NewLocalLocks() *LocalLocks {
	return &LocalLocks{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes key for at most ttl, or returns domain.ErrLockHeld.
func (l *LocalLocks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, domain.ErrLockHeld
	}
	exp := now.Add(ttl)
	l.held[key] = exp

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// A holder whose TTL lapsed must not release a newer holder.
			if cur, ok := l.held[key]; ok && cur.Equal(exp) {
				delete(l.held, key)
			}
		})
	}, nil
}

// Held reports whether key is currently locked.
func (l *LocalLocks) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.held[key]
	return ok && l.now().Before(exp)
}

var _ domain.LockManager = (*LocalLocks)(nil)
