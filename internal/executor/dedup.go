package executor

import (
	"sync"
	"time"
)

// Dedup remembers recent submissions so an identical buy inside the window
// is refused. It is safe for concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> submitted at
	ttl  time.Duration
	now  func() time.Time
}

// NewDedup creates a Dedup with the given window. A non-positive ttl
// disables it.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// Seen reports whether key was marked within the window.
func (d *Dedup) Seen(key string) bool {
	if d.ttl <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.seen[key]
	return ok && d.now().Sub(at) < d.ttl
}

// Mark records a submission for key.
func (d *Dedup) Mark(key string) {
	if d.ttl <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[key] = d.now()
}

// Cleanup drops entries older than the window.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, k)
		}
	}
}

func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
