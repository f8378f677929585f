package hedging

import (
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// Memory holds the engine tables that outlive a cycle: hedged positions,
// hedged-up winners, liquidation cooldowns, and hedge pairings. Every
// table is bounded and swept at the start of each cycle.
type Memory struct {
	mu sync.Mutex

	maxCooldowns int
	maxPairings  int
	maxTracked   int
	pairingTTL   time.Duration

	hedged    map[string]time.Time // position key -> marked at
	hedgedUp  map[string]time.Time
	cooldowns map[string]time.Time // position key -> expiry
	pairings  map[string]domain.HedgePairing
	hedgeLegs map[string]string // hedge leg key -> original key
	exited    map[string]time.Time
}

// NewMemory creates empty tables sized from opts.
func NewMemory(opts Options) *Memory {
	return &Memory{
		maxCooldowns: opts.MaxCooldowns,
		maxPairings:  opts.MaxPairings,
		maxTracked:   opts.MaxTracked,
		pairingTTL:   opts.PairingTTL,
		hedged:       make(map[string]time.Time),
		hedgedUp:     make(map[string]time.Time),
		cooldowns:    make(map[string]time.Time),
		pairings:     make(map[string]domain.HedgePairing),
		hedgeLegs:    make(map[string]string),
		exited:       make(map[string]time.Time),
	}
}

// IsHedged reports whether key was hedged (or is itself a hedge leg).
func (m *Memory) IsHedged(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hedged[key]; ok {
		return true
	}
	_, ok := m.hedgeLegs[key]
	return ok
}

func (m *Memory) MarkHedged(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hedged[key] = now
}

// Unhedge clears the hedged flag so an operator can re-arm a position.
func (m *Memory) Unhedge(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hedged[key]
	delete(m.hedged, key)
	return ok
}

func (m *Memory) IsHedgedUp(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hedgedUp[key]
	return ok
}

func (m *Memory) MarkHedgedUp(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hedgedUp[key] = now
}

// InCooldown reports an active cooldown, deleting the entry if it expired.
func (m *Memory) InCooldown(key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.cooldowns[key]
	if !ok {
		return false
	}
	if !now.Before(exp) {
		delete(m.cooldowns, key)
		return false
	}
	return true
}

// SetCooldown blocks key until expiry. An existing later expiry is kept.
func (m *Memory) SetCooldown(key string, expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.cooldowns[key]; ok && cur.After(expiry) {
		return
	}
	m.cooldowns[key] = expiry
	m.capCooldownsLocked(time.Time{})
}

// RecordPairing stores p, merging into an existing pairing for the same
// original so there is never more than one per position.
func (m *Memory) RecordPairing(p domain.HedgePairing) domain.HedgePairing {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.pairings[p.OriginalKey]; ok {
		cur.SpentUSD += p.SpentUSD
		m.pairings[p.OriginalKey] = cur
		return cur
	}
	m.pairings[p.OriginalKey] = p
	m.hedgeLegs[p.HedgeKey()] = p.OriginalKey
	m.capPairingsLocked()
	return p
}

func (m *Memory) Pairing(originalKey string) (domain.HedgePairing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pairings[originalKey]
	return p, ok
}

// Pairings returns all pairings, oldest first.
func (m *Memory) Pairings() []domain.HedgePairing {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.HedgePairing, 0, len(m.pairings))
	for _, p := range m.pairings {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OriginalKey < out[j].OriginalKey
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RemovePairing drops the pairing and the exited flags of both legs.
func (m *Memory) RemovePairing(originalKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removePairingLocked(originalKey)
}

func (m *Memory) removePairingLocked(originalKey string) {
	p, ok := m.pairings[originalKey]
	if !ok {
		return
	}
	delete(m.pairings, originalKey)
	delete(m.hedgeLegs, p.HedgeKey())
	delete(m.exited, originalKey)
	delete(m.exited, p.HedgeKey())
}

func (m *Memory) MarkExited(legKey string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exited[legKey] = now
}

func (m *Memory) IsExited(legKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.exited[legKey]
	return ok
}

// Sweep expires cooldowns and pairings and enforces every size cap. The
// tracked sets only give up keys that live reports absent: a position
// still held keeps its mark even past the cap, so a partially filled hedge
// is never re-armed. A nil live leaves the tracked sets untouched.
func (m *Memory) Sweep(now time.Time, live func(key string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capCooldownsLocked(now)

	if m.pairingTTL > 0 {
		for k, p := range m.pairings {
			if now.Sub(p.CreatedAt) >= m.pairingTTL {
				m.removePairingLocked(k)
			}
		}
	}
	m.capPairingsLocked()

	if live == nil {
		return
	}
	evictOldest(m.hedged, m.maxTracked, live)
	evictOldest(m.hedgedUp, m.maxTracked, live)
	evictOldest(m.exited, m.maxTracked, live)
}

// capCooldownsLocked drops expired entries (when now is set), then the
// earliest-expiring ones until the table fits.
func (m *Memory) capCooldownsLocked(now time.Time) {
	if !now.IsZero() {
		for k, exp := range m.cooldowns {
			if !now.Before(exp) {
				delete(m.cooldowns, k)
			}
		}
	}
	evictOldest(m.cooldowns, m.maxCooldowns, nil)
}

func (m *Memory) capPairingsLocked() {
	if len(m.pairings) <= m.maxPairings {
		return
	}
	keys := make([]string, 0, len(m.pairings))
	for k := range m.pairings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m.pairings[keys[i]].CreatedAt.Before(m.pairings[keys[j]].CreatedAt)
	})
	for _, k := range keys[:len(keys)-m.maxPairings] {
		m.removePairingLocked(k)
	}
}

// evictOldest trims table towards limit entries, dropping the smallest
// timestamps first. Keys for which keep returns true are never dropped.
func evictOldest(table map[string]time.Time, limit int, keep func(string) bool) {
	if limit <= 0 || len(table) <= limit {
		return
	}
	keys := make([]string, 0, len(table))
	for k := range table {
		if keep == nil || !keep(k) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return table[keys[i]].Before(table[keys[j]]) })
	for _, k := range keys[:min(len(keys), len(table)-limit)] {
		delete(table, k)
	}
}

// MemoryStats reports table sizes.
type MemoryStats struct {
	Hedged    int `json:"hedged"`
	HedgedUp  int `json:"hedged_up"`
	Cooldowns int `json:"cooldowns"`
	Pairings  int `json:"pairings"`
	Exited    int `json:"exited"`
}

func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{
		Hedged:    len(m.hedged),
		HedgedUp:  len(m.hedgedUp),
		Cooldowns: len(m.cooldowns),
		Pairings:  len(m.pairings),
		Exited:    len(m.exited),
	}
}
