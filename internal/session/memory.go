package session

import (
	"context"
	"sync"
	"time"

	"github.com/spigell/talent-ranker/internal/logger"
	"go.uber.org/zap"
)

type entry struct {
	mu      sync.Mutex
	turns   []Turn
	touched time.Time
	// removed is set once the entry left the map; writers holding a stale
	// pointer must retry with a fresh one.
	removed bool
}

// Memory is an in-process Store. Each candidate has its own lock, so
// different candidates never contend.
type Memory struct {
	entries  sync.Map
	ttl      time.Duration
	maxTurns int
	now      func() time.Time
}

// NewMemory creates an in-memory store.
func NewMemory(ttl time.Duration, maxTurns int) *Memory {
	cfg := Config{TTL: ttl, MaxTurns: maxTurns}.withDefaults()
	return &Memory{ttl: cfg.TTL, maxTurns: cfg.MaxTurns, now: time.Now}
}

// Append adds turns to the candidate's session, creating or refreshing it.
func (m *Memory) Append(_ context.Context, id string, turns ...Turn) error {
	now := m.now()
	for {
		value, _ := m.entries.LoadOrStore(id, &entry{touched: now})
		e := value.(*entry)

		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		if m.expired(e, now) {
			e.turns = nil
		}
		e.turns = append(e.turns, turns...)
		if over := len(e.turns) - m.maxTurns; over > 0 {
			e.turns = append([]Turn(nil), e.turns[over:]...)
		}
		e.touched = now
		e.mu.Unlock()
		return nil
	}
}

// History returns a copy of the live turns, oldest first.
func (m *Memory) History(_ context.Context, id string) ([]Turn, error) {
	value, ok := m.entries.Load(id)
	if !ok {
		return nil, nil
	}
	e := value.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || m.expired(e, m.now()) {
		return nil, nil
	}
	return append([]Turn(nil), e.turns...), nil
}

// Clear removes the candidate's session.
func (m *Memory) Clear(_ context.Context, id string) error {
	value, ok := m.entries.Load(id)
	if !ok {
		return nil
	}
	m.remove(id, value.(*entry))
	return nil
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Memory) Sweep(now time.Time) int {
	removed := 0
	m.entries.Range(func(key, value any) bool {
		if m.removeIfExpired(key.(string), value.(*entry), now) {
			removed++
		}
		return true
	})
	return removed
}

// Run sweeps periodically until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration, log *zap.Logger) {
	log = logger.OrNop(log)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				log.Debug("expired sessions evicted", zap.Int("count", n))
			}
		}
	}
}

// Len reports the number of stored sessions, expired ones included.
func (m *Memory) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (m *Memory) expired(e *entry, now time.Time) bool {
	return now.Sub(e.touched) > m.ttl
}

func (m *Memory) remove(id string, e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	m.entries.CompareAndDelete(id, e)
}

func (m *Memory) removeIfExpired(id string, e *entry, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || !m.expired(e, now) {
		return false
	}
	e.removed = true
	m.entries.CompareAndDelete(id, e)
	return true
}
