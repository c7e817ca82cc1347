package dedup

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store.
type Memory struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{expires: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Seen(_ context.Context, keys []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		if exp, ok := m.expires[k]; ok {
			if now.Before(exp) {
				out[k] = true
			} else {
				delete(m.expires, k)
			}
		}
	}
	return out, nil
}

func (m *Memory) Mark(_ context.Context, keys []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, k)
		}
	}
	for _, k := range keys {
		m.expires[k] = now.Add(ttl)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
