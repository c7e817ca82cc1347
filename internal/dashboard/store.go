package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore is a logrus hook keeping the most recent entries at or above a
// level in a ring buffer. Hooks cannot be detached from logrus, so close only
// stops recording.
type logStore struct {
	mu      sync.RWMutex
	ring    []logRecord
	next    int
	full    bool
	levels  []logrus.Level
	enabled atomic.Bool
}

func newLogStore(limit int, min logrus.Level) *logStore {
	if limit <= 0 {
		limit = 200
	}
	var levels []logrus.Level
	for _, lvl := range logrus.AllLevels {
		if lvl <= min {
			levels = append(levels, lvl)
		}
	}
	s := &logStore{ring: make([]logRecord, limit), levels: levels}
	s.enabled.Store(true)
	return s
}

func (s *logStore) Levels() []logrus.Level {
	return s.levels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	rec := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	for k, v := range entry.Data {
		if k == "component" {
			if c, ok := v.(string); ok {
				rec.Component = c
				continue
			}
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]interface{}, len(entry.Data))
		}
		switch val := v.(type) {
		case error:
			rec.Fields[k] = val.Error()
		case fmt.Stringer:
			rec.Fields[k] = val.String()
		default:
			rec.Fields[k] = val
		}
	}

	s.mu.Lock()
	s.ring[s.next] = rec
	s.next = (s.next + 1) % len(s.ring)
	if s.next == 0 {
		s.full = true
	}
	s.mu.Unlock()
	return nil
}

// snapshot returns the retained entries, oldest first.
func (s *logStore) snapshot() []logRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.full {
		return append([]logRecord{}, s.ring[:s.next]...)
	}
	out := make([]logRecord, 0, len(s.ring))
	out = append(out, s.ring[s.next:]...)
	return append(out, s.ring[:s.next]...)
}

func (s *logStore) close() {
	s.enabled.Store(false)
}
