package sink

import (
	"context"
	"sync"
)

const defaultMemorySize = 1000

// MemorySink keeps the most recent entries in a fixed ring.
type MemorySink struct {
	mu        sync.Mutex
	maxSize   int
	entries   []Entry
	nextIndex int
}

func NewMemorySink(size int) *MemorySink {
	if size <= 0 {
		size = defaultMemorySize
	}
	return &MemorySink{
		maxSize: size,
		entries: make([]Entry, 0, size),
	}
}

func (m *MemorySink) Emit(_ context.Context, channel, message string, fields map[string]any) error {
	e := newEntry(channel, message, fields)
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) < m.maxSize {
		m.entries = append(m.entries, e)
		return nil
	}
	m.entries[m.nextIndex] = e
	m.nextIndex = (m.nextIndex + 1) % m.maxSize
	return nil
}

// Recent returns up to limit entries, newest first.
func (m *MemorySink) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > m.maxSize {
		limit = m.maxSize
	}
	total := len(m.entries)
	results := make([]Entry, 0, min(limit, total))
	for i := 0; i < total && len(results) < limit; i++ {
		idx := (m.nextIndex + total - 1 - i) % total
		results = append(results, m.entries[idx])
	}
	return results, nil
}

func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
