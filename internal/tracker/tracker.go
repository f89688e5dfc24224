// Package tracker collects the entities touched while a call is in flight,
// keyed by the call's correlation id.
package tracker

import (
	"sort"
	"sync"

	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

type entry struct {
	refs []model.EntityRef
	seen map[string]struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Tracker is safe for concurrent use. Calls with different correlation ids
// usually land on different shards.
type Tracker struct {
	shards [shardCount]shard
}

func New() *Tracker {
	t := &Tracker{}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]*entry)
	}
	return t
}

func (t *Tracker) shardFor(correlationID string) *shard {
	return &t.shards[xxhash.Sum64String(correlationID)%shardCount]
}

// Register records an entity under a correlation id. It reports whether the
// ref was new; duplicates and empty ids are ignored.
func (t *Tracker) Register(correlationID, entityType, entityID string) bool {
	if correlationID == "" || entityType == "" {
		return false
	}
	ref := model.EntityRef{EntityType: entityType, EntityID: entityID}
	s := t.shardFor(correlationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[correlationID]
	if !ok {
		e = &entry{seen: make(map[string]struct{})}
		s.entries[correlationID] = e
	}
	if _, dup := e.seen[ref.Key()]; dup {
		return false
	}
	e.seen[ref.Key()] = struct{}{}
	e.refs = append(e.refs, ref)
	return true
}

// Entries returns a copy of the refs in registration order.
func (t *Tracker) Entries(correlationID string) []model.EntityRef {
	s := t.shardFor(correlationID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[correlationID]
	if !ok {
		return []model.EntityRef{}
	}
	return append([]model.EntityRef(nil), e.refs...)
}

func (t *Tracker) Clear(correlationID string) {
	s := t.shardFor(correlationID)
	s.mu.Lock()
	delete(s.entries, correlationID)
	s.mu.Unlock()
}

func (t *Tracker) ClearAll() {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		clear(s.entries)
		s.mu.Unlock()
	}
}

// Len is the number of correlation ids with live entries.
func (t *Tracker) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// CorrelationIDs lists live correlation ids, sorted.
func (t *Tracker) CorrelationIDs() []string {
	var ids []string
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for id := range s.entries {
			ids = append(ids, id)
		}
		s.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}
