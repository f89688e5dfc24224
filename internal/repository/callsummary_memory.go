package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/google/uuid"
)

// MemoryCallStore mirrors PostgresCallStore for runs without a database.
type MemoryCallStore struct {
	mu           sync.RWMutex
	now          func() time.Time
	summaries    map[string]*model.CallSummary // by correlation id
	associations map[string][]model.Association // by summary id
	nextAssocID  uint64
}

func NewMemoryCallStore() *MemoryCallStore {
	return &MemoryCallStore{
		now:          time.Now,
		summaries:    make(map[string]*model.CallSummary),
		associations: make(map[string][]model.Association),
	}
}

func (m *MemoryCallStore) UpsertCallSummary(_ context.Context, s *model.CallSummary) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()

	existing, ok := m.summaries[s.CorrelationID]
	if !ok {
		row := *s
		row.Entities = nil
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.CreatedAt, row.UpdatedAt = now, now
		m.summaries[s.CorrelationID] = &row
		return row.ID, nil
	}

	existing.Path = s.Path
	existing.Method = s.Method
	existing.APIVersion = s.APIVersion
	existing.RequestAt = s.RequestAt
	if existing.ResponseStatus == nil {
		existing.IsError = s.IsError
	}
	if existing.ResponseAt == nil {
		existing.ResponseAt = s.ResponseAt
	}
	if existing.ResponseStatus == nil {
		existing.ResponseStatus = s.ResponseStatus
	}
	existing.UpdatedAt = now
	return existing.ID, nil
}

func (m *MemoryCallStore) BulkUpsertAssociations(_ context.Context, rows []model.Association) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()

	for _, row := range rows {
		list := m.associations[row.CallSummaryID]
		found := false
		for i := range list {
			if list[i].EntityType == row.EntityType && list[i].EntityID == row.EntityID {
				list[i].UpdatedAt = now
				found = true
				break
			}
		}
		if !found {
			m.nextAssocID++
			row.ID = m.nextAssocID
			row.CreatedAt, row.UpdatedAt = now, now
			list = append(list, row)
		}
		m.associations[row.CallSummaryID] = list
	}
	return nil
}

func (m *MemoryCallStore) ListCallSummaries(_ context.Context, f model.CallFilter) ([]*model.CallSummary, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.CallSummary
	for _, s := range m.summaries {
		if f.Path != "" && s.Path != f.Path {
			continue
		}
		if f.Method != "" && s.Method != f.Method {
			continue
		}
		if f.IsError != nil && s.IsError != *f.IsError {
			continue
		}
		if f.From != nil && s.RequestAt.Before(*f.From) {
			continue
		}
		if f.To != nil && s.RequestAt.After(*f.To) {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestAt.After(out[j].RequestAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryCallStore) GetCallSummary(_ context.Context, correlationID string) (*model.CallSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[correlationID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	c.Entities = append([]model.Association(nil), m.associations[s.ID]...)
	return &c, nil
}

func (m *MemoryCallStore) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-olderThan)
	var n int64
	for id, s := range m.summaries {
		if s.CreatedAt.Before(cutoff) {
			delete(m.associations, s.ID)
			delete(m.summaries, id)
			n++
		}
	}
	return n, nil
}
