package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/GoPolymarket/apilogs/internal/config"
	"gorm.io/gorm"
)

// EntityFinder reports which of the given ids still exist.
type EntityFinder interface {
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

// EntityFinderFunc adapts a function to EntityFinder.
type EntityFinderFunc func(ctx context.Context, ids []string) ([]string, error)

func (f EntityFinderFunc) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	return f(ctx, ids)
}

// TableFinder looks ids up in one table. Keys are compared as text so
// integer and uuid keys work alike.
type TableFinder struct {
	db    *gorm.DB
	table string
	key   string
}

func NewTableFinder(db *gorm.DB, table, key string) *TableFinder {
	if key == "" {
		key = "id"
	}
	return &TableFinder{db: db, table: table, key: key}
}

func (f *TableFinder) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keyText := fmt.Sprintf("CAST(%s AS TEXT)", f.key)
	var found []string
	err := f.db.WithContext(ctx).
		Table(f.table).
		Where(keyText+" IN ?", ids).
		Pluck(keyText, &found).Error
	if err != nil {
		return nil, fmt.Errorf("lookup %s.%s: %w", f.table, f.key, err)
	}
	return found, nil
}

// EntityRegistry maps logical entity types to their finders.
type EntityRegistry struct {
	mu      sync.RWMutex
	finders map[string]EntityFinder
}

func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{finders: make(map[string]EntityFinder)}
}

// NewEntityRegistryFromConfig registers a TableFinder per configured type.
func NewEntityRegistryFromConfig(db *gorm.DB, entities []config.EntityConfig) *EntityRegistry {
	r := NewEntityRegistry()
	for _, e := range entities {
		r.Register(e.Type, NewTableFinder(db, e.Table, e.Key))
	}
	return r
}

func (r *EntityRegistry) Register(entityType string, f EntityFinder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finders[entityType] = f
}

func (r *EntityRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.finders))
	for t := range r.finders {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// ExistingIDs resolves ids of one type. Unregistered types are an error.
func (r *EntityRegistry) ExistingIDs(ctx context.Context, entityType string, ids []string) ([]string, error) {
	r.mu.RLock()
	f, ok := r.finders[entityType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("entity type %q is not registered", entityType)
	}
	return f.ExistingIDs(ctx, ids)
}
