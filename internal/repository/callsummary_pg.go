package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	associationBatch = 500
)

type PostgresCallStore struct {
	db *gorm.DB
}

func NewPostgresCallStore(db *gorm.DB) *PostgresCallStore {
	return &PostgresCallStore{db: db}
}

// UpsertCallSummary inserts or updates the summary for its correlation id
// and returns the row id. Response fields already set are kept.
func (r *PostgresCallStore) UpsertCallSummary(ctx context.Context, s *model.CallSummary) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "correlation_id"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "path"}, Value: gorm.Expr("excluded.path")},
				{Column: clause.Column{Name: "method"}, Value: gorm.Expr("excluded.method")},
				{Column: clause.Column{Name: "api_version"}, Value: gorm.Expr("excluded.api_version")},
				{Column: clause.Column{Name: "request_at"}, Value: gorm.Expr("excluded.request_at")},
				{Column: clause.Column{Name: "response_at"}, Value: gorm.Expr("COALESCE(call_summaries.response_at, excluded.response_at)")},
				{Column: clause.Column{Name: "response_status"}, Value: gorm.Expr("COALESCE(call_summaries.response_status, excluded.response_status)")},
				{Column: clause.Column{Name: "is_error"}, Value: gorm.Expr("CASE WHEN call_summaries.response_status IS NULL THEN excluded.is_error ELSE call_summaries.is_error END")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).
		Create(s).Error
	if err != nil {
		return "", fmt.Errorf("upsert call summary %s: %w", s.CorrelationID, err)
	}

	var row model.CallSummary
	err = r.db.WithContext(ctx).
		Select("id").
		Where("correlation_id = ?", s.CorrelationID).
		Take(&row).Error
	if err != nil {
		return "", fmt.Errorf("read call summary id %s: %w", s.CorrelationID, err)
	}
	return row.ID, nil
}

// BulkUpsertAssociations writes all rows in one statement per batch. Rows
// already linked only get updated_at refreshed.
func (r *PostgresCallStore) BulkUpsertAssociations(ctx context.Context, rows []model.Association) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "call_summary_id"},
				{Name: "entity_type"},
				{Name: "entity_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).
		CreateInBatches(rows, associationBatch).Error
	if err != nil {
		return fmt.Errorf("upsert %d associations: %w", len(rows), err)
	}
	return nil
}

func (r *PostgresCallStore) ListCallSummaries(ctx context.Context, f model.CallFilter) ([]*model.CallSummary, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	q := r.db.WithContext(ctx).Model(&model.CallSummary{})
	if f.Path != "" {
		q = q.Where("path = ?", f.Path)
	}
	if f.Method != "" {
		q = q.Where("method = ?", f.Method)
	}
	if f.IsError != nil {
		q = q.Where("is_error = ?", *f.IsError)
	}
	if f.From != nil {
		q = q.Where("request_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("request_at <= ?", *f.To)
	}

	records := make([]*model.CallSummary, 0, limit)
	if err := q.Order("request_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list call summaries: %w", err)
	}
	return records, nil
}

func (r *PostgresCallStore) GetCallSummary(ctx context.Context, correlationID string) (*model.CallSummary, error) {
	var s model.CallSummary
	err := r.db.WithContext(ctx).
		Preload("Entities", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("correlation_id = ?", correlationID).
		Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call summary %s: %w", correlationID, err)
	}
	return &s, nil
}

// Prune deletes summaries created before now-olderThan. Associations go
// with them through the foreign key.
func (r *PostgresCallStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.CallSummary{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune call summaries: %w", res.Error)
	}
	return res.RowsAffected, nil
}
