package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/GoPolymarket/apilogs/internal/pkg/logger"
	"github.com/GoPolymarket/apilogs/internal/pkg/metrics"
	"github.com/GoPolymarket/apilogs/internal/tracker"
	"github.com/cenkalti/backoff/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// CallStore persists call summaries and their entity links.
type CallStore interface {
	UpsertCallSummary(ctx context.Context, summary *model.CallSummary) (string, error)
	BulkUpsertAssociations(ctx context.Context, rows []model.Association) error
}

// EntityResolver reports which ids of an entity type still exist.
type EntityResolver interface {
	ExistingIDs(ctx context.Context, entityType string, ids []string) ([]string, error)
}

// Dispatcher emits a finished record on the output channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec *model.LogRecord) error
}

const lockStripes = 64

// Result describes one finalization.
type Result struct {
	CorrelationID string
	SummaryID     string
	Associated    []model.Association
	Missing       []model.EntityRef
	Err           error // joined *PersistenceError values, nil on full success
}

// CallLogService opens calls, tracks the entities they touch and finalizes
// them once the response is known.
type CallLogService struct {
	tracker    *tracker.Tracker
	store      CallStore
	resolver   EntityResolver
	dispatcher Dispatcher

	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	retryMax   time.Duration
	workers    int
	queueSize  int
	locks      [lockStripes]sync.Mutex
	pool       *workerPool
	dropNotice rate.Sometimes
}

type Option func(*CallLogService)

func WithLogger(l *slog.Logger) Option {
	return func(s *CallLogService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *CallLogService) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *CallLogService) { s.newID = fn }
}

// WithRetry retries the summary upsert with exponential backoff until
// maxElapsed has passed. Zero means a single attempt.
func WithRetry(maxElapsed time.Duration) Option {
	return func(s *CallLogService) { s.retryMax = maxElapsed }
}

// WithWorkers finalizes asynchronously on a pool of workers sharing
// queueSize slots.
func WithWorkers(workers, queueSize int) Option {
	return func(s *CallLogService) { s.workers, s.queueSize = workers, queueSize }
}

func NewCallLogService(tr *tracker.Tracker, store CallStore, resolver EntityResolver, dispatcher Dispatcher, opts ...Option) *CallLogService {
	s := &CallLogService{
		tracker:    tr,
		store:      store,
		resolver:   resolver,
		dispatcher: dispatcher,
		now:        time.Now,
		newID:      newCorrelationID,
		dropNotice: rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Component("calllog")
	}
	if s.workers > 0 {
		s.pool = newWorkerPool(s.workers, s.queueSize, s.logger, func(ctx context.Context, rec *model.LogRecord) {
			s.Finalize(ctx, rec)
		})
	}
	return s
}

func newCorrelationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *CallLogService) Now() time.Time { return s.now() }

func (s *CallLogService) Tracker() *tracker.Tracker { return s.tracker }

// Open returns the correlation id for a new call, generating one when the
// caller supplied none.
func (s *CallLogService) Open(correlationID string) string {
	if correlationID != "" {
		return correlationID
	}
	return s.newID()
}

// RegisterEntity records that the call touched an entity. The id is
// string-cast, so 42 and "42" are the same entity.
func (s *CallLogService) RegisterEntity(correlationID, entityType string, entityID any) {
	ref := model.NewEntityRef(entityType, entityID)
	s.tracker.Register(correlationID, ref.EntityType, ref.EntityID)
}

// Track registers an entity against the call carried by ctx. It reports
// false when ctx carries no call.
func (s *CallLogService) Track(ctx context.Context, entityType string, entityID any) bool {
	id, ok := CorrelationIDFromContext(ctx)
	if !ok {
		return false
	}
	s.RegisterEntity(id, entityType, entityID)
	return true
}

// Complete hands a finished record over for finalization: inline in sync
// mode, as a snapshot on the worker pool otherwise. It never fails the caller.
func (s *CallLogService) Complete(ctx context.Context, rec *model.LogRecord) {
	if rec == nil || rec.CorrelationID == "" {
		return
	}
	if s.pool == nil {
		s.Finalize(ctx, rec)
		return
	}
	if s.pool.submit(job{ctx: context.WithoutCancel(ctx), record: rec.Clone()}) {
		return
	}
	metrics.QueueDropped.Inc()
	metrics.FinalizeTotal.WithLabelValues(metrics.OutcomeDropped).Inc()
	s.dropNotice.Do(func() {
		s.logger.Warn("completion queue full, dropping calls", "correlation_id", rec.CorrelationID)
	})
	s.tracker.Clear(rec.CorrelationID)
}

// Finalize persists the summary, links tracked entities, dispatches the
// record and releases the tracker entry. Runs for one correlation id never
// overlap.
func (s *CallLogService) Finalize(ctx context.Context, rec *model.LogRecord) Result {
	id := rec.CorrelationID
	mu := &s.locks[xxhash.Sum64String(id)%lockStripes]
	mu.Lock()
	defer mu.Unlock()

	log := s.logger.With("correlation_id", id)
	res := Result{CorrelationID: id}

	summaryID, err := s.persistSummary(ctx, rec)
	if err != nil {
		log.Error("call summary not persisted, finalization aborted", "error", err)
		metrics.FinalizeTotal.WithLabelValues(metrics.OutcomePersistFailed).Inc()
		s.tracker.Clear(id)
		res.Err = &PersistenceError{Stage: StageSummary, CorrelationID: id, Err: err}
		return res
	}
	res.SummaryID = summaryID

	var errs []error
	rows, missing, lookupErrs := s.resolve(ctx, log, id, summaryID)
	res.Missing = missing
	errs = append(errs, lookupErrs...)

	if len(rows) > 0 {
		if err := s.store.BulkUpsertAssociations(ctx, rows); err != nil {
			log.Error("entity associations not persisted", "error", err, "count", len(rows))
			errs = append(errs, &PersistenceError{Stage: StageAssociations, CorrelationID: id, Err: err})
		} else {
			res.Associated = rows
		}
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, rec); err != nil {
			log.Error("channel dispatch failed", "error", err)
			errs = append(errs, &PersistenceError{Stage: StageDispatch, CorrelationID: id, Err: err})
		}
	}

	s.tracker.Clear(id)

	res.Err = errors.Join(errs...)
	outcome := metrics.OutcomeOK
	if res.Err != nil {
		outcome = metrics.OutcomePartial
	}
	metrics.FinalizeTotal.WithLabelValues(outcome).Inc()
	return res
}

func (s *CallLogService) persistSummary(ctx context.Context, rec *model.LogRecord) (string, error) {
	upsert := func() (string, error) {
		return s.store.UpsertCallSummary(ctx, model.SummaryFromRecord(rec))
	}
	if s.retryMax <= 0 {
		return upsert()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = s.retryMax
	return backoff.RetryWithData(upsert, backoff.WithContext(b, ctx))
}

type entityGroup struct {
	entityType string
	ids        []string
}

// resolve groups tracked refs by type in first-seen order and keeps the
// ones that still exist. A failed lookup drops only its own type.
func (s *CallLogService) resolve(ctx context.Context, log *slog.Logger, correlationID, summaryID string) ([]model.Association, []model.EntityRef, []error) {
	refs := s.tracker.Entries(correlationID)
	if len(refs) == 0 {
		return nil, nil, nil
	}
	if s.resolver == nil {
		return nil, refs, []error{&PersistenceError{Stage: StageLookup, CorrelationID: correlationID, Err: errors.New("no entity resolver configured")}}
	}

	var groups []*entityGroup
	byType := make(map[string]*entityGroup)
	for _, ref := range refs {
		g, ok := byType[ref.EntityType]
		if !ok {
			g = &entityGroup{entityType: ref.EntityType}
			byType[ref.EntityType] = g
			groups = append(groups, g)
		}
		g.ids = append(g.ids, ref.EntityID)
	}

	var (
		rows    []model.Association
		missing []model.EntityRef
		errs    []error
	)
	for _, g := range groups {
		existing, err := s.resolver.ExistingIDs(ctx, g.entityType, g.ids)
		if err != nil {
			log.Error("entity lookup failed", "entity_type", g.entityType, "error", err)
			errs = append(errs, &PersistenceError{
				Stage:         StageLookup,
				CorrelationID: correlationID,
				Err:           fmt.Errorf("%s: %w", g.entityType, err),
			})
			continue
		}
		found := make(map[string]struct{}, len(existing))
		for _, e := range existing {
			found[e] = struct{}{}
		}
		for _, eid := range g.ids {
			if _, ok := found[eid]; !ok {
				log.Warn("tracked entity not found", "entity_type", g.entityType, "entity_id", eid)
				metrics.LookupMisses.WithLabelValues(g.entityType).Inc()
				missing = append(missing, model.EntityRef{EntityType: g.entityType, EntityID: eid})
				continue
			}
			rows = append(rows, model.Association{
				CallSummaryID: summaryID,
				EntityType:    g.entityType,
				EntityID:      eid,
			})
		}
	}
	return rows, missing, errs
}

// Close stops accepting async completions and waits for queued ones.
func (s *CallLogService) Close(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.close(ctx)
}
