// Package channel fans a call record out to named channels, each with its
// own redaction pipeline and sink.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/GoPolymarket/apilogs/internal/pkg/metrics"
	"github.com/GoPolymarket/apilogs/internal/redact"
	"golang.org/x/sync/errgroup"
)

// Sink receives the redacted view of a record.
type Sink interface {
	Emit(ctx context.Context, channel, message string, fields map[string]any) error
}

// Channel binds a name to a pipeline and a sink.
type Channel struct {
	Name     string
	Pipeline *redact.Pipeline
	Sink     Sink
}

// DispatchError is one channel's failure during Dispatch.
type DispatchError struct {
	Channel string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrInvalidChannel = errors.New("invalid channel")
)

// Manager is safe for concurrent use. Registration is expected at startup;
// Dispatch works on a snapshot, so late registrations only affect later calls.
type Manager struct {
	mu       sync.RWMutex
	order    []string
	channels map[string]*Channel
	limit    int
}

type Option func(*Manager)

// WithConcurrency dispatches to up to n channels at once. n <= 1 keeps
// dispatch sequential in registration order.
func WithConcurrency(n int) Option {
	return func(m *Manager) { m.limit = n }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{channels: make(map[string]*Channel)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register binds name to sink behind the given redactors. Re-registering a
// name replaces the binding in place.
func (m *Manager) Register(name string, sink Sink, redactors ...redact.Redactor) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidChannel)
	}
	if sink == nil {
		return fmt.Errorf("%w: %s has no sink", ErrInvalidChannel, name)
	}
	ch := &Channel{Name: name, Pipeline: redact.NewPipeline(redactors...), Sink: sink}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.channels[name]; !exists {
		m.order = append(m.order, name)
	}
	m.channels[name] = ch
	return nil
}

func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[name]; !ok {
		return false
	}
	delete(m.channels, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Channels lists channel names in registration order.
func (m *Manager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) Get(name string) (*Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *Manager) snapshot() []*Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Channel, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.channels[name])
	}
	return out
}

// Preview returns what the named channel would emit for rec.
func (m *Manager) Preview(name string, rec *model.LogRecord) (map[string]any, error) {
	ch, ok := m.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	return ch.render(rec)
}

// Dispatch emits rec on every channel. Each channel redacts its own copy,
// and a failing channel never stops the others. The returned error joins
// one *DispatchError per failed channel.
func (m *Manager) Dispatch(ctx context.Context, rec *model.LogRecord) error {
	channels := m.snapshot()
	errs := make([]error, len(channels))

	if m.limit > 1 && len(channels) > 1 {
		var g errgroup.Group
		g.SetLimit(m.limit)
		for i, ch := range channels {
			i, ch := i, ch
			g.Go(func() error {
				errs[i] = ch.dispatch(ctx, rec)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, ch := range channels {
			errs[i] = ch.dispatch(ctx, rec)
		}
	}
	return errors.Join(errs...)
}

func (c *Channel) render(rec *model.LogRecord) (map[string]any, error) {
	view, err := rec.ToMap()
	if err != nil {
		return nil, err
	}
	out, ok := c.Pipeline.Process(view).(map[string]any)
	if !ok {
		return nil, errors.New("redaction pipeline did not return an object")
	}
	return out, nil
}

func (c *Channel) dispatch(ctx context.Context, rec *model.LogRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		status := "ok"
		if err != nil {
			status = "error"
			err = &DispatchError{Channel: c.Name, Err: err}
		}
		metrics.DispatchTotal.WithLabelValues(c.Name, status).Inc()
	}()

	fields, err := c.render(rec)
	if err != nil {
		return err
	}
	return c.Sink.Emit(ctx, c.Name, rec.Method+" "+rec.URL, fields)
}

// Close closes every sink that holds resources.
func (m *Manager) Close() error {
	var errs []error
	for _, ch := range m.snapshot() {
		if c, ok := ch.Sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, &DispatchError{Channel: ch.Name, Err: err})
			}
		}
	}
	return errors.Join(errs...)
}
