package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/cespare/xxhash/v2"
)

type job struct {
	ctx    context.Context
	record *model.LogRecord
}

// workerPool routes each job by correlation id, so one id is always handled
// by the same worker, in submission order.
type workerPool struct {
	mu     sync.RWMutex
	closed bool
	queues []chan job
	wg     sync.WaitGroup
}

func newWorkerPool(workers, queueSize int, log *slog.Logger, handle func(context.Context, *model.LogRecord)) *workerPool {
	p := &workerPool{queues: make([]chan job, workers)}
	perWorker := max(1, queueSize/workers)
	for i := range p.queues {
		q := make(chan job, perWorker)
		p.queues[i] = q
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range q {
				run(log, handle, j)
			}
		}()
	}
	return p
}

func run(log *slog.Logger, handle func(context.Context, *model.LogRecord), j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("finalization panicked", "correlation_id", j.record.CorrelationID, "panic", r)
		}
	}()
	handle(j.ctx, j.record)
}

// submit reports false when the target queue is full or the pool is closed.
func (p *workerPool) submit(j job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	q := p.queues[xxhash.Sum64String(j.record.CorrelationID)%uint64(len(p.queues))]
	select {
	case q <- j:
		return true
	default:
		return false
	}
}

func (p *workerPool) close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
