// Package worker runs the pool that takes deliveries off the queue and
// hands them to the scoring pipeline.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gamebot/internal/domain/model"
	"github.com/okian/gamebot/pkg/logger"
	"github.com/okian/gamebot/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	defaultShutdownTimeout  = 30 * time.Second
)

// Processor scores one delivery end to end.
type Processor interface {
	Process(ctx context.Context, d model.Delivery) error
}

// Queue defines how workers receive deliveries.
type Queue interface {
	Dequeue() <-chan model.Delivery
	Close() error
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	size      int
	queue     Queue
	processor Processor
	logger    logger.Logger

	shutdownTimeout time.Duration
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	started         atomic.Bool

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool of size workers. A non-positive size defaults to
// twice the CPU count.
func NewPool(size int, q Queue, p Processor, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU() * defaultWorkerMultiplier
	}
	pool := &Pool{
		size:            size,
		queue:           q,
		processor:       p,
		logger:          logger.Named("worker-pool"),
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Start launches the workers. Processing runs under a context derived from
// ctx that Shutdown cancels only after its drain timeout.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))

	metrics.UpdateWorkerCount(p.size)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(p.size)

	for i := range p.size {
		p.wg.Add(1)
		go p.run(ctx, p.logger.Named("worker-"+strconv.Itoa(i)))
	}
}

func (p *Pool) run(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()
	for d := range p.queue.Dequeue() {
		metrics.RecordQueueDequeue()
		if !d.ReceivedAt.IsZero() {
			metrics.RecordQueueProcessingLatency(float64(time.Since(d.ReceivedAt).Milliseconds()))
		}
		if err := p.handle(ctx, d); err != nil {
			log.Error(ctx, "error processing delivery",
				logger.String("delivery", d.ID),
				logger.Error(err),
			)
		}
	}
}

func (p *Pool) handle(ctx context.Context, d model.Delivery) (err error) {
	start := time.Now()
	active := p.active.Add(1)
	metrics.UpdateWorkerActiveCount(int(active))
	metrics.UpdateWorkerIdleCount(p.size - int(active))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing delivery %s: %v", d.ID, r)
		}
		active := p.active.Add(-1)
		metrics.UpdateWorkerActiveCount(int(active))
		metrics.UpdateWorkerIdleCount(p.size - int(active))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		if err != nil {
			p.failed.Add(1)
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "process")
			return
		}
		p.processed.Add(1)
	}()
	return p.processor.Process(ctx, d)
}

// Shutdown closes the queue and waits for workers to drain it. If ctx or
// the shutdown timeout expires first, in-flight work is cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.started.Load() {
		return nil
	}
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.shutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}
	p.cancel()
	<-done
	p.logger.Warn(ctx, "worker shutdown timed out, in-flight deliveries cancelled")
	return fmt.Errorf("worker shutdown timed out")
}

// Stats reports pool counters.
type Stats struct {
	Workers   int
	Active    int64
	Processed int64
	Failed    int64
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.size,
		Active:    p.active.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}
