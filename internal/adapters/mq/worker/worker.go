// Package worker runs queued diagnosis jobs.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/patella/internal/domain/diagnosis"
	"github.com/okian/patella/pkg/logger"
	"github.com/okian/patella/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultJobTimeout       = 30 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = diagnosis.Job

// Diagnoser runs the diagnosis pipeline.
type Diagnoser interface {
	Run(ctx context.Context, obs []diagnosis.Observation) (diagnosis.Result, error)
}

// Sink receives job outcomes.
type Sink interface {
	Complete(ctx context.Context, job Job, res diagnosis.Result) error
	Fail(ctx context.Context, job Job, err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue is closed and drained.
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	diagnoser  Diagnoser
	sink       Sink
	name       string
	jobTimeout time.Duration
	active     *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker. The global logger is used unless
// WithLogger is given.
func NewInMemoryWorker(queue Queue, diagnoser Diagnoser, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      queue,
		diagnoser:  diagnoser,
		sink:       sink,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		active:     new(atomic.Int64),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get()
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job Job) {
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	res, err := w.diagnoser.Run(jobCtx, job.Observations)
	if err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "diagnosis failed",
			logger.String("diagnosis_id", job.ID),
			logger.String("request_id", job.RequestID),
			logger.Error(err),
		)
		w.sink.Fail(ctx, job, err)
		return
	}

	if err := w.sink.Complete(ctx, job, res); err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "storing diagnosis failed",
			logger.String("diagnosis_id", job.ID),
			logger.Error(err),
		)
		w.sink.Fail(ctx, job, err)
		return
	}

	w.logger.Debug(ctx, "diagnosis completed",
		logger.String("diagnosis_id", job.ID),
		logger.String("class", res.Diagnosis.Class.String()),
		logger.Float64("confidence", res.Diagnosis.Confidence),
		logger.Duration("took", time.Since(start)),
	)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers    []*InMemoryWorker
	queue      Queue
	jobTimeout time.Duration
	active     atomic.Int64
	logger     logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one uses a
// multiple of the CPU count.
func NewPool(workerCount int, queue Queue, diagnoser Diagnoser, sink Sink, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers:    make([]*InMemoryWorker, workerCount),
		queue:      queue,
		jobTimeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get()
	}
	for i := range p.workers {
		w := NewInMemoryWorker(queue, diagnoser, sink,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
			WithJobTimeout(p.jobTimeout),
		)
		w.active = &p.active
		p.workers[i] = w
	}
	p.logger = p.logger.Named("worker-pool")

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers currently running a job.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
