// Package service provides the diagnosis service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/patella/internal/adapters/classifier/mlp"
	"github.com/okian/patella/internal/adapters/mq/queue"
	"github.com/okian/patella/internal/adapters/mq/worker"
	"github.com/okian/patella/internal/adapters/repository"
	"github.com/okian/patella/internal/domain/classifier"
	"github.com/okian/patella/internal/domain/decision"
	"github.com/okian/patella/internal/domain/dedupe"
	"github.com/okian/patella/internal/domain/diagnosis"
	"github.com/okian/patella/internal/domain/model"
	"github.com/okian/patella/internal/domain/report"
	"github.com/okian/patella/pkg/logger"
	"github.com/okian/patella/pkg/metrics"
)

type pendingJob struct {
	requestID   string
	submittedAt time.Time
}

// diagnoserFunc adapts a function to worker.Diagnoser.
type diagnoserFunc func(ctx context.Context, obs []diagnosis.Observation) (diagnosis.Result, error)

func (f diagnoserFunc) Run(ctx context.Context, obs []diagnosis.Observation) (diagnosis.Result, error) {
	return f(ctx, obs)
}

// Service implements the API dependencies for the diagnosis system.
type Service struct {
	mu sync.RWMutex

	// Core components
	classifier classifier.Classifier
	pipeline   *diagnosis.Pipeline
	history    repository.Store
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	workerPool *worker.Pool

	pendingMu sync.Mutex
	pending   map[string]pendingJob

	// Configuration
	workerCount        int
	queueSize          int
	dedupeSize         int
	featureParallelism int
	maxFrames          int
	modelPath          string
	historyDSN         string
	historyLimit       int
	stage3Threshold    float64
	ambiguityMargin    float64
	requestTimeout     time.Duration

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		pending:            make(map[string]pendingJob),
		workerCount:        runtime.NumCPU(),
		queueSize:          1024,
		dedupeSize:         50_000,
		featureParallelism: 4,
		maxFrames:          64,
		historyLimit:       repository.DefaultLimit,
		stage3Threshold:    decision.DefaultStage3Threshold,
		ambiguityMargin:    decision.DefaultAmbiguityMargin,
		requestTimeout:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the model, opens the history and starts the workers. Workers
// outlive ctx cancellation and stop on Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting diagnosis service...")

	if s.classifier == nil && s.modelPath != "" {
		m, err := mlp.LoadFile(s.modelPath)
		if err != nil {
			return fmt.Errorf("load model %s: %w", s.modelPath, err)
		}
		s.classifier = m
		s.logger.Info(ctx, "model loaded", logger.String("path", s.modelPath))
	}

	var c classifier.Classifier
	if s.classifier != nil {
		c = instrument(s.classifier)
	} else {
		s.logger.Warn(ctx, "no model configured; predictions are unavailable")
	}
	s.pipeline = diagnosis.New(c,
		diagnosis.WithCorrector(decision.New(
			decision.WithStage3Threshold(s.stage3Threshold),
			decision.WithAmbiguityMargin(s.ambiguityMargin),
		)),
		diagnosis.WithParallelism(s.featureParallelism),
		diagnosis.WithMaxFrames(s.maxFrames),
	)

	if s.history == nil {
		if err := s.openHistory(ctx); err != nil {
			return err
		}
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.workerPool = worker.NewPool(s.workerCount, s.queue, diagnoserFunc(s.run), s,
		worker.WithPoolLogger(s.logger),
		worker.WithPoolJobTimeout(s.requestTimeout),
	)
	s.workerPool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "diagnosis service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("modelLoaded", s.pipeline.Ready()),
	)
	return nil
}

func (s *Service) openHistory(ctx context.Context) error {
	if s.historyDSN == "" {
		s.history = repository.NewMemoryStore(repository.WithLimit(s.historyLimit))
		s.logger.Info(ctx, "using in-memory history", logger.Int("limit", s.historyLimit))
		return nil
	}
	store, err := repository.OpenSQLite(ctx, s.historyDSN, repository.WithLimit(s.historyLimit))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	s.history = store
	s.logger.Info(ctx, "using sqlite history", logger.String("dsn", s.historyDSN), logger.Int("limit", s.historyLimit))
	return nil
}

// Stop drains queued jobs and closes the history.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping diagnosis service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		// Workers still running may write to the history; leave it open.
		s.cancel()
		s.started = false
		return err
	}
	s.cancel()
	err := s.history.Close()
	s.history = nil
	s.started = false
	if err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	s.logger.Info(ctx, "diagnosis service stopped")
	return nil
}

// Ready reports whether a classifier is loaded.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pipeline != nil && s.pipeline.Ready()
}

// Predict diagnoses synchronously within the request timeout.
func (s *Service) Predict(ctx context.Context, obs []diagnosis.Observation) (diagnosis.Result, error) {
	s.mu.RLock()
	p := s.pipeline
	s.mu.RUnlock()
	if p == nil {
		return diagnosis.Result{}, classifier.ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	return s.run(ctx, obs)
}

// Submit queues an asynchronous diagnosis. A requestID seen before returns
// the diagnosis ID it created and true.
func (s *Service) Submit(ctx context.Context, requestID string, obs []diagnosis.Observation) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", false, fmt.Errorf("service not started: %w", queue.ErrClosed)
	}
	if !s.pipeline.Ready() {
		return "", false, classifier.ErrUnavailable
	}
	if len(obs) == 0 {
		return "", false, fmt.Errorf("submit: %w", model.ErrEmptyInput)
	}
	if len(obs) > s.pipeline.MaxFrames() {
		return "", false, fmt.Errorf("%d observations exceed the limit of %d: %w", len(obs), s.pipeline.MaxFrames(), model.ErrValidation)
	}

	id := uuid.NewString()
	if bound, duplicate := s.deduper.Claim(ctx, requestID, id); duplicate {
		metrics.RecordDuplicate()
		s.logger.Debug(ctx, "duplicate submission",
			logger.String("request_id", requestID),
			logger.String("diagnosis_id", bound),
		)
		return bound, true, nil
	}

	s.addPending(id, requestID)
	job := diagnosis.Job{ID: id, RequestID: requestID, Observations: obs, SubmittedAt: time.Now().UTC()}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.removePending(id)
		s.deduper.Release(ctx, requestID)
		return "", false, fmt.Errorf("enqueue %s: %w", id, err)
	}
	s.logger.Debug(ctx, "diagnosis queued",
		logger.String("request_id", requestID),
		logger.String("diagnosis_id", id),
		logger.Int("frames", len(obs)),
	)
	return id, false, nil
}

// Get returns a stored diagnosis, or a pending record for a queued job.
func (s *Service) Get(ctx context.Context, id string) (repository.Record, error) {
	// Pending is checked first: a job leaves the pending set only after its
	// record is stored.
	if p, ok := s.pendingJob(id); ok {
		return repository.Record{
			ID:        id,
			RequestID: p.requestID,
			CreatedAt: p.submittedAt,
			Status:    repository.StatusPending,
		}, nil
	}
	h, err := s.historyStore()
	if err != nil {
		return repository.Record{}, err
	}
	return h.Get(ctx, id)
}

// List returns up to limit diagnoses, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]repository.Record, error) {
	h, err := s.historyStore()
	if err != nil {
		return nil, err
	}
	return h.List(ctx, limit)
}

// Profile returns the stored pet profile.
func (s *Service) Profile(ctx context.Context) (repository.Profile, error) {
	h, err := s.historyStore()
	if err != nil {
		return repository.Profile{}, err
	}
	return h.Profile(ctx)
}

// UpdateProfile applies a partial profile update.
func (s *Service) UpdateProfile(ctx context.Context, patch repository.ProfilePatch) (repository.Profile, error) {
	h, err := s.historyStore()
	if err != nil {
		return repository.Profile{}, err
	}
	return h.UpdateProfile(ctx, patch)
}

func (s *Service) historyStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, fmt.Errorf("service not started: %w", queue.ErrClosed)
	}
	return s.history, nil
}

// Complete stores a finished job. It is called by workers.
func (s *Service) Complete(ctx context.Context, job diagnosis.Job, res diagnosis.Result) error {
	d := res.Diagnosis
	rep := res.Report
	rec := repository.Record{
		ID:             job.ID,
		RequestID:      job.RequestID,
		CreatedAt:      time.Now().UTC(),
		Status:         repository.StatusCompleted,
		Class:          d.Class,
		Label:          report.Label(d.Class),
		Confidence:     d.Confidence,
		Frames:         d.Observations,
		Representative: d.Representative,
		Report:         &rep,
	}
	if err := s.history.Append(ctx, rec); err != nil {
		return fmt.Errorf("store %s: %w", job.ID, err)
	}
	s.removePending(job.ID)
	s.updateHistoryMetric(ctx)
	return nil
}

// Fail stores a failed job. It is called by workers.
func (s *Service) Fail(ctx context.Context, job diagnosis.Job, cause error) {
	rec := repository.Record{
		ID:        job.ID,
		RequestID: job.RequestID,
		CreatedAt: time.Now().UTC(),
		Status:    repository.StatusFailed,
		Frames:    len(job.Observations),
		Error:     cause.Error(),
	}
	if err := s.history.Append(ctx, rec); err != nil {
		s.logger.Error(ctx, "storing failed diagnosis",
			logger.String("diagnosis_id", job.ID),
			logger.Error(err),
		)
	}
	s.removePending(job.ID)
	s.updateHistoryMetric(ctx)
}

// run executes the pipeline and records diagnosis metrics.
func (s *Service) run(ctx context.Context, obs []diagnosis.Observation) (diagnosis.Result, error) {
	res, err := s.pipeline.Run(ctx, obs)
	if err != nil {
		metrics.RecordPipelineError(errorKind(err))
		return res, err
	}
	d := res.Diagnosis
	metrics.RecordDiagnosis(d.Class.String(), d.Overridden, d.TieBroken, d.Observations)
	metrics.RecordPipelineLatency(milliseconds(res.Elapsed))
	return res, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"modelLoaded": s.pipeline != nil && s.pipeline.Ready(),
	}
	if !s.started {
		return stats
	}

	s.pendingMu.Lock()
	stats["pending"] = len(s.pending)
	s.pendingMu.Unlock()
	stats["queueLength"] = s.queue.Len(ctx)
	stats["activeWorkers"] = s.workerPool.Active()
	stats["dedupeEntries"] = s.deduper.Size()
	if n, err := s.history.Count(ctx); err == nil {
		stats["historyRecords"] = n
		metrics.UpdateHistoryRecords(n)
	}
	return stats
}

func (s *Service) updateHistoryMetric(ctx context.Context) {
	if n, err := s.history.Count(ctx); err == nil {
		metrics.UpdateHistoryRecords(n)
	}
}

func (s *Service) addPending(id, requestID string) {
	s.pendingMu.Lock()
	s.pending[id] = pendingJob{requestID: requestID, submittedAt: time.Now().UTC()}
	s.pendingMu.Unlock()
}

func (s *Service) removePending(id string) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

func (s *Service) pendingJob(id string) (pendingJob, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	p, ok := s.pending[id]
	return p, ok
}

// instrument records classifier latency and errors.
func instrument(c classifier.Classifier) classifier.Classifier {
	return classifier.Func(func(ctx context.Context, batch [][]float64) ([][]float64, error) {
		start := time.Now()
		out, err := c.Classify(ctx, batch)
		metrics.RecordClassifierLatency(milliseconds(time.Since(start)))
		if err != nil {
			metrics.RecordClassifierError()
		}
		return out, err
	})
}

// errorKind labels pipeline failures for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, classifier.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, classifier.ErrMalformedOutput):
		return "malformed_output"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
