package service

import (
	"time"

	"github.com/okian/patella/internal/adapters/repository"
	"github.com/okian/patella/internal/domain/classifier"
	"github.com/okian/patella/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many request IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClassifier installs a classifier directly, bypassing the model file.
func WithClassifier(c classifier.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithModelPath sets the MLP weights file loaded on Start.
func WithModelPath(path string) Option {
	return func(s *Service) {
		s.modelPath = path
	}
}

// WithHistoryDSN selects SQLite history storage.
func WithHistoryDSN(dsn string) Option {
	return func(s *Service) {
		s.historyDSN = dsn
	}
}

// WithHistoryStore installs a history store. The service closes it on Stop.
func WithHistoryStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.history = store
		}
	}
}

// WithHistoryLimit caps the retained diagnoses.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithDecisionRules sets the Stage3 confidence threshold and the ambiguity
// margin.
func WithDecisionRules(stage3Threshold, ambiguityMargin float64) Option {
	return func(s *Service) {
		s.stage3Threshold = stage3Threshold
		s.ambiguityMargin = ambiguityMargin
	}
}

// WithMaxFrames caps observations per diagnosis.
func WithMaxFrames(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxFrames = n
		}
	}
}

// WithFeatureParallelism bounds concurrent feature extraction.
func WithFeatureParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.featureParallelism = n
		}
	}
}

// WithRequestTimeout bounds one diagnosis.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}
