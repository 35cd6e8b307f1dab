// Package diagnosis runs the full diagnosis of one subject: feature
// extraction per observation, one batched classifier call, the safety-biased
// decision and the rendered report.
package diagnosis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/patella/internal/domain/classifier"
	"github.com/okian/patella/internal/domain/decision"
	"github.com/okian/patella/internal/domain/features"
	"github.com/okian/patella/internal/domain/model"
	"github.com/okian/patella/internal/domain/report"
)

// Observation is one frame of a subject. Exactly one of Features and Input
// must be set.
type Observation struct {
	// Features is a precomputed feature vector.
	Features []float64
	// Input is a landmark observation to extract features from.
	Input *features.Input
}

// Result is the outcome of a run.
type Result struct {
	Diagnosis model.BatchDiagnosis
	Report    report.Report
	// Vectors are the feature vectors in observation order.
	Vectors []model.FeatureVector
	// ClassifyLatency is the time spent in the classifier.
	ClassifyLatency time.Duration
	// Elapsed is the total run time.
	Elapsed time.Duration
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	classifier  classifier.Classifier
	builder     *features.Builder
	corrector   *decision.Corrector
	parallelism int
	maxFrames   int
}

// New creates a Pipeline around c, which is wrapped in a validating
// classifier.
func New(c classifier.Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		builder:     features.NewBuilder(),
		corrector:   decision.New(),
		parallelism: defaultParallelism,
		maxFrames:   defaultMaxFrames,
	}
	if c != nil {
		p.classifier = classifier.NewValidating(c)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ready reports whether a classifier is installed.
func (p *Pipeline) Ready() bool { return p.classifier != nil }

// MaxFrames returns the observation cap.
func (p *Pipeline) MaxFrames() int { return p.maxFrames }

// Run diagnoses one subject from its observations.
func (p *Pipeline) Run(ctx context.Context, obs []Observation) (Result, error) {
	start := time.Now()
	if !p.Ready() {
		return Result{}, classifier.ErrUnavailable
	}
	if len(obs) == 0 {
		return Result{}, fmt.Errorf("diagnose: %w", model.ErrEmptyInput)
	}
	if len(obs) > p.maxFrames {
		return Result{}, fmt.Errorf("%d observations exceed the limit of %d: %w", len(obs), p.maxFrames, model.ErrValidation)
	}

	vectors, err := p.Vectors(ctx, obs)
	if err != nil {
		return Result{}, err
	}

	classifyStart := time.Now()
	probs, err := classifier.ClassifyVectors(ctx, p.classifier, vectors)
	classifyLatency := time.Since(classifyStart)
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}

	batch, err := p.corrector.DecideBatch(probs)
	if err != nil {
		return Result{}, err
	}

	rep := vectors[batch.Representative].Slice()
	var r report.Report
	if len(obs) == 1 {
		r = report.Build(batch.Diagnosis, rep)
	} else {
		r = report.BuildBatch(batch, rep)
	}

	return Result{
		Diagnosis:       batch,
		Report:          r,
		Vectors:         vectors,
		ClassifyLatency: classifyLatency,
		Elapsed:         time.Since(start),
	}, nil
}

// Vectors builds the feature vector of every observation, in order.
func (p *Pipeline) Vectors(ctx context.Context, obs []Observation) ([]model.FeatureVector, error) {
	vectors := make([]model.FeatureVector, len(obs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i := range obs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := p.vector(obs[i])
			if err != nil {
				return fmt.Errorf("observation %d: %w", i, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *Pipeline) vector(o Observation) (model.FeatureVector, error) {
	switch {
	case o.Features != nil && o.Input != nil:
		return model.FeatureVector{}, fmt.Errorf("both features and landmarks given: %w", model.ErrValidation)
	case o.Features != nil:
		return model.FeatureVectorFromSlice(o.Features)
	case o.Input != nil:
		return p.builder.Build(*o.Input), nil
	default:
		return model.FeatureVector{}, fmt.Errorf("observation is empty: %w", model.ErrValidation)
	}
}
