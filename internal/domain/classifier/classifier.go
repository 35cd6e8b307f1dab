// Package classifier defines the contract for the pretrained severity model.
package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/patella/internal/domain/model"
)

// Classifier maps a batch of feature vectors to one probability distribution
// per vector. Evaluating a batch must equal evaluating each vector alone.
type Classifier interface {
	Classify(ctx context.Context, batch [][]float64) ([][]float64, error)
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, batch [][]float64) ([][]float64, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, batch [][]float64) ([][]float64, error) {
	return f(ctx, batch)
}

// Validating wraps a Classifier and enforces the batch shapes on both sides
// of the call.
type Validating struct {
	next Classifier
}

// NewValidating wraps next. A nil next makes every call fail with
// ErrUnavailable.
func NewValidating(next Classifier) *Validating {
	return &Validating{next: next}
}

// Classify validates the batch, calls the wrapped classifier and checks its
// response.
func (v *Validating) Classify(ctx context.Context, batch [][]float64) ([][]float64, error) {
	if v == nil || v.next == nil {
		return nil, ErrUnavailable
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("classify: %w", model.ErrEmptyInput)
	}
	for i, row := range batch {
		if _, err := model.FeatureVectorFromSlice(row); err != nil {
			return nil, fmt.Errorf("classify row %d: %w", i, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := v.next.Classify(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(out) != len(batch) {
		return nil, fmt.Errorf("got %d distributions for %d rows: %w", len(out), len(batch), ErrMalformedOutput)
	}
	for i, p := range out {
		if len(p) != model.NumClasses {
			return nil, fmt.Errorf("row %d has %d classes: %w", i, len(p), ErrMalformedOutput)
		}
		for _, x := range p {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("row %d is not finite: %w", i, ErrMalformedOutput)
			}
		}
	}
	return out, nil
}

// ClassifyVectors is a typed helper over Classify.
func ClassifyVectors(ctx context.Context, c Classifier, vectors []model.FeatureVector) ([]model.ProbabilityVector, error) {
	batch := make([][]float64, len(vectors))
	for i := range vectors {
		batch[i] = vectors[i].Slice()
	}
	out, err := c.Classify(ctx, batch)
	if err != nil {
		return nil, err
	}
	probs := make([]model.ProbabilityVector, len(out))
	for i := range out {
		probs[i] = model.ProbabilityVector(out[i])
	}
	return probs, nil
}
