// Package decision turns classifier probabilities into a final,
// safety-biased diagnosis.
//
// A Stage3 verdict must clear a confidence bar, and when the two most likely
// classes are close the lower severity wins. Both rules prefer
// under-diagnosis to over-diagnosis.
package decision

import (
	"math"
	"sort"

	"github.com/okian/patella/internal/domain/model"
)

const (
	// normalizeEpsilon guards the renormalization denominator.
	normalizeEpsilon = 1e-8
	// boundaryTolerance absorbs float rounding when a rule compares a
	// probability against its threshold.
	boundaryTolerance = 1e-9
)

// Corrector applies the Stage3 override and the ambiguity tie-break. It is
// stateless and safe for concurrent use.
type Corrector struct {
	stage3Threshold float64
	ambiguityMargin float64
}

// New creates a Corrector with the default thresholds.
func New(opts ...Option) *Corrector {
	c := &Corrector{
		stage3Threshold: DefaultStage3Threshold,
		ambiguityMargin: DefaultAmbiguityMargin,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage3Threshold returns the configured Stage3 bar.
func (c *Corrector) Stage3Threshold() float64 { return c.stage3Threshold }

// AmbiguityMargin returns the configured tie-break margin.
func (c *Corrector) AmbiguityMargin() float64 { return c.ambiguityMargin }

// Normalize clips every component to [0,1] and divides by the sum plus a
// small epsilon. A vector of the wrong length is an ErrValidation.
func Normalize(probs model.ProbabilityVector) (model.ProbabilityVector, error) {
	if err := probs.Validate(); err != nil {
		return nil, err
	}
	n := normalize(probs)
	return model.ProbabilityVector(n[:]), nil
}

// Decide returns the diagnosis for one distribution.
func (c *Corrector) Decide(probs model.ProbabilityVector) (model.Diagnosis, error) {
	if err := probs.Validate(); err != nil {
		return model.Diagnosis{}, err
	}
	return c.decide(normalize(probs)), nil
}

func (c *Corrector) decide(p [model.NumClasses]float64) model.Diagnosis {
	d := model.Diagnosis{Probabilities: p}

	// The rules see the distribution without the epsilon shrink so that a
	// value exactly at a threshold reaches it.
	q := exact(p)
	idx := argmax(q)
	if idx == model.Stage3 && q[model.Stage3] < c.stage3Threshold-boundaryTolerance {
		withheld := q
		withheld[model.Stage3] = 0
		idx = argmax(withheld)
		d.Overridden = true
	}

	order := descending(q)
	if q[order[0]]-q[order[1]] < c.ambiguityMargin-boundaryTolerance {
		lower := order[0]
		if order[1] < lower {
			lower = order[1]
		}
		d.TieBroken = lower != idx
		idx = lower
	}

	d.Class = idx
	d.Confidence = roundPercent(p[idx])
	return d
}

func normalize(probs model.ProbabilityVector) [model.NumClasses]float64 {
	var p [model.NumClasses]float64
	sum := 0.0
	for i := range p {
		v := probs[i]
		if math.IsNaN(v) {
			v = 0
		}
		p[i] = math.Max(0, math.Min(1, v))
		sum += p[i]
	}
	for i := range p {
		p[i] /= sum + normalizeEpsilon
	}
	return p
}

// exact rescales p to sum to one. An all zero p is returned unchanged.
func exact(p [model.NumClasses]float64) [model.NumClasses]float64 {
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	if sum == 0 {
		return p
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}

// argmax returns the first index holding the maximum.
func argmax(p [model.NumClasses]float64) model.Severity {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return model.Severity(best)
}

// descending orders class indices by probability, highest first. Equal
// probabilities keep the lower class first.
func descending(p [model.NumClasses]float64) []model.Severity {
	order := []model.Severity{model.Normal, model.Stage1, model.Stage3}
	sort.SliceStable(order, func(i, j int) bool {
		return p[order[i]] > p[order[j]]
	})
	return order
}

// roundPercent converts a probability to a percentage with one decimal.
func roundPercent(p float64) float64 {
	return math.Round(p*1000) / 10
}
