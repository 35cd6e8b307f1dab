package decision

import (
	"fmt"

	"github.com/okian/patella/internal/domain/model"
)

// DecideBatch diagnoses a subject from several observations. Each
// distribution is renormalized, the mean is decided on, and the observation
// with the highest probability for the final class is reported as the
// representative. Ties go to the earliest observation, so the result does
// not depend on input order apart from the representative index itself.
func (c *Corrector) DecideBatch(dists []model.ProbabilityVector) (model.BatchDiagnosis, error) {
	if len(dists) == 0 {
		return model.BatchDiagnosis{}, fmt.Errorf("aggregate: %w", model.ErrEmptyInput)
	}

	normalized := make([][model.NumClasses]float64, len(dists))
	var sum [model.NumClasses]float64
	for i, d := range dists {
		if err := d.Validate(); err != nil {
			return model.BatchDiagnosis{}, fmt.Errorf("observation %d: %w", i, err)
		}
		normalized[i] = normalize(d)
		for k, v := range normalized[i] {
			sum[k] += v
		}
	}

	mean := make(model.ProbabilityVector, model.NumClasses)
	for k := range sum {
		mean[k] = sum[k] / float64(len(dists))
	}
	diag := c.decide(normalize(mean))

	rep := 0
	for i := 1; i < len(normalized); i++ {
		if normalized[i][diag.Class] > normalized[rep][diag.Class] {
			rep = i
		}
	}

	return model.BatchDiagnosis{
		Diagnosis:                   diag,
		Representative:              rep,
		RepresentativeProbabilities: normalized[rep],
		Observations:                len(dists),
	}, nil
}
