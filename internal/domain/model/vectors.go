package model

import (
	"fmt"
	"math"
)

// FeatureLength is the fixed length of a feature vector.
const FeatureLength = 27

// Feature vector layout. Indices 0..19 hold the scaled (x,y) pairs of the
// landmarks in AllLandmarks order.
const (
	IndexKneeAngle   = 2 * NumLandmarks
	IndexHipAngle    = IndexKneeAngle + 1
	IndexAnkleAngle  = IndexKneeAngle + 2
	IndexAlignment   = IndexKneeAngle + 3
	IndexLimbRatio   = IndexKneeAngle + 4
	IndexLaterality  = IndexKneeAngle + 5
	IndexSizeClass   = IndexKneeAngle + 6
	coordinateValues = 2 * NumLandmarks
)

// FeatureVector is the fixed-shape encoding of one observation.
type FeatureVector [FeatureLength]float64

// FeatureVectorFromSlice copies v into a FeatureVector. Any length other than
// FeatureLength, or a non-finite value, is an ErrValidation.
func FeatureVectorFromSlice(v []float64) (FeatureVector, error) {
	var fv FeatureVector
	if len(v) != FeatureLength {
		return fv, fmt.Errorf("feature vector has %d values, want %d: %w", len(v), FeatureLength, ErrValidation)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fv, fmt.Errorf("feature %d is not finite: %w", i, ErrValidation)
		}
	}
	copy(fv[:], v)
	return fv, nil
}

// Slice returns the vector as a new slice.
func (f FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureLength)
	copy(out, f[:])
	return out
}

// Coordinate returns the scaled coordinate of l as stored in the vector.
func (f FeatureVector) Coordinate(l Landmark) Point {
	i := 2 * int(l)
	if i < 0 || i+1 >= coordinateValues {
		return Point{}
	}
	return Point{X: f[i], Y: f[i+1]}
}

// NumClasses is the number of severity classes.
const NumClasses = 3

// Severity is a class index ordered by increasing severity.
type Severity int

// Severity classes.
const (
	Normal Severity = iota
	Stage1
	Stage3
)

// Valid reports whether s is a known class.
func (s Severity) Valid() bool { return s >= Normal && s <= Stage3 }

func (s Severity) String() string {
	switch s {
	case Normal:
		return "normal"
	case Stage1:
		return "stage1"
	case Stage3:
		return "stage3"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ProbabilityVector is a classifier output over the severity classes. It is
// not guaranteed to be normalized when received.
type ProbabilityVector []float64

// Validate checks the vector length.
func (p ProbabilityVector) Validate() error {
	if len(p) != NumClasses {
		return fmt.Errorf("probability vector has %d values, want %d: %w", len(p), NumClasses, ErrValidation)
	}
	return nil
}

// Diagnosis is the final, safety-biased decision for one subject.
type Diagnosis struct {
	Class Severity `json:"class"`
	// Confidence is the percentage of the chosen class, one decimal.
	Confidence float64 `json:"confidence"`
	// Probabilities is the clipped and renormalized distribution the
	// decision was taken on.
	Probabilities [NumClasses]float64 `json:"probabilities"`
	// Overridden is set when a low-confidence Stage3 argmax was withheld.
	Overridden bool `json:"stage3_override"`
	// TieBroken is set when the ambiguity rule picked the lower class.
	TieBroken bool `json:"tie_break"`
}

// BatchDiagnosis is a Diagnosis over several observations plus the index of
// the observation that best supports it.
type BatchDiagnosis struct {
	Diagnosis
	Representative int `json:"representative"`
	// RepresentativeProbabilities is the renormalized distribution of the
	// representative observation.
	RepresentativeProbabilities [NumClasses]float64 `json:"representative_probabilities"`
	Observations                int                 `json:"observations"`
}
