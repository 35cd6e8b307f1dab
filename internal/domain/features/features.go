// Package features turns landmark coordinates into the fixed-shape feature
// vector consumed by the classifier.
package features

import (
	"math"

	"github.com/okian/patella/internal/domain/geometry"
	"github.com/okian/patella/internal/domain/model"
)

// MaxLimbRatio caps the calf-to-thigh length ratio.
const MaxLimbRatio = 2.0

// Input is one observation of a subject: its landmarks plus the two
// categorical side channels.
type Input struct {
	Landmarks  model.LandmarkMap
	Laterality model.Laterality
	Size       model.SizeClass
}

// Build assembles the 27-value feature vector. It never fails: absent
// landmarks read as (0,0) and degenerate geometry falls back to 0.
func Build(landmarks model.LandmarkMap, laterality model.Laterality, size model.SizeClass) model.FeatureVector {
	var fv model.FeatureVector

	for i, l := range model.AllLandmarks() {
		p := landmarks.At(l)
		fv[2*i] = p.X / model.CoordinateScale
		fv[2*i+1] = p.Y / model.CoordinateScale
	}

	// Angles and lengths are evaluated on raw coordinates.
	iliac := landmarks.At(model.IliacCrest)
	trochanter := landmarks.At(model.FemoralGreaterTrochanter)
	stifle := landmarks.At(model.FemorotibialJoint)
	malleolus := landmarks.At(model.LateralMalleolus)
	metatarsus := landmarks.At(model.FifthMetatarsus)

	fv[model.IndexKneeAngle] = geometry.Angle(trochanter, stifle, malleolus)
	fv[model.IndexHipAngle] = geometry.Angle(iliac, trochanter, stifle)
	fv[model.IndexAnkleAngle] = geometry.Angle(stifle, malleolus, metatarsus)

	// The stifle is passed twice: thigh slope against calf slope.
	fv[model.IndexAlignment] = geometry.Alignment(trochanter, stifle, stifle, malleolus)

	thigh := geometry.Distance(trochanter, stifle)
	calf := geometry.Distance(stifle, malleolus)
	fv[model.IndexLimbRatio] = limbRatio(thigh, calf)

	fv[model.IndexLaterality] = float64(laterality)
	fv[model.IndexSizeClass] = float64(size)
	return fv
}

func limbRatio(thigh, calf float64) float64 {
	r := calf / (thigh + geometry.Epsilon)
	if math.IsNaN(r) {
		return 0
	}
	return math.Max(0, math.Min(r, MaxLimbRatio))
}

// Builder builds feature vectors with an optional coordinate Perturber.
// The zero value and NewBuilder() without options build deterministically.
type Builder struct {
	perturber Perturber
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithPerturber installs a coordinate perturbation strategy, used for
// training-time augmentation.
func WithPerturber(p Perturber) Option {
	return func(b *Builder) {
		b.perturber = p
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build perturbs the landmarks (when configured) and delegates to Build.
// The caller's map is never modified.
func (b *Builder) Build(in Input) model.FeatureVector {
	landmarks := in.Landmarks
	if b != nil && b.perturber != nil {
		landmarks = b.perturber.Perturb(landmarks.Clone())
	}
	return Build(landmarks, in.Laterality, in.Size)
}
