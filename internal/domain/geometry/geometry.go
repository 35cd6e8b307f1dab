// Package geometry provides total functions over landmark coordinates.
//
// None of the functions return errors. Degenerate geometry (coincident
// points, vertical segments, non-finite intermediates) resolves to a defined
// fallback value so that feature construction can never fail.
package geometry

import (
	"math"

	"github.com/okian/patella/internal/domain/model"
)

const (
	// Epsilon guards the denominators of the cosine and slope formulas.
	Epsilon = 1e-6
	// MaxAlignment caps the slope divergence of two segments.
	MaxAlignment = 5.0
	// Fallback is returned for degenerate geometry.
	Fallback = 0.0
)

// Distance returns the Euclidean distance between p1 and p2.
func Distance(p1, p2 model.Point) float64 {
	return math.Hypot(p1.X-p2.X, p1.Y-p2.Y)
}

// Angle returns the interior angle at vertex p2 of the triangle (p1, p2, p3)
// as a ratio of 180 degrees, in [0,1]. A triangle with a zero-length side
// yields Fallback.
func Angle(p1, p2, p3 model.Point) float64 {
	a := Distance(p2, p1)
	b := Distance(p2, p3)
	c := Distance(p3, p1)
	if a == 0 || b == 0 || c == 0 {
		return Fallback
	}

	cos := (a*a + b*b - c*c) / (2*a*b + Epsilon)
	if !finite(cos) {
		return Fallback
	}
	degrees := math.Acos(clamp(cos, -1, 1)) * 180 / math.Pi
	return clamp(degrees/180, 0, 1)
}

// Alignment returns the absolute difference between the slopes of segments
// (p1,p2) and (p3,p4), capped at MaxAlignment.
func Alignment(p1, p2, p3, p4 model.Point) float64 {
	dx1 := p2.X - p1.X + Epsilon
	dx2 := p4.X - p3.X + Epsilon
	if dx1 == 0 || dx2 == 0 {
		return Fallback
	}
	d := math.Abs((p2.Y-p1.Y)/dx1 - (p4.Y-p3.Y)/dx2)
	if !finite(d) {
		return Fallback
	}
	return math.Min(d, MaxAlignment)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
