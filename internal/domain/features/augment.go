package features

import (
	"math/rand"
	"sync"

	"github.com/okian/patella/internal/domain/model"
)

// Default augmentation spread, in raw coordinate units.
const (
	DefaultShiftSigma  = 5.0
	DefaultJitterSigma = 2.0
)

// Perturber rewrites landmark coordinates before feature construction. It
// receives a private copy of the map and may modify it in place.
type Perturber interface {
	Perturb(m model.LandmarkMap) model.LandmarkMap
}

// PerturberFunc adapts a function to Perturber.
type PerturberFunc func(model.LandmarkMap) model.LandmarkMap

// Perturb calls f(m).
func (f PerturberFunc) Perturb(m model.LandmarkMap) model.LandmarkMap { return f(m) }

// GaussianPerturber shifts every present landmark by one shared Gaussian
// offset and then adds independent per-landmark jitter. Absent landmarks stay
// absent. Safe for concurrent use.
type GaussianPerturber struct {
	shiftSigma  float64
	jitterSigma float64

	mu  sync.Mutex
	rng *rand.Rand
}

// GaussianOption configures a GaussianPerturber.
type GaussianOption func(*GaussianPerturber)

// WithShiftSigma sets the standard deviation of the global shift.
func WithShiftSigma(sigma float64) GaussianOption {
	return func(g *GaussianPerturber) {
		if sigma >= 0 {
			g.shiftSigma = sigma
		}
	}
}

// WithJitterSigma sets the standard deviation of the per-landmark jitter.
func WithJitterSigma(sigma float64) GaussianOption {
	return func(g *GaussianPerturber) {
		if sigma >= 0 {
			g.jitterSigma = sigma
		}
	}
}

// WithSeed makes the noise sequence reproducible.
func WithSeed(seed int64) GaussianOption {
	return func(g *GaussianPerturber) {
		g.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // augmentation noise, not security sensitive
	}
}

// NewGaussianPerturber creates a perturber with the default spreads.
func NewGaussianPerturber(opts ...GaussianOption) *GaussianPerturber {
	g := &GaussianPerturber{
		shiftSigma:  DefaultShiftSigma,
		jitterSigma: DefaultJitterSigma,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec // augmentation noise, not security sensitive
	}
	return g
}

// Perturb applies shift and jitter to the present landmarks of m.
func (g *GaussianPerturber) Perturb(m model.LandmarkMap) model.LandmarkMap {
	g.mu.Lock()
	defer g.mu.Unlock()

	dx := g.rng.NormFloat64() * g.shiftSigma
	dy := g.rng.NormFloat64() * g.shiftSigma
	// Iterate in landmark order so a seeded perturber is reproducible.
	for _, l := range model.AllLandmarks() {
		p, ok := m[l]
		if !ok {
			continue
		}
		p.X += g.rng.NormFloat64()*g.jitterSigma + dx
		p.Y += g.rng.NormFloat64()*g.jitterSigma + dy
		m[l] = p
	}
	return m
}
