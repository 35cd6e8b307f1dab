package loadgen

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/okian/patella/internal/domain/features"
	"github.com/okian/patella/internal/domain/model"
	"github.com/okian/patella/pkg/logger"
)

// canonicalPosture is a standing dog seen from the side on the 0..1000 grid.
var canonicalPosture = model.LandmarkMap{
	model.IliacCrest:               {X: 620, Y: 300},
	model.FemoralGreaterTrochanter: {X: 650, Y: 380},
	model.FemorotibialJoint:        {X: 600, Y: 520},
	model.LateralMalleolus:         {X: 660, Y: 680},
	model.FifthMetatarsus:          {X: 670, Y: 780},
	model.T13SpinousProcess:        {X: 520, Y: 280},
	model.DorsalScapularSpine:      {X: 300, Y: 270},
	model.Acromion:                 {X: 260, Y: 380},
	model.LateralHumeralEpicondyle: {X: 280, Y: 520},
	model.UlnarStyloidProcess:      {X: 275, Y: 690},
}

var (
	sides = []string{"left", "right", ""}
	sizes = []string{"small", "medium", "large", ""}
)

// Generator produces synthetic subjects by perturbing the canonical posture.
// Not safe for concurrent use.
type Generator struct {
	perturber features.Perturber
	rng       *rand.Rand
	drop      float64
	frames    int
}

// NewGenerator builds a generator from the run configuration.
func NewGenerator(config *Config) *Generator {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Int63() //nolint:gosec // synthetic test data
	}
	frames := config.Frames
	if frames <= 0 {
		frames = DefaultFrames
	}
	return &Generator{
		perturber: features.NewGaussianPerturber(features.WithSeed(seed)),
		rng:       rand.New(rand.NewSource(seed + 1)), //nolint:gosec // synthetic test data
		drop:      config.DropProbability,
		frames:    frames,
	}
}

// Subject creates one subject. Side and size are shared by all its frames.
func (g *Generator) Subject() Subject {
	side := sides[g.rng.Intn(len(sides))]
	size := sizes[g.rng.Intn(len(sizes))]

	frames := make([]features.Record, g.frames)
	for i := range frames {
		frames[i] = g.frame(side, size)
	}
	return Subject{RequestID: uuid.NewString(), Frames: frames}
}

func (g *Generator) frame(side, size string) features.Record {
	m := g.perturber.Perturb(canonicalPosture.Clone())

	annotations := make([]features.Annotation, 0, len(m))
	for _, l := range model.AllLandmarks() {
		p, ok := m[l]
		if !ok || g.rng.Float64() < g.drop {
			continue
		}
		annotations = append(annotations, features.Annotation{Label: l.Label(), X: p.X, Y: p.Y})
	}

	rec := features.Record{Annotations: annotations, Size: size}
	if side != "" {
		rec.MedicalRecords = []features.MedicalRecord{{Value: 1, FootPosition: side}}
	}
	return rec
}

// generateSubjects creates config.Subjects subjects.
func generateSubjects(ctx context.Context, config *Config, stats *Stats) ([]Subject, error) {
	logger.Get().Info(ctx, "generating subjects", logger.Int("subjects", config.Subjects))

	gen := NewGenerator(config)
	subjects := make([]Subject, config.Subjects)
	for i := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		subjects[i] = gen.Subject()
	}

	stats.SubjectsGenerated = len(subjects)
	logger.Get().Info(ctx, "generated subjects", logger.Int("count", len(subjects)))
	return subjects, nil
}
