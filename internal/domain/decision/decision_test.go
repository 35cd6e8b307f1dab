package decision

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/patella/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDecide(t *testing.T) {
	Convey("Given a default corrector", t, func() {
		c := New()

		Convey("Stage3 at exactly the threshold is kept", func() {
			d, err := c.Decide(model.ProbabilityVector{0.10, 0.30, 0.60})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage3)
			So(d.Confidence, ShouldEqual, 60.0)
			So(d.Overridden, ShouldBeFalse)
			So(d.TieBroken, ShouldBeFalse)
		})

		Convey("Stage3 a hair under the threshold is overridden", func() {
			d, err := c.Decide(model.ProbabilityVector{0.10, 0.30000005, 0.59999995})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage1)
			So(d.Overridden, ShouldBeTrue)
			So(d.TieBroken, ShouldBeFalse)
		})

		Convey("A gap a hair under the margin is a tie", func() {
			d, err := c.Decide(model.ProbabilityVector{0.40000005, 0.54999995, 0.05})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Normal)
			So(d.TieBroken, ShouldBeTrue)

			d, err = c.Decide(model.ProbabilityVector{0.40, 0.55, 0.05})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage1)
			So(d.TieBroken, ShouldBeFalse)
		})

		Convey("Stage3 below the threshold is overridden to the runner-up", func() {
			d, err := c.Decide(model.ProbabilityVector{0.10, 0.35, 0.55})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage1)
			So(d.Confidence, ShouldEqual, 35.0)
			So(d.Overridden, ShouldBeTrue)
		})

		Convey("A close top two resolves to the lower class", func() {
			d, err := c.Decide(model.ProbabilityVector{0.40, 0.45, 0.15})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Normal)
			So(d.Confidence, ShouldEqual, 40.0)
			So(d.TieBroken, ShouldBeTrue)
		})

		Convey("A gap of exactly the margin is not a tie", func() {
			d, err := c.Decide(model.ProbabilityVector{0.05, 0.55, 0.40})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage1)
			So(d.TieBroken, ShouldBeFalse)
		})

		Convey("A confident Stage3 survives both rules", func() {
			d, err := c.Decide(model.ProbabilityVector{0.05, 0.15, 0.80})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage3)
			So(d.Confidence, ShouldEqual, 80.0)
		})

		Convey("Unnormalized and out of range inputs are clipped then renormalized", func() {
			d, err := c.Decide(model.ProbabilityVector{-1, 2, 0})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage1)
			So(d.Probabilities[0], ShouldEqual, 0.0)
			So(d.Probabilities[1], ShouldAlmostEqual, 1, 1e-6)
			So(d.Confidence, ShouldEqual, 100.0)

			d, err = c.Decide(model.ProbabilityVector{2, 6, 2})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Normal)
			So(d.Confidence, ShouldEqual, 33.3)
		})

		Convey("An all zero vector falls back to Normal", func() {
			d, err := c.Decide(model.ProbabilityVector{0, 0, 0})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Normal)
			So(d.Confidence, ShouldEqual, 0.0)
		})

		Convey("A uniform vector resolves to Normal", func() {
			d, err := c.Decide(model.ProbabilityVector{1.0 / 3, 1.0 / 3, 1.0 / 3})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Normal)
		})

		Convey("NaN reads as zero", func() {
			d, err := c.Decide(model.ProbabilityVector{math.NaN(), 0.2, 0.8})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage3)
			So(d.Confidence, ShouldEqual, 80.0)
			So(d.Probabilities[model.Normal], ShouldEqual, 0.0)
		})

		Convey("Wrong length is a validation error", func() {
			_, err := c.Decide(model.ProbabilityVector{0.5, 0.5})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given custom thresholds", t, func() {
		Convey("A lower bar keeps a weaker Stage3", func() {
			c := New(WithStage3Threshold(0.5), WithAmbiguityMargin(0))
			d, err := c.Decide(model.ProbabilityVector{0.10, 0.35, 0.55})
			So(err, ShouldBeNil)
			So(d.Class, ShouldEqual, model.Stage3)
		})

		Convey("Out of range options are ignored", func() {
			c := New(WithStage3Threshold(2), WithAmbiguityMargin(-1))
			So(c.Stage3Threshold(), ShouldEqual, DefaultStage3Threshold)
			So(c.AmbiguityMargin(), ShouldEqual, DefaultAmbiguityMargin)
		})
	})
}

func TestDecideProperties(t *testing.T) {
	Convey("Given random distributions", t, func() {
		c := New()
		rng := rand.New(rand.NewSource(11))

		Convey("Stage3 is only reported at or above the bar and never on a close call", func() {
			for i := 0; i < 2000; i++ {
				p := model.ProbabilityVector{rng.Float64(), rng.Float64(), rng.Float64()}
				d, err := c.Decide(p)
				So(err, ShouldBeNil)
				So(d.Class.Valid(), ShouldBeTrue)
				So(d.Confidence, ShouldBeBetweenOrEqual, 0.0, 100.0)
				if d.Class == model.Stage3 {
					q := exact(d.Probabilities)
					So(q[model.Stage3], ShouldBeGreaterThanOrEqualTo, DefaultStage3Threshold-boundaryTolerance)
					So(q[2]-maxOf(q[0], q[1]), ShouldBeGreaterThanOrEqualTo, DefaultAmbiguityMargin-boundaryTolerance)
				}
			}
		})
	})
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func TestNormalize(t *testing.T) {
	Convey("Normalize clips and rescales", t, func() {
		n, err := Normalize(model.ProbabilityVector{0.2, 0.2, 3})
		So(err, ShouldBeNil)
		So(n[0]+n[1]+n[2], ShouldAlmostEqual, 1, 1e-6)
		So(n[2], ShouldAlmostEqual, 1/1.4, 1e-6)

		_, err = Normalize(model.ProbabilityVector{1})
		So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
	})
}

func TestDecideBatch(t *testing.T) {
	Convey("Given a default corrector", t, func() {
		c := New()

		Convey("One observation matches Decide on its renormalized distribution", func() {
			p := model.ProbabilityVector{0.12, 0.33, 0.55}
			n, err := Normalize(p)
			So(err, ShouldBeNil)
			single, err := c.Decide(n)
			So(err, ShouldBeNil)

			batch, err := c.DecideBatch([]model.ProbabilityVector{p})
			So(err, ShouldBeNil)
			So(batch.Diagnosis, ShouldResemble, single)
			So(batch.Representative, ShouldEqual, 0)
			So(batch.Observations, ShouldEqual, 1)
		})

		Convey("The mean decides and the strongest supporter is representative", func() {
			dists := []model.ProbabilityVector{
				{0.70, 0.20, 0.10},
				{0.80, 0.15, 0.05},
				{0.10, 0.30, 0.60},
			}
			batch, err := c.DecideBatch(dists)
			So(err, ShouldBeNil)
			So(batch.Class, ShouldEqual, model.Normal)
			So(batch.Confidence, ShouldEqual, 53.3)
			So(batch.Representative, ShouldEqual, 1)
			So(batch.RepresentativeProbabilities[0], ShouldAlmostEqual, 0.8, 1e-6)
		})

		Convey("Equal support picks the first observation", func() {
			dists := []model.ProbabilityVector{
				{0.1, 0.8, 0.1},
				{0.1, 0.8, 0.1},
			}
			batch, err := c.DecideBatch(dists)
			So(err, ShouldBeNil)
			So(batch.Class, ShouldEqual, model.Stage1)
			So(batch.Representative, ShouldEqual, 0)
		})

		Convey("Order does not change the decision", func() {
			rng := rand.New(rand.NewSource(5))
			dists := make([]model.ProbabilityVector, 9)
			for i := range dists {
				dists[i] = model.ProbabilityVector{rng.Float64(), rng.Float64(), rng.Float64()}
			}
			want, err := c.DecideBatch(dists)
			So(err, ShouldBeNil)

			shuffled := append([]model.ProbabilityVector(nil), dists...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			got, err := c.DecideBatch(shuffled)
			So(err, ShouldBeNil)
			So(got.Class, ShouldEqual, want.Class)
			So(got.Confidence, ShouldEqual, want.Confidence)
			So(shuffled[got.Representative][got.Class], ShouldAlmostEqual, dists[want.Representative][want.Class], 1e-12)
		})

		Convey("An empty batch is rejected", func() {
			_, err := c.DecideBatch(nil)
			So(errors.Is(err, model.ErrEmptyInput), ShouldBeTrue)
		})

		Convey("A malformed observation is rejected", func() {
			_, err := c.DecideBatch([]model.ProbabilityVector{{0.2, 0.3, 0.5}, {0.5}})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}
