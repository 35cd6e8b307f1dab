package mlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/okian/patella/internal/domain/classifier"
	"github.com/okian/patella/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// jointSelector is a Linear(27,3) whose logits are the three joint angles.
func jointSelector() LayerSpec {
	w := make([][]float64, model.NumClasses)
	for i := range w {
		w[i] = make([]float64, model.FeatureLength)
		w[i][model.IndexKneeAngle+i] = 1
	}
	return LayerSpec{Kind: KindLinear, Weight: w, Bias: []float64{0, 0, 0}}
}

func row(knee, hip, ankle float64) []float64 {
	r := make([]float64, model.FeatureLength)
	r[model.IndexKneeAngle] = knee
	r[model.IndexHipAngle] = hip
	r[model.IndexAnkleAngle] = ankle
	return r
}

func randomWeights(rng *rand.Rand, in, hidden int) Weights {
	dense := func(out, in int) LayerSpec {
		w := make([][]float64, out)
		for i := range w {
			w[i] = make([]float64, in)
			for j := range w[i] {
				w[i][j] = rng.NormFloat64() * 0.3
			}
		}
		b := make([]float64, out)
		for i := range b {
			b[i] = rng.NormFloat64() * 0.1
		}
		return LayerSpec{Kind: KindLinear, Weight: w, Bias: b}
	}
	ones := make([]float64, hidden)
	zeros := make([]float64, hidden)
	for i := range ones {
		ones[i] = 1 + rng.Float64()
	}
	return Weights{Layers: []LayerSpec{
		dense(hidden, in),
		{Kind: KindBatchNorm, Gamma: ones, Beta: zeros, RunningMean: zeros, RunningVar: ones},
		{Kind: KindReLU},
		dense(hidden/2, hidden),
		{Kind: KindReLU},
		dense(model.NumClasses, hidden/2),
	}}
}

func TestModelClassify(t *testing.T) {
	ctx := context.Background()
	approx := cmpopts.EquateApprox(0, 1e-12)

	Convey("Given a linear network over the joint angles", t, func() {
		m, err := Compile(Weights{Layers: []LayerSpec{jointSelector()}})
		So(err, ShouldBeNil)

		Convey("The output is the softmax of the selected features", func() {
			out, err := m.Classify(ctx, [][]float64{row(0, 0, math.Ln2)})
			So(err, ShouldBeNil)
			So(cmp.Diff([]float64{0.25, 0.25, 0.5}, out[0], approx), ShouldBeEmpty)
		})

		Convey("Large logits stay finite", func() {
			out, err := m.Classify(ctx, [][]float64{row(1000, 999, -1000)})
			So(err, ShouldBeNil)
			So(out[0][0]+out[0][1]+out[0][2], ShouldAlmostEqual, 1, 1e-12)
			So(math.IsNaN(out[0][2]), ShouldBeFalse)
		})

		Convey("Short rows are rejected", func() {
			_, err := m.Classify(ctx, [][]float64{make([]float64, 10)})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("An empty batch is rejected", func() {
			_, err := m.Classify(ctx, nil)
			So(errors.Is(err, model.ErrEmptyInput), ShouldBeTrue)
		})
	})

	Convey("Given batch norm and relu layers", t, func() {
		Convey("An identity batch norm leaves logits unchanged", func() {
			bn := LayerSpec{
				Kind:        KindBatchNorm,
				Gamma:       []float64{2, 2, 2},
				Beta:        []float64{1, 1, 1},
				RunningMean: []float64{1, 1, 1},
				RunningVar:  []float64{3, 3, 3},
				Eps:         1,
			}
			m, err := Compile(Weights{Layers: []LayerSpec{jointSelector(), bn}})
			So(err, ShouldBeNil)
			out, err := m.Classify(ctx, [][]float64{row(0, 0, math.Ln2)})
			So(err, ShouldBeNil)
			So(cmp.Diff([]float64{0.25, 0.25, 0.5}, out[0], approx), ShouldBeEmpty)
		})

		Convey("ReLU clamps negative logits to zero", func() {
			m, err := Compile(Weights{Layers: []LayerSpec{jointSelector(), {Kind: KindReLU}}})
			So(err, ShouldBeNil)
			out, err := m.Classify(ctx, [][]float64{row(-5, -3, math.Ln2)})
			So(err, ShouldBeNil)
			So(cmp.Diff([]float64{0.25, 0.25, 0.5}, out[0], approx), ShouldBeEmpty)
		})
	})

	Convey("Given a random deep network", t, func() {
		rng := rand.New(rand.NewSource(3))
		m, err := Compile(randomWeights(rng, model.FeatureLength, 16))
		So(err, ShouldBeNil)

		batch := make([][]float64, 6)
		for i := range batch {
			batch[i] = make([]float64, model.FeatureLength)
			for j := range batch[i] {
				batch[i][j] = rng.Float64()
			}
		}

		Convey("A batch equals the rows evaluated one at a time", func() {
			all, err := m.Classify(ctx, batch)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, len(batch))
			for i := range batch {
				one, err := m.Classify(ctx, [][]float64{batch[i]})
				So(err, ShouldBeNil)
				So(cmp.Diff(one[0], all[i], cmpopts.EquateApprox(0, 1e-9)), ShouldBeEmpty)
			}
		})

		Convey("The input batch is not modified", func() {
			before := make([]float64, model.FeatureLength)
			copy(before, batch[0])
			_, err := m.Classify(ctx, batch)
			So(err, ShouldBeNil)
			So(batch[0], ShouldResemble, before)
		})

		Convey("It satisfies the classifier port behind the validator", func() {
			var c classifier.Classifier = classifier.NewValidating(m)
			out, err := c.Classify(ctx, batch[:2])
			So(err, ShouldBeNil)
			So(out, ShouldHaveLength, 2)
		})

		Convey("A cancelled context aborts the pass", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := m.Classify(cctx, batch)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given serialized weights", t, func() {
		w := Weights{Layers: []LayerSpec{jointSelector()}}
		raw, err := json.Marshal(w)
		So(err, ShouldBeNil)

		Convey("Load compiles them", func() {
			m, err := Load(bytes.NewReader(raw))
			So(err, ShouldBeNil)
			So(m, ShouldNotBeNil)
		})

		Convey("LoadFile reads them from disk", func() {
			path := filepath.Join(t.TempDir(), "weights.json")
			So(os.WriteFile(path, raw, 0o600), ShouldBeNil)
			m, err := LoadFile(path)
			So(err, ShouldBeNil)
			So(m, ShouldNotBeNil)

			_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
			So(err, ShouldNotBeNil)
		})

		Convey("Garbage is invalid", func() {
			_, err := Load(bytes.NewReader([]byte("{")))
			So(errors.Is(err, ErrInvalidWeights), ShouldBeTrue)
		})
	})

	Convey("Given malformed networks", t, func() {
		cases := map[string]Weights{
			"no layers":     {},
			"unknown layer": {Layers: []LayerSpec{{Kind: "conv"}}},
			"wrong output":  {Layers: []LayerSpec{{Kind: KindLinear, Weight: [][]float64{make([]float64, 27)}, Bias: []float64{0}}}},
			"wrong input":   {Layers: []LayerSpec{{Kind: KindLinear, Weight: [][]float64{{1}, {1}, {1}}, Bias: []float64{0, 0, 0}}}},
			"bias length":   {Layers: []LayerSpec{func() LayerSpec { l := jointSelector(); l.Bias = l.Bias[:2]; return l }()}},
			"norm width":    {Layers: []LayerSpec{jointSelector(), {Kind: KindBatchNorm, Gamma: []float64{1}}}},
		}
		for name, w := range cases {
			Convey("Compile rejects "+name, func() {
				_, err := Compile(w)
				So(errors.Is(err, ErrInvalidWeights), ShouldBeTrue)
			})
		}
	})
}
