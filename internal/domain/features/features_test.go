package features_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/okian/patella/internal/domain/features"
	"github.com/okian/patella/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func hindLimb() model.LandmarkMap {
	return model.LandmarkMap{
		model.IliacCrest:               {X: 100, Y: 200},
		model.FemoralGreaterTrochanter: {X: 200, Y: 300},
		model.FemorotibialJoint:        {X: 300, Y: 500},
		model.LateralMalleolus:         {X: 350, Y: 700},
		model.FifthMetatarsus:          {X: 400, Y: 750},
	}
}

func TestBuild(t *testing.T) {
	Convey("Given a hind-limb landmark map", t, func() {
		fv := features.Build(hindLimb(), model.LateralityRight, model.SizeSmall)

		Convey("Then the vector has 27 values", func() {
			So(len(fv), ShouldEqual, model.FeatureLength)
		})

		Convey("Then coordinates are scaled in landmark order", func() {
			want := []float64{
				0.1, 0.2, 0.2, 0.3, 0.3, 0.5, 0.35, 0.7, 0.4, 0.75,
				0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
			}
			So(cmp.Diff(want, fv[:20], approx), ShouldBeEmpty)
		})

		Convey("Then angles, alignment and limb ratio match the reference values", func() {
			want := []float64{
				0.9303955127113993,
				0.8975836176353345,
				0.8279791303591728,
				1.9999999400000015,
				0.9219544416061831,
			}
			So(cmp.Diff(want, fv[20:25], approx), ShouldBeEmpty)
		})

		Convey("Then the side channels come last", func() {
			So(fv[model.IndexLaterality], ShouldEqual, 1.0)
			So(fv[model.IndexSizeClass], ShouldEqual, 0.0)
		})
	})

	Convey("Given a map missing six of ten landmarks", t, func() {
		m := model.LandmarkMap{
			model.T13SpinousProcess:        {X: 500, Y: 250},
			model.DorsalScapularSpine:      {X: 700, Y: 240},
			model.Acromion:                 {X: 720, Y: 330},
			model.LateralHumeralEpicondyle: {X: 710, Y: 480},
		}
		fv := features.Build(m, model.LateralityUnspecified, model.SizeDefault)

		Convey("Then the vector still has 27 values", func() {
			So(len(fv.Slice()), ShouldEqual, 27)
		})

		Convey("Then missing coordinates contribute exactly zero", func() {
			for _, l := range []model.Landmark{
				model.IliacCrest, model.FemoralGreaterTrochanter, model.FemorotibialJoint,
				model.LateralMalleolus, model.FifthMetatarsus, model.UlnarStyloidProcess,
			} {
				So(fv.Coordinate(l), ShouldResemble, model.Point{})
			}
			So(fv.Coordinate(model.Acromion), ShouldResemble, model.Point{X: 0.72, Y: 0.33})
		})

		Convey("Then geometry over missing points is zero", func() {
			So(fv[model.IndexKneeAngle], ShouldEqual, 0.0)
			So(fv[model.IndexHipAngle], ShouldEqual, 0.0)
			So(fv[model.IndexAnkleAngle], ShouldEqual, 0.0)
			So(fv[model.IndexAlignment], ShouldEqual, 0.0)
			So(fv[model.IndexLimbRatio], ShouldEqual, 0.0)
		})
	})

	Convey("Given an empty map", t, func() {
		fv := features.Build(nil, model.LateralityLeft, model.SizeLarge)

		Convey("Then only the side channels are non-zero", func() {
			want := make([]float64, model.FeatureLength)
			want[model.IndexLaterality] = 0.0
			want[model.IndexSizeClass] = 1.0
			So(cmp.Diff(want, fv.Slice()), ShouldBeEmpty)
		})
	})

	Convey("Given a calf much longer than the thigh", t, func() {
		m := model.LandmarkMap{
			model.FemoralGreaterTrochanter: {X: 100, Y: 100},
			model.FemorotibialJoint:        {X: 101, Y: 100},
			model.LateralMalleolus:         {X: 101, Y: 900},
		}
		fv := features.Build(m, model.LateralityUnspecified, model.SizeDefault)

		Convey("Then the limb ratio is capped", func() {
			So(fv[model.IndexLimbRatio], ShouldEqual, features.MaxLimbRatio)
		})
	})
}

func TestBuilder(t *testing.T) {
	Convey("Given a builder without a perturber", t, func() {
		b := features.NewBuilder()
		in := features.Input{Landmarks: hindLimb(), Laterality: model.LateralityLeft, Size: model.SizeMedium}

		Convey("Then it matches Build exactly", func() {
			So(b.Build(in), ShouldResemble, features.Build(in.Landmarks, in.Laterality, in.Size))
		})
	})

	Convey("Given a builder with a Gaussian perturber", t, func() {
		original := hindLimb()
		in := features.Input{Landmarks: original, Laterality: model.LateralityLeft, Size: model.SizeMedium}

		Convey("When building twice with the same seed", func() {
			a := features.NewBuilder(features.WithPerturber(features.NewGaussianPerturber(features.WithSeed(3)))).Build(in)
			b := features.NewBuilder(features.WithPerturber(features.NewGaussianPerturber(features.WithSeed(3)))).Build(in)

			Convey("Then the vectors are identical", func() {
				So(a, ShouldResemble, b)
			})

			Convey("Then coordinates moved but absent landmarks stayed at zero", func() {
				So(a[0], ShouldNotEqual, 0.1)
				So(a.Coordinate(model.UlnarStyloidProcess), ShouldResemble, model.Point{})
			})

			Convey("Then the caller's map is untouched", func() {
				So(original, ShouldResemble, hindLimb())
			})
		})

		Convey("When the spreads are zero", func() {
			p := features.NewGaussianPerturber(features.WithShiftSigma(0), features.WithJitterSigma(0), features.WithSeed(1))
			got := features.NewBuilder(features.WithPerturber(p)).Build(in)

			Convey("Then the vector equals the unperturbed one", func() {
				So(got, ShouldResemble, features.Build(in.Landmarks, in.Laterality, in.Size))
			})
		})

		Convey("When a custom perturber rewrites coordinates", func() {
			shift := features.PerturberFunc(func(m model.LandmarkMap) model.LandmarkMap {
				for l, p := range m {
					m[l] = model.Point{X: p.X + 1000, Y: p.Y}
				}
				return m
			})
			got := features.NewBuilder(features.WithPerturber(shift)).Build(in)

			Convey("Then the perturbed coordinates feed the vector", func() {
				So(got[0], ShouldAlmostEqual, 1.1, 1e-12)
				So(got[model.IndexLimbRatio], ShouldAlmostEqual, 0.9219544416061831, 1e-9)
			})
		})
	})
}

func TestRecord(t *testing.T) {
	Convey("Given an annotated record", t, func() {
		r := features.Record{
			Annotations: []features.Annotation{
				{Label: "Iliac crest", X: 100, Y: 200},
				{Label: "Femorotibial joint", X: 300, Y: 500},
				{Label: "Nose", X: 1, Y: 1},
				{Label: "Femorotibial joint", X: 310, Y: 510},
			},
			MedicalRecords: []features.MedicalRecord{
				{Value: 0, FootPosition: "right"},
				{Value: 1, FootPosition: "left"},
			},
			Size: "대형견",
		}
		in := r.Input()

		Convey("Then known labels are mapped and the last duplicate wins", func() {
			So(in.Landmarks.Present(), ShouldEqual, 2)
			So(in.Landmarks.At(model.FemorotibialJoint), ShouldResemble, model.Point{X: 310, Y: 510})
		})

		Convey("Then the first flagged record decides laterality", func() {
			So(in.Laterality, ShouldEqual, model.LateralityLeft)
		})

		Convey("Then the size label is mapped", func() {
			So(in.Size, ShouldEqual, model.SizeLarge)
		})
	})

	Convey("Given records without a flagged limb", t, func() {
		So(features.LateralityFromRecords(nil), ShouldEqual, model.LateralityUnspecified)
		So(features.LateralityFromRecords([]features.MedicalRecord{{Value: 1, FootPosition: "rear"}}), ShouldEqual, model.LateralityRight)
	})
}
