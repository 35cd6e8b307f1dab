package report

import (
	"encoding/json"
	"testing"

	"github.com/okian/patella/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func features(knee, hip, ankle, alignment float64) []float64 {
	f := make([]float64, model.FeatureLength)
	f[model.IndexKneeAngle] = knee
	f[model.IndexHipAngle] = hip
	f[model.IndexAnkleAngle] = ankle
	f[model.IndexAlignment] = alignment
	return f
}

func TestBuild(t *testing.T) {
	Convey("Given a Stage1 diagnosis", t, func() {
		d := model.Diagnosis{
			Class:         model.Stage1,
			Confidence:    35.0,
			Probabilities: [3]float64{0.10, 0.35, 0.55},
			Overridden:    true,
		}

		Convey("The report carries label, chart and guidance", func() {
			r := Build(d, features(0.8, 0.7, 0.75, 0.123))
			So(r.Status, ShouldEqual, "Stage 1")
			So(r.Class, ShouldEqual, model.Stage1)
			So(r.Confidence, ShouldEqual, 35.0)
			So(r.StageThreeWithheld, ShouldBeTrue)
			So(r.WalkFilterType, ShouldEqual, WalkFilterEasy)
			So(r.Recommendation.Intensity, ShouldEqual, "low")
			So(r.ChartData, ShouldResemble, []ChartItem{
				{Name: "Normal", Value: 10, Color: "success"},
				{Name: "Stage 1", Value: 35, Color: "warning"},
				{Name: "Stage 3", Value: 55, Color: "danger"},
			})
			So(r.FramesAnalyzed, ShouldEqual, 0)
			So(r.RepresentativeFrame, ShouldBeNil)
		})

		Convey("Joint angles are converted to degrees", func() {
			r := Build(d, features(0.8, 0.7, 0.75, 0.123))
			So(r.Metrics.KneeAngle, ShouldEqual, 144.0)
			So(r.Metrics.HipAngle, ShouldEqual, 126.0)
			So(r.Metrics.AnkleAngle, ShouldEqual, 135.0)
			So(*r.Metrics.AlignmentError, ShouldEqual, 0.12)
			So(r.JointAngles, ShouldResemble, []JointReading{
				{Joint: "hip", Angle: 126.0, Normal: "120-135°", Status: JointNormal},
				{Joint: "knee", Angle: 144.0, Normal: "135-150°", Status: JointNormal},
				{Joint: "ankle", Angle: 135.0, Normal: "125-140°", Status: JointNormal},
			})
		})

		Convey("Angles outside the normal range need caution", func() {
			r := Build(d, features(0.5, 0.9, 0.2, 0))
			So(r.JointAngles[0].Status, ShouldEqual, JointCaution)
			So(r.JointAngles[1].Status, ShouldEqual, JointCaution)
			So(r.JointAngles[2].Status, ShouldEqual, JointCaution)
		})

		Convey("Missing features fall back to the default readouts", func() {
			r := Build(d, nil)
			So(r.Metrics.KneeAngle, ShouldEqual, DefaultKneeDegrees)
			So(r.Metrics.HipAngle, ShouldEqual, DefaultHipDegrees)
			So(r.Metrics.AnkleAngle, ShouldEqual, DefaultAnkleDegrees)
			So(r.Metrics.AlignmentError, ShouldBeNil)
			So(r.JointAngles[0].Status, ShouldEqual, JointNormal)
		})

		Convey("The JSON shape uses snake case keys", func() {
			raw, err := json.Marshal(Build(d, nil))
			So(err, ShouldBeNil)
			var m map[string]interface{}
			So(json.Unmarshal(raw, &m), ShouldBeNil)
			So(m, ShouldContainKey, "chart_data")
			So(m, ShouldContainKey, "walk_filter_type")
			So(m, ShouldNotContainKey, "representative_frame")
			So(m["metrics"], ShouldNotContainKey, "alignment_error")
		})
	})

	Convey("Given a batch diagnosis", t, func() {
		b := model.BatchDiagnosis{
			Diagnosis: model.Diagnosis{
				Class:         model.Normal,
				Confidence:    53.3,
				Probabilities: [3]float64{0.533, 0.217, 0.25},
			},
			Representative:              1,
			RepresentativeProbabilities: [3]float64{0.8, 0.15, 0.05},
			Observations:                3,
		}
		r := BuildBatch(b, features(0.8, 0.7, 0.75, 0.1))

		So(r.Status, ShouldEqual, "Normal")
		So(r.FramesAnalyzed, ShouldEqual, 3)
		So(r.RepresentativeFrame, ShouldResemble, &RepresentativeFrame{Index: 1, Confidence: 80.0, Status: "Normal"})
		So(r.WalkFilterType, ShouldEqual, WalkFilterNormal)
	})
}

func TestPrescriptions(t *testing.T) {
	Convey("Every class has guidance and a walk filter", t, func() {
		So(WalkFilterFor(model.Normal), ShouldEqual, WalkFilterNormal)
		So(WalkFilterFor(model.Stage1), ShouldEqual, WalkFilterEasy)
		So(WalkFilterFor(model.Stage3), ShouldEqual, WalkFilterRehab)
		So(WalkFilterFor(model.Severity(9)), ShouldEqual, WalkFilterRehab)
		So(PrescriptionFor(model.Stage3).Intensity, ShouldEqual, "minimal")
		So(PrescriptionFor(model.Severity(-1)).Intensity, ShouldEqual, "minimal")
	})

	Convey("Returned guidance is a copy", t, func() {
		p := PrescriptionFor(model.Normal)
		p.Warnings[0] = "changed"
		So(PrescriptionFor(model.Normal).Warnings[0], ShouldNotEqual, "changed")
	})

	Convey("Labels fall back to the severity name", t, func() {
		So(Label(model.Stage3), ShouldEqual, "Stage 3")
		So(Label(model.Severity(7)), ShouldEqual, "severity(7)")
	})
}
