// Package report renders a diagnosis into the result a client displays:
// status label, per-class chart, joint angle readouts and walk guidance.
package report

import (
	"fmt"
	"math"

	"github.com/okian/patella/internal/domain/model"
)

// Joint readouts reported when no feature vector is available, in degrees.
const (
	DefaultKneeDegrees  = 140.0
	DefaultHipDegrees   = 125.0
	DefaultAnkleDegrees = 130.0
)

// Joint status values.
const (
	JointNormal  = "normal"
	JointCaution = "caution"
)

// Range is an inclusive range of joint angles in degrees.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether deg lies within r.
func (r Range) Contains(deg float64) bool { return deg >= r.Min && deg <= r.Max }

func (r Range) String() string { return fmt.Sprintf("%g-%g°", r.Min, r.Max) }

// Normal joint angle ranges.
var (
	HipRange   = Range{Min: 120, Max: 135}
	KneeRange  = Range{Min: 135, Max: 150}
	AnkleRange = Range{Min: 125, Max: 140}
)

var (
	labels = map[model.Severity]string{
		model.Normal: "Normal",
		model.Stage1: "Stage 1",
		model.Stage3: "Stage 3",
	}
	colors = map[model.Severity]string{
		model.Normal: "success",
		model.Stage1: "warning",
		model.Stage3: "danger",
	}
)

// Label returns the display label of s.
func Label(s model.Severity) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return s.String()
}

// ChartItem is one bar of the per-class chart.
type ChartItem struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// Metrics are the joint readouts derived from a feature vector.
type Metrics struct {
	KneeAngle      float64  `json:"knee_angle"`
	HipAngle       float64  `json:"hip_angle"`
	AnkleAngle     float64  `json:"ankle_angle"`
	AlignmentError *float64 `json:"alignment_error,omitempty"`
}

// JointReading is one joint angle against its normal range.
type JointReading struct {
	Joint  string  `json:"joint"`
	Angle  float64 `json:"angle"`
	Normal string  `json:"normal"`
	Status string  `json:"status"`
}

// RepresentativeFrame identifies the observation that best supports a batch
// diagnosis.
type RepresentativeFrame struct {
	Index      int     `json:"frame_index"`
	Confidence float64 `json:"confidence"`
	Status     string  `json:"status"`
}

// Report is the rendered result.
type Report struct {
	Status              string               `json:"status"`
	Class               model.Severity       `json:"class"`
	Confidence          float64              `json:"confidence"`
	StageThreeWithheld  bool                 `json:"stage3_withheld"`
	ChartData           []ChartItem          `json:"chart_data"`
	Metrics             Metrics              `json:"metrics"`
	JointAngles         []JointReading       `json:"joint_angles"`
	Recommendation      WalkPrescription     `json:"recommendation"`
	WalkFilterType      string               `json:"walk_filter_type"`
	FramesAnalyzed      int                  `json:"frames_analyzed,omitempty"`
	RepresentativeFrame *RepresentativeFrame `json:"representative_frame,omitempty"`
}

// Build renders a single-observation diagnosis. features may be nil, in
// which case the default joint readouts are reported.
func Build(d model.Diagnosis, features []float64) Report {
	m := MetricsFrom(features)
	return Report{
		Status:             Label(d.Class),
		Class:              d.Class,
		Confidence:         d.Confidence,
		StageThreeWithheld: d.Overridden,
		ChartData:          Chart(d.Probabilities),
		Metrics:            m,
		JointAngles:        JointReadings(m),
		Recommendation:     PrescriptionFor(d.Class),
		WalkFilterType:     WalkFilterFor(d.Class),
	}
}

// BuildBatch renders a multi-observation diagnosis. representative is the
// feature vector of the representative observation.
func BuildBatch(b model.BatchDiagnosis, representative []float64) Report {
	r := Build(b.Diagnosis, representative)
	r.FramesAnalyzed = b.Observations
	r.RepresentativeFrame = &RepresentativeFrame{
		Index:      b.Representative,
		Confidence: round(b.RepresentativeProbabilities[b.Class]*100, 1),
		Status:     r.Status,
	}
	return r
}

// Chart converts a distribution to integer percentages per class.
func Chart(p [model.NumClasses]float64) []ChartItem {
	items := make([]ChartItem, model.NumClasses)
	for i := range items {
		s := model.Severity(i)
		items[i] = ChartItem{
			Name:  Label(s),
			Value: int(math.RoundToEven(p[i] * 100)),
			Color: colors[s],
		}
	}
	return items
}

// MetricsFrom reads joint angles (degrees) and alignment error from a
// feature vector. A vector shorter than model.FeatureLength yields the
// default readouts and no alignment error.
func MetricsFrom(features []float64) Metrics {
	if len(features) < model.FeatureLength {
		return Metrics{
			KneeAngle:  DefaultKneeDegrees,
			HipAngle:   DefaultHipDegrees,
			AnkleAngle: DefaultAnkleDegrees,
		}
	}
	alignment := round(features[model.IndexAlignment], 2)
	return Metrics{
		KneeAngle:      round(features[model.IndexKneeAngle]*180, 1),
		HipAngle:       round(features[model.IndexHipAngle]*180, 1),
		AnkleAngle:     round(features[model.IndexAnkleAngle]*180, 1),
		AlignmentError: &alignment,
	}
}

// JointReadings compares each joint angle with its normal range.
func JointReadings(m Metrics) []JointReading {
	reading := func(joint string, deg float64, r Range) JointReading {
		status := JointCaution
		if r.Contains(deg) {
			status = JointNormal
		}
		return JointReading{Joint: joint, Angle: round(deg, 1), Normal: r.String(), Status: status}
	}
	return []JointReading{
		reading("hip", m.HipAngle, HipRange),
		reading("knee", m.KneeAngle, KneeRange),
		reading("ankle", m.AnkleAngle, AnkleRange),
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
