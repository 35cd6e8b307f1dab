package report

import "github.com/okian/patella/internal/domain/model"

// WalkPrescription is the exercise guidance for a severity class.
type WalkPrescription struct {
	Duration        string   `json:"duration"`
	Frequency       string   `json:"frequency"`
	Intensity       string   `json:"intensity"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// Walk filter types used to pick suitable walking courses.
const (
	WalkFilterNormal = "normal"
	WalkFilterEasy   = "easy"
	WalkFilterRehab  = "rehab"
)

var prescriptions = map[model.Severity]WalkPrescription{
	model.Normal: {
		Duration:        "20-30 min",
		Frequency:       "2-3 times a day",
		Intensity:       "moderate",
		Warnings:        []string{"avoid excessive jumping and stairs"},
		Recommendations: []string{"walk on flat ground", "keep a steady pace", "rest enough"},
	},
	model.Stage1: {
		Duration:  "15-20 min",
		Frequency: "2-3 times a day",
		Intensity: "low",
		Warnings: []string{
			"minimize climbing stairs",
			"watch out for slippery floors",
			"avoid sudden changes of direction",
			"avoid jumping and strenuous exercise",
		},
		Recommendations: []string{"prefer flat walks", "walk slowly at a steady pace", "use a harness"},
	},
	model.Stage3: {
		Duration:  "5-10 min",
		Frequency: "as directed by a veterinarian",
		Intensity: "minimal",
		Warnings: []string{
			"no strenuous exercise",
			"no stairs or slopes",
			"light exercise only during post-treatment rehabilitation",
		},
		Recommendations: []string{"consult a veterinarian", "follow the rehabilitation plan", "monitor for pain"},
	},
}

var walkFilters = map[model.Severity]string{
	model.Normal: WalkFilterNormal,
	model.Stage1: WalkFilterEasy,
	model.Stage3: WalkFilterRehab,
}

// PrescriptionFor returns a copy of the guidance for s. Unknown classes get
// the most conservative guidance.
func PrescriptionFor(s model.Severity) WalkPrescription {
	p, ok := prescriptions[s]
	if !ok {
		p = prescriptions[model.Stage3]
	}
	p.Warnings = append([]string(nil), p.Warnings...)
	p.Recommendations = append([]string(nil), p.Recommendations...)
	return p
}

// WalkFilterFor maps a class to its walk filter type.
func WalkFilterFor(s model.Severity) string {
	if f, ok := walkFilters[s]; ok {
		return f
	}
	return WalkFilterRehab
}
