package features

import (
	"strings"

	"github.com/okian/patella/internal/domain/model"
)

// Annotation is one labelled landmark as produced by manual annotation or a
// pose estimator.
type Annotation struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// MedicalRecord flags the affected limb. Value 1 marks the record that
// decides laterality.
type MedicalRecord struct {
	Value        int    `json:"value"`
	FootPosition string `json:"foot_position"`
}

// Record is an annotated observation in the landmark-source format.
type Record struct {
	Annotations    []Annotation    `json:"annotation_info"`
	MedicalRecords []MedicalRecord `json:"pet_medical_record_info,omitempty"`
	Size           string          `json:"size,omitempty"`
}

// ParseAnnotations maps annotations onto known landmarks. Unknown labels are
// ignored; a repeated label keeps its last coordinate.
func ParseAnnotations(annotations []Annotation) model.LandmarkMap {
	m := make(model.LandmarkMap, len(annotations))
	for _, a := range annotations {
		l, ok := model.LandmarkFromLabel(strings.TrimSpace(a.Label))
		if !ok {
			continue
		}
		m[l] = model.Point{X: a.X, Y: a.Y}
	}
	return m
}

// LateralityFromRecords returns left when the first flagged record names the
// left foot, right for any other flagged record, and unspecified when nothing
// is flagged.
func LateralityFromRecords(records []MedicalRecord) model.Laterality {
	for _, r := range records {
		if r.Value != 1 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(r.FootPosition), "left") {
			return model.LateralityLeft
		}
		return model.LateralityRight
	}
	return model.LateralityUnspecified
}

// Input converts the record into a feature Input.
func (r Record) Input() Input {
	return Input{
		Landmarks:  ParseAnnotations(r.Annotations),
		Laterality: LateralityFromRecords(r.MedicalRecords),
		Size:       model.ParseSizeClass(r.Size),
	}
}
