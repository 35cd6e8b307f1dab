// Package model contains domain models passed between layers.
package model

// CoordinateScale divides raw landmark coordinates before they enter the
// feature vector. Source coordinates live on a 0..1000 grid.
const CoordinateScale = 1000.0

// Point is a 2D landmark coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmark identifies one of the anatomical points consulted by the
// feature transform.
type Landmark int

// Landmarks in feature-vector order. The order is load-bearing: a trained
// classifier consumes coordinates in exactly this sequence.
const (
	IliacCrest Landmark = iota
	FemoralGreaterTrochanter
	FemorotibialJoint
	LateralMalleolus
	FifthMetatarsus
	T13SpinousProcess
	DorsalScapularSpine
	Acromion
	LateralHumeralEpicondyle
	UlnarStyloidProcess

	landmarkCount
)

// NumLandmarks is the number of landmarks the transform consults.
const NumLandmarks = int(landmarkCount)

// landmarkLabels holds the annotation label for each landmark. The spelling
// matches the annotation source, including "precess".
var landmarkLabels = [NumLandmarks]string{
	"Iliac crest",
	"Femoral greater trochanter",
	"Femorotibial joint",
	"Lateral malleolus of the distal tibia",
	"Distal lateral aspect of the fifth metatarsus",
	"T13 Spinous precess",
	"Dorsal scapular spine",
	"Acromion/Greater tubercle",
	"Lateral humeral epicondyle",
	"Ulnar styloid process",
}

// AllLandmarks returns the landmarks in feature-vector order.
func AllLandmarks() []Landmark {
	out := make([]Landmark, NumLandmarks)
	for i := range out {
		out[i] = Landmark(i)
	}
	return out
}

// Label returns the annotation label of the landmark.
func (l Landmark) Label() string {
	if l < 0 || l >= landmarkCount {
		return ""
	}
	return landmarkLabels[l]
}

func (l Landmark) String() string { return l.Label() }

// LandmarkFromLabel resolves an annotation label. Unknown labels report false.
func LandmarkFromLabel(label string) (Landmark, bool) {
	for i, s := range landmarkLabels {
		if s == label {
			return Landmark(i), true
		}
	}
	return 0, false
}

// LandmarkMap maps landmarks to their coordinates. A landmark absent from the
// map is not an error: it resolves to the (0,0) sentinel.
type LandmarkMap map[Landmark]Point

// Lookup returns the coordinate and whether the landmark was supplied.
func (m LandmarkMap) Lookup(l Landmark) (Point, bool) {
	p, ok := m[l]
	return p, ok
}

// At returns the coordinate of l, or (0,0) when l is absent.
func (m LandmarkMap) At(l Landmark) Point {
	if p, ok := m.Lookup(l); ok {
		return p
	}
	return Point{}
}

// Present returns how many of the known landmarks were supplied.
func (m LandmarkMap) Present() int {
	n := 0
	for _, l := range AllLandmarks() {
		if _, ok := m[l]; ok {
			n++
		}
	}
	return n
}

// Clone returns a copy of the map.
func (m LandmarkMap) Clone() LandmarkMap {
	out := make(LandmarkMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
