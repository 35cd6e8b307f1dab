package model

import "strings"

// Laterality encodes which limb the observation concerns.
type Laterality float64

// Laterality values.
const (
	LateralityLeft        Laterality = 0.0
	LateralityUnspecified Laterality = 0.5
	LateralityRight       Laterality = 1.0
)

// ParseLaterality maps "left"/"right" to their indicator. Anything else is
// unspecified.
func ParseLaterality(s string) Laterality {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return LateralityLeft
	case "right", "r":
		return LateralityRight
	default:
		return LateralityUnspecified
	}
}

// SizeClass encodes the body-size category of the subject.
type SizeClass float64

// Size classes. Medium doubles as the neutral default.
const (
	SizeSmall   SizeClass = 0.0
	SizeMedium  SizeClass = 0.5
	SizeLarge   SizeClass = 1.0
	SizeDefault           = SizeMedium
)

// ParseSizeClass maps English or Korean size labels. Unknown or empty labels
// resolve to SizeDefault.
func ParseSizeClass(s string) SizeClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small", "소형견":
		return SizeSmall
	case "medium", "중형견":
		return SizeMedium
	case "large", "대형견":
		return SizeLarge
	default:
		return SizeDefault
	}
}
