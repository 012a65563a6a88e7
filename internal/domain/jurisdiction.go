package domain

import "fmt"

// Jurisdiction is the court jurisdiction a task belongs to.
type Jurisdiction string

const (
	JurisdictionCrown       Jurisdiction = "CROWN"
	JurisdictionMagistrates Jurisdiction = "MAGISTRATES"
)

// IsValid checks if the jurisdiction is one of the recognized codes.
func (j Jurisdiction) IsValid() bool {
	switch j {
	case JurisdictionCrown, JurisdictionMagistrates:
		return true
	default:
		return false
	}
}

// ParseJurisdiction converts a jurisdiction code, rejecting unknown values.
func ParseJurisdiction(code string) (Jurisdiction, error) {
	j := Jurisdiction(code)
	if !j.IsValid() {
		return "", fmt.Errorf("%w: unrecognized jurisdiction %q", ErrInvalidArgument, code)
	}
	return j, nil
}
