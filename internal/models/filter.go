package models

import "strconv"

// FilterParams carries the raw query values of a horse history request.
type FilterParams struct {
	TrackType      string
	DistanceMin    string
	DistanceMax    string
	Venue          string
	TrackCondition string
}

// FilterSet narrows the records used for rate computation. Every set field
// must match (AND); nil or empty fields are ignored.
type FilterSet struct {
	TrackSurface    *TrackSurface
	DistanceMin     *int
	DistanceMax     *int
	Venue           string
	GroundCondition *GroundCondition
}

// ParseFilterSet builds a FilterSet, dropping values it cannot interpret.
func ParseFilterSet(p FilterParams) FilterSet {
	var f FilterSet
	if s, ok := ParseTrackSurface(p.TrackType); ok {
		f.TrackSurface = &s
	}
	f.DistanceMin = parseOptionalInt(p.DistanceMin)
	f.DistanceMax = parseOptionalInt(p.DistanceMax)
	f.Venue = NormalizeText(p.Venue)
	if c, ok := ParseGroundCondition(p.TrackCondition); ok {
		f.GroundCondition = &c
	}
	return f
}

func parseOptionalInt(s string) *int {
	s = NormalizeText(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// IsEmpty reports whether no filter is set.
func (f FilterSet) IsEmpty() bool {
	return f.TrackSurface == nil && f.DistanceMin == nil && f.DistanceMax == nil &&
		f.Venue == "" && f.GroundCondition == nil
}

// Matches reports whether r satisfies every set filter.
func (f FilterSet) Matches(r PastRace) bool {
	if f.TrackSurface != nil && r.Surface != *f.TrackSurface {
		return false
	}
	if f.DistanceMin != nil || f.DistanceMax != nil {
		if r.Distance <= 0 {
			return false
		}
		if f.DistanceMin != nil && r.Distance < *f.DistanceMin {
			return false
		}
		if f.DistanceMax != nil && r.Distance > *f.DistanceMax {
			return false
		}
	}
	if f.Venue != "" && r.Venue != f.Venue {
		return false
	}
	if f.GroundCondition != nil {
		c, ok := ClassifyGroundCondition(r.GroundCondition)
		if !ok || c != *f.GroundCondition {
			return false
		}
	}
	return true
}
