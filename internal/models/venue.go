package models

import "strings"

// VenueUnknown is used when a venue label matches no JRA course.
const VenueUnknown = "不明"

// JRAVenues lists the ten JRA racecourses.
var JRAVenues = []string{"札幌", "函館", "福島", "新潟", "東京", "中山", "中京", "京都", "阪神", "小倉"}

// ResolveVenue returns the first JRA venue contained in raw, or VenueUnknown.
// Labels such as "2回東京5日" resolve to "東京".
func ResolveVenue(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, v := range JRAVenues {
		if strings.Contains(raw, v) {
			return v
		}
	}
	return VenueUnknown
}

// IsJRAVenue reports whether name is one of JRAVenues.
func IsJRAVenue(name string) bool {
	for _, v := range JRAVenues {
		if v == name {
			return true
		}
	}
	return false
}
