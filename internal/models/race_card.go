package models

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"
)

// Odds and carried weight are served as JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// RacesPerDay is the number of races held at one venue on one day.
const RacesPerDay = 12

// RaceDay is one venue's meeting on one date as listed in the monthly schedule.
type RaceDay struct {
	Date   string `json:"date"`
	Venue  string `json:"venue"`
	BaseID string `json:"base_id"`
}

var baseIDPattern = regexp.MustCompile(`^\d{8}$`)

// RaceID builds the full race identifier of race number n on this day.
func (d RaceDay) RaceID(n int) (string, error) {
	return BuildRaceID(d.BaseID, n)
}

// BuildRaceID appends a two-digit race number to an 8-digit base ID.
func BuildRaceID(baseID string, n int) (string, error) {
	if !baseIDPattern.MatchString(baseID) {
		return "", fmt.Errorf("%w: base id %q", ErrInvalidRaceID, baseID)
	}
	if n < 1 || n > 99 {
		return "", fmt.Errorf("%w: race number %d", ErrInvalidRaceID, n)
	}
	return fmt.Sprintf("%s%02d", baseID, n), nil
}

// RaceCardEntry is one horse in a race card, optionally merged with odds.
type RaceCardEntry struct {
	FrameNumber   *int             `json:"frame_number"`
	PostPosition  *int             `json:"post_position"`
	HorseName     string           `json:"horse_name"`
	Sex           string           `json:"sex"`
	Age           *int             `json:"age"`
	WeightCarried *decimal.Decimal `json:"weight_carried"`
	Jockey        string           `json:"jockey"`
	Trainer       string           `json:"trainer"`
	RaceID        string           `json:"race_id"`
	Date          string           `json:"date"`
	Venue         string           `json:"venue"`
	StartTime     string           `json:"start_time"`
	RaceName      string           `json:"race_name"`
	RaceNumber    string           `json:"race_number"`
	Popularity    *int             `json:"popularity,omitempty"`
	Odds          *decimal.Decimal `json:"odds,omitempty"`
}

// RaceCard is the entry list of one race.
type RaceCard struct {
	RaceID     string
	Date       string
	Venue      string
	RaceNumber int
	RaceName   string
	StartTime  string
	Entries    []RaceCardEntry
}

// RaceNumberLabel returns the "1R" style label.
func (c RaceCard) RaceNumberLabel() string {
	return strconv.Itoa(c.RaceNumber) + "R"
}

// RaceSummary is a race listed for a date and venue.
type RaceSummary struct {
	RaceNumber int    `json:"race_number"`
	RaceName   string `json:"race_name"`
}

// OddsEntry is the live win odds for one post position.
type OddsEntry struct {
	PostPosition int              `json:"post_position"`
	Popularity   *int             `json:"popularity"`
	WinOdds      *decimal.Decimal `json:"odds"`
}

// MergeOdds left-joins odds onto entries by post position.
func MergeOdds(entries []RaceCardEntry, odds []OddsEntry) []RaceCardEntry {
	byPost := make(map[int]OddsEntry, len(odds))
	for _, o := range odds {
		byPost[o.PostPosition] = o
	}
	merged := make([]RaceCardEntry, len(entries))
	for i, e := range entries {
		merged[i] = e
		if e.PostPosition == nil {
			continue
		}
		if o, ok := byPost[*e.PostPosition]; ok {
			merged[i].Popularity = o.Popularity
			merged[i].Odds = o.WinOdds
		}
	}
	return merged
}
