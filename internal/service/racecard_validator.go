package service

import (
	"fmt"
	"regexp"

	"github.com/yourusername/keiba-insight/internal/models"
)

// Field limits of a JRA race card.
const (
	maxFrameNumber  = 8
	maxPostPosition = 18
)

var raceIDPattern = regexp.MustCompile(`^\d{10}$`)

var validSexes = map[string]bool{"牡": true, "牝": true, "せん": true}

// RaceCardValidator checks scraped race cards before they are stored.
type RaceCardValidator struct {
	racesPerDay int
}

// NewRaceCardValidator creates a validator for meetings of racesPerDay races.
func NewRaceCardValidator(racesPerDay int) *RaceCardValidator {
	if racesPerDay <= 0 {
		racesPerDay = models.RacesPerDay
	}
	return &RaceCardValidator{racesPerDay: racesPerDay}
}

// ValidateRaceCard returns the problems that make a card unusable. A card
// with problems is not stored.
func (v *RaceCardValidator) ValidateRaceCard(card *models.RaceCard) []string {
	var errors []string

	if !raceIDPattern.MatchString(card.RaceID) {
		errors = append(errors, fmt.Sprintf("race_id must be 10 digits, got %q", card.RaceID))
	}

	if card.RaceNumber < 1 || card.RaceNumber > v.racesPerDay {
		errors = append(errors, fmt.Sprintf("race number out of range (1-%d), got %d", v.racesPerDay, card.RaceNumber))
	}

	if len(card.Entries) == 0 {
		errors = append(errors, "race card has no entries")
	}

	seen := make(map[int]bool, len(card.Entries))
	for i, e := range card.Entries {
		if e.HorseName == "" {
			errors = append(errors, fmt.Sprintf("entry %d: horse name is required", i+1))
		}
		if e.PostPosition == nil {
			continue
		}
		if seen[*e.PostPosition] {
			errors = append(errors, fmt.Sprintf("entry %d: duplicate post position %d", i+1, *e.PostPosition))
		}
		seen[*e.PostPosition] = true
	}

	return errors
}

// ValidateEntry returns suspicious values of one entry. They are reported
// but do not stop the card from being stored.
func (v *RaceCardValidator) ValidateEntry(entry *models.RaceCardEntry) []string {
	var warnings []string

	if entry.PostPosition == nil {
		warnings = append(warnings, "post position is missing")
	} else if *entry.PostPosition < 1 || *entry.PostPosition > maxPostPosition {
		warnings = append(warnings, fmt.Sprintf("post position out of range (1-%d), got %d", maxPostPosition, *entry.PostPosition))
	}

	if entry.FrameNumber != nil && (*entry.FrameNumber < 1 || *entry.FrameNumber > maxFrameNumber) {
		warnings = append(warnings, fmt.Sprintf("frame number out of range (1-%d), got %d", maxFrameNumber, *entry.FrameNumber))
	}

	if entry.Age != nil && *entry.Age <= 0 {
		warnings = append(warnings, "age must be positive")
	}

	if entry.Sex != "" && !validSexes[entry.Sex] {
		warnings = append(warnings, fmt.Sprintf("sex must be 牡, 牝 or せん, got %s", entry.Sex))
	}

	if entry.WeightCarried != nil && !entry.WeightCarried.IsPositive() {
		warnings = append(warnings, "weight carried must be positive")
	}

	return warnings
}
