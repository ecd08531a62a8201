package repository

import (
	"fmt"

	"github.com/yourusername/keiba-insight/internal/config"
)

// Repositories holds all repository implementations
type Repositories struct {
	RaceCards RaceCardRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(cfg *config.Config) (*Repositories, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	raceCards, err := NewCSVRaceCardRepository(cfg.RaceCards.Dir, cfg.Scraper.RacesPerDay)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		RaceCards: raceCards,
	}, nil
}
