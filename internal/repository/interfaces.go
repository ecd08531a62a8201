package repository

import (
	"context"

	"github.com/yourusername/keiba-insight/internal/models"
)

// RaceCardRepository defines the interface for race card storage. Cards are
// keyed by the ISO date of the meeting, the venue and the race number.
type RaceCardRepository interface {
	Save(ctx context.Context, date string, card *models.RaceCard) (string, error)
	Get(ctx context.Context, date, venue string, raceNumber int) (*models.RaceCard, error)
	ListRaces(ctx context.Context, date, venue string) ([]models.RaceSummary, error)
}
