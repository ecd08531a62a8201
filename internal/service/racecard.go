package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/cache"
	"github.com/yourusername/keiba-insight/internal/datasource"
	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/models"
	"github.com/yourusername/keiba-insight/internal/repository"
)

// RaceCardService serves stored race cards merged with live odds.
type RaceCardService struct {
	repo   repository.RaceCardRepository
	source datasource.RaceSource
	odds   *cache.OddsCache
	logger *logger.ScraperLogger
}

// NewRaceCardService creates the service. odds may be nil to always fetch.
func NewRaceCardService(repo repository.RaceCardRepository, source datasource.RaceSource, odds *cache.OddsCache, log *logrus.Logger) *RaceCardService {
	if log == nil {
		log = logger.Discard()
	}
	return &RaceCardService{
		repo:   repo,
		source: source,
		odds:   odds,
		logger: logger.NewScraperLogger(log),
	}
}

// ListRaces returns the stored races of a meeting in race-number order.
func (s *RaceCardService) ListRaces(ctx context.Context, date, venue string) ([]models.RaceSummary, error) {
	return s.repo.ListRaces(ctx, date, venue)
}

// GetRaceCard returns the entries of a stored race, with popularity and win
// odds joined on post position. When odds cannot be fetched the entries are
// returned without them. A race with no stored card yields an empty list.
func (s *RaceCardService) GetRaceCard(ctx context.Context, date, venue string, raceNumber int) ([]models.RaceCardEntry, error) {
	card, err := s.repo.Get(ctx, date, venue, raceNumber)
	if err != nil {
		if errors.Is(err, models.ErrRaceCardNotFound) {
			return []models.RaceCardEntry{}, nil
		}
		return nil, err
	}
	if card.RaceID == "" || len(card.Entries) == 0 {
		return card.Entries, nil
	}

	odds, err := s.fetchOdds(ctx, card.RaceID)
	if err != nil {
		s.logger.WithField("race_id", card.RaceID).WithError(err).Warn("Serving race card without odds")
		return card.Entries, nil
	}
	if len(odds) == 0 {
		return card.Entries, nil
	}
	return models.MergeOdds(card.Entries, odds), nil
}

// GetOdds returns live odds of a race. Upstream failures yield an empty list.
func (s *RaceCardService) GetOdds(ctx context.Context, raceID string) []models.OddsEntry {
	odds, err := s.fetchOdds(ctx, raceID)
	if err != nil {
		s.logger.WithField("race_id", raceID).WithError(err).Warn("Odds unavailable")
		return []models.OddsEntry{}
	}
	if odds == nil {
		return []models.OddsEntry{}
	}
	return odds
}

func (s *RaceCardService) fetchOdds(ctx context.Context, raceID string) ([]models.OddsEntry, error) {
	if s.odds != nil {
		if odds, ok := s.odds.Get(ctx, raceID); ok {
			s.logger.LogOddsFetched(raceID, len(odds), true)
			return odds, nil
		}
	}
	if s.source == nil {
		return nil, errors.New("no odds source configured")
	}

	odds, err := s.source.FetchOdds(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if s.odds != nil {
		s.odds.Set(ctx, raceID, odds)
	}
	return odds, nil
}
