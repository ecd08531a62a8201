package service

import (
	"context"
	"sync"

	"github.com/yourusername/keiba-insight/internal/datasource"
	"github.com/yourusername/keiba-insight/internal/models"
)

// fakeSource is an in-memory RaceSource.
type fakeSource struct {
	mu        sync.Mutex
	days      []models.RaceDay
	cards     map[string][]models.RaceCard
	odds      map[string][]models.OddsEntry
	oddsErr   error
	schedErr  error
	oddsCalls int
	block     chan struct{}
}

var _ datasource.RaceSource = (*fakeSource)(nil)

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchSchedule(ctx context.Context, year, month int) ([]models.RaceDay, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.days, f.schedErr
}

func (f *fakeSource) FetchRaceCard(ctx context.Context, baseID string, n int) (*models.RaceCard, error) {
	for _, c := range f.cards[baseID] {
		if c.RaceNumber == n {
			card := c
			return &card, nil
		}
	}
	return nil, datasource.NewDataSourceError("fake", datasource.ErrCodeNotFound, baseID, datasource.ErrNotFound)
}

func (f *fakeSource) FetchDayRaceCards(ctx context.Context, baseID string) ([]models.RaceCard, error) {
	return append([]models.RaceCard(nil), f.cards[baseID]...), nil
}

func (f *fakeSource) FetchOdds(ctx context.Context, raceID string) ([]models.OddsEntry, error) {
	f.mu.Lock()
	f.oddsCalls++
	f.mu.Unlock()
	if f.oddsErr != nil {
		return nil, f.oddsErr
	}
	return f.odds[raceID], nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.oddsCalls
}
