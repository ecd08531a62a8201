package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-insight/internal/cache"
	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/models"
	"github.com/yourusername/keiba-insight/internal/repository"
)

const (
	cardDate  = "2025-05-26"
	cardVenue = "東京"
	raceID11  = "2505020811"
)

func testCard(n int, name string) models.RaceCard {
	id, _ := models.BuildRaceID("25050208", n)
	card := models.RaceCard{RaceID: id, Venue: cardVenue, RaceNumber: n, RaceName: name, Date: "2025年5月26日"}
	for post := 1; post <= 2; post++ {
		card.Entries = append(card.Entries, models.RaceCardEntry{
			FrameNumber:  intPtr(1),
			PostPosition: intPtr(post),
			HorseName:    []string{"A", "B"}[post-1],
			RaceID:       id,
			Venue:        cardVenue,
			RaceName:     name,
			RaceNumber:   card.RaceNumberLabel(),
		})
	}
	return card
}

func newRepo(t *testing.T) *repository.CSVRaceCardRepository {
	t.Helper()
	repo, err := repository.NewCSVRaceCardRepository(t.TempDir(), 12)
	require.NoError(t, err)
	return repo
}

func TestGetRaceCardMergesOdds(t *testing.T) {
	repo := newRepo(t)
	card := testCard(11, "東京優駿")
	_, err := repo.Save(context.Background(), cardDate, &card)
	require.NoError(t, err)

	odds := decimal.RequireFromString("3.2")
	source := &fakeSource{odds: map[string][]models.OddsEntry{
		raceID11: {{PostPosition: 2, Popularity: intPtr(1), WinOdds: &odds}},
	}}
	svc := NewRaceCardService(repo, source, cache.NewOddsCache(time.Minute, 10), logger.Discard())

	entries, err := svc.GetRaceCard(context.Background(), cardDate, cardVenue, 11)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].Odds)
	require.NotNil(t, entries[1].Odds)
	assert.True(t, odds.Equal(*entries[1].Odds))
	assert.Equal(t, 1, *entries[1].Popularity)

	_, err = svc.GetRaceCard(context.Background(), cardDate, cardVenue, 11)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls(), "second request served from cache")
}

func TestGetRaceCardWithoutOdds(t *testing.T) {
	repo := newRepo(t)
	card := testCard(3, "3歳未勝利")
	_, err := repo.Save(context.Background(), cardDate, &card)
	require.NoError(t, err)

	svc := NewRaceCardService(repo, &fakeSource{oddsErr: errors.New("upstream down")}, nil, nil)

	entries, err := svc.GetRaceCard(context.Background(), cardDate, cardVenue, 3)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].Odds)
	assert.Nil(t, entries[0].Popularity)
}

func TestGetRaceCardMissingFile(t *testing.T) {
	svc := NewRaceCardService(newRepo(t), &fakeSource{}, nil, nil)

	entries, err := svc.GetRaceCard(context.Background(), cardDate, cardVenue, 9)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestGetRaceCardInvalidKey(t *testing.T) {
	svc := NewRaceCardService(newRepo(t), &fakeSource{}, nil, nil)

	_, err := svc.GetRaceCard(context.Background(), cardDate, "../x", 1)
	assert.ErrorIs(t, err, repository.ErrInvalidKey)
}

func TestGetOddsFailureIsEmpty(t *testing.T) {
	svc := NewRaceCardService(newRepo(t), &fakeSource{oddsErr: errors.New("boom")}, nil, nil)

	odds := svc.GetOdds(context.Background(), raceID11)
	assert.NotNil(t, odds)
	assert.Empty(t, odds)

	svc = NewRaceCardService(newRepo(t), &fakeSource{}, nil, nil)
	assert.NotNil(t, svc.GetOdds(context.Background(), raceID11))
}

func TestListRacesDelegates(t *testing.T) {
	repo := newRepo(t)
	card := testCard(2, "2R")
	_, err := repo.Save(context.Background(), cardDate, &card)
	require.NoError(t, err)

	races, err := NewRaceCardService(repo, nil, nil, nil).ListRaces(context.Background(), cardDate, cardVenue)
	require.NoError(t, err)
	assert.Equal(t, []models.RaceSummary{{RaceNumber: 2, RaceName: "2R"}}, races)
}
