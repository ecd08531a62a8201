package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/models"
)

var scrapeDate = time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC)

type progressLog struct {
	mu    sync.Mutex
	lines []string
}

func (p *progressLog) add(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
}

func (p *progressLog) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.lines, "\n")
}

func TestScrapeRunSavesCards(t *testing.T) {
	repo := newRepo(t)
	source := &fakeSource{
		days: []models.RaceDay{
			{Date: "2025-05-25", Venue: "東京", BaseID: "25050207"},
			{Date: "2025-05-26", Venue: "東京", BaseID: "25050208"},
			{Date: "2025-05-26", Venue: "京都", BaseID: "25090208"},
		},
		cards: map[string][]models.RaceCard{
			"25050208": {testCard(1, "1R"), testCard(11, "東京優駿")},
		},
	}
	svc := NewScrapeService(source, repo, logger.Discard())

	var log progressLog
	result, err := svc.Run(context.Background(), scrapeDate, log.add)
	require.NoError(t, err)

	assert.Equal(t, "2025-05-26", result.TargetDate)
	assert.Equal(t, []string{"東京", "京都"}, result.Venues)
	require.Len(t, result.SavedFiles, 2)
	assert.Equal(t, "2025-05-26_東京_1.csv", filepath.Base(result.SavedFiles[0]))
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", result.RunID.String())

	out := log.text()
	assert.Contains(t, out, "--- 処理開始: 2025-05-26 ---")
	assert.Contains(t, out, "京都競馬場の出馬表データ取得に失敗しました。")
	assert.Contains(t, out, "全ての処理が完了しました")

	races, err := repo.ListRaces(context.Background(), "2025-05-26", "東京")
	require.NoError(t, err)
	assert.Len(t, races, 2)
	assert.False(t, svc.Running())
}

func TestScrapeRunNoRaces(t *testing.T) {
	svc := NewScrapeService(&fakeSource{days: []models.RaceDay{{Date: "2025-05-25", Venue: "東京", BaseID: "25050207"}}}, newRepo(t), nil)

	var log progressLog
	_, err := svc.Run(context.Background(), scrapeDate, log.add)
	assert.ErrorIs(t, err, models.ErrNoRacesScheduled)
	assert.Contains(t, log.text(), "2025-05-26 に開催されるレースが見つかりませんでした")
}

func TestScrapeRunScheduleFailure(t *testing.T) {
	svc := NewScrapeService(&fakeSource{schedErr: errors.New("offline")}, newRepo(t), nil)

	_, err := svc.Run(context.Background(), scrapeDate, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offline")
}

func TestScrapeRunRejectsConcurrentRun(t *testing.T) {
	source := &fakeSource{block: make(chan struct{})}
	svc := NewScrapeService(source, newRepo(t), nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), scrapeDate, nil)
		done <- err
	}()

	require.Eventually(t, svc.Running, time.Second, 5*time.Millisecond)
	_, err := svc.Run(context.Background(), scrapeDate, nil)
	assert.ErrorIs(t, err, models.ErrScrapeInProgress)

	close(source.block)
	assert.ErrorIs(t, <-done, models.ErrNoRacesScheduled)
	assert.False(t, svc.Running())
}

func TestScrapeRunCancelled(t *testing.T) {
	source := &fakeSource{block: make(chan struct{})}
	svc := NewScrapeService(source, newRepo(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx, scrapeDate, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScrapeRunSkipsInvalidCards(t *testing.T) {
	broken := testCard(2, "2R")
	broken.Entries = nil
	source := &fakeSource{
		days: []models.RaceDay{{Date: "2025-05-26", Venue: "東京", BaseID: "25050208"}},
		cards: map[string][]models.RaceCard{
			"25050208": {testCard(1, "1R"), broken},
		},
	}
	svc := NewScrapeService(source, newRepo(t), nil)

	var log progressLog
	result, err := svc.Run(context.Background(), scrapeDate, log.add)
	require.NoError(t, err)
	assert.Len(t, result.SavedFiles, 1)
	assert.Contains(t, log.text(), "エラー: 2R の出馬表が不正なため保存しませんでした。")
}
