package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-insight/internal/cache"
	"github.com/yourusername/keiba-insight/internal/dataset"
	"github.com/yourusername/keiba-insight/internal/datasource"
	"github.com/yourusername/keiba-insight/internal/health"
	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/models"
	"github.com/yourusername/keiba-insight/internal/repository"
	"github.com/yourusername/keiba-insight/internal/service"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// oddsSource serves fixed odds and nothing else.
type oddsSource struct {
	odds map[string][]models.OddsEntry
	err  error
}

func (s *oddsSource) Name() string { return "fake" }

func (s *oddsSource) FetchSchedule(ctx context.Context, year, month int) ([]models.RaceDay, error) {
	return nil, nil
}

func (s *oddsSource) FetchRaceCard(ctx context.Context, baseID string, n int) (*models.RaceCard, error) {
	return nil, datasource.ErrNotFound
}

func (s *oddsSource) FetchDayRaceCards(ctx context.Context, baseID string) ([]models.RaceCard, error) {
	return nil, nil
}

func (s *oddsSource) FetchOdds(ctx context.Context, raceID string) ([]models.OddsEntry, error) {
	return s.odds[raceID], s.err
}

// fakeRunner emits fixed progress lines or fails with err before any.
type fakeRunner struct {
	mu    sync.Mutex
	lines []string
	err   error
	dates []time.Time
}

func (f *fakeRunner) Run(ctx context.Context, date time.Time, progress service.ProgressFunc) (*service.ScrapeResult, error) {
	f.mu.Lock()
	f.dates = append(f.dates, date)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, l := range f.lines {
		progress(l)
	}
	return &service.ScrapeResult{RunID: uuid.New()}, nil
}

func pastRaces() []models.PastRace {
	return []models.PastRace{
		{HorseName: "サンプルホース", FinishLabel: "1", FinishPosition: intPtr(1), Venue: "東京", Surface: models.SurfaceTurf, Distance: 1600, GroundCondition: "良", ClassName: "3勝クラス", RaceClass: models.Class3Win, CorrectedTime: floatPtr(100), CorrectedTime9m: floatPtr(90)},
		{HorseName: "サンプルホース", FinishLabel: "4", FinishPosition: intPtr(4), Venue: "中山", Surface: models.SurfaceDirt, Distance: 1200, GroundCondition: "重", ClassName: "3勝クラス", RaceClass: models.Class3Win},
		{HorseName: "別の馬", FinishLabel: "2", FinishPosition: intPtr(2), Venue: "東京", Surface: models.SurfaceTurf, Distance: 1600, GroundCondition: "良", ClassName: "3歳以上3勝クラス", RaceClass: models.Class3Win, CorrectedTime: floatPtr(104), CorrectedTime9m: floatPtr(94)},
	}
}

type testEnv struct {
	router http.Handler
	repo   *repository.CSVRaceCardRepository
	source *oddsSource
	runner *fakeRunner
}

func newTestEnv(t *testing.T, ds *dataset.Dataset) *testEnv {
	t.Helper()
	repo, err := repository.NewCSVRaceCardRepository(t.TempDir(), 12)
	require.NoError(t, err)

	source := &oddsSource{odds: map[string][]models.OddsEntry{}}
	runner := &fakeRunner{}
	log := logger.Discard()

	hs := health.NewServer(health.Config{
		ServiceName: "keiba-insight",
		Checks:      map[string]health.Checker{"dataset": health.DatasetChecker(ds)},
	})
	hs.SetReady(true)

	router := NewRouter(Dependencies{
		Performance:    service.NewPerformanceAggregator(ds, log),
		Benchmark:      service.NewBenchmarkAggregator(ds, log),
		RaceCards:      service.NewRaceCardService(repo, source, cache.NewOddsCache(0, 0), log),
		Scraper:        runner,
		Health:         hs.Handler(),
		Logger:         log,
		MetricsEnabled: true,
	})
	return &testEnv{router: router, repo: repo, source: source, runner: runner}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestGetHorsePastData(t *testing.T) {
	env := newTestEnv(t, dataset.New(pastRaces(), dataset.LoadStats{}))

	rec := env.do(t, http.MethodGet, "/api/horse_past_data/"+url.PathEscape("サンプルホース")+"?track_type="+url.QueryEscape("芝"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var raw struct {
		PastRaces []json.RawMessage                        `json:"past_races"`
		Rates     map[string][]models.PerformanceRateEntry `json:"good_performance_rates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Len(t, raw.PastRaces, 2, "past races ignore filters")
	require.Len(t, raw.Rates[models.CategoryRacecourse], 1)
	assert.Equal(t, "東京", raw.Rates[models.CategoryRacecourse][0].Condition)
	assert.Equal(t, 100.0, raw.Rates[models.CategoryRacecourse][0].WinRate)
}

func TestGetHorsePastDataUnknownHorse(t *testing.T) {
	env := newTestEnv(t, dataset.New(pastRaces(), dataset.LoadStats{}))

	rec := env.do(t, http.MethodGet, "/api/horse_past_data/nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"past_races":[],"good_performance_rates":{}}`, rec.Body.String())
}

func TestGetHorsePastDataWithoutDataset(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/horse_past_data/nobody", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrDataUnavailable.Error(), resp.Error)

	rec = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetBenchmarkTimes(t *testing.T) {
	env := newTestEnv(t, dataset.New(pastRaces(), dataset.LoadStats{}))

	target := "/api/benchmark_times/" + url.PathEscape("東京") + "/" + url.PathEscape("芝1600") + "/" + url.PathEscape("3勝クラス")
	rec := env.do(t, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"avg_corrected_time":102,"avg_corrected9m_time":92}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/benchmark_times/"+url.PathEscape("東京")+"/bogus/"+url.PathEscape("3勝クラス"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func saveCard(t *testing.T, repo *repository.CSVRaceCardRepository, n int, name string) models.RaceCard {
	t.Helper()
	id, err := models.BuildRaceID("25050208", n)
	require.NoError(t, err)
	card := models.RaceCard{RaceID: id, Venue: "東京", RaceNumber: n, RaceName: name}
	for post := 1; post <= 2; post++ {
		card.Entries = append(card.Entries, models.RaceCardEntry{
			FrameNumber:  intPtr(post),
			PostPosition: intPtr(post),
			HorseName:    []string{"A", "B"}[post-1],
			RaceID:       id,
			Venue:        "東京",
			RaceName:     name,
			RaceNumber:   card.RaceNumberLabel(),
		})
	}
	_, err = repo.Save(context.Background(), "2025-05-26", &card)
	require.NoError(t, err)
	return card
}

func TestGetRaces(t *testing.T) {
	env := newTestEnv(t, nil)
	saveCard(t, env.repo, 11, "東京優駿")
	saveCard(t, env.repo, 1, "未勝利")

	rec := env.do(t, http.MethodGet, "/api/races/2025-05-26/"+url.PathEscape("東京"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"race_number":1,"race_name":"未勝利"},{"race_number":11,"race_name":"東京優駿"}]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/races/2025-05-26/"+url.PathEscape("京都"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/races/2025-05-26/..", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRaceCard(t *testing.T) {
	env := newTestEnv(t, nil)
	card := saveCard(t, env.repo, 11, "東京優駿")
	odds := decimal.RequireFromString("2.5")
	env.source.odds[card.RaceID] = []models.OddsEntry{{PostPosition: 2, Popularity: intPtr(1), WinOdds: &odds}}

	rec := env.do(t, http.MethodGet, "/api/race_card/2025-05-26/"+url.PathEscape("東京")+"/11", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0], "odds")
	assert.Equal(t, 2.5, entries[1]["odds"])
	assert.Equal(t, float64(1), entries[1]["popularity"])

	rec = env.do(t, http.MethodGet, "/api/race_card/2025-05-26/"+url.PathEscape("東京")+"/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/race_card/2025-05-26/"+url.PathEscape("東京")+"/eleven", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOddsFailureIsEmptyList(t *testing.T) {
	env := newTestEnv(t, nil)
	env.source.err = errors.New("upstream down")

	rec := env.do(t, http.MethodGet, "/api/odds/202505020811", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRunScraperStreamsProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runner.lines = []string{"--- 処理開始: 2025-05-25 ---", "--- 処理終了 ---"}

	rec := env.do(t, http.MethodPost, "/run-scraper", "year=2025&month=5&day=25")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "--- 処理開始: 2025-05-25 ---\n--- 処理終了 ---\n", rec.Body.String())
	require.Len(t, env.runner.dates, 1)
	assert.Equal(t, "2025-05-25", env.runner.dates[0].Format("2006-01-02"))
}

func TestRunScraperValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing day", "year=2025&month=5"},
		{"not a number", "year=2025&month=may&day=1"},
		{"month out of range", "year=2025&month=13&day=1"},
		{"impossible date", "year=2025&month=2&day=30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/run-scraper", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, env.runner.dates)
}

func TestRunScraperInProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	env.runner.err = models.ErrScrapeInProgress

	rec := env.do(t, http.MethodPost, "/run-scraper", "year=2025&month=5&day=25")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetricsAndHealthRoutes(t *testing.T) {
	env := newTestEnv(t, dataset.New(nil, dataset.LoadStats{}))

	env.do(t, http.MethodGet, "/api/odds/x", "")
	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keiba_insight_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/odds/{raceID}"`)

	rec = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/odds/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
