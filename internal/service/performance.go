package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/dataset"
	"github.com/yourusername/keiba-insight/internal/metrics"
	"github.com/yourusername/keiba-insight/internal/models"
)

// Aggregation kinds reported to metrics.
const (
	kindHorseHistory = "horse_history"
	kindBenchmark    = "benchmark"
)

// category buckets a record under one condition key. ok is false when the
// record has nothing to contribute to the category.
type category struct {
	name string
	key  func(models.PastRace) (string, bool)
}

// categories is the fixed set reported in good_performance_rates.
var categories = []category{
	{models.CategoryDistanceTrack, func(r models.PastRace) (string, bool) {
		if r.Surface == "" || r.Distance <= 0 {
			return "", false
		}
		return fmt.Sprintf("%s%dm", r.Surface, r.Distance), true
	}},
	{models.CategoryRacecourse, func(r models.PastRace) (string, bool) {
		return r.Venue, r.Venue != ""
	}},
	{models.CategoryTrackCondition, func(r models.PastRace) (string, bool) {
		key := models.GroundConditionKey(r.GroundCondition)
		return key, key != ""
	}},
	{models.CategoryDistance, func(r models.PastRace) (string, bool) {
		if r.Distance <= 0 {
			return "", false
		}
		return fmt.Sprintf("%dm", r.Distance), true
	}},
	{models.CategoryTrackType, func(r models.PastRace) (string, bool) {
		return string(r.Surface), r.Surface != ""
	}},
}

// PerformanceAggregator computes per-horse history and condition rates.
type PerformanceAggregator struct {
	data   *dataset.Dataset
	logger *logrus.Logger
}

// NewPerformanceAggregator creates an aggregator over data. A nil dataset
// makes every call fail with models.ErrDataUnavailable.
func NewPerformanceAggregator(data *dataset.Dataset, logger *logrus.Logger) *PerformanceAggregator {
	return &PerformanceAggregator{data: data, logger: logger}
}

// ComputeHorseHistory returns every record of the horse plus win and top-3
// rates under each condition category. Filters narrow the rates only.
func (a *PerformanceAggregator) ComputeHorseHistory(ctx context.Context, horseName string, filters models.FilterSet) (*models.HorseHistory, error) {
	start := time.Now()
	if a.data == nil {
		metrics.RecordAggregation(kindHorseHistory, "unavailable", time.Since(start).Seconds())
		return nil, models.ErrDataUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := a.data.HorseRecords(strings.TrimSpace(horseName))
	if len(records) == 0 {
		metrics.RecordAggregation(kindHorseHistory, "not_found", time.Since(start).Seconds())
		return models.EmptyHorseHistory(), nil
	}

	filtered := records
	if !filters.IsEmpty() {
		filtered = make([]models.PastRace, 0, len(records))
		for _, r := range records {
			if filters.Matches(r) {
				filtered = append(filtered, r)
			}
		}
	}

	history := &models.HorseHistory{
		PastRaces:        records,
		PerformanceRates: models.PerformanceRates{},
	}
	if len(filtered) > 0 {
		for _, c := range categories {
			history.PerformanceRates[c.name] = computeRates(filtered, c)
		}
	}

	if a.logger != nil {
		a.logger.WithFields(logrus.Fields{
			"horse":    horseName,
			"records":  len(records),
			"filtered": len(filtered),
		}).Debug("Computed horse history")
	}
	metrics.RecordAggregation(kindHorseHistory, "ok", time.Since(start).Seconds())
	return history, nil
}

type rateCounter struct {
	key   string
	total int
	wins  int
	top3s int
}

func computeRates(records []models.PastRace, c category) []models.PerformanceRateEntry {
	index := make(map[string]int)
	var counters []*rateCounter

	for _, r := range records {
		if !r.HasFinish() {
			continue
		}
		key, ok := c.key(r)
		if !ok {
			continue
		}
		i, seen := index[key]
		if !seen {
			i = len(counters)
			index[key] = i
			counters = append(counters, &rateCounter{key: key})
		}
		counter := counters[i]
		counter.total++
		if r.IsWin() {
			counter.wins++
		}
		if r.IsTop3() {
			counter.top3s++
		}
	}

	// Stable keeps first-seen order between equal totals.
	sort.SliceStable(counters, func(i, j int) bool {
		return counters[i].total > counters[j].total
	})

	entries := make([]models.PerformanceRateEntry, 0, len(counters))
	for _, counter := range counters {
		entries = append(entries, models.PerformanceRateEntry{
			Condition:  counter.key,
			TotalRaces: counter.total,
			Wins:       counter.wins,
			Top3s:      counter.top3s,
			WinRate:    percentage(counter.wins, counter.total),
			Top3Rate:   percentage(counter.top3s, counter.total),
		})
	}
	return entries
}

// percentage returns part/total as a percentage rounded half to even at two places.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.RoundToEven(float64(part)/float64(total)*100*100) / 100
}
