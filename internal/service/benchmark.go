package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/dataset"
	"github.com/yourusername/keiba-insight/internal/metrics"
	"github.com/yourusername/keiba-insight/internal/models"
)

// BenchmarkAggregator averages corrected times of placed horses in
// comparable races.
type BenchmarkAggregator struct {
	data   *dataset.Dataset
	logger *logrus.Logger
}

// NewBenchmarkAggregator creates an aggregator over data.
func NewBenchmarkAggregator(data *dataset.Dataset, logger *logrus.Logger) *BenchmarkAggregator {
	return &BenchmarkAggregator{data: data, logger: logger}
}

type benchmarkKey struct {
	venue     string
	surface   models.TrackSurface
	distance  int
	class     models.RaceClass
	className string
}

func newBenchmarkKey(venue, surfaceAndDistance, raceClass string) (benchmarkKey, bool) {
	surface, distance, ok := models.ParseSurfaceDistance(surfaceAndDistance)
	if !ok {
		return benchmarkKey{}, false
	}
	k := benchmarkKey{
		venue:    models.ResolveVenue(venue),
		surface:  surface,
		distance: distance,
		class:    models.ClassifyRaceClass(raceClass),
	}
	if k.venue == models.VenueUnknown {
		k.venue = models.NormalizeText(venue)
	}
	// Unrecognised classes fall back to the literal class name.
	if k.class == models.ClassUnknown {
		k.className = models.NormalizeText(raceClass)
	}
	return k, true
}

func (k benchmarkKey) matches(r models.PastRace) bool {
	if r.Venue != k.venue || r.Surface != k.surface || r.Distance != k.distance {
		return false
	}
	if k.className != "" {
		return models.NormalizeText(r.ClassName) == k.className
	}
	return r.RaceClass == k.class
}

// ComputeBenchmarkTimes returns the mean corrected times of top-3 finishers
// at the given venue, course and class. Each mean skips missing values and
// is omitted when no value exists.
func (a *BenchmarkAggregator) ComputeBenchmarkTimes(ctx context.Context, venue, surfaceAndDistance, raceClass string) (models.BenchmarkTimes, error) {
	start := time.Now()
	if a.data == nil {
		metrics.RecordAggregation(kindBenchmark, "unavailable", time.Since(start).Seconds())
		return models.BenchmarkTimes{}, models.ErrDataUnavailable
	}
	if err := ctx.Err(); err != nil {
		return models.BenchmarkTimes{}, err
	}

	key, ok := newBenchmarkKey(venue, surfaceAndDistance, raceClass)
	if !ok {
		metrics.RecordAggregation(kindBenchmark, "invalid", time.Since(start).Seconds())
		return models.BenchmarkTimes{}, nil
	}

	var time1, time9 mean
	matched := 0
	a.data.Each(func(r models.PastRace) bool {
		if !r.IsTop3() || !key.matches(r) {
			return true
		}
		matched++
		time1.add(r.CorrectedTime)
		time9.add(r.CorrectedTime9m)
		return true
	})

	result := models.BenchmarkTimes{
		AvgCorrectedTime:   time1.value(),
		AvgCorrectedTime9m: time9.value(),
	}

	if a.logger != nil {
		a.logger.WithFields(logrus.Fields{
			"venue":   key.venue,
			"course":  surfaceAndDistance,
			"class":   raceClass,
			"matched": matched,
		}).Debug("Computed benchmark times")
	}
	outcome := "ok"
	if result.IsEmpty() {
		outcome = "empty"
	}
	metrics.RecordAggregation(kindBenchmark, outcome, time.Since(start).Seconds())
	return result, nil
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m *mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}
