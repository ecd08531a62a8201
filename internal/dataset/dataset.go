// Package dataset holds the historical race results loaded at startup.
package dataset

import (
	"time"

	"github.com/yourusername/keiba-insight/internal/models"
)

// LoadStats summarises what a load kept and dropped.
type LoadStats struct {
	Source      string
	TotalRows   int
	Loaded      int
	DropReasons map[string]int
	Duration    time.Duration
}

// Dropped returns the number of rows left out of the dataset.
func (s LoadStats) Dropped() int {
	n := 0
	for _, v := range s.DropReasons {
		n += v
	}
	return n
}

// Dataset is the read-only table of past race records. It is never mutated
// after construction and may be shared freely between goroutines.
type Dataset struct {
	records  []models.PastRace
	byHorse  map[string][]int
	stats    LoadStats
	loadedAt time.Time
}

// New builds a dataset from records, indexing them by horse name.
func New(records []models.PastRace, stats LoadStats) *Dataset {
	byHorse := make(map[string][]int)
	for i, r := range records {
		byHorse[r.HorseName] = append(byHorse[r.HorseName], i)
	}
	stats.Loaded = len(records)
	return &Dataset{
		records:  records,
		byHorse:  byHorse,
		stats:    stats,
		loadedAt: time.Now(),
	}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Stats returns the load summary.
func (d *Dataset) Stats() LoadStats {
	return d.stats
}

// LoadedAt returns when the dataset was built.
func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// HorseRecords returns the records of the named horse in file order.
// The name must match exactly.
func (d *Dataset) HorseRecords(name string) []models.PastRace {
	idx := d.byHorse[name]
	out := make([]models.PastRace, len(idx))
	for i, j := range idx {
		out[i] = d.records[j]
	}
	return out
}

// Each calls fn for every record in file order until fn returns false.
func (d *Dataset) Each(fn func(models.PastRace) bool) {
	for _, r := range d.records {
		if !fn(r) {
			return
		}
	}
}
