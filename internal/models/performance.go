package models

// Condition categories used to bucket a horse's record.
const (
	CategoryDistanceTrack  = "distance_track"
	CategoryRacecourse     = "racecourse"
	CategoryTrackCondition = "track_condition"
	CategoryDistance       = "distance"
	CategoryTrackType      = "track_type"
)

// PerformanceRateEntry summarises results under one condition key.
type PerformanceRateEntry struct {
	Condition  string  `json:"condition"`
	TotalRaces int     `json:"total_races"`
	Wins       int     `json:"wins"`
	Top3s      int     `json:"top3s"`
	WinRate    float64 `json:"win_rate"`
	Top3Rate   float64 `json:"top3_rate"`
}

// PerformanceRates maps a category name to its entries, most raced first.
type PerformanceRates map[string][]PerformanceRateEntry

// HorseHistory is the response of the horse past data endpoint.
type HorseHistory struct {
	PastRaces        []PastRace       `json:"past_races"`
	PerformanceRates PerformanceRates `json:"good_performance_rates"`
}

// EmptyHorseHistory returns a history that serializes as empty list and map.
func EmptyHorseHistory() *HorseHistory {
	return &HorseHistory{
		PastRaces:        []PastRace{},
		PerformanceRates: PerformanceRates{},
	}
}

// BenchmarkTimes holds average corrected times of top-3 finishers.
type BenchmarkTimes struct {
	AvgCorrectedTime   *float64 `json:"avg_corrected_time,omitempty"`
	AvgCorrectedTime9m *float64 `json:"avg_corrected9m_time,omitempty"`
}

// IsEmpty reports whether no average could be computed.
func (b BenchmarkTimes) IsEmpty() bool {
	return b.AvgCorrectedTime == nil && b.AvgCorrectedTime9m == nil
}
