package models

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TrackSurface is the racing surface of a course.
type TrackSurface string

const (
	SurfaceTurf TrackSurface = "芝"
	SurfaceDirt TrackSurface = "ダート"
)

// ParseTrackSurface accepts the Japanese labels and the English aliases turf/dirt.
func ParseTrackSurface(s string) (TrackSurface, bool) {
	switch strings.ToLower(NormalizeText(s)) {
	case "芝", "turf":
		return SurfaceTurf, true
	case "ダート", "ダ", "dirt":
		return SurfaceDirt, true
	default:
		return "", false
	}
}

var surfaceDistancePattern = regexp.MustCompile(`^(芝|ダート|ダ)(\d+)`)

// ParseSurfaceDistance splits a combined token such as "芝1600" or "ダ1200m"
// into its surface and distance in metres.
func ParseSurfaceDistance(token string) (TrackSurface, int, bool) {
	m := surfaceDistancePattern.FindStringSubmatch(NormalizeText(token))
	if m == nil {
		return "", 0, false
	}
	distance, err := strconv.Atoi(m[2])
	if err != nil || distance <= 0 {
		return "", 0, false
	}
	surface := SurfaceTurf
	if m[1] != "芝" {
		surface = SurfaceDirt
	}
	return surface, distance, true
}

// GroundCondition is the classified going of a track.
type GroundCondition string

const (
	GroundGood          GroundCondition = "良"
	GroundSlightlyHeavy GroundCondition = "稍重"
	GroundHeavy         GroundCondition = "重"
	GroundBad           GroundCondition = "不良"
)

// groundConditionPriority is evaluated in order and the first marker found in
// a label decides its bucket. "稍重" contains "重" and must be tested first.
var groundConditionPriority = []struct {
	condition GroundCondition
	marker    string
}{
	{GroundSlightlyHeavy, "稍重"},
	{GroundBad, "不"},
	{GroundHeavy, "重"},
	{GroundGood, "良"},
}

// ClassifyGroundCondition maps a raw 馬場状態 label to its bucket.
func ClassifyGroundCondition(label string) (GroundCondition, bool) {
	label = NormalizeText(label)
	if label == "" {
		return "", false
	}
	for _, p := range groundConditionPriority {
		if strings.Contains(label, p.marker) {
			return p.condition, true
		}
	}
	return "", false
}

// GroundConditionKey returns the classified bucket for label, falling back
// to the trimmed label itself when no marker matches.
func GroundConditionKey(label string) string {
	if c, ok := ClassifyGroundCondition(label); ok {
		return string(c)
	}
	return NormalizeText(label)
}

// ParseGroundCondition parses a requested condition. Only exact bucket names
// and their English aliases are accepted.
func ParseGroundCondition(s string) (GroundCondition, bool) {
	switch strings.ToLower(NormalizeText(s)) {
	case "良", "good":
		return GroundGood, true
	case "稍重", "slightly_heavy", "slightly-heavy":
		return GroundSlightlyHeavy, true
	case "重", "heavy":
		return GroundHeavy, true
	case "不良", "bad":
		return GroundBad, true
	default:
		return "", false
	}
}

// RaceClass is a normalized race class label.
type RaceClass string

const (
	ClassMaiden  RaceClass = "未勝利"
	Class1Win    RaceClass = "1勝クラス"
	Class2Win    RaceClass = "2勝クラス"
	Class3Win    RaceClass = "3勝クラス"
	ClassOpen    RaceClass = "オープン"
	ClassG1      RaceClass = "G1"
	ClassG2      RaceClass = "G2"
	ClassG3      RaceClass = "G3"
	ClassListed  RaceClass = "L"
	ClassUnknown RaceClass = "不明"
)

var raceClassAliases = map[string]RaceClass{
	"maiden": ClassMaiden,
	"1win":   Class1Win,
	"2win":   Class2Win,
	"3win":   Class3Win,
	"open":   ClassOpen,
	"g1":     ClassG1,
	"g2":     ClassG2,
	"g3":     ClassG3,
	"listed": ClassListed,
}

// raceClassRules is ordered: GIII contains GII which contains GI.
var raceClassRules = []struct {
	class   RaceClass
	markers []string
}{
	{ClassG3, []string{"G3", "GIII", "GⅢ"}},
	{ClassG2, []string{"G2", "GII", "GⅡ"}},
	{ClassG1, []string{"G1", "GI", "GⅠ"}},
	{ClassListed, []string{"(L)", "リステッド"}},
	{ClassOpen, []string{"オープン", "OP"}},
	{Class3Win, []string{"3勝", "1600万"}},
	{Class2Win, []string{"2勝", "1000万"}},
	{Class1Win, []string{"1勝", "500万"}},
	{ClassMaiden, []string{"未勝利", "新馬"}},
}

// ClassifyRaceClass normalizes a class name such as "3歳以上1勝クラス" or
// "GⅠ". Legacy prize-money classes map onto the win classes.
func ClassifyRaceClass(name string) RaceClass {
	s := NormalizeText(name)
	if s == "" {
		return ClassUnknown
	}
	if c, ok := raceClassAliases[strings.ToLower(s)]; ok {
		return c
	}
	if s == "L" {
		return ClassListed
	}
	upper := strings.ToUpper(s)
	for _, rule := range raceClassRules {
		for _, m := range rule.markers {
			if strings.Contains(upper, m) {
				return rule.class
			}
		}
	}
	return ClassUnknown
}

// PastRace is one horse's result in one historical race.
type PastRace struct {
	Date            *time.Time
	HorseName       string
	FinishLabel     string
	FinishPosition  *int
	Venue           string
	Surface         TrackSurface
	Distance        int
	GroundCondition string
	ClassName       string
	RaceClass       RaceClass
	CorrectedTime   *float64
	CorrectedTime9m *float64
	Extra           map[string]string
}

// HasFinish reports whether the record can contribute to win/top3 counts.
func (r PastRace) HasFinish() bool {
	return r.FinishPosition != nil
}

// IsWin reports a first-place finish.
func (r PastRace) IsWin() bool {
	return r.FinishPosition != nil && *r.FinishPosition == 1
}

// IsTop3 reports a finish in the first three.
func (r PastRace) IsTop3() bool {
	return r.FinishPosition != nil && *r.FinishPosition >= 1 && *r.FinishPosition <= 3
}

type pastRaceJSON struct {
	Date            *string           `json:"date"`
	HorseName       string            `json:"horse_name"`
	FinishPosition  *int              `json:"finish_position"`
	FinishLabel     string            `json:"finish_label"`
	Venue           string            `json:"venue"`
	TrackType       TrackSurface      `json:"track_type"`
	Distance        int               `json:"distance"`
	TrackCondition  string            `json:"track_condition"`
	ClassName       string            `json:"class_name"`
	RaceClass       RaceClass         `json:"race_class"`
	CorrectedTime   *float64          `json:"corrected_time"`
	CorrectedTime9m *float64          `json:"corrected_time_9m"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// MarshalJSON writes the date as an ISO-8601 calendar date and missing
// values as null.
func (r PastRace) MarshalJSON() ([]byte, error) {
	var date *string
	if r.Date != nil {
		d := r.Date.Format("2006-01-02")
		date = &d
	}
	return json.Marshal(pastRaceJSON{
		Date:            date,
		HorseName:       r.HorseName,
		FinishPosition:  r.FinishPosition,
		FinishLabel:     r.FinishLabel,
		Venue:           r.Venue,
		TrackType:       r.Surface,
		Distance:        r.Distance,
		TrackCondition:  r.GroundCondition,
		ClassName:       r.ClassName,
		RaceClass:       r.RaceClass,
		CorrectedTime:   r.CorrectedTime,
		CorrectedTime9m: r.CorrectedTime9m,
		Extra:           r.Extra,
	})
}
