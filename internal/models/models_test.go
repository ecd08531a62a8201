package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParseSurfaceDistance(t *testing.T) {
	tests := []struct {
		token    string
		surface  TrackSurface
		distance int
		ok       bool
	}{
		{"芝1600", SurfaceTurf, 1600, true},
		{"ダ1200", SurfaceDirt, 1200, true},
		{"芝１８００", SurfaceTurf, 1800, true},
		{" ダート2100m ", SurfaceDirt, 2100, true},
		{"障芝3000", "", 0, false},
		{"1600", "", 0, false},
		{"", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			surface, distance, ok := ParseSurfaceDistance(tt.token)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.surface, surface)
			assert.Equal(t, tt.distance, distance)
		})
	}
}

func TestClassifyGroundConditionPriority(t *testing.T) {
	tests := []struct {
		label    string
		expected GroundCondition
		ok       bool
	}{
		{"良", GroundGood, true},
		{"稍重", GroundSlightlyHeavy, true},
		{"稍", "", false},
		{"稍重馬場", GroundSlightlyHeavy, true},
		{"重", GroundHeavy, true},
		{"不良", GroundBad, true},
		{"不", GroundBad, true},
		{" 稍重 ", GroundSlightlyHeavy, true},
		{"", "", false},
		{"unknown", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			c, ok := ClassifyGroundCondition(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, c)
		})
	}
}

func TestGroundConditionKeyFallsBackToLabel(t *testing.T) {
	assert.Equal(t, "稍重", GroundConditionKey("稍重"))
	assert.Equal(t, "稍", GroundConditionKey("稍"))
	assert.Equal(t, "firm", GroundConditionKey(" firm "))
}

func TestParseGroundConditionAliases(t *testing.T) {
	c, ok := ParseGroundCondition("heavy")
	require.True(t, ok)
	assert.Equal(t, GroundHeavy, c)

	c, ok = ParseGroundCondition("不良")
	require.True(t, ok)
	assert.Equal(t, GroundBad, c)

	_, ok = ParseGroundCondition("稍")
	assert.False(t, ok)
}

func TestClassifyRaceClass(t *testing.T) {
	tests := []struct {
		name     string
		expected RaceClass
	}{
		{"3歳以上1勝クラス", Class1Win},
		{"2勝クラス", Class2Win},
		{"3勝クラス", Class3Win},
		{"1000万下", Class2Win},
		{"2歳新馬", ClassMaiden},
		{"3歳未勝利", ClassMaiden},
		{"オープン", ClassOpen},
		{"GⅠ", ClassG1},
		{"ＧＩＩＩ", ClassG3},
		{"G2", ClassG2},
		{"L", ClassListed},
		{"リステッド", ClassListed},
		{"listed", ClassListed},
		{"", ClassUnknown},
		{"障害", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyRaceClass(tt.name))
		})
	}
}

func TestResolveVenue(t *testing.T) {
	assert.Equal(t, "東京", ResolveVenue("2回東京5日"))
	assert.Equal(t, "新潟", ResolveVenue("新潟"))
	assert.Equal(t, VenueUnknown, ResolveVenue("大井"))
	assert.True(t, IsJRAVenue("阪神"))
	assert.False(t, IsJRAVenue("不明"))
}

func TestParseFilterSetIgnoresMalformedValues(t *testing.T) {
	f := ParseFilterSet(FilterParams{
		TrackType:      "grass",
		DistanceMin:    "abc",
		DistanceMax:    "２０００",
		Venue:          " 東京 ",
		TrackCondition: "muddy",
	})

	assert.Nil(t, f.TrackSurface)
	assert.Nil(t, f.DistanceMin)
	require.NotNil(t, f.DistanceMax)
	assert.Equal(t, 2000, *f.DistanceMax)
	assert.Equal(t, "東京", f.Venue)
	assert.Nil(t, f.GroundCondition)
	assert.False(t, f.IsEmpty())
	assert.True(t, ParseFilterSet(FilterParams{}).IsEmpty())
}

func TestFilterSetMatches(t *testing.T) {
	record := PastRace{
		HorseName:       "Example Horse",
		Venue:           "東京",
		Surface:         SurfaceTurf,
		Distance:        1600,
		GroundCondition: "稍重",
	}

	tests := []struct {
		name    string
		params  FilterParams
		matches bool
	}{
		{"no filters", FilterParams{}, true},
		{"surface match", FilterParams{TrackType: "芝"}, true},
		{"surface mismatch", FilterParams{TrackType: "dirt"}, false},
		{"distance in range", FilterParams{DistanceMin: "1400", DistanceMax: "1600"}, true},
		{"distance below min", FilterParams{DistanceMin: "1800"}, false},
		{"venue mismatch", FilterParams{Venue: "中山"}, false},
		{"slightly heavy", FilterParams{TrackCondition: "稍重"}, true},
		{"heavy does not include slightly heavy", FilterParams{TrackCondition: "重"}, false},
		{"conjunctive", FilterParams{TrackType: "turf", Venue: "東京", TrackCondition: "slightly_heavy"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matches, ParseFilterSet(tt.params).Matches(record))
		})
	}
}

func TestPastRaceMarshalJSON(t *testing.T) {
	date := time.Date(2024, 5, 26, 0, 0, 0, 0, time.UTC)
	record := PastRace{
		Date:            &date,
		HorseName:       "Example Horse",
		FinishLabel:     "1",
		FinishPosition:  intPtr(1),
		Venue:           "東京",
		Surface:         SurfaceTurf,
		Distance:        2400,
		GroundCondition: "良",
	}

	data, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2024-05-26", decoded["date"])
	assert.Equal(t, "芝", decoded["track_type"])
	assert.Nil(t, decoded["corrected_time"])
	assert.Contains(t, decoded, "corrected_time_9m")
	assert.NotContains(t, decoded, "extra")

	record.Date = nil
	data, err = json.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"date":null`)
}

func TestPastRaceFinishHelpers(t *testing.T) {
	assert.True(t, PastRace{FinishPosition: intPtr(1)}.IsWin())
	assert.True(t, PastRace{FinishPosition: intPtr(3)}.IsTop3())
	assert.False(t, PastRace{FinishPosition: intPtr(4)}.IsTop3())
	assert.False(t, PastRace{}.HasFinish())
}

func TestBuildRaceID(t *testing.T) {
	id, err := BuildRaceID("25050201", 3)
	require.NoError(t, err)
	assert.Equal(t, "2505020103", id)

	_, err = BuildRaceID("bad", 1)
	assert.ErrorIs(t, err, ErrInvalidRaceID)

	_, err = RaceDay{BaseID: "25050201"}.RaceID(0)
	assert.ErrorIs(t, err, ErrInvalidRaceID)
}

func TestMergeOddsLeftJoin(t *testing.T) {
	odds := decimal.RequireFromString("3.4")
	entries := []RaceCardEntry{
		{PostPosition: intPtr(1), HorseName: "A"},
		{PostPosition: intPtr(2), HorseName: "B"},
		{HorseName: "C"},
	}

	merged := MergeOdds(entries, []OddsEntry{{PostPosition: 2, Popularity: intPtr(1), WinOdds: &odds}})

	require.Len(t, merged, 3)
	assert.Nil(t, merged[0].Odds)
	require.NotNil(t, merged[1].Odds)
	assert.True(t, odds.Equal(*merged[1].Odds))
	assert.Equal(t, 1, *merged[1].Popularity)
	assert.Nil(t, merged[2].Popularity)
	assert.Nil(t, entries[1].Odds)
}

func TestDecimalFieldsMarshalAsNumbers(t *testing.T) {
	odds := decimal.RequireFromString("2.5")
	data, err := json.Marshal(OddsEntry{PostPosition: 3, Popularity: intPtr(1), WinOdds: &odds})
	require.NoError(t, err)
	assert.JSONEq(t, `{"post_position":3,"popularity":1,"odds":2.5}`, string(data))

	weight := decimal.RequireFromString("57.0")
	data, err = json.Marshal(RaceCardEntry{PostPosition: intPtr(1), HorseName: "A", WeightCarried: &weight, Odds: &odds})
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 57.0, decoded["weight_carried"])
	assert.Equal(t, 2.5, decoded["odds"])

	var roundTrip OddsEntry
	require.NoError(t, json.Unmarshal([]byte(`{"post_position":3,"odds":2.5}`), &roundTrip))
	require.NotNil(t, roundTrip.WinOdds)
	assert.True(t, odds.Equal(*roundTrip.WinOdds))
}
