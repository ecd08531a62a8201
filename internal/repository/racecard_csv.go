package repository

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yourusername/keiba-insight/internal/models"
)

const utf8BOM = "\ufeff"

// raceCardColumns is the column order of a stored race card.
var raceCardColumns = []string{
	"枠番", "馬番", "馬名", "性別", "年齢", "斤量", "騎手", "調教師",
	"race_id", "日付", "開催地", "発走時刻", "レース名", "レース番号",
}

// ErrInvalidKey is returned for a date or venue that cannot name a file.
var ErrInvalidKey = errors.New("invalid race card key")

// CSVRaceCardRepository stores one UTF-8 (BOM) CSV file per race in a directory.
type CSVRaceCardRepository struct {
	dir         string
	racesPerDay int
}

// NewCSVRaceCardRepository creates a repository rooted at dir, creating it
// if needed.
func NewCSVRaceCardRepository(dir string, racesPerDay int) (*CSVRaceCardRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("race card directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create race card directory: %w", err)
	}
	if racesPerDay <= 0 {
		racesPerDay = models.RacesPerDay
	}
	return &CSVRaceCardRepository{dir: dir, racesPerDay: racesPerDay}, nil
}

// Path returns the file that holds a race card.
func (r *CSVRaceCardRepository) Path(date, venue string, raceNumber int) (string, error) {
	for _, part := range []string{date, venue} {
		if part == "" || part != filepath.Base(part) || strings.ContainsAny(part, `/\`) || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, part)
		}
	}
	if raceNumber < 1 {
		return "", fmt.Errorf("%w: race number %d", ErrInvalidKey, raceNumber)
	}
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s_%d.csv", date, venue, raceNumber)), nil
}

// Save writes a race card, replacing any previous file for the same race.
// It returns the path written.
func (r *CSVRaceCardRepository) Save(ctx context.Context, date string, card *models.RaceCard) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := r.Path(date, card.Venue, card.RaceNumber)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(r.dir, ".racecard-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create race card file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeRaceCard(tmp, card); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write race card %s: %w", card.RaceID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write race card %s: %w", card.RaceID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store race card %s: %w", card.RaceID, err)
	}
	return path, nil
}

func writeRaceCard(w io.Writer, card *models.RaceCard) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	if err := cw.Write(raceCardColumns); err != nil {
		return err
	}
	for _, e := range card.Entries {
		weight := ""
		if e.WeightCarried != nil {
			weight = e.WeightCarried.StringFixed(1)
		}
		if err := cw.Write([]string{
			itoa(e.FrameNumber), itoa(e.PostPosition), e.HorseName, e.Sex, itoa(e.Age), weight,
			e.Jockey, e.Trainer, e.RaceID, e.Date, e.Venue, e.StartTime, e.RaceName, e.RaceNumber,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// Get reads a stored race card. A missing file is models.ErrRaceCardNotFound.
func (r *CSVRaceCardRepository) Get(ctx context.Context, date, venue string, raceNumber int) (*models.RaceCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.Path(date, venue, raceNumber)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s %s %dR", models.ErrRaceCardNotFound, date, venue, raceNumber)
		}
		return nil, fmt.Errorf("failed to open race card: %w", err)
	}
	defer f.Close()

	entries, err := readRaceCard(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read race card %s: %w", path, err)
	}

	card := &models.RaceCard{
		Venue:      venue,
		RaceNumber: raceNumber,
		Entries:    entries,
	}
	if len(entries) > 0 {
		first := entries[0]
		card.RaceID = first.RaceID
		card.Date = first.Date
		card.RaceName = first.RaceName
		card.StartTime = first.StartTime
	}
	return card, nil
}

func readRaceCard(r io.Reader) ([]models.RaceCardEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []models.RaceCardEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))] = i
	}

	entries := []models.RaceCardEntry{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		e := models.RaceCardEntry{
			FrameNumber:  atoi(get("枠番")),
			PostPosition: atoi(get("馬番")),
			HorseName:    get("馬名"),
			Sex:          get("性別"),
			Age:          atoi(get("年齢")),
			Jockey:       get("騎手"),
			Trainer:      get("調教師"),
			RaceID:       get("race_id"),
			Date:         get("日付"),
			Venue:        get("開催地"),
			StartTime:    get("発走時刻"),
			RaceName:     get("レース名"),
			RaceNumber:   get("レース番号"),
		}
		if w, err := decimal.NewFromString(get("斤量")); err == nil {
			e.WeightCarried = &w
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ListRaces returns the races of a meeting that have a stored card, with
// the race name taken from the first entry.
func (r *CSVRaceCardRepository) ListRaces(ctx context.Context, date, venue string) ([]models.RaceSummary, error) {
	races := []models.RaceSummary{}
	for n := 1; n <= r.racesPerDay; n++ {
		card, err := r.Get(ctx, date, venue, n)
		if err != nil {
			if errors.Is(err, models.ErrRaceCardNotFound) {
				continue
			}
			if errors.Is(err, ErrInvalidKey) || ctx.Err() != nil {
				return nil, err
			}
			// Unreadable files are left out of the listing.
			continue
		}
		if len(card.Entries) == 0 {
			continue
		}
		races = append(races, models.RaceSummary{RaceNumber: n, RaceName: card.RaceName})
	}
	return races, nil
}

func itoa(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// atoi accepts "3" and the "3.0" form written by spreadsheet tools.
func atoi(s string) *int {
	s = models.NormalizeText(s)
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return nil
	}
	v := int(f)
	return &v
}
