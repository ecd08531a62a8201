package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/config"
	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/metrics"
	"github.com/yourusername/keiba-insight/internal/models"
)

// ErrMissingColumns is returned when the header lacks a required column.
var ErrMissingColumns = errors.New("required columns missing from past race data")

// Reasons a row is left out of the dataset.
const (
	DropMissingHorse    = "missing_horse"
	DropInvalidDate     = "invalid_date"
	DropMissingFinish   = "missing_finish"
	DropMissingVenue    = "missing_venue"
	DropInvalidDistance = "invalid_distance"
	DropMissingGround   = "missing_ground"
)

// ColumnMapping names the CSV header of each field.
type ColumnMapping struct {
	Date            string
	HorseName       string
	Finish          string
	Venue           string
	Distance        string
	GroundCondition string
	CorrectedTime   string
	CorrectedTime9m string
	ClassName       string
}

// DefaultColumns returns the headers used by the 3-year results export.
func DefaultColumns() ColumnMapping {
	return ColumnMapping{
		Date:            "日付",
		HorseName:       "馬名",
		Finish:          "着順",
		Venue:           "場所",
		Distance:        "距離",
		GroundCondition: "馬場状態",
		CorrectedTime:   "補正タイム",
		CorrectedTime9m: "補9",
		ClassName:       "クラス名",
	}
}

func (m ColumnMapping) required() []string {
	return []string{
		m.Date, m.HorseName, m.Finish, m.Venue, m.Distance,
		m.GroundCondition, m.CorrectedTime, m.CorrectedTime9m, m.ClassName,
	}
}

var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"20060102",
	"2006年1月2日",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// Loader reads past race CSV files into a Dataset.
type Loader struct {
	columns ColumnMapping
	strict  bool
	logger  *logger.DatasetLogger
}

// NewLoader creates a loader. In strict mode rows with an unparseable date
// are dropped; otherwise they are kept with a nil date.
func NewLoader(columns ColumnMapping, strict bool, log *logrus.Logger) *Loader {
	if log == nil {
		log = logger.Discard()
	}
	return &Loader{
		columns: columns,
		strict:  strict,
		logger:  logger.NewDatasetLogger(log),
	}
}

// NewLoaderFromConfig creates a loader from the dataset configuration,
// filling unset column names with the defaults.
func NewLoaderFromConfig(cfg config.DatasetConfig, log *logrus.Logger) *Loader {
	cols := DefaultColumns()
	c := cfg.Columns
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&cols.Date, c.Date},
		{&cols.HorseName, c.HorseName},
		{&cols.Finish, c.Finish},
		{&cols.Venue, c.Venue},
		{&cols.Distance, c.Distance},
		{&cols.GroundCondition, c.GroundCondition},
		{&cols.CorrectedTime, c.CorrectedTime},
		{&cols.CorrectedTime9m, c.CorrectedTime9m},
		{&cols.ClassName, c.ClassName},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	return NewLoader(cols, cfg.Strict, log)
}

// LoadFile loads the dataset from a CSV file on disk.
func (l *Loader) LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		l.logger.LogLoadFailed(path, err)
		return nil, fmt.Errorf("failed to open past race data: %w", err)
	}
	defer f.Close()

	ds, err := l.Load(f, path)
	if err != nil {
		l.logger.LogLoadFailed(path, err)
		return nil, err
	}
	return ds, nil
}

// Load reads CSV rows from r. Rows that cannot be used are counted and
// skipped; only an unreadable file or a missing column fails the load.
func (l *Loader) Load(r io.Reader, source string) (*Dataset, error) {
	start := time.Now()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	for _, col := range l.columns.required() {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	mapped := make(map[int]bool)
	for _, col := range l.columns.required() {
		mapped[index[col]] = true
	}

	stats := LoadStats{Source: source, DropReasons: make(map[string]int)}
	var records []models.PastRace

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", stats.TotalRows+2, err)
		}
		stats.TotalRows++

		get := func(col string) string {
			i := index[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		record, reason := l.parseRow(get)
		if reason != "" {
			stats.DropReasons[reason]++
			continue
		}

		for i, v := range row {
			if mapped[i] || i >= len(header) || header[i] == "" {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				if record.Extra == nil {
					record.Extra = make(map[string]string)
				}
				record.Extra[header[i]] = v
			}
		}
		records = append(records, record)
	}

	stats.Duration = time.Since(start)
	ds := New(records, stats)
	metrics.RecordDatasetLoad(ds.Len(), stats.Duration.Seconds())
	l.logger.LogLoaded(source, stats.TotalRows, ds.Len(), stats.DropReasons, stats.Duration)
	return ds, nil
}

// parseRow converts one row, returning a drop reason when a required field
// is absent or unusable.
func (l *Loader) parseRow(get func(string) string) (models.PastRace, string) {
	var rec models.PastRace

	rec.HorseName = get(l.columns.HorseName)
	if rec.HorseName == "" {
		return rec, DropMissingHorse
	}

	rec.Date = parseDate(get(l.columns.Date))
	if rec.Date == nil && l.strict {
		return rec, DropInvalidDate
	}

	rec.FinishLabel = models.NormalizeText(get(l.columns.Finish))
	if rec.FinishLabel == "" {
		return rec, DropMissingFinish
	}
	rec.FinishPosition = parseFinish(rec.FinishLabel)

	venue := get(l.columns.Venue)
	if venue == "" {
		return rec, DropMissingVenue
	}
	rec.Venue = models.ResolveVenue(venue)

	surface, distance, ok := models.ParseSurfaceDistance(get(l.columns.Distance))
	if !ok {
		return rec, DropInvalidDistance
	}
	rec.Surface = surface
	rec.Distance = distance

	rec.GroundCondition = get(l.columns.GroundCondition)
	if rec.GroundCondition == "" {
		return rec, DropMissingGround
	}

	rec.ClassName = get(l.columns.ClassName)
	rec.RaceClass = models.ClassifyRaceClass(rec.ClassName)
	rec.CorrectedTime = parseMetric(get(l.columns.CorrectedTime))
	rec.CorrectedTime9m = parseMetric(get(l.columns.CorrectedTime9m))

	return rec, ""
}

func parseDate(s string) *time.Time {
	s = models.NormalizeText(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

var finishPattern = regexp.MustCompile(`^\d+(\.0+)?$`)

// parseFinish accepts "3" and "3.0"; anything else (中止, 除外, ...) is nil.
func parseFinish(label string) *int {
	if !finishPattern.MatchString(label) {
		return nil
	}
	digits, _, _ := strings.Cut(label, ".")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return nil
	}
	return &n
}

func parseMetric(s string) *float64 {
	s = models.NormalizeText(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
