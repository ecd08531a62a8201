package datasource

import (
	"context"
	"errors"

	"github.com/yourusername/keiba-insight/internal/models"
)

// RaceSource defines the interface for fetching race schedules, entries and
// odds from an upstream provider
type RaceSource interface {
	// FetchSchedule lists the race days of a month, sorted by date
	FetchSchedule(ctx context.Context, year, month int) ([]models.RaceDay, error)

	// FetchRaceCard retrieves the entry list of race n of a race day
	FetchRaceCard(ctx context.Context, baseID string, n int) (*models.RaceCard, error)

	// FetchDayRaceCards retrieves every race of a race day, skipping races
	// that cannot be fetched
	FetchDayRaceCards(ctx context.Context, baseID string) ([]models.RaceCard, error)

	// FetchOdds retrieves live win odds of a race
	FetchOdds(ctx context.Context, raceID string) ([]models.OddsEntry, error)

	// Name returns the name of the source
	Name() string
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "not_found")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

func (e DataSourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeForbidden         = "forbidden"
	ErrCodeNotFound          = "not_found"
	ErrCodeInvalidData       = "invalid_data"
	ErrCodeNetworkError      = "network_error"
	ErrCodeServerError       = "server_error"
	ErrCodeUnknown           = "unknown"
)

// Sentinel causes wrapped by DataSourceError
var (
	ErrDisallowedByRobots = errors.New("disallowed by robots.txt")
	ErrNotFound           = errors.New("data not found")
	ErrInvalidData        = errors.New("invalid data format")
)

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of a DataSourceError in err's chain, or
// ErrCodeUnknown.
func ErrorCode(err error) string {
	var dsErr DataSourceError
	if errors.As(err, &dsErr) {
		return dsErr.Code
	}
	return ErrCodeUnknown
}
