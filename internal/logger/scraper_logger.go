package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ScraperLogger provides dedicated logging for upstream scraping.
type ScraperLogger struct {
	*logrus.Entry
}

// NewScraperLogger creates a new scraper logger.
func NewScraperLogger(baseLogger *logrus.Logger) *ScraperLogger {
	return &ScraperLogger{
		Entry: baseLogger.WithField("component", "scraper"),
	}
}

// LogScheduleFetched logs a monthly schedule fetch.
func (sl *ScraperLogger) LogScheduleFetched(year, month, raceDays int) {
	sl.WithFields(logrus.Fields{
		"year":      year,
		"month":     month,
		"race_days": raceDays,
	}).Info("Race schedule fetched")
}

// LogRaceCardFetched logs a single race card fetch.
func (sl *ScraperLogger) LogRaceCardFetched(raceID, venue string, raceNumber, entries int) {
	sl.WithFields(logrus.Fields{
		"race_id":     raceID,
		"venue":       venue,
		"race_number": raceNumber,
		"entries":     entries,
	}).Debug("Race card fetched")
}

// LogRaceCardSkipped logs a race that could not be fetched or parsed.
func (sl *ScraperLogger) LogRaceCardSkipped(raceID string, err error) {
	sl.WithFields(logrus.Fields{
		"race_id": raceID,
	}).WithError(err).Warn("Race card skipped")
}

// LogRaceCardSaved logs a race card written to disk.
func (sl *ScraperLogger) LogRaceCardSaved(raceID, path string) {
	sl.WithFields(logrus.Fields{
		"race_id": raceID,
		"path":    path,
	}).Info("Race card saved")
}

// LogOddsFetched logs a live odds fetch.
func (sl *ScraperLogger) LogOddsFetched(raceID string, runners int, cached bool) {
	sl.WithFields(logrus.Fields{
		"race_id": raceID,
		"runners": runners,
		"cached":  cached,
	}).Debug("Odds fetched")
}

// LogRunFinished logs the end of a scrape run.
func (sl *ScraperLogger) LogRunFinished(runID, date string, saved int, duration time.Duration, err error) {
	entry := sl.WithFields(logrus.Fields{
		"run_id":      runID,
		"target_date": date,
		"saved_cards": saved,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("Scrape run finished with error")
		return
	}
	entry.Info("Scrape run finished")
}
