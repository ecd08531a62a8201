package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/models"
	"github.com/yourusername/keiba-insight/internal/service"
)

// ScrapeRunner runs one scrape for a race day.
type ScrapeRunner interface {
	Run(ctx context.Context, date time.Time, progress service.ProgressFunc) (*service.ScrapeResult, error)
}

// raceTimezone is the calendar race dates are expressed in.
var raceTimezone = loadRaceTimezone()

func loadRaceTimezone() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// Scheduler manages scheduled race card scrapes
type Scheduler struct {
	cron       *cron.Cron
	runner     ScrapeRunner
	logger     *logrus.Logger
	mu         sync.RWMutex
	isRunning  bool
	jobIDs     []cron.EntryID
	jobTimeout time.Duration
	now        func() time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(runner ScrapeRunner, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(raceTimezone)),
		runner:     runner,
		logger:     logger,
		jobIDs:     make([]cron.EntryID, 0),
		jobTimeout: 30 * time.Minute,
		now:        time.Now,
	}
}

// ScheduleDailyScrape schedules a scrape of the race day dayOffset days
// after each run, e.g. a Friday evening run with offset 1 fetches Saturday.
func (s *Scheduler) ScheduleDailyScrape(cronExpression string, dayOffset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()
		s.runScrape(ctx, dayOffset)
	})
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"cron":       cronExpression,
		"day_offset": dayOffset,
	}).Info("Scheduled race card scrape")

	return nil
}

// runScrape is the body of the scheduled job.
func (s *Scheduler) runScrape(ctx context.Context, dayOffset int) {
	target := s.now().In(raceTimezone).AddDate(0, 0, dayOffset)
	entry := s.logger.WithField("target_date", target.Format("2006-01-02"))
	entry.Info("Starting scheduled race card scrape")

	result, err := s.runner.Run(ctx, target, func(line string) {
		entry.Debug(line)
	})
	switch {
	case errors.Is(err, models.ErrNoRacesScheduled):
		entry.Info("No races scheduled, nothing to scrape")
	case errors.Is(err, models.ErrScrapeInProgress):
		entry.Warn("Skipping scheduled scrape, another run is active")
	case err != nil:
		entry.WithError(err).Error("Scheduled race card scrape failed")
	default:
		entry.WithFields(logrus.Fields{
			"run_id": result.RunID.String(),
			"saved":  len(result.SavedFiles),
			"venues": result.Venues,
		}).Info("Scheduled race card scrape completed")
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Scheduler stopped")

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}
