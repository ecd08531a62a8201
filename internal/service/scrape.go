package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/datasource"
	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/metrics"
	"github.com/yourusername/keiba-insight/internal/models"
	"github.com/yourusername/keiba-insight/internal/repository"
)

// ProgressFunc receives one human readable line per scrape step.
type ProgressFunc func(line string)

// ScrapeResult summarises a scrape run.
type ScrapeResult struct {
	RunID      uuid.UUID
	TargetDate string
	Venues     []string
	SavedFiles []string
	Duration   time.Duration
}

// ScrapeService fetches the race cards of one day and stores one file per
// race. Only one run may be active at a time.
type ScrapeService struct {
	source    datasource.RaceSource
	repo      repository.RaceCardRepository
	validator *RaceCardValidator
	logger    *logger.ScraperLogger

	mu      sync.Mutex
	running bool
}

// NewScrapeService creates a scrape service.
func NewScrapeService(source datasource.RaceSource, repo repository.RaceCardRepository, log *logrus.Logger) *ScrapeService {
	if log == nil {
		log = logger.Discard()
	}
	return &ScrapeService{
		source:    source,
		repo:      repo,
		validator: NewRaceCardValidator(models.RacesPerDay),
		logger:    logger.NewScraperLogger(log),
	}
}

// WithValidator replaces the validator applied to cards before saving.
func (s *ScrapeService) WithValidator(v *RaceCardValidator) *ScrapeService {
	s.validator = v
	return s
}

// Running reports whether a run is in progress.
func (s *ScrapeService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run scrapes every venue racing on date. It fails with
// models.ErrScrapeInProgress when another run is active and with
// models.ErrNoRacesScheduled when the schedule lists nothing for the date.
func (s *ScrapeService) Run(ctx context.Context, date time.Time, progress ProgressFunc) (*ScrapeResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, models.ErrScrapeInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if progress == nil {
		progress = func(string) {}
	}

	result := &ScrapeResult{
		RunID:      uuid.New(),
		TargetDate: date.Format("2006-01-02"),
	}
	start := time.Now()
	err := s.run(ctx, date, result, progress)
	result.Duration = time.Since(start)
	s.logger.LogRunFinished(result.RunID.String(), result.TargetDate, len(result.SavedFiles), result.Duration, err)
	return result, err
}

func (s *ScrapeService) run(ctx context.Context, date time.Time, result *ScrapeResult, progress ProgressFunc) error {
	target := result.TargetDate
	progress(fmt.Sprintf("--- 処理開始: %s ---", target))
	defer progress("--- 処理終了 ---")

	days, err := s.source.FetchSchedule(ctx, date.Year(), int(date.Month()))
	if err != nil {
		progress(fmt.Sprintf("エラー: スケジュールの取得に失敗しました: %v", err))
		return fmt.Errorf("failed to fetch schedule: %w", err)
	}

	var meetings []models.RaceDay
	for _, d := range days {
		if d.Date == target {
			meetings = append(meetings, d)
		}
	}
	if len(meetings) == 0 {
		progress(fmt.Sprintf("エラー: %s に開催されるレースが見つかりませんでした。", target))
		return models.ErrNoRacesScheduled
	}

	for _, meeting := range meetings {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Venues = append(result.Venues, meeting.Venue)
		progress(fmt.Sprintf("--- %s競馬場の処理を開始します ---", meeting.Venue))

		cards, err := s.source.FetchDayRaceCards(ctx, meeting.BaseID)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			progress(fmt.Sprintf("%s競馬場の出馬表データ取得に失敗しました。", meeting.Venue))
			continue
		}
		if len(cards) == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			progress(fmt.Sprintf("%s競馬場の出馬表データ取得に失敗しました。", meeting.Venue))
			continue
		}

		for i := range cards {
			card := &cards[i]
			// The schedule's venue names the file even if the page differs.
			card.Venue = meeting.Venue
			for j := range card.Entries {
				card.Entries[j].Venue = meeting.Venue
			}

			if problems := s.validator.ValidateRaceCard(card); len(problems) > 0 {
				s.logger.LogRaceCardSkipped(card.RaceID, fmt.Errorf("invalid race card: %s", strings.Join(problems, "; ")))
				progress(fmt.Sprintf("エラー: %s の出馬表が不正なため保存しませんでした。", card.RaceNumberLabel()))
				continue
			}
			for j := range card.Entries {
				if warnings := s.validator.ValidateEntry(&card.Entries[j]); len(warnings) > 0 {
					s.logger.WithFields(logrus.Fields{
						"race_id":  card.RaceID,
						"horse":    card.Entries[j].HorseName,
						"warnings": warnings,
					}).Warn("Suspicious race card entry")
				}
			}

			path, err := s.repo.Save(ctx, target, card)
			if err != nil {
				progress(fmt.Sprintf("エラー: %s の保存に失敗しました: %v", card.RaceID, err))
				continue
			}
			metrics.RecordRaceCardSaved()
			s.logger.LogRaceCardSaved(card.RaceID, path)
			result.SavedFiles = append(result.SavedFiles, path)
			progress(fmt.Sprintf("=> %s に保存しました。", path))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	progress("--- 全ての処理が完了しました ---")
	return nil
}
