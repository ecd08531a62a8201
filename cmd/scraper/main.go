// Package main provides a command line scraper for race schedules and cards.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/keiba-insight/internal/config"
	"github.com/yourusername/keiba-insight/internal/datasource"
	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/models"
	"github.com/yourusername/keiba-insight/internal/repository"
	"github.com/yourusername/keiba-insight/internal/service"
)

var (
	configFile string
	targetDate string
	year       int
	month      int

	cfg    *config.Config
	appLog *logrus.Logger
	source datasource.RaceSource
)

var rootCmd = &cobra.Command{
	Use:   "scraper",
	Short: "Fetch race schedules and race cards from the upstream site",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.LoadWithDefaults(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		appLog = logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
		source, err = datasource.NewFactory(cfg.Scraper, appLog).Create(datasource.YahooSourceType)
		if err != nil {
			return fmt.Errorf("failed to create race source: %w", err)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape and store every race card of one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := time.Parse("2006-01-02", targetDate)
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}

		repos, err := repository.NewRepositories(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize repositories: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := service.NewScrapeService(source, repos.RaceCards, appLog).
			WithValidator(service.NewRaceCardValidator(cfg.Scraper.RacesPerDay))
		result, err := svc.Run(ctx, date, func(line string) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		})
		if errors.Is(err, models.ErrNoRacesScheduled) {
			return nil
		}
		if err != nil {
			return err
		}

		appLog.WithFields(logrus.Fields{
			"run_id":   result.RunID.String(),
			"venues":   result.Venues,
			"saved":    len(result.SavedFiles),
			"duration": result.Duration.String(),
		}).Info("Scrape finished")
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List the race days of a month",
	RunE: func(cmd *cobra.Command, args []string) error {
		if month < 1 || month > 12 {
			return fmt.Errorf("--month must be between 1 and 12")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		days, err := source.FetchSchedule(ctx, year, month)
		if err != nil {
			return fmt.Errorf("failed to fetch schedule: %w", err)
		}
		if len(days) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d年%d月の開催情報が見つかりませんでした。\n", year, month)
			return nil
		}
		for _, d := range days {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", d.Date, d.Venue, d.BaseID)
		}
		return nil
	},
}

func init() {
	now := time.Now()

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "Path to configuration file")

	runCmd.Flags().StringVar(&targetDate, "date", now.AddDate(0, 0, 1).Format("2006-01-02"), "Race day to scrape (YYYY-MM-DD)")

	scheduleCmd.Flags().IntVar(&year, "year", now.Year(), "Year")
	scheduleCmd.Flags().IntVar(&month, "month", int(now.Month()), "Month (1-12)")

	rootCmd.AddCommand(runCmd, scheduleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
