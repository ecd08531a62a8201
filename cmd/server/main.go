// Package main provides the entry point for the keiba-insight HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/keiba-insight/internal/api"
	"github.com/yourusername/keiba-insight/internal/cache"
	"github.com/yourusername/keiba-insight/internal/config"
	"github.com/yourusername/keiba-insight/internal/dataset"
	"github.com/yourusername/keiba-insight/internal/datasource"
	"github.com/yourusername/keiba-insight/internal/health"
	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/repository"
	"github.com/yourusername/keiba-insight/internal/scheduler"
	"github.com/yourusername/keiba-insight/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// oddsCacheSize bounds the number of races whose odds are kept.
const oddsCacheSize = 512

var configFile string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve race cards, odds and horse performance data",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(configFile)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("keiba-insight %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultPath, "Path to configuration file")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func serve(configPath string) error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
	}).Info("keiba-insight server starting")

	// The server keeps running without past race data; the history and
	// benchmark endpoints then answer 500 and /ready reports not ready.
	var ds *dataset.Dataset
	ds, err = dataset.NewLoaderFromConfig(cfg.Dataset, appLog).LoadFile(cfg.Dataset.Path)
	if err != nil {
		appLog.WithError(err).Error("Past race data unavailable")
		ds = nil
	}

	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	source, err := datasource.NewFactory(cfg.Scraper, appLog).Create(datasource.YahooSourceType)
	if err != nil {
		return fmt.Errorf("failed to create race source: %w", err)
	}

	oddsCache := cache.NewOddsCache(cfg.Cache.OddsTTL(), oddsCacheSize)
	scrapeSvc := service.NewScrapeService(source, repos.RaceCards, appLog).
		WithValidator(service.NewRaceCardValidator(cfg.Scraper.RacesPerDay))

	healthSrv := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Port:        strconv.Itoa(cfg.Health.Port),
		Logger:      appLog,
		Checks: map[string]health.Checker{
			"dataset":    health.DatasetChecker(ds),
			"race_cards": health.DirectoryChecker(cfg.RaceCards.Dir),
		},
	})

	router := api.NewRouter(api.Dependencies{
		Performance:    service.NewPerformanceAggregator(ds, appLog),
		Benchmark:      service.NewBenchmarkAggregator(ds, appLog),
		RaceCards:      service.NewRaceCardService(repos.RaceCards, source, oddsCache, appLog),
		Scraper:        scrapeSvc,
		Health:         healthSrv.Handler(),
		Logger:         appLog,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Health.Port > 0 {
		if err := healthSrv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scrapeSvc, appLog)
		if err := sched.ScheduleDailyScrape(cfg.Scheduler.Cron, cfg.Scheduler.DayOffset); err != nil {
			return fmt.Errorf("failed to schedule scrape: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		appLog.WithField("next_run", sched.GetNextRun()).Info("Scrape scheduler started")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.WithField("address", cfg.Server.Address).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	healthSrv.SetReady(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		appLog.WithField("signal", sig).Info("Shutdown signal received")
	case err := <-errCh:
		appLog.WithError(err).Error("HTTP server failed")
	}

	healthSrv.SetReady(false)
	if sched != nil {
		_ = sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("Error during HTTP server shutdown")
	}
	cancel()

	appLog.Info("keiba-insight server shut down")
	return nil
}
