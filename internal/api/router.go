// Package api exposes the horse history, benchmark, race card and scraper
// operations over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/metrics"
	"github.com/yourusername/keiba-insight/internal/service"
)

// queryTimeout bounds the JSON endpoints. Scraper routes stream for as long
// as the run takes and are not bounded.
const queryTimeout = 30 * time.Second

// Dependencies are the services served by the router.
type Dependencies struct {
	Performance *service.PerformanceAggregator
	Benchmark   *service.BenchmarkAggregator
	RaceCards   *service.RaceCardService
	Scraper     ScrapeRunner
	Health      http.Handler
	Logger      *logrus.Logger

	CORSOrigins    []string
	MetricsEnabled bool
	MetricsPath    string
}

// NewRouter builds the HTTP handler for the whole service.
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &Handler{
		performance: deps.Performance,
		benchmark:   deps.Benchmark,
		raceCards:   deps.RaceCards,
		logger:      log,
	}
	sh := NewScraperHandler(deps.Scraper, origins, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(accessLog(logger.NewAccessLogger(log)))
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	if deps.Health != nil {
		r.Handle("/health", deps.Health)
		r.Handle("/live", deps.Health)
		r.Handle("/ready", deps.Health)
	}
	if deps.MetricsEnabled {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(queryTimeout))

		r.Get("/horse_past_data/{horseName}", h.GetHorsePastData)
		r.Get("/benchmark_times/{venue}/{trackAndDistance}/{raceClass}", h.GetBenchmarkTimes)
		r.Get("/races/{date}/{venue}", h.GetRaces)
		r.Get("/race_card/{date}/{venue}/{raceNum}", h.GetRaceCard)
		r.Get("/odds/{raceID}", h.GetOdds)
	})

	r.Post("/run-scraper", sh.RunScraper)
	r.Get("/ws/scraper", sh.StreamScraper)

	return r
}
