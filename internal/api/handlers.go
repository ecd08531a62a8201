package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/models"
	"github.com/yourusername/keiba-insight/internal/repository"
	"github.com/yourusername/keiba-insight/internal/service"
)

// Handler serves the JSON endpoints under /api.
type Handler struct {
	performance *service.PerformanceAggregator
	benchmark   *service.BenchmarkAggregator
	raceCards   *service.RaceCardService
	logger      *logrus.Logger
}

// pathParam returns a decoded path parameter. chi matches on the raw path
// when the request carries escaped slashes, so values may still be encoded.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// GetHorsePastData returns the horse's past races and condition rates.
// Query params: track_type, distance_min, distance_max, venue, track_condition
func (h *Handler) GetHorsePastData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.ParseFilterSet(models.FilterParams{
		TrackType:      q.Get("track_type"),
		DistanceMin:    q.Get("distance_min"),
		DistanceMax:    q.Get("distance_max"),
		Venue:          q.Get("venue"),
		TrackCondition: q.Get("track_condition"),
	})

	history, err := h.performance.ComputeHorseHistory(r.Context(), pathParam(r, "horseName"), filters)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// GetBenchmarkTimes returns the average corrected times of top-3 finishers
// under the given venue, course and class.
func (h *Handler) GetBenchmarkTimes(w http.ResponseWriter, r *http.Request) {
	times, err := h.benchmark.ComputeBenchmarkTimes(
		r.Context(),
		pathParam(r, "venue"),
		pathParam(r, "trackAndDistance"),
		pathParam(r, "raceClass"),
	)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, times)
}

// GetRaces lists the stored races of a meeting.
func (h *Handler) GetRaces(w http.ResponseWriter, r *http.Request) {
	races, err := h.raceCards.ListRaces(r.Context(), pathParam(r, "date"), pathParam(r, "venue"))
	if err != nil {
		h.repositoryError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, races)
}

// GetRaceCard returns the stored entries of one race joined with live odds.
func (h *Handler) GetRaceCard(w http.ResponseWriter, r *http.Request) {
	raceNum, err := strconv.Atoi(chi.URLParam(r, "raceNum"))
	if err != nil || raceNum < 1 {
		respondError(w, http.StatusBadRequest, "invalid race number")
		return
	}

	entries, err := h.raceCards.GetRaceCard(r.Context(), pathParam(r, "date"), pathParam(r, "venue"), raceNum)
	if err != nil {
		h.repositoryError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// GetOdds returns live odds for a race. It never fails; upstream errors
// produce an empty list.
func (h *Handler) GetOdds(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.raceCards.GetOdds(r.Context(), pathParam(r, "raceID")))
}

func (h *Handler) repositoryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrInvalidKey) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serverError(w, r, err)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithFields(logrus.Fields{
		"path":  r.URL.Path,
		"error": err.Error(),
	}).Error("Request failed")
	respondError(w, http.StatusInternalServerError, err.Error())
}
