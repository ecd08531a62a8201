package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-insight/internal/models"
	"github.com/yourusername/keiba-insight/internal/service"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// ScrapeRunner runs one scrape for a race day.
type ScrapeRunner interface {
	Run(ctx context.Context, date time.Time, progress service.ProgressFunc) (*service.ScrapeResult, error)
}

// scrapeRequest is the target day of a scrape run.
type scrapeRequest struct {
	Year  int `validate:"required,min=2000,max=2100"`
	Month int `validate:"required,min=1,max=12"`
	Day   int `validate:"required,min=1,max=31"`
}

// Date returns the requested day, failing for dates such as 2月30日.
func (s scrapeRequest) Date() (time.Time, error) {
	d := time.Date(s.Year, time.Month(s.Month), s.Day, 0, 0, 0, 0, time.UTC)
	if d.Day() != s.Day {
		return time.Time{}, fmt.Errorf("%04d-%02d-%02d is not a valid date", s.Year, s.Month, s.Day)
	}
	return d, nil
}

// ScraperHandler serves scrape runs as streamed text or websocket frames.
type ScraperHandler struct {
	runner   ScrapeRunner
	validate *validator.Validate
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewScraperHandler creates the scraper endpoints. Websocket upgrades are
// accepted from the given origins; "*" accepts any.
func NewScraperHandler(runner ScrapeRunner, origins []string, log *logrus.Logger) *ScraperHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &ScraperHandler{
		runner:   runner,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		logger: log,
	}
}

// parseScrapeRequest reads year, month and day from the form or query.
func (h *ScraperHandler) parseScrapeRequest(r *http.Request) (time.Time, error) {
	if err := r.ParseForm(); err != nil {
		return time.Time{}, err
	}
	var req scrapeRequest
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"year", &req.Year},
		{"month", &req.Month},
		{"day", &req.Day},
	} {
		raw := strings.TrimSpace(r.Form.Get(f.name))
		if raw == "" {
			return time.Time{}, fmt.Errorf("%s is required", f.name)
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s must be a number", f.name)
		}
		*f.dst = v
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return time.Time{}, fmt.Errorf("%s is out of range", strings.ToLower(fe.Field()))
		}
		return time.Time{}, err
	}
	return req.Date()
}

// RunScraper runs a scrape and streams its progress as text/plain lines.
// Form params: year, month, day
func (h *ScraperHandler) RunScraper(w http.ResponseWriter, r *http.Request) {
	date, err := h.parseScrapeRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A run outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	flusher, _ := w.(http.Flusher)
	started := false
	progress := func(line string) {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		fmt.Fprintln(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}

	_, err = h.runner.Run(r.Context(), date, progress)
	if started {
		return
	}
	switch {
	case errors.Is(err, models.ErrScrapeInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// StreamScraper upgrades to a websocket and sends each progress line as a
// text frame, closing the connection when the run ends.
// Query params: year, month, day
func (h *ScraperHandler) StreamScraper(w http.ResponseWriter, r *http.Request) {
	date, err := h.parseScrapeRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reading is only used to notice the peer going away.
	conn.SetReadLimit(maxMessageSize)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(line string) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, []byte(line))
	}

	_, err = h.runner.Run(ctx, date, func(line string) {
		if err := send(line); err != nil {
			cancel()
		}
	})

	closeCode, reason := websocket.CloseNormalClosure, "done"
	if errors.Is(err, models.ErrScrapeInProgress) {
		_ = send("エラー: " + err.Error())
		closeCode, reason = websocket.CloseTryAgainLater, "busy"
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, reason),
		time.Now().Add(writeWait))
}
