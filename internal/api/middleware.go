package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/yourusername/keiba-insight/internal/logger"
	"github.com/yourusername/keiba-insight/internal/metrics"
)

// accessLog logs and measures every request under its chi route pattern so
// that path parameters do not explode metric cardinality.
func accessLog(log *logger.AccessLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(status), duration.Seconds())
			log.LogRequest(chimiddleware.GetReqID(r.Context()), r.Method, route, r.URL.Path, status, ww.BytesWritten(), duration)
		})
	}
}
