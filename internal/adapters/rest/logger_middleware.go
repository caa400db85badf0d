package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JoeBashe/stl-scraper/internal/core/port"
)

// requestLogger logs one line per request through the structured logger.
func requestLogger(logger port.LoggerPort) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request", port.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start).String(),
				"remote":   r.RemoteAddr,
			})
		})
	}
}
