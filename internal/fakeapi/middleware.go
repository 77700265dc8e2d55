package fakeapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/benvon/matrix-todo/internal/logger"
	"go.uber.org/zap"
)

// MaxRequestSize is the largest request body the server reads (1MB)
const MaxRequestSize int64 = 1 << 20

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", logger.SanitizePath(r.URL.Path)),
			zap.Int("status_code", wrapped.statusCode),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// guard rejects oversized and non-JSON request bodies and sets the API's response headers
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			if r.ContentLength > MaxRequestSize {
				s.respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			ct := strings.ToLower(r.Header.Get("Content-Type"))
			if ct == "" {
				s.respondError(w, http.StatusBadRequest, "Content-Type header is required")
				return
			}
			if !strings.HasPrefix(ct, "application/json") {
				s.respondError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)
		}

		next.ServeHTTP(w, r)
	})
}
