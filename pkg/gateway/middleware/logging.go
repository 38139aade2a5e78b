package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// HTTPRecorder receives per-request telemetry. A nil recorder is a no-op.
type HTTPRecorder interface {
	RecordHTTPRequest(route, method, status string, duration time.Duration)
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Logging logs each request's method, path, status, and latency with the
// request ID for correlation, and feeds the same data to the recorder. The
// log level escalates with the status code: 2xx/3xx info, 4xx warn, 5xx
// error.
func Logging(recorder HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ctx := r.Context()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			latency := time.Since(startTime)

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= 500:
				level = slog.LevelError
			case rw.statusCode >= 400:
				level = slog.LevelWarn
			}

			slog.Log(ctx, level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"latency_ms", latency.Milliseconds(),
				"request_id", GetRequestID(ctx),
				"remote_addr", r.RemoteAddr,
			)

			if recorder != nil {
				recorder.RecordHTTPRequest(routePattern(r), r.Method, strconv.Itoa(rw.statusCode), latency)
			}
		})
	}
}

// routePattern returns the matched mux pattern when available, falling
// back to the raw path. Patterns keep metric cardinality bounded.
func routePattern(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.URL.Path
}
