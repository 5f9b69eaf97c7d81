// Package logging writes structured request logs for the detection API.
package logging

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zombar/aidetector/pkg/tracing"
)

// statusRecorder remembers the status code and body size of a response
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// traceAttrs returns the trace and span IDs of the span in ctx. Both are ""
// outside a span.
func traceAttrs(ctx context.Context) []slog.Attr {
	return []slog.Attr{
		slog.String("trace_id", tracing.TraceIDFromContext(ctx)),
		slog.String("span_id", tracing.SpanIDFromContext(ctx)),
	}
}

// levelFor logs 5xx responses as errors and 4xx as warnings
func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// HTTPLoggingMiddleware writes one "http_request" line per request. Install it
// inside the tracing middleware so the line carries the request span.
func HTTPLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.Int("status", rec.status),
				slog.Int64("bytes", rec.bytes),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			attrs = append(attrs, traceAttrs(r.Context())...)
			logger.LogAttrs(r.Context(), levelFor(rec.status), "http_request", attrs...)
		})
	}
}

// HTTPErrorLogger records a failed request together with its trace
func HTTPErrorLogger(logger *slog.Logger, statusCode int, err error, r *http.Request) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
	}
	attrs = append(attrs, traceAttrs(r.Context())...)
	logger.LogAttrs(r.Context(), levelFor(statusCode), "http_error", attrs...)
}

// LogRequest logs msg at info level with the request's route and trace
func LogRequest(logger *slog.Logger, r *http.Request, msg string, attrs ...slog.Attr) {
	all := make([]slog.Attr, 0, len(attrs)+4)
	all = append(all,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	all = append(all, traceAttrs(r.Context())...)
	all = append(all, attrs...)
	logger.LogAttrs(r.Context(), slog.LevelInfo, msg, all...)
}
