package queue

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/zombar/aidetector/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// handleDetectText analyzes the job's text and persists the result
func (w *Worker) handleDetectText(ctx context.Context, t *asynq.Task) error {
	var payload DetectTextPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %v: %w", err, asynq.SkipRetry)
	}

	text := payload.Text
	if payload.CompressedText != "" {
		decompressed, err := decompressText(payload.CompressedText)
		if err != nil {
			return fmt.Errorf("invalid compressed text: %v: %w", err, asynq.SkipRetry)
		}
		text = decompressed
	}

	retryCount, _ := asynq.GetRetryCount(ctx)

	var queueWaitTime time.Duration
	if payload.EnqueuedAt > 0 {
		queueWaitTime = time.Since(time.Unix(0, payload.EnqueuedAt))
	}

	w.logger.Info("processing detection job",
		"analysis_id", payload.AnalysisID,
		"text_length", len(text),
		"retry_count", retryCount,
		"queue_wait_seconds", queueWaitTime.Seconds(),
	)

	ctx, span := startTaskSpan(ctx, payload,
		attribute.Int("text.length", len(text)),
		attribute.Float64("queue.wait_time_seconds", queueWaitTime.Seconds()),
	)
	if span != nil {
		defer span.End()
	}

	start := time.Now()
	result := w.detector.Analyze(ctx, text)
	duration := time.Since(start)

	now := time.Now()
	analysis := &models.Analysis{
		ID:        payload.AnalysisID,
		Text:      text,
		Source:    payload.Source,
		Result:    result,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := w.store.SaveAnalysis(analysis); err != nil {
		if isRetriableError(err) {
			w.logger.Warn("retriable error saving analysis, will retry",
				"analysis_id", payload.AnalysisID,
				"error", err,
				"retry_count", retryCount,
			)
			return err
		}
		w.logger.Error("permanent error saving analysis",
			"analysis_id", payload.AnalysisID,
			"error", err,
		)
		return fmt.Errorf("failed to save analysis: %v: %w", err, asynq.SkipRetry)
	}

	w.metrics.ObserveQueueWait(queueWaitTime)
	w.metrics.ObserveDetection(ctx, "queue", result, duration)

	if span != nil {
		span.SetAttributes(
			attribute.Int("detection.ai_probability", result.AIProbability),
			attribute.String("detection.verdict", result.Verdict),
		)
	}

	w.logger.Info("detection job completed",
		"analysis_id", payload.AnalysisID,
		"verdict", result.Verdict,
		"ai_probability", result.AIProbability,
		"duration_ms", duration.Milliseconds(),
	)

	return nil
}

// startTaskSpan rebuilds the enqueuing span from the payload and starts a
// consumer span under it. Returns a nil span when the payload has no trace.
func startTaskSpan(ctx context.Context, payload DetectTextPayload, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if payload.TraceID == "" || payload.SpanID == "" {
		return ctx, nil
	}
	traceID, err := trace.TraceIDFromHex(payload.TraceID)
	if err != nil {
		return ctx, nil
	}
	spanID, err := trace.SpanIDFromHex(payload.SpanID)
	if err != nil {
		return ctx, nil
	}

	remoteSpanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx = trace.ContextWithRemoteSpanContext(ctx, remoteSpanCtx)

	attrs = append(attrs,
		attribute.String("task.type", TypeDetectText),
		attribute.String("analysis.id", payload.AnalysisID),
		attribute.Int64("enqueued_at", payload.EnqueuedAt),
	)
	ctx, span := otel.Tracer("aidetector").Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
	)
	span.AddEvent("task_processing_started")
	return ctx, span
}

// isRetriableError reports connection, timeout and lock errors
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	retriablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"context deadline exceeded",
		"database is locked",
		"i/o timeout",
		"no such host",
		"network is unreachable",
	}

	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// compressText gzips and base64 encodes text
func compressText(text string) (string, error) {
	if text == "" {
		return "", nil
	}

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)

	if _, err := gzWriter.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("failed to write to gzip: %w", err)
	}

	if err := gzWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decompressText reverses compressText
func decompressText(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	gzReader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	decompressed, err := io.ReadAll(gzReader)
	if err != nil {
		return "", fmt.Errorf("failed to read decompressed data: %w", err)
	}

	return string(decompressed), nil
}
