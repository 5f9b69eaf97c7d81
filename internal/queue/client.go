package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Task and queue names
const (
	TypeDetectText = "aidetector:detect_text"
	QueueDetection = "detection"
)

// Texts longer than this are gzip-compressed into the payload
const compressThreshold = 64 * 1024

// ErrJobNotFound is returned by JobStatus for unknown or expired jobs
var ErrJobNotFound = errors.New("job not found")

// DetectTextPayload is the payload of a detection job
type DetectTextPayload struct {
	AnalysisID     string `json:"analysis_id"`
	Text           string `json:"text,omitempty"`
	CompressedText string `json:"compressed_text,omitempty"` // gzip + base64, set instead of Text for large inputs
	Source         string `json:"source,omitempty"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// JobStatus is the queue-side view of a detection job
type JobStatus struct {
	ID      string `json:"id"`
	State   string `json:"state"` // pending, active, retry, archived, completed, ...
	Retried int    `json:"retried"`
	LastErr string `json:"last_error,omitempty"`
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.RedisAddr,
	}

	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

// newDetectTextPayload builds the payload, capturing the span in ctx
func newDetectTextPayload(ctx context.Context, analysisID, text, source string) (DetectTextPayload, error) {
	payload := DetectTextPayload{
		AnalysisID: analysisID,
		Source:     source,
		EnqueuedAt: time.Now().UnixNano(), // Record enqueue time for queue wait metrics
	}

	if len(text) > compressThreshold {
		compressed, err := compressText(text)
		if err != nil {
			return payload, err
		}
		payload.CompressedText = compressed
	} else {
		payload.Text = text
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()
		payload.TraceID = spanCtx.TraceID().String()
		payload.SpanID = spanCtx.SpanID().String()

		span.AddEvent("task_enqueued", trace.WithAttributes(
			attribute.String("task.type", TypeDetectText),
			attribute.String("task.id", analysisID),
			attribute.Bool("payload.compressed", payload.CompressedText != ""),
			attribute.Int64("enqueued_at", payload.EnqueuedAt),
		))
	}

	return payload, nil
}

// EnqueueDetectText enqueues a detection job. The analysis ID doubles as the
// task ID so callers can poll JobStatus with it.
func (c *Client) EnqueueDetectText(ctx context.Context, analysisID, text, source string) (string, error) {
	payload, err := newDetectTextPayload(ctx, analysisID, text, source)
	if err != nil {
		return "", err
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal task payload: %w", err)
	}

	task := asynq.NewTask(TypeDetectText, payloadBytes, asynq.TaskID(analysisID))

	opts := []asynq.Option{
		asynq.MaxRetry(5),
		asynq.Timeout(5 * time.Minute), // Covers a slow LLM lookup
		asynq.Queue(QueueDetection),
		asynq.Retention(24 * time.Hour),
	}

	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue detect text task: %w", err)
	}

	return info.ID, nil
}

// JobStatus reports the state of a detection job
func (c *Client) JobStatus(id string) (*JobStatus, error) {
	info, err := c.inspector.GetTaskInfo(QueueDetection, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to inspect task: %w", err)
	}

	return &JobStatus{
		ID:      info.ID,
		State:   info.State.String(),
		Retried: info.Retried,
		LastErr: info.LastErr,
	}, nil
}

// Close closes the client connection
func (c *Client) Close() error {
	if err := c.inspector.Close(); err != nil {
		c.client.Close()
		return err
	}
	return c.client.Close()
}
