package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTextPayloadJSON(t *testing.T) {
	payload := DetectTextPayload{
		AnalysisID: "test-123",
		Text:       "Sample text for analysis",
		Source:     "essay.txt",
		EnqueuedAt: 42,
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"analysis_id":"test-123"`)
	assert.NotContains(t, string(data), "compressed_text")
	assert.NotContains(t, string(data), "trace_id")

	var decoded DetectTextPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewDetectTextPayloadSmallText(t *testing.T) {
	before := time.Now().UnixNano()
	payload, err := newDetectTextPayload(context.Background(), "a1", "short text", "cli")
	require.NoError(t, err)

	assert.Equal(t, "short text", payload.Text)
	assert.Empty(t, payload.CompressedText)
	assert.Equal(t, "cli", payload.Source)
	assert.GreaterOrEqual(t, payload.EnqueuedAt, before)
	assert.Empty(t, payload.TraceID)
}

func TestNewDetectTextPayloadCompressesLargeText(t *testing.T) {
	text := strings.Repeat("Furthermore, it is important to note the results. ", 2000)
	require.Greater(t, len(text), compressThreshold)

	payload, err := newDetectTextPayload(context.Background(), "a2", text, "")
	require.NoError(t, err)

	assert.Empty(t, payload.Text)
	require.NotEmpty(t, payload.CompressedText)
	assert.Less(t, len(payload.CompressedText), len(text))

	restored, err := decompressText(payload.CompressedText)
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"sqlite lock", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"upper case", errors.New("Service Unavailable"), true},
		{"constraint", errors.New("UNIQUE constraint failed: analyses.id"), false},
		{"syntax", errors.New("syntax error near SELECT"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetriableError(tt.err))
		})
	}
}

func TestRetryDelay(t *testing.T) {
	task := asynq.NewTask(TypeDetectText, nil)

	assert.Equal(t, 10*time.Second, retryDelay(0, nil, task))
	assert.Equal(t, 30*time.Second, retryDelay(1, nil, task))
	assert.Equal(t, 15*time.Minute, retryDelay(4, nil, task))
	assert.Equal(t, 15*time.Minute, retryDelay(50, nil, task))
	assert.Equal(t, 10*time.Second, retryDelay(-1, nil, task))

	for i := 1; i < len(retryDelays); i++ {
		assert.Greater(t, retryDelays[i], retryDelays[i-1])
	}
}

func TestTaskTypeConstants(t *testing.T) {
	assert.Equal(t, "aidetector:detect_text", TypeDetectText)
	assert.Equal(t, "detection", QueueDetection)
}

func TestNewWorkerRegistersHandler(t *testing.T) {
	w := NewWorker(WorkerConfig{RedisAddr: "localhost:0"}, &memoryStore{}, fixedDetector{}, nil)
	assert.NotNil(t, w.Server())
	assert.Equal(t, 4, w.concurrency)

	h, pattern := w.mux.Handler(asynq.NewTask(TypeDetectText, nil))
	assert.NotNil(t, h)
	assert.Equal(t, TypeDetectText, pattern)
}
