package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/database"
	"github.com/zombar/aidetector/internal/metrics"
	"github.com/zombar/aidetector/internal/models"
	"github.com/zombar/aidetector/internal/queue"
)

var aiSample = strings.Join([]string{
	"Furthermore, it is important to note that technology plays a crucial role in the development of modern education systems.",
	"Furthermore, it is important to note that teachers play a crucial role in the development of modern learning environments.",
	"Furthermore, it is important to note that students play a crucial role in the development of modern classroom communities.",
	"Furthermore, it is important to note that parents play a crucial role in the development of modern school partnerships.",
	"Furthermore, it is important to note that policy plays a crucial role in the development of modern national curricula.",
}, " ")

var humanSample = strings.Join([]string{
	"Wow, total chaos!",
	"I couldn't find my keys this morning, so I ran back inside, tore apart the couch cushions, and still missed the bus.",
	"Why does this always happen to me on Mondays?",
}, " ")

// mockQueue implements JobQueue for testing
type mockQueue struct {
	mu       sync.Mutex
	enqueued []string
	states   map[string]*queue.JobStatus
	err      error
}

func (m *mockQueue) EnqueueDetectText(ctx context.Context, analysisID, text, source string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.enqueued = append(m.enqueued, analysisID)
	return analysisID, nil
}

func (m *mockQueue) JobStatus(id string) (*queue.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[id]; ok {
		return s, nil
	}
	return nil, queue.ErrJobNotFound
}

type testEnv struct {
	handler *Handler
	db      *database.DB
	queue   *mockQueue
	metrics *metrics.Metrics
	logs    *bytes.Buffer
}

func setupTestHandler(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New("aidetector", reg)
	q := &mockQueue{states: map[string]*queue.JobStatus{}}

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	h := newHandler(db, analyzer.New(), q, Options{Metrics: m, Gatherer: reg, Logger: logger})
	return &testEnv{handler: h, db: db, queue: q, metrics: m, logs: logs}
}

// logEntries decodes every JSON log line with the given message
func (e *testEnv) logEntries(t *testing.T, msg string) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(e.logs.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == msg {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

// saveSample runs a synchronous detect with save=true and returns the ID
func (e *testEnv) saveSample(t *testing.T, text, source string) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/detect", map[string]interface{}{"text": text, "source": source, "save": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	decode(t, w, &resp)
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	decode(t, w, &response)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, false, response["lookup"])
	assert.Equal(t, true, response["queue"])
}

func TestDetectEndpoint(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(http.MethodPost, "/api/detect", map[string]string{"text": aiSample})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response struct {
		ID     string                `json:"id"`
		Result models.AnalysisResult `json:"result"`
	}
	decode(t, w, &response)

	assert.Empty(t, response.ID)
	assert.Equal(t, 89, response.Result.AIProbability)
	assert.Equal(t, 11, response.Result.HumanProbability)
	assert.Equal(t, models.VerdictAIGenerated, response.Result.Verdict)
	assert.Equal(t, 70, response.Result.Confidence)
	assert.Len(t, response.Result.SentenceAnalysis, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DetectionsTotal.WithLabelValues(models.VerdictAIGenerated, "sync")))

	// Nothing persisted without save
	list, err := env.db.ListAnalyses(10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDetectEndpointHuman(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(http.MethodPost, "/api/detect", map[string]string{"text": humanSample})
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Result models.AnalysisResult `json:"result"`
	}
	decode(t, w, &response)
	assert.Equal(t, 31, response.Result.AIProbability)
	assert.Equal(t, models.VerdictHumanWritten, response.Result.Verdict)
	assert.Equal(t, 55, response.Result.Confidence)
}

func TestDetectEndpointSave(t *testing.T) {
	env := setupTestHandler(t)

	id := env.saveSample(t, aiSample, "essay.txt")

	stored, err := env.db.GetAnalysis(id)
	require.NoError(t, err)
	assert.Equal(t, "essay.txt", stored.Source)
	assert.Equal(t, 89, stored.Result.AIProbability)
}

func TestDetectEndpointValidation(t *testing.T) {
	env := setupTestHandler(t)

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"empty text", map[string]string{"text": "   "}, "required"},
		{"too short", map[string]string{"text": "Only a handful of words here."}, "at least 20 words"},
		{"wrong type", map[string]int{"text": 5}, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/detect", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response map[string]string
			decode(t, w, &response)
			assert.Contains(t, response["error"], tt.want)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/detect", strings.NewReader("{broken"))
	w := httptest.NewRecorder()
	env.handler.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetectEndpointMinWordsOption(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	h := newHandler(db, analyzer.New(), nil, Options{MinWords: 3, Gatherer: prometheus.NewRegistry()})
	req := httptest.NewRequest(http.MethodPost, "/api/detect", strings.NewReader(`{"text":"three words here"}`))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestDetectEndpointClean(t *testing.T) {
	env := setupTestHandler(t)

	text := "Subscribe to our newsletter for weekly updates and offers.\n\n" + aiSample
	w := env.do(http.MethodPost, "/api/detect", map[string]interface{}{"text": text, "clean": true})
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Result models.AnalysisResult `json:"result"`
	}
	decode(t, w, &response)
	assert.Equal(t, 89, response.Result.AIProbability)
	assert.Len(t, response.Result.SentenceAnalysis, 5)
}

func TestCreateJobEndpoint(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(http.MethodPost, "/api/jobs", map[string]string{"text": aiSample, "source": "essay.txt"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var response map[string]interface{}
	decode(t, w, &response)
	assert.Equal(t, "queued", response["status"])
	require.NotEmpty(t, response["job_id"])
	assert.Equal(t, response["job_id"], response["task_id"])
	assert.Equal(t, []string{response["job_id"].(string)}, env.queue.enqueued)
}

func TestCreateJobEndpointErrors(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(http.MethodPost, "/api/jobs", map[string]string{"text": "too short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.queue.enqueued)

	env.queue.err = errors.New("redis down")
	w = env.do(http.MethodPost, "/api/jobs", map[string]string{"text": aiSample})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	env.handler.queue = nil
	w = env.do(http.MethodPost, "/api/jobs", map[string]string{"text": aiSample})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateJobLogsEnqueue(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(http.MethodPost, "/api/jobs", map[string]string{"text": aiSample})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var response map[string]interface{}
	decode(t, w, &response)

	entries := env.logEntries(t, "job enqueued")
	require.Len(t, entries, 1)
	assert.Equal(t, response["job_id"], entries[0]["job_id"])
	assert.Equal(t, "/api/jobs", entries[0]["path"])
	assert.Equal(t, "api", entries[0]["component"])
}

func TestServerErrorsAreLogged(t *testing.T) {
	env := setupTestHandler(t)

	env.queue.err = errors.New("redis down")
	w := env.do(http.MethodPost, "/api/jobs", map[string]string{"text": aiSample})
	require.Equal(t, http.StatusInternalServerError, w.Code)

	require.NoError(t, env.db.Close())
	w = env.do(http.MethodGet, "/api/analyses", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	entries := env.logEntries(t, "http_error")
	require.Len(t, entries, 2)
	assert.Equal(t, "redis down", entries[0]["error"])
	assert.Equal(t, float64(http.StatusInternalServerError), entries[0]["status"])
	assert.Equal(t, "/api/analyses", entries[1]["path"])

	// Client errors are not logged as server errors
	env.do(http.MethodGet, "/api/search", nil)
	assert.Len(t, env.logEntries(t, "http_error"), 2)
}

func TestDetectKeepsSubmittedText(t *testing.T) {
	env := setupTestHandler(t)

	text := aiSample + "\n\n2024\n\n42"
	w := env.do(http.MethodPost, "/api/detect", map[string]interface{}{"text": text, "save": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var response struct {
		ID     string                `json:"id"`
		Result models.AnalysisResult `json:"result"`
	}
	decode(t, w, &response)
	assert.Equal(t, 97, response.Result.WordCount)

	stored, err := env.db.GetAnalysis(response.ID)
	require.NoError(t, err)
	assert.Equal(t, text, stored.Text)
}

func TestJobStatusEndpoint(t *testing.T) {
	env := setupTestHandler(t)

	// Completed: the analysis exists
	id := env.saveSample(t, aiSample, "")
	w := env.do(http.MethodGet, "/api/jobs/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var completed map[string]interface{}
	decode(t, w, &completed)
	assert.Equal(t, "completed", completed["status"])
	assert.NotNil(t, completed["analysis"])

	// Still queued
	env.queue.states["pending-job"] = &queue.JobStatus{ID: "pending-job", State: "retry", Retried: 2, LastErr: "timeout"}
	w = env.do(http.MethodGet, "/api/jobs/pending-job", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending map[string]interface{}
	decode(t, w, &pending)
	assert.Equal(t, "retry", pending["status"])
	assert.Equal(t, float64(2), pending["retried"])
	assert.Equal(t, "timeout", pending["last_error"])

	// Unknown
	w = env.do(http.MethodGet, "/api/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var missing map[string]interface{}
	decode(t, w, &missing)
	assert.Equal(t, "not_found", missing["status"])
}

func TestAnalysesEndpoints(t *testing.T) {
	env := setupTestHandler(t)

	first := env.saveSample(t, aiSample, "a.txt")
	second := env.saveSample(t, humanSample, "b.txt")

	w := env.do(http.MethodGet, "/api/analyses?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page []models.Analysis
	decode(t, w, &page)
	assert.Len(t, page, 1)

	w = env.do(http.MethodGet, "/api/analyses", nil)
	var all []models.Analysis
	decode(t, w, &all)
	assert.Len(t, all, 2)

	w = env.do(http.MethodGet, "/api/analyses/"+first, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Analysis
	decode(t, w, &got)
	assert.Equal(t, "a.txt", got.Source)

	w = env.do(http.MethodDelete, "/api/analyses/"+second, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/analyses/"+second, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, "/api/analyses/"+second, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAnalysesEmpty(t *testing.T) {
	env := setupTestHandler(t)

	w := env.do(http.MethodGet, "/api/analyses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestReportEndpoint(t *testing.T) {
	env := setupTestHandler(t)
	id := env.saveSample(t, aiSample, "")

	w := env.do(http.MethodGet, "/api/analyses/"+id+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "## 🤖 AI Generated")
	assert.Contains(t, w.Body.String(), "**Furthermore**")

	w = env.do(http.MethodGet, "/api/analyses/"+id+"/report?format=html", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<table>")

	w = env.do(http.MethodGet, "/api/analyses/"+id+"/report?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/analyses/missing/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchEndpoints(t *testing.T) {
	env := setupTestHandler(t)
	aiID := env.saveSample(t, aiSample, "")
	env.saveSample(t, humanSample, "")

	w := env.do(http.MethodGet, "/api/search?verdict=AI+Generated", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byVerdict []models.Analysis
	decode(t, w, &byVerdict)
	require.Len(t, byVerdict, 1)
	assert.Equal(t, aiID, byVerdict[0].ID)

	w = env.do(http.MethodGet, "/api/search?verdict=Robot", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodGet, "/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/search/phrase?phrase=Furthermore", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var byPhrase []models.Analysis
	decode(t, w, &byPhrase)
	require.Len(t, byPhrase, 1)
	assert.Equal(t, aiID, byPhrase[0].ID)

	w = env.do(http.MethodGet, "/api/search/phrase?phrase=never+seen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())

	w = env.do(http.MethodGet, "/api/search/phrase", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	env := setupTestHandler(t)
	env.saveSample(t, aiSample, "")
	env.saveSample(t, aiSample, "")
	env.saveSample(t, humanSample, "")

	w := env.do(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		Verdicts   map[string]int         `json:"verdicts"`
		TopPhrases []database.PhraseCount `json:"top_phrases"`
	}
	decode(t, w, &stats)
	assert.Equal(t, 2, stats.Verdicts[models.VerdictAIGenerated])
	assert.Equal(t, 1, stats.Verdicts[models.VerdictHumanWritten])
	require.NotEmpty(t, stats.TopPhrases)
	assert.Equal(t, 10, stats.TopPhrases[0].Total)

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.StoredAnalyses.WithLabelValues(models.VerdictAIGenerated)))
}

func TestExportEndpoint(t *testing.T) {
	env := setupTestHandler(t)
	env.saveSample(t, aiSample, "essay.txt")

	w := env.do(http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "analyses.xlsx")
	assert.Equal(t, strconv.Itoa(w.Body.Len()), w.Header().Get("Content-Length"))

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "essay.txt", rows[1][0])
	assert.Equal(t, "89", rows[1][3])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestHandler(t)
	env.do(http.MethodPost, "/api/detect", map[string]string{"text": aiSample})

	w := env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aidetector_detections_total")
}

func TestCORSPreflight(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(db, analyzer.New(), nil, Options{Gatherer: prometheus.NewRegistry()})

	req := httptest.NewRequest(http.MethodOptions, "/api/detect", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
