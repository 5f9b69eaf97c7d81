package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/database"
	"github.com/zombar/aidetector/internal/ingest"
	"github.com/zombar/aidetector/internal/metrics"
	"github.com/zombar/aidetector/internal/models"
	"github.com/zombar/aidetector/internal/queue"
	"github.com/zombar/aidetector/internal/report"
	"github.com/zombar/aidetector/pkg/logging"
	"github.com/zombar/aidetector/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// JobQueue enqueues detection jobs and reports their state
type JobQueue interface {
	EnqueueDetectText(ctx context.Context, analysisID, text, source string) (string, error)
	JobStatus(id string) (*queue.JobStatus, error)
}

// Options configures optional handler behaviour
type Options struct {
	MinWords int                 // Texts with fewer words are rejected; 0 uses analyzer.MinWords
	Metrics  *metrics.Metrics    // May be nil
	Gatherer prometheus.Gatherer // Served on /metrics; nil uses the default gatherer
	Logger   *slog.Logger        // Receives server errors and job events; nil uses slog.Default()
}

// Handler handles HTTP requests
type Handler struct {
	db       *database.DB
	analyzer *analyzer.Analyzer
	queue    JobQueue
	cleaner  *ingest.Cleaner
	opts     Options
	router   *chi.Mux
	logger   *slog.Logger
}

// NewHandler creates the API router with CORS support and metrics. queue may
// be nil, in which case the job endpoints answer 503.
func NewHandler(db *database.DB, a *analyzer.Analyzer, q JobQueue, opts Options) http.Handler {
	h := newHandler(db, a, q, opts)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(h.router)
}

func newHandler(db *database.DB, a *analyzer.Analyzer, q JobQueue, opts Options) *Handler {
	if opts.MinWords <= 0 {
		opts.MinWords = analyzer.MinWords
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &Handler{
		db:       db,
		analyzer: a,
		queue:    q,
		cleaner:  ingest.NewCleaner(a.Lexicon()),
		opts:     opts,
		router:   chi.NewRouter(),
		logger:   opts.Logger.With("component", "api"),
	}
	h.router.Use(middleware.Recoverer)
	h.setupRoutes()
	return h
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.router.Handle("/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	h.router.Get("/health", h.handleHealth)

	h.router.Post("/api/detect", h.handleDetect)
	h.router.Post("/api/jobs", h.handleCreateJob)
	h.router.Get("/api/jobs/{id}", h.handleJobStatus)

	h.router.Get("/api/analyses", h.handleListAnalyses)
	h.router.Get("/api/analyses/{id}", h.handleGetAnalysis)
	h.router.Delete("/api/analyses/{id}", h.handleDeleteAnalysis)
	h.router.Get("/api/analyses/{id}/report", h.handleReport)

	h.router.Get("/api/search", h.handleSearchByVerdict)
	h.router.Get("/api/search/phrase", h.handleSearchByPhrase)
	h.router.Get("/api/stats", h.handleStats)
	h.router.Get("/api/export", h.handleExport)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
		"lookup": h.analyzer.HasLookup(),
		"queue":  h.queue != nil,
	}, http.StatusOK)
}

type detectRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Save   bool   `json:"save,omitempty"`
	Clean  bool   `json:"clean,omitempty"` // Strip boilerplate paragraphs first
}

// decodeDetectRequest parses and validates the body shared by detect and jobs
func (h *Handler) decodeDetectRequest(w http.ResponseWriter, r *http.Request) (*detectRequest, bool) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}

	if req.Clean {
		req.Text = h.cleaner.StripBoilerplate(ingest.Normalize(req.Text))
	}

	if strings.TrimSpace(req.Text) == "" {
		respondError(w, "Text field is required", http.StatusBadRequest)
		return nil, false
	}
	if words := analyzer.WordCount(req.Text); words < h.opts.MinWords {
		respondError(w, fmt.Sprintf("Text must contain at least %d words, got %d", h.opts.MinWords, words), http.StatusBadRequest)
		return nil, false
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("text.length", len(req.Text)),
		attribute.Bool("request.save", req.Save),
	)
	return &req, true
}

// handleDetect analyzes text synchronously and optionally persists the result
func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeDetectRequest(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	start := time.Now()
	result := h.analyzer.Analyze(ctx, req.Text)
	h.opts.Metrics.ObserveDetection(ctx, "sync", result, time.Since(start))

	tracing.SetSpanAttributes(ctx,
		attribute.Int("detection.ai_probability", result.AIProbability),
		attribute.String("detection.verdict", result.Verdict),
	)

	response := map[string]interface{}{
		"result": result,
	}

	if req.Save {
		now := time.Now()
		analysis := &models.Analysis{
			ID:        uuid.NewString(),
			Text:      req.Text,
			Source:    req.Source,
			Result:    result,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := h.saveAnalysis(ctx, analysis); err != nil {
			h.serverError(w, r, err, fmt.Sprintf("Failed to save analysis: %v", err))
			return
		}
		response["id"] = analysis.ID
		respondJSON(w, response, http.StatusCreated)
		return
	}

	respondJSON(w, response, http.StatusOK)
}

func (h *Handler) saveAnalysis(ctx context.Context, analysis *models.Analysis) error {
	_, span := otel.Tracer("aidetector").Start(ctx, "database.save_analysis")
	defer span.End()
	span.SetAttributes(
		attribute.String("analysis.id", analysis.ID),
		attribute.Int("text.length", len(analysis.Text)),
	)

	if err := h.db.SaveAnalysis(analysis); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// handleCreateJob enqueues text for asynchronous analysis
func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, "Job queue is not enabled", http.StatusServiceUnavailable)
		return
	}

	req, ok := h.decodeDetectRequest(w, r)
	if !ok {
		return
	}

	analysisID := uuid.NewString()
	taskID, err := h.queue.EnqueueDetectText(r.Context(), analysisID, req.Text, req.Source)
	if err != nil {
		h.serverError(w, r, err, fmt.Sprintf("Failed to enqueue analysis: %v", err))
		return
	}
	logging.LogRequest(h.logger, r, "job enqueued",
		slog.String("job_id", analysisID),
		slog.String("task_id", taskID),
		slog.Int("text_length", len(req.Text)),
	)

	respondJSON(w, map[string]interface{}{
		"job_id":  analysisID,
		"task_id": taskID,
		"status":  "queued",
		"message": "Analysis queued for processing",
	}, http.StatusAccepted)
}

// handleJobStatus reports a finished analysis or the queue state of a job
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	analysis, err := h.db.GetAnalysis(jobID)
	if err == nil {
		respondJSON(w, map[string]interface{}{
			"job_id":     jobID,
			"status":     "completed",
			"created_at": analysis.CreatedAt,
			"analysis":   analysis,
		}, http.StatusOK)
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		h.serverError(w, r, err, err.Error())
		return
	}

	notFound := map[string]interface{}{
		"job_id":  jobID,
		"status":  "not_found",
		"message": "Analysis not found - it may still be queued or has expired",
	}
	if h.queue == nil {
		respondJSON(w, notFound, http.StatusNotFound)
		return
	}

	status, err := h.queue.JobStatus(jobID)
	if errors.Is(err, queue.ErrJobNotFound) {
		respondJSON(w, notFound, http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}

	response := map[string]interface{}{
		"job_id":  jobID,
		"status":  status.State,
		"retried": status.Retried,
	}
	if status.LastErr != "" {
		response["last_error"] = status.LastErr
	}
	respondJSON(w, response, http.StatusOK)
}

// pagination reads limit and offset, defaulting to 10 and 0
func pagination(r *http.Request) (limit, offset int) {
	limit = 10
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > 500 {
		limit = 500
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}

// handleListAnalyses lists analyses, newest first
func (h *Handler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	analyses, err := h.db.ListAnalyses(limit, offset)
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}
	respondJSON(w, nonNil(analyses), http.StatusOK)
}

// loadAnalysis fetches the {id} analysis, writing the error response on failure
func (h *Handler) loadAnalysis(w http.ResponseWriter, r *http.Request) (*models.Analysis, bool) {
	id := chi.URLParam(r, "id")
	analysis, err := h.db.GetAnalysis(id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, "Analysis not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return nil, false
	}
	return analysis, true
}

func (h *Handler) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if analysis, ok := h.loadAnalysis(w, r); ok {
		respondJSON(w, analysis, http.StatusOK)
	}
}

func (h *Handler) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	err := h.db.DeleteAnalysis(chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, "Analysis not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReport renders a stored analysis as Markdown or HTML
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "markdown"
	}
	if format != "markdown" && format != "html" {
		respondError(w, "format must be markdown or html", http.StatusBadRequest)
		return
	}

	analysis, ok := h.loadAnalysis(w, r)
	if !ok {
		return
	}

	if format == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(report.HTML(analysis.Result))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report.Markdown(analysis.Result)))
}

// handleSearchByVerdict lists analyses with the given verdict
func (h *Handler) handleSearchByVerdict(w http.ResponseWriter, r *http.Request) {
	verdict := r.URL.Query().Get("verdict")
	switch verdict {
	case models.VerdictAIGenerated, models.VerdictMixedContent, models.VerdictHumanWritten:
	case "":
		respondError(w, "verdict parameter is required", http.StatusBadRequest)
		return
	default:
		respondError(w, fmt.Sprintf("unknown verdict %q", verdict), http.StatusBadRequest)
		return
	}

	analyses, err := h.db.GetAnalysesByVerdict(verdict)
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}
	respondJSON(w, nonNil(analyses), http.StatusOK)
}

// handleSearchByPhrase lists analyses in which a phrase was detected
func (h *Handler) handleSearchByPhrase(w http.ResponseWriter, r *http.Request) {
	phrase := strings.TrimSpace(r.URL.Query().Get("phrase"))
	if phrase == "" {
		respondError(w, "phrase parameter is required", http.StatusBadRequest)
		return
	}

	analyses, err := h.db.GetAnalysesByPhrase(phrase)
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}
	respondJSON(w, nonNil(analyses), http.StatusOK)
}

// handleStats reports stored analyses per verdict and the most common phrases
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.db.CountByVerdict()
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}
	top, err := h.db.TopPhrases(10)
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}
	h.opts.Metrics.SetStoredAnalyses(counts)

	if top == nil {
		top = []database.PhraseCount{}
	}
	respondJSON(w, map[string]interface{}{
		"verdicts":    counts,
		"top_phrases": top,
	}, http.StatusOK)
}

// handleExport streams stored analyses as an XLSX workbook
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	if r.URL.Query().Get("limit") == "" {
		limit = 500
	}

	analyses, err := h.db.ListAnalyses(limit, offset)
	if err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}

	rows := make([]report.Row, 0, len(analyses))
	for _, a := range analyses {
		source := a.Source
		if source == "" {
			source = a.ID
		}
		rows = append(rows, report.Row{Source: source, AnalyzedAt: a.CreatedAt, Result: a.Result})
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, rows); err != nil {
		h.serverError(w, r, err, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="analyses.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func nonNil(analyses []*models.Analysis) []*models.Analysis {
	if analyses == nil {
		return []*models.Analysis{}
	}
	return analyses
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// serverError logs err with the request's trace and answers 500 with message
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, err, r)
	respondError(w, message, http.StatusInternalServerError)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
