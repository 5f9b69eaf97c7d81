package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zombar/aidetector/internal/analyzer"
	"github.com/zombar/aidetector/internal/api"
	"github.com/zombar/aidetector/internal/cache"
	"github.com/zombar/aidetector/internal/config"
	"github.com/zombar/aidetector/internal/database"
	"github.com/zombar/aidetector/internal/metrics"
	"github.com/zombar/aidetector/internal/ollama"
	"github.com/zombar/aidetector/internal/openrouter"
	"github.com/zombar/aidetector/internal/queue"
	"github.com/zombar/aidetector/pkg/logging"
	"github.com/zombar/aidetector/pkg/tracing"
)

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Port, "port", cfg.Port, "Server port (env: PORT)")
	flag.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "SQLite path or postgres:// URL (env: DATABASE_URL)")
	flag.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address for the queue and lookup cache (env: REDIS_ADDR)")
	flag.BoolVar(&cfg.UseQueue, "use-queue", cfg.UseQueue, "Run the asynq worker and enable /api/jobs (env: USE_QUEUE)")
	flag.StringVar(&cfg.LookupProvider, "lookup", cfg.LookupProvider, "External lookup: none, ollama or openrouter (env: LOOKUP_PROVIDER)")
	flag.IntVar(&cfg.MinWords, "min-words", cfg.MinWords, "Minimum words per request (env: MIN_WORDS)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("aidetector service initializing", "version", "1.0.0")

	tp, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer", "error", err)
			}
		}()
		logger.Info("tracing initialized successfully")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	m := metrics.New("aidetector", prometheus.DefaultRegisterer)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go recordStoreStats(ctx, db, m, logger)

	lookup, closeLookup := buildLookup(ctx, cfg, m, logger)
	defer closeLookup()

	textAnalyzer := analyzer.New()
	if lookup != nil {
		textAnalyzer = analyzer.NewWithLookup(lookup)
	}

	var (
		jobQueue    api.JobQueue
		queueClient *queue.Client
		worker      *queue.Worker
	)
	if cfg.UseQueue {
		queueClient = queue.NewClient(queue.ClientConfig{RedisAddr: cfg.RedisAddr})
		jobQueue = queueClient

		worker = queue.NewWorker(queue.WorkerConfig{
			RedisAddr:   cfg.RedisAddr,
			Concurrency: cfg.WorkerConcurrency,
		}, db, textAnalyzer, m)
		go func() {
			if err := worker.Start(); err != nil {
				logger.Error("queue worker stopped", "error", err)
			}
		}()
	}

	apiHandler := api.NewHandler(db, textAnalyzer, jobQueue, api.Options{
		MinWords: cfg.MinWords,
		Metrics:  m,
		Logger:   logger,
	})

	handler := newHTTPHandler(apiHandler, cfg.ServiceName, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LookupTimeout + 60*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("aidetector service starting",
			"port", cfg.Port,
			"database_driver", db.DriverName(),
			"lookup_provider", cfg.LookupProvider,
			"queue_enabled", cfg.UseQueue,
			"min_words", cfg.MinWords,
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			logger.Error("error closing queue client", "error", err)
		}
	}

	logger.Info("server stopped")
}

// newHTTPHandler wraps the API as tracing -> HTTP logging -> handlers, so
// access log lines carry the request span
func newHTTPHandler(apiHandler http.Handler, serviceName string, logger *slog.Logger) http.Handler {
	return tracing.HTTPMiddleware(serviceName)(
		logging.HTTPLoggingMiddleware(logger)(apiHandler),
	)
}

// buildLookup assembles provider -> Redis cache -> instrumentation. It returns
// a nil lookup when no provider is configured.
func buildLookup(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (analyzer.Lookup, func()) {
	noop := func() {}

	var (
		lookup analyzer.Lookup
		name   string
	)
	switch cfg.LookupProvider {
	case config.ProviderOllama:
		client, err := ollama.New(cfg.OllamaURL, cfg.OllamaModel)
		if err != nil {
			logger.Warn("failed to initialize Ollama client, using local heuristics only",
				"error", err,
				"ollama_url", cfg.OllamaURL,
			)
			return nil, noop
		}
		client = client.WithTimeout(cfg.LookupTimeout)
		lookup, name = client, client.Name()
	case config.ProviderOpenRouter:
		client := openrouter.New(cfg.OpenRouterURL, cfg.OpenRouterModel, cfg.OpenRouterAPIKey, cfg.LookupTimeout)
		lookup, name = client, client.Name()
	default:
		logger.Info("external lookup disabled, using local heuristics only")
		return nil, noop
	}
	logger.Info("external lookup initialized", "provider", name)

	closer := noop
	if cfg.RedisAddr != "" && cfg.LookupCacheTTL > 0 {
		store, err := cache.NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("lookup cache unavailable, continuing uncached", "error", err)
		} else {
			lookup = cache.NewLookupCache(lookup, store, name, cfg.LookupCacheTTL)
			closer = func() {
				if err := store.Close(); err != nil {
					logger.Error("error closing lookup cache", "error", err)
				}
			}
			logger.Info("lookup cache enabled", "ttl", cfg.LookupCacheTTL.String())
		}
	}

	return m.InstrumentLookup(cfg.LookupProvider, lookup), closer
}

// recordStoreStats refreshes pool and per-verdict gauges every 15 seconds
func recordStoreStats(ctx context.Context, db *database.DB, m *metrics.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		m.UpdateDBStats(db.Stats())
		if counts, err := db.CountByVerdict(); err != nil {
			logger.Warn("failed to count stored analyses", "error", err)
		} else {
			m.SetStoredAnalyses(counts)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
