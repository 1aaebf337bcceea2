package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ternarybob/arbor"

	"noi_analyzer/pkg/api/analysis"
	"noi_analyzer/pkg/core/config"
	"noi_analyzer/pkg/core/extract"
	"noi_analyzer/pkg/core/llm"
	"noi_analyzer/pkg/core/logger"
	"noi_analyzer/pkg/core/pipeline"
	"noi_analyzer/pkg/core/prompt"
	"noi_analyzer/pkg/core/store"
	"noi_analyzer/pkg/core/validate"
)

func main() {
	configPath := flag.String("config", "config/noi.yaml", "Path to YAML config (optional)")
	resourcesDir := flag.String("resources", "resources", "Directory holding prompt overrides (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Logging)

	if n, err := prompt.Get().LoadFromDirectory(*resourcesDir); err == nil {
		log.Info().Int("prompts", n).Str("dir", *resourcesDir).Msg("[PROMPT] Loaded prompt overrides")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := initStore(ctx, cfg.Storage, log)
	defer closeRepo()

	extractor, health := initExtractor(cfg, log)
	orch := pipeline.NewOrchestrator(extractor, log)
	orch.SetRepository(repo)
	orch.SetConcurrency(cfg.Server.Concurrency)
	orch.SetValidationOptions(validate.Options{
		Tolerance:          cfg.Validation.Tolerance,
		ComponentTolerance: cfg.Validation.ComponentTolerance,
	})

	handler := analysis.NewHandler(orch, repo, log)
	if health != nil {
		handler.SetHealthCheck(health)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20
	handler.RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("[API] Server starting")
		log.Info().Msg("[API]   POST /api/analyze")
		log.Info().Msg("[API]   POST /api/extract")
		log.Info().Msg("[API]   GET  /api/reports[/:id[/export.xlsx|/summary.html]]")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("[API] Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("[API] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[API] Graceful shutdown failed")
	}
}

// initStore prefers Postgres and falls back to the reports directory.
func initStore(ctx context.Context, cfg config.StorageConfig, log arbor.ILogger) (store.ReportRepository, func()) {
	if cfg.DatabaseURL != "" {
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			log.Warn().Err(err).Msg("[STORE] Postgres unavailable, using file store")
		} else {
			repo := store.NewPGReportRepo(store.GetPool())
			if err := repo.EnsureSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("[STORE] Failed to ensure schema")
			}
			log.Info().Msg("[STORE] Using Postgres report store")
			return repo, store.Close
		}
	}

	fs, err := store.NewFileStore(cfg.ReportsDir, log)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.ReportsDir).Msg("[STORE] Report storage disabled")
		return nil, func() {}
	}
	log.Info().Str("dir", cfg.ReportsDir).Msg("[STORE] Using file report store")
	return fs, func() {}
}

// initExtractor prefers the extraction service and falls back to Gemini.
// A nil extractor leaves only raw analysis available.
func initExtractor(cfg *config.Config, log arbor.ILogger) (extract.Extractor, func() error) {
	ec := cfg.Extraction
	if ec.URL != "" && ec.APIKey != "" {
		client := extract.NewHTTPClient(ec.URL, ec.APIKey,
			extract.WithTimeout(ec.Timeout),
			extract.WithRetries(ec.MaxRetries, ec.RetryBaseDelay),
			extract.WithRateLimit(ec.RatePerSecond),
			extract.WithLogger(log),
		)
		log.Info().Str("url", ec.URL).Int("max_retries", ec.MaxRetries).Msg("[EXTRACT] Using extraction service")
		return client, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Health(ctx)
		}
	}
	if cfg.Gemini.APIKey != "" {
		log.Info().Str("model", cfg.Gemini.Model).Msg("[EXTRACT] Using Gemini extractor")
		return extract.NewLLMExtractor(llm.NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model), log), nil
	}
	log.Warn().Msg("[EXTRACT] No extraction backend configured, /api/extract disabled")
	return nil, nil
}
