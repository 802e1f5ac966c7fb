package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-estimator/pkg/cache"
	"github.com/ekaya-inc/ekaya-estimator/pkg/config"
	"github.com/ekaya-inc/ekaya-estimator/pkg/database"
	"github.com/ekaya-inc/ekaya-estimator/pkg/handlers"
	"github.com/ekaya-inc/ekaya-estimator/pkg/llm"
	"github.com/ekaya-inc/ekaya-estimator/pkg/logging"
	"github.com/ekaya-inc/ekaya-estimator/pkg/matching"
	"github.com/ekaya-inc/ekaya-estimator/pkg/mcp"
	"github.com/ekaya-inc/ekaya-estimator/pkg/middleware"
	"github.com/ekaya-inc/ekaya-estimator/pkg/repositories"
	"github.com/ekaya-inc/ekaya-estimator/pkg/retry"
	"github.com/ekaya-inc/ekaya-estimator/pkg/services"
	"github.com/ekaya-inc/ekaya-estimator/ui"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.InitialFields = map[string]any{"version": cfg.Version}
	return zapCfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbURL := cfg.Database.URL()
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(dbURL)),
		zap.Int("min_score", cfg.Matching.MinScore),
		zap.Int("max_candidates", cfg.Matching.MaxCandidates),
		zap.Int("max_results_per_input", cfg.Matching.MaxResultsPerInput),
		zap.Bool("use_trigram", cfg.Matching.UseTrigram),
		zap.Bool("llm_enabled", cfg.LLM.Enabled),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled),
		zap.Float64("rate_limit_rps", cfg.RateLimit.RequestsPerSecond))

	if cfg.AutoMigrate {
		if err := database.Migrate(dbURL, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             dbURL,
		MaxConnections:  cfg.Database.MaxConnections,
		ApplicationName: mcp.ServerName,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	catalog := repositories.NewCatalogRepository(db, repositories.CatalogRepositoryConfig{
		UseTrigram: cfg.Matching.UseTrigram,
	}, logger)

	synonyms, err := matching.LoadSynonyms(cfg.Matching.SynonymsPath)
	if err != nil {
		return fmt.Errorf("load synonyms: %w", err)
	}
	expander := matching.NewSynonymExpander(synonyms)
	logger.Info("Synonyms loaded",
		zap.String("path", cfg.Matching.SynonymsPath),
		zap.Int("tokens", expander.Size()))

	resolver := matching.NewResolver(catalog, matching.NewRanker(expander), matching.ResolverConfig{
		MinScore:           cfg.Matching.MinScore,
		MaxCandidates:      cfg.Matching.MaxCandidates,
		MaxResultsPerInput: cfg.Matching.MaxResultsPerInput,
		Parallelism:        cfg.Matching.Parallelism,
	}, logger)

	estimateCache, err := cache.NewEstimateCache(cfg.Cache.Capacity, cfg.Cache.TTL(), logger)
	if err != nil {
		return err
	}
	defer estimateCache.Close()

	llmClient, err := newLLMClient(cfg, logger)
	if err != nil {
		return err
	}

	estimateService := services.NewEstimateService(resolver, estimateCache, logger)
	reportService := services.NewReportService(llmClient, cfg.LLM.Temperature, logger)
	chatService := services.NewChatService(estimateService, reportService, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)

	apiMux := http.NewServeMux()
	handlers.NewEstimateHandler(estimateService, reportService, logger).RegisterRoutes(apiMux)
	handlers.NewChatHandler(chatService, logger).RegisterRoutes(apiMux)
	mux.Handle("/v1/", middleware.RateLimit(newRateLimiter(cfg, logger), logger)(apiMux))

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(mcp.ServerName, cfg.Version, logger)
		mcpServer.RegisterTools(cfg.Version, mcp.ToolDeps{
			Estimates:  estimateService,
			LLMEnabled: reportService.Enabled(),
		})
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	}

	mux.Handle("/", ui.Handler())

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-estimator",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newLLMClient returns the guarded client, or nil when the model is disabled.
// The nil is returned as an untyped interface so ReportService sees it as disabled.
func newLLMClient(cfg *config.Config, logger *zap.Logger) (llm.LLMClient, error) {
	if !cfg.LLM.Enabled {
		logger.Warn("LLM disabled by configuration; reports and chat replies are unavailable")
		return nil, nil
	}

	client, err := llm.NewClient(&llm.Config{
		Endpoint: cfg.LLM.OpenAIBaseURL(),
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.LLM.Timeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	logger.Info("LLM configured", zap.String("client", client.String()))
	return llm.NewGuardedClient(client, nil, retry.DefaultConfig(), logger), nil
}

// newRateLimiter returns nil when API rate limiting is disabled.
func newRateLimiter(cfg *config.Config, logger *zap.Logger) *middleware.ClientRateLimiter {
	if !cfg.RateLimit.Enabled() {
		logger.Info("API rate limiting disabled")
		return nil
	}
	return middleware.NewClientRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
}
