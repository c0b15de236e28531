package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/tier-router/internal/analytics"
	"github.com/nulzo/tier-router/internal/buildinfo"
	"github.com/nulzo/tier-router/internal/config"
	"github.com/nulzo/tier-router/internal/gateway"
	"github.com/nulzo/tier-router/internal/platform/logger"
	"github.com/nulzo/tier-router/internal/platform/otel"
	"github.com/nulzo/tier-router/internal/ratelimit"
	"github.com/nulzo/tier-router/internal/server"
	"github.com/nulzo/tier-router/internal/store/cache"
	"github.com/nulzo/tier-router/internal/store/sqlite"
	"github.com/nulzo/tier-router/internal/tokenizer"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	// Import providers to trigger init() registration
	_ "github.com/nulzo/tier-router/internal/llm/anthropic"
	_ "github.com/nulzo/tier-router/internal/llm/google"
	_ "github.com/nulzo/tier-router/internal/llm/ollama"
	_ "github.com/nulzo/tier-router/internal/llm/openai"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Initialize(logger.DefaultConfig())
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logger.Initialize(logCfg)
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := otel.InitTracer(otel.Config{
			ServiceName: cfg.Tracing.ServiceName,
			Version:     buildinfo.Version,
			SampleRatio: cfg.Tracing.SampleRatio,
		}, log, os.Stdout)
		if err != nil {
			log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Error("Failed to flush traces", zap.Error(err))
			}
		}()
	}

	if cfg.Server.UpdateCheck {
		go buildinfo.WarnIfOutdated(ctx, buildinfo.NewChecker(""), log)
	}

	// Routing
	registry := gateway.BootstrapProviders(cfg.Providers, log)
	router := gateway.NewRouter(
		gateway.NewChains(cfg.Routing.Chains),
		registry,
		log,
		gateway.WithFallbackChunkDelay(cfg.Routing.FallbackChunkDelay),
	)
	inputFilters, outputFilters := gateway.BuildFilters(cfg.Guardrails)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pctx).Err(); err != nil {
			log.Warn("Redis is unreachable, continuing without it", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			rdb = nil
		}
		cancel()
	}

	deps := server.Deps{}
	opts := gateway.Options{
		Logger:        log,
		Classifier:    gateway.NewHeuristicClassifier(cfg.Classifier),
		Router:        router,
		InputFilters:  inputFilters,
		OutputFilters: outputFilters,
		Counter:       tokenizer.NewCounter(),
		Catalog:       gateway.NewCatalog(cfg.Catalog),
		Orchestrator: []gateway.OrchestratorOption{
			gateway.WithStreamTimeout(cfg.Routing.StreamTimeout),
			gateway.WithMaxSessions(cfg.Routing.MaxSessions),
		},
	}

	// Cost tracking
	if cfg.CostTracking.Enabled {
		repo, err := sqlite.NewSQLiteStorage(cfg.Database.DSN, log)
		if err != nil {
			log.Fatal("Failed to open database", zap.Error(err))
		}
		defer repo.Close()

		var priceCache cache.CacheService
		if rdb != nil {
			priceCache = cache.NewRedisCache(rdb, "tier-router:")
		}
		pricer := analytics.NewPricer(repo, priceCache, log)

		ingestor := analytics.NewIngestor(log, repo, pricer)
		ingestor.Start(ctx)
		defer ingestor.Stop()

		opts.Recorder = analytics.NewRecorder(ingestor)
		deps.Repo = repo
		deps.Analytics = analytics.NewService(repo)
	}

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit, rdb, log)
		if mem, ok := limiter.(*ratelimit.MemoryLimiter); ok {
			go mem.Run(ctx, time.Minute)
		}
		deps.Limiter = limiter
	}

	deps.Service = gateway.NewService(opts)

	srv := server.New(cfg, log, deps)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}
}
