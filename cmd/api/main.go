package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentpulse/backend/internal/ai"
	"github.com/contentpulse/backend/internal/cache"
	"github.com/contentpulse/backend/internal/config"
	httpserver "github.com/contentpulse/backend/internal/http"
	"github.com/contentpulse/backend/internal/http/handlers"
	"github.com/contentpulse/backend/internal/pipeline"
	"github.com/contentpulse/backend/internal/quality"
	"github.com/contentpulse/backend/internal/queue"
	"github.com/contentpulse/backend/internal/quota"
	"github.com/contentpulse/backend/internal/repository"
	"github.com/contentpulse/backend/internal/service"
	"github.com/contentpulse/backend/internal/signals"
	"github.com/contentpulse/backend/internal/storage"
	"github.com/contentpulse/backend/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[contentpulse] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	modelRouter := ai.NewModelRouter(ai.ModelRouterConfig{
		KeywordsPrimary:   cfg.ModelKeywordsPrimary,
		KeywordsFallback:  cfg.ModelKeywordsFallback,
		HeadlinesPrimary:  cfg.ModelHeadlinesPrimary,
		HeadlinesFallback: cfg.ModelHeadlinesFallback,
		DraftsPrimary:     cfg.ModelDraftsPrimary,
		DraftsFallback:    cfg.ModelDraftsFallback,
		ConceptsPrimary:   cfg.ModelConceptsPrimary,
		ConceptsFallback:  cfg.ModelConceptsFallback,
		ArticlePrimary:    cfg.ModelArticlePrimary,
		ArticleFallback:   cfg.ModelArticleFallback,
	})
	openAIClient := ai.NewOpenAIClient(ai.OpenAIClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Timeout:    time.Duration(cfg.OpenAITimeoutMS) * time.Millisecond,
		MaxRetries: cfg.OpenAIMaxRetries,
	})
	secondaryClient := ai.NewOpenRouterClient(ai.OpenRouterClientConfig{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Timeout: time.Duration(cfg.OpenAITimeoutMS) * time.Millisecond,
		SiteURL: cfg.OpenRouterSiteURL,
		AppName: cfg.OpenRouterAppName,
	})
	semanticCache := cache.NewSemanticCache(cache.Config{
		TTL:        time.Duration(cfg.SemanticCacheTTLSeconds) * time.Second,
		MaxEntries: cfg.SemanticCacheMaxEntries,
	})
	generation := service.NewGenerationService(service.GenerationDependencies{
		Router:     modelRouter,
		Client:     openAIClient,
		Secondary:  secondaryClient,
		Cache:      semanticCache,
		Validator:  quality.NewOutputValidator(),
		PromptsDir: cfg.PromptsDir,
		Logger:     logger,
	})

	signalTimeout := time.Duration(cfg.SignalTimeoutMS) * time.Millisecond
	serpClient := signals.NewSerpClient(signals.SerpClientConfig{
		APIKey:  cfg.SerpAPIKey,
		BaseURL: cfg.SerpAPIBaseURL,
		Timeout: signalTimeout,
	})
	twitterClient := signals.NewTwitterClient(signals.TwitterClientConfig{
		APIKey:  cfg.TwitterAPIKey,
		BaseURL: cfg.TwitterBaseURL,
		Timeout: signalTimeout,
	})
	mediumClient := signals.NewMediumClient(signals.MediumClientConfig{
		APIKey:  cfg.MediumAPIKey,
		BaseURL: cfg.MediumBaseURL,
		Timeout: signalTimeout,
	})

	store := setupStorage(cfg, logger)

	reportsService := service.NewReportsService(repo, producer, cfg.VisibilityCutoff, logger)
	assetsService := service.NewAssetsService(service.AssetsDependencies{
		Repo:       repo,
		Producer:   producer,
		Generator:  generation,
		Images:     openAIClient,
		Store:      store,
		ImageModel: cfg.ModelImage,
		Logger:     logger,
	})
	gate := quota.NewGate(repo)

	api := handlers.NewAPI(reportsService, assetsService, gate, cfg.UserPlans)
	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthTokens:     cfg.AuthTokens,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		orchestrator := pipeline.NewOrchestrator(
			repo,
			generation,
			serpClient,
			twitterClient,
			mediumClient,
			logger,
			pipeline.OrchestratorConfig{Seed: cfg.PipelineSeed},
		)
		processor := worker.NewProcessor(consumer, orchestrator, assetsService, logger)
		go processor.Start(ctx)
		logger.Printf("worker enabled and started")
	} else {
		logger.Printf("worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.ReportsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repository")
		return repository.NewMemoryReportsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresReportsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres repository, fallback to memory: %v", err)
		return repository.NewMemoryReportsRepository(), func() {}
	}
	logger.Printf("postgres repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, func()) {
	var (
		baseProducer queue.Producer
		consumer     queue.Consumer
		baseCloser   = func() {}
	)

	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		baseProducer = local
		consumer = local
	} else {
		streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			Stream:      cfg.RedisStream,
			DLQStream:   cfg.RedisDLQ,
			Group:       cfg.RedisGroup,
			Consumer:    cfg.RedisConsumer,
			MaxAttempts: 3,
		})
		if err != nil {
			logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
			local := queue.NewLocalQueue(512, 3, logger)
			baseProducer = local
			consumer = local
		} else {
			logger.Printf("redis streams queue initialized")
			baseProducer = streams
			consumer = streams
			baseCloser = func() {
				_ = streams.Close()
			}
		}
	}

	producer := baseProducer
	batchingCloser := func() {}
	if cfg.QueueBatchingEnabled {
		batching := queue.NewBatchingProducer(ctx, baseProducer, queue.BatchingConfig{
			MaxBatchSize:       cfg.QueueBatchSize,
			FlushInterval:      time.Duration(cfg.QueueBatchFlushMS) * time.Millisecond,
			FlushTimeout:       time.Duration(cfg.QueueBatchFlushTimeoutMS) * time.Millisecond,
			QueueCapacity:      cfg.QueueBatchQueueCapacity,
			MaxInFlightBatches: cfg.QueueBatchMaxInFlight,
		})
		producer = batching
		batchingCloser = batching.Close
		logger.Printf(
			"queue batching enabled size=%d flush_ms=%d queue_capacity=%d max_in_flight=%d",
			cfg.QueueBatchSize,
			cfg.QueueBatchFlushMS,
			cfg.QueueBatchQueueCapacity,
			cfg.QueueBatchMaxInFlight,
		)
	}

	return producer, consumer, func() {
		batchingCloser()
		baseCloser()
	}
}

func setupStorage(cfg config.Config, logger *log.Logger) storage.ObjectStore {
	if cfg.MinioEndpoint == "" {
		logger.Printf("MINIO_ENDPOINT not configured, using in-memory object store")
		return storage.NewMemoryStore()
	}

	store, err := storage.NewMinioStore(
		cfg.MinioEndpoint,
		cfg.MinioAccessKey,
		cfg.MinioSecretKey,
		cfg.MinioBucket,
		cfg.MinioUseSSL,
	)
	if err != nil {
		logger.Printf("failed to initialize minio object store, fallback to memory: %v", err)
		return storage.NewMemoryStore()
	}
	logger.Printf("minio object store initialized bucket=%s", cfg.MinioBucket)
	return store
}
