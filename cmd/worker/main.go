package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/learnlane/coursesearch/internal/adapters/cache"
	"github.com/learnlane/coursesearch/internal/adapters/database"
	"github.com/learnlane/coursesearch/internal/adapters/queue"
	"github.com/learnlane/coursesearch/internal/adapters/search"
	"github.com/learnlane/coursesearch/internal/application/services"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/elasticsearch"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/redis"
	"github.com/learnlane/coursesearch/internal/infrastructure/observability"
	"github.com/learnlane/coursesearch/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger("coursesearch-worker", os.Getenv("APP_ENV"))
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize Redis client: %v", err)
	}
	defer redisClient.Close()

	esClient, err := elasticsearch.NewClient(&cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Failed to initialize Elasticsearch client: %v", err)
	}

	indexRepo := database.NewIndexAdapter(pgClient)
	logRepo := database.NewSearchLogAdapter(pgClient)
	suggestionRepo := database.NewSuggestionAdapter(pgClient)
	analyticsRepo := database.NewAnalyticsAdapter(pgClient)
	catalogRepo := database.NewCatalogAdapter(pgClient)

	backend := search.NewElasticsearchAdapter(esClient)
	cacheProvider := cache.NewRedisAdapter(redisClient)
	jobQueue := queue.NewRedisQueue(redisClient)

	registry := services.NewIndexRegistryService(indexRepo, backend)
	transformer := services.NewDocumentTransformer()
	indexing := services.NewIndexingService(
		registry, transformer, backend, catalogRepo, indexRepo, jobQueue,
		cfg.Indexing.ChunkSize, cfg.Indexing.SyncPageSize,
	)
	reindexer := services.NewReindexService(indexRepo, backend, cfg.Reindex.PollInterval, cfg.Reindex.Ceiling)
	suggestions := services.NewSuggestionService(suggestionRepo, cacheProvider)
	analytics := services.NewAnalyticsService(logRepo, analyticsRepo, suggestions, cfg.Analytics)

	handlers := map[string]providers.JobHandler{
		providers.JobTypeIndex:       indexing.HandleIndexJob,
		providers.JobTypeFullSync:    indexing.HandleFullSyncJob,
		providers.JobTypeReindex:     reindexer.HandleReindexJob,
		providers.JobTypeSuggestions: suggestions.HandleSuggestionJob,
		providers.JobTypeAnalytics:   analytics.HandleAnalyticsJob,
	}

	var wg sync.WaitGroup
	for jobType, handler := range handlers {
		wg.Add(1)
		go func(jobType string, handler providers.JobHandler) {
			defer wg.Done()
			if err := jobQueue.Consume(ctx, jobType, handler); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str("job_type", jobType).Msg("Consumer stopped")
			}
		}(jobType, handler)
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Analytics.NightlySchedule, func() {
		enqueueCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		payload := services.AnalyticsJobPayload{
			Date: time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02"),
		}
		if _, err := jobQueue.Enqueue(enqueueCtx, providers.JobTypeAnalytics, payload); err != nil {
			logger.Error().Err(err).Msg("Failed to enqueue nightly analytics job")
		}
	})
	if err != nil {
		log.Fatalf("Invalid analytics schedule %q: %v", cfg.Analytics.NightlySchedule, err)
	}
	scheduler.Start()

	logger.Info().
		Int("consumers", len(handlers)).
		Str("analytics_schedule", cfg.Analytics.NightlySchedule).
		Msg("Worker started")

	<-ctx.Done()
	logger.Info().Msg("Worker shutting down...")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()
	wg.Wait()

	logger.Info().Msg("Worker stopped")
}
