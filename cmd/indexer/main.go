package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/learnlane/coursesearch/internal/adapters/database"
	"github.com/learnlane/coursesearch/internal/adapters/search"
	"github.com/learnlane/coursesearch/internal/application/services"
	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/elasticsearch"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	"github.com/learnlane/coursesearch/internal/infrastructure/observability"
	"github.com/learnlane/coursesearch/pkg/config"
)

func main() {
	var orgFlag string
	var typesFlag string
	var intervalFlag string
	flag.StringVar(&orgFlag, "org", "", "organization ID to sync (required)")
	flag.StringVar(&typesFlag, "types", "", "comma-separated index types to sync (default: all)")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for syncing (e.g. 6h, 30m)")
	flag.Parse()

	orgID := strings.TrimSpace(orgFlag)
	if orgID == "" {
		orgID = strings.TrimSpace(os.Getenv("SYNC_ORG_ID"))
	}
	if orgID == "" {
		log.Fatal("An organization ID is required (-org flag or SYNC_ORG_ID)")
	}

	indexTypes, err := parseIndexTypes(typesFlag)
	if err != nil {
		log.Fatalf("Invalid index types %q: %v", typesFlag, err)
	}

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("SYNC_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	observability.InitLogger("coursesearch-indexer", os.Getenv("APP_ENV"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := syncOnce(ctx, orgID, indexTypes); err != nil {
			log.Printf("Full sync failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		log.Printf("Full sync complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Indexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func syncOnce(ctx context.Context, orgID string, indexTypes []entities.IndexType) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	esClient, err := elasticsearch.NewClient(&cfg.Elasticsearch)
	if err != nil {
		return err
	}

	indexRepo := database.NewIndexAdapter(pgClient)
	catalogRepo := database.NewCatalogAdapter(pgClient)
	backend := search.NewElasticsearchAdapter(esClient)

	registry := services.NewIndexRegistryService(indexRepo, backend)
	transformer := services.NewDocumentTransformer()

	// one-shot runs pass no job ID, so the queue is never touched
	indexing := services.NewIndexingService(
		registry, transformer, backend, catalogRepo, indexRepo, nil,
		cfg.Indexing.ChunkSize, cfg.Indexing.SyncPageSize,
	)

	for _, indexType := range indexTypes {
		log.Printf("Syncing %s for org %s...", indexType, orgID)

		result, err := indexing.FullSync(ctx, &services.FullSyncRequest{
			IndexType: indexType,
			OrgID:     orgID,
		}, "")
		if err != nil {
			return err
		}

		if result.Failed > 0 {
			log.Printf("Synced %s with %d failures (%d indexed)", indexType, result.Failed, result.Indexed)
		} else {
			log.Printf("Synced %s (%d indexed)", indexType, result.Indexed)
		}
	}

	log.Println("Full sync finished.")
	return nil
}

func parseIndexTypes(value string) ([]entities.IndexType, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return entities.AllIndexTypes, nil
	}

	var indexTypes []entities.IndexType
	for _, part := range strings.Split(value, ",") {
		indexType := entities.IndexType(strings.TrimSpace(part))
		if !indexType.Valid() {
			return nil, fmt.Errorf("unknown index type: %s", indexType)
		}
		indexTypes = append(indexTypes, indexType)
	}
	return indexTypes, nil
}
