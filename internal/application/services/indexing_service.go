package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/observability"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

// Indexing operations accepted by the pipeline
const (
	OperationIndex  = "index"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationBulk   = "bulk"
)

// IndexRequest asks the pipeline to apply one operation to a set of
// documents, either inlined as catalog entity JSON or identified by their
// catalog IDs. Deletes always go by ID.
type IndexRequest struct {
	IndexType   entities.IndexType `json:"index_type"`
	OrgID       string             `json:"org_id"`
	Operation   string             `json:"operation"`
	Documents   []json.RawMessage  `json:"documents,omitempty"`
	DocumentIDs []string           `json:"document_ids,omitempty"`
}

// FullSyncRequest asks the pipeline to rebuild an org's index from the
// catalog source of truth
type FullSyncRequest struct {
	IndexType entities.IndexType `json:"index_type"`
	OrgID     string             `json:"org_id"`
}

// IndexingResult reports the outcome of an indexing operation. Partial
// failures are carried here, never raised as errors.
type IndexingResult struct {
	Indexed int
	Failed  int
	Errors  []providers.BulkItemError
}

// IndexingService is the write path into the search backend. Operations for
// the same (org, index type) are serialized; handlers are idempotent by
// document ID so at-least-once job delivery is safe.
type IndexingService struct {
	registry    *IndexRegistryService
	transformer *DocumentTransformer
	backend     providers.SearchBackend
	catalog     repositories.CatalogRepository
	indexRepo   repositories.IndexRepository
	queue       providers.JobQueue

	chunkSize    int
	syncPageSize int
	locks        keyedMutex
}

// NewIndexingService creates a new indexing pipeline
func NewIndexingService(
	registry *IndexRegistryService,
	transformer *DocumentTransformer,
	backend providers.SearchBackend,
	catalog repositories.CatalogRepository,
	indexRepo repositories.IndexRepository,
	queue providers.JobQueue,
	chunkSize, syncPageSize int,
) *IndexingService {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if syncPageSize <= 0 {
		syncPageSize = 500
	}
	return &IndexingService{
		registry:     registry,
		transformer:  transformer,
		backend:      backend,
		catalog:      catalog,
		indexRepo:    indexRepo,
		queue:        queue,
		chunkSize:    chunkSize,
		syncPageSize: syncPageSize,
	}
}

// IndexDocuments applies one incremental operation. The registry document
// count is resynced from the backend afterwards regardless of outcome.
func (s *IndexingService) IndexDocuments(ctx context.Context, req *IndexRequest) (*IndexingResult, error) {
	if err := validateIndexRequest(req); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(lockKey(req.OrgID, req.IndexType))
	defer unlock()

	index, err := s.registry.EnsureIndex(ctx, req.OrgID, req.IndexType)
	if err != nil {
		return nil, err
	}

	var result *IndexingResult
	switch req.Operation {
	case OperationDelete:
		result = s.deleteDocuments(ctx, index, req.DocumentIDs)
	case OperationIndex, OperationUpdate, OperationBulk:
		result, err = s.writeDocuments(ctx, index, req)
		if err != nil {
			return nil, err
		}
	}

	if err := s.registry.RefreshDocumentCount(ctx, index); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("index", index.PhysicalName).Msg("Failed to resync document count")
	}
	return result, nil
}

// FullSync rebuilds an org's index from the catalog, page by page. Progress
// is reported monotonically when a job ID is present. Sync stats record the
// outcome either way; a failure leaves prior stats untouched.
func (s *IndexingService) FullSync(ctx context.Context, req *FullSyncRequest, jobID string) (*IndexingResult, error) {
	if !req.IndexType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown index type: %s", req.IndexType))
	}
	if req.OrgID == "" {
		return nil, apperrors.NewValidationError("org_id is required")
	}

	unlock := s.locks.lock(lockKey(req.OrgID, req.IndexType))
	defer unlock()

	index, err := s.registry.EnsureIndex(ctx, req.OrgID, req.IndexType)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, processed, err := s.syncPages(ctx, index, req, jobID)
	if err != nil {
		if recordErr := s.indexRepo.RecordSyncFailure(ctx, index.ID, err.Error()); recordErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(recordErr).
				Str("index", index.PhysicalName).Msg("Failed to record sync failure")
		}
		return nil, err
	}

	duration := time.Since(start)
	throughput := 0.0
	if duration > 0 {
		throughput = float64(processed) / duration.Seconds()
	}

	count, err := s.backend.Count(ctx, index.PhysicalName)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("index", index.PhysicalName).Msg("Failed to fetch post-sync document count")
		count = index.DocumentCount
	}

	if err := s.indexRepo.RecordSyncSuccess(ctx, index.ID, duration.Milliseconds(), throughput, count, time.Now()); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("org_id", req.OrgID).
		Str("index_type", string(req.IndexType)).
		Int("processed", processed).
		Int("failed", result.Failed).
		Int64("document_count", count).
		Dur("duration", duration).
		Msg("Full sync completed")
	return result, nil
}

// HandleIndexJob consumes search.index jobs. Validation problems are
// acknowledged and dropped; anything else is left for redelivery.
func (s *IndexingService) HandleIndexJob(ctx context.Context, job *providers.Job) error {
	var req IndexRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("job_id", job.ID).Msg("Dropping malformed index job")
		return nil
	}

	result, err := s.IndexDocuments(ctx, &req)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			observability.LoggerFromContext(ctx).Error().Err(err).
				Str("job_id", job.ID).Msg("Dropping invalid index job")
			return nil
		}
		return err
	}

	if result.Failed > 0 {
		observability.LoggerFromContext(ctx).Warn().
			Str("job_id", job.ID).
			Int("indexed", result.Indexed).
			Int("failed", result.Failed).
			Msg("Index job finished with partial failures")
	}
	return nil
}

// HandleFullSyncJob consumes search.full_sync jobs
func (s *IndexingService) HandleFullSyncJob(ctx context.Context, job *providers.Job) error {
	var req FullSyncRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("job_id", job.ID).Msg("Dropping malformed full sync job")
		return nil
	}

	if _, err := s.FullSync(ctx, &req, job.ID); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			observability.LoggerFromContext(ctx).Error().Err(err).
				Str("job_id", job.ID).Msg("Dropping invalid full sync job")
			return nil
		}
		return err
	}
	return nil
}

func (s *IndexingService) syncPages(ctx context.Context, index *entities.Index, req *FullSyncRequest, jobID string) (*IndexingResult, int, error) {
	total, err := s.catalog.Count(ctx, req.OrgID, req.IndexType)
	if err != nil {
		return nil, 0, err
	}

	result := &IndexingResult{}
	processed := 0
	lastProgress := 0

	for offset := 0; ; offset += s.syncPageSize {
		if err := ctx.Err(); err != nil {
			return nil, processed, err
		}

		page, err := s.catalog.ListPage(ctx, req.OrgID, req.IndexType, offset, s.syncPageSize)
		if err != nil {
			return nil, processed, err
		}
		if len(page) == 0 {
			break
		}

		pageResult, err := s.bulkWrite(ctx, index.PhysicalName, req.IndexType, page)
		if err != nil {
			return nil, processed, err
		}
		mergeResults(result, pageResult)
		processed += len(page)

		if jobID != "" && total > 0 {
			progress := int(int64(processed) * 100 / total)
			if progress > 100 {
				progress = 100
			}
			// monotonic: never report a lower figure than already sent
			if progress > lastProgress {
				lastProgress = progress
				if err := s.queue.ReportProgress(ctx, jobID, progress); err != nil {
					observability.LoggerFromContext(ctx).Warn().Err(err).
						Str("job_id", jobID).Msg("Failed to report sync progress")
				}
			}
		}

		if len(page) < s.syncPageSize {
			break
		}
	}
	return result, processed, nil
}

func (s *IndexingService) writeDocuments(ctx context.Context, index *entities.Index, req *IndexRequest) (*IndexingResult, error) {
	var sources []interface{}
	var err error
	if len(req.Documents) > 0 {
		sources, err = decodeSources(req.IndexType, req.Documents)
	} else {
		sources, err = s.catalog.GetByIDs(ctx, req.OrgID, req.IndexType, req.DocumentIDs)
	}
	if err != nil {
		return nil, err
	}
	return s.bulkWrite(ctx, index.PhysicalName, req.IndexType, sources)
}

// decodeSources turns inline request documents into the catalog entities the
// transformer expects
func decodeSources(indexType entities.IndexType, docs []json.RawMessage) ([]interface{}, error) {
	sources := make([]interface{}, 0, len(docs))
	for i, raw := range docs {
		var source interface{}
		switch indexType {
		case entities.IndexTypeCourses:
			source = &entities.Course{}
		case entities.IndexTypeContent:
			source = &entities.ContentItem{}
		case entities.IndexTypeUsers:
			source = &entities.LearnerProfile{}
		}
		if err := json.Unmarshal(raw, source); err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("document %d is not a valid %s payload: %v", i, indexType, err))
		}
		sources = append(sources, source)
	}
	return sources, nil
}

func (s *IndexingService) bulkWrite(ctx context.Context, physicalName string, indexType entities.IndexType, sources []interface{}) (*IndexingResult, error) {
	result := &IndexingResult{}
	ops := make([]providers.BulkOp, 0, len(sources))
	for _, source := range sources {
		doc, err := s.transformer.Transform(indexType, source)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, providers.BulkItemError{Reason: err.Error()})
			continue
		}
		ops = append(ops, providers.BulkOp{
			Action: providers.BulkActionIndex,
			Index:  physicalName,
			ID:     doc.ID,
			Doc:    doc.Fields,
		})
	}

	for start := 0; start < len(ops); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(ops) {
			end = len(ops)
		}
		chunkResult, err := s.backend.Bulk(ctx, ops[start:end])
		if err != nil {
			return nil, err
		}
		result.Indexed += chunkResult.Indexed
		result.Failed += chunkResult.Failed
		result.Errors = append(result.Errors, chunkResult.Errors...)
	}
	return result, nil
}

func (s *IndexingService) deleteDocuments(ctx context.Context, index *entities.Index, ids []string) *IndexingResult {
	result := &IndexingResult{}
	for _, id := range ids {
		err := s.backend.DeleteDoc(ctx, index.PhysicalName, id)
		if err != nil {
			// a missing document means a prior delivery already removed it
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				result.Indexed++
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, providers.BulkItemError{ID: id, Reason: err.Error()})
			continue
		}
		result.Indexed++
	}
	return result
}

func validateIndexRequest(req *IndexRequest) error {
	if !req.IndexType.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown index type: %s", req.IndexType))
	}
	if req.OrgID == "" {
		return apperrors.NewValidationError("org_id is required")
	}
	switch req.Operation {
	case OperationDelete:
		if len(req.DocumentIDs) == 0 {
			return apperrors.NewValidationError("document_ids is required for delete")
		}
	case OperationIndex, OperationUpdate, OperationBulk:
		if len(req.Documents) == 0 && len(req.DocumentIDs) == 0 {
			return apperrors.NewValidationError("documents or document_ids is required")
		}
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown operation: %s", req.Operation))
	}
	return nil
}

func mergeResults(dst, src *IndexingResult) {
	dst.Indexed += src.Indexed
	dst.Failed += src.Failed
	dst.Errors = append(dst.Errors, src.Errors...)
}

func lockKey(orgID string, indexType entities.IndexType) string {
	return orgID + ":" + string(indexType)
}

// keyedMutex serializes work per key without holding a global lock across
// the work itself
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
