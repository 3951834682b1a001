package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/observability"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

// ReindexState labels the phases of a zero-downtime reindex
type ReindexState string

const (
	ReindexStateCreated    ReindexState = "created"
	ReindexStateCopying    ReindexState = "copying"
	ReindexStateMonitoring ReindexState = "monitoring"
	ReindexStateSwapping   ReindexState = "swapping"
	ReindexStateCleanup    ReindexState = "cleanup"
	ReindexStateCompleted  ReindexState = "completed"
	ReindexStateCopyFailed ReindexState = "copy_failed"
	ReindexStateTimeout    ReindexState = "timeout"
)

// ReindexRequest identifies the index to rebuild
type ReindexRequest struct {
	IndexType entities.IndexType `json:"index_type"`
	OrgID     string             `json:"org_id"`
}

// ReindexResult reports the terminal state of a reindex run
type ReindexResult struct {
	State    ReindexState
	OldIndex string
	NewIndex string
	TaskID   string
}

// ReindexService rebuilds indices with zero downtime: copy into a fresh
// physical index, monitor the async copy, then atomically swap the alias.
// Any failure before the swap leaves readers on the original index.
type ReindexService struct {
	indexRepo repositories.IndexRepository
	backend   providers.SearchBackend

	pollInterval time.Duration
	ceiling      time.Duration
}

// NewReindexService creates a new reindex orchestrator
func NewReindexService(indexRepo repositories.IndexRepository, backend providers.SearchBackend, pollInterval, ceiling time.Duration) *ReindexService {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if ceiling <= 0 {
		ceiling = 30 * time.Minute
	}
	return &ReindexService{
		indexRepo:    indexRepo,
		backend:      backend,
		pollInterval: pollInterval,
		ceiling:      ceiling,
	}
}

// Reindex runs the full state machine for one org and index type
func (s *ReindexService) Reindex(ctx context.Context, req *ReindexRequest) (*ReindexResult, error) {
	if !req.IndexType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown index type: %s", req.IndexType))
	}
	if req.OrgID == "" {
		return nil, apperrors.NewValidationError("org_id is required")
	}

	logger := observability.LoggerFromContext(ctx)

	active, err := s.indexRepo.GetActive(ctx, req.OrgID, req.IndexType)
	if err != nil {
		return nil, err
	}

	result := &ReindexResult{State: ReindexStateCreated, OldIndex: active.PhysicalName}
	newPhysical := entities.NewPhysicalName(req.OrgID, req.IndexType, time.Now())
	result.NewIndex = newPhysical

	mapping := MappingFor(req.IndexType)
	settings := IndexSettings()
	if err := s.backend.CreateIndex(ctx, newPhysical, mapping, settings); err != nil {
		result.State = ReindexStateCopyFailed
		return result, err
	}

	result.State = ReindexStateCopying
	taskID, err := s.backend.StartReindex(ctx, active.PhysicalName, newPhysical)
	if err != nil {
		result.State = ReindexStateCopyFailed
		s.dropIndex(ctx, newPhysical)
		return result, err
	}
	result.TaskID = taskID

	result.State = ReindexStateMonitoring
	logger.Info().
		Str("old_index", active.PhysicalName).
		Str("new_index", newPhysical).
		Str("task_id", taskID).
		Msg("Reindex copy started")

	if state, err := s.monitor(ctx, taskID); err != nil {
		result.State = state
		s.dropIndex(ctx, newPhysical)
		return result, err
	}

	result.State = ReindexStateSwapping
	if err := s.backend.UpdateAliases(ctx, active.AliasName, active.PhysicalName, newPhysical); err != nil {
		result.State = ReindexStateCopyFailed
		s.dropIndex(ctx, newPhysical)
		return result, err
	}

	result.State = ReindexStateCleanup
	count, err := s.backend.Count(ctx, newPhysical)
	if err != nil {
		logger.Warn().Err(err).Str("index", newPhysical).Msg("Failed to count reindexed documents")
		count = active.DocumentCount
	}

	now := time.Now()
	replacement := &entities.Index{
		OrgID:          active.OrgID,
		Type:           active.Type,
		PhysicalName:   newPhysical,
		AliasName:      active.AliasName,
		Mapping:        active.Mapping,
		Config:         active.Config,
		IsRealtimeSync: active.IsRealtimeSync,
		DocumentCount:  count,
		LastSyncedAt:   &now,
	}
	if err := s.indexRepo.ReplaceActive(ctx, active.ID, replacement); err != nil {
		// the alias already points at the new index; surface the registry
		// drift instead of trying to unwind the swap
		return result, err
	}

	s.dropIndex(ctx, active.PhysicalName)

	if err := s.backend.ForceMerge(ctx, newPhysical); err != nil {
		logger.Warn().Err(err).Str("index", newPhysical).Msg("Post-swap force merge failed")
	}
	if err := s.backend.ClearCache(ctx, active.AliasName); err != nil {
		logger.Warn().Err(err).Str("alias", active.AliasName).Msg("Post-swap cache clear failed")
	}

	result.State = ReindexStateCompleted
	logger.Info().
		Str("old_index", active.PhysicalName).
		Str("new_index", newPhysical).
		Int64("document_count", count).
		Msg("Reindex completed")
	return result, nil
}

// HandleReindexJob consumes search.reindex jobs
func (s *ReindexService) HandleReindexJob(ctx context.Context, job *providers.Job) error {
	var req ReindexRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("job_id", job.ID).Msg("Dropping malformed reindex job")
		return nil
	}

	if _, err := s.Reindex(ctx, &req); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			observability.LoggerFromContext(ctx).Error().Err(err).
				Str("job_id", job.ID).Msg("Dropping invalid reindex job")
			return nil
		}
		return err
	}
	return nil
}

// monitor polls the copy task until completion, timeout, or cancellation.
// Task-not-found after a successful start is treated as implicit success
// because completed task records expire on the backend.
func (s *ReindexService) monitor(ctx context.Context, taskID string) (ReindexState, error) {
	logger := observability.LoggerFromContext(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.ceiling)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ReindexStateCopyFailed, apperrors.NewInternalError("reindex cancelled", ctx.Err())
		case <-deadline.C:
			return ReindexStateTimeout, apperrors.NewInternalError(
				fmt.Sprintf("reindex task %s exceeded ceiling of %s", taskID, s.ceiling), nil)
		case <-ticker.C:
			status, err := s.backend.GetTaskStatus(ctx, taskID)
			if err != nil {
				logger.Warn().Err(err).Str("task_id", taskID).Msg("Task status poll failed, will retry")
				continue
			}
			if status.NotFound {
				logger.Info().Str("task_id", taskID).Msg("Task record expired, treating copy as complete")
				return ReindexStateMonitoring, nil
			}
			if !status.Completed {
				logger.Debug().
					Str("task_id", taskID).
					Int64("created", status.Created).
					Int64("total", status.Total).
					Msg("Reindex copy in progress")
				continue
			}
			if len(status.Failures) > 0 {
				return ReindexStateCopyFailed, apperrors.NewExternalError(
					fmt.Sprintf("reindex task %s reported %d failures", taskID, len(status.Failures)),
					fmt.Errorf("first failure: %s", status.Failures[0]))
			}
			return ReindexStateMonitoring, nil
		}
	}
}

func (s *ReindexService) dropIndex(ctx context.Context, name string) {
	if err := s.backend.DeleteIndex(ctx, name); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("index", name).Msg("Failed to delete physical index")
	}
}
