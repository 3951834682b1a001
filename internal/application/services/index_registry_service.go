package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/providers"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

// IndexRegistryService manages index registry metadata and backend index
// provisioning. The indexing pipeline and the reindex orchestrator are the
// only callers that mutate sync and active fields.
type IndexRegistryService struct {
	repo    repositories.IndexRepository
	backend providers.SearchBackend
}

// NewIndexRegistryService creates a new index registry service
func NewIndexRegistryService(repo repositories.IndexRepository, backend providers.SearchBackend) *IndexRegistryService {
	return &IndexRegistryService{repo: repo, backend: backend}
}

// EnsureIndex returns the active index for an org and type, provisioning the
// backend index, its alias, and the registry row on first use
func (s *IndexRegistryService) EnsureIndex(ctx context.Context, orgID string, indexType entities.IndexType) (*entities.Index, error) {
	if !indexType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown index type: %s", indexType))
	}

	index, err := s.repo.GetActive(ctx, orgID, indexType)
	if err == nil {
		return index, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	now := time.Now()
	physical := entities.NewPhysicalName(orgID, indexType, now)
	alias := entities.AliasFor(orgID, indexType)
	mapping := MappingFor(indexType)
	settings := IndexSettings()

	if err := s.backend.CreateIndex(ctx, physical, mapping, settings); err != nil {
		return nil, err
	}
	if err := s.backend.PutAlias(ctx, physical, alias); err != nil {
		return nil, err
	}

	mappingJSON, _ := json.Marshal(mapping)
	settingsJSON, _ := json.Marshal(settings)
	index = &entities.Index{
		OrgID:          orgID,
		Type:           indexType,
		PhysicalName:   physical,
		AliasName:      alias,
		Mapping:        mappingJSON,
		Config:         settingsJSON,
		IsActive:       true,
		IsRealtimeSync: true,
	}
	if err := s.repo.Create(ctx, index); err != nil {
		return nil, err
	}
	return index, nil
}

// GetActive returns the active index for an org and type
func (s *IndexRegistryService) GetActive(ctx context.Context, orgID string, indexType entities.IndexType) (*entities.Index, error) {
	return s.repo.GetActive(ctx, orgID, indexType)
}

// List returns all registry rows for an org
func (s *IndexRegistryService) List(ctx context.Context, orgID string) ([]*entities.Index, error) {
	return s.repo.List(ctx, orgID)
}

// RefreshDocumentCount stores the backend's authoritative document count
func (s *IndexRegistryService) RefreshDocumentCount(ctx context.Context, index *entities.Index) error {
	count, err := s.backend.Count(ctx, index.PhysicalName)
	if err != nil {
		return err
	}
	index.DocumentCount = count
	return s.repo.UpdateDocumentCount(ctx, index.ID, count)
}

// MappingFor returns the backend field mapping for an index type
func MappingFor(indexType entities.IndexType) map[string]interface{} {
	properties := map[string]interface{}{
		"org_id":      map[string]interface{}{"type": "keyword"},
		"type":        map[string]interface{}{"type": "keyword"},
		"title":       map[string]interface{}{"type": "text"},
		"description": map[string]interface{}{"type": "text"},
		"content":     map[string]interface{}{"type": "text"},
		"tags":        map[string]interface{}{"type": "keyword"},
		"created_at":  map[string]interface{}{"type": "date"},
		"updated_at":  map[string]interface{}{"type": "date"},
		"suggest":     map[string]interface{}{"type": "completion"},
	}

	switch indexType {
	case entities.IndexTypeCourses:
		properties["category"] = map[string]interface{}{"type": "keyword"}
		properties["instructor"] = map[string]interface{}{
			"type":   "text",
			"fields": map[string]interface{}{"raw": map[string]interface{}{"type": "keyword"}},
		}
		properties["difficulty_level"] = map[string]interface{}{"type": "keyword"}
		properties["language"] = map[string]interface{}{"type": "keyword"}
		properties["duration_minutes"] = map[string]interface{}{"type": "integer"}
		properties["views"] = map[string]interface{}{"type": "long"}
		properties["enrollments"] = map[string]interface{}{"type": "long"}
		properties["rating"] = map[string]interface{}{"type": "float"}
		properties["is_published"] = map[string]interface{}{"type": "boolean"}
		properties["published_at"] = map[string]interface{}{"type": "date"}
	case entities.IndexTypeContent:
		properties["course_id"] = map[string]interface{}{"type": "keyword"}
		properties["content_type"] = map[string]interface{}{"type": "keyword"}
		properties["views"] = map[string]interface{}{"type": "long"}
		properties["rating"] = map[string]interface{}{"type": "float"}
		properties["is_published"] = map[string]interface{}{"type": "boolean"}
		properties["published_at"] = map[string]interface{}{"type": "date"}
	case entities.IndexTypeUsers:
		properties["skills"] = map[string]interface{}{"type": "keyword"}
		properties["interests"] = map[string]interface{}{"type": "keyword"}
		properties["completed_courses"] = map[string]interface{}{"type": "long"}
	}

	return map[string]interface{}{"properties": properties}
}

// IndexSettings returns the backend settings applied to every new index
func IndexSettings() map[string]interface{} {
	return map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 1,
		"refresh_interval":   "1s",
	}
}
