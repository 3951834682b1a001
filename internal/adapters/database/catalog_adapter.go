package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	"github.com/learnlane/coursesearch/internal/domain/repositories"
	"github.com/learnlane/coursesearch/internal/infrastructure/clients/postgres"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
)

// CatalogAdapter reads LMS source-of-truth rows for indexing. It is
// read-only: the LMS owns these tables.
type CatalogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCatalogAdapter creates a new catalog adapter
func NewCatalogAdapter(client *postgres.Client) repositories.CatalogRepository {
	return &CatalogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB().DB),
	}
}

// Count returns the number of source rows for an org and index type
func (a *CatalogAdapter) Count(ctx context.Context, orgID string, indexType entities.IndexType) (int64, error) {
	table, err := catalogTable(indexType)
	if err != nil {
		return 0, err
	}

	query, args, err := a.db.Select(goqu.COUNT("*")).From(table).
		Where(goqu.Ex{"org_id": orgID}).ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build catalog count", err)
	}

	var count int64
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count catalog rows", err)
	}
	return count, nil
}

// ListPage returns one page of source entities ordered by ID for a stable
// pagination under concurrent writes
func (a *CatalogAdapter) ListPage(ctx context.Context, orgID string, indexType entities.IndexType, offset, limit int) ([]interface{}, error) {
	return a.query(ctx, indexType, goqu.Ex{"org_id": orgID}, offset, limit)
}

// GetByIDs returns the source entities with the given IDs
func (a *CatalogAdapter) GetByIDs(ctx context.Context, orgID string, indexType entities.IndexType, ids []string) ([]interface{}, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return a.query(ctx, indexType, goqu.Ex{"org_id": orgID, "id": ids}, 0, len(ids))
}

func (a *CatalogAdapter) query(ctx context.Context, indexType entities.IndexType, where goqu.Ex, offset, limit int) ([]interface{}, error) {
	table, err := catalogTable(indexType)
	if err != nil {
		return nil, err
	}

	ds := a.db.Select(catalogColumns(indexType)...).From(table).
		Where(where).Order(goqu.I("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build catalog query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query catalog", err)
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		entity, err := scanCatalogRow(rows, indexType)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

func catalogTable(indexType entities.IndexType) (string, error) {
	switch indexType {
	case entities.IndexTypeCourses:
		return "courses", nil
	case entities.IndexTypeContent:
		return "content_items", nil
	case entities.IndexTypeUsers:
		return "learner_profiles", nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown index type %q", indexType))
}

func catalogColumns(indexType entities.IndexType) []interface{} {
	switch indexType {
	case entities.IndexTypeCourses:
		return []interface{}{
			"id", "org_id", "title", "description", "category", "tags",
			"instructor", "difficulty_level", "language", "duration_minutes",
			"views", "enrollments", "rating", "is_published", "published_at",
			"created_at", "updated_at",
		}
	case entities.IndexTypeContent:
		return []interface{}{
			"id", "org_id", "course_id", "title", "description", "body",
			"content_type", "tags", "views", "rating", "is_published",
			"published_at", "created_at", "updated_at",
		}
	default:
		return []interface{}{
			"id", "org_id", "display_name", "headline", "bio", "skills",
			"interests", "completed_courses", "created_at", "updated_at",
		}
	}
}

func scanCatalogRow(rows *sql.Rows, indexType entities.IndexType) (interface{}, error) {
	switch indexType {
	case entities.IndexTypeCourses:
		course := &entities.Course{}
		var publishedAt sql.NullTime
		err := rows.Scan(
			&course.ID, &course.OrgID, &course.Title, &course.Description,
			&course.Category, pq.Array(&course.Tags), &course.Instructor,
			&course.DifficultyLevel, &course.Language, &course.DurationMinutes,
			&course.Views, &course.Enrollments, &course.Rating,
			&course.IsPublished, &publishedAt, &course.CreatedAt, &course.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan course", err)
		}
		if publishedAt.Valid {
			course.PublishedAt = &publishedAt.Time
		}
		return course, nil

	case entities.IndexTypeContent:
		item := &entities.ContentItem{}
		var publishedAt sql.NullTime
		err := rows.Scan(
			&item.ID, &item.OrgID, &item.CourseID, &item.Title,
			&item.Description, &item.Body, &item.ContentType,
			pq.Array(&item.Tags), &item.Views, &item.Rating,
			&item.IsPublished, &publishedAt, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan content item", err)
		}
		if publishedAt.Valid {
			item.PublishedAt = &publishedAt.Time
		}
		return item, nil

	default:
		profile := &entities.LearnerProfile{}
		err := rows.Scan(
			&profile.ID, &profile.OrgID, &profile.DisplayName,
			&profile.Headline, &profile.Bio, pq.Array(&profile.Skills),
			pq.Array(&profile.Interests), &profile.CompletedCourses,
			&profile.CreatedAt, &profile.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan learner profile", err)
		}
		return profile, nil
	}
}
