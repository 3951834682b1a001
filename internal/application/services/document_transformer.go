package services

import (
	"fmt"
	"math"
	"time"

	"github.com/learnlane/coursesearch/internal/domain/entities"
	apperrors "github.com/learnlane/coursesearch/pkg/errors"
	"github.com/learnlane/coursesearch/pkg/utils"
)

type transformFunc func(source interface{}) (*entities.Document, error)

// DocumentTransformer converts catalog entities into backend-ready search
// documents. The registry is closed at construction; unknown index types are
// rejected rather than passed through.
type DocumentTransformer struct {
	registry map[entities.IndexType]transformFunc
	now      func() time.Time
}

// NewDocumentTransformer creates a transformer with the standard registry
func NewDocumentTransformer() *DocumentTransformer {
	return NewDocumentTransformerWithClock(time.Now)
}

// NewDocumentTransformerWithClock injects the clock used for recency scoring
func NewDocumentTransformerWithClock(now func() time.Time) *DocumentTransformer {
	t := &DocumentTransformer{now: now}
	t.registry = map[entities.IndexType]transformFunc{
		entities.IndexTypeCourses: t.transformCourse,
		entities.IndexTypeContent: t.transformContentItem,
		entities.IndexTypeUsers:   t.transformLearnerProfile,
	}
	return t
}

// Transform produces the search document for one source entity
func (t *DocumentTransformer) Transform(indexType entities.IndexType, source interface{}) (*entities.Document, error) {
	fn, ok := t.registry[indexType]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown index type: %s", indexType))
	}
	return fn(source)
}

func (t *DocumentTransformer) transformCourse(source interface{}) (*entities.Document, error) {
	course, ok := source.(*entities.Course)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("expected *Course, got %T", source))
	}

	fields := map[string]interface{}{
		"id":               course.ID,
		"org_id":           course.OrgID,
		"type":             "course",
		"title":            course.Title,
		"description":      course.Description,
		"content":          course.Description,
		"category":         course.Category,
		"tags":             utils.DedupeTags(course.Tags, 0),
		"instructor":       course.Instructor,
		"difficulty_level": course.DifficultyLevel,
		"language":         course.Language,
		"duration_minutes": course.DurationMinutes,
		"views":            course.Views,
		"enrollments":      course.Enrollments,
		"rating":           course.Rating,
		"is_published":     course.IsPublished,
		"created_at":       course.CreatedAt,
		"updated_at":       course.UpdatedAt,
		"suggest": map[string]interface{}{
			"input":  suggestInputs(course.Title, course.Tags),
			"weight": t.suggestWeight(course.Views, course.Enrollments, course.Rating, course.IsPublished, course.UpdatedAt),
		},
	}
	if course.PublishedAt != nil {
		fields["published_at"] = *course.PublishedAt
	}
	return &entities.Document{ID: course.ID, Fields: fields}, nil
}

func (t *DocumentTransformer) transformContentItem(source interface{}) (*entities.Document, error) {
	item, ok := source.(*entities.ContentItem)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("expected *ContentItem, got %T", source))
	}

	fields := map[string]interface{}{
		"id":           item.ID,
		"org_id":       item.OrgID,
		"type":         "content",
		"course_id":    item.CourseID,
		"title":        item.Title,
		"description":  item.Description,
		"content":      item.Body,
		"content_type": item.ContentType,
		"tags":         utils.DedupeTags(item.Tags, 0),
		"views":        item.Views,
		"rating":       item.Rating,
		"is_published": item.IsPublished,
		"created_at":   item.CreatedAt,
		"updated_at":   item.UpdatedAt,
		"suggest": map[string]interface{}{
			"input":  suggestInputs(item.Title, item.Tags),
			"weight": t.suggestWeight(item.Views, 0, item.Rating, item.IsPublished, item.UpdatedAt),
		},
	}
	if item.PublishedAt != nil {
		fields["published_at"] = *item.PublishedAt
	}
	return &entities.Document{ID: item.ID, Fields: fields}, nil
}

func (t *DocumentTransformer) transformLearnerProfile(source interface{}) (*entities.Document, error) {
	profile, ok := source.(*entities.LearnerProfile)
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("expected *LearnerProfile, got %T", source))
	}

	fields := map[string]interface{}{
		"id":                profile.ID,
		"org_id":            profile.OrgID,
		"type":              "user",
		"title":             profile.DisplayName,
		"description":       profile.Headline,
		"content":           profile.Bio,
		"tags":              utils.DedupeTags(append(append([]string{}, profile.Skills...), profile.Interests...), 0),
		"skills":            profile.Skills,
		"interests":         profile.Interests,
		"completed_courses": profile.CompletedCourses,
		"created_at":        profile.CreatedAt,
		"updated_at":        profile.UpdatedAt,
		"suggest": map[string]interface{}{
			"input":  suggestInputs(profile.DisplayName, profile.Skills),
			"weight": t.suggestWeight(profile.CompletedCourses, 0, 0, true, profile.UpdatedAt),
		},
	}
	return &entities.Document{ID: profile.ID, Fields: fields}, nil
}

// suggestWeight scores a document for completion suggestions. Popularity
// contributes logarithmically so a handful of viral items cannot drown out
// the rest; the result is capped at 15.
func (t *DocumentTransformer) suggestWeight(views, enrollments int64, rating float64, isPublished bool, updatedAt time.Time) int {
	weight := 1.0
	if isPublished {
		weight += 2
	}
	weight += 2 * math.Log10(float64(views)+1)
	weight += 2 * math.Log10(float64(enrollments)+1)
	weight += rating

	age := t.now().Sub(updatedAt)
	switch {
	case age < 7*24*time.Hour:
		weight += 3
	case age < 30*24*time.Hour:
		weight += 2
	case age < 90*24*time.Hour:
		weight += 1
	}

	if weight > 15 {
		weight = 15
	}
	return int(math.Round(weight))
}

func suggestInputs(title string, extras []string) []string {
	inputs := make([]string, 0, len(extras)+1)
	if title != "" {
		inputs = append(inputs, title)
	}
	for _, extra := range extras {
		if extra != "" {
			inputs = append(inputs, extra)
		}
	}
	return inputs
}
