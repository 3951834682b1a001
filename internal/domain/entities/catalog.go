package entities

import (
	"time"
)

// Course is the LMS course aggregate as seen by the search platform
type Course struct {
	ID              string     `json:"id" db:"id"`
	OrgID           string     `json:"org_id" db:"org_id"`
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	Category        string     `json:"category" db:"category"`
	Tags            []string   `json:"tags,omitempty" db:"-"`
	Instructor      string     `json:"instructor" db:"instructor"`
	DifficultyLevel string     `json:"difficulty_level" db:"difficulty_level"`
	Language        string     `json:"language" db:"language"`
	DurationMinutes int        `json:"duration_minutes" db:"duration_minutes"`
	Views           int64      `json:"views" db:"views"`
	Enrollments     int64      `json:"enrollments" db:"enrollments"`
	Rating          float64    `json:"rating" db:"rating"`
	IsPublished     bool       `json:"is_published" db:"is_published"`
	PublishedAt     *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// ContentItem is an individual piece of course content (lesson, video,
// article, quiz)
type ContentItem struct {
	ID          string     `json:"id" db:"id"`
	OrgID       string     `json:"org_id" db:"org_id"`
	CourseID    string     `json:"course_id" db:"course_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Body        string     `json:"body" db:"body"`
	ContentType string     `json:"content_type" db:"content_type"`
	Tags        []string   `json:"tags,omitempty" db:"-"`
	Views       int64      `json:"views" db:"views"`
	Rating      float64    `json:"rating" db:"rating"`
	IsPublished bool       `json:"is_published" db:"is_published"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// LearnerProfile is the public-facing user profile indexed for people search
type LearnerProfile struct {
	ID               string    `json:"id" db:"id"`
	OrgID            string    `json:"org_id" db:"org_id"`
	DisplayName      string    `json:"display_name" db:"display_name"`
	Headline         string    `json:"headline" db:"headline"`
	Bio              string    `json:"bio" db:"bio"`
	Skills           []string  `json:"skills,omitempty" db:"-"`
	Interests        []string  `json:"interests,omitempty" db:"-"`
	CompletedCourses int64     `json:"completed_courses" db:"completed_courses"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
