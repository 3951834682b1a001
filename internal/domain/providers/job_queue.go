package providers

import (
	"context"
	"encoding/json"
	"time"
)

// Job types consumed by the worker
const (
	JobTypeIndex       = "search.index"
	JobTypeFullSync    = "search.full_sync"
	JobTypeReindex     = "search.reindex"
	JobTypeSuggestions = "search.suggestions"
	JobTypeAnalytics   = "search.analytics"
)

// Job is one delivered unit of asynchronous work. Delivery is at-least-once;
// handlers must be idempotent by document ID.
type Job struct {
	ID         string
	Type       string
	Payload    json.RawMessage
	EnqueuedAt time.Time
	Attempt    int
}

// JobHandler processes a delivered job. Returning an error leaves the job
// unacknowledged for redelivery.
type JobHandler func(ctx context.Context, job *Job) error

// JobQueue is the durable async task collaborator
type JobQueue interface {
	// Enqueue submits a payload and returns the assigned job ID
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)

	// ReportProgress records a percent-complete figure for a running job
	ReportProgress(ctx context.Context, jobID string, percent int) error

	// Consume blocks, delivering jobs of one type to the handler until the
	// context is cancelled.
	Consume(ctx context.Context, jobType string, handler JobHandler) error
}
