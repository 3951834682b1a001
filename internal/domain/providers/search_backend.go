package providers

import (
	"context"
)

// BulkAction is one of the supported bulk operation kinds
type BulkAction string

const (
	BulkActionIndex  BulkAction = "index"
	BulkActionUpdate BulkAction = "update"
	BulkActionDelete BulkAction = "delete"
)

// BulkOp is a single document operation inside a bulk request
type BulkOp struct {
	Action BulkAction
	Index  string
	ID     string
	Doc    map[string]interface{}
}

// BulkItemError describes one failed document in a bulk request
type BulkItemError struct {
	ID     string
	Status int
	Reason string
}

// BulkResult summarizes a bulk call; partial failure is reported, not raised
type BulkResult struct {
	Indexed int
	Failed  int
	Errors  []BulkItemError
}

// SearchHit is one raw hit returned by the backend
type SearchHit struct {
	ID         string
	Index      string
	Score      float64
	Source     map[string]interface{}
	Highlights map[string][]string
}

// AggregationBucket is one bucket of a terms aggregation
type AggregationBucket struct {
	Key   string
	Count int64
}

// BackendSearchResult is the raw outcome of a backend query
type BackendSearchResult struct {
	Hits         []SearchHit
	Total        int64
	TookMs       int64
	Aggregations map[string][]AggregationBucket
}

// TaskStatus reports the progress of an async backend task.
// NotFound marks a task the backend no longer knows about.
type TaskStatus struct {
	Completed bool
	Total     int64
	Created   int64
	Failures  []string
	NotFound  bool
}

// SearchBackend is the full-text engine collaborator. UpdateAliases must be
// atomic: a reader's view of the alias is always fully-old or fully-new.
type SearchBackend interface {
	CreateIndex(ctx context.Context, name string, mapping, settings map[string]interface{}) error
	DeleteIndex(ctx context.Context, name string) error

	PutAlias(ctx context.Context, index, alias string) error
	UpdateAliases(ctx context.Context, alias, removeIndex, addIndex string) error
	ResolveAlias(ctx context.Context, alias string) (string, error)

	Bulk(ctx context.Context, ops []BulkOp) (*BulkResult, error)
	IndexDoc(ctx context.Context, index, id string, doc map[string]interface{}) error
	UpdateDoc(ctx context.Context, index, id string, doc map[string]interface{}) error
	DeleteDoc(ctx context.Context, index, id string) error

	Count(ctx context.Context, index string) (int64, error)
	Search(ctx context.Context, indices []string, query map[string]interface{}) (*BackendSearchResult, error)

	ForceMerge(ctx context.Context, index string) error
	ClearCache(ctx context.Context, index string) error

	StartReindex(ctx context.Context, src, dst string) (string, error)
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
}
