package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// IndexType identifies the kind of documents an index holds
type IndexType string

const (
	IndexTypeCourses IndexType = "courses"
	IndexTypeContent IndexType = "content"
	IndexTypeUsers   IndexType = "users"
)

// AllIndexTypes lists every supported index type
var AllIndexTypes = []IndexType{IndexTypeCourses, IndexTypeContent, IndexTypeUsers}

// Valid reports whether the index type is one of the supported variants
func (t IndexType) Valid() bool {
	switch t {
	case IndexTypeCourses, IndexTypeContent, IndexTypeUsers:
		return true
	}
	return false
}

// SyncStats tracks the outcome history of full syncs for an index
type SyncStats struct {
	SuccessfulSyncs  int     `json:"successful_syncs" db:"successful_syncs"`
	FailedSyncs      int     `json:"failed_syncs" db:"failed_syncs"`
	LastError        string  `json:"last_error,omitempty" db:"last_error"`
	LastDurationMs   int64   `json:"last_duration_ms" db:"last_duration_ms"`
	ThroughputPerSec float64 `json:"throughput_per_sec" db:"throughput_per_sec"`
}

// Index is the registry metadata for one physical search index.
// Exactly one Index per (OrgID, Type) is active at any time, and AliasName
// resolves to exactly one PhysicalName. DocumentCount always reflects the
// backend's authoritative count after a sync, never a client-side tally.
type Index struct {
	ID             string          `json:"id" db:"id"`
	OrgID          string          `json:"org_id" db:"org_id"`
	Type           IndexType       `json:"index_type" db:"index_type"`
	PhysicalName   string          `json:"physical_name" db:"physical_name"`
	AliasName      string          `json:"alias_name" db:"alias_name"`
	Mapping        json.RawMessage `json:"mapping,omitempty" db:"mapping"`
	Config         json.RawMessage `json:"config,omitempty" db:"config"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	IsRealtimeSync bool            `json:"is_realtime_sync" db:"is_realtime_sync"`
	DocumentCount  int64           `json:"document_count" db:"document_count"`
	LastSyncedAt   *time.Time      `json:"last_synced_at,omitempty" db:"last_synced_at"`
	SyncStats      SyncStats       `json:"sync_stats" db:"-"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// AliasFor returns the stable logical name readers query for an org and type
func AliasFor(orgID string, t IndexType) string {
	return fmt.Sprintf("search_%s_%s", orgID, t)
}

// NewPhysicalName generates a unique physical index name for an org and type
func NewPhysicalName(orgID string, t IndexType, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", t, orgID, now.UnixNano())
}
