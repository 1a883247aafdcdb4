package domain

import (
	"context"
	"time"
)

type ReviewStore interface {
	// Write paths
	ExistingFingerprints(ctx context.Context, tenantID string, p Provider, fps []string) (map[string]struct{}, error)
	UpsertReviews(ctx context.Context, rs []Review) error

	// Read paths
	ListReviews(ctx context.Context, tenantID string, locationID int64, pg PageQuery) (ReviewsPage, error)
}

type SyncStatusStore interface {
	UpsertSyncStatus(ctx context.Context, s SyncStatus) error
	ListSyncStatus(ctx context.Context, tenantID string) ([]SyncStatus, error)
}

// LocationRegistry is owned by the location management side; the engine only reads
// records and refreshes their denormalized summary fields.
type LocationRegistry interface {
	// Resolve returns ErrNoLocation when nothing matches. An empty providerLocationID
	// selects the most recently updated location of the tenant.
	Resolve(ctx context.Context, tenantID, providerLocationID string) (Location, error)
	List(ctx context.Context, tenantID string) ([]Location, error)
	UpdateSummary(ctx context.Context, tenantID string, locationID int64, s LocationSummary) error
}

// CredentialProvider returns a bearer token valid for upstream calls, or ErrNoCredential.
type CredentialProvider interface {
	AccessToken(ctx context.Context, tenantID string) (string, error)
}

// Page is one upstream response, still in provider shape.
type Page struct {
	Status        int
	Reviews       []map[string]any
	NextPageToken string         // "" when there are no more pages
	Summary       map[string]any // aggregate fields, nil when absent
}

// ReviewSource performs exactly one upstream call per FetchPage.
type ReviewSource interface {
	Provider() Provider
	Paginated() bool
	FetchPage(ctx context.Context, token, providerLocationID, pageToken string, pageSize int) (Page, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker hands out short-lived advisory locks. Acquire returns ErrLocked when held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Read models & queries
type PageQuery struct {
	Limit  int
	Cursor *string
	Sort   string
}

type ReviewsPage struct {
	Items      []Review `json:"items"`
	NextCursor *string  `json:"next_cursor,omitempty"`
}
