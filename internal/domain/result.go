package domain

import "time"

// Error codes carried in SyncResult.Code and SyncError.Code.
const (
	CodeQuotaPending   = "quota_pending"
	CodeAccessPending  = "access_pending"
	CodeNotFound       = "not_found"
	CodeUpstream       = "upstream_error"
	CodeTransport      = "transport"
	CodeStore          = "store"
	CodeSummaryUpdate  = "summary_update"
	CodeSyncInProgress = "sync_in_progress"
	CodeConfiguration  = "configuration"
	CodeNoLocation     = "no_location"
)

// PendingMessage is shown for quota/access-pending runs.
const PendingMessage = "Connected. Reviews will appear once the provider finishes approving access."

type SyncError struct {
	LocationID string `json:"location_id"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

type LocationResult struct {
	LocationID string `json:"location_id"`
	BusinessID int64  `json:"business_id"`
	Outcome    string `json:"outcome"` // success|skipped|failed
	Fetched    int    `json:"fetched"`
	Inserted   int    `json:"inserted"`
	Updated    int    `json:"updated"`
}

// SyncResult is the aggregated response of one sync run.
type SyncResult struct {
	OK         bool             `json:"ok"`
	RunID      string           `json:"run_id"`
	Provider   Provider         `json:"provider"`
	BusinessID int64            `json:"business_id,omitempty"`
	LocationID string           `json:"location_id,omitempty"`
	Fetched    int              `json:"fetched"`
	Inserted   int              `json:"inserted"`
	Updated    int              `json:"updated"`
	Errors     []SyncError      `json:"errors"`
	Locations  []LocationResult `json:"locations"`
	Code       string           `json:"code,omitempty"`
	Message    string           `json:"message,omitempty"`
	SyncedAt   time.Time        `json:"synced_at"`
}
