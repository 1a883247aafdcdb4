package domain

import (
	"encoding/json"
	"time"
)

// Provider names one of the upstream review surfaces.
type Provider string

const (
	ProviderA Provider = "provider_a" // single-shot sampled details
	ProviderB Provider = "provider_b" // paginated full history
)

func (p Provider) Valid() bool { return p == ProviderA || p == ProviderB }

// MaxFingerprintLen is the storage limit of reviews.fingerprint in bytes.
const MaxFingerprintLen = 255

// Review is one normalized guest review. (TenantID, Provider, Fingerprint) is unique.
type Review struct {
	ID          int64           `json:"id"`
	TenantID    string          `json:"tenant_id"`
	LocationID  int64           `json:"location_id"` // internal business/location record
	Provider    Provider        `json:"provider"`
	Fingerprint string          `json:"fingerprint"`
	Rating      int             `json:"rating"` // 1..5, 0 when unparseable
	Author      *string         `json:"author,omitempty"`
	Body        *string         `json:"body,omitempty"`
	ReviewedAt  *time.Time      `json:"reviewed_at,omitempty"` // UTC
	Lang        *string         `json:"lang,omitempty"`
	RawJSON     json.RawMessage `json:"raw,omitempty"`
}

// RawReview is a provider record after field extraction but before fingerprinting.
type RawReview struct {
	Author     string
	Rating     int
	Body       string
	ReviewedAt *time.Time
	Lang       string
	RawJSON    json.RawMessage
}

type SyncOutcome string

const (
	OutcomeSuccess SyncOutcome = "success"
	OutcomeError   SyncOutcome = "error"
)

// SyncStatus is the snapshot of the most recent run for (tenant, location, provider).
type SyncStatus struct {
	TenantID   string      `json:"tenant_id"`
	LocationID int64       `json:"location_id"`
	Provider   Provider    `json:"provider"`
	LastRunAt  time.Time   `json:"last_run_at"`
	Outcome    SyncOutcome `json:"outcome"`
	ErrorCode  *string     `json:"error_code,omitempty"`
	LastError  *string     `json:"last_error,omitempty"`
	Fetched    int         `json:"fetched"`
	Inserted   int         `json:"inserted"`
	Updated    int         `json:"updated"`
}
