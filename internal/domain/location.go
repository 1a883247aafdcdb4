package domain

// Location is the registry record that owns incoming reviews.
type Location struct {
	ID                 int64 // internal business/location record id
	TenantID           string
	ProviderLocationID string
	DisplayName        *string
	Rating             *float64
	RatingCount        *int64
}

// LocationSummary carries the aggregate fields a provider may report for a location.
type LocationSummary struct {
	DisplayName *string
	Rating      *float64
	RatingCount *int64
}

func (s LocationSummary) Empty() bool {
	return s.DisplayName == nil && s.Rating == nil && s.RatingCount == nil
}

// Scope selects which locations a run covers.
type Scope string

const (
	ScopeSingle Scope = "single"
	ScopeMulti  Scope = "multi"
)
