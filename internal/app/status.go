package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"review_sync/internal/domain"
)

// StatusRecorder writes the per-location snapshot. Failures are logged, never returned,
// so bookkeeping cannot mask the ingestion result.
type StatusRecorder struct {
	store domain.SyncStatusStore
}

func NewStatusRecorder(store domain.SyncStatusStore) *StatusRecorder {
	return &StatusRecorder{store: store}
}

func (r *StatusRecorder) Record(ctx context.Context, st domain.SyncStatus) {
	if r == nil || r.store == nil {
		return
	}
	// the run may have been cancelled; the snapshot should still land
	ctx = context.WithoutCancel(ctx)
	if err := r.store.UpsertSyncStatus(ctx, st); err != nil {
		log.Warn().Err(err).
			Str("tenant", st.TenantID).
			Int64("location", st.LocationID).
			Str("provider", string(st.Provider)).
			Msg("sync status write failed")
	}
}
