package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/classify"
	"review_sync/internal/domain"
)

type EngineConfig struct {
	DefaultPageSize int
	MaxPageSize     int           // provider ceiling
	MaxPages        int           // cap for one location; clamped to HardMaxPages
	LockTTL         time.Duration // 0 disables locking even when a Locker is wired
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 50
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		c.DefaultPageSize = c.MaxPageSize
	}
	if c.MaxPages <= 0 || c.MaxPages > HardMaxPages {
		c.MaxPages = 10
	}
	return c
}

type Deps struct {
	Sources     []domain.ReviewSource
	Locations   domain.LocationRegistry
	Credentials domain.CredentialProvider
	Upserter    *Upserter
	Status      *StatusRecorder
	Locker      domain.Locker // optional
	Cache       domain.Cache  // optional; review listings are evicted after writes
}

type SyncRequest struct {
	TenantID   string
	Provider   domain.Provider
	Scope      domain.Scope
	LocationID string // provider location id; empty selects the tenant's most recent location
	PageSize   int
	MaxPages   int
}

// Engine runs sync invocations. Locations within one run are processed sequentially.
type Engine struct {
	sources   map[domain.Provider]domain.ReviewSource
	locations domain.LocationRegistry
	creds     domain.CredentialProvider
	upserter  *Upserter
	status    *StatusRecorder
	locker    domain.Locker
	cache     domain.Cache
	cfg       EngineConfig
	now       func() time.Time
}

func NewEngine(cfg EngineConfig, d Deps) (*Engine, error) {
	if d.Locations == nil || d.Credentials == nil || d.Upserter == nil {
		return nil, errors.New("engine: locations, credentials and upserter are required")
	}
	if len(d.Sources) == 0 {
		return nil, errors.New("engine: at least one review source is required")
	}
	srcs := make(map[domain.Provider]domain.ReviewSource, len(d.Sources))
	for _, s := range d.Sources {
		srcs[s.Provider()] = s
	}
	return &Engine{
		sources:   srcs,
		locations: d.Locations,
		creds:     d.Credentials,
		upserter:  d.Upserter,
		status:    d.Status,
		locker:    d.Locker,
		cache:     d.Cache,
		cfg:       cfg.withDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sync executes one run. Invocation-level problems come back as ok=false results, not errors.
func (e *Engine) Sync(ctx context.Context, req SyncRequest) domain.SyncResult {
	res := domain.SyncResult{
		RunID:     uuid.NewString(),
		Provider:  req.Provider,
		Errors:    []domain.SyncError{},
		Locations: []domain.LocationResult{},
		SyncedAt:  e.now(),
	}
	logger := log.With().Str("run_id", res.RunID).Str("tenant", req.TenantID).Str("provider", string(req.Provider)).Logger()

	if req.TenantID == "" {
		return abort(res, domain.CodeConfiguration, "tenant is required")
	}
	src, ok := e.sources[req.Provider]
	if !ok {
		return abort(res, domain.CodeConfiguration, fmt.Sprintf("provider %q is not configured", req.Provider))
	}
	token, err := e.creds.AccessToken(ctx, req.TenantID)
	if err != nil || token == "" {
		if err == nil {
			err = domain.ErrNoCredential
		}
		logger.Warn().Err(err).Msg("no upstream credential")
		return abort(res, domain.CodeConfiguration, err.Error())
	}

	locs, err := e.targets(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrNoLocation) {
			return abort(res, domain.CodeNoLocation, err.Error())
		}
		logger.Error().Err(err).Msg("location lookup failed")
		return abort(res, domain.CodeStore, err.Error())
	}

	pageSize, maxPages := e.limits(req)
	res.OK = true
	for _, loc := range locs {
		lr, serrs, pending := e.syncLocation(ctx, res.RunID, req.TenantID, token, src, loc, pageSize, maxPages)
		res.Locations = append(res.Locations, lr)
		res.Errors = append(res.Errors, serrs...)
		res.Fetched += lr.Fetched
		res.Inserted += lr.Inserted
		res.Updated += lr.Updated
		if pending != "" {
			res.OK = false
			res.Code = string(pending)
			res.Message = domain.PendingMessage
			logger.Info().Str("code", res.Code).Str("location", loc.ProviderLocationID).Msg("provider access pending; ending run")
			break
		}
	}
	if len(locs) == 1 {
		res.BusinessID = locs[0].ID
		res.LocationID = locs[0].ProviderLocationID
	}
	res.SyncedAt = e.now()
	logger.Info().
		Bool("ok", res.OK).
		Int("locations", len(res.Locations)).
		Int("fetched", res.Fetched).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int("errors", len(res.Errors)).
		Msg("sync run finished")
	return res
}

func abort(res domain.SyncResult, code, msg string) domain.SyncResult {
	res.OK = false
	res.Code = code
	res.Message = msg
	return res
}

func (e *Engine) targets(ctx context.Context, req SyncRequest) ([]domain.Location, error) {
	if req.Scope == domain.ScopeMulti {
		locs, err := e.locations.List(ctx, req.TenantID)
		if err != nil {
			return nil, err
		}
		if len(locs) == 0 {
			return nil, domain.ErrNoLocation
		}
		return locs, nil
	}
	loc, err := e.locations.Resolve(ctx, req.TenantID, req.LocationID)
	if err != nil {
		return nil, err
	}
	return []domain.Location{loc}, nil
}

func (e *Engine) limits(req SyncRequest) (pageSize, maxPages int) {
	pageSize = req.PageSize
	if pageSize <= 0 {
		pageSize = e.cfg.DefaultPageSize
	}
	if pageSize > e.cfg.MaxPageSize {
		pageSize = e.cfg.MaxPageSize
	}
	maxPages = req.MaxPages
	if maxPages <= 0 || maxPages > e.cfg.MaxPages {
		maxPages = e.cfg.MaxPages
	}
	return pageSize, maxPages
}

// syncLocation runs start -> fetching -> {success | skipped | failed} for one location.
// pending is set when the provider reported quota/access pending.
func (e *Engine) syncLocation(ctx context.Context, runID, tenantID, token string, src domain.ReviewSource,
	loc domain.Location, pageSize, maxPages int) (lr domain.LocationResult, errs []domain.SyncError, pending classify.Class) {

	p := src.Provider()
	lr = domain.LocationResult{LocationID: loc.ProviderLocationID, BusinessID: loc.ID, Outcome: "success"}
	logger := log.With().Str("run_id", runID).Str("tenant", tenantID).
		Str("provider", string(p)).Str("location", loc.ProviderLocationID).Logger()

	fail := func(outcome, code, msg string) {
		lr.Outcome = outcome
		errs = append(errs, domain.SyncError{LocationID: loc.ProviderLocationID, Code: code, Message: msg})
	}

	if e.locker != nil && e.cfg.LockTTL > 0 {
		key := fmt.Sprintf("sync:lock:%s:%d:%s", tenantID, loc.ID, p)
		release, err := e.locker.Acquire(ctx, key, e.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLocked):
			// the holder of the lock owns this location's status row
			fail("skipped", domain.CodeSyncInProgress, "another sync of this location is running")
			observability.ObserveSyncLocation(string(p), lr.Outcome, domain.CodeSyncInProgress)
			logger.Info().Msg("location locked by another run; skipped")
			return lr, errs, ""
		case err != nil:
			logger.Warn().Err(err).Msg("advisory lock unavailable; continuing unlocked")
		default:
			defer release()
		}
	}

	got := paginate(ctx, src, token, loc.ProviderLocationID, pageSize, maxPages)
	lr.Fetched = got.count()

	status := domain.SyncStatus{TenantID: tenantID, LocationID: loc.ID, Provider: p, Outcome: domain.OutcomeSuccess}
	var statusCode, statusMsg string

	// write whatever arrived before a failing page
	if lr.Fetched > 0 {
		pages := make([][]domain.RawReview, len(got.pages))
		for i, pg := range got.pages {
			pages[i] = mapRawReviews(pg)
		}
		counts, err := e.upserter.Upsert(ctx, tenantID, loc, p, pages)
		lr.Inserted, lr.Updated = counts.Inserted, counts.Updated
		observability.ObserveWrites(string(p), counts.Inserted, counts.Updated)
		if counts.Inserted+counts.Updated > 0 {
			e.evictReviews(ctx, tenantID, loc.ID)
		}
		if err != nil {
			logger.Error().Err(err).Msg("review upsert failed")
			fail("failed", domain.CodeStore, err.Error())
			statusCode, statusMsg = domain.CodeStore, err.Error()
		}
	}

	if got.err != nil {
		code, outcome, class := e.classifyFetch(got.err)
		switch {
		case class.Pending():
			lr.Outcome = "skipped"
			pending = class
		case outcome == "skipped":
			fail("skipped", code, got.err.Error())
		default:
			fail("failed", code, got.err.Error())
		}
		if statusCode == "" {
			statusCode, statusMsg = code, got.err.Error()
		}
		logger.Warn().Err(got.err).Str("code", code).Int("pages", got.calls).Msg("fetch stopped")
	}

	if statusCode == "" && len(got.summary) > 0 {
		if sum := mapSummary(got.summary); !sum.Empty() {
			if err := e.locations.UpdateSummary(ctx, tenantID, loc.ID, sum); err != nil {
				// best-effort: written reviews stay
				logger.Warn().Err(err).Msg("location summary update failed")
				errs = append(errs, domain.SyncError{LocationID: loc.ProviderLocationID, Code: domain.CodeSummaryUpdate, Message: err.Error()})
			}
		}
	}

	status.LastRunAt = e.now()
	status.Fetched, status.Inserted, status.Updated = lr.Fetched, lr.Inserted, lr.Updated
	if statusCode != "" {
		status.Outcome = domain.OutcomeError
		status.ErrorCode = &statusCode
		status.LastError = &statusMsg
	}
	e.status.Record(ctx, status)

	observability.ObserveSyncLocation(string(p), lr.Outcome, statusCode)
	logger.Info().
		Str("outcome", lr.Outcome).
		Int("fetched", lr.Fetched).
		Int("inserted", lr.Inserted).
		Int("updated", lr.Updated).
		Msg("location synced")
	return lr, errs, pending
}

// classifyFetch maps a fetch error to (code, outcome, class).
func (e *Engine) classifyFetch(err error) (string, string, classify.Class) {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		switch c := classify.Classify(ue.Status, ue.Body); c {
		case classify.QuotaPending:
			return domain.CodeQuotaPending, "skipped", c
		case classify.AccessPending:
			return domain.CodeAccessPending, "skipped", c
		case classify.NotFound:
			return domain.CodeNotFound, "skipped", c
		default:
			return domain.CodeUpstream, "failed", c
		}
	}
	return domain.CodeTransport, "failed", classify.Other
}

func (e *Engine) evictReviews(ctx context.Context, tenantID string, locationID int64) {
	if e.cache == nil {
		return
	}
	for _, key := range reviewCacheKeys(tenantID, locationID) {
		if err := e.cache.Del(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache eviction failed")
		}
	}
}
