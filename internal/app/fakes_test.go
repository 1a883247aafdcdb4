package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"review_sync/internal/domain"
)

// ---- store fake: enforces (tenant, provider, fingerprint) uniqueness ----

type memStore struct {
	mu         sync.Mutex
	rows       map[string]domain.Review
	statuses   map[string]domain.SyncStatus
	failUpsert error
	failStatus error
	upserts    int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]domain.Review{}, statuses: map[string]domain.SyncStatus{}}
}

func reviewKey(tenant string, p domain.Provider, fp string) string {
	return tenant + "|" + string(p) + "|" + fp
}

func (m *memStore) ExistingFingerprints(ctx context.Context, tenantID string, p domain.Provider, fps []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for _, fp := range fps {
		if _, ok := m.rows[reviewKey(tenantID, p, fp)]; ok {
			out[fp] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsert != nil {
		return m.failUpsert
	}
	m.upserts++
	for _, r := range rs {
		m.rows[reviewKey(r.TenantID, r.Provider, r.Fingerprint)] = r
	}
	return nil
}

func (m *memStore) ListReviews(ctx context.Context, tenantID string, locationID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out domain.ReviewsPage
	for _, r := range m.rows {
		if r.TenantID == tenantID && r.LocationID == locationID {
			out.Items = append(out.Items, r)
		}
	}
	return out, nil
}

func (m *memStore) UpsertSyncStatus(ctx context.Context, s domain.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failStatus != nil {
		return m.failStatus
	}
	m.statuses[fmt.Sprintf("%s|%d|%s", s.TenantID, s.LocationID, s.Provider)] = s
	return nil
}

func (m *memStore) ListSyncStatus(ctx context.Context, tenantID string) ([]domain.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SyncStatus
	for _, s := range m.statuses {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) status(tenant string, loc int64, p domain.Provider) (domain.SyncStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[fmt.Sprintf("%s|%d|%s", tenant, loc, p)]
	return s, ok
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// ---- location registry fake ----

type fakeRegistry struct {
	locs        []domain.Location
	summaries   map[int64]domain.LocationSummary
	failSummary error
}

func (f *fakeRegistry) Resolve(ctx context.Context, tenantID, providerLocationID string) (domain.Location, error) {
	for i := len(f.locs) - 1; i >= 0; i-- { // last entry is the most recent
		l := f.locs[i]
		if l.TenantID != tenantID {
			continue
		}
		if providerLocationID == "" || l.ProviderLocationID == providerLocationID {
			return l, nil
		}
	}
	return domain.Location{}, domain.ErrNoLocation
}

func (f *fakeRegistry) List(ctx context.Context, tenantID string) ([]domain.Location, error) {
	var out []domain.Location
	for _, l := range f.locs {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRegistry) UpdateSummary(ctx context.Context, tenantID string, locationID int64, s domain.LocationSummary) error {
	if f.failSummary != nil {
		return f.failSummary
	}
	if f.summaries == nil {
		f.summaries = map[int64]domain.LocationSummary{}
	}
	f.summaries[locationID] = s
	return nil
}

// ---- credentials ----

type staticCreds struct{ token string }

func (c staticCreds) AccessToken(ctx context.Context, tenantID string) (string, error) {
	if c.token == "" {
		return "", domain.ErrNoCredential
	}
	return c.token, nil
}

// ---- review source fake ----

type fakeSource struct {
	provider  domain.Provider
	paginated bool
	respond   func(locationRef, pageToken string) (domain.Page, error)

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeSource) Provider() domain.Provider { return f.provider }
func (f *fakeSource) Paginated() bool           { return f.paginated }

func (f *fakeSource) FetchPage(ctx context.Context, token, locationRef, pageToken string, pageSize int) (domain.Page, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[locationRef]++
	f.mu.Unlock()
	return f.respond(locationRef, pageToken)
}

func (f *fakeSource) callsFor(loc string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[loc]
}

// ---- locker fake ----

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLocked
	}
	if l.held == nil {
		l.held = map[string]bool{}
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

// ---- cache fake ----

type fakeCache struct {
	store   map[string]any
	deleted []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.ReviewsPage:
		*d = v.(domain.ReviewsPage)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	delete(c.store, key)
	return nil
}

var errBoom = errors.New("boom")

func ptr[T any](v T) *T { return &v }
