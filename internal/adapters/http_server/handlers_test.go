package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"review_sync/internal/app"
	"review_sync/internal/domain"
)

type fakeSyncer struct {
	got app.SyncRequest
	res domain.SyncResult
}

func (f *fakeSyncer) Sync(_ context.Context, req app.SyncRequest) domain.SyncResult {
	f.got = req
	return f.res
}

type fakeReader struct {
	page     domain.ReviewsPage
	statuses []domain.SyncStatus
	err      error
	gotLimit int
}

func (f *fakeReader) ListReviews(_ context.Context, _ string, _ int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	f.gotLimit = pg.Limit
	return f.page, f.err
}

func (f *fakeReader) ListSyncStatus(context.Context, string) ([]domain.SyncStatus, error) {
	return f.statuses, f.err
}

func newTestServer(s *fakeSyncer, q *fakeReader) http.Handler {
	srv := New(0)
	srv.MountHandlers(&Handlers{Sync: s, Q: q, DefaultProvider: domain.ProviderB})
	return srv.Mux()
}

func do(t *testing.T, h http.Handler, method, path, tenant, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTriggerSync_PassesRequestThrough(t *testing.T) {
	s := &fakeSyncer{res: domain.SyncResult{OK: true, Fetched: 3, Inserted: 3, Errors: []domain.SyncError{}}}
	h := newTestServer(s, &fakeReader{})

	rr := do(t, h, http.MethodPost, "/v1/sync", "t1",
		`{"location_id":" loc-1 ","provider":"provider_a","scope":"multi","page_size":20,"max_pages":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	want := app.SyncRequest{TenantID: "t1", Provider: domain.ProviderA, Scope: domain.ScopeMulti, LocationID: "loc-1", PageSize: 20, MaxPages: 3}
	if s.got != want {
		t.Fatalf("request = %+v, want %+v", s.got, want)
	}
	var body domain.SyncResult
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Inserted != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestTriggerSync_EmptyBodyUsesDefaults(t *testing.T) {
	s := &fakeSyncer{res: domain.SyncResult{OK: true}}
	h := newTestServer(s, &fakeReader{})

	rr := do(t, h, http.MethodPost, "/v1/sync", "t1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if s.got.Provider != domain.ProviderB || s.got.Scope != domain.ScopeSingle || s.got.LocationID != "" {
		t.Fatalf("defaults not applied: %+v", s.got)
	}
}

func TestTriggerSync_PendingIsOK200(t *testing.T) {
	s := &fakeSyncer{res: domain.SyncResult{OK: false, Code: domain.CodeQuotaPending, Message: domain.PendingMessage, Errors: []domain.SyncError{}}}
	h := newTestServer(s, &fakeReader{})

	rr := do(t, h, http.MethodPost, "/v1/sync", "t1", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("pending must answer 200, got %d", rr.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["ok"] != false || body["code"] != "quota_pending" || body["message"] != domain.PendingMessage {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestTriggerSync_InvocationErrorsMapToStatus(t *testing.T) {
	cases := map[string]int{
		domain.CodeConfiguration: http.StatusUnprocessableEntity,
		domain.CodeNoLocation:    http.StatusNotFound,
		domain.CodeStore:         http.StatusInternalServerError,
	}
	for code, want := range cases {
		t.Run(code, func(t *testing.T) {
			s := &fakeSyncer{res: domain.SyncResult{OK: false, Code: code}}
			rr := do(t, newTestServer(s, &fakeReader{}), http.MethodPost, "/v1/sync", "t1", `{}`)
			if rr.Code != want {
				t.Fatalf("code %s -> %d, want %d", code, rr.Code, want)
			}
		})
	}
}

func TestTriggerSync_Validation(t *testing.T) {
	cases := map[string]string{
		"bad json":       `{"provider":`,
		"unknown field":  `{"tenant":"x"}`,
		"bad provider":   `{"provider":"yelp"}`,
		"bad scope":      `{"scope":"all"}`,
		"negative limit": `{"page_size":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s := &fakeSyncer{}
			rr := do(t, newTestServer(s, &fakeReader{}), http.MethodPost, "/v1/sync", "t1", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("content-type %q", ct)
			}
			if s.got.TenantID != "" {
				t.Fatalf("engine must not run on invalid input")
			}
		})
	}
}

func TestTenantHeaderRequired(t *testing.T) {
	h := newTestServer(&fakeSyncer{}, &fakeReader{})
	for _, path := range []string{"/v1/sync/status", "/v1/locations/1/reviews"} {
		if rr := do(t, h, http.MethodGet, path, "", ""); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status %d, want 401", path, rr.Code)
		}
	}
	if rr := do(t, h, http.MethodPost, "/v1/sync", "", "{}"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("sync: status %d, want 401", rr.Code)
	}
}

func TestListReviews_ETag(t *testing.T) {
	author := "Ana"
	q := &fakeReader{page: domain.ReviewsPage{Items: []domain.Review{{ID: 1, Rating: 5, Author: &author}}}}
	h := newTestServer(&fakeSyncer{}, q)

	rr := do(t, h, http.MethodGet, "/v1/locations/7/reviews?limit=100", "t1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if q.gotLimit != 100 {
		t.Fatalf("limit = %d", q.gotLimit)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	rr = do(t, h, http.MethodGet, "/v1/locations/7/reviews?limit=100", "t1", "", "If-None-Match", etag)
	if rr.Code != http.StatusNotModified {
		t.Fatalf("status %d, want 304", rr.Code)
	}
}

func TestListReviews_BadInput(t *testing.T) {
	h := newTestServer(&fakeSyncer{}, &fakeReader{})
	for _, path := range []string{"/v1/locations/abc/reviews", "/v1/locations/7/reviews?limit=0", "/v1/locations/7/reviews?limit=500"} {
		if rr := do(t, h, http.MethodGet, path, "t1", ""); rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400", path, rr.Code)
		}
	}
}

func TestListSyncStatus(t *testing.T) {
	q := &fakeReader{statuses: []domain.SyncStatus{{TenantID: "t1", LocationID: 7, Provider: domain.ProviderB, Outcome: domain.OutcomeSuccess}}}
	rr := do(t, newTestServer(&fakeSyncer{}, q), http.MethodGet, "/v1/sync/status", "t1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil || len(out) != 1 || out[0]["outcome"] != "success" {
		t.Fatalf("unexpected body %s (%v)", rr.Body.String(), err)
	}

	q.err = errors.New("db down")
	rr = do(t, newTestServer(&fakeSyncer{}, q), http.MethodGet, "/v1/sync/status", "t1", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	rr := do(t, newTestServer(&fakeSyncer{}, &fakeReader{}), http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}
