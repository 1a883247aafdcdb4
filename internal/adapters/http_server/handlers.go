// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_sync/internal/app"
	"review_sync/internal/domain"
)

// TenantHeader is set by the fronting identity layer.
const TenantHeader = "X-Tenant-ID"

type Syncer interface {
	Sync(ctx context.Context, req app.SyncRequest) domain.SyncResult
}

type Reader interface {
	ListReviews(ctx context.Context, tenantID string, locationID int64, pg domain.PageQuery) (domain.ReviewsPage, error)
	ListSyncStatus(ctx context.Context, tenantID string) ([]domain.SyncStatus, error)
}

type Handlers struct {
	Sync            Syncer
	Q               Reader
	DefaultProvider domain.Provider
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/sync", h.triggerSync)
	s.mux.Get("/v1/sync/status", h.listSyncStatus)
	s.mux.Get("/v1/locations/{locationID}/reviews", h.listReviews)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func tenantOf(w http.ResponseWriter, r *http.Request) (string, bool) {
	t := strings.TrimSpace(r.Header.Get(TenantHeader))
	if t == "" {
		writeProblem(w, http.StatusUnauthorized, "Missing tenant", TenantHeader+" header is required")
		return "", false
	}
	return t, true
}

type syncBody struct {
	LocationID string `json:"location_id"`
	Provider   string `json:"provider"`
	Scope      string `json:"scope"`
	PageSize   int    `json:"page_size"`
	MaxPages   int    `json:"max_pages"`
}

func (h *Handlers) triggerSync(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}

	var in syncBody
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}

	p := domain.Provider(strings.TrimSpace(in.Provider))
	if p == "" {
		p = h.DefaultProvider
	}
	if !p.Valid() {
		writeProblem(w, http.StatusBadRequest, "Invalid provider", "provider must be provider_a or provider_b")
		return
	}
	scope := domain.Scope(strings.TrimSpace(in.Scope))
	switch scope {
	case "":
		scope = domain.ScopeSingle
	case domain.ScopeSingle, domain.ScopeMulti:
	default:
		writeProblem(w, http.StatusBadRequest, "Invalid scope", "scope must be single or multi")
		return
	}
	if in.PageSize < 0 || in.MaxPages < 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid limits", "page_size and max_pages must not be negative")
		return
	}

	res := h.Sync.Sync(r.Context(), app.SyncRequest{
		TenantID:   tenant,
		Provider:   p,
		Scope:      scope,
		LocationID: strings.TrimSpace(in.LocationID),
		PageSize:   in.PageSize,
		MaxPages:   in.MaxPages,
	})
	writeJSON(w, syncHTTPStatus(res), res)
}

// syncHTTPStatus keeps pending and per-location failures at 200; the body carries ok and code.
func syncHTTPStatus(res domain.SyncResult) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Code {
	case domain.CodeConfiguration:
		return http.StatusUnprocessableEntity
	case domain.CodeNoLocation:
		return http.StatusNotFound
	case domain.CodeStore:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (h *Handlers) listSyncStatus(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	out, err := h.Q.ListSyncStatus(r.Context(), tenant)
	if err != nil {
		log.Error().Err(err).Str("tenant", tenant).Msg("list sync status failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not load sync status")
		return
	}
	if out == nil {
		out = []domain.SyncStatus{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "locationID"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "locationID must be a positive number")
		return
	}

	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	// Newest first; aligns with DB index on (tenant_id, location_id, reviewed_at, id)
	out, err := h.Q.ListReviews(r.Context(), tenant, id, domain.PageQuery{Limit: limit, Sort: "-reviewed_at"})
	if err != nil {
		log.Error().Err(err).Int64("location", id).Msg("list reviews failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "could not load reviews")
		return
	}
	writeCacheable(w, r, out)
}
