package app

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"review_sync/internal/domain"
)

// Listing limits accepted by the read API; review cache keys are evicted for each.
var cachedReviewLimits = []int{50, 100, 200}

const reviewSort = "-reviewed_at"

func reviewCacheKey(tenantID string, locationID int64, limit int, sort string) string {
	return fmt.Sprintf("reviews:%s:%d:%d:%s", tenantID, locationID, limit, sort)
}

func reviewCacheKeys(tenantID string, locationID int64) []string {
	keys := make([]string, 0, len(cachedReviewLimits))
	for _, lim := range cachedReviewLimits {
		keys = append(keys, reviewCacheKey(tenantID, locationID, lim, reviewSort))
	}
	return keys
}

type QueryService struct {
	reviews  domain.ReviewStore
	statuses domain.SyncStatusStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReviewStore, s domain.SyncStatusStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{reviews: r, statuses: s, cache: c, cacheTTL: ttl}
}

func (s *QueryService) ListReviews(ctx context.Context, tenantID string, locationID int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	if pg.Sort == "" {
		pg.Sort = reviewSort
	}
	cacheable := s.cache != nil && slices.Contains(cachedReviewLimits, pg.Limit) && pg.Cursor == nil
	key := reviewCacheKey(tenantID, locationID, pg.Limit, pg.Sort)
	var out domain.ReviewsPage
	if cacheable {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	rs, err := s.reviews.ListReviews(ctx, tenantID, locationID, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the store's backing array
	copyRS := deepCopyReviewsPage(rs)

	// optional size guard
	if cacheable {
		if b, _ := json.Marshal(copyRS); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, copyRS, int(s.cacheTTL.Seconds()))
		}
	}
	return copyRS, nil
}

func (s *QueryService) ListSyncStatus(ctx context.Context, tenantID string) ([]domain.SyncStatus, error) {
	return s.statuses.ListSyncStatus(ctx, tenantID)
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{NextCursor: in.NextCursor}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
