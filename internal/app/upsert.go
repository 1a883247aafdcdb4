package app

import (
	"context"
	"fmt"

	"review_sync/internal/domain"
	"review_sync/internal/fingerprint"
)

type UpsertCounts struct {
	Total    int // records received, duplicates included
	Inserted int
	Updated  int
}

// Upserter merges fingerprinted reviews into the store keyed by (tenant, provider, fingerprint).
type Upserter struct {
	store domain.ReviewStore
	gen   *fingerprint.Generator
}

func NewUpserter(store domain.ReviewStore, gen *fingerprint.Generator) *Upserter {
	return &Upserter{store: store, gen: gen}
}

// Upsert writes pages in order, one store batch per page. Existence is read once for the
// whole location before any write, since the upsert itself cannot tell inserts from updates.
// A fingerprint repeated within the input is written once, with its last content.
// On a write error the counts cover the pages written before it.
func (u *Upserter) Upsert(ctx context.Context, tenantID string, loc domain.Location, p domain.Provider, pages [][]domain.RawReview) (UpsertCounts, error) {
	var counts UpsertCounts

	batches := make([][]domain.Review, len(pages))
	where := map[string][2]int{} // fingerprint -> (page, index) of its last occurrence
	ordinal := 0
	for pi, page := range pages {
		counts.Total += len(page)
		for _, raw := range page {
			fp := u.gen.Fingerprint(loc.ProviderLocationID, raw, ordinal)
			ordinal++
			rv := domain.Review{
				TenantID:    tenantID,
				LocationID:  loc.ID,
				Provider:    p,
				Fingerprint: fp,
				Rating:      raw.Rating,
				Author:      ptrStr(raw.Author),
				Body:        ptrStr(raw.Body),
				ReviewedAt:  raw.ReviewedAt,
				Lang:        ptrStr(raw.Lang),
				RawJSON:     raw.RawJSON,
			}
			if prev, dup := where[fp]; dup {
				batches[prev[0]][prev[1]].Fingerprint = "" // superseded
			}
			where[fp] = [2]int{pi, len(batches[pi])}
			batches[pi] = append(batches[pi], rv)
		}
	}
	if len(where) == 0 {
		return counts, nil
	}

	fps := make([]string, 0, len(where))
	for fp := range where {
		fps = append(fps, fp)
	}
	existing, err := u.store.ExistingFingerprints(ctx, tenantID, p, fps)
	if err != nil {
		return counts, fmt.Errorf("check existing fingerprints: %w", err)
	}

	for pi, batch := range batches {
		rows := batch[:0:0]
		for _, rv := range batch {
			if rv.Fingerprint != "" {
				rows = append(rows, rv)
			}
		}
		if len(rows) == 0 {
			continue
		}
		if err := u.store.UpsertReviews(ctx, rows); err != nil {
			return counts, fmt.Errorf("upsert page %d: %w", pi+1, err)
		}
		for _, rv := range rows {
			if _, ok := existing[rv.Fingerprint]; ok {
				counts.Updated++
			} else {
				counts.Inserted++
			}
		}
	}
	return counts, nil
}
