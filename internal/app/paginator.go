package app

import (
	"context"

	"review_sync/internal/domain"
)

// HardMaxPages bounds a single location's paging regardless of configuration.
const HardMaxPages = 50

// fetched is everything the paginator collected for one location.
type fetched struct {
	pages   [][]map[string]any // provider order
	summary map[string]any     // first summary seen
	calls   int
	err     error // error that stopped paging; pages before it are kept
}

func (f fetched) count() int {
	n := 0
	for _, p := range f.pages {
		n += len(p)
	}
	return n
}

// paginate drives src until it reports no next page, a fetch fails, or maxPages calls
// were made. Sampled sources get exactly one call.
func paginate(ctx context.Context, src domain.ReviewSource, token, locationRef string, pageSize, maxPages int) fetched {
	if maxPages <= 0 || maxPages > HardMaxPages {
		maxPages = HardMaxPages
	}
	if !src.Paginated() {
		maxPages = 1
	}

	var out fetched
	pageToken := ""
	for out.calls < maxPages {
		page, err := src.FetchPage(ctx, token, locationRef, pageToken, pageSize)
		out.calls++
		if err != nil {
			out.err = err
			return out
		}
		if out.summary == nil && len(page.Summary) > 0 {
			out.summary = page.Summary
		}
		out.pages = append(out.pages, page.Reviews)
		if page.NextPageToken == "" || !src.Paginated() {
			return out
		}
		pageToken = page.NextPageToken
	}
	return out
}
