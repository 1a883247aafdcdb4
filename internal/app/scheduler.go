package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"review_sync/internal/domain"
)

type syncer interface {
	Sync(ctx context.Context, req SyncRequest) domain.SyncResult
}

// Scheduler runs multi-scope syncs for a fixed tenant list on an interval.
// Tenants run in parallel up to Workers; locations within a tenant stay sequential.
type Scheduler struct {
	engine   syncer
	tenants  []string
	provider domain.Provider
	workers  int64
	interval time.Duration
}

func NewScheduler(engine syncer, tenants []string, p domain.Provider, workers int, interval time.Duration) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{engine: engine, tenants: tenants, provider: p, workers: int64(workers), interval: interval}
}

// Run performs a round immediately and then one per interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RunOnce syncs every tenant once and returns the results keyed by tenant.
func (s *Scheduler) RunOnce(ctx context.Context) map[string]domain.SyncResult {
	sem := semaphore.NewWeighted(s.workers)
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make(map[string]domain.SyncResult, len(s.tenants))
	)
	for _, tenant := range s.tenants {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("scheduler round cancelled")
			break
		}
		wg.Add(1)
		go func(tenant string) {
			defer wg.Done()
			defer sem.Release(1)

			res := s.engine.Sync(ctx, SyncRequest{TenantID: tenant, Provider: s.provider, Scope: domain.ScopeMulti})
			mu.Lock()
			out[tenant] = res
			mu.Unlock()

			ev := log.Info()
			if !res.OK {
				ev = log.Warn()
			}
			ev.Str("tenant", tenant).
				Str("run_id", res.RunID).
				Str("code", res.Code).
				Int("inserted", res.Inserted).
				Int("updated", res.Updated).
				Int("errors", len(res.Errors)).
				Msg("scheduled sync done")
		}(tenant)
	}
	wg.Wait()
	return out
}
