package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"review_sync/internal/adapters/observability"
	"review_sync/internal/app"
	"review_sync/internal/bootstrap"
	"review_sync/internal/domain"
	"review_sync/internal/shared"
)

func main() {
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "review-sync-scheduler", cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	if len(cfg.SchedulerTenants) == 0 {
		log.Fatal().Msg("SCHEDULER_TENANTS is empty")
	}
	p := domain.Provider(cfg.SchedulerProvider)
	if !p.Valid() {
		log.Fatal().Str("provider", cfg.SchedulerProvider).Msg("unknown SCHEDULER_PROVIDER")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := bootstrap.Wire(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring failed")
	}
	defer w.Close()

	log.Info().
		Strs("tenants", cfg.SchedulerTenants).
		Str("provider", string(p)).
		Int("workers", cfg.SchedulerWorkers).
		Dur("interval", cfg.SchedulerInterval).
		Msg("scheduler starting")

	app.NewScheduler(w.Engine, cfg.SchedulerTenants, p, cfg.SchedulerWorkers, cfg.SchedulerInterval).Run(ctx)
	log.Info().Msg("scheduler stopped")
}
