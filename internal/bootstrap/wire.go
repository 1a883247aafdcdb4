// Package bootstrap builds the engine and its adapters from Config; shared by cmd/api and cmd/scheduler.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"review_sync/internal/adapters/provider"
	redisad "review_sync/internal/adapters/redis"
	"review_sync/internal/app"
	"review_sync/internal/domain"
	"review_sync/internal/fingerprint"
	"review_sync/internal/shared"
	mysqlrepo "review_sync/internal/storage/mysql"
)

type Wiring struct {
	DB     *sql.DB
	Redis  *redis.Client
	Repo   *mysqlrepo.Repo
	Cache  *redisad.Cache
	Engine *app.Engine
}

func (w *Wiring) Close() {
	if w.Redis != nil {
		_ = w.Redis.Close()
	}
	if w.DB != nil {
		_ = w.DB.Close()
	}
}

func Wire(ctx context.Context, cfg shared.Config) (*Wiring, error) {
	policy, err := fingerprint.ParsePolicy(cfg.FingerprintPolicy)
	if err != nil {
		return nil, err
	}

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	log.Info().Msg("database connection ok")

	rc := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := rc.Ping(pingCtx).Err(); err != nil {
		// cache and lock degrade; tokens fall back to the static token if any
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
	}

	w := &Wiring{DB: db, Redis: rc, Repo: mysqlrepo.New(db), Cache: redisad.NewCache(rc)}

	opts := provider.Options{RPS: cfg.ProviderRPS, Timeout: cfg.FetchTimeout}
	a, err := provider.New(domain.ProviderA, cfg.ProviderABase, opts)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("provider_a client: %w", err)
	}
	b, err := provider.New(domain.ProviderB, cfg.ProviderBBase, opts)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("provider_b client: %w", err)
	}

	eng, err := app.NewEngine(app.EngineConfig{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPages:        cfg.MaxPages,
		LockTTL:         cfg.LockTTL,
	}, app.Deps{
		Sources:     []domain.ReviewSource{a, b},
		Locations:   w.Repo,
		Credentials: redisad.NewTokenStore(rc, cfg.StaticToken),
		Upserter:    app.NewUpserter(w.Repo, fingerprint.New(policy)),
		Status:      app.NewStatusRecorder(w.Repo),
		Locker:      redisad.NewLocker(rc),
		Cache:       w.Cache,
	})
	if err != nil {
		w.Close()
		return nil, err
	}
	w.Engine = eng
	log.Info().Str("fingerprint_policy", string(policy)).Int("max_pages", cfg.MaxPages).Msg("sync engine ready")
	return w, nil
}
