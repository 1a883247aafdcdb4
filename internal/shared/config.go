package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	ProviderABase   string
	ProviderBBase   string
	DefaultProvider string
	ProviderRPS     int
	StaticToken     string
	FetchTimeout    time.Duration
	RequestTimeout  time.Duration

	DefaultPageSize   int
	MaxPages          int
	LockTTL           time.Duration
	FingerprintPolicy string
	CacheTTL          time.Duration

	SchedulerTenants  []string
	SchedulerInterval time.Duration
	SchedulerWorkers  int
	SchedulerProvider string
}

// hardMaxPages mirrors the paginator ceiling.
const hardMaxPages = 50

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
		}
		return def
	}
	secs := func(k string, def int) time.Duration { return time.Duration(atoi(k, def)) * time.Second }

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		ProviderABase:   env("PROVIDER_A_BASE_URL", "https://provider-a.example.com/api"),
		ProviderBBase:   env("PROVIDER_B_BASE_URL", "https://provider-b.example.com/v1/locations"),
		DefaultProvider: env("DEFAULT_PROVIDER", "provider_b"),
		ProviderRPS:     atoi("PROVIDER_RPS", 5),
		StaticToken:     env("PROVIDER_STATIC_TOKEN", ""),
		FetchTimeout:    secs("FETCH_TIMEOUT_SECONDS", 8),
		RequestTimeout:  secs("HTTP_REQUEST_TIMEOUT_SECONDS", 120),

		DefaultPageSize:   atoi("SYNC_DEFAULT_PAGE_SIZE", 50),
		MaxPages:          atoi("SYNC_MAX_PAGES", 10),
		LockTTL:           secs("SYNC_LOCK_TTL_SECONDS", 120),
		FingerprintPolicy: env("FINGERPRINT_POLICY", "content"),
		CacheTTL:          secs("CACHE_TTL_SECONDS", 900),

		SchedulerTenants:  splitList(os.Getenv("SCHEDULER_TENANTS")),
		SchedulerInterval: secs("SCHEDULER_INTERVAL_SECONDS", 3600),
		SchedulerWorkers:  atoi("SCHEDULER_WORKERS", 4),
		SchedulerProvider: env("SCHEDULER_PROVIDER", "provider_b"),
	}
	if c.MaxPages > hardMaxPages {
		log.Warn().Int("requested", c.MaxPages).Int("cap", hardMaxPages).Msg("SYNC_MAX_PAGES clamped")
		c.MaxPages = hardMaxPages
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.SchedulerWorkers <= 0 {
		c.SchedulerWorkers = 1
	}
	if c.StaticToken != "" && c.AppEnv == "prod" {
		log.Warn().Msg("PROVIDER_STATIC_TOKEN is set in prod; tenants without a stored token will share it")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
