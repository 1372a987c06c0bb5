// Package app wires configuration into a running gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliamunaev/facility-gateway/internal/config"
	"github.com/iliamunaev/facility-gateway/internal/facility"
	"github.com/iliamunaev/facility-gateway/internal/journal"
	"github.com/iliamunaev/facility-gateway/internal/metrics"
	"github.com/iliamunaev/facility-gateway/internal/middleware"
	"github.com/iliamunaev/facility-gateway/internal/provider"
	"github.com/iliamunaev/facility-gateway/internal/refdata"
	"github.com/iliamunaev/facility-gateway/internal/service/pool"
	"github.com/iliamunaev/facility-gateway/internal/service/tracker"
	httptransport "github.com/iliamunaev/facility-gateway/internal/transport/http"
)

const redisPingTimeout = 2 * time.Second

// App is the assembled gateway.
type App struct {
	Facilities *facility.Service
	Metrics    *metrics.Metrics
	Handler    http.Handler
	Logger     *slog.Logger

	closers []func() error
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// New builds every component named by cfg. The returned App must be closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Logger: logger, Metrics: metrics.New()}

	tr := &tracker.Tracker{}
	pl := pool.New(cfg.Provider.MaxConcurrency)
	a.Metrics.GaugeFunc("provider_in_flight", "Provider calls currently in flight.",
		func() float64 { return float64(tr.Running()) })
	a.Metrics.GaugeFunc("provider_slots_in_use", "Submission slots currently held.",
		func() float64 { return float64(pl.InUse()) })

	client := provider.New(provider.Config{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		Timeout:   cfg.Provider.Timeout,
		RateLimit: cfg.Provider.RateLimit,
		Burst:     cfg.Provider.Burst,
	}, provider.WithObserver(a.Metrics), provider.WithTracker(tr))

	lookup, err := a.referenceLookup(ctx, cfg, client)
	if err != nil {
		a.Close()
		return nil, err
	}

	j, err := a.journal(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Facilities = facility.New(client, lookup, pl,
		facility.Config{ParentFirst: cfg.Orchestrator.ParentFirst},
		facility.WithJournal(j),
		facility.WithOutcomeObserver(a.Metrics),
		facility.WithLogger(logger),
	)

	h := httptransport.New(a.Facilities, cfg.Server.RequestTimeout, logger)
	a.Handler = httptransport.NewRouter(h, a.Metrics.Handler(), middleware.Logging(logger, a.Metrics))
	return a, nil
}

func (a *App) referenceLookup(ctx context.Context, cfg *config.Config, client *provider.Client) (refdata.Lookup, error) {
	switch cfg.Cache.Backend {
	case "none":
		return client, nil
	case "memory":
		return refdata.NewCached(client, refdata.NewMemoryStore(), cfg.Cache.TTL, a.Logger), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)

		// The cache is optional: an unreachable Redis only costs lookups.
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			a.Logger.WarnContext(ctx, "redis unreachable, reference data will not be cached",
				slog.String("addr", cfg.Redis.Addr), slog.String("error", err.Error()))
		}
		return refdata.NewCached(client, refdata.NewRedisStore(rdb), cfg.Cache.TTL, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func (a *App) journal(ctx context.Context, cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Backend {
	case "memory":
		return journal.NewMemory(), nil
	case "postgres":
		pg, err := journal.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Journal.Backend)
	}
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
