package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"reviewsync/internal/adapters/observability"
	"reviewsync/internal/adapters/outscraper"
	redisad "reviewsync/internal/adapters/redis"
	"reviewsync/internal/app"
	"reviewsync/internal/domain"
	"reviewsync/internal/shared"
	"reviewsync/internal/storage/sqlstore"
)

// deps is everything a subcommand needs; close releases it.
type deps struct {
	cfg    shared.Config
	log    zerolog.Logger
	store  *sqlstore.Store
	poller *app.Poller
	close  func()
}

func setup(ctx context.Context) (*deps, error) {
	cfg, err := shared.Load()
	if err != nil {
		return nil, err
	}
	policy, err := app.ParseSubmitPolicy(cfg.SubmitPolicy)
	if err != nil {
		return nil, err
	}

	log.Logger = observability.NewLogger(cfg.AppEnv)
	logger := log.Logger

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	store, err := sqlstore.Open(ctx, cfg.DriverName(), cfg.DSN(), logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("driver", cfg.DBDriver).Msg("database connection ok")

	client, err := outscraper.New(cfg.OutscraperBase, cfg.OutscraperKey, cfg.OutscraperRPS)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("outscraper client: %w", err)
	}

	// the API cache is optional for ingestion
	var cache domain.Cache
	rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, cache invalidation disabled")
		_ = rc.Close()
	} else {
		cache = rc
	}
	cancel()

	batches := app.NewBatchService(store, cache, logger)
	poller := app.NewPoller(client, batches, app.PollerConfig{
		SubmitAttempts:    cfg.SubmitAttempts,
		PollInterval:      cfg.PollInterval,
		FetchAllRounds:    cfg.FetchAllRounds,
		RecentRounds:      cfg.RecentRounds,
		RecentLimit:       cfg.RecentLimit,
		Language:          cfg.Language,
		OnSubmitExhausted: policy,
	}, logger)

	return &deps{
		cfg:    cfg,
		log:    logger,
		store:  store,
		poller: poller,
		close: func() {
			if cache != nil {
				_ = rc.Close()
			}
			_ = store.Close()
		},
	}, nil
}

// summary is what a run prints: results on success, message on failure.
type summary struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Results any    `json:"results,omitempty"`
}

func printSummary(w io.Writer, results any, err error) {
	s := summary{Status: domain.BatchSuccess, Results: results}
	if err != nil {
		s = summary{Status: domain.BatchError, Message: err.Error()}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(s)
}
