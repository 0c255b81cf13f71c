package main

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"property_reviews/internal/adapters/observability"
	redisad "property_reviews/internal/adapters/redis"
	"property_reviews/internal/app"
	"property_reviews/internal/domain"
	"property_reviews/internal/shared"
	mysqlrepo "property_reviews/internal/storage/mysql"
)

// rematerializer recomputes every property's top-5 cache from the published
// reviews. Run it after restoring a backup or changing the snapshot format.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Int("workers", cfg.RematWorkers).
		Int("rps", cfg.RematRPS).
		Msg("rematerializer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	db.SetMaxOpenConns(cfg.RematWorkers + 1)
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	}
	// the fraud gate is unused here; only Rematerialize is called
	mod := app.NewModerationService(repo, app.NewFraudGate(app.DefaultFraudPolicy()), cache, cfg.CacheTTL)

	ids, err := repo.ListPropertyIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list properties failed")
	}

	failed := run(ctx, mod, ids, cfg.RematWorkers, cfg.RematRPS)
	log.Info().Int("properties", len(ids)).Int64("failed", failed).Msg("rematerialization completed")
	if failed > 0 {
		log.Fatal().Msg("some properties failed to rematerialize")
	}
}

type rematerializer interface {
	Rematerialize(ctx context.Context, propertyID string) error
}

// run fans out over ids with at most workers in flight and at most rps
// starts per second. It returns the number of failures.
func run(ctx context.Context, m rematerializer, ids []string, workers, rps int) int64 {
	if workers <= 0 {
		workers = 1
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), rps)
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var failed atomic.Int64

	for _, id := range ids {
		if err := lim.Wait(ctx); err != nil {
			log.Error().Err(err).Msg("rate limiter wait failed")
			break
		}
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			break
		}

		wg.Add(1)
		go func(propertyID string) {
			defer wg.Done()
			defer sem.Release(1)

			if err := m.Rematerialize(ctx, propertyID); err != nil {
				failed.Add(1)
				log.Warn().Str("property_id", propertyID).Err(err).Msg("rematerialize failed")
				return
			}
			log.Debug().Str("property_id", propertyID).Msg("rematerialize ok")
		}(id)
	}

	wg.Wait()
	return failed.Load()
}
