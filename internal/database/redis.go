package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
)

// NewRedisClient creates and validates the client shared by checkpoints,
// the test cache and the persistence queues.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	// Each persistence worker parks a connection in BLPOP; the rest of the
	// pool serves checkpoints, publishes and the test cache.
	if opt.PoolSize != 0 && opt.PoolSize < 2*persistenceWorkers {
		opt.PoolSize = 2 * persistenceWorkers
	}
	opt.MinIdleConns = max(opt.MinIdleConns, persistenceWorkers)

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Int("pool_size", opt.PoolSize).
		Int("min_idle_conns", opt.MinIdleConns).
		Msg("Redis connected")

	return rdb, nil
}
