package worker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/metrics"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis

	// requeueBackoff keeps a dead database from being hammered.
	requeueBackoff  = 2 * time.Second
	redisErrBackoff = 3 * time.Second
	shutdownTimeout = 5 * time.Second
)

// requeue pushes raw items back onto queue in one pipeline.
func requeue(ctx context.Context, rdb *redis.Client, log zerolog.Logger, queue string, items [][]byte) {
	if len(items) == 0 {
		return
	}
	pipe := rdb.Pipeline()
	for _, raw := range items {
		pipe.RPush(ctx, queue, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	metrics.QueueRequeues.WithLabelValues(queue).Add(float64(len(items)))
	log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
}

// pop waits up to PollTimeout for one item. ok is false on timeout, on
// shutdown and on Redis errors (after a backoff).
func pop(ctx context.Context, rdb *redis.Client, log zerolog.Logger, queue string) (raw []byte, ok bool) {
	result, err := rdb.BLPop(ctx, PollTimeout, queue).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return nil, false
		}
		log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
		sleepCtx(ctx, redisErrBackoff)
		return nil, false
	}
	if len(result) < 2 {
		return nil, false
	}
	return []byte(result[1]), true
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
