package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// RedisStore keeps checkpoints as JSON strings in Redis.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl keeps records until cleared.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, cp *model.Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	key := config.CacheKey.SessionCheckpointKey(sessionID)
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*model.Checkpoint, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionCheckpointKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return decode(raw)
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, config.CacheKey.SessionCheckpointKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
