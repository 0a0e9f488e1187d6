package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Domain Errors
var (
	ErrTestNotFound = errors.New("test not found")
	ErrInvalidTest  = errors.New("invalid test definition")
)

// TestRepository is the durable source of test definitions.
type TestRepository interface {
	GetByID(ctx context.Context, id string) (*model.Test, error)
	Upsert(ctx context.Context, t *model.Test) error
	ListAll(ctx context.Context) ([]model.Test, error)
}

// TestService serves test definitions from Redis, falling back to PostgreSQL
// and re-warming the cache on a miss.
type TestService struct {
	repo TestRepository
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewTestService creates a new TestService. rdb may be nil, in which case
// every read goes to the repository.
func NewTestService(repo TestRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *TestService {
	return &TestService{
		repo: repo,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "test_service").Logger(),
	}
}

// GetTest returns the definition for testID.
func (s *TestService) GetTest(ctx context.Context, testID string) (*model.Test, error) {
	if t, ok := s.cached(ctx, testID); ok {
		return t, nil
	}

	t, err := s.repo.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	// Self-heal the cache; a failed write only costs the next reader a query.
	if err := s.WarmTestCache(ctx, t); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Failed to re-warm test cache")
	}
	return t, nil
}

// Upsert validates and stores a definition, then refreshes its cache entry.
func (s *TestService) Upsert(ctx context.Context, t *model.Test) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTest, err)
	}
	if err := s.repo.Upsert(ctx, t); err != nil {
		return fmt.Errorf("upsert test: %w", err)
	}
	if err := s.WarmTestCache(ctx, t); err != nil {
		return err
	}

	s.log.Info().
		Str("test_id", t.ID).
		Int("questions", len(t.AllQuestions())).
		Int("coding_questions", len(t.CodingQuestions)).
		Msg("Test definition stored")
	return nil
}

// WarmTestCache writes a definition into Redis.
func (s *TestService) WarmTestCache(ctx context.Context, t *model.Test) error {
	if s.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal test: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.TestPayloadKey(t.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().Str("test_id", t.ID).Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every stored test into Redis on application startup.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No tests to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(tests)).Msg("Prewarming tests...")

	warmed := 0
	for i := range tests {
		if err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

func (s *TestService) cached(ctx context.Context, testID string) (*model.Test, bool) {
	if s.rdb == nil {
		return nil, false
	}
	data, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(testID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("test_id", testID).Msg("Test cache read failed")
		}
		return nil, false
	}

	t := &model.Test{}
	if err := json.Unmarshal(data, t); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Dropping undecodable cached test")
		return nil, false
	}
	return t, true
}
