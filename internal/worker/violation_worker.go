package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var errIncompleteViolation = errors.New("violation event missing session")

// ViolationWorker batches persist_violations_queue into session_violations.
type ViolationWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewViolationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "violation_worker").Logger(),
	}
}

// queuedViolation keeps the raw payload so a failed row goes back verbatim.
type queuedViolation struct {
	ev  model.ViolationEvent
	raw []byte
}

func decodeViolation(raw []byte) (*queuedViolation, error) {
	var ev model.ViolationEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	if ev.SessionID == "" {
		return nil, errIncompleteViolation
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return &queuedViolation{ev: ev, raw: raw}, nil
}

// violationRows builds the CopyFrom rows for a batch.
func violationRows(batch []*queuedViolation) [][]interface{} {
	rows := make([][]interface{}, 0, len(batch))
	for _, q := range batch {
		rows = append(rows, []interface{}{
			q.ev.SessionID, q.ev.TestID, q.ev.CandidateID, q.ev.Count, q.ev.At,
		})
	}
	return rows
}

func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]*queuedViolation, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis
		raw, ok := pop(ctx, w.rdb, w.log, config.WorkerKey.PersistViolationsQueue)
		if !ok {
			continue
		}

		// 4. Process Data
		q, err := decodeViolation(raw)
		if err != nil {
			// Malformed events cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", string(raw)).Msg("Discarding malformed violation event")
			continue
		}
		buffer = append(buffer, q)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []*queuedViolation) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *ViolationWorker) bulkInsert(ctx context.Context, batch []*queuedViolation) error {
	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"session_violations"},
		[]string{"session_id", "test_id", "candidate_id", "violation_count", "recorded_at"},
		pgx.CopyFromRows(violationRows(batch)),
	)
	return err
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []*queuedViolation) {
	var failed [][]byte

	for _, q := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO session_violations (session_id, test_id, candidate_id, violation_count, recorded_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			q.ev.SessionID, q.ev.TestID, q.ev.CandidateID, q.ev.Count, q.ev.At,
		)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", q.ev.SessionID).Msg("Insert failed, requeueing")
			failed = append(failed, q.raw)
		}
	}

	if len(failed) > 0 {
		requeue(context.Background(), w.rdb, w.log, config.WorkerKey.PersistViolationsQueue, failed)
		sleepCtx(ctx, requeueBackoff)
	}
}

func (w *ViolationWorker) shutdown(buffer []*queuedViolation) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
