package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const autosaveRetryDelay = 5 * time.Second

var errIncompleteAnswer = errors.New("answer event missing session or question")

// AutosaveWorker consumes persist_answers_queue and UPSERTs the answer
// journal to PostgreSQL.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

// decodeAnswer parses a queued answer event. Events that cannot be retried
// usefully are rejected here.
func decodeAnswer(raw []byte) (*model.AnswerEvent, error) {
	var ev model.AnswerEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	if ev.SessionID == "" || ev.QuestionID == "" {
		return nil, errIncompleteAnswer
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	return &ev, nil
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	raw, ok := pop(ctx, w.rdb, w.log, config.WorkerKey.PersistAnswersQueue)
	if !ok {
		return
	}

	ev, err := decodeAnswer(raw)
	if err != nil {
		w.log.Error().Err(err).Str("data", string(raw)).Msg("Discarding malformed answer event")
		return
	}

	if err := w.persistAnswer(ctx, ev); err != nil {
		w.log.Error().Err(err).
			Str("session_id", ev.SessionID).
			Str("question_id", ev.QuestionID).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		requeue(context.Background(), w.rdb, w.log, config.WorkerKey.PersistAnswersQueue, [][]byte{raw})
		sleepCtx(ctx, autosaveRetryDelay)
	}
}

// persistAnswer UPSERTs one answer. A requeued event older than the stored
// row never overwrites it.
func (w *AutosaveWorker) persistAnswer(ctx context.Context, ev *model.AnswerEvent) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, test_id, candidate_id, question_id, answer, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, answered_at = EXCLUDED.answered_at
		 WHERE session_answers.answered_at <= EXCLUDED.answered_at`,
		ev.SessionID, ev.TestID, ev.CandidateID, ev.QuestionID, ev.Answer, ev.At,
	)
	return err
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Bytes()
		if err != nil {
			break
		}

		ev, err := decodeAnswer(raw)
		if err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistAnswer(ctx, ev); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			requeue(context.Background(), w.rdb, w.log, config.WorkerKey.PersistAnswersQueue, [][]byte{raw})
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
