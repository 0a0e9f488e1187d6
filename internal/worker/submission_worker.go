package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var errIncompleteSubmission = errors.New("submission missing session, test or candidate")

// SubmissionWorker persists final submissions from persist_submissions_queue
// into test_submissions. Each session is stored at most once.
type SubmissionWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewSubmissionWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "submission_worker").Logger(),
	}
}

type queuedSubmission struct {
	sub model.Submission
	raw []byte
}

func decodeSubmission(raw []byte) (*queuedSubmission, error) {
	var sub model.Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, err
	}
	if sub.SessionID == "" || sub.TestID == "" || sub.CandidateID == "" {
		return nil, errIncompleteSubmission
	}
	if sub.Answers == nil {
		sub.Answers = []model.AnswerRecord{}
	}
	if sub.CodingSubmissions == nil {
		sub.CodingSubmissions = []model.CodingSubmission{}
	}
	return &queuedSubmission{sub: sub, raw: raw}, nil
}

// submissionColumns is the column-major form UNNEST expects. JSON columns go
// over the wire as text and are cast in SQL.
type submissionColumns struct {
	sessionIDs   []string
	testIDs      []string
	candidateIDs []string
	answers      []string
	coding       []string
	violations   []int32
	timeSpent    []int32
	forced       []bool
	reasons      []string
	submittedAt  []time.Time
}

func buildSubmissionColumns(batch []*queuedSubmission) (*submissionColumns, error) {
	n := len(batch)
	c := &submissionColumns{
		sessionIDs:   make([]string, 0, n),
		testIDs:      make([]string, 0, n),
		candidateIDs: make([]string, 0, n),
		answers:      make([]string, 0, n),
		coding:       make([]string, 0, n),
		violations:   make([]int32, 0, n),
		timeSpent:    make([]int32, 0, n),
		forced:       make([]bool, 0, n),
		reasons:      make([]string, 0, n),
		submittedAt:  make([]time.Time, 0, n),
	}
	for _, q := range batch {
		answers, err := json.Marshal(q.sub.Answers)
		if err != nil {
			return nil, fmt.Errorf("encode answers: %w", err)
		}
		coding, err := json.Marshal(q.sub.CodingSubmissions)
		if err != nil {
			return nil, fmt.Errorf("encode coding submissions: %w", err)
		}
		c.sessionIDs = append(c.sessionIDs, q.sub.SessionID)
		c.testIDs = append(c.testIDs, q.sub.TestID)
		c.candidateIDs = append(c.candidateIDs, q.sub.CandidateID)
		c.answers = append(c.answers, string(answers))
		c.coding = append(c.coding, string(coding))
		c.violations = append(c.violations, int32(q.sub.ViolationCount))
		c.timeSpent = append(c.timeSpent, int32(q.sub.TimeSpentMinutes))
		c.forced = append(c.forced, q.sub.Forced)
		c.reasons = append(c.reasons, q.sub.Reason)
		c.submittedAt = append(c.submittedAt, q.sub.SubmittedAt)
	}
	return c, nil
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("SubmissionWorker started")

	batch := make([]*queuedSubmission, 0, BatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			w.flushSafe(shutdownCtx, batch)
			cancel()
			return

		default:
			raw, ok := pop(ctx, w.rdb, w.log, config.WorkerKey.PersistSubmissionsQueue)
			if !ok {
				continue
			}

			q, err := decodeSubmission(raw)
			if err != nil {
				w.log.Error().Err(err).Str("data", string(raw)).Msg("Invalid submission payload")
				continue
			}
			batch = append(batch, q)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert wrapper
// ----------------------------------------------------------------

func (w *SubmissionWorker) flushSafe(ctx context.Context, batch []*queuedSubmission) {
	if len(batch) == 0 {
		return
	}

	err := w.bulkInsert(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Submissions persisted")
		return
	}
	w.log.Warn().Err(err).Msg("bulk submission insert failed, using fallback")

	var failed [][]byte
	for _, q := range batch {
		if err := w.persistSingle(ctx, q); err != nil {
			w.log.Error().Err(err).Str("session_id", q.sub.SessionID).Msg("persistSingle failed, requeueing")
			failed = append(failed, q.raw)
		}
	}
	if len(failed) > 0 {
		requeue(context.Background(), w.rdb, w.log, config.WorkerKey.PersistSubmissionsQueue, failed)
		sleepCtx(ctx, requeueBackoff)
	}
}

// ----------------------------------------------------------------
// BULK PostgreSQL INSERT using UNNEST
// ----------------------------------------------------------------

func (w *SubmissionWorker) bulkInsert(ctx context.Context, batch []*queuedSubmission) error {
	c, err := buildSubmissionColumns(batch)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO test_submissions (
			session_id, test_id, candidate_id, answers, coding_submissions,
			violation_count, time_spent_minutes, forced, reason, submitted_at
		)
		SELECT
			u.session_id, u.test_id, u.candidate_id, u.answers::jsonb, u.coding::jsonb,
			u.violations, u.time_spent, u.forced, u.reason, u.submitted_at
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::text[],
			$4::text[],
			$5::text[],
			$6::int[],
			$7::int[],
			$8::bool[],
			$9::text[],
			$10::timestamptz[]
		) AS u (session_id, test_id, candidate_id, answers, coding, violations, time_spent, forced, reason, submitted_at)
		ON CONFLICT (session_id) DO NOTHING
	`

	_, err = w.pool.Exec(ctx, query,
		c.sessionIDs, c.testIDs, c.candidateIDs, c.answers, c.coding,
		c.violations, c.timeSpent, c.forced, c.reasons, c.submittedAt,
	)
	return err
}

// ----------------------------------------------------------------
// FALLBACK single insert
// ----------------------------------------------------------------

func (w *SubmissionWorker) persistSingle(ctx context.Context, q *queuedSubmission) error {
	c, err := buildSubmissionColumns([]*queuedSubmission{q})
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO test_submissions (
			session_id, test_id, candidate_id, answers, coding_submissions,
			violation_count, time_spent_minutes, forced, reason, submitted_at
		 )
		 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id) DO NOTHING`,
		c.sessionIDs[0], c.testIDs[0], c.candidateIDs[0], c.answers[0], c.coding[0],
		c.violations[0], c.timeSpent[0], c.forced[0], c.reasons[0], c.submittedAt[0],
	)
	return err
}
