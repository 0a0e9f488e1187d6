package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// SubmissionRepository reads persisted final submissions. Writes happen in
// the submission worker.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Exists reports whether a session already has a stored submission.
func (r *SubmissionRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM test_submissions WHERE session_id = $1)`, sessionID,
	).Scan(&exists)
	return exists, err
}

// ListByTest retrieves submission summaries for a test, newest first.
func (r *SubmissionRepository) ListByTest(ctx context.Context, testID string) ([]model.SubmissionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, candidate_id,
		        (SELECT COUNT(*) FROM jsonb_array_elements(answers) a WHERE a->>'selected_answer' <> ''),
		        jsonb_array_length(coding_submissions),
		        violation_count, time_spent_minutes, forced, reason, submitted_at
		 FROM test_submissions
		 WHERE test_id = $1
		 ORDER BY submitted_at DESC`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubmissionSummary
	for rows.Next() {
		var s model.SubmissionSummary
		if err := rows.Scan(&s.SessionID, &s.CandidateID, &s.AnsweredCount, &s.CodingCount,
			&s.ViolationCount, &s.TimeSpentMinutes, &s.Forced, &s.Reason, &s.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
