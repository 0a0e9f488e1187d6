package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository provides data access for live test monitoring. It reads
// the journal tables the persistence workers fill.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// GetAnsweredCounts returns the number of currently answered questions for
// every candidate with journaled answers in the given test.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, testID string) (map[string]int64, error) {
	return r.countByCandidate(ctx,
		`SELECT candidate_id, COUNT(*)
		 FROM session_answers
		 WHERE test_id = $1 AND answer <> ''
		 GROUP BY candidate_id`,
		testID,
	)
}

// GetViolationCounts returns the highest violation count journaled for each
// candidate in the given test.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, testID string) (map[string]int64, error) {
	return r.countByCandidate(ctx,
		`SELECT candidate_id, MAX(violation_count)
		 FROM session_violations
		 WHERE test_id = $1
		 GROUP BY candidate_id`,
		testID,
	)
}

func (r *MonitorRepository) countByCandidate(ctx context.Context, query, testID string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, query, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var cid string
		var count int64
		if err := rows.Scan(&cid, &count); err != nil {
			return nil, err
		}
		counts[cid] = count
	}
	return counts, rows.Err()
}
