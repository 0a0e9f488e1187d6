package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// TestRepository handles test definition data access. Definitions are stored
// whole as JSONB; only the columns needed for listing are broken out.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test definition. Returns pgx.ErrNoRows when missing.
func (r *TestRepository) GetByID(ctx context.Context, id string) (*model.Test, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT definition FROM tests WHERE id = $1`, id,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return decodeTest(id, raw)
}

// Upsert inserts or replaces a test definition.
func (r *TestRepository) Upsert(ctx context.Context, t *model.Test) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode test: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO tests (id, name, type, duration_seconds, definition)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     type = EXCLUDED.type,
		     duration_seconds = EXCLUDED.duration_seconds,
		     definition = EXCLUDED.definition,
		     updated_at = NOW()`,
		t.ID, t.Name, t.Type, t.DurationSeconds, raw,
	)
	return err
}

// ListAll retrieves every stored test definition.
func (r *TestRepository) ListAll(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, definition FROM tests ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		t, err := decodeTest(id, raw)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}

func decodeTest(id string, raw []byte) (*model.Test, error) {
	t := &model.Test{}
	if err := json.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("decode test %s: %w", id, err)
	}
	t.ID = id
	return t, nil
}
