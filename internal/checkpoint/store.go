package checkpoint

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	// ErrNotFound is returned by Load when no checkpoint exists for the session.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrCorrupt is returned by Load when a stored record cannot be decoded.
	ErrCorrupt = errors.New("checkpoint record is corrupt")
)

// Store persists session checkpoints keyed by session identifier.
type Store interface {
	Save(ctx context.Context, sessionID string, cp *model.Checkpoint) error
	Load(ctx context.Context, sessionID string) (*model.Checkpoint, error)
	Clear(ctx context.Context, sessionID string) error
}
