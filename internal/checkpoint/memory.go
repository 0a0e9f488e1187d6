package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// MemoryStore keeps checkpoints in process memory. Records are stored encoded
// so callers never share mutable state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, cp *model.Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	s.mu.Lock()
	s.records[sessionID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*model.Checkpoint, error) {
	s.mu.RLock()
	raw, ok := s.records[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(raw)
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.records, sessionID)
	s.mu.Unlock()
	return nil
}

// Put stores a raw record as-is. Used to seed legacy or damaged records.
func (s *MemoryStore) Put(sessionID string, raw []byte) {
	s.mu.Lock()
	s.records[sessionID] = append([]byte(nil), raw...)
	s.mu.Unlock()
}

func decode(raw []byte) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &cp, nil
}
