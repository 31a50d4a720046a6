package state

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-strata/layering"
)

// MemoryStore is a minimal in-memory Store implementation intended for tests
// and examples. It uses Ref.Identifier() as its deterministic key.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	values map[string]any
	meta   Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (map[string]any, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return layering.Clone(record.values), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, values map[string]any, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	stored, err := stamp(values, meta, s.now())
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	s.records[key] = memoryRecord{values: layering.Clone(values), meta: stored}
	s.mu.Unlock()
	return cloneMeta(stored), nil
}

// Len reports how many layer records are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
