package store

import (
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests and the MCP server's default
// (no filesystem writes unless asked for).
type MemStore struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]*Run
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1, runs: make(map[int64]*Run)}
}

func (m *MemStore) SaveRun(r *Run) (int64, error) {
	if r == nil {
		return 0, fmt.Errorf("nil run")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	cp := *r
	cp.ID = id
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.runs[id] = &cp
	r.ID = id
	r.CreatedAt = cp.CreatedAt
	return id, nil
}

func (m *MemStore) GetRun(runID int64) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, runID)
	}
	cp := *r
	return &cp, nil
}

func (m *MemStore) ListRuns(limit int) ([]*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Run, 0, len(m.runs))
	for id := m.nextID - 1; id >= 1; id-- {
		if r, ok := m.runs[id]; ok {
			cp := *r
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) Close() error { return nil }
