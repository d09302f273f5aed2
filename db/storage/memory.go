package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps runs in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*ComparisonRun
	byHash map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:   make(map[uuid.UUID]*ComparisonRun),
		byHash: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) SaveRun(_ context.Context, run *ComparisonRun) error {
	Prepare(run)

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *run
	m.runs[run.ID] = &stored
	if run.InputHash != "" {
		m.byHash[run.InputHash] = run.ID
	}
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*ComparisonRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	out := *run
	return &out, nil
}

func (m *MemoryStore) FindRunByHash(ctx context.Context, hash string) (*ComparisonRun, error) {
	m.mu.RLock()
	id, ok := m.byHash[hash]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return m.GetRun(ctx, id)
}

func (m *MemoryStore) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	m.mu.RLock()
	summaries := make([]RunSummary, 0, len(m.runs))
	for _, run := range m.runs {
		summaries = append(summaries, run.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID.String() < summaries[j].ID.String()
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

var _ ReportStore = (*MemoryStore)(nil)
