package testkit

import (
	"context"
	"sort"
	"sync"

	"mipool/domain/core"
	"mipool/domain/pooling"
	"mipool/ports"
)

// InMemoryPooledRunRepository is a map-backed PooledRunRepository for tests
type InMemoryPooledRunRepository struct {
	mu   sync.RWMutex
	runs map[core.RunID]*pooling.PooledRun
}

// NewInMemoryPooledRunRepository creates an empty in-memory repository
func NewInMemoryPooledRunRepository() *InMemoryPooledRunRepository {
	return &InMemoryPooledRunRepository{
		runs: make(map[core.RunID]*pooling.PooledRun),
	}
}

func (r *InMemoryPooledRunRepository) Save(ctx context.Context, run *pooling.PooledRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

func (r *InMemoryPooledRunRepository) Get(ctx context.Context, id core.RunID) (*pooling.PooledRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, core.NewNotFoundError("pooled run", id.String())
	}
	return run, nil
}

func (r *InMemoryPooledRunRepository) List(ctx context.Context, filters ports.RunFilters) ([]*pooling.PooledRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*pooling.PooledRun, 0, len(r.runs))
	for _, run := range r.runs {
		if filters.Method != nil && run.Method != *filters.Method {
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[j].CreatedAt.Before(runs[i].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(runs) {
			return nil, nil
		}
		runs = runs[filters.Offset:]
	}
	if filters.Limit > 0 && len(runs) > filters.Limit {
		runs = runs[:filters.Limit]
	}
	return runs, nil
}

// Count returns the number of stored runs
func (r *InMemoryPooledRunRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}
