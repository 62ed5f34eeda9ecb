package ports

import (
	"context"

	"mipool/domain/core"
	"mipool/domain/pooling"
)

// PooledRunRepository persists completed pooling runs.
// The pooling computation itself is pure; persistence is opt-in and sits
// behind this port so callers can run without any storage at all.
type PooledRunRepository interface {
	Save(ctx context.Context, run *pooling.PooledRun) error
	Get(ctx context.Context, id core.RunID) (*pooling.PooledRun, error)
	List(ctx context.Context, filters RunFilters) ([]*pooling.PooledRun, error)
}

// RunFilters for querying pooled runs
type RunFilters struct {
	Method *pooling.Method
	Limit  int
	Offset int
}
