package runner

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"mipool/domain/core"
	"mipool/ports"

	"golang.org/x/sync/semaphore"
)

// AnalysisRunner executes the m per-imputation analyses with bounded
// concurrency. The analyses are independent of each other; only the pooling
// step that follows needs them as a completed, index-ordered sequence, so the
// runner collects into a fixed slice rather than streaming.
type AnalysisRunner struct {
	sem *semaphore.Weighted
}

// NewAnalysisRunner creates a runner allowing at most maxConcurrent analyses
// in flight. Zero or negative means one per CPU.
func NewAnalysisRunner(maxConcurrent int64) *AnalysisRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = int64(runtime.NumCPU())
	}
	return &AnalysisRunner{
		sem: semaphore.NewWeighted(maxConcurrent),
	}
}

// Run applies fn to imputations 0..m-1 and returns the fitted analyses in
// imputation order. The first analysis error aborts the run.
func (r *AnalysisRunner) Run(ctx context.Context, m int, fn ports.AnalyzeFunc) ([]ports.ModelFit, error) {
	if m <= 0 {
		return nil, fmt.Errorf("%w: need at least one analysis, got %d", core.ErrInvalidInput, m)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: nil analyze function", core.ErrInvalidInput)
	}

	fits := make([]ports.ModelFit, m)
	errs := make([]error, m)

	var wg sync.WaitGroup
	for i := 0; i < m; i++ {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer r.sem.Release(1)
			fits[idx], errs[idx] = fn(ctx, idx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("analysis %d: %w", i+1, err)
		}
	}
	return fits, nil
}
