package app

import (
	"context"
	"fmt"
	"math"

	"mipool/adapters/stats/pooler"
	"mipool/domain/core"
	"mipool/domain/pooling"
	"mipool/internal/config"
	"mipool/internal/runner"
	"mipool/ports"
)

// PoolService orchestrates a complete pooling run: executing the m analyses,
// extracting their coefficient tables through the ModelFit port, applying
// Rubin's rules, and optionally persisting the run.
type PoolService struct {
	runner     *runner.AnalysisRunner
	pooler     *pooler.RubinPooler
	repository ports.PooledRunRepository // nil disables persistence
}

// PoolRequest defines the inputs for one pooling run
type PoolRequest struct {
	M       int
	Analyze ports.AnalyzeFunc
	Method  pooling.Method
	RunID   core.RunID // optional, generated if empty
}

// NewPoolService creates a pooling service. Pass a nil repository to keep
// runs in memory only.
func NewPoolService(analysisRunner *runner.AnalysisRunner, repository ports.PooledRunRepository) *PoolService {
	return &PoolService{
		runner:     analysisRunner,
		pooler:     pooler.NewPooler(),
		repository: repository,
	}
}

// NewPoolServiceFromConfig wires runner concurrency from configuration
func NewPoolServiceFromConfig(cfg *config.Config, repository ports.PooledRunRepository) *PoolService {
	return NewPoolService(runner.NewAnalysisRunner(cfg.Pooling.MaxConcurrentAnalyses), repository)
}

// RunPool executes the m analyses and pools their results
func (s *PoolService) RunPool(ctx context.Context, req PoolRequest) (*pooling.PooledRun, error) {
	fits, err := s.runner.Run(ctx, req.M, req.Analyze)
	if err != nil {
		return nil, err
	}

	tables := make([]pooling.Table, 0, len(fits))
	for i, fit := range fits {
		table, err := fit.Coefficients()
		if err != nil {
			return nil, fmt.Errorf("coefficients of analysis %d: %w", i+1, err)
		}
		tables = append(tables, table)
	}

	// Complete-data residual df from the first fitted model, consulted only
	// when analysis 1's table does not report one itself
	fallbackDF := math.NaN()
	if df, ok := fits[0].ResidualDF(); ok {
		fallbackDF = df
	}

	results, warnings, err := s.pooler.PoolWithFallbackDF(tables, req.Method, fallbackDF)
	if err != nil {
		return nil, err
	}

	return s.finishRun(ctx, req.RunID, req.Method, len(tables), results, warnings)
}

// PoolTables pools coefficient tables that were produced externally, e.g.
// loaded from a workbook
func (s *PoolService) PoolTables(ctx context.Context, tables []pooling.Table, method pooling.Method) (*pooling.PooledRun, error) {
	results, warnings, err := s.pooler.Pool(tables, method)
	if err != nil {
		return nil, err
	}
	return s.finishRun(ctx, "", method, len(tables), results, warnings)
}

func (s *PoolService) finishRun(ctx context.Context, runID core.RunID, method pooling.Method, m int, results []pooling.PooledResult, warnings []pooling.WarningCode) (*pooling.PooledRun, error) {
	run := pooling.NewPooledRun(method, m, results, warnings)
	if !core.ID(runID).IsEmpty() {
		run.ID = runID
	}

	if s.repository != nil {
		if err := s.repository.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("save pooled run %s: %w", run.ID, err)
		}
	}
	return run, nil
}
