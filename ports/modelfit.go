package ports

import (
	"context"

	"mipool/domain/pooling"
)

// ModelFit is the narrow accessor a fitted model must expose to participate
// in pooling. Implementations wrap whatever model-fitting machinery produced
// the analysis; the pooler depends only on these two capabilities and never
// on a concrete model type.
type ModelFit interface {
	// Coefficients returns the per-term coefficient table (tidy form)
	Coefficients() (pooling.Table, error)

	// ResidualDF returns the residual degrees of freedom of the fitted
	// model, with ok=false when the model does not report one
	ResidualDF() (float64, bool)
}

// AnalyzeFunc produces the fitted analysis for one imputed dataset.
// The imputation index is 0-based and the function must be safe to call
// concurrently for distinct indices.
type AnalyzeFunc func(ctx context.Context, imputation int) (ModelFit, error)
