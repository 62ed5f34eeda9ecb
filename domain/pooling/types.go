package pooling

import (
	"fmt"
	"math"

	"mipool/domain/core"
)

// ============================================================================
// STABLE PRIMITIVES (Canonical, never change)
// ============================================================================

// Estimate is one row of a per-analysis coefficient table: a parameter name,
// its point estimate and the standard error reported by the fitted model.
// INVARIANTS:
// - Term always present and non-empty
// - StdError >= 0 when finite
type Estimate struct {
	Term       string  `json:"term"`
	Estimate   float64 `json:"estimate"`
	StdError   float64 `json:"std_error"`
	ResidualDF float64 `json:"residual_df,omitempty"` // NaN when the analysis did not report it
}

// NewEstimate creates a coefficient row without a reported residual df
func NewEstimate(term string, estimate, stdError float64) Estimate {
	return Estimate{
		Term:       term,
		Estimate:   estimate,
		StdError:   stdError,
		ResidualDF: math.NaN(),
	}
}

// HasResidualDF reports whether the analysis carried residual degrees of freedom
func (e Estimate) HasResidualDF() bool {
	return !math.IsNaN(e.ResidualDF)
}

// Table is the full coefficient table of one completed analysis
type Table []Estimate

// Validate checks table invariants before pooling
func (t Table) Validate() error {
	if len(t) == 0 {
		return core.ErrEmptyTable
	}
	for i, row := range t {
		if row.Term == "" {
			return core.NewValidationError("term", fmt.Sprintf("row %d has empty term", i))
		}
	}
	return nil
}

// Method selects the degrees-of-freedom computation for pooled inference.
// Any value other than MethodSmallSample selects the classical Rubin (1987)
// degrees of freedom, including unrecognized strings. The permissive fallback
// is deliberate and kept for compatibility with existing callers.
type Method string

const (
	MethodSmallSample Method = "smallsample" // Barnard-Rubin adjusted df
	MethodRubin       Method = "rubin"       // classical Rubin (1987) df
)

// DefaultDFCom stands in for unknown complete-data residual degrees of
// freedom. A large finite value keeps downstream arithmetic finite while
// behaving like complete data.
const DefaultDFCom = 99999

// ============================================================================
// POOLED OUTPUT
// ============================================================================

// PooledResult is the pooled row for one parameter across m analyses
type PooledResult struct {
	Term   string  `json:"term"`
	M      int     `json:"m"`      // analyses contributing to this term
	Qbar   float64 `json:"qbar"`   // pooled estimate
	Ubar   float64 `json:"ubar"`   // mean within-imputation variance
	B      float64 `json:"b"`      // between-imputation variance
	T      float64 `json:"t"`      // total variance
	R      float64 `json:"r"`      // relative increase in variance
	Lambda float64 `json:"lambda"` // proportion of variance due to missingness
	DFCom  float64 `json:"dfcom"`  // complete-data residual degrees of freedom
	DFOld  float64 `json:"df_old"` // classical Rubin df
	DFObs  float64 `json:"df_obs"` // observed-data df component
	DF     float64 `json:"df"`     // adjusted degrees of freedom
	FMI    float64 `json:"fmi"`    // fraction of missing information
}

// PooledRun bundles the pooled rows with plain-value call bookkeeping.
// The numeric core does not persist or mutate this; it is carried alongside
// the results for callers that want audit context.
type PooledRun struct {
	ID        core.RunID     `json:"id"`
	Method    Method         `json:"method"`
	M         int            `json:"m"`
	Results   []PooledResult `json:"results"`
	Warnings  []WarningCode  `json:"warnings,omitempty"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// NewPooledRun creates a run record for a completed pooling call
func NewPooledRun(method Method, m int, results []PooledResult, warnings []WarningCode) *PooledRun {
	return &PooledRun{
		ID:        core.RunID(core.NewID()),
		Method:    method,
		M:         m,
		Results:   results,
		Warnings:  warnings,
		CreatedAt: core.Now(),
	}
}
