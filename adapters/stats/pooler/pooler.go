package pooler

import (
	"fmt"
	"math"

	"mipool/domain/core"
	"mipool/domain/pooling"

	"github.com/montanaflynn/stats"
)

// RubinPooler combines parameter estimates and variances across the completed
// analyses of a multiple-imputation workflow using Rubin's rules, with an
// optional Barnard-Rubin small-sample degrees-of-freedom adjustment.
type RubinPooler struct{}

// NewPooler creates a new pooler
func NewPooler() *RubinPooler {
	return &RubinPooler{}
}

// Pool combines the m per-analysis coefficient tables into one pooled row per
// term. Output order follows the order in which terms first appear across the
// input tables. With a single table the coefficients are passed through
// unchanged and WarnSingleAnalysis is raised instead of applying Rubin's
// rules.
//
// Numeric degeneracies (zero within-imputation variance, zero between-
// imputation variance) are not errors: the IEEE-754 results propagate into
// the output so the analyst can see them.
func (p *RubinPooler) Pool(tables []pooling.Table, method pooling.Method) ([]pooling.PooledResult, []pooling.WarningCode, error) {
	return p.PoolWithFallbackDF(tables, method, math.NaN())
}

// PoolWithFallbackDF pools with an externally supplied complete-data residual
// df, used only when analysis 1 does not report one itself. Pass NaN when no
// external value is available; DefaultDFCom is assumed in that case.
func (p *RubinPooler) PoolWithFallbackDF(tables []pooling.Table, method pooling.Method, fallbackDF float64) ([]pooling.PooledResult, []pooling.WarningCode, error) {
	if len(tables) == 0 {
		return nil, nil, core.ErrInvalidInput
	}
	for i, table := range tables {
		if err := table.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: analysis %d: %v", core.ErrInvalidInput, i+1, err)
		}
	}

	var warnings []pooling.WarningCode

	dfcom, defaulted := p.resolveDFCom(tables[0], fallbackDF)
	if defaulted {
		warnings = append(warnings, pooling.WarnDefaultDFCom)
	}

	if len(tables) == 1 {
		warnings = append(warnings, pooling.WarnSingleAnalysis)
		return p.passThrough(tables[0], dfcom), warnings, nil
	}

	order, groups := groupByTerm(tables)

	results := make([]pooling.PooledResult, 0, len(order))
	zeroWithin := false
	for _, term := range order {
		row := p.poolTerm(term, groups[term], dfcom, method)
		if row.Ubar == 0 {
			zeroWithin = true
		}
		results = append(results, row)
	}
	if zeroWithin {
		warnings = append(warnings, pooling.WarnZeroWithinVariance)
	}

	return results, warnings, nil
}

// resolveDFCom determines the complete-data residual degrees of freedom:
// the value reported by analysis 1 if present, otherwise the external
// fallback, otherwise DefaultDFCom.
func (p *RubinPooler) resolveDFCom(first pooling.Table, fallbackDF float64) (dfcom float64, defaulted bool) {
	for _, row := range first {
		if row.HasResidualDF() {
			return row.ResidualDF, false
		}
	}
	if !math.IsNaN(fallbackDF) {
		return fallbackDF, false
	}
	return pooling.DefaultDFCom, true
}

// poolTerm applies Rubin's combination rules to one term group
func (p *RubinPooler) poolTerm(term string, rows []pooling.Estimate, dfcom float64, method pooling.Method) pooling.PooledResult {
	estimates := make([]float64, len(rows))
	squaredSE := make([]float64, len(rows))
	for i, row := range rows {
		estimates[i] = row.Estimate
		squaredSE[i] = row.StdError * row.StdError
	}

	m := float64(len(rows))
	qbar, _ := stats.Mean(estimates)
	ubar, _ := stats.Mean(squaredSE)
	b, _ := stats.SampleVariance(estimates)

	// Total variance inflated by the finite-m correction factor
	t := ubar + (1+1/m)*b
	r := (1 + 1/m) * b / ubar
	lambda := (1 + 1/m) * b / t

	dfOld := (m - 1) / (lambda * lambda)
	dfObs := (dfcom + 1) / (dfcom + 3) * dfcom * (1 - lambda)

	df := dfOld
	if method == pooling.MethodSmallSample {
		// Barnard-Rubin adjustment: caps df by both the imputation count
		// and the complete-data degrees of freedom. Reciprocal form so that
		// an infinite dfOld (b == 0) reduces to dfObs instead of NaN.
		df = 1 / (1/dfOld + 1/dfObs)
	}

	fmi := (r + 2/(df+3)) / (r + 1)

	return pooling.PooledResult{
		Term:   term,
		M:      len(rows),
		Qbar:   qbar,
		Ubar:   ubar,
		B:      b,
		T:      t,
		R:      r,
		Lambda: lambda,
		DFCom:  dfcom,
		DFOld:  dfOld,
		DFObs:  dfObs,
		DF:     df,
		FMI:    fmi,
	}
}

// passThrough carries a single analysis through unchanged: the estimate and
// its squared standard error become the pooled estimate and total variance,
// with no combination arithmetic applied.
func (p *RubinPooler) passThrough(table pooling.Table, dfcom float64) []pooling.PooledResult {
	results := make([]pooling.PooledResult, 0, len(table))
	for _, row := range table {
		variance := row.StdError * row.StdError
		results = append(results, pooling.PooledResult{
			Term:  row.Term,
			M:     1,
			Qbar:  row.Estimate,
			Ubar:  variance,
			T:     variance,
			DFCom: dfcom,
			DF:    dfcom,
		})
	}
	return results
}

// groupByTerm collects rows by term name across all tables, preserving the
// order in which terms first appear. Grouping is by name, not position.
func groupByTerm(tables []pooling.Table) ([]string, map[string][]pooling.Estimate) {
	order := make([]string, 0)
	groups := make(map[string][]pooling.Estimate)
	for _, table := range tables {
		for _, row := range table {
			if _, seen := groups[row.Term]; !seen {
				order = append(order, row.Term)
			}
			groups[row.Term] = append(groups[row.Term], row)
		}
	}
	return order, groups
}
