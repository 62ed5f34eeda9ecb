package testkit

import (
	"math"
	"math/rand"

	"mipool/domain/pooling"
)

// TermSpec describes one synthetic parameter across the imputed analyses
type TermSpec struct {
	Term       string
	TrueValue  float64 // center of the per-analysis estimates
	WithinSE   float64 // reported standard error
	BetweenSD  float64 // spread of estimates across analyses
	ResidualDF float64 // NaN leaves residual df unreported
}

// AnalysisGenerator produces deterministic synthetic coefficient tables that
// mimic the output of m analyses over multiply imputed data
type AnalysisGenerator struct {
	rng *rand.Rand
}

// NewAnalysisGenerator creates a generator with a fixed seed for
// reproducible fixtures
func NewAnalysisGenerator(seed int64) *AnalysisGenerator {
	return &AnalysisGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces m coefficient tables, one per synthetic analysis.
// Estimates scatter around TrueValue with BetweenSD; the reported standard
// error is WithinSE for every analysis.
func (g *AnalysisGenerator) Generate(m int, specs []TermSpec) []pooling.Table {
	tables := make([]pooling.Table, m)
	for i := 0; i < m; i++ {
		table := make(pooling.Table, 0, len(specs))
		for _, spec := range specs {
			estimate := spec.TrueValue + spec.BetweenSD*g.rng.NormFloat64()
			table = append(table, pooling.Estimate{
				Term:       spec.Term,
				Estimate:   estimate,
				StdError:   spec.WithinSE,
				ResidualDF: spec.ResidualDF,
			})
		}
		tables[i] = table
	}
	return tables
}

// UnreportedDF is a convenience for TermSpec.ResidualDF
func UnreportedDF() float64 {
	return math.NaN()
}
