package inference

import (
	"math"

	"mipool/domain/core"
	"mipool/domain/pooling"

	"gonum.org/v1/gonum/stat/distuv"
)

// Interval is the t-based inference for one pooled parameter
type Interval struct {
	Term      string  `json:"term"`
	Estimate  float64 `json:"estimate"`
	StdError  float64 `json:"std_error"` // sqrt of total variance
	Statistic float64 `json:"statistic"` // estimate / std_error
	PValue    float64 `json:"p_value"`   // two-sided, at the pooled df
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Level     float64 `json:"level"`
}

// Computer derives confidence intervals and p-values from pooled results
// using the t distribution at the adjusted degrees of freedom. It operates
// on PooledResult rows only; it is not part of the pooling contract.
type Computer struct{}

// NewComputer creates a new inference computer
func NewComputer() *Computer {
	return &Computer{}
}

// largeDF is the point beyond which the t distribution is treated as normal.
// Also covers non-finite df coming from degenerate pooling (b == 0).
const largeDF = 1e6

// Interval computes the two-sided confidence interval and p-value for one
// pooled row at the given level (e.g. 0.95).
func (c *Computer) Interval(row pooling.PooledResult, level float64) (Interval, error) {
	if level <= 0 || level >= 1 {
		return Interval{}, core.NewValidationError("level", "must be strictly between 0 and 1")
	}

	se := math.Sqrt(row.T)
	statistic := row.Qbar / se

	quantile, pValue := c.tTail(row.DF, statistic, level)

	return Interval{
		Term:      row.Term,
		Estimate:  row.Qbar,
		StdError:  se,
		Statistic: statistic,
		PValue:    pValue,
		Lower:     row.Qbar - quantile*se,
		Upper:     row.Qbar + quantile*se,
		Level:     level,
	}, nil
}

// Intervals computes intervals for every pooled row, preserving order
func (c *Computer) Intervals(rows []pooling.PooledResult, level float64) ([]Interval, error) {
	out := make([]Interval, 0, len(rows))
	for _, row := range rows {
		iv, err := c.Interval(row, level)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

// tTail returns the two-sided critical value at the given level and the
// two-sided p-value of the statistic, under t with df degrees of freedom.
// Falls back to the normal distribution for very large or non-finite df.
func (c *Computer) tTail(df, statistic, level float64) (quantile, pValue float64) {
	alpha := 1 - level

	if !(df > 0) || df > largeDF {
		norm := distuv.Normal{Mu: 0, Sigma: 1}
		quantile = norm.Quantile(1 - alpha/2)
		pValue = 2 * norm.Survival(math.Abs(statistic))
		return quantile, pValue
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	quantile = dist.Quantile(1 - alpha/2)
	pValue = 2 * dist.Survival(math.Abs(statistic))
	return quantile, pValue
}
