package runner

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mipool/domain/core"
	"mipool/domain/pooling"
	"mipool/ports"
)

// fakeFit is a ModelFit with a fixed coefficient table
type fakeFit struct {
	table pooling.Table
}

func (f fakeFit) Coefficients() (pooling.Table, error) { return f.table, nil }
func (f fakeFit) ResidualDF() (float64, bool)          { return 0, false }

// TestRun_OrderedResults verifies fits come back in imputation order even
// when analyses finish out of order
func TestRun_OrderedResults(t *testing.T) {
	r := NewAnalysisRunner(4)
	ctx := context.Background()

	const m = 8
	fits, err := r.Run(ctx, m, func(ctx context.Context, imputation int) (ports.ModelFit, error) {
		// Later imputations finish first
		time.Sleep(time.Duration(m-imputation) * time.Millisecond)
		return fakeFit{table: pooling.Table{
			pooling.NewEstimate("x", float64(imputation), 0.5),
		}}, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(fits) != m {
		t.Fatalf("Expected %d fits, got %d", m, len(fits))
	}

	for i, fit := range fits {
		table, err := fit.Coefficients()
		if err != nil {
			t.Fatalf("Coefficients failed: %v", err)
		}
		if table[0].Estimate != float64(i) {
			t.Errorf("Fit %d out of order: estimate %f", i, table[0].Estimate)
		}
	}
}

// TestRun_BoundedConcurrency verifies no more than maxConcurrent analyses
// run at once
func TestRun_BoundedConcurrency(t *testing.T) {
	const limit = 2
	r := NewAnalysisRunner(limit)
	ctx := context.Background()

	var active, peak int64
	_, err := r.Run(ctx, 10, func(ctx context.Context, imputation int) (ports.ModelFit, error) {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return fakeFit{}, nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := atomic.LoadInt64(&peak); got > limit {
		t.Errorf("Concurrency limit exceeded: peak %d > %d", got, limit)
	}
}

// TestRun_ErrorPropagation verifies the failing imputation is identified
func TestRun_ErrorPropagation(t *testing.T) {
	r := NewAnalysisRunner(2)
	ctx := context.Background()

	boom := errors.New("singular fit")
	_, err := r.Run(ctx, 5, func(ctx context.Context, imputation int) (ports.ModelFit, error) {
		if imputation == 3 {
			return nil, boom
		}
		return fakeFit{}, nil
	})
	if err == nil {
		t.Fatal("Expected error from failing analysis")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped analysis error, got %v", err)
	}
	if want := "analysis 4"; !strings.Contains(err.Error(), want) {
		t.Errorf("Expected error to name %q, got %q", want, err.Error())
	}
}

// TestRun_InvalidInputs rejects m <= 0 and a nil analyze function
func TestRun_InvalidInputs(t *testing.T) {
	r := NewAnalysisRunner(0)
	ctx := context.Background()

	if _, err := r.Run(ctx, 0, func(ctx context.Context, i int) (ports.ModelFit, error) {
		return fakeFit{}, nil
	}); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for m=0, got %v", err)
	}

	if _, err := r.Run(ctx, 3, nil); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil fn, got %v", err)
	}
}

// TestRun_ContextCancellation verifies a cancelled context aborts the run
func TestRun_ContextCancellation(t *testing.T) {
	r := NewAnalysisRunner(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, 4, func(ctx context.Context, imputation int) (ports.ModelFit, error) {
		return fakeFit{}, nil
	})
	if err == nil {
		t.Fatal("Expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
