package pooling

// WarningCode represents structured warning types
type WarningCode string

const (
	WarnSingleAnalysis     WarningCode = "SINGLE_ANALYSIS"      // m == 1, coefficient table passed through unchanged
	WarnDefaultDFCom       WarningCode = "DEFAULT_DFCOM"        // no residual df reported; DefaultDFCom assumed
	WarnZeroWithinVariance WarningCode = "ZERO_WITHIN_VARIANCE" // ubar == 0 for at least one term; r and lambda are non-finite
)
