package config

import (
	"testing"

	"mipool/domain/pooling"
)

// TestLoad_Defaults verifies sensible defaults when the environment is empty
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POOL_METHOD", "")
	t.Setenv("CONFIDENCE_LEVEL", "")
	t.Setenv("MAX_CONCURRENT_ANALYSES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Enabled() {
		t.Error("Persistence should be disabled without DATABASE_URL")
	}
	if cfg.Pooling.Method != pooling.MethodSmallSample {
		t.Errorf("Expected default method smallsample, got %s", cfg.Pooling.Method)
	}
	if cfg.Pooling.ConfidenceLevel != 0.95 {
		t.Errorf("Expected default confidence level 0.95, got %f", cfg.Pooling.ConfidenceLevel)
	}
	if cfg.Pooling.MaxConcurrentAnalyses != 0 {
		t.Errorf("Expected default concurrency 0 (per-CPU), got %d", cfg.Pooling.MaxConcurrentAnalyses)
	}
}

// TestLoad_Overrides verifies environment values are honored
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/mipool_test")
	t.Setenv("POOL_METHOD", "rubin")
	t.Setenv("CONFIDENCE_LEVEL", "0.9")
	t.Setenv("MAX_CONCURRENT_ANALYSES", "3")
	t.Setenv("ANALYSES_FILE", "analyses.xlsx")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Database.Enabled() {
		t.Error("Persistence should be enabled with DATABASE_URL set")
	}
	if cfg.Pooling.Method != pooling.MethodRubin {
		t.Errorf("Expected method rubin, got %s", cfg.Pooling.Method)
	}
	if cfg.Pooling.ConfidenceLevel != 0.9 {
		t.Errorf("Expected confidence level 0.9, got %f", cfg.Pooling.ConfidenceLevel)
	}
	if cfg.Pooling.MaxConcurrentAnalyses != 3 {
		t.Errorf("Expected concurrency 3, got %d", cfg.Pooling.MaxConcurrentAnalyses)
	}
	if cfg.Data.WorkbookFile != "analyses.xlsx" {
		t.Errorf("Expected workbook file analyses.xlsx, got %s", cfg.Data.WorkbookFile)
	}
}

// TestLoad_UnrecognizedMethodAccepted verifies the permissive method fallback
// is not rejected at configuration time
func TestLoad_UnrecognizedMethodAccepted(t *testing.T) {
	t.Setenv("POOL_METHOD", "smallsmaple")
	t.Setenv("CONFIDENCE_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pooling.Method != pooling.Method("smallsmaple") {
		t.Errorf("Method should pass through unvalidated, got %s", cfg.Pooling.Method)
	}
}

// TestLoad_InvalidConfidenceLevel rejects levels outside (0, 1)
func TestLoad_InvalidConfidenceLevel(t *testing.T) {
	t.Setenv("CONFIDENCE_LEVEL", "1.5")

	if _, err := Load(); err == nil {
		t.Error("Expected error for confidence level 1.5")
	}
}
