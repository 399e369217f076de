package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/questline-games/manhunt/internal/smoothing"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetEliminationThresholdMeters(); got != 10.0 {
		t.Errorf("GetEliminationThresholdMeters() = %f, want 10.0", got)
	}
	if got := cfg.GetGPSAccuracyBufferMeters(); got != 5.0 {
		t.Errorf("GetGPSAccuracyBufferMeters() = %f, want 5.0", got)
	}
	if got := cfg.GetLocationStaleness(); got != 60*time.Second {
		t.Errorf("GetLocationStaleness() = %v, want 60s", got)
	}
	if got := cfg.GetSmoothingAlgorithm(); got != smoothing.LinearWeighted {
		t.Errorf("GetSmoothingAlgorithm() = %q, want linear_weighted", got)
	}
	if got := cfg.GetLocationHistorySize(); got != 3 {
		t.Errorf("GetLocationHistorySize() = %d, want 3", got)
	}
	if got := cfg.GetResultTTL(); got != 10*time.Second {
		t.Errorf("GetResultTTL() = %v, want 10s", got)
	}
	if got := cfg.GetAlertCooldown(); got != 60*time.Second {
		t.Errorf("GetAlertCooldown() = %v, want 60s", got)
	}
	if got := cfg.GetSweepInterval(); got != 5*time.Minute {
		t.Errorf("GetSweepInterval() = %v, want 5m", got)
	}
	if got := cfg.GetLargeGameThreshold(); got != 50 {
		t.Errorf("GetLargeGameThreshold() = %d, want 50", got)
	}
	if got := cfg.GetGridCellMultiplier(); got != 1.2 {
		t.Errorf("GetGridCellMultiplier() = %f, want 1.2", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Partial config: unnamed fields keep their defaults.
	testJSON := `{
  "elimination_threshold_meters": 25.0,
  "smoothing_algorithm": "exponential_decay",
  "location_staleness": "90s",
  "large_game_threshold": 100
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.EliminationThresholdMeters == nil || *cfg.EliminationThresholdMeters != 25.0 {
		t.Errorf("Expected EliminationThresholdMeters 25.0, got %v", cfg.EliminationThresholdMeters)
	}
	if got := cfg.GetSmoothingAlgorithm(); got != smoothing.ExponentialDecay {
		t.Errorf("GetSmoothingAlgorithm() = %q, want exponential_decay", got)
	}
	if got := cfg.GetLocationStaleness(); got != 90*time.Second {
		t.Errorf("GetLocationStaleness() = %v, want 90s", got)
	}
	if got := cfg.GetLargeGameThreshold(); got != 100 {
		t.Errorf("GetLargeGameThreshold() = %d, want 100", got)
	}

	// Unset field falls back to default.
	if got := cfg.GetGPSAccuracyBufferMeters(); got != 5.0 {
		t.Errorf("GetGPSAccuracyBufferMeters() = %f, want default 5.0", got)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadTuningConfig("config.yaml"); err == nil {
		t.Error("Expected error for non-JSON extension")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		cfg  TuningConfig
	}{
		{"zero threshold", TuningConfig{EliminationThresholdMeters: ptrFloat64(0)}},
		{"negative buffer", TuningConfig{GPSAccuracyBufferMeters: ptrFloat64(-1)}},
		{"unknown algorithm", TuningConfig{SmoothingAlgorithm: ptrString("kalman")}},
		{"history too small", TuningConfig{LocationHistorySize: ptrInt(1)}},
		{"decay out of range", TuningConfig{DecayFactor: ptrFloat64(1.5)}},
		{"bad duration", TuningConfig{ResultTTL: ptrString("ten seconds")}},
		{"grid multiplier below 1", TuningConfig{GridCellMultiplier: ptrFloat64(0.5)}},
	}
	for _, tc := range cases {
		if err := tc.cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() accepted invalid config", tc.name)
		}
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if got := cfg.GetEliminationThresholdMeters(); got != 10.0 {
		t.Errorf("defaults file elimination_threshold_meters = %f, want 10.0", got)
	}
	if got := cfg.GetSmoothingAlgorithm(); got != smoothing.LinearWeighted {
		t.Errorf("defaults file smoothing_algorithm = %q, want linear_weighted", got)
	}
	if got := cfg.GetCleanupThreshold(); got != time.Hour {
		t.Errorf("defaults file cleanup_threshold = %v, want 1h", got)
	}
}

func TestSmoothingConfigTranslation(t *testing.T) {
	cfg := TuningConfig{
		LocationHistorySize:  ptrInt(5),
		PredictionWindow:     ptrString("8s"),
		VelocityThresholdMps: ptrFloat64(1.0),
	}

	want := smoothing.Config{
		HistorySize:                 5,
		StalenessThreshold:          60 * time.Second,
		DecayFactor:                 0.5,
		PredictionWindow:            8 * time.Second,
		MinPointsForPrediction:      3,
		VelocityThresholdMps:        1.0,
		MaxPredictionDistanceMeters: 30.0,
		SmoothedTTL:                 2 * time.Second,
		PredictedTTL:                time.Second,
		CleanupThreshold:            time.Hour,
	}
	if diff := cmp.Diff(want, cfg.SmoothingConfig()); diff != "" {
		t.Errorf("SmoothingConfig() mismatch (-want +got):\n%s", diff)
	}
}
