package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/questline-games/manhunt/internal/smoothing"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the elimination
// engine's tuning parameters. Pointer fields distinguish "not set" from a
// zero value, so partial JSON files only override what they name.
type TuningConfig struct {
	// Elimination range params
	EliminationThresholdMeters *float64 `json:"elimination_threshold_meters,omitempty"`
	GPSAccuracyBufferMeters    *float64 `json:"gps_accuracy_buffer_meters,omitempty"`
	LocationStaleness          *string  `json:"location_staleness,omitempty"` // duration string like "60s"

	// Smoothing params
	SmoothingAlgorithm          *string  `json:"smoothing_algorithm,omitempty"`
	LocationHistorySize         *int     `json:"location_history_size,omitempty"`
	DecayFactor                 *float64 `json:"decay_factor,omitempty"`
	PredictionWindow            *string  `json:"prediction_window,omitempty"` // duration string like "5s"
	MinPointsForPrediction      *int     `json:"min_points_for_prediction,omitempty"`
	VelocityThresholdMps        *float64 `json:"velocity_threshold_mps,omitempty"`
	MaxPredictionDistanceMeters *float64 `json:"max_prediction_distance_meters,omitempty"`

	// Cache params
	SmoothedTTL      *string `json:"smoothed_ttl,omitempty"`
	PredictedTTL     *string `json:"predicted_ttl,omitempty"`
	ResultTTL        *string `json:"result_ttl,omitempty"`
	AlertCooldown    *string `json:"alert_cooldown,omitempty"`
	CleanupThreshold *string `json:"cleanup_threshold,omitempty"`
	SweepInterval    *string `json:"sweep_interval,omitempty"`

	// Batch params
	LargeGameThreshold *int     `json:"large_game_threshold,omitempty"`
	GridCellMultiplier *float64 `json:"grid_cell_multiplier,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// The Get* methods supply defaults for every unset field.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.EliminationThresholdMeters != nil && *c.EliminationThresholdMeters <= 0 {
		return fmt.Errorf("elimination_threshold_meters must be positive, got %f", *c.EliminationThresholdMeters)
	}

	if c.GPSAccuracyBufferMeters != nil && *c.GPSAccuracyBufferMeters < 0 {
		return fmt.Errorf("gps_accuracy_buffer_meters must be non-negative, got %f", *c.GPSAccuracyBufferMeters)
	}

	if c.SmoothingAlgorithm != nil {
		switch smoothing.Algorithm(*c.SmoothingAlgorithm) {
		case smoothing.SimpleAverage, smoothing.LinearWeighted, smoothing.ExponentialDecay, smoothing.Predictive:
		default:
			return fmt.Errorf("unknown smoothing_algorithm %q", *c.SmoothingAlgorithm)
		}
	}

	if c.LocationHistorySize != nil && *c.LocationHistorySize < 2 {
		return fmt.Errorf("location_history_size must be at least 2, got %d", *c.LocationHistorySize)
	}

	if c.DecayFactor != nil {
		if *c.DecayFactor <= 0 || *c.DecayFactor > 1 {
			return fmt.Errorf("decay_factor must be within (0, 1], got %f", *c.DecayFactor)
		}
	}

	if c.LargeGameThreshold != nil && *c.LargeGameThreshold < 1 {
		return fmt.Errorf("large_game_threshold must be at least 1, got %d", *c.LargeGameThreshold)
	}

	if c.GridCellMultiplier != nil && *c.GridCellMultiplier < 1.0 {
		return fmt.Errorf("grid_cell_multiplier must be at least 1.0, got %f", *c.GridCellMultiplier)
	}

	// Validate every duration string can be parsed if set.
	durations := map[string]*string{
		"location_staleness": c.LocationStaleness,
		"prediction_window":  c.PredictionWindow,
		"smoothed_ttl":       c.SmoothedTTL,
		"predicted_ttl":      c.PredictedTTL,
		"result_ttl":         c.ResultTTL,
		"alert_cooldown":     c.AlertCooldown,
		"cleanup_threshold":  c.CleanupThreshold,
		"sweep_interval":     c.SweepInterval,
	}
	for name, val := range durations {
		if val != nil && *val != "" {
			if _, err := time.ParseDuration(*val); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *val, err)
			}
		}
	}

	return nil
}

// durationOr parses a duration field, falling back to def when the field is
// unset, empty, or malformed.
func durationOr(val *string, def time.Duration) time.Duration {
	if val == nil || *val == "" {
		return def
	}
	d, err := time.ParseDuration(*val)
	if err != nil {
		return def
	}
	return d
}

// GetEliminationThresholdMeters returns the global fallback elimination
// range or the default.
func (c *TuningConfig) GetEliminationThresholdMeters() float64 {
	if c.EliminationThresholdMeters == nil {
		return 10.0
	}
	return *c.EliminationThresholdMeters
}

// GetGPSAccuracyBufferMeters returns the gps_accuracy_buffer_meters value or the default.
func (c *TuningConfig) GetGPSAccuracyBufferMeters() float64 {
	if c.GPSAccuracyBufferMeters == nil {
		return 5.0
	}
	return *c.GPSAccuracyBufferMeters
}

// GetLocationStaleness returns the location_staleness value or the default.
func (c *TuningConfig) GetLocationStaleness() time.Duration {
	return durationOr(c.LocationStaleness, 60*time.Second)
}

// GetSmoothingAlgorithm returns the configured algorithm or the default.
func (c *TuningConfig) GetSmoothingAlgorithm() smoothing.Algorithm {
	if c.SmoothingAlgorithm == nil || *c.SmoothingAlgorithm == "" {
		return smoothing.LinearWeighted
	}
	return smoothing.Algorithm(*c.SmoothingAlgorithm)
}

// GetLocationHistorySize returns the location_history_size value or the default.
func (c *TuningConfig) GetLocationHistorySize() int {
	if c.LocationHistorySize == nil {
		return 3
	}
	return *c.LocationHistorySize
}

// GetDecayFactor returns the decay_factor value or the default.
func (c *TuningConfig) GetDecayFactor() float64 {
	if c.DecayFactor == nil {
		return 0.5
	}
	return *c.DecayFactor
}

// GetPredictionWindow returns the prediction_window value or the default.
func (c *TuningConfig) GetPredictionWindow() time.Duration {
	return durationOr(c.PredictionWindow, 5*time.Second)
}

// GetMinPointsForPrediction returns the min_points_for_prediction value or the default.
func (c *TuningConfig) GetMinPointsForPrediction() int {
	if c.MinPointsForPrediction == nil {
		return 3
	}
	return *c.MinPointsForPrediction
}

// GetVelocityThresholdMps returns the velocity_threshold_mps value or the default.
func (c *TuningConfig) GetVelocityThresholdMps() float64 {
	if c.VelocityThresholdMps == nil {
		return 0.5
	}
	return *c.VelocityThresholdMps
}

// GetMaxPredictionDistanceMeters returns the max_prediction_distance_meters value or the default.
func (c *TuningConfig) GetMaxPredictionDistanceMeters() float64 {
	if c.MaxPredictionDistanceMeters == nil {
		return 30.0
	}
	return *c.MaxPredictionDistanceMeters
}

// GetSmoothedTTL returns the smoothed_ttl value or the default.
func (c *TuningConfig) GetSmoothedTTL() time.Duration {
	return durationOr(c.SmoothedTTL, 2*time.Second)
}

// GetPredictedTTL returns the predicted_ttl value or the default.
func (c *TuningConfig) GetPredictedTTL() time.Duration {
	return durationOr(c.PredictedTTL, time.Second)
}

// GetResultTTL returns the result_ttl value or the default.
func (c *TuningConfig) GetResultTTL() time.Duration {
	return durationOr(c.ResultTTL, 10*time.Second)
}

// GetAlertCooldown returns the alert_cooldown value or the default.
func (c *TuningConfig) GetAlertCooldown() time.Duration {
	return durationOr(c.AlertCooldown, 60*time.Second)
}

// GetCleanupThreshold returns the cleanup_threshold value or the default.
func (c *TuningConfig) GetCleanupThreshold() time.Duration {
	return durationOr(c.CleanupThreshold, time.Hour)
}

// GetSweepInterval returns the sweep_interval value or the default.
func (c *TuningConfig) GetSweepInterval() time.Duration {
	return durationOr(c.SweepInterval, 5*time.Minute)
}

// GetLargeGameThreshold returns the player count at which proximity checks
// switch to spatial-grid batch processing, or the default.
func (c *TuningConfig) GetLargeGameThreshold() int {
	if c.LargeGameThreshold == nil {
		return 50
	}
	return *c.LargeGameThreshold
}

// GetGridCellMultiplier returns the grid_cell_multiplier value or the default.
func (c *TuningConfig) GetGridCellMultiplier() float64 {
	if c.GridCellMultiplier == nil {
		return 1.2
	}
	return *c.GridCellMultiplier
}

// SmoothingConfig translates the tuning values into the smoother's own
// config struct.
func (c *TuningConfig) SmoothingConfig() smoothing.Config {
	return smoothing.Config{
		HistorySize:                 c.GetLocationHistorySize(),
		StalenessThreshold:          c.GetLocationStaleness(),
		DecayFactor:                 c.GetDecayFactor(),
		PredictionWindow:            c.GetPredictionWindow(),
		MinPointsForPrediction:      c.GetMinPointsForPrediction(),
		VelocityThresholdMps:        c.GetVelocityThresholdMps(),
		MaxPredictionDistanceMeters: c.GetMaxPredictionDistanceMeters(),
		SmoothedTTL:                 c.GetSmoothedTTL(),
		PredictedTTL:                c.GetPredictedTTL(),
		CleanupThreshold:            c.GetCleanupThreshold(),
	}
}
