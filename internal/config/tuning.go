package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for analysis parameters.
// Every field is optional; the Get* methods return the built-in default
// when a field is omitted, so partial files are safe.
type TuningConfig struct {
	// Port proximity and episode arming
	ProximityThresholdPx *float64 `json:"proximity_threshold_px,omitempty"`
	ArmingFrames         *int     `json:"arming_frames,omitempty"`

	// Duration cap
	MaxTrajectorySeconds *float64 `json:"max_trajectory_seconds,omitempty"`
	FrameRateFPS         *float64 `json:"frame_rate_fps,omitempty"`

	// Camera calibration: CalibrationPixels span CalibrationMeters
	CalibrationPixels *float64 `json:"calibration_pixels,omitempty"`
	CalibrationMeters *float64 `json:"calibration_meters,omitempty"`

	// Confidence filtering
	PortConfidenceThreshold *float64 `json:"port_confidence_threshold,omitempty"`
	NoseConfidenceThreshold *float64 `json:"nose_confidence_threshold,omitempty"`

	// Resampling and dispersion
	ResamplePoints  *int `json:"resample_points,omitempty"`
	DispersionIndex *int `json:"dispersion_index,omitempty"` // unset: ResamplePoints/2

	// Port geometry check: ports must be more than factor x threshold apart
	MinPortSeparationFactor *float64 `json:"min_port_separation_factor,omitempty"`

	// Batch execution
	Workers *int `json:"workers,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/behaviour/l3segments/
		"../../../../" + DefaultConfigPath,    // from internal/behaviour/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // even deeper
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
	positive := []struct {
		name string
		v    *float64
	}{
		{"proximity_threshold_px", c.ProximityThresholdPx},
		{"max_trajectory_seconds", c.MaxTrajectorySeconds},
		{"frame_rate_fps", c.FrameRateFPS},
		{"calibration_pixels", c.CalibrationPixels},
		{"calibration_meters", c.CalibrationMeters},
		{"min_port_separation_factor", c.MinPortSeparationFactor},
	}
	for _, p := range positive {
		if p.v != nil && (*p.v <= 0 || math.IsNaN(*p.v) || math.IsInf(*p.v, 0)) {
			return fmt.Errorf("%s must be a positive number, got %v", p.name, *p.v)
		}
	}

	for name, v := range map[string]*float64{
		"port_confidence_threshold": c.PortConfidenceThreshold,
		"nose_confidence_threshold": c.NoseConfidenceThreshold,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.ArmingFrames != nil && *c.ArmingFrames < 1 {
		return fmt.Errorf("arming_frames must be at least 1, got %d", *c.ArmingFrames)
	}
	if c.ResamplePoints != nil && *c.ResamplePoints < 2 {
		return fmt.Errorf("resample_points must be at least 2, got %d", *c.ResamplePoints)
	}
	if c.DispersionIndex != nil {
		if *c.DispersionIndex < 0 || *c.DispersionIndex >= c.GetResamplePoints() {
			return fmt.Errorf("dispersion_index must be in [0, %d), got %d", c.GetResamplePoints(), *c.DispersionIndex)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.MaxTrajectoryFrames() < 1 {
		return fmt.Errorf("max_trajectory_seconds x frame_rate_fps must allow at least one frame")
	}

	return nil
}

// GetProximityThresholdPx returns the port entry radius in pixels.
func (c *TuningConfig) GetProximityThresholdPx() float64 {
	if c.ProximityThresholdPx == nil {
		return 5
	}
	return *c.ProximityThresholdPx
}

// GetArmingFrames returns the consecutive in-center frames needed to arm an episode.
func (c *TuningConfig) GetArmingFrames() int {
	if c.ArmingFrames == nil {
		return 5
	}
	return *c.ArmingFrames
}

// GetMaxTrajectorySeconds returns the trajectory duration cap.
func (c *TuningConfig) GetMaxTrajectorySeconds() float64 {
	if c.MaxTrajectorySeconds == nil {
		return 4
	}
	return *c.MaxTrajectorySeconds
}

// GetFrameRateFPS returns the camera frame rate.
func (c *TuningConfig) GetFrameRateFPS() float64 {
	if c.FrameRateFPS == nil {
		return 84
	}
	return *c.FrameRateFPS
}

// GetCalibrationPixels returns the pixel span of the calibration distance.
func (c *TuningConfig) GetCalibrationPixels() float64 {
	if c.CalibrationPixels == nil {
		return 325
	}
	return *c.CalibrationPixels
}

// GetCalibrationMeters returns the physical length of the calibration distance.
func (c *TuningConfig) GetCalibrationMeters() float64 {
	if c.CalibrationMeters == nil {
		return 0.320
	}
	return *c.CalibrationMeters
}

// GetPortConfidenceThreshold returns the minimum likelihood for port samples.
func (c *TuningConfig) GetPortConfidenceThreshold() float64 {
	if c.PortConfidenceThreshold == nil {
		return 0.98
	}
	return *c.PortConfidenceThreshold
}

// GetNoseConfidenceThreshold returns the minimum likelihood for nose samples.
// Zero disables nose filtering.
func (c *TuningConfig) GetNoseConfidenceThreshold() float64 {
	if c.NoseConfidenceThreshold == nil {
		return 0
	}
	return *c.NoseConfidenceThreshold
}

// GetResamplePoints returns the common length trajectories are resampled to.
func (c *TuningConfig) GetResamplePoints() int {
	if c.ResamplePoints == nil {
		return 10
	}
	return *c.ResamplePoints
}

// GetDispersionIndex returns the resampled index at which dispersion is
// measured, defaulting to the midpoint.
func (c *TuningConfig) GetDispersionIndex() int {
	if c.DispersionIndex == nil {
		return c.GetResamplePoints() / 2
	}
	return *c.DispersionIndex
}

// GetMinPortSeparationFactor returns the multiple of the proximity threshold
// that every port pair must exceed.
func (c *TuningConfig) GetMinPortSeparationFactor() float64 {
	if c.MinPortSeparationFactor == nil {
		return 2
	}
	return *c.MinPortSeparationFactor
}

// GetWorkers returns the number of recordings processed concurrently.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// MaxTrajectoryFrames returns the duration cap in frames.
func (c *TuningConfig) MaxTrajectoryFrames() int {
	return int(c.GetMaxTrajectorySeconds() * c.GetFrameRateFPS())
}

// PixelsPerMeter returns the calibration scale.
func (c *TuningConfig) PixelsPerMeter() float64 {
	return c.GetCalibrationPixels() / c.GetCalibrationMeters()
}
