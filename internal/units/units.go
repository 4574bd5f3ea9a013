// Package units provides camera calibration and unit conversion for
// trajectory metrics.
package units

import "fmt"

// Speed unit constants
const (
	MPS  = "mps"  // metres per second
	CMPS = "cmps" // centimetres per second
	MMPS = "mmps" // millimetres per second
)

// Distance unit constants
const (
	M  = "m"
	CM = "cm"
	MM = "mm"
)

// ValidSpeedUnits contains all valid speed unit values
var ValidSpeedUnits = []string{MPS, CMPS, MMPS}

// ValidDistanceUnits contains all valid distance unit values
var ValidDistanceUnits = []string{M, CM, MM}

// IsValidSpeed checks if the given unit is a known speed unit
func IsValidSpeed(unit string) bool {
	for _, u := range ValidSpeedUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// IsValidDistance checks if the given unit is a known distance unit
func IsValidDistance(unit string) bool {
	for _, u := range ValidDistanceUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed from metres per second to the target units.
// Summaries store speeds in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case CMPS:
		return speedMPS * 100
	case MMPS:
		return speedMPS * 1000
	default:
		return speedMPS
	}
}

// ConvertDistance converts a distance from millimetres to the target units.
// Summaries store distances in mm.
func ConvertDistance(distMM float64, targetUnits string) float64 {
	switch targetUnits {
	case M:
		return distMM / 1000
	case CM:
		return distMM / 10
	default:
		return distMM
	}
}

// Calibration maps image pixels to physical length: Pixels image pixels span
// Meters metres in the arena plane.
type Calibration struct {
	Pixels float64
	Meters float64
}

// DefaultCalibration is the camera setup of the two-odour recordings:
// 325 px per 0.320 m.
var DefaultCalibration = Calibration{Pixels: 325, Meters: 0.320}

// Validate rejects non-positive calibration values.
func (c Calibration) Validate() error {
	if c.Pixels <= 0 || c.Meters <= 0 {
		return fmt.Errorf("calibration must be positive, got %v px / %v m", c.Pixels, c.Meters)
	}
	return nil
}

// PixelsPerMeter returns the scale factor.
func (c Calibration) PixelsPerMeter() float64 {
	return c.Pixels / c.Meters
}

// PixelsToMeters converts a pixel length to metres.
func (c Calibration) PixelsToMeters(px float64) float64 {
	return px / c.PixelsPerMeter()
}

// PixelsToMillimeters converts a pixel length to millimeters.
func (c Calibration) PixelsToMillimeters(px float64) float64 {
	return c.PixelsToMeters(px) * 1000
}

// PixelsPerFrameToMPS converts a per-frame pixel displacement to m/s.
func (c Calibration) PixelsPerFrameToMPS(pxPerFrame, fps float64) float64 {
	return c.PixelsToMeters(pxPerFrame * fps)
}
