package robot

import "math"

const (
	// TicksPerRevolution is the Feetech STS encoder resolution.
	TicksPerRevolution = 4096
	// UnitsPerRevolution is the arm angle resolution used by the controller
	// (hundredths of a degree, as reported by the rotation sensor).
	UnitsPerRevolution = 36000
)

// ArmCalibration holds calibration data for the lift arm servo.
type ArmCalibration struct {
	ID           int `json:"id" yaml:"id"`
	HomingOffset int `json:"homing_offset" yaml:"homing_offset"`
	RangeMin     int `json:"range_min" yaml:"range_min"`
	RangeMax     int `json:"range_max" yaml:"range_max"`
}

// IsCalibrated returns true if a range of motion has been recorded.
func (c ArmCalibration) IsCalibrated() bool {
	return c.ID > 0 && c.RangeMax > c.RangeMin
}

// ToUnits converts a raw servo position to an angle relative to the homing offset.
func (c ArmCalibration) ToUnits(raw int) int {
	return int(math.Round(float64(raw-c.HomingOffset) * UnitsPerRevolution / TicksPerRevolution))
}

// ToRaw converts an angle relative to the homing offset to a raw servo position.
func (c ArmCalibration) ToRaw(units int) int {
	return c.HomingOffset + TicksDelta(units)
}

// TicksDelta converts an angle difference to a servo tick difference.
func TicksDelta(units int) int {
	return int(math.Round(float64(units) * TicksPerRevolution / UnitsPerRevolution))
}

// Limit clamps a raw position to the calibrated range of motion. An
// uncalibrated arm is not limited.
func (c ArmCalibration) Limit(raw int) int {
	if c.RangeMax <= c.RangeMin {
		return raw
	}
	return max(c.RangeMin, min(c.RangeMax, raw))
}
