package robot

import (
	"testing"
	"time"
)

func TestArmCalibration_ToUnits(t *testing.T) {
	cal := ArmCalibration{HomingOffset: 2048}

	tests := []struct {
		raw      int
		expected int
	}{
		{2048, 0},          // home -> 0
		{3072, 9000},       // quarter turn -> 90 degrees
		{1024, -9000},      // quarter turn back
		{2048 + 171, 1503}, // about 15 degrees
	}

	for _, tt := range tests {
		got := cal.ToUnits(tt.raw)
		if got != tt.expected {
			t.Errorf("ToUnits(%d) = %d, want %d", tt.raw, got, tt.expected)
		}
	}
}

func TestArmCalibration_ToRaw(t *testing.T) {
	cal := ArmCalibration{HomingOffset: 1000}

	tests := []struct {
		units    int
		expected int
	}{
		{0, 1000},
		{9000, 2024},
		{-9000, -24},
		{1500, 1171},
	}

	for _, tt := range tests {
		got := cal.ToRaw(tt.units)
		if got != tt.expected {
			t.Errorf("ToRaw(%d) = %d, want %d", tt.units, got, tt.expected)
		}
	}
}

func TestArmCalibration_RoundTrip(t *testing.T) {
	cal := ArmCalibration{HomingOffset: 823}

	// Test round-trip: raw -> units -> raw
	for raw := 0; raw < TicksPerRevolution; raw += 37 {
		back := cal.ToRaw(cal.ToUnits(raw))
		if back != raw {
			t.Errorf("Round-trip failed: %d -> %d -> %d", raw, cal.ToUnits(raw), back)
		}
	}
}

func TestAngleTarget(t *testing.T) {
	cal := ArmCalibration{ID: 1, HomingOffset: 1000, RangeMin: 500, RangeMax: 3000}

	tests := []struct {
		raw, move, expected int
	}{
		{1000, 1500, 1171},
		{1171, 9000, 2195},
		{1171, -1503, 1000},
		{2900, 9000, 3000}, // limited to the range
	}
	for _, tt := range tests {
		if got := angleTarget(cal, tt.raw, tt.move); got != tt.expected {
			t.Errorf("angleTarget(%d, %d) = %d, want %d", tt.raw, tt.move, got, tt.expected)
		}
	}
}

func TestArmCalibration_Limit(t *testing.T) {
	cal := ArmCalibration{ID: 1, RangeMin: 1000, RangeMax: 3000}
	if !cal.IsCalibrated() {
		t.Fatal("IsCalibrated() = false")
	}

	tests := []struct {
		raw, expected int
	}{
		{500, 1000},
		{2000, 2000},
		{3500, 3000},
	}
	for _, tt := range tests {
		if got := cal.Limit(tt.raw); got != tt.expected {
			t.Errorf("Limit(%d) = %d, want %d", tt.raw, got, tt.expected)
		}
	}

	var uncal ArmCalibration
	if uncal.IsCalibrated() {
		t.Error("zero calibration reports calibrated")
	}
	if got := uncal.Limit(-5); got != -5 {
		t.Errorf("uncalibrated Limit(-5) = %d", got)
	}
}

func TestMoveTime(t *testing.T) {
	tests := []struct {
		units, velocity int
		expected        time.Duration
	}{
		{36000, 100, 600 * time.Millisecond}, // one revolution at 100 rpm
		{-36000, 100, 600 * time.Millisecond},
		{1500, 100, 25 * time.Millisecond},
		{10, 100, manualMoveTime}, // never shorter than a tick
		{1500, 0, manualMoveTime},
	}

	for _, tt := range tests {
		if got := moveTime(tt.units, tt.velocity); got != tt.expected {
			t.Errorf("moveTime(%d, %d) = %v, want %v", tt.units, tt.velocity, got, tt.expected)
		}
	}
}
