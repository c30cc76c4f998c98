// Package robot provides the lift arm servo driver and the robot configuration.
package robot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/replaybot/pkg/control"
)

const (
	// manualMoveTime is how long a manual step is given to complete; one tick.
	manualMoveTime = 20 * time.Millisecond
	// rpmUnitsPerMs converts a velocity in rpm to angle units per millisecond.
	rpmUnitsPerMs = float64(UnitsPerRevolution) / 60000
)

// Arm is the lift arm, a single Feetech servo on its own bus.
type Arm struct {
	bus   *feetech.Bus
	servo *feetech.Servo

	mu          sync.Mutex
	calibration ArmCalibration
	holding     bool
}

// NewArm creates and initializes an arm connection.
func NewArm(ctx context.Context, port string, cal ArmCalibration) (*Arm, error) {
	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	found, err := bus.Scan(ctx, cal.ID, cal.ID)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("scan for servo %d: %w", cal.ID, err)
	}
	if len(found) == 0 {
		bus.Close()
		return nil, fmt.Errorf("servo %d not found on %s", cal.ID, port)
	}

	return &Arm{
		bus:         bus,
		servo:       feetech.NewServo(bus, found[0].ID, found[0].Model),
		calibration: cal,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Position reads the raw servo position.
func (a *Arm) Position(ctx context.Context) (int, error) {
	raw, err := a.servo.Position(ctx)
	if err != nil {
		return 0, fmt.Errorf("read position: %w", err)
	}
	return raw, nil
}

// Disable disables torque so the arm can be moved by hand.
func (a *Arm) Disable(ctx context.Context) error {
	return a.servo.Disable(ctx)
}

// Calibration returns the current calibration, including any re-homing.
func (a *Arm) Calibration() ArmCalibration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calibration
}

// Angle reads the arm angle relative to the homing position.
func (a *Arm) Angle(ctx context.Context) (int, error) {
	raw, err := a.Position(ctx)
	if err != nil {
		return 0, err
	}
	return a.Calibration().ToUnits(raw), nil
}

// ResetAngle makes the current position the zero angle.
func (a *Arm) ResetAngle(ctx context.Context) error {
	raw, err := a.Position(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.calibration.HomingOffset = raw
	a.mu.Unlock()
	return nil
}

// Move applies an arm command.
func (a *Arm) Move(ctx context.Context, cmd control.ArmCommand) error {
	switch cmd.Mode {
	case control.ArmUnchanged:
		return nil
	case control.ArmIdle:
		return a.hold(ctx)
	case control.ArmHoldAngle:
		return a.moveTo(ctx, moveTime(cmd.Move, cmd.Velocity), func(cal ArmCalibration, raw int) int {
			return angleTarget(cal, raw, cmd.Move)
		})
	case control.ArmManualForward, control.ArmManualReverse:
		// A manual step covers power ticks per control tick.
		return a.moveTo(ctx, manualMoveTime, func(cal ArmCalibration, raw int) int {
			return cal.Limit(raw + cmd.Power)
		})
	}
	return fmt.Errorf("unknown arm mode %v", cmd.Mode)
}

// angleTarget is the raw position move angle units away from raw, limited to
// the calibrated range.
func angleTarget(cal ArmCalibration, raw, move int) int {
	return cal.Limit(cal.ToRaw(cal.ToUnits(raw) + move))
}

func (a *Arm) moveTo(ctx context.Context, d time.Duration, next func(cal ArmCalibration, raw int) int) error {
	raw, err := a.Position(ctx)
	if err != nil {
		return err
	}
	target := next(a.Calibration(), raw)

	a.mu.Lock()
	a.holding = false
	a.mu.Unlock()

	if err := a.servo.SetPositionWithTime(ctx, target, int(d.Milliseconds())); err != nil {
		return fmt.Errorf("write position: %w", err)
	}
	return nil
}

// hold pins the arm where it is. The servo holds its goal position with
// torque on, so the goal is only rewritten when leaving another mode.
func (a *Arm) hold(ctx context.Context) error {
	a.mu.Lock()
	holding := a.holding
	a.mu.Unlock()
	if holding {
		return nil
	}

	raw, err := a.servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	if err := a.servo.Enable(ctx); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	if err := a.servo.SetPositionWithTime(ctx, raw, 0); err != nil {
		return fmt.Errorf("write position: %w", err)
	}

	a.mu.Lock()
	a.holding = true
	a.mu.Unlock()
	return nil
}

// moveTime is how long a relative move of units takes at velocity rpm.
func moveTime(units, velocity int) time.Duration {
	if velocity <= 0 {
		return manualMoveTime
	}
	ms := float64(abs(units)) / (float64(velocity) * rpmUnitsPerMs)
	return max(manualMoveTime, time.Duration(ms*float64(time.Millisecond)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
