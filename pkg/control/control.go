// Package control maps one frame of controller input to actuator commands.
//
// Step is the single decision function shared by live driving, recording and
// replay. It performs no I/O: sensor values come in as a Sensors snapshot and
// commands go out as a Commands value for the caller to apply.
package control

import (
	"fmt"

	"github.com/gwillem/replaybot/pkg/frame"
)

// ConveyorMode is the command sent to the conveyor motor.
type ConveyorMode int

const (
	// ConveyorUnchanged means no command is sent this tick.
	ConveyorUnchanged ConveyorMode = iota
	ConveyorStopped
	ConveyorForward
	ConveyorForwardSlow
	ConveyorReverseSlow
	ConveyorBrake
)

func (m ConveyorMode) String() string {
	switch m {
	case ConveyorUnchanged:
		return "unchanged"
	case ConveyorStopped:
		return "stopped"
	case ConveyorForward:
		return "forward"
	case ConveyorForwardSlow:
		return "forward-slow"
	case ConveyorReverseSlow:
		return "reverse-slow"
	case ConveyorBrake:
		return "brake"
	}
	return fmt.Sprintf("ConveyorMode(%d)", int(m))
}

// ClampState is the position of the pneumatic clamp.
type ClampState bool

const (
	ClampOpen   ClampState = false
	ClampClosed ClampState = true
)

func (c ClampState) String() string {
	if c == ClampClosed {
		return "closed"
	}
	return "open"
}

// ArmMode is the kind of command sent to the lift arm.
type ArmMode int

const (
	// ArmUnchanged means no command is sent this tick.
	ArmUnchanged ArmMode = iota
	ArmIdle
	ArmManualForward
	ArmManualReverse
	ArmHoldAngle
)

func (m ArmMode) String() string {
	switch m {
	case ArmUnchanged:
		return "unchanged"
	case ArmIdle:
		return "idle"
	case ArmManualForward:
		return "manual-forward"
	case ArmManualReverse:
		return "manual-reverse"
	case ArmHoldAngle:
		return "hold-angle"
	}
	return fmt.Sprintf("ArmMode(%d)", int(m))
}

// ArmCommand is a lift arm command.
//
// For ArmHoldAngle, Move is a relative move in angle units and Velocity its
// speed. For the manual modes, Power is the signed motor power. ArmIdle stops
// the motor with the hold brake engaged.
type ArmCommand struct {
	Mode     ArmMode
	Move     int
	Velocity int
	Power    int
}

func (c ArmCommand) String() string {
	switch c.Mode {
	case ArmHoldAngle:
		return fmt.Sprintf("%s(%+d@%d)", c.Mode, c.Move, c.Velocity)
	case ArmManualForward, ArmManualReverse:
		return fmt.Sprintf("%s(%d)", c.Mode, c.Power)
	}
	return c.Mode.String()
}

// Commands is the full set of actuator commands for one tick.
type Commands struct {
	LeftPower  int
	RightPower int
	Conveyor   ConveyorMode
	Clamp      ClampState
	// ClampToggled is set on the tick the clamp changes position.
	ClampToggled bool
	Arm          ArmCommand
}

func (c Commands) String() string {
	return fmt.Sprintf("drive(%d,%d) conveyor=%s clamp=%s arm=%s",
		c.LeftPower, c.RightPower, c.Conveyor, c.Clamp, c.Arm)
}

// State is the control state carried between ticks of one session.
// The zero value is the start-of-session state.
type State struct {
	ClampEngaged      bool
	ClampWasPressed   bool
	ConveyorCommanded bool
}

// Sensors is the last known sensor snapshot used by Step.
type Sensors struct {
	ConveyorPower   float64 // watts
	ConveyorCurrent int     // milliamps
	ArmAngle        int     // angle units, 100 per degree
}

// Tuning holds the constants used by Step.
type Tuning struct {
	IdealAngle          int     `json:"ideal_angle" yaml:"ideal_angle"`
	ConveyorFullPower   int     `json:"conveyor_full_power" yaml:"conveyor_full_power"`
	ConveyorSlowVoltage int     `json:"conveyor_slow_voltage" yaml:"conveyor_slow_voltage"`
	PowerThreshold      float64 `json:"power_threshold" yaml:"power_threshold"`
	BrakeCurrent        int     `json:"brake_current" yaml:"brake_current"`
	ArmManualPower      int     `json:"arm_manual_power" yaml:"arm_manual_power"`
	ArmMoveVelocity     int     `json:"arm_move_velocity" yaml:"arm_move_velocity"`
}

// DefaultTuning returns the competition robot's constants.
func DefaultTuning() Tuning {
	return Tuning{
		IdealAngle:          1500, // 15 degrees
		ConveyorFullPower:   127,
		ConveyorSlowVoltage: 9000, // of 12000 mV
		PowerThreshold:      0.1,
		BrakeCurrent:        5000,
		ArmManualPower:      30,
		ArmMoveVelocity:     100,
	}
}

// Step computes the commands for one tick and the state for the next.
func Step(f frame.Frame, s Sensors, st State, t Tuning) (Commands, State) {
	var cmd Commands

	// Arcade drive. Output limits are enforced by the motors.
	cmd.LeftPower = f.Drive - f.Turn
	cmd.RightPower = f.Drive + f.Turn

	cmd.Conveyor, st.ConveyorCommanded = conveyor(f.Buttons, s, st.ConveyorCommanded, t)

	x := f.Buttons.Has(frame.X)
	if x && !st.ClampWasPressed {
		st.ClampEngaged = !st.ClampEngaged
		cmd.ClampToggled = true
	}
	st.ClampWasPressed = x
	cmd.Clamp = ClampState(st.ClampEngaged)

	cmd.Arm = arm(f.Buttons, s, t)

	return cmd, st
}

func conveyor(b frame.Buttons, s Sensors, commanded bool, t Tuning) (ConveyorMode, bool) {
	switch {
	case b.Has(frame.B) && s.ConveyorPower > t.PowerThreshold:
		return ConveyorBrake, false
	case b.Has(frame.A):
		return ConveyorForward, true
	case b.Has(frame.R1):
		return ConveyorForwardSlow, false
	case b.Has(frame.L1):
		return ConveyorReverseSlow, false
	case abs(s.ConveyorCurrent) <= t.BrakeCurrent && !commanded:
		// Stops a conveyor left coasting after R1/L1 without fighting an
		// A-started run.
		return ConveyorBrake, commanded
	}
	return ConveyorUnchanged, commanded
}

func arm(b frame.Buttons, s Sensors, t Tuning) ArmCommand {
	switch {
	case b.Has(frame.Y):
		if s.ArmAngle == t.IdealAngle {
			return ArmCommand{Mode: ArmUnchanged}
		}
		// Relative move is target plus current angle, matching the
		// competition robot's firmware.
		return ArmCommand{
			Mode:     ArmHoldAngle,
			Move:     t.IdealAngle + s.ArmAngle,
			Velocity: t.ArmMoveVelocity,
		}
	case b.Has(frame.L2):
		return ArmCommand{Mode: ArmManualReverse, Power: -t.ArmManualPower}
	case b.Has(frame.R2):
		return ArmCommand{Mode: ArmManualForward, Power: t.ArmManualPower}
	}
	return ArmCommand{Mode: ArmIdle}
}

// Safe returns the commands applied when a mode ends or the robot is disabled.
func Safe() Commands {
	return Commands{
		Conveyor: ConveyorBrake,
		Arm:      ArmCommand{Mode: ArmIdle},
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
