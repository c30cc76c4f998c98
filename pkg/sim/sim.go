// Package sim provides a simulated robot for dry runs and tests.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/gwillem/replaybot/pkg/control"
)

// Conveyor readings per mode.
const (
	forwardPower   = 11.0 // watts
	slowPower      = 7.5
	forwardCurrent = 1800 // milliamps
	slowCurrent    = 1200
	jamCurrent     = 6500
)

// ArmActuator is a lift arm with an angle sensor.
type ArmActuator interface {
	Angle(ctx context.Context) (int, error)
	ResetAngle(ctx context.Context) error
	Move(ctx context.Context, cmd control.ArmCommand) error
}

// Call is one recorded actuator call.
type Call struct {
	Name string
	Args string
}

func (c Call) String() string {
	return c.Name + "(" + c.Args + ")"
}

// Robot is a simulated robot. It is safe for concurrent use.
type Robot struct {
	mu sync.Mutex

	left, right int
	conveyor    control.ConveyorMode
	jammed      bool
	clamp       control.ClampState
	arm         ArmActuator

	history []Call
}

// Option configures a Robot.
type Option func(*Robot)

// WithArm replaces the simulated arm with a real one.
func WithArm(arm ArmActuator) Option {
	return func(r *Robot) {
		r.arm = arm
	}
}

// New creates a simulated robot at rest.
func New(opts ...Option) *Robot {
	r := &Robot{
		conveyor: control.ConveyorStopped,
		arm:      &simArm{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Robot) record(name, format string, args ...any) {
	r.history = append(r.history, Call{Name: name, Args: fmt.Sprintf(format, args...)})
}

func (r *Robot) Drive(ctx context.Context, left, right int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left, r.right = clampPower(left), clampPower(right)
	r.record("drive", "%d,%d", r.left, r.right)
	return nil
}

func (r *Robot) SetConveyor(ctx context.Context, mode control.ConveyorMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode == control.ConveyorBrake {
		r.conveyor = control.ConveyorStopped
	} else {
		r.conveyor = mode
	}
	r.record("conveyor", "%s", mode)
	return nil
}

func (r *Robot) ConveyorPower(ctx context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.conveyor {
	case control.ConveyorForward:
		return forwardPower, nil
	case control.ConveyorForwardSlow, control.ConveyorReverseSlow:
		return slowPower, nil
	}
	return 0, nil
}

func (r *Robot) ConveyorCurrent(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jammed {
		return jamCurrent, nil
	}
	switch r.conveyor {
	case control.ConveyorForward:
		return forwardCurrent, nil
	case control.ConveyorForwardSlow:
		return slowCurrent, nil
	case control.ConveyorReverseSlow:
		return -slowCurrent, nil
	}
	return 0, nil
}

func (r *Robot) SetClamp(ctx context.Context, state control.ClampState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clamp = state
	r.record("clamp", "%s", state)
	return nil
}

func (r *Robot) SetArm(ctx context.Context, cmd control.ArmCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("arm", "%s", cmd)
	return r.arm.Move(ctx, cmd)
}

func (r *Robot) ArmAngle(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.arm.Angle(ctx)
}

func (r *Robot) ResetArmAngle(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("reset_arm", "")
	return r.arm.ResetAngle(ctx)
}

// Jam simulates something stuck in the conveyor, raising its current draw.
func (r *Robot) Jam(jammed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jammed = jammed
}

// Snapshot is the simulated robot's physical state.
type Snapshot struct {
	LeftPower, RightPower int
	Conveyor              control.ConveyorMode
	Clamp                 control.ClampState
}

// Snapshot returns the current physical state.
func (r *Robot) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		LeftPower:  r.left,
		RightPower: r.right,
		Conveyor:   r.conveyor,
		Clamp:      r.clamp,
	}
}

// History returns every actuator call in order.
func (r *Robot) History() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.history...)
}

func clampPower(p int) int {
	return max(-127, min(127, p))
}

// simArm moves instantly: relative moves land exactly, manual moves advance
// by a tenth of their power per command.
type simArm struct {
	angle int
}

func (a *simArm) Angle(ctx context.Context) (int, error) {
	return a.angle, nil
}

func (a *simArm) ResetAngle(ctx context.Context) error {
	a.angle = 0
	return nil
}

func (a *simArm) Move(ctx context.Context, cmd control.ArmCommand) error {
	switch cmd.Mode {
	case control.ArmHoldAngle:
		a.angle += cmd.Move
	case control.ArmManualForward, control.ArmManualReverse:
		a.angle += cmd.Power / 10
	}
	return nil
}
