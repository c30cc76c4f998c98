package sim

import (
	"context"
	"testing"

	"github.com/gwillem/replaybot/pkg/control"
)

func TestRobot_Drive(t *testing.T) {
	r := New()
	ctx := context.Background()
	r.Drive(ctx, 200, -300)

	s := r.Snapshot()
	if s.LeftPower != 127 || s.RightPower != -127 {
		t.Errorf("drive = (%d,%d), want clamped to (127,-127)", s.LeftPower, s.RightPower)
	}
}

func TestRobot_Conveyor(t *testing.T) {
	r := New()
	ctx := context.Background()

	tests := []struct {
		mode    control.ConveyorMode
		power   float64
		current int
	}{
		{control.ConveyorForward, forwardPower, forwardCurrent},
		{control.ConveyorForwardSlow, slowPower, slowCurrent},
		{control.ConveyorReverseSlow, slowPower, -slowCurrent},
		{control.ConveyorBrake, 0, 0},
	}

	for _, tt := range tests {
		r.SetConveyor(ctx, tt.mode)
		power, _ := r.ConveyorPower(ctx)
		current, _ := r.ConveyorCurrent(ctx)
		if power != tt.power || current != tt.current {
			t.Errorf("%s: power=%v current=%d, want %v %d", tt.mode, power, current, tt.power, tt.current)
		}
	}

	r.Jam(true)
	if current, _ := r.ConveyorCurrent(ctx); current != jamCurrent {
		t.Errorf("jammed current = %d, want %d", current, jamCurrent)
	}
	if r.Snapshot().Conveyor != control.ConveyorStopped {
		t.Errorf("brake should leave conveyor stopped")
	}
}

func TestRobot_Arm(t *testing.T) {
	r := New()
	ctx := context.Background()

	r.SetArm(ctx, control.ArmCommand{Mode: control.ArmHoldAngle, Move: 1500, Velocity: 100})
	r.SetArm(ctx, control.ArmCommand{Mode: control.ArmManualReverse, Power: -30})
	r.SetArm(ctx, control.ArmCommand{Mode: control.ArmIdle})

	angle, _ := r.ArmAngle(ctx)
	if angle != 1497 {
		t.Errorf("angle = %d, want 1497", angle)
	}

	r.ResetArmAngle(ctx)
	if angle, _ := r.ArmAngle(ctx); angle != 0 {
		t.Errorf("angle after reset = %d, want 0", angle)
	}
}

type fixedArm struct {
	moves int
}

func (a *fixedArm) Angle(ctx context.Context) (int, error) {
	return 42, nil
}

func (a *fixedArm) ResetAngle(ctx context.Context) error {
	return nil
}

func (a *fixedArm) Move(ctx context.Context, cmd control.ArmCommand) error {
	a.moves++
	return nil
}

func TestRobot_WithArm(t *testing.T) {
	arm := &fixedArm{}
	r := New(WithArm(arm))
	ctx := context.Background()

	r.SetArm(ctx, control.ArmCommand{Mode: control.ArmIdle})
	if arm.moves != 1 {
		t.Errorf("moves = %d, want 1", arm.moves)
	}
	if angle, _ := r.ArmAngle(ctx); angle != 42 {
		t.Errorf("angle = %d, want 42", angle)
	}
}

func TestRobot_History(t *testing.T) {
	r := New()
	ctx := context.Background()
	r.Drive(ctx, 1, 2)
	r.SetClamp(ctx, control.ClampClosed)

	h := r.History()
	if len(h) != 2 {
		t.Fatalf("history has %d calls, want 2", len(h))
	}
	if h[0].String() != "drive(1,2)" || h[1].String() != "clamp(closed)" {
		t.Errorf("history = %v", h)
	}
}
