package control

import (
	"testing"

	"github.com/gwillem/replaybot/pkg/frame"
)

func press(bs ...frame.Button) frame.Buttons {
	var s frame.Buttons
	for _, b := range bs {
		s = s.With(b)
	}
	return s
}

func TestStep_Drive(t *testing.T) {
	tests := []struct {
		drive, turn int
		left, right int
	}{
		{0, 0, 0, 0},
		{50, -10, 60, 40},
		{-40, 15, -55, -25},
		{127, 127, 0, 254}, // not clamped here
	}

	for _, tt := range tests {
		cmd, _ := Step(frame.Frame{Drive: tt.drive, Turn: tt.turn}, Sensors{}, State{}, DefaultTuning())
		if cmd.LeftPower != tt.left || cmd.RightPower != tt.right {
			t.Errorf("Step(%d,%d) drive = (%d,%d), want (%d,%d)",
				tt.drive, tt.turn, cmd.LeftPower, cmd.RightPower, tt.left, tt.right)
		}
	}
}

func TestStep_ConveyorPriority(t *testing.T) {
	tuning := DefaultTuning()
	moving := Sensors{ConveyorPower: 11, ConveyorCurrent: 1800}
	jammed := Sensors{ConveyorCurrent: 6000}

	tests := []struct {
		name          string
		buttons       frame.Buttons
		sensors       Sensors
		state         State
		expected      ConveyorMode
		wantCommanded bool
	}{
		{"A beats R1 and L1", press(frame.A, frame.R1, frame.L1), Sensors{}, State{}, ConveyorForward, true},
		{"B brakes a powered conveyor", press(frame.B, frame.A, frame.R1), moving, State{ConveyorCommanded: true}, ConveyorBrake, false},
		{"B on unpowered conveyor falls through to A", press(frame.B, frame.A), Sensors{}, State{}, ConveyorForward, true},
		{"R1 slow forward", press(frame.R1, frame.L1), moving, State{ConveyorCommanded: true}, ConveyorForwardSlow, false},
		{"L1 slow reverse", press(frame.L1), moving, State{}, ConveyorReverseSlow, false},
		{"idle low current brakes", 0, Sensors{}, State{}, ConveyorBrake, false},
		{"idle while commanded holds", 0, moving, State{ConveyorCommanded: true}, ConveyorUnchanged, true},
		{"idle jammed holds", 0, jammed, State{}, ConveyorUnchanged, false},
		{"negative current counts as magnitude", 0, Sensors{ConveyorCurrent: -6000}, State{}, ConveyorUnchanged, false},
	}

	for _, tt := range tests {
		cmd, st := Step(frame.Frame{Buttons: tt.buttons}, tt.sensors, tt.state, tuning)
		if cmd.Conveyor != tt.expected {
			t.Errorf("%s: conveyor = %s, want %s", tt.name, cmd.Conveyor, tt.expected)
		}
		if st.ConveyorCommanded != tt.wantCommanded {
			t.Errorf("%s: commanded = %v, want %v", tt.name, st.ConveyorCommanded, tt.wantCommanded)
		}
	}
}

func TestStep_ClampDebounce(t *testing.T) {
	for _, n := range []int{1, 2, 5, 50} {
		var st State
		toggles := 0
		for i := 0; i < n; i++ {
			var cmd Commands
			cmd, st = Step(frame.Frame{Buttons: press(frame.X)}, Sensors{}, st, DefaultTuning())
			if cmd.ClampToggled {
				toggles++
				if i != 0 {
					t.Errorf("hold %d: toggled on tick %d, want only tick 0", n, i)
				}
			}
		}
		if toggles != 1 {
			t.Errorf("hold %d: toggled %d times, want 1", n, toggles)
		}
		if !st.ClampEngaged {
			t.Errorf("hold %d: clamp not engaged", n)
		}
	}
}

func TestStep_ClampToggleSequence(t *testing.T) {
	// press, release, press, hold, release
	seq := []bool{true, false, true, true, false}
	expected := []ClampState{ClampClosed, ClampClosed, ClampOpen, ClampOpen, ClampOpen}

	var st State
	for i, x := range seq {
		var buttons frame.Buttons
		if x {
			buttons = press(frame.X)
		}
		var cmd Commands
		cmd, st = Step(frame.Frame{Buttons: buttons}, Sensors{}, st, DefaultTuning())
		if cmd.Clamp != expected[i] {
			t.Errorf("tick %d: clamp = %s, want %s", i, cmd.Clamp, expected[i])
		}
		if st.ClampWasPressed != x {
			t.Errorf("tick %d: ClampWasPressed = %v, want %v", i, st.ClampWasPressed, x)
		}
	}
}

func TestStep_Arm(t *testing.T) {
	tuning := DefaultTuning()

	tests := []struct {
		name     string
		buttons  frame.Buttons
		angle    int
		expected ArmCommand
	}{
		{"Y away from target", press(frame.Y), 200, ArmCommand{Mode: ArmHoldAngle, Move: 1700, Velocity: 100}},
		{"Y negative angle", press(frame.Y), -300, ArmCommand{Mode: ArmHoldAngle, Move: 1200, Velocity: 100}},
		{"Y at target", press(frame.Y), 1500, ArmCommand{Mode: ArmUnchanged}},
		{"Y beats L2", press(frame.Y, frame.L2), 0, ArmCommand{Mode: ArmHoldAngle, Move: 1500, Velocity: 100}},
		{"L2 beats R2", press(frame.L2, frame.R2), 0, ArmCommand{Mode: ArmManualReverse, Power: -30}},
		{"R2", press(frame.R2), 0, ArmCommand{Mode: ArmManualForward, Power: 30}},
		{"nothing", 0, 700, ArmCommand{Mode: ArmIdle}},
	}

	for _, tt := range tests {
		cmd, _ := Step(frame.Frame{Buttons: tt.buttons}, Sensors{ArmAngle: tt.angle}, State{}, tuning)
		if cmd.Arm != tt.expected {
			t.Errorf("%s: arm = %v, want %v", tt.name, cmd.Arm, tt.expected)
		}
	}
}

func TestStep_Deterministic(t *testing.T) {
	frames := []frame.Frame{
		{},
		{Drive: 50, Turn: -10, Buttons: press(frame.A)},
		{Drive: 50, Turn: -10, Buttons: press(frame.A, frame.X)},
		{Buttons: press(frame.X, frame.Y)},
		{Drive: -20, Buttons: press(frame.B, frame.R2)},
		{Buttons: press(frame.L1, frame.L2)},
		{},
	}
	sensors := []Sensors{
		{}, {}, {ConveyorPower: 11, ConveyorCurrent: 1800}, {ConveyorPower: 11, ArmAngle: 40},
		{ConveyorPower: 11}, {}, {ConveyorCurrent: 7000},
	}

	run := func() []Commands {
		var st State
		var out []Commands
		for i, f := range frames {
			var cmd Commands
			cmd, st = Step(f, sensors[i], st, DefaultTuning())
			out = append(out, cmd)
		}
		return out
	}

	first := run()
	for n := 0; n < 10; n++ {
		again := run()
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("run %d tick %d: %v != %v", n, i, again[i], first[i])
			}
		}
	}
}

func TestSafe(t *testing.T) {
	cmd := Safe()
	if cmd.LeftPower != 0 || cmd.RightPower != 0 {
		t.Errorf("Safe() drive = (%d,%d)", cmd.LeftPower, cmd.RightPower)
	}
	if cmd.Conveyor != ConveyorBrake || cmd.Arm.Mode != ArmIdle || cmd.ClampToggled {
		t.Errorf("Safe() = %v", cmd)
	}
}
