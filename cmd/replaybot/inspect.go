package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/gwillem/replaybot/pkg/control"
	"github.com/gwillem/replaybot/pkg/frame"
	"github.com/gwillem/replaybot/pkg/robot"
	"github.com/gwillem/replaybot/pkg/sim"
	"github.com/gwillem/replaybot/pkg/teleop"
	"github.com/gwillem/replaybot/pkg/trace"
)

type InspectCommand struct {
	Simulate bool `long:"simulate" description:"Run the trace through the controller against a simulated robot"`
	Args     struct {
		Trace string `positional-arg-name:"trace" description:"Trace file (defaults to the configured storage)"`
	} `positional-args:"yes"`
}

func (c *InspectCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	source := c.Args.Trace
	var data []byte
	if source != "" {
		data, err = trace.NewFileStore(source).Load(ctx)
	} else {
		source = fmt.Sprintf("%s (%s)", cfg.Trace.Path, cfg.Trace.Backend)
		data, err = loadTrace(ctx, cfg.Trace)
	}
	if err != nil {
		return err
	}

	frames, err := frame.ReadAll(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	sum := summarizeFrames(frames, cfg.Period())
	fmt.Printf("%s %s\n", color.New(color.Bold).Sprint("Trace"), source)
	fmt.Printf("%s frames, %s at %s per tick\n",
		color.CyanString("%d", sum.Frames), color.CyanString("%s", sum.Duration), cfg.Period())
	fmt.Printf("drive %s  turn %s  idle ticks %d\n",
		color.YellowString("%d..%d", sum.DriveMin, sum.DriveMax),
		color.YellowString("%d..%d", sum.TurnMin, sum.TurnMax),
		sum.Idle)
	fmt.Println()
	fmt.Println(buttonTable(sum))

	if !c.Simulate {
		return nil
	}

	robotSim := sim.New()
	cmds, err := teleop.DryRun(ctx, robotSim, frames, cfg.ControlTuning())
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	fmt.Println()
	fmt.Println(color.New(color.Bold).Sprint("Simulated replay"))
	fmt.Println(commandTable(summarizeCommands(cmds)))

	snap := robotSim.Snapshot()
	fmt.Printf("end state: conveyor %s, clamp %s, arm angle %d\n",
		snap.Conveyor, snap.Clamp, lastAngle(ctx, robotSim))
	return nil
}

func loadTrace(ctx context.Context, tc robot.TraceConfig) ([]byte, error) {
	store, closer, err := openStore(tc)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		defer closer.Close()
	}
	return store.Load(ctx)
}

func lastAngle(ctx context.Context, r *sim.Robot) int {
	angle, _ := r.ArmAngle(ctx)
	return angle
}

type frameSummary struct {
	Frames   int
	Duration time.Duration
	DriveMin int
	DriveMax int
	TurnMin  int
	TurnMax  int
	Idle     int // ticks with centered sticks and no buttons
	Held     map[frame.Button]int
}

func summarizeFrames(frames []frame.Frame, period time.Duration) frameSummary {
	sum := frameSummary{
		Frames:   len(frames),
		Duration: time.Duration(len(frames)) * period,
		Held:     make(map[frame.Button]int),
	}
	for i, f := range frames {
		if i == 0 {
			sum.DriveMin, sum.DriveMax = f.Drive, f.Drive
			sum.TurnMin, sum.TurnMax = f.Turn, f.Turn
		}
		sum.DriveMin = min(sum.DriveMin, f.Drive)
		sum.DriveMax = max(sum.DriveMax, f.Drive)
		sum.TurnMin = min(sum.TurnMin, f.Turn)
		sum.TurnMax = max(sum.TurnMax, f.Turn)
		if f == (frame.Frame{}) {
			sum.Idle++
		}
		for _, b := range frame.AllButtons() {
			if f.Buttons.Has(b) {
				sum.Held[b]++
			}
		}
	}
	return sum
}

type commandSummary struct {
	Conveyor     map[control.ConveyorMode]int
	Arm          map[control.ArmMode]int
	ClampToggles int
}

func summarizeCommands(cmds []control.Commands) commandSummary {
	sum := commandSummary{
		Conveyor: make(map[control.ConveyorMode]int),
		Arm:      make(map[control.ArmMode]int),
	}
	for _, cmd := range cmds {
		if cmd.Conveyor != control.ConveyorUnchanged {
			sum.Conveyor[cmd.Conveyor]++
		}
		if cmd.Arm.Mode != control.ArmUnchanged {
			sum.Arm[cmd.Arm.Mode]++
		}
		if cmd.ClampToggled {
			sum.ClampToggles++
		}
	}
	return sum
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func styledTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}

func buttonTable(sum frameSummary) string {
	t := styledTable("Button", "Ticks held", "Share")
	for _, b := range frame.AllButtons() {
		share := 0.0
		if sum.Frames > 0 {
			share = float64(sum.Held[b]) * 100 / float64(sum.Frames)
		}
		t.Row(b.String(), fmt.Sprintf("%d", sum.Held[b]), fmt.Sprintf("%.1f%%", share))
	}
	return t.Render()
}

func commandTable(sum commandSummary) string {
	t := styledTable("Actuator", "Command", "Ticks")
	for _, mode := range []control.ConveyorMode{
		control.ConveyorStopped,
		control.ConveyorForward,
		control.ConveyorForwardSlow,
		control.ConveyorReverseSlow,
		control.ConveyorBrake,
	} {
		if n := sum.Conveyor[mode]; n > 0 {
			t.Row("conveyor", mode.String(), fmt.Sprintf("%d", n))
		}
	}
	for _, mode := range []control.ArmMode{
		control.ArmIdle,
		control.ArmManualForward,
		control.ArmManualReverse,
		control.ArmHoldAngle,
	} {
		if n := sum.Arm[mode]; n > 0 {
			t.Row("arm", mode.String(), fmt.Sprintf("%d", n))
		}
	}
	t.Row("clamp", "toggle", fmt.Sprintf("%d", sum.ClampToggles))
	return t.Render()
}
