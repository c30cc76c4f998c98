package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/gwillem/replaybot/pkg/robot"
	"github.com/gwillem/replaybot/pkg/teleop"
)

// RunOptions are shared by the commands that run the control loop.
type RunOptions struct {
	Headless bool `long:"headless" description:"Print status lines instead of the dashboard"`
	PeriodMs int  `long:"period-ms" description:"Control period in milliseconds (overrides the config)"`
}

type RecordCommand struct {
	RunOptions
	SessionMs int    `long:"session-ms" description:"Recording length in milliseconds (overrides the config)"`
	Name      string `long:"name" description:"Recording name in the sqlite archive"`
}

type DriveCommand struct {
	RunOptions
}

type ReplayCommand struct {
	RunOptions
	Name string `long:"name" description:"Recording name in the sqlite archive"`
}

type DisableCommand struct{}

func (c *RecordCommand) Execute(args []string) error {
	return runMode(modeSpec{
		title:     "Recording",
		run:       c.RunOptions,
		needInput: true,
		configure: func(cfg *robot.Config) {
			if c.SessionMs > 0 {
				cfg.SessionMs = c.SessionMs
			}
			if c.Name != "" {
				cfg.Trace.Name = c.Name
			}
		},
		mode: (*teleop.Controller).Record,
	})
}

func (c *DriveCommand) Execute(args []string) error {
	return runMode(modeSpec{
		title:     "Driving",
		run:       c.RunOptions,
		needInput: true,
		mode:      (*teleop.Controller).Drive,
	})
}

func (c *ReplayCommand) Execute(args []string) error {
	return runMode(modeSpec{
		title: "Replay",
		run:   c.RunOptions,
		configure: func(cfg *robot.Config) {
			if c.Name != "" {
				cfg.Trace.Name = c.Name
			}
		},
		mode: (*teleop.Controller).Replay,
	})
}

func (c *DisableCommand) Execute(args []string) error {
	fmt.Println(color.YellowString("Robot disabled.") + " Press Ctrl+C to exit.")
	return runMode(modeSpec{
		title: "Disabled",
		run:   RunOptions{Headless: true},
		mode:  (*teleop.Controller).Disable,
	})
}

type modeSpec struct {
	title     string
	run       RunOptions
	needInput bool
	configure func(*robot.Config)
	mode      func(*teleop.Controller, context.Context) error
}

func runMode(m modeSpec) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configure := func(cfg *robot.Config) {
		if m.run.PeriodMs > 0 {
			cfg.PeriodMs = m.run.PeriodMs
		}
		if m.configure != nil {
			m.configure(cfg)
		}
	}

	s, err := openSession(ctx, sessionOptions{
		dashboard: !m.run.Headless,
		needInput: m.needInput,
		configure: configure,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	ctrl, err := s.controller()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.mode(ctrl, ctx)
	}()

	if m.run.Headless {
		err = watch(os.Stdout, ctrl, done)
	} else {
		err = runDashboard(m.title, ctrl, s, cancel, done)
	}

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if errors.Is(err, teleop.ErrNoTrace) {
		fmt.Fprintln(os.Stderr, color.YellowString("Nothing to replay: %v", err))
		fmt.Fprintln(os.Stderr, "Record a session first with: replaybot record")
	}
	return err
}

var (
	phaseColor = color.New(color.FgCyan, color.Bold)
	dimColor   = color.New(color.Faint)
)

// watch prints about one status line per second until the mode ends.
func watch(w io.Writer, ctrl *teleop.Controller, done <-chan error) error {
	cadence := newStatusCadence(ctrl.Period())
	for {
		select {
		case err := <-done:
			fmt.Fprintln(w, phaseColor.Sprint(ctrl.Phase()))
			return err
		case st := <-ctrl.States():
			if cadence.due(st.Tick) {
				fmt.Fprintln(w, statusLine(st))
			}
		}
	}
}

// statusCadence picks the ticks that get a status line. States can be
// dropped, so a line is due once a second's worth of ticks has passed since
// the last one printed rather than on exact multiples.
type statusCadence struct {
	every   int
	last    int
	printed bool
}

func newStatusCadence(period time.Duration) *statusCadence {
	return &statusCadence{every: max(1, int(time.Second/period))}
}

func (c *statusCadence) due(tick int) bool {
	if c.printed && tick-c.last < c.every {
		return false
	}
	c.printed = true
	c.last = tick
	return true
}

// rate describes how often the controller ticks.
func rate(period time.Duration) string {
	if period > time.Second {
		return "every " + period.String()
	}
	return fmt.Sprintf("%d Hz", int(time.Second/period))
}

func statusLine(st teleop.State) string {
	progress := fmt.Sprintf("%d", st.Tick)
	if st.Total > 0 {
		progress = fmt.Sprintf("%d/%d", st.Tick+1, st.Total)
	}
	cmd := st.Commands
	return fmt.Sprintf("%s %s left %d right %d conveyor %s clamp %s arm %s rotational %d",
		phaseColor.Sprintf("%-9s", st.Phase),
		dimColor.Sprint(progress),
		cmd.LeftPower, cmd.RightPower,
		cmd.Conveyor, cmd.Clamp, cmd.Arm,
		st.Sensors.ArmAngle,
	)
}
