// Package teleop runs the fixed-rate control loop for driving, recording and replaying.
package teleop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gwillem/replaybot/pkg/control"
	"github.com/gwillem/replaybot/pkg/frame"
	"github.com/gwillem/replaybot/pkg/trace"
)

var (
	// ErrNoTrace is returned by Replay when there is no stored trace to play.
	ErrNoTrace = errors.New("no trace to replay")
	// ErrAlreadyRun is returned when a controller is asked to run a second mode.
	ErrAlreadyRun = errors.New("controller already ran a mode")
)

const (
	DefaultPeriod        = 20 * time.Millisecond
	DefaultSessionLength = 60 * time.Second
)

// Hardware is the set of robot capabilities the controller drives.
type Hardware interface {
	Drive(ctx context.Context, left, right int) error
	SetConveyor(ctx context.Context, mode control.ConveyorMode) error
	ConveyorPower(ctx context.Context) (float64, error)
	ConveyorCurrent(ctx context.Context) (int, error)
	SetClamp(ctx context.Context, state control.ClampState) error
	SetArm(ctx context.Context, cmd control.ArmCommand) error
	ArmAngle(ctx context.Context) (int, error)
	ResetArmAngle(ctx context.Context) error
}

// Input is the driver's controller.
type Input interface {
	Poll(ctx context.Context) (frame.Reading, error)
}

// Phase is the lifecycle position of a controller.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseFlushed
	PhaseReplaying
	PhaseDone
	PhaseDriving
	PhaseDisabled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseFlushed:
		return "flushed"
	case PhaseReplaying:
		return "replaying"
	case PhaseDone:
		return "done"
	case PhaseDriving:
		return "driving"
	case PhaseDisabled:
		return "disabled"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is a snapshot published after every tick.
type State struct {
	Phase     Phase
	Tick      int
	Total     int // 0 when the mode has no fixed length
	Frame     frame.Frame
	Commands  control.Commands
	Sensors   control.Sensors
	Timestamp time.Time
}

// Controller runs one control mode over a Hardware.
type Controller struct {
	hw     Hardware
	input  Input
	store  trace.Store
	logger *slog.Logger
	period time.Duration
	ticks  int
	tuning control.Tuning

	mu      sync.Mutex
	phase   Phase
	started bool
	stateCh chan State

	// Owned by the running mode.
	ctl     control.State
	sensors control.Sensors
	faults  map[string]bool
}

// Config holds configuration for the controller.
type Config struct {
	Hardware      Hardware
	Input         Input       // required for Record and Drive
	Store         trace.Store // required for Replay; optional for Record
	Logger        *slog.Logger
	Period        time.Duration
	SessionLength time.Duration
	Tuning        control.Tuning // zero value means control.DefaultTuning()
}

// NewController creates a new controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Hardware == nil {
		return nil, fmt.Errorf("no hardware configured")
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.SessionLength <= 0 {
		cfg.SessionLength = DefaultSessionLength
	}
	if cfg.SessionLength < cfg.Period {
		return nil, fmt.Errorf("session length %v shorter than period %v", cfg.SessionLength, cfg.Period)
	}
	if cfg.Tuning == (control.Tuning{}) {
		cfg.Tuning = control.DefaultTuning()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Controller{
		hw:      cfg.Hardware,
		input:   cfg.Input,
		store:   cfg.Store,
		logger:  cfg.Logger,
		period:  cfg.Period,
		ticks:   int(cfg.SessionLength / cfg.Period),
		tuning:  cfg.Tuning,
		stateCh: make(chan State, 1),
		faults:  make(map[string]bool),
	}, nil
}

// States returns a channel that receives state updates. Only the latest
// update is kept when the reader falls behind.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Hz returns the control frequency, rounded down. It is 0 for periods over
// a second.
func (c *Controller) Hz() int {
	return int(time.Second / c.period)
}

// Period returns the time between ticks.
func (c *Controller) Period() time.Duration {
	return c.period
}

// SessionTicks returns the number of ticks in a recording session.
func (c *Controller) SessionTicks() int {
	return c.ticks
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Controller) begin(p Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyRun
	}
	c.started = true
	c.phase = p
	return nil
}

// Record drives the robot from the input for one session and saves the
// frames to the store. If the store cannot be written at start the session
// still runs and the trace is discarded.
func (c *Controller) Record(ctx context.Context) error {
	if c.input == nil {
		return fmt.Errorf("record: no input configured")
	}
	if err := c.begin(PhaseRecording); err != nil {
		return err
	}

	persist := c.store != nil
	if !persist {
		c.logger.Warn("No trace storage configured, recording will not be saved")
	} else if err := c.store.Probe(ctx); err != nil {
		c.logger.Warn("Trace storage unavailable, recording will not be saved", "error", err)
		persist = false
	}

	c.resetArm(ctx)
	c.logger.Info("Recording started", "hz", c.Hz(), "ticks", c.ticks)

	var buf bytes.Buffer
	w := frame.NewWriter(&buf)
	runErr := c.run(ctx, PhaseRecording, c.ticks, func(int) frame.Frame {
		return frame.FromReading(c.poll(ctx))
	}, func(f frame.Frame) {
		// Writes to a bytes.Buffer cannot fail.
		_ = w.Write(f)
	})

	done := context.WithoutCancel(ctx)
	c.stop(done)
	defer c.setPhase(PhaseFlushed)

	if !persist {
		c.logger.Info("Recording finished, trace discarded", "frames", w.Count())
		return runErr
	}
	if err := c.store.Save(done, buf.Bytes()); err != nil {
		c.logger.Error("Failed to save recording", "error", err)
		return fmt.Errorf("save recording: %w", err)
	}
	c.logger.Info("Recording saved", "frames", w.Count())
	return runErr
}

// Replay loads the stored trace and plays every frame once through the same
// decision logic used while recording.
func (c *Controller) Replay(ctx context.Context) error {
	if err := c.begin(PhaseReplaying); err != nil {
		return err
	}
	defer c.setPhase(PhaseDone)

	if c.store == nil {
		return fmt.Errorf("%w: no trace storage configured", ErrNoTrace)
	}
	data, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("No trace to replay", "error", err)
		return fmt.Errorf("%w: %w", ErrNoTrace, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		c.logger.Warn("Trace is empty")
		return fmt.Errorf("%w: trace is empty", ErrNoTrace)
	}

	frames, err := frame.ReadAll(bytes.NewReader(data))
	if err != nil {
		c.logger.Error("Replay aborted", "error", err)
		return fmt.Errorf("replay aborted: %w", err)
	}

	c.resetArm(ctx)
	c.logger.Info("Replay started", "frames", len(frames), "hz", c.Hz())

	runErr := c.run(ctx, PhaseReplaying, len(frames), func(i int) frame.Frame {
		return frames[i]
	}, nil)

	c.stop(context.WithoutCancel(ctx))
	c.logger.Info("Replay finished")
	return runErr
}

// Drive runs live driving without recording until ctx is done.
func (c *Controller) Drive(ctx context.Context) error {
	if c.input == nil {
		return fmt.Errorf("drive: no input configured")
	}
	if err := c.begin(PhaseDriving); err != nil {
		return err
	}
	defer c.setPhase(PhaseDone)

	c.resetArm(ctx)
	c.logger.Info("Driving started", "hz", c.Hz())

	err := c.run(ctx, PhaseDriving, 0, func(int) frame.Frame {
		return frame.FromReading(c.poll(ctx))
	}, nil)

	c.stop(context.WithoutCancel(ctx))
	c.logger.Info("Driving stopped")
	return err
}

// Disable holds the robot in the disabled mode until ctx is done. Nothing is
// actuated.
func (c *Controller) Disable(ctx context.Context) error {
	if err := c.begin(PhaseDisabled); err != nil {
		return err
	}
	c.logger.Info("Robot disabled")
	c.sendState(State{Phase: PhaseDisabled, Timestamp: time.Now()})
	<-ctx.Done()
	return ctx.Err()
}

// DryRun plays frames against hw back to back, without waiting between ticks,
// and returns the commands of every tick.
func DryRun(ctx context.Context, hw Hardware, frames []frame.Frame, tuning control.Tuning) ([]control.Commands, error) {
	c, err := NewController(Config{Hardware: hw, Tuning: tuning})
	if err != nil {
		return nil, err
	}
	if err := c.begin(PhaseReplaying); err != nil {
		return nil, err
	}
	defer c.setPhase(PhaseDone)

	c.resetArm(ctx)
	out := make([]control.Commands, 0, len(frames))
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, c.step(ctx, PhaseReplaying, i, len(frames), f))
	}
	return out, nil
}

// run executes ticks until total is reached (total 0 runs until ctx is done).
func (c *Controller) run(
	ctx context.Context,
	phase Phase,
	total int,
	next func(tick int) frame.Frame,
	after func(frame.Frame),
) error {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for tick := 0; total == 0 || tick < total; tick++ {
		f := next(tick)
		c.step(ctx, phase, tick, total, f)
		if after != nil {
			after(f)
		}
		if total > 0 && tick == total-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (c *Controller) step(ctx context.Context, phase Phase, tick, total int, f frame.Frame) control.Commands {
	c.sense(ctx)

	cmd, next := control.Step(f, c.sensors, c.ctl, c.tuning)
	c.ctl = next
	c.apply(ctx, cmd)

	c.sendState(State{
		Phase:     phase,
		Tick:      tick,
		Total:     total,
		Frame:     f,
		Commands:  cmd,
		Sensors:   c.sensors,
		Timestamp: time.Now(),
	})
	return cmd
}

// sense refreshes the sensor snapshot. A failed read keeps the last value.
func (c *Controller) sense(ctx context.Context) {
	if v, err := c.hw.ConveyorPower(ctx); c.checkFault("conveyor_power", err) {
		c.sensors.ConveyorPower = v
	}
	if v, err := c.hw.ConveyorCurrent(ctx); c.checkFault("conveyor_current", err) {
		c.sensors.ConveyorCurrent = v
	}
	if v, err := c.hw.ArmAngle(ctx); c.checkFault("arm_angle", err) {
		c.sensors.ArmAngle = v
	}
}

// checkFault reports whether a sensor read succeeded, logging only on
// transitions into and out of a fault.
func (c *Controller) checkFault(sensor string, err error) bool {
	if err != nil {
		if !c.faults[sensor] {
			c.faults[sensor] = true
			c.logger.Warn("Sensor fault, using last known value", "sensor", sensor, "error", err)
		}
		return false
	}
	if c.faults[sensor] {
		delete(c.faults, sensor)
		c.logger.Info("Sensor recovered", "sensor", sensor)
	}
	return true
}

// poll reads the controller. A failed poll counts as a neutral controller.
func (c *Controller) poll(ctx context.Context) frame.Reading {
	r, err := c.input.Poll(ctx)
	if err != nil {
		c.logger.Debug("Controller poll failed", "error", err)
		return frame.Reading{}
	}
	return r
}

func (c *Controller) apply(ctx context.Context, cmd control.Commands) {
	if err := c.hw.Drive(ctx, cmd.LeftPower, cmd.RightPower); err != nil {
		c.logger.Warn("Drive error", "error", err)
	}
	if cmd.Conveyor != control.ConveyorUnchanged {
		if err := c.hw.SetConveyor(ctx, cmd.Conveyor); err != nil {
			c.logger.Warn("Conveyor error", "error", err)
		}
	}
	if cmd.ClampToggled {
		if err := c.hw.SetClamp(ctx, cmd.Clamp); err != nil {
			c.logger.Warn("Clamp error", "error", err)
		}
	}
	if cmd.Arm.Mode != control.ArmUnchanged {
		if err := c.hw.SetArm(ctx, cmd.Arm); err != nil {
			c.logger.Warn("Arm error", "error", err)
		}
	}
}

func (c *Controller) resetArm(ctx context.Context) {
	if err := c.hw.ResetArmAngle(ctx); err != nil {
		c.logger.Warn("Failed to reset arm angle reference", "error", err)
	}
}

func (c *Controller) stop(ctx context.Context) {
	c.apply(ctx, control.Safe())
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}
