package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gwillem/replaybot/pkg/joystick"
	"github.com/gwillem/replaybot/pkg/logs"
	"github.com/gwillem/replaybot/pkg/robot"
	"github.com/gwillem/replaybot/pkg/sim"
	"github.com/gwillem/replaybot/pkg/teleop"
	"github.com/gwillem/replaybot/pkg/trace"
)

const logBuffer = 64

// session holds everything a control mode needs, opened from the config.
type session struct {
	cfg     *robot.Config
	logger  *slog.Logger
	logs    chan string // nil without the dashboard
	hw      teleop.Hardware
	input   teleop.Input
	keys    *keyboard // set when the keyboard stands in for a joystick
	store   trace.Store
	closers []io.Closer
}

type sessionOptions struct {
	dashboard bool
	needInput bool
	configure func(*robot.Config)
}

// loadConfig reads the configured file, falling back to the defaults when it
// does not exist yet.
func loadConfig() (*robot.Config, error) {
	path := configPath()
	if !robot.ConfigExists(path) {
		return robot.DefaultConfig(), nil
	}
	return robot.LoadConfigFrom(path)
}

func configPath() string {
	if opts.Config == "" {
		return robot.DefaultConfigFile
	}
	return opts.Config
}

func newLogger(dashboard bool) (*slog.Logger, chan string, io.Closer, error) {
	level, err := logs.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	lo := logs.Options{Level: level, Journal: opts.Journal}
	var closer io.Closer
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		lo.Writer = f
	}

	var sink chan string
	if dashboard {
		// The dashboard owns the terminal; records go to its log box.
		sink = make(chan string, logBuffer)
		lo.Sink = sink
	} else if lo.Writer != nil {
		lo.Writer = io.MultiWriter(os.Stderr, lo.Writer)
	} else {
		lo.Writer = os.Stderr
	}
	return logs.New(lo), sink, closer, nil
}

func openSession(ctx context.Context, so sessionOptions) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if so.configure != nil {
		so.configure(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, sink, logCloser, err := newLogger(so.dashboard)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger, logs: sink}
	if logCloser != nil {
		s.closers = append(s.closers, logCloser)
	}

	if err := s.openHardware(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if so.needInput {
		if err := s.openInput(so.dashboard); err != nil {
			s.Close()
			return nil, err
		}
	}

	store, closer, err := openStore(cfg.Trace)
	if err != nil {
		// Record degrades to a discarded session, replay reports no trace.
		logger.Warn("Trace storage unavailable", "backend", cfg.Trace.Backend, "path", cfg.Trace.Path, "error", err)
	} else {
		s.store = store
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
	}
	return s, nil
}

func (s *session) openHardware(ctx context.Context) error {
	armCfg := s.cfg.Arm
	if armCfg.Port == "" || !armCfg.IsCalibrated() {
		s.logger.Warn("Lift arm not configured, using a simulated arm")
		s.hw = sim.New()
		return nil
	}

	arm, err := robot.NewArm(ctx, armCfg.Port, armCfg.Calibration)
	if err != nil {
		return fmt.Errorf("connect lift arm on %s: %w", armCfg.Port, err)
	}
	s.closers = append(s.closers, arm)
	s.logger.Info("Lift arm connected", "port", armCfg.Port, "id", armCfg.Calibration.ID)
	s.hw = sim.New(sim.WithArm(arm))
	return nil
}

func (s *session) openInput(dashboard bool) error {
	jc := s.cfg.Joystick
	if jc.Device == "" {
		if !dashboard {
			return errors.New("no joystick configured; run 'replaybot setup' or drop --headless to use the keyboard")
		}
		s.keys = newKeyboard()
		s.input = s.keys
		return nil
	}

	mapping, err := joystick.MappingFrom(jc.LeftYAxis, jc.RightXAxis, jc.Buttons)
	if err != nil {
		return fmt.Errorf("joystick mapping: %w", err)
	}
	js, err := joystick.Open(jc.Device, mapping)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, js)
	s.logger.Info("Joystick opened", "device", jc.Device, "axes", js.Axes, "buttons", js.Buttons)
	s.input = js
	return nil
}

func (s *session) controller() (*teleop.Controller, error) {
	return teleop.NewController(teleop.Config{
		Hardware:      s.hw,
		Input:         s.input,
		Store:         s.store,
		Logger:        s.logger,
		Period:        s.cfg.Period(),
		SessionLength: s.cfg.SessionLength(),
		Tuning:        s.cfg.ControlTuning(),
	})
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
	s.closers = nil
}

func openStore(tc robot.TraceConfig) (trace.Store, io.Closer, error) {
	if tc.Backend == robot.BackendSQLite {
		st, err := trace.OpenSQLite(tc.Path, tc.Name)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	}
	return trace.NewFileStore(tc.Path), nil, nil
}
