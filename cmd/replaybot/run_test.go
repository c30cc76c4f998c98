package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gwillem/replaybot/pkg/robot"
	"github.com/gwillem/replaybot/pkg/sim"
	"github.com/gwillem/replaybot/pkg/teleop"
)

func TestWatch_PeriodOverOneSecond(t *testing.T) {
	ctrl, err := teleop.NewController(teleop.Config{
		Hardware:      sim.New(),
		Period:        1500 * time.Millisecond,
		SessionLength: 3 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewController error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- ctrl.Disable(ctx)
	}()

	var out bytes.Buffer
	err = watch(&out, ctrl, done)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("watch error = %v, want deadline exceeded", err)
	}
	if !strings.Contains(out.String(), "disabled") {
		t.Errorf("output = %q", out.String())
	}
}

func TestStatusCadence(t *testing.T) {
	tests := []struct {
		period time.Duration
		ticks  []int
		due    []bool
	}{
		{
			period: 20 * time.Millisecond,
			ticks:  []int{0, 1, 49, 50, 99, 120, 169, 170},
			due:    []bool{true, false, false, true, false, true, false, true},
		},
		{
			// A dropped state on the boundary tick still gets a line next tick.
			period: 500 * time.Millisecond,
			ticks:  []int{0, 1, 3, 4, 5},
			due:    []bool{true, false, true, false, true},
		},
		{
			period: 1500 * time.Millisecond,
			ticks:  []int{0, 1, 2},
			due:    []bool{true, true, true},
		},
	}

	for _, tt := range tests {
		c := newStatusCadence(tt.period)
		for i, tick := range tt.ticks {
			if got := c.due(tick); got != tt.due[i] {
				t.Errorf("period %v: due(%d) = %v, want %v", tt.period, tick, got, tt.due[i])
			}
		}
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		period   time.Duration
		expected string
	}{
		{20 * time.Millisecond, "50 Hz"},
		{time.Second, "1 Hz"},
		{1500 * time.Millisecond, "every 1.5s"},
	}
	for _, tt := range tests {
		if got := rate(tt.period); got != tt.expected {
			t.Errorf("rate(%v) = %q, want %q", tt.period, got, tt.expected)
		}
	}
}

func TestConfigPath(t *testing.T) {
	saved := opts.Config
	defer func() { opts.Config = saved }()

	opts.Config = ""
	if got := configPath(); got != robot.DefaultConfigFile {
		t.Errorf("configPath() = %q, want %q", got, robot.DefaultConfigFile)
	}
	opts.Config = "robot.yaml"
	if got := configPath(); got != "robot.yaml" {
		t.Errorf("configPath() = %q", got)
	}
}
