// Package replaybot records a driver's joystick session on a competition
// robot and replays it later as an autonomous routine.
//
// Every control tick turns one controller frame (drive, turn and the pressed
// buttons) into drive, conveyor, clamp and lift arm commands. Recording saves
// the frames one line per tick; replay feeds them back through the same
// decision logic so the robot repeats what the driver did.
//
// # Installation
//
//	go install github.com/gwillem/replaybot/cmd/replaybot@latest
//
// # Usage
//
// First, run setup to find and calibrate the lift arm servo and pick a
// joystick and trace storage:
//
//	replaybot setup
//
// Then record a session and replay it:
//
//	replaybot record
//	replaybot replay
//
// Without a joystick the dashboard reads the keyboard. Without a lift arm
// servo the arm is simulated.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/replaybot: CLI with setup, record, drive, replay, disable, inspect and traces commands
//   - pkg/frame: Trace line codec and frame streams
//   - pkg/control: Per-tick decision logic
//   - pkg/teleop: Fixed-rate controller for the record, replay and drive modes
//   - pkg/trace: File and SQLite trace storage
//   - pkg/robot: Lift arm servo, calibration, and configuration
//   - pkg/joystick: Linux joystick input
//   - pkg/sim: Simulated robot
//   - pkg/logs: Structured logging
package replaybot
