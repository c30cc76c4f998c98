package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config   string `short:"c" long:"config" description:"Configuration file (.json, .yaml or .yml; default replaybot.json)"`
	LogLevel string `long:"log-level" default:"info" description:"Log level (debug, info, warn, error)"`
	LogFile  string `long:"log-file" description:"Also write logs to this file"`
	Journal  bool   `long:"journal" description:"Send logs to the systemd journal"`

	Setup   SetupCommand   `command:"setup" description:"Find and calibrate the lift arm, pick a joystick and trace storage"`
	Record  RecordCommand  `command:"record" alias:"rec" description:"Drive the robot and record the session"`
	Drive   DriveCommand   `command:"drive" description:"Drive the robot without recording"`
	Replay  ReplayCommand  `command:"replay" description:"Replay the last recorded session"`
	Disable DisableCommand `command:"disable" description:"Keep the robot disabled until interrupted"`
	Inspect InspectCommand `command:"inspect" description:"Summarize a recorded trace"`
	Traces  TracesCommand  `command:"traces" description:"List recordings in the sqlite archive"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "replaybot - record a driver's session and replay it as an autonomous routine"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
