package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/replaybot/pkg/joystick"
	"github.com/gwillem/replaybot/pkg/robot"
)

// maxServoID bounds the bus scan for the lift arm servo.
const maxServoID = 10

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	SkipArm bool `long:"skip-arm" description:"Do not scan for the lift arm servo"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("replaybot Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Step 1: Lift arm
	if !c.SkipArm {
		fmt.Println(subHeaderStyle.Render("━━━ Lift Arm ━━━"))
		fmt.Println()
		if port, servo, ok := scanForArm(); ok {
			cfg.Arm.Port = port
			cal, err := calibrateArm(port, servo)
			if err != nil {
				return err
			}
			cfg.Arm.Calibration = cal
		} else {
			fmt.Println("No lift arm selected; a simulated arm will be used.")
		}
		if err := cfg.SaveTo(configPath()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	// Step 2: Joystick
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Controller ━━━"))
	fmt.Println()
	cfg.Joystick.Device = selectJoystick(cfg.Joystick.Device)

	// Step 3: Trace storage
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Trace Storage ━━━"))
	fmt.Println()
	selectStorage(&cfg.Trace)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(configPath()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", configPath())
	fmt.Println()
	fmt.Println("Record a session with: " + headerStyle.Render("replaybot record"))

	return nil
}

type busInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

// scanForArm finds Feetech servos on every serial port and asks which one
// is the lift arm.
func scanForArm() (string, feetech.FoundServo, bool) {
	fmt.Println("Scanning serial ports for Feetech servos...")
	fmt.Println()

	buses := findServos()
	if len(buses) == 0 {
		fmt.Println("No servos found.")
		fmt.Println("Make sure the arm is connected and powered on.")
		return "", feetech.FoundServo{}, false
	}

	var (
		port  string
		found feetech.FoundServo
		ok    bool
	)
	for _, b := range buses {
		if !ok {
			port, found, ok = identifyServo(b)
		}
		b.bus.Close()
	}
	if ok {
		fmt.Println(successStyle.Render(fmt.Sprintf("Lift arm: servo %d on %s", found.ID, port)))
	}
	return port, found, ok
}

func findServos() []busInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var buses []busInfo

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, servos, err := connectToBus(port)
		if err != nil || len(servos) == 0 {
			if bus != nil {
				bus.Close()
			}
			continue
		}

		fmt.Printf("  Found %d servo(s) on %s\n", len(servos), port)
		buses = append(buses, busInfo{
			port:   port,
			servos: servos,
			bus:    bus,
		})
	}

	return buses
}

func connectToBus(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	servos, err := bus.Scan(ctx, 1, maxServoID)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return bus, servos, nil
}

// identifyServo wiggles each servo on the bus until the user recognizes the
// lift arm.
func identifyServo(b busInfo) (string, feetech.FoundServo, bool) {
	ctx := context.Background()

	for _, found := range b.servos {
		servo := feetech.NewServo(b.bus, found.ID, found.Model)
		if err := wiggle(ctx, servo); err != nil {
			fmt.Printf("  Servo %d on %s: %v\n", found.ID, b.port, err)
			continue
		}

		var answer string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Is servo %d on %s the lift arm?", found.ID, b.port)).
					Description("The servo that just wiggled").
					Options(
						huh.NewOption("Yes, this is the lift arm", "yes"),
						huh.NewOption("No, keep looking", "no"),
					).
					Value(&answer),
			),
		)
		if err := form.Run(); err != nil {
			fmt.Println()
			os.Exit(0)
		}
		if answer == "yes" {
			return b.port, found, true
		}
	}
	return "", feetech.FoundServo{}, false
}

func wiggle(ctx context.Context, servo *feetech.Servo) error {
	originalPos, err := servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	if err := servo.Enable(ctx); err != nil {
		return fmt.Errorf("enable servo: %w", err)
	}
	defer servo.Disable(ctx)

	// Single gentle, slow movement
	wiggleAmount := 30
	moveTimeMs := 500
	for _, pos := range []int{originalPos + wiggleAmount, originalPos - wiggleAmount, originalPos} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}
	return nil
}

func calibrateArm(port string, found feetech.FoundServo) (robot.ArmCalibration, error) {
	fmt.Println()
	fmt.Printf("Calibrating lift arm on %s\n", port)
	fmt.Println()

	ctx := context.Background()
	arm, err := robot.NewArm(ctx, port, robot.ArmCalibration{ID: found.ID})
	if err != nil {
		return robot.ArmCalibration{}, fmt.Errorf("connect to %s: %w", port, err)
	}
	defer arm.Close()

	// Disable torque so the arm can be moved by hand
	if err := arm.Disable(ctx); err != nil {
		return robot.ArmCalibration{}, fmt.Errorf("disable torque: %w", err)
	}

	pos, err := arm.Position(ctx)
	if err != nil {
		return robot.ArmCalibration{}, err
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move the arm to its lowest AND highest positions.")
	fmt.Println("Then lower it to its rest position and press Enter.")
	fmt.Println()

	p := tea.NewProgram(newCalibrationModel(arm, pos))
	finalModel, err := p.Run()
	if err != nil {
		return robot.ArmCalibration{}, fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)
	if cm.aborted {
		return robot.ArmCalibration{}, errors.New("calibration aborted")
	}

	cal := robot.ArmCalibration{
		ID:           found.ID,
		HomingOffset: cm.current,
		RangeMin:     cm.min,
		RangeMax:     cm.max,
	}
	fmt.Println()
	fmt.Printf("Lift arm calibrated: rest %d, range %d..%d\n", cal.HomingOffset, cal.RangeMin, cal.RangeMax)
	return cal, nil
}

func selectJoystick(current string) string {
	devices := joystick.Devices()

	options := make([]huh.Option[string], 0, len(devices)+1)
	for _, d := range devices {
		options = append(options, huh.NewOption(d, d))
	}
	options = append(options, huh.NewOption("Keyboard (dashboard only)", ""))

	device := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which controller drives the robot?").
				Description(fmt.Sprintf("%d joystick device(s) found", len(devices))).
				Options(options...).
				Value(&device),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return device
}

var defaultTracePaths = map[string]string{
	robot.BackendFile:   "recording.txt",
	robot.BackendSQLite: "recordings.db",
}

func selectStorage(tc *robot.TraceConfig) {
	backend := tc.Backend
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should recordings be stored?").
				Options(
					huh.NewOption("Text file (last recording only)", robot.BackendFile),
					huh.NewOption("SQLite archive (every recording)", robot.BackendSQLite),
				).
				Value(&backend),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	path := tc.Path
	if backend != tc.Backend || path == "" {
		path = defaultTracePaths[backend]
	}
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Storage path").
				Value(&path),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	tc.Backend = backend
	tc.Path = path
}

// Calibration TUI model
type calibrationModel struct {
	arm     *robot.Arm
	current int
	min     int
	max     int
	aborted bool
	done    bool
}

type tickMsg time.Time

func newCalibrationModel(arm *robot.Arm, pos int) calibrationModel {
	return calibrationModel{
		arm:     arm,
		current: pos,
		min:     pos,
		max:     pos,
	}
}

func calibrationTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return calibrationTick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}

	case tickMsg:
		if pos, err := m.arm.Position(context.Background()); err == nil {
			m.track(pos)
		}
		return m, calibrationTick()
	}

	return m, nil
}

func (m *calibrationModel) track(pos int) {
	m.current = pos
	m.min = min(m.min, pos)
	m.max = max(m.max, pos)
}

func (m calibrationModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	var sb strings.Builder

	// Table styles
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rangeSize := m.max - m.min
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Current", "Min", "Max", "Range").
		Row(
			fmt.Sprintf("%d", m.current),
			fmt.Sprintf("%d", m.min),
			fmt.Sprintf("%d", m.max),
			fmt.Sprintf("%d", rangeSize),
		).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableCurrentStyle
			case 3:
				if rangeSize > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter at the rest position, q to abort"))

	return sb.String()
}
