// Package joystick reads a gamepad through the Linux joystick API (/dev/input/jsN).
package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gwillem/replaybot/pkg/frame"
)

// Event types from linux/joystick.h.
const (
	eventButton = 0x01
	eventAxis   = 0x02
	eventInit   = 0x80
)

// ioctl requests from linux/joystick.h.
const (
	jsiocgaxes    = 0x80016a11
	jsiocgbuttons = 0x80016a12
)

const axisMax = 32767

// event is a struct js_event.
type event struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

// Mapping assigns joystick axes and buttons to the controller inputs.
type Mapping struct {
	LeftYAxis  int
	RightXAxis int
	Buttons    map[int]frame.Button
}

// DefaultMapping is the layout of a DualShock-style pad under the hid-sony driver.
func DefaultMapping() Mapping {
	return Mapping{
		LeftYAxis:  1,
		RightXAxis: 3,
		Buttons: map[int]frame.Button{
			0: frame.A,
			1: frame.B,
			2: frame.Y,
			3: frame.X,
			4: frame.L1,
			5: frame.R1,
			6: frame.L2,
			7: frame.R2,
		},
	}
}

// MappingFrom builds a Mapping from button names to button numbers. An empty
// button map keeps the default button layout.
func MappingFrom(leftY, rightX int, buttons map[string]int) (Mapping, error) {
	m := DefaultMapping()
	m.LeftYAxis = leftY
	m.RightXAxis = rightX
	if len(buttons) == 0 {
		return m, nil
	}

	m.Buttons = make(map[int]frame.Button, len(buttons))
	for name, number := range buttons {
		b, ok := frame.ParseButton(name)
		if !ok {
			return Mapping{}, fmt.Errorf("unknown button %q", name)
		}
		if prev, taken := m.Buttons[number]; taken {
			return Mapping{}, fmt.Errorf("button %d mapped to both %s and %s", number, prev, b)
		}
		m.Buttons[number] = b
	}
	return m, nil
}

// Joystick is an open joystick device. Events are read in the background;
// Poll returns the latest state.
type Joystick struct {
	f       *os.File
	mapping Mapping

	Axes    int
	Buttons int

	mu      sync.Mutex
	reading frame.Reading
	err     error
}

// Open opens a joystick device and starts reading it.
func Open(path string, m Mapping) (*Joystick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open joystick: %w", err)
	}

	j := newJoystick(m)
	j.f = f

	raw, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("joystick fd: %w", err)
	}
	var ioctlErr error
	err = raw.Control(func(fd uintptr) {
		if j.Axes, ioctlErr = unix.IoctlGetInt(int(fd), jsiocgaxes); ioctlErr != nil {
			return
		}
		j.Buttons, ioctlErr = unix.IoctlGetInt(int(fd), jsiocgbuttons)
	})
	if err == nil {
		err = ioctlErr
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s is not a joystick: %w", path, err)
	}

	go j.readLoop(f)
	return j, nil
}

func newJoystick(m Mapping) *Joystick {
	return &Joystick{mapping: m}
}

// Close stops reading and closes the device.
func (j *Joystick) Close() error {
	return j.f.Close()
}

// Poll returns the latest controller state, or the error that stopped the reader.
func (j *Joystick) Poll(ctx context.Context) (frame.Reading, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return frame.Reading{}, j.err
	}
	return j.reading, nil
}

func (j *Joystick) readLoop(r io.Reader) {
	for {
		ev, err := readEvent(r)
		if err != nil {
			j.mu.Lock()
			j.err = fmt.Errorf("joystick read: %w", err)
			j.mu.Unlock()
			return
		}
		j.handle(ev)
	}
}

func readEvent(r io.Reader) (event, error) {
	var ev event
	err := binary.Read(r, binary.LittleEndian, &ev)
	return ev, err
}

func (j *Joystick) handle(ev event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch ev.Type &^ eventInit {
	case eventAxis:
		switch int(ev.Number) {
		case j.mapping.LeftYAxis:
			j.reading.LeftY = scaleAxis(ev.Value)
		case j.mapping.RightXAxis:
			j.reading.RightX = scaleAxis(ev.Value)
		}
	case eventButton:
		b, ok := j.mapping.Buttons[int(ev.Number)]
		if !ok {
			return
		}
		if ev.Value != 0 {
			j.reading.Buttons |= frame.Buttons(b)
		} else {
			j.reading.Buttons &^= frame.Buttons(b)
		}
	}
}

// scaleAxis converts a raw axis value to the controller range -127..127.
func scaleAxis(v int16) int {
	return max(-127, int(v)*127/axisMax)
}

// Devices lists the joystick devices present on this machine.
func Devices() []string {
	paths, _ := filepath.Glob("/dev/input/js*")
	sort.Strings(paths)
	return paths
}
