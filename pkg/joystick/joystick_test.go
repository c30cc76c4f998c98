package joystick

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gwillem/replaybot/pkg/frame"
)

func encodeEvents(t *testing.T, events ...event) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range events {
		if err := binary.Write(&buf, binary.LittleEndian, ev); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestReadEvent(t *testing.T) {
	raw := []byte{0x10, 0x27, 0x00, 0x00, 0x01, 0x80, 0x02, 0x03}
	ev, err := readEvent(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("readEvent error: %v", err)
	}
	expected := event{Time: 10000, Value: -32767, Type: eventAxis, Number: 3}
	if ev != expected {
		t.Errorf("readEvent = %+v, want %+v", ev, expected)
	}

	if _, err := readEvent(bytes.NewReader(raw[:5])); err == nil {
		t.Error("short event should fail")
	}
}

func TestScaleAxis(t *testing.T) {
	tests := []struct {
		raw      int16
		expected int
	}{
		{0, 0},
		{32767, 127},
		{-32767, -127},
		{-32768, -127},
		{16384, 63},
	}

	for _, tt := range tests {
		if got := scaleAxis(tt.raw); got != tt.expected {
			t.Errorf("scaleAxis(%d) = %d, want %d", tt.raw, got, tt.expected)
		}
	}
}

func TestJoystick_Handle(t *testing.T) {
	j := newJoystick(DefaultMapping())

	j.handle(event{Type: eventAxis | eventInit, Number: 1, Value: -32767})
	j.handle(event{Type: eventAxis, Number: 3, Value: 32767})
	j.handle(event{Type: eventAxis, Number: 0, Value: 1000}) // unmapped axis
	j.handle(event{Type: eventButton, Number: 0, Value: 1})
	j.handle(event{Type: eventButton, Number: 3, Value: 1})
	j.handle(event{Type: eventButton, Number: 7, Value: 1})
	j.handle(event{Type: eventButton, Number: 7, Value: 0})
	j.handle(event{Type: eventButton, Number: 12, Value: 1}) // unmapped button

	r, err := j.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	expected := frame.Reading{
		LeftY:   -127,
		RightX:  127,
		Buttons: frame.Buttons(0).With(frame.A).With(frame.X),
	}
	if r != expected {
		t.Errorf("Poll = %+v, want %+v", r, expected)
	}
}

func TestJoystick_ReadLoop(t *testing.T) {
	j := newJoystick(DefaultMapping())
	data := encodeEvents(t,
		event{Type: eventButton, Number: 5, Value: 1},
		event{Type: eventAxis, Number: 1, Value: 16384},
	)

	j.readLoop(bytes.NewReader(data))

	_, err := j.Poll(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Poll after EOF error = %v, want io.EOF", err)
	}
	if j.reading.LeftY != 63 || !j.reading.Buttons.Has(frame.R1) {
		t.Errorf("state before EOF = %+v", j.reading)
	}
}

func TestJoystick_ReadLoopBackground(t *testing.T) {
	pr, pw := io.Pipe()
	j := newJoystick(DefaultMapping())
	go j.readLoop(pr)

	pw.Write(encodeEvents(t, event{Type: eventButton, Number: 1, Value: 1}))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r, _ := j.Poll(context.Background())
		if r.Buttons.Has(frame.B) {
			pw.Close()
			return
		}
		time.Sleep(time.Millisecond)
	}
	pw.Close()
	t.Error("button press never observed")
}

func TestMappingFrom(t *testing.T) {
	m, err := MappingFrom(0, 2, map[string]int{"a": 1, "R2": 9})
	if err != nil {
		t.Fatalf("MappingFrom error: %v", err)
	}
	if m.LeftYAxis != 0 || m.RightXAxis != 2 {
		t.Errorf("axes = %d,%d", m.LeftYAxis, m.RightXAxis)
	}
	if m.Buttons[1] != frame.A || m.Buttons[9] != frame.R2 || len(m.Buttons) != 2 {
		t.Errorf("buttons = %v", m.Buttons)
	}

	m, err = MappingFrom(1, 3, nil)
	if err != nil || len(m.Buttons) != 8 {
		t.Errorf("empty buttons should keep defaults: %v, %v", m.Buttons, err)
	}

	if _, err := MappingFrom(1, 3, map[string]int{"Z": 1}); err == nil {
		t.Error("unknown button name should fail")
	}
	if _, err := MappingFrom(1, 3, map[string]int{"A": 1, "B": 1}); err == nil {
		t.Error("duplicate button number should fail")
	}
}
