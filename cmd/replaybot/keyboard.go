package main

import (
	"context"
	"sync"
	"time"

	"github.com/gwillem/replaybot/pkg/frame"
)

// keyHold is how long a key counts as held after its last press. Terminals
// report no key releases, only auto-repeated presses.
const keyHold = 600 * time.Millisecond

const stickMax = 127

var keyButtons = map[string]frame.Button{
	"a": frame.A,
	"b": frame.B,
	"x": frame.X,
	"y": frame.Y,
	"r": frame.R1,
	"l": frame.L1,
	"R": frame.R2,
	"L": frame.L2,
}

// keyboard stands in for a joystick when none is configured. Arrow keys
// push the sticks fully; letters press buttons.
type keyboard struct {
	mu      sync.Mutex
	now     func() time.Time
	pressed map[string]time.Time
}

func newKeyboard() *keyboard {
	return &keyboard{now: time.Now, pressed: make(map[string]time.Time)}
}

// Press registers a key press and reports whether the key is mapped.
// Space releases everything.
func (k *keyboard) Press(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch key {
	case " ", "space":
		clear(k.pressed)
		return true
	case "up", "down", "left", "right":
	default:
		if _, ok := keyButtons[key]; !ok {
			return false
		}
	}
	k.pressed[key] = k.now()
	return true
}

func (k *keyboard) Poll(ctx context.Context) (frame.Reading, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	held := func(key string) bool {
		t, ok := k.pressed[key]
		return ok && now.Sub(t) < keyHold
	}

	var r frame.Reading
	// Stick forward is negative, as on a joystick.
	if held("up") {
		r.LeftY -= stickMax
	}
	if held("down") {
		r.LeftY += stickMax
	}
	if held("left") {
		r.RightX -= stickMax
	}
	if held("right") {
		r.RightX += stickMax
	}
	for key, b := range keyButtons {
		if held(key) {
			r.Buttons = r.Buttons.With(b)
		}
	}
	return r, nil
}
