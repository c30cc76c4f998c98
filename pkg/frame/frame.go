// Package frame encodes and decodes one tick of controller state as a line of text.
//
// A line looks like "-40:15ab": drive, a colon, turn, then one letter for every
// button held that tick. There is no separator between the turn value and the
// button letters; the letters never collide with digits, signs or the colon.
package frame

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedFrame is returned when a trace line cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// Button is a single digital control on the controller.
type Button uint8

// Buttons in canonical encoding order.
const (
	A Button = 1 << iota
	B
	R1
	L1
	X
	Y
	L2
	R2
)

// AllButtons returns every button in canonical encoding order.
func AllButtons() []Button {
	return []Button{A, B, R1, L1, X, Y, L2, R2}
}

var letters = map[Button]byte{
	A:  'a',
	B:  'b',
	R1: 'r',
	L1: 'l',
	X:  'x',
	Y:  'y',
	L2: 'L',
	R2: 'R',
}

var names = map[Button]string{
	A:  "A",
	B:  "B",
	R1: "R1",
	L1: "L1",
	X:  "X",
	Y:  "Y",
	L2: "L2",
	R2: "R2",
}

// Letter returns the character used for b in a trace line.
func (b Button) Letter() byte {
	return letters[b]
}

func (b Button) String() string {
	if n, ok := names[b]; ok {
		return n
	}
	return fmt.Sprintf("Button(%d)", uint8(b))
}

// ParseButton looks up a button by its name ("A", "R1", ...).
func ParseButton(name string) (Button, bool) {
	for _, b := range AllButtons() {
		if strings.EqualFold(names[b], name) {
			return b, true
		}
	}
	return 0, false
}

// Buttons is the set of buttons held during one tick.
type Buttons uint8

// Has reports whether b is in the set.
func (s Buttons) Has(b Button) bool {
	return s&Buttons(b) != 0
}

// With returns the set with b added.
func (s Buttons) With(b Button) Buttons {
	return s | Buttons(b)
}

func (s Buttons) String() string {
	var parts []string
	for _, b := range AllButtons() {
		if s.Has(b) {
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, "+")
}

// Frame is one tick of captured controller state.
type Frame struct {
	Drive   int
	Turn    int
	Buttons Buttons
}

// Encode renders f as a newline-terminated trace line.
func Encode(f Frame) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(f.Drive))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(f.Turn))
	for _, b := range AllButtons() {
		if f.Buttons.Has(b) {
			sb.WriteByte(b.Letter())
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Decode parses a single trace line.
//
// Decoding is permissive after the turn value: button letters are found by
// searching the remainder of the line, and characters that are not button
// letters are ignored.
func Decode(line string) (Frame, error) {
	line = strings.TrimRight(line, "\r\n")

	head, rest, ok := strings.Cut(line, ":")
	if !ok {
		return Frame{}, fmt.Errorf("%w: missing ':' in %q", ErrMalformedFrame, line)
	}

	drive, err := strconv.Atoi(head)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: bad drive value in %q", ErrMalformedFrame, line)
	}

	n := numericPrefix(rest)
	turn, err := strconv.Atoi(rest[:n])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: bad turn value in %q", ErrMalformedFrame, line)
	}

	var buttons Buttons
	suffix := rest[n:]
	for _, b := range AllButtons() {
		if strings.IndexByte(suffix, b.Letter()) >= 0 {
			buttons = buttons.With(b)
		}
	}

	return Frame{Drive: drive, Turn: turn, Buttons: buttons}, nil
}

// numericPrefix returns the length of the optional sign and digits at the start of s.
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

// Reading is one poll of the physical controller.
type Reading struct {
	LeftY   int
	RightX  int
	Buttons Buttons
}

// FromReading builds the frame recorded for a controller poll. The left stick
// reports forward as negative, so drive is its negation.
func FromReading(r Reading) Frame {
	return Frame{
		Drive:   -r.LeftY,
		Turn:    r.RightX,
		Buttons: r.Buttons,
	}
}
