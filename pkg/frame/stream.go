package frame

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Reader decodes frames one line at a time.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next frame, or io.EOF when the input is exhausted.
// Blank lines are skipped.
func (r *Reader) Next() (Frame, error) {
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		f, err := Decode(text)
		if err != nil {
			return Frame{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("read trace: %w", err)
	}
	return Frame{}, io.EOF
}

// ReadAll decodes every frame in r. It fails on the first malformed line and
// returns no frames in that case.
func ReadAll(r io.Reader) ([]Frame, error) {
	fr := NewReader(r)
	var frames []Frame
	for {
		f, err := fr.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
}

// Writer appends encoded frames to an underlying writer.
type Writer struct {
	w     io.Writer
	count int
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes f and appends it.
func (w *Writer) Write(f Frame) error {
	if _, err := io.WriteString(w.w, Encode(f)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of frames written.
func (w *Writer) Count() int {
	return w.count
}
