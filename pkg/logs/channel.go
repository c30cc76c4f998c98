package logs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ChannelHandler formats records as single lines and sends them to a channel
// without blocking.
type ChannelHandler struct {
	ch     chan<- string
	level  slog.Leveler
	attrs  string // preformatted
	prefix string
}

// NewChannelHandler creates a handler sending to ch.
func NewChannelHandler(ch chan<- string, level slog.Leveler) *ChannelHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &ChannelHandler{ch: ch, level: level}
}

func (h *ChannelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *ChannelHandler) Handle(ctx context.Context, r slog.Record) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] ", r.Time.Format("15:04:05"))
	if r.Level != slog.LevelInfo {
		sb.WriteString(r.Level.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(r.Message)

	sb.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		sb.WriteString(formatAttr(h.prefix, a))
		return true
	})

	select {
	case h.ch <- sb.String():
	default:
		// Drop if channel full
	}
	return nil
}

func (h *ChannelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	for _, a := range attrs {
		clone.attrs += formatAttr(h.prefix, a)
	}
	return &clone
}

func (h *ChannelHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func formatAttr(prefix string, a slog.Attr) string {
	return fmt.Sprintf(" %s%s=%v", prefix, a.Key, a.Value)
}
