// Package logger provides structured logging with colored output.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// New creates a structured logger writing to stderr at the given level, so
// that stdout stays free for command results.
// Uses colored text format by default, JSON if LOG_FORMAT=json env var is set.
// Colors can be disabled by setting NO_COLOR=1 or LOG_COLOR=false.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, shouldUseColor())
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, level string, useColor bool) *slog.Logger {
	l := ParseLevel(level)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l}))
	}
	return slog.New(&coloredTextHandler{
		out:    &output{w: w},
		level:  l,
		colors: newPalette(useColor),
	})
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// shouldUseColor determines if colored output should be used.
func shouldUseColor() bool {
	// Respect NO_COLOR env var (https://no-color.org/)
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if logColor := strings.ToLower(os.Getenv("LOG_COLOR")); logColor == "false" || logColor == "0" {
		return false
	}
	return !color.NoColor
}

type palette struct {
	time, attr, debug, info, warn, err *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		time:  color.New(color.FgHiBlack),
		attr:  color.New(color.FgHiBlack),
		debug: color.New(color.FgCyan),
		info:  color.New(color.FgBlue),
		warn:  color.New(color.FgYellow),
		err:   color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.time, p.attr, p.debug, p.info, p.warn, p.err} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// output serializes writes from handlers derived with WithAttrs/WithGroup.
type output struct {
	mu sync.Mutex
	w  io.Writer
}

// coloredTextHandler is a custom slog.Handler that outputs colored text logs.
type coloredTextHandler struct {
	out    *output
	level  slog.Level
	colors palette
	attrs  []slog.Attr // already qualified with the group prefix
	prefix string
}

func (h *coloredTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *coloredTextHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	buf.WriteString(h.colors.time.Sprint(r.Time.Format("2006-01-02 15:04:05")))
	buf.WriteString(" ")

	switch {
	case r.Level >= slog.LevelError:
		buf.WriteString(h.colors.err.Sprint("ERROR"))
	case r.Level >= slog.LevelWarn:
		buf.WriteString(h.colors.warn.Sprint("WARN "))
	case r.Level >= slog.LevelInfo:
		buf.WriteString(h.colors.info.Sprint("INFO "))
	default:
		buf.WriteString(h.colors.debug.Sprint("DEBUG"))
	}
	buf.WriteString(" ")
	buf.WriteString(r.Message)

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, h.prefix, a)
		return true
	})
	for _, a := range h.attrs {
		h.writeAttr(&buf, "", a)
	}
	buf.WriteString("\n")

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, buf.String())
	return err
}

func (h *coloredTextHandler) writeAttr(buf *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(buf, p, ga)
		}
		return
	}

	value := a.Value.String()
	switch {
	case strings.Contains(value, "\n"):
		// diffs and command output stay readable as a block
		value = "\n" + strings.TrimRight(value, "\n")
	case strings.ContainsAny(value, " \t\""):
		value = `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}
	buf.WriteString(" ")
	buf.WriteString(h.colors.attr.Sprint(prefix + a.Key + "=" + value))
}

func (h *coloredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		newAttrs = append(newAttrs, a)
	}
	c := *h
	c.attrs = newAttrs
	return &c
}

func (h *coloredTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}
