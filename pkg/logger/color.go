// Package logger builds the slog handlers used by the CLI and server:
// a colored terminal handler, JSON and text handlers, and an optional
// rotating log file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Messages containing any of these words are highlighted in green at info
// level: they mark graph state changes.
var highlightWords = []string{"rebuil", "export", "persist", "insert", "dispatch"}

var (
	debugColor     = color.New(color.Faint)
	warnColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed, color.Bold)
	highlightColor = color.New(color.FgGreen)
	keyColor       = color.New(color.FgCyan)
)

// ColorHandler renders records as single colored lines:
//
//	15:04:05.000 INFO  Graph rebuilt nodes=12 communities=3
type ColorHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	prefix string // pre-rendered attrs from WithAttrs
	group  string
}

var _ slog.Handler = (*ColorHandler)(nil)

// NewColorHandler creates a ColorHandler writing to w. Colors are dropped
// when color.NoColor is set, e.g. when w is not a terminal.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	h := &ColorHandler{mu: &sync.Mutex{}, w: w}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// NewDefaultLogger returns a colored stderr-style logger at level.
func NewDefaultLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(w, &slog.HandlerOptions{Level: level}))
}

// Enabled implements slog.Handler.
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

// Handle implements slog.Handler.
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format("15:04:05.000"))
		b.WriteByte(' ')
	}

	level := fmt.Sprintf("%-5s", r.Level.String())
	msg := r.Message
	switch {
	case r.Level >= slog.LevelError:
		level, msg = errorColor.Sprint(level), errorColor.Sprint(msg)
	case r.Level >= slog.LevelWarn:
		level, msg = warnColor.Sprint(level), warnColor.Sprint(msg)
	case r.Level < slog.LevelInfo:
		level, msg = debugColor.Sprint(level), debugColor.Sprint(msg)
	case highlighted(msg):
		msg = highlightColor.Sprint(msg)
	}
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	b.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler.
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	c := *h
	c.prefix = b.String()
	return &c
}

// WithGroup implements slog.Handler.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}

func highlighted(msg string) bool {
	lower := strings.ToLower(msg)
	for _, w := range highlightWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}

	var val string
	switch a.Value.Kind() {
	case slog.KindString:
		val = a.Value.String()
		if strings.ContainsAny(val, " \t\"=") || val == "" {
			val = fmt.Sprintf("%q", val)
		}
	case slog.KindDuration:
		val = a.Value.Duration().Round(time.Microsecond).String()
	default:
		val = a.Value.String()
	}
	b.WriteByte(' ')
	b.WriteString(keyColor.Sprint(key))
	b.WriteByte('=')
	b.WriteString(val)
}
