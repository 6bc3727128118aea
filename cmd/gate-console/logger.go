// ABOUTME: slog setup for the CLI: JSON or a compact colorized console format
// ABOUTME: Logs go to stderr so the call presenter owns stdout

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/gate-console/internal/config"
)

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newConsoleHandler(w, level, isTerminal(w)))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var levelTags = map[slog.Level]*color.Color{
	slog.LevelDebug: color.New(color.FgMagenta),
	slog.LevelInfo:  color.New(color.FgCyan),
	slog.LevelWarn:  color.New(color.FgYellow),
	slog.LevelError: color.New(color.FgRed, color.Bold),
}

// consoleHandler writes one line per record:
//
//	15:04:05 INF [coordinator] === CALL ADMITTED === session_id=... gate_id=G1
//
// The component attr is lifted into the bracketed tag.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Level
	colored   bool
	component string
	prefix    string // group path, dot-terminated
	attrs     string // pre-rendered WithAttrs output
}

func newConsoleHandler(w io.Writer, level slog.Level, colored bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, colored: colored}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(h.paint(color.New(color.FgHiBlack), r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(h.levelTag(r.Level))
	b.WriteByte(' ')

	component := h.component
	var rest strings.Builder
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" && h.prefix == "" {
			component = a.Value.String()
			return true
		}
		h.writeAttr(&rest, h.prefix, a)
		return true
	})

	if component != "" {
		b.WriteString(h.paint(color.New(color.FgBlue), "["+component+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	b.WriteString(rest.String())
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		if a.Key == "component" && h.prefix == "" {
			next.component = a.Value.String()
			continue
		}
		h.writeAttr(&b, h.prefix, a)
	}
	next.attrs = b.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
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
			h.writeAttr(b, p, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(h.paint(color.New(color.FgHiBlack), prefix+a.Key+"="))
	v := a.Value.String()
	if strings.ContainsAny(v, " \t\"=") || v == "" {
		v = strconv.Quote(v)
	}
	b.WriteString(v)
}

func (h *consoleHandler) levelTag(l slog.Level) string {
	var tag string
	switch {
	case l >= slog.LevelError:
		tag, l = "ERR", slog.LevelError
	case l >= slog.LevelWarn:
		tag, l = "WRN", slog.LevelWarn
	case l >= slog.LevelInfo:
		tag, l = "INF", slog.LevelInfo
	default:
		tag, l = "DBG", slog.LevelDebug
	}
	return h.paint(levelTags[l], tag)
}

func (h *consoleHandler) paint(c *color.Color, s string) string {
	if !h.colored {
		return s
	}
	return c.Sprint(s)
}
