package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// New builds a slog.Logger writing to w in the given format ("json" or
// "text"). The returned LevelVar controls the minimum level and may be
// changed at any time, e.g. on config reload.
//
// The text format uses charmbracelet/log for human-friendly console output.
func New(w io.Writer, format, level string) (*slog.Logger, *slog.LevelVar, error) {
	if w == nil {
		w = os.Stderr
	}

	lv := new(slog.LevelVar)
	if err := SetLevel(lv, level); err != nil {
		return nil, nil, err
	}

	var h slog.Handler
	switch format {
	case "json", "":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv})
	case "text":
		console := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmlog.DebugLevel,
		})
		h = &levelHandler{level: lv, next: console}
	default:
		return nil, nil, fmt.Errorf("logging: unknown format %q", format)
	}

	return slog.New(h), lv, nil
}

// SetLevel parses level and stores it in lv. An empty level means info.
func SetLevel(lv *slog.LevelVar, level string) error {
	switch strings.ToLower(level) {
	case "debug":
		lv.Set(slog.LevelDebug)
	case "info", "":
		lv.Set(slog.LevelInfo)
	case "warn", "warning":
		lv.Set(slog.LevelWarn)
	case "error":
		lv.Set(slog.LevelError)
	default:
		return fmt.Errorf("logging: unknown level %q", level)
	}
	return nil
}

// levelHandler gates a handler behind a LevelVar. The charm logger keeps its
// own level, which is pinned to debug so this wrapper is the only filter.
type levelHandler struct {
	level *slog.LevelVar
	next  slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.next.Enabled(ctx, l)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, next: h.next.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, next: h.next.WithGroup(name)}
}
