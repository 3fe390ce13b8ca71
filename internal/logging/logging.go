// Package logging builds the slog logger used by every alarmd component.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"k8s.io/utils/clock"

	"github.com/sandeepkv93/alarmd/internal/config"
)

// New returns a logger writing to w in the configured format. Text output
// is colorized only when w is a terminal and color was not disabled.
func New(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    cfg.NoColor || !isTerminal(w),
		})
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}
	return slog.New(h), nil
}

// OpenFile opens path for appending and returns a logger over it. The
// caller closes the returned file.
func OpenFile(cfg config.LogConfig, path string) (*slog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	log, err := New(cfg, f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return log, f, nil
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", raw)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ClockHandler stamps records with the time of an injected clock instead of
// the wall clock, so log lines agree with a fake clock in tests and replays.
type ClockHandler struct {
	slog.Handler
	clock clock.PassiveClock
}

func NewClockHandler(h slog.Handler, clk clock.PassiveClock) *ClockHandler {
	return &ClockHandler{Handler: h, clock: clk}
}

func (h *ClockHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Time = h.clock.Now()
	return h.Handler.Handle(ctx, r)
}

func (h *ClockHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ClockHandler{Handler: h.Handler.WithAttrs(attrs), clock: h.clock}
}

func (h *ClockHandler) WithGroup(name string) slog.Handler {
	return &ClockHandler{Handler: h.Handler.WithGroup(name), clock: h.clock}
}
