package alarms

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultSweepSchedule = "@every 1m"

// Sweeper runs Maintain on a cron schedule.
type Sweeper struct {
	cron *cron.Cron
	log  *slog.Logger
}

// StartSweeper schedules the missed-alarm sweep and engine reconciliation.
// spec is any expression
// robfig/cron accepts, e.g. "@every 1m" or "*/5 * * * *".
func (s *Service) StartSweeper(ctx context.Context, spec string, loc *time.Location) (*Sweeper, error) {
	if spec == "" {
		spec = DefaultSweepSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	_, err := c.AddFunc(spec, func() {
		if err := s.Maintain(ctx); err != nil {
			s.log.WarnContext(ctx, "Alarm maintenance failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	c.Start()
	return &Sweeper{cron: c, log: s.log}, nil
}

// Stop waits for a running sweep to finish.
func (w *Sweeper) Stop() {
	<-w.cron.Stop().Done()
	w.log.Debug("Sweeper stopped")
}

// cronLogger routes cron's own logging to slog. Cron's info output is
// per-tick chatter, so it goes to debug.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
