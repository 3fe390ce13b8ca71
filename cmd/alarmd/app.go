package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/sandeepkv93/alarmd/internal/alarms"
	"github.com/sandeepkv93/alarmd/internal/calendar"
	"github.com/sandeepkv93/alarmd/internal/config"
	"github.com/sandeepkv93/alarmd/internal/logging"
	"github.com/sandeepkv93/alarmd/internal/model"
	"github.com/sandeepkv93/alarmd/internal/notify"
	"github.com/sandeepkv93/alarmd/internal/recurrence"
	"github.com/sandeepkv93/alarmd/internal/scheduler"
	"github.com/sandeepkv93/alarmd/internal/storage"
	"github.com/sandeepkv93/alarmd/internal/validate"
)

type mode int

const (
	// modeCLI runs one command and exits; nothing is queued.
	modeCLI mode = iota
	modeTUI
	modeDaemon
)

type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
}

// app is everything a command needs, wired from config.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	logFile  io.Closer
	loc      *time.Location
	clock    clock.Clock
	repo     *storage.SQLiteRepository
	calc     *recurrence.Calculator
	engine   *scheduler.Engine
	svc      *alarms.Service
	notifier notify.Notifier
}

func (o *rootOptions) open(cmd *cobra.Command, m mode) (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Database = o.dbPath
	}
	switch {
	case o.logLevel != "":
		cfg.Log.Level = strings.ToLower(o.logLevel)
	case m == modeCLI && cfg.Log.Level == "info":
		// One-shot commands print their own results.
		cfg.Log.Level = "warn"
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, loc: loc, clock: clock.RealClock{}, notifier: notify.Noop{}}
	if err := a.openLog(cmd, m); err != nil {
		return nil, err
	}
	if cfg.Notify.Desktop {
		a.notifier = notify.Desktop{}
	}

	if err := cfg.EnsureDatabaseDir(); err != nil {
		a.Close()
		return nil, err
	}
	a.repo, err = storage.OpenSQLite(cfg.Database, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.calc = recurrence.New(calendar.New(loc, a.clock), a.log)
	if m != modeCLI {
		a.engine = scheduler.NewEngine(cfg.Scheduler.Buffer, a.clock)
	}
	a.svc, err = alarms.New(alarms.Options{
		Repo:          a.repo,
		Calculator:    a.calc,
		Validator:     validate.New(cfg.Validation.MaxTitleLength),
		Engine:        a.engine,
		Clock:         a.clock,
		Log:           a.log,
		SnoozeMinutes: cfg.Snooze.Minutes,
		MaxSnoozes:    cfg.Snooze.MaxCount,
		MissedAfter:   cfg.MissedAfter(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openLog sends logs to the configured file, or for the TUI to the XDG state
// file so they never draw over the screen, or else to stderr. Records are
// stamped by the app clock, the one the engine and the sweep run on.
func (a *app) openLog(cmd *cobra.Command, m mode) error {
	if err := a.openLogHandler(cmd, m); err != nil {
		return err
	}
	a.log = slog.New(logging.NewClockHandler(a.log.Handler(), a.clock))
	return nil
}

func (a *app) openLogHandler(cmd *cobra.Command, m mode) error {
	path := a.cfg.Log.File
	if path == "" && m == modeTUI {
		var err error
		if path, err = config.DefaultLogFile(); err != nil {
			return fmt.Errorf("determine log file: %w", err)
		}
	}
	if path == "" {
		log, err := logging.New(a.cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.log = log
		return nil
	}
	log, f, err := logging.OpenFile(a.cfg.Log, path)
	if err != nil {
		return err
	}
	a.log, a.logFile = log, f
	return nil
}

func (a *app) Close() {
	if a.engine != nil {
		a.engine.Stop()
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.log.Warn("Closing database failed", "error", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func (a *app) now() time.Time {
	return a.clock.Now().In(a.loc)
}

// resolve finds an alarm by full ID or unambiguous prefix.
func (a *app) resolve(ctx context.Context, ref string) (model.Alarm, error) {
	if alarm, err := a.svc.Get(ctx, ref); err == nil {
		return alarm, nil
	}
	list, err := a.svc.List(ctx, storage.AlarmListFilter{})
	if err != nil {
		return model.Alarm{}, err
	}
	var matches []model.Alarm
	for _, alarm := range list {
		if strings.HasPrefix(alarm.ID, ref) {
			matches = append(matches, alarm)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Alarm{}, fmt.Errorf("no alarm matches %q: %w", ref, storage.ErrNotFound)
	default:
		return model.Alarm{}, fmt.Errorf("%q matches %d alarms, use a longer prefix", ref, len(matches))
	}
}

func (a *app) formatTime(t time.Time) string {
	if t.IsZero() || recurrence.IsNever(t) {
		return "never"
	}
	return t.In(a.loc).Format("Mon 2006-01-02 15:04 MST")
}

func printWarnings(w io.Writer, res validate.Result) {
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning.Message)
	}
}
