package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/alarmd/internal/notify"
	"github.com/sandeepkv93/alarmd/internal/scheduler"
	"github.com/sandeepkv93/alarmd/internal/update"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive TUI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run headless: ring alarms, send notifications and mark missed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, opts)
		},
	}
}

// start queues every enabled alarm and starts the engine and the missed
// sweep. The returned func stops both.
func (a *app) start(ctx context.Context) (func(), error) {
	queued, err := a.svc.Reschedule(ctx)
	if err != nil {
		return nil, err
	}
	a.engine.Start()
	sweeper, err := a.svc.StartSweeper(ctx, a.cfg.Sweep.Schedule, a.loc)
	if err != nil {
		a.engine.Stop()
		return nil, err
	}
	a.log.InfoContext(ctx, "Scheduler started", slog.Int("queued", queued), slog.String("sweep", a.cfg.Sweep.Schedule))
	return func() {
		sweeper.Stop()
		a.engine.Stop()
	}, nil
}

func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	a, err := opts.open(cmd, modeTUI)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stop, err := a.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	m := update.NewModel(update.Options{
		Backend:  a.svc,
		Events:   a.engine.C(),
		Clock:    a.clock,
		Location: a.loc,
		Notifier: a.notifier,
		Log:      a.log,
	})
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("alarmd tui: %w", err)
	}
	return nil
}

func runDaemon(cmd *cobra.Command, opts *rootOptions) error {
	a, err := opts.open(cmd, modeDaemon)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	stop, err := a.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	a.ringLoop(ctx, a.engine.C())
	a.log.Info("Shutting down")
	return nil
}

// ringLoop announces each alarm as it fires until ctx is done. Answering
// happens through the CLI or the TUI; unanswered alarms are picked up by
// the missed sweep.
func (a *app) ringLoop(ctx context.Context, events <-chan scheduler.AlarmEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.log.InfoContext(ctx, "Alarm ringing",
				slog.String("id", ev.AlarmID),
				slog.String("title", ev.Title),
				slog.Time("fire_at", ev.FireAt),
			)
			n := notify.Notification{
				Title: ev.Title,
				Body:  fmt.Sprintf("%s is ringing (%s)", ev.Title, ev.FireAt.In(a.loc).Format("15:04")),
				Level: "alarm",
				At:    a.clock.Now(),
			}
			if err := a.notifier.Send(n); err != nil {
				a.log.WarnContext(ctx, "Desktop notification failed", slog.Any("error", err))
			}
		}
	}
}
