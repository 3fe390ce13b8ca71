package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/alarmd/internal/alarms"
	"github.com/sandeepkv93/alarmd/internal/model"
)

type draftFlags struct {
	title    string
	at       string
	schedule string
	category string
	disabled bool
}

func (f *draftFlags) register(cmd *cobra.Command, withTitle bool) {
	if withTitle {
		cmd.Flags().StringVar(&f.title, "title", "", "new title")
	}
	cmd.Flags().StringVar(&f.at, "at", "", "times of day, e.g. 07:00,19:30")
	cmd.Flags().StringVar(&f.schedule, "schedule", "", `schedule, e.g. "weekdays", "monthly last fri", "every 3 days"`)
	cmd.Flags().StringVar(&f.category, "category", "", "general, health, work, personal or finance")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "save the alarm switched off")
}

// apply overlays the flags that were set on d.
func (f *draftFlags) apply(cmd *cobra.Command, a *app, d *alarms.Draft) error {
	if cmd.Flags().Changed("title") {
		d.Title = f.title
	}
	if f.at != "" {
		times, err := model.ParseTimes(f.at)
		if err != nil {
			return err
		}
		d.Times = times
	}
	if f.schedule != "" {
		s, err := model.ParseSchedule(f.schedule, a.now())
		if err != nil {
			return err
		}
		d.Schedule = s
	}
	if f.category != "" {
		c := model.Category(strings.ToLower(f.category))
		if !c.IsValid() {
			return fmt.Errorf("%w: %q", model.ErrInvalidCategory, f.category)
		}
		d.Category = c
	}
	if cmd.Flags().Changed("disabled") {
		d.Disabled = f.disabled
	}
	return nil
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var f draftFlags
	var check bool
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create an alarm",
		Example: `  alarmd add "Stretch" --at 10:30,15:00 --schedule weekdays
  alarmd add "Pay rent" --at 09:00 --schedule "monthly 1" --category finance
  alarmd add "Book club" --at 19:00 --schedule "monthly last thu"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.at == "" {
				return fmt.Errorf("--at is required")
			}
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			d := alarms.Draft{Title: args[0]}
			if f.schedule == "" {
				f.schedule = "daily"
			}
			if err := f.apply(cmd, a, &d); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if check {
				res, err := a.svc.Check(cmd.Context(), d)
				if err != nil {
					return err
				}
				printWarnings(out, res)
				if !res.OK() {
					return res.Err()
				}
				fmt.Fprintf(out, "ok: %s\n", d.Schedule.Describe())
				return nil
			}

			alarm, res, err := a.svc.Save(cmd.Context(), d)
			printWarnings(out, res)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "added %s %q, next %s\n", shortID(alarm.ID), alarm.Title, a.formatTime(alarm.NextFireAt))
			return nil
		},
	}
	f.register(cmd, false)
	cmd.Flags().BoolVar(&check, "check", false, "validate only, do not save")
	return cmd
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	var f draftFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change an alarm's title, times, schedule or category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			d := alarms.Draft{
				ID:       current.ID,
				Title:    current.Title,
				Category: current.Category,
				Schedule: current.Schedule,
				Times:    current.Times,
				Disabled: !current.Enabled,
			}
			if err := f.apply(cmd, a, &d); err != nil {
				return err
			}
			alarm, res, err := a.svc.Save(cmd.Context(), d)
			printWarnings(cmd.OutOrStdout(), res)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s %q, next %s\n", shortID(alarm.ID), alarm.Title, a.formatTime(alarm.NextFireAt))
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func newRecordCmd(opts *rootOptions, use, short string, action model.Action) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := a.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			alarm, err := a.svc.Record(cmd.Context(), target.ID, action)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q, next %s\n", action, alarm.Title, a.formatTime(alarm.NextFireAt))
			return nil
		},
	}
}

func newEnableCmd(opts *rootOptions, enabled bool) *cobra.Command {
	use, short := "enable", "Switch an alarm on"
	if !enabled {
		use, short = "disable", "Switch an alarm off"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := a.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			alarm, err := a.svc.SetEnabled(cmd.Context(), target.ID, enabled)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd %q\n", use, alarm.Title)
			return nil
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an alarm and its history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			target, err := a.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.svc.Delete(cmd.Context(), target.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q\n", target.Title)
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
