package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/alarmd/internal/export"
	"github.com/sandeepkv93/alarmd/internal/model"
	"github.com/sandeepkv93/alarmd/internal/storage"
	"github.com/sandeepkv93/alarmd/internal/views"
)

var headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var bodyCell = lipgloss.NewStyle().Padding(0, 1)

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		all      bool
		category string
		limit    int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List alarms by next fire",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			var list []model.Alarm
			if !all && category == "" {
				list, err = a.svc.Upcoming(cmd.Context(), limit)
			} else {
				filter := storage.AlarmListFilter{ByNextFire: true, Limit: limit, Category: model.Category(category)}
				if !all {
					enabled := true
					filter.Enabled = &enabled
				}
				list, err = a.svc.List(cmd.Context(), filter)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no alarms")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "On", "Title", "Schedule", "Times", "Next").
				StyleFunc(func(row, _ int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerCell
					}
					return bodyCell
				})
			for _, alarm := range list {
				on := "yes"
				if !alarm.Enabled {
					on = "no"
				}
				t.Row(shortID(alarm.ID), on, alarm.Title, alarm.Schedule.Describe(), joinTimes(alarm.Times), a.formatTime(alarm.NextFireAt))
			}
			fmt.Fprintln(out, t.String())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include disabled alarms")
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "at most this many alarms")
	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an alarm with its upcoming fires and streaks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			alarm, err := a.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			upcoming, err := a.svc.Preview(cmd.Context(), alarm.ID, 5)
			if err != nil {
				return err
			}
			sum, err := a.svc.Streaks(cmd.Context(), alarm.ID)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "# %s\n\n", alarm.Title)
			fmt.Fprintf(&b, "- **ID:** `%s`\n", alarm.ID)
			fmt.Fprintf(&b, "- **Category:** %s\n", alarm.Category)
			fmt.Fprintf(&b, "- **Schedule:** %s at %s\n", alarm.Schedule.Describe(), joinTimes(alarm.Times))
			fmt.Fprintf(&b, "- **Enabled:** %t\n", alarm.Enabled)
			fmt.Fprintf(&b, "- **Snoozed:** %d times\n\n", alarm.SnoozeCount)
			b.WriteString("## Upcoming\n\n")
			if len(upcoming) == 0 {
				b.WriteString("Nothing scheduled.\n")
			}
			for _, t := range upcoming {
				fmt.Fprintf(&b, "1. %s\n", a.formatTime(t))
			}
			b.WriteString("\n## Streaks\n\n")
			fmt.Fprintf(&b, "Current %d, longest %d. %d completed, %d missed (%.0f%%).\n",
				sum.Current, sum.Longest, sum.Completed, sum.Missed, sum.CompletionRate*100)

			if raw {
				fmt.Fprint(cmd.OutOrStdout(), b.String())
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), views.RenderMarkdown(b.String(), 80))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	return cmd
}

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var (
		schedule string
		at       string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "preview [id]",
		Short: "List the next fires of an alarm or of an ad hoc schedule",
		Example: `  alarmd preview 3f2a
  alarmd preview --schedule "monthly 31" --at 08:00 -n 6`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && schedule == "" {
				return fmt.Errorf("give an alarm id or --schedule")
			}
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			var fires []model.TimeOfDay
			var s model.Schedule
			if len(args) == 1 {
				alarm, err := a.resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				s, fires = alarm.Schedule, alarm.Times
			} else {
				if s, err = model.ParseSchedule(schedule, a.now()); err != nil {
					return err
				}
				if at == "" {
					at = "09:00"
				}
				if fires, err = model.ParseTimes(at); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s at %s\n", s.Describe(), joinTimes(fires))
			upcoming := a.calc.Preview(s, fires, a.now(), count)
			if len(upcoming) == 0 {
				fmt.Fprintln(out, "  never fires again")
			}
			for _, t := range upcoming {
				fmt.Fprintf(out, "  %s\n", a.formatTime(t))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "schedule expression to preview")
	cmd.Flags().StringVar(&at, "at", "", "times of day for --schedule (default 09:00)")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "how many fires to show")
	return cmd
}

func newStreakCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "streak <id>",
		Short: "Show the current and longest completion streak",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			alarm, err := a.resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sum, err := a.svc.Streaks(cmd.Context(), alarm.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", alarm.Title)
			fmt.Fprintf(out, "  current streak: %d\n", sum.Current)
			fmt.Fprintf(out, "  longest streak: %d\n", sum.Longest)
			fmt.Fprintf(out, "  completed %d, snoozed %d, skipped %d, missed %d\n", sum.Completed, sum.Snoozed, sum.Skipped, sum.Missed)
			fmt.Fprintf(out, "  completion rate: %.0f%%\n", sum.CompletionRate*100)
			return nil
		},
	}
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		outPath string
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write alarms as an iCalendar (.ics) feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd, modeCLI)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.svc.List(cmd.Context(), storage.AlarmListFilter{ByNextFire: true})
			if err != nil {
				return err
			}
			exporter := export.New(a.calc, a.clock)
			exportOpts := export.Options{IncludeDisabled: all}
			if outPath == "" || outPath == "-" {
				return exporter.Write(cmd.OutOrStdout(), list, exportOpts)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", outPath, err)
			}
			if err := exporter.Write(f, list, exportOpts); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d alarms to %s\n", len(list), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&all, "all", false, "include disabled alarms")
	return cmd
}

func joinTimes(times []model.TimeOfDay) string {
	parts := make([]string, 0, len(times))
	for _, t := range times {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ", ")
}
