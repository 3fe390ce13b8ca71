// Package recurrence computes when an alarm fires next.
//
// The Calculator is a pure function of (schedule, times of day, reference
// instant) bound to a calendar. It never returns an instant at or before the
// reference except in one case: when the calendar cannot build a date from
// the schedule's fields, the reference is returned unchanged and the failure
// is logged.
package recurrence

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/sandeepkv93/alarmd/internal/calendar"
	"github.com/sandeepkv93/alarmd/internal/model"
)

// Never is returned when a schedule has no future occurrence.
var Never = time.Date(4001, time.January, 1, 0, 0, 0, 0, time.UTC)

func IsNever(t time.Time) bool { return !t.Before(Never) }

var errNoDays = errors.New("recurrence: schedule selects no days")

type Calculator struct {
	cal *calendar.Calendar
	log *slog.Logger
}

func New(cal *calendar.Calendar, log *slog.Logger) *Calculator {
	if cal == nil {
		cal = calendar.New(time.UTC, nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Calculator{cal: cal, log: log}
}

func (c *Calculator) Calendar() *calendar.Calendar { return c.cal }

// NextFireDate returns the earliest fire instant over all times. An empty
// list of times yields Never.
func (c *Calculator) NextFireDate(s model.Schedule, times []model.TimeOfDay, ref time.Time) time.Time {
	dates := c.NextFireDates(s, times, ref)
	if len(dates) == 0 {
		return Never
	}
	return dates[0]
}

// NextFireDates evaluates each time of day independently and returns one
// instant per time, ascending.
func (c *Calculator) NextFireDates(s model.Schedule, times []model.TimeOfDay, ref time.Time) []time.Time {
	out := make([]time.Time, 0, len(times))
	for _, tod := range times {
		out = append(out, c.Next(s, tod, ref))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Next returns the first occurrence of s at tod strictly after ref.
func (c *Calculator) Next(s model.Schedule, tod model.TimeOfDay, ref time.Time) time.Time {
	ref = c.cal.In(ref)

	var (
		next time.Time
		err  error
	)
	switch v := s.(type) {
	case model.Weekly:
		next, err = c.weekly(v, tod, ref)
	case model.MonthlyByDate:
		next, err = c.monthlyByDate(v, tod, ref)
	case model.MonthlyRelative:
		next, err = c.monthlyRelative(v, tod, ref)
	case model.Annual:
		next, err = c.annual(v, tod, ref)
	case model.CustomIntervalDays:
		next, err = c.customInterval(v, tod, ref)
	case model.OneTime:
		next, err = c.oneTime(v, tod, ref)
	case nil:
		err = errors.New("recurrence: nil schedule")
	default:
		err = fmt.Errorf("%w: %T", model.ErrUnknownScheduleType, s)
	}
	if err != nil {
		kind := "none"
		if s != nil {
			kind = string(s.Kind())
		}
		c.log.Warn("Next fire calculation failed, falling back to reference instant",
			slog.String("schedule", kind),
			slog.String("time", tod.String()),
			slog.Time("ref", ref),
			slog.Any("error", err),
		)
		return ref
	}
	return next
}

// Preview lists up to n fire instants after ref across all times, ascending
// and without duplicates. It stops early when the schedule is exhausted.
func (c *Calculator) Preview(s model.Schedule, times []model.TimeOfDay, ref time.Time, n int) []time.Time {
	out := make([]time.Time, 0, max(n, 0))
	cursor := ref
	for len(out) < n {
		next := c.NextFireDate(s, times, cursor)
		if IsNever(next) || !next.After(cursor) {
			break
		}
		out = append(out, next)
		cursor = next
	}
	return out
}

// weekly considers the selected days left in the current Monday-first week.
// When none remain it jumps to the week Interval weeks after this one.
func (c *Calculator) weekly(w model.Weekly, tod model.TimeOfDay, ref time.Time) (time.Time, error) {
	days := make([]model.Weekday, 0, len(w.Days))
	for _, d := range w.Days {
		if d.IsValid() {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return time.Time{}, errNoDays
	}
	slices.Sort(days)

	today := c.cal.Weekday(ref)
	var best time.Time
	for _, d := range days {
		delta := int(d) - int(today)
		if delta < 0 {
			continue
		}
		cand, err := c.cal.SetTime(c.cal.AddDays(ref, delta), tod)
		if err != nil {
			return time.Time{}, err
		}
		if cand.After(ref) && (best.IsZero() || cand.Before(best)) {
			best = cand
		}
	}
	if !best.IsZero() {
		return best, nil
	}

	anchor := c.cal.AddDays(c.cal.StartOfWeek(ref), 7*interval(w.Interval))
	return c.cal.SetTime(c.cal.AddDays(anchor, int(days[0]-model.Monday)), tod)
}

// monthlyByDate clamps each day to the month length. When nothing is left
// this month it steps from the first of the month, so day 31 never spills
// into the following month.
func (c *Calculator) monthlyByDate(m model.MonthlyByDate, tod model.TimeOfDay, ref time.Time) (time.Time, error) {
	if len(m.Days) == 0 {
		return time.Time{}, errNoDays
	}
	days := slices.Clone(m.Days)
	slices.Sort(days)

	year, month, _ := ref.Date()
	for _, d := range days {
		cand, err := c.cal.Date(year, month, min(d, c.cal.DaysInMonth(year, month)), tod)
		if err != nil {
			return time.Time{}, err
		}
		if cand.After(ref) {
			return cand, nil
		}
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, c.cal.Location())
	year, month, _ = c.cal.AddMonths(first, interval(m.Interval)).Date()
	return c.cal.Date(year, month, min(days[0], c.cal.DaysInMonth(year, month)), tod)
}

func (c *Calculator) monthlyRelative(m model.MonthlyRelative, tod model.TimeOfDay, ref time.Time) (time.Time, error) {
	year, month, _ := ref.Date()
	cand, err := c.nthWeekday(year, month, m.Week, m.Weekday, tod)
	if err != nil {
		return time.Time{}, err
	}
	if cand.After(ref) {
		return cand, nil
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, c.cal.Location())
	year, month, _ = c.cal.AddMonths(first, interval(m.Interval)).Date()
	return c.nthWeekday(year, month, m.Week, m.Weekday, tod)
}

// nthWeekday resolves the week-th wd of the month. A fifth occurrence that
// does not exist falls back to the last one.
func (c *Calculator) nthWeekday(year int, month time.Month, week int, wd model.Weekday, tod model.TimeOfDay) (time.Time, error) {
	if !wd.IsValid() {
		return time.Time{}, fmt.Errorf("%w: weekday %d", model.ErrInvalidSchedule, int(wd))
	}
	dim := c.cal.DaysInMonth(year, month)

	var day int
	switch {
	case week == model.LastWeek:
		last := model.WeekdayOf(time.Date(year, month, dim, 12, 0, 0, 0, time.UTC).Weekday())
		day = dim - (int(last)-int(wd)+7)%7
	case week >= 1 && week <= 5:
		first := model.WeekdayOf(time.Date(year, month, 1, 12, 0, 0, 0, time.UTC).Weekday())
		day = 1 + (int(wd)-int(first)+7)%7 + 7*(week-1)
		for day > dim {
			day -= 7
		}
	default:
		return time.Time{}, fmt.Errorf("%w: week of month %d", model.ErrInvalidSchedule, week)
	}
	return c.cal.Date(year, month, day, tod)
}

func (c *Calculator) annual(a model.Annual, tod model.TimeOfDay, ref time.Time) (time.Time, error) {
	year := ref.Year()
	cand, err := c.cal.Date(year, a.Month, min(a.Day, c.cal.DaysInMonth(year, a.Month)), tod)
	if err != nil {
		return time.Time{}, err
	}
	if cand.After(ref) {
		return cand, nil
	}
	year += interval(a.Interval)
	return c.cal.Date(year, a.Month, min(a.Day, c.cal.DaysInMonth(year, a.Month)), tod)
}

// customInterval fires on Start's date and every IntervalDays calendar days
// after it. Day counting uses calendar dates, not elapsed hours.
func (c *Calculator) customInterval(ci model.CustomIntervalDays, tod model.TimeOfDay, ref time.Time) (time.Time, error) {
	if ci.Start.IsZero() {
		return time.Time{}, fmt.Errorf("%w: custom interval without start", model.ErrInvalidSchedule)
	}
	step := interval(ci.IntervalDays)
	start := c.cal.StartOfDay(ci.Start)

	days := c.cal.DaysBetween(start, ref)
	if days < 0 {
		return c.cal.SetTime(start, tod)
	}
	cand, err := c.cal.SetTime(c.cal.AddDays(start, (days/step)*step), tod)
	if err != nil {
		return time.Time{}, err
	}
	if cand.After(ref) {
		return cand, nil
	}
	return c.cal.SetTime(c.cal.AddDays(start, (days/step+1)*step), tod)
}

func (c *Calculator) oneTime(o model.OneTime, tod model.TimeOfDay, ref time.Time) (time.Time, error) {
	if o.FireAt.IsZero() {
		return time.Time{}, fmt.Errorf("%w: one-time schedule without date", model.ErrInvalidSchedule)
	}
	cand, err := c.cal.SetTime(o.FireAt, tod)
	if err != nil {
		return time.Time{}, err
	}
	if cand.After(ref) {
		return cand, nil
	}
	return Never, nil
}

func interval(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
