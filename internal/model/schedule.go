package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrInvalidSchedule = errors.New("model: invalid schedule")

type ScheduleKind string

const (
	KindWeekly             ScheduleKind = "weekly"
	KindMonthlyByDate      ScheduleKind = "monthly_by_date"
	KindMonthlyRelative    ScheduleKind = "monthly_relative"
	KindAnnual             ScheduleKind = "annual"
	KindCustomIntervalDays ScheduleKind = "custom_interval_days"
	KindOneTime            ScheduleKind = "one_time"
)

func (k ScheduleKind) IsValid() bool {
	switch k {
	case KindWeekly, KindMonthlyByDate, KindMonthlyRelative, KindAnnual, KindCustomIntervalDays, KindOneTime:
		return true
	default:
		return false
	}
}

// LastWeek selects the last occurrence of a weekday in MonthlyRelative.
const LastWeek = -1

// Schedule is the closed set of recurrence rules. Only the variants declared
// in this file implement it; switch on the concrete type to handle each one.
type Schedule interface {
	Kind() ScheduleKind
	Describe() string
	Validate() error
	isSchedule()
}

type Weekly struct {
	Days     []Weekday
	Interval int
}

type MonthlyByDate struct {
	Days     []int
	Interval int
}

type MonthlyRelative struct {
	Week     int
	Weekday  Weekday
	Interval int
}

type Annual struct {
	Month    time.Month
	Day      int
	Interval int
}

type CustomIntervalDays struct {
	IntervalDays int
	Start        time.Time
}

type OneTime struct {
	FireAt time.Time
}

func (Weekly) isSchedule()             {}
func (MonthlyByDate) isSchedule()      {}
func (MonthlyRelative) isSchedule()    {}
func (Annual) isSchedule()             {}
func (CustomIntervalDays) isSchedule() {}
func (OneTime) isSchedule()            {}

func (Weekly) Kind() ScheduleKind             { return KindWeekly }
func (MonthlyByDate) Kind() ScheduleKind      { return KindMonthlyByDate }
func (MonthlyRelative) Kind() ScheduleKind    { return KindMonthlyRelative }
func (Annual) Kind() ScheduleKind             { return KindAnnual }
func (CustomIntervalDays) Kind() ScheduleKind { return KindCustomIntervalDays }
func (OneTime) Kind() ScheduleKind            { return KindOneTime }

// NewWeekly sorts and deduplicates days, drops invalid ones and raises the
// interval to at least 1.
func NewWeekly(days []Weekday, interval int) Weekly {
	set := make(map[Weekday]bool, len(days))
	out := make([]Weekday, 0, len(days))
	for _, d := range days {
		if d.IsValid() && !set[d] {
			set[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Weekly{Days: out, Interval: atLeastOne(interval)}
}

func NewMonthlyByDate(days []int, interval int) MonthlyByDate {
	return MonthlyByDate{Days: normalizeMonthDays(days), Interval: atLeastOne(interval)}
}

func NewMonthlyRelative(week int, weekday Weekday, interval int) MonthlyRelative {
	if week != LastWeek {
		week = clamp(week, 1, 5)
	}
	return MonthlyRelative{Week: week, Weekday: weekday, Interval: atLeastOne(interval)}
}

func NewAnnual(month time.Month, day, interval int) Annual {
	return Annual{
		Month:    time.Month(clamp(int(month), 1, 12)),
		Day:      clamp(day, 1, 31),
		Interval: atLeastOne(interval),
	}
}

func NewCustomIntervalDays(intervalDays int, start time.Time) CustomIntervalDays {
	return CustomIntervalDays{IntervalDays: atLeastOne(intervalDays), Start: start}
}

func NewOneTime(fireAt time.Time) OneTime {
	return OneTime{FireAt: fireAt}
}

func (w Weekly) Validate() error {
	if len(w.Days) == 0 {
		return fmt.Errorf("%w: weekly schedule needs at least one day", ErrInvalidSchedule)
	}
	for _, d := range w.Days {
		if !d.IsValid() {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidSchedule, int(d))
		}
	}
	return validInterval(w.Interval)
}

func (m MonthlyByDate) Validate() error {
	if len(m.Days) == 0 {
		return fmt.Errorf("%w: monthly schedule needs at least one day", ErrInvalidSchedule)
	}
	for _, d := range m.Days {
		if d < 1 || d > 31 {
			return fmt.Errorf("%w: day of month %d out of range", ErrInvalidSchedule, d)
		}
	}
	return validInterval(m.Interval)
}

func (m MonthlyRelative) Validate() error {
	if m.Week != LastWeek && (m.Week < 1 || m.Week > 5) {
		return fmt.Errorf("%w: week of month %d out of range", ErrInvalidSchedule, m.Week)
	}
	if !m.Weekday.IsValid() {
		return fmt.Errorf("%w: weekday %d out of range", ErrInvalidSchedule, int(m.Weekday))
	}
	return validInterval(m.Interval)
}

func (a Annual) Validate() error {
	if a.Month < time.January || a.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidSchedule, int(a.Month))
	}
	if a.Day < 1 || a.Day > 31 {
		return fmt.Errorf("%w: day of month %d out of range", ErrInvalidSchedule, a.Day)
	}
	return validInterval(a.Interval)
}

func (c CustomIntervalDays) Validate() error {
	if c.Start.IsZero() {
		return fmt.Errorf("%w: custom interval needs a start date", ErrInvalidSchedule)
	}
	return validInterval(c.IntervalDays)
}

func (o OneTime) Validate() error {
	if o.FireAt.IsZero() {
		return fmt.Errorf("%w: one-time schedule needs a date", ErrInvalidSchedule)
	}
	return nil
}

func (w Weekly) Describe() string {
	names := make([]string, 0, len(w.Days))
	for _, d := range w.Days {
		names = append(names, d.String())
	}
	days := strings.Join(names, ", ")
	switch {
	case len(w.Days) == 7 && w.Interval <= 1:
		return "Every day"
	case w.Interval <= 1:
		return "Weekly on " + days
	default:
		return fmt.Sprintf("Every %d weeks on %s", w.Interval, days)
	}
}

func (m MonthlyByDate) Describe() string {
	days := make([]string, 0, len(m.Days))
	for _, d := range m.Days {
		days = append(days, ordinal(d))
	}
	if m.Interval <= 1 {
		return "Monthly on the " + strings.Join(days, ", ")
	}
	return fmt.Sprintf("Every %d months on the %s", m.Interval, strings.Join(days, ", "))
}

func (m MonthlyRelative) Describe() string {
	which := "last"
	if m.Week != LastWeek {
		which = ordinal(m.Week)
	}
	if m.Interval <= 1 {
		return fmt.Sprintf("Monthly on the %s %s", which, m.Weekday)
	}
	return fmt.Sprintf("Every %d months on the %s %s", m.Interval, which, m.Weekday)
}

func (a Annual) Describe() string {
	if a.Interval <= 1 {
		return fmt.Sprintf("Yearly on %s %d", a.Month, a.Day)
	}
	return fmt.Sprintf("Every %d years on %s %d", a.Interval, a.Month, a.Day)
}

func (c CustomIntervalDays) Describe() string {
	if c.IntervalDays <= 1 {
		return "Every day from " + c.Start.Format("2006-01-02")
	}
	return fmt.Sprintf("Every %d days from %s", c.IntervalDays, c.Start.Format("2006-01-02"))
}

func (o OneTime) Describe() string {
	return "Once on " + o.FireAt.Format("2006-01-02")
}

func normalizeMonthDays(days []int) []int {
	set := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d >= 1 && d <= 31 && !set[d] {
			set[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

func validInterval(v int) error {
	if v < 1 {
		return fmt.Errorf("%w: interval %d must be positive", ErrInvalidSchedule, v)
	}
	return nil
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
