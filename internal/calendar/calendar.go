// Package calendar is the timezone-aware date arithmetic used by the
// recurrence engine. Every operation works on calendar fields in a single
// location, so a 09:00 alarm stays at 09:00 across daylight-saving changes.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/sandeepkv93/alarmd/internal/model"
)

var ErrInvalidDate = errors.New("calendar: invalid date")

const (
	minYear = 1
	maxYear = 9999
)

// Calendar binds a location and a time source. The zero value is not usable;
// construct one with New.
type Calendar struct {
	loc   *time.Location
	clock clock.PassiveClock
}

// New returns a calendar for loc. A nil location means UTC and a nil clock
// means the wall clock.
func New(loc *time.Location, clk clock.PassiveClock) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Calendar{loc: loc, clock: clk}
}

// Load resolves an IANA zone name. "Local" and "" select the host zone.
func Load(name string, clk clock.PassiveClock) (*Calendar, error) {
	if name == "" || name == "Local" {
		return New(time.Local, clk), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc, clk), nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) Now() time.Time { return c.clock.Now().In(c.loc) }

func (c *Calendar) In(t time.Time) time.Time { return t.In(c.loc) }

// Weekday returns the ISO weekday of t's date in the calendar's location.
func (c *Calendar) Weekday(t time.Time) model.Weekday {
	return model.WeekdayOf(t.In(c.loc).Weekday())
}

// DaysInMonth returns 28 to 31.
func (c *Calendar) DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (c *Calendar) IsLeapYear(year int) bool {
	return c.DaysInMonth(year, time.February) == 29
}

func (c *Calendar) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// StartOfWeek returns midnight of the Monday on or before t.
func (c *Calendar) StartOfWeek(t time.Time) time.Time {
	return c.AddDays(c.StartOfDay(t), -int(c.Weekday(t)-model.Monday))
}

// AddDays moves t by n calendar days keeping its wall-clock time.
func (c *Calendar) AddDays(t time.Time, n int) time.Time {
	t = t.In(c.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
}

// AddMonths moves t by n months. The day is clamped to the length of the
// target month, so Jan 31 plus one month is the last day of February.
func (c *Calendar) AddMonths(t time.Time, n int) time.Time {
	t = t.In(c.loc)
	y, m, d := t.Date()
	idx := int(m) - 1 + n
	y += floorDiv(idx, 12)
	m = time.Month(idx - floorDiv(idx, 12)*12 + 1)
	d = min(d, c.DaysInMonth(y, m))
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)
}

// AddYears moves t by n years, clamping Feb 29 to Feb 28 when needed.
func (c *Calendar) AddYears(t time.Time, n int) time.Time {
	return c.AddMonths(t, 12*n)
}

// SetTime places tod on t's date.
func (c *Calendar) SetTime(t time.Time, tod model.TimeOfDay) (time.Time, error) {
	y, m, d := t.In(c.loc).Date()
	return c.Date(y, m, d, tod)
}

// Date builds an instant from calendar fields. Unlike time.Date it does not
// normalize: a day outside the month or a year outside 1..9999 is an error.
func (c *Calendar) Date(year int, month time.Month, day int, tod model.TimeOfDay) (time.Time, error) {
	if c == nil || c.loc == nil {
		return time.Time{}, fmt.Errorf("%w: no location", ErrInvalidDate)
	}
	if year < minYear || year > maxYear {
		return time.Time{}, fmt.Errorf("%w: year %d", ErrInvalidDate, year)
	}
	if month < time.January || month > time.December {
		return time.Time{}, fmt.Errorf("%w: month %d", ErrInvalidDate, int(month))
	}
	if day < 1 || day > c.DaysInMonth(year, month) {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, int(month), day)
	}
	return time.Date(year, month, day, tod.Hour(), tod.Minute(), 0, 0, c.loc), nil
}

// DaysBetween counts whole calendar days from a's date to b's date, negative
// when b is earlier. Dates are taken in the calendar's location and compared
// in UTC so a 23 or 25 hour day still counts as one.
func (c *Calendar) DaysBetween(a, b time.Time) int {
	ay, am, ad := a.In(c.loc).Date()
	by, bm, bd := b.In(c.loc).Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int((ub.Unix() - ua.Unix()) / 86400)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
