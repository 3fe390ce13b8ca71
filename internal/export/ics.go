// Package export writes alarms as an iCalendar feed so other calendar
// clients can show them. Each time of day of an alarm becomes one VEVENT
// whose DTSTART is the next fire and whose RRULE reproduces the schedule.
package export

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"k8s.io/utils/clock"

	"github.com/sandeepkv93/alarmd/internal/model"
	"github.com/sandeepkv93/alarmd/internal/recurrence"
)

const defaultProductID = "-//alarmd//alarmd//EN"

type Options struct {
	IncludeDisabled bool
	ProductID       string
}

type Exporter struct {
	calc  *recurrence.Calculator
	clock clock.PassiveClock
}

func New(calc *recurrence.Calculator, clk clock.PassiveClock) *Exporter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Exporter{calc: calc, clock: clk}
}

func (e *Exporter) Write(w io.Writer, alarms []model.Alarm, opts Options) error {
	cal, err := e.Calendar(alarms, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, cal.Serialize())
	return err
}

func (e *Exporter) Calendar(alarms []model.Alarm, opts Options) (*ical.Calendar, error) {
	productID := opts.ProductID
	if productID == "" {
		productID = defaultProductID
	}
	now := e.clock.Now()
	loc := e.calc.Calendar().Location()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, alarm := range alarms {
		if !alarm.Enabled && !opts.IncludeDisabled {
			continue
		}
		rule, err := RRule(alarm.Schedule)
		if err != nil {
			return nil, fmt.Errorf("alarm %s: %w", alarm.ID, err)
		}
		for _, tod := range alarm.Times {
			start := e.calc.Next(alarm.Schedule, tod, now)
			if recurrence.IsNever(start) || !start.After(now) {
				continue
			}
			event := cal.AddEvent(fmt.Sprintf("%s-%02d%02d@alarmd", alarm.ID, tod.Hour(), tod.Minute()))
			event.SetDtStampTime(now)
			event.SetCreatedTime(alarm.CreatedAt)
			if !alarm.UpdatedAt.IsZero() {
				event.SetModifiedAt(alarm.UpdatedAt)
			}
			setStart(event, start.In(loc))
			event.SetSummary(alarm.Title)
			event.SetDescription(alarm.Schedule.Describe() + " at " + tod.String())
			if alarm.Category != "" {
				event.SetProperty(ical.ComponentPropertyCategories, string(alarm.Category))
			}
			if rule != "" {
				event.AddRrule(rule)
			}
			reminder := event.AddAlarm()
			reminder.SetAction(ical.ActionDisplay)
			reminder.SetTrigger("PT0M")
		}
	}
	return cal, nil
}

// setStart writes DTSTART as local time with a TZID so recurring expansion
// keeps the wall clock across DST. Zones without an IANA name fall back to
// UTC.
func setStart(event *ical.VEvent, t time.Time) {
	name := t.Location().String()
	if name == "UTC" || name == "Local" || name == "" {
		event.SetStartAt(t)
		return
	}
	event.SetProperty(ical.ComponentPropertyDtStart, t.Format("20060102T150405"),
		&ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{name}})
}

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// maxDayOfMonth is the longest each month can be, leap years included.
var maxDayOfMonth = [...]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// RRule returns the RFC 5545 recurrence rule for s, without DTSTART. A
// one-time schedule has no rule and yields "".
//
// Month-end days map to -1 (last day) so the feed clamps like the engine.
// Days 29 and 30 cannot be expressed that way and are exported as is.
func RRule(s model.Schedule) (string, error) {
	opt, err := ruleOption(s)
	if err != nil || opt == nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

func ruleOption(s model.Schedule) (*rrule.ROption, error) {
	switch v := s.(type) {
	case model.Weekly:
		days := make([]rrule.Weekday, 0, len(v.Days))
		for _, d := range v.Days {
			if !d.IsValid() {
				return nil, fmt.Errorf("%w: weekday %d", model.ErrInvalidSchedule, int(d))
			}
			days = append(days, rruleWeekdays[d-1])
		}
		return &rrule.ROption{Freq: rrule.WEEKLY, Interval: v.Interval, Byweekday: days, Wkst: rrule.MO}, nil
	case model.MonthlyByDate:
		days := make([]int, 0, len(v.Days))
		for _, d := range v.Days {
			if d == 31 {
				d = -1
			}
			days = append(days, d)
		}
		return &rrule.ROption{Freq: rrule.MONTHLY, Interval: v.Interval, Bymonthday: days}, nil
	case model.MonthlyRelative:
		if !v.Weekday.IsValid() {
			return nil, fmt.Errorf("%w: weekday %d", model.ErrInvalidSchedule, int(v.Weekday))
		}
		// A missing fifth occurrence clamps to the last, and an existing
		// fifth occurrence is always the last.
		week := v.Week
		if week == 5 {
			week = model.LastWeek
		}
		return &rrule.ROption{
			Freq:      rrule.MONTHLY,
			Interval:  v.Interval,
			Byweekday: []rrule.Weekday{rruleWeekdays[v.Weekday-1].Nth(week)},
		}, nil
	case model.Annual:
		if v.Month < time.January || v.Month > time.December {
			return nil, fmt.Errorf("%w: month %d", model.ErrInvalidSchedule, int(v.Month))
		}
		day := v.Day
		if day >= maxDayOfMonth[v.Month] {
			day = -1
		}
		return &rrule.ROption{Freq: rrule.YEARLY, Interval: v.Interval, Bymonth: []int{int(v.Month)}, Bymonthday: []int{day}}, nil
	case model.CustomIntervalDays:
		return &rrule.ROption{Freq: rrule.DAILY, Interval: v.IntervalDays}, nil
	case model.OneTime:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %T", model.ErrUnknownScheduleType, s)
	}
}
