package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownScheduleType = errors.New("model: unknown schedule type")

// scheduleEnvelope is the persisted form of a Schedule: a "type"
// discriminator plus the fields of that variant.
type scheduleEnvelope struct {
	Type         ScheduleKind `json:"type"`
	Days         []int        `json:"days,omitempty"`
	Interval     int          `json:"interval,omitempty"`
	Week         int          `json:"week,omitempty"`
	Weekday      int          `json:"weekday,omitempty"`
	Month        int          `json:"month,omitempty"`
	Day          int          `json:"day,omitempty"`
	IntervalDays int          `json:"interval_days,omitempty"`
	Start        *time.Time   `json:"start,omitempty"`
	FireAt       *time.Time   `json:"fire_at,omitempty"`
}

func MarshalSchedule(s Schedule) ([]byte, error) {
	var env scheduleEnvelope
	switch v := s.(type) {
	case Weekly:
		env = scheduleEnvelope{Type: KindWeekly, Interval: v.Interval}
		for _, d := range v.Days {
			env.Days = append(env.Days, int(d))
		}
	case MonthlyByDate:
		env = scheduleEnvelope{Type: KindMonthlyByDate, Days: append([]int(nil), v.Days...), Interval: v.Interval}
	case MonthlyRelative:
		env = scheduleEnvelope{Type: KindMonthlyRelative, Week: v.Week, Weekday: int(v.Weekday), Interval: v.Interval}
	case Annual:
		env = scheduleEnvelope{Type: KindAnnual, Month: int(v.Month), Day: v.Day, Interval: v.Interval}
	case CustomIntervalDays:
		start := v.Start
		env = scheduleEnvelope{Type: KindCustomIntervalDays, IntervalDays: v.IntervalDays, Start: &start}
	case OneTime:
		at := v.FireAt
		env = scheduleEnvelope{Type: KindOneTime, FireAt: &at}
	case nil:
		return nil, fmt.Errorf("%w: nil schedule", ErrInvalidSchedule)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownScheduleType, s)
	}
	return json.Marshal(env)
}

// UnmarshalSchedule decodes a persisted schedule. Unknown discriminators
// yield ErrUnknownScheduleType so callers can skip rows written by newer
// versions instead of failing outright.
func UnmarshalSchedule(data []byte) (Schedule, error) {
	var env scheduleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	var s Schedule
	switch env.Type {
	case KindWeekly:
		days := make([]Weekday, 0, len(env.Days))
		for _, d := range env.Days {
			days = append(days, Weekday(d))
		}
		s = NewWeekly(days, env.Interval)
	case KindMonthlyByDate:
		s = NewMonthlyByDate(env.Days, env.Interval)
	case KindMonthlyRelative:
		s = NewMonthlyRelative(env.Week, Weekday(env.Weekday), env.Interval)
	case KindAnnual:
		s = NewAnnual(time.Month(env.Month), env.Day, env.Interval)
	case KindCustomIntervalDays:
		if env.Start == nil {
			return nil, fmt.Errorf("%w: custom interval without start", ErrInvalidSchedule)
		}
		s = NewCustomIntervalDays(env.IntervalDays, *env.Start)
	case KindOneTime:
		if env.FireAt == nil {
			return nil, fmt.Errorf("%w: one-time schedule without date", ErrInvalidSchedule)
		}
		s = NewOneTime(*env.FireAt)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheduleType, env.Type)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
