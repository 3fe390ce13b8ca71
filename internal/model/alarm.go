package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCycle    = errors.New("model: invalid cycle type")
	ErrInvalidCategory = errors.New("model: invalid category")
	ErrInvalidAction   = errors.New("model: invalid completion action")
)

// MaxTimesPerAlarm bounds how many times of day a single alarm may carry.
const MaxTimesPerAlarm = 5

type CycleType string

const (
	CycleDaily   CycleType = "daily"
	CycleWeekly  CycleType = "weekly"
	CycleMonthly CycleType = "monthly"
	CycleYearly  CycleType = "yearly"
	CycleCustom  CycleType = "custom"
	CycleOneTime CycleType = "one_time"
)

func (c CycleType) IsValid() bool {
	switch c {
	case CycleDaily, CycleWeekly, CycleMonthly, CycleYearly, CycleCustom, CycleOneTime:
		return true
	default:
		return false
	}
}

// CycleOf derives the user-facing cycle type from a schedule.
func CycleOf(s Schedule) CycleType {
	switch v := s.(type) {
	case Weekly:
		if len(v.Days) == 7 && v.Interval <= 1 {
			return CycleDaily
		}
		return CycleWeekly
	case MonthlyByDate, MonthlyRelative:
		return CycleMonthly
	case Annual:
		return CycleYearly
	case CustomIntervalDays:
		return CycleCustom
	case OneTime:
		return CycleOneTime
	default:
		return ""
	}
}

type Category string

const (
	CategoryGeneral  Category = "general"
	CategoryHealth   Category = "health"
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryFinance  Category = "finance"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryGeneral, CategoryHealth, CategoryWork, CategoryPersonal, CategoryFinance:
		return true
	default:
		return false
	}
}

type Alarm struct {
	ID          string
	Title       string
	Category    Category
	Cycle       CycleType
	Schedule    Schedule
	Times       []TimeOfDay
	Enabled     bool
	SnoozeCount int
	NextFireAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CycleType returns the stored cycle type, falling back to the one derived
// from the schedule.
func (a Alarm) CycleType() CycleType {
	if a.Cycle.IsValid() {
		return a.Cycle
	}
	if a.Schedule == nil {
		return ""
	}
	return CycleOf(a.Schedule)
}

func (a Alarm) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("model: alarm id is required")
	}
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("model: alarm title is required")
	}
	if a.Category != "" && !a.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, a.Category)
	}
	if a.Cycle != "" && !a.Cycle.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCycle, a.Cycle)
	}
	if a.Schedule == nil {
		return fmt.Errorf("%w: alarm schedule is required", ErrInvalidSchedule)
	}
	if err := a.Schedule.Validate(); err != nil {
		return err
	}
	if len(a.Times) == 0 {
		return errors.New("model: alarm needs at least one time of day")
	}
	if len(a.Times) > MaxTimesPerAlarm {
		return fmt.Errorf("model: alarm has %d times of day, at most %d allowed", len(a.Times), MaxTimesPerAlarm)
	}
	if a.SnoozeCount < 0 {
		return errors.New("model: snooze_count must not be negative")
	}
	if a.CreatedAt.IsZero() {
		return errors.New("model: alarm created_at is required")
	}
	return nil
}

type Action string

const (
	ActionCompleted Action = "completed"
	ActionSnoozed   Action = "snoozed"
	ActionSkipped   Action = "skipped"
	ActionMissed    Action = "missed"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionCompleted, ActionSnoozed, ActionSkipped, ActionMissed:
		return true
	default:
		return false
	}
}

type CompletionRecord struct {
	ID          string
	AlarmID     string
	Action      Action
	At          time.Time
	SnoozeCount int
}

func (r CompletionRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("model: completion id is required")
	}
	if strings.TrimSpace(r.AlarmID) == "" {
		return errors.New("model: completion alarm_id is required")
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, r.Action)
	}
	if r.At.IsZero() {
		return errors.New("model: completion timestamp is required")
	}
	return nil
}
