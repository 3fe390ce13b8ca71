// Package alarms ties the recurrence engine to storage and the fire
// scheduler: it validates and saves alarms, records what the user did when
// one rang, and keeps every enabled alarm's next fire queued.
package alarms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/sandeepkv93/alarmd/internal/model"
	"github.com/sandeepkv93/alarmd/internal/recurrence"
	"github.com/sandeepkv93/alarmd/internal/scheduler"
	"github.com/sandeepkv93/alarmd/internal/storage"
	"github.com/sandeepkv93/alarmd/internal/streak"
	"github.com/sandeepkv93/alarmd/internal/validate"
)

var (
	ErrInvalidAlarm = errors.New("alarms: invalid alarm")
	ErrSnoozeLimit  = errors.New("alarms: snooze limit reached")
)

const (
	DefaultSnoozeMinutes = 9
	DefaultMaxSnoozes    = 3
	DefaultMissedAfter   = 30 * time.Minute
)

type Options struct {
	Repo       storage.Repository
	Calculator *recurrence.Calculator
	Validator  *validate.Validator
	// Engine is optional; without it the service only persists.
	Engine *scheduler.Engine
	Clock  clock.PassiveClock
	Log    *slog.Logger

	SnoozeMinutes int
	MaxSnoozes    int
	MissedAfter   time.Duration
}

type Service struct {
	repo        storage.Repository
	calc        *recurrence.Calculator
	validator   *validate.Validator
	engine      *scheduler.Engine
	clock       clock.PassiveClock
	log         *slog.Logger
	snooze      time.Duration
	maxSnoozes  int
	missedAfter time.Duration
}

func New(opts Options) (*Service, error) {
	if opts.Repo == nil {
		return nil, errors.New("alarms: repository is required")
	}
	if opts.Calculator == nil {
		return nil, errors.New("alarms: calculator is required")
	}
	if opts.Validator == nil {
		opts.Validator = validate.New(validate.DefaultMaxTitleLength)
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.SnoozeMinutes <= 0 {
		opts.SnoozeMinutes = DefaultSnoozeMinutes
	}
	if opts.MaxSnoozes <= 0 {
		opts.MaxSnoozes = DefaultMaxSnoozes
	}
	if opts.MissedAfter <= 0 {
		opts.MissedAfter = DefaultMissedAfter
	}
	return &Service{
		repo:        opts.Repo,
		calc:        opts.Calculator,
		validator:   opts.Validator,
		engine:      opts.Engine,
		clock:       opts.Clock,
		log:         opts.Log,
		snooze:      time.Duration(opts.SnoozeMinutes) * time.Minute,
		maxSnoozes:  opts.MaxSnoozes,
		missedAfter: opts.MissedAfter,
	}, nil
}

// Draft is the editable part of an alarm. An empty ID creates a new alarm.
type Draft struct {
	ID       string
	Title    string
	Category model.Category
	Schedule model.Schedule
	Times    []model.TimeOfDay
	Disabled bool
}

// Check validates d against the stored alarms without saving anything.
func (s *Service) Check(ctx context.Context, d Draft) (validate.Result, error) {
	existing, err := s.repo.ListAlarms(ctx, storage.AlarmListFilter{})
	if err != nil {
		return validate.Result{}, fmt.Errorf("list alarms: %w", err)
	}
	return s.validator.Validate(validate.Candidate{
		Title:    d.Title,
		Cycle:    model.CycleOf(d.Schedule),
		Schedule: d.Schedule,
		Times:    d.Times,
		Category: d.Category,
	}, existing, d.ID), nil
}

// Save validates d, computes its next fire and persists it. Warnings never
// block the save; the result is returned either way so callers can show it.
func (s *Service) Save(ctx context.Context, d Draft) (model.Alarm, validate.Result, error) {
	res, err := s.Check(ctx, d)
	if err != nil {
		return model.Alarm{}, res, err
	}
	if err := res.Err(); err != nil {
		return model.Alarm{}, res, fmt.Errorf("%w: %w", ErrInvalidAlarm, err)
	}

	now := s.clock.Now()
	alarm := model.Alarm{ID: d.ID, CreatedAt: now}
	creating := d.ID == ""
	if creating {
		alarm.ID = uuid.NewString()
	} else {
		current, err := s.repo.GetAlarm(ctx, d.ID)
		if err != nil {
			return model.Alarm{}, res, err
		}
		alarm = current
	}

	alarm.Title = res.Title
	alarm.Category = d.Category
	if alarm.Category == "" {
		alarm.Category = model.CategoryGeneral
	}
	alarm.Schedule = d.Schedule
	alarm.Cycle = model.CycleOf(d.Schedule)
	alarm.Times = model.SortTimes(d.Times)
	alarm.Enabled = !d.Disabled
	alarm.SnoozeCount = 0
	alarm.UpdatedAt = now
	s.advance(&alarm, now)

	if err := alarm.Validate(); err != nil {
		return model.Alarm{}, res, fmt.Errorf("%w: %w", ErrInvalidAlarm, err)
	}
	if creating {
		err = s.repo.CreateAlarm(ctx, alarm)
	} else {
		err = s.repo.UpdateAlarm(ctx, alarm)
	}
	if err != nil {
		return model.Alarm{}, res, fmt.Errorf("save alarm: %w", err)
	}

	s.log.InfoContext(ctx, "Saved alarm",
		slog.String("id", alarm.ID),
		slog.String("schedule", alarm.Schedule.Describe()),
		slog.Time("next", alarm.NextFireAt),
		slog.Int("warnings", len(res.Warnings)),
	)
	s.sync(alarm)
	return alarm, res, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Alarm, error) {
	return s.repo.GetAlarm(ctx, id)
}

func (s *Service) List(ctx context.Context, filter storage.AlarmListFilter) ([]model.Alarm, error) {
	return s.repo.ListAlarms(ctx, filter)
}

// Upcoming lists enabled alarms by next fire. A limit of 0 means all.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]model.Alarm, error) {
	enabled := true
	return s.repo.ListAlarms(ctx, storage.AlarmListFilter{Enabled: &enabled, ByNextFire: true, Limit: limit})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteAlarm(ctx, id); err != nil {
		return err
	}
	if s.engine != nil {
		s.engine.Cancel(id)
	}
	s.log.InfoContext(ctx, "Deleted alarm", slog.String("id", id))
	return nil
}

// SetEnabled toggles an alarm. Enabling recomputes the next fire from now.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (model.Alarm, error) {
	alarm, err := s.repo.GetAlarm(ctx, id)
	if err != nil {
		return model.Alarm{}, err
	}
	now := s.clock.Now()
	alarm.Enabled = enabled
	alarm.SnoozeCount = 0
	alarm.UpdatedAt = now
	if enabled {
		s.advance(&alarm, now)
	}
	if err := s.repo.UpdateAlarm(ctx, alarm); err != nil {
		return model.Alarm{}, fmt.Errorf("update alarm: %w", err)
	}
	s.sync(alarm)
	return alarm, nil
}

// Record stores what happened when an alarm rang and moves it forward.
// Snoozing pushes the fire back by the snooze interval, up to the configured
// limit. Any other action clears the snooze count and advances to the next
// occurrence after both now and the fire being answered.
func (s *Service) Record(ctx context.Context, id string, action model.Action) (model.Alarm, error) {
	if !action.IsValid() {
		return model.Alarm{}, fmt.Errorf("%w: %q", model.ErrInvalidAction, action)
	}
	alarm, err := s.repo.GetAlarm(ctx, id)
	if err != nil {
		return model.Alarm{}, err
	}
	now := s.clock.Now()

	if action == model.ActionSnoozed {
		if alarm.SnoozeCount >= s.maxSnoozes {
			return alarm, fmt.Errorf("%w: %d of %d", ErrSnoozeLimit, alarm.SnoozeCount, s.maxSnoozes)
		}
		alarm.SnoozeCount++
		alarm.NextFireAt = now.Add(s.snooze)
	} else {
		from := now
		if alarm.NextFireAt.After(from) && !recurrence.IsNever(alarm.NextFireAt) {
			from = alarm.NextFireAt
		}
		alarm.SnoozeCount = 0
		s.advance(&alarm, from)
	}
	alarm.UpdatedAt = now

	rec := model.CompletionRecord{
		ID:          uuid.NewString(),
		AlarmID:     alarm.ID,
		Action:      action,
		At:          now,
		SnoozeCount: alarm.SnoozeCount,
	}
	if err := s.repo.RecordCompletion(ctx, alarm, rec); err != nil {
		return model.Alarm{}, fmt.Errorf("record %s: %w", action, err)
	}

	s.log.InfoContext(ctx, "Recorded alarm action",
		slog.String("id", alarm.ID),
		slog.String("action", string(action)),
		slog.Time("next", alarm.NextFireAt),
	)
	s.sync(alarm)
	return alarm, nil
}

func (s *Service) History(ctx context.Context, id string) ([]model.CompletionRecord, error) {
	if _, err := s.repo.GetAlarm(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListCompletions(ctx, storage.CompletionListFilter{AlarmID: id})
}

func (s *Service) Streaks(ctx context.Context, id string) (streak.Summary, error) {
	history, err := s.History(ctx, id)
	if err != nil {
		return streak.Summary{}, err
	}
	return streak.Summarize(history), nil
}

// Preview lists the next n fires of a stored alarm.
func (s *Service) Preview(ctx context.Context, id string, n int) ([]time.Time, error) {
	alarm, err := s.repo.GetAlarm(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.calc.Preview(alarm.Schedule, alarm.Times, s.clock.Now(), n), nil
}

// SweepMissed records a miss for every enabled alarm that fired longer ago
// than the missed-after window without an answer.
func (s *Service) SweepMissed(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.missedAfter)
	enabled := true
	due, err := s.repo.ListAlarms(ctx, storage.AlarmListFilter{Enabled: &enabled, DueBefore: &cutoff, ByNextFire: true})
	if err != nil {
		return 0, fmt.Errorf("list due alarms: %w", err)
	}
	swept := 0
	for _, alarm := range due {
		if _, err := s.Record(ctx, alarm.ID, model.ActionMissed); err != nil {
			s.log.WarnContext(ctx, "Failed to mark alarm missed", slog.String("id", alarm.ID), slog.Any("error", err))
			continue
		}
		swept++
	}
	if swept > 0 {
		s.log.InfoContext(ctx, "Marked missed alarms", slog.Int("count", swept))
	}
	return swept, nil
}

// Reschedule loads every enabled alarm into the engine, filling in a next
// fire for alarms that have none. Overdue fires are queued too so they ring
// once on startup.
func (s *Service) Reschedule(ctx context.Context) (int, error) {
	queued, _, err := s.reconcile(ctx, true)
	return queued, err
}

// Reconcile brings the engine in line with the database after other
// processes changed it: new or moved fires are queued and fires of deleted or
// disabled alarms are cancelled. Overdue fires that are not already queued
// have rung here before and are left for the missed sweep.
func (s *Service) Reconcile(ctx context.Context) (queued, cancelled int, err error) {
	return s.reconcile(ctx, false)
}

// Maintain runs the missed sweep and then reconciles the engine. It is the
// periodic job of a long-running process.
func (s *Service) Maintain(ctx context.Context) error {
	if _, err := s.SweepMissed(ctx); err != nil {
		return err
	}
	if s.engine == nil {
		return nil
	}
	queued, cancelled, err := s.Reconcile(ctx)
	if err != nil {
		return err
	}
	if cancelled > 0 {
		s.log.DebugContext(ctx, "Reconciled engine", slog.Int("queued", queued), slog.Int("cancelled", cancelled))
	}
	return nil
}

func (s *Service) reconcile(ctx context.Context, includeOverdue bool) (queued, cancelled int, err error) {
	enabled := true
	list, err := s.repo.ListAlarms(ctx, storage.AlarmListFilter{Enabled: &enabled})
	if err != nil {
		return 0, 0, fmt.Errorf("list alarms: %w", err)
	}
	now := s.clock.Now()
	live := make(map[string]bool, len(list))
	for _, alarm := range list {
		if alarm.NextFireAt.IsZero() {
			s.advance(&alarm, now)
			alarm.UpdatedAt = now
			if err := s.repo.UpdateAlarm(ctx, alarm); err != nil {
				return queued, cancelled, fmt.Errorf("update alarm %s: %w", alarm.ID, err)
			}
		}
		live[alarm.ID] = true
		if s.engine == nil {
			continue
		}
		if !includeOverdue && !alarm.NextFireAt.After(now) {
			if _, pending := s.engine.NextFire(alarm.ID); pending {
				queued++
			}
			continue
		}
		if s.sync(alarm) {
			queued++
		}
	}
	if s.engine == nil {
		return queued, 0, nil
	}
	for _, id := range s.engine.PendingIDs() {
		if !live[id] && s.engine.Cancel(id) {
			cancelled++
		}
	}
	return queued, cancelled, nil
}

// advance sets the next fire after from. An exhausted schedule disables the
// alarm.
func (s *Service) advance(alarm *model.Alarm, from time.Time) {
	next := s.calc.NextFireDate(alarm.Schedule, alarm.Times, from)
	if recurrence.IsNever(next) {
		alarm.NextFireAt = time.Time{}
		if alarm.Enabled {
			s.log.Info("Alarm has no further occurrences, disabling", slog.String("id", alarm.ID))
		}
		alarm.Enabled = false
		return
	}
	alarm.NextFireAt = next
}

// sync mirrors the alarm's state into the engine and reports whether a fire
// is queued.
func (s *Service) sync(alarm model.Alarm) bool {
	if s.engine == nil {
		return false
	}
	if !alarm.Enabled || alarm.NextFireAt.IsZero() {
		s.engine.Cancel(alarm.ID)
		return false
	}
	err := s.engine.Schedule(scheduler.AlarmEvent{AlarmID: alarm.ID, Title: alarm.Title, FireAt: alarm.NextFireAt})
	if err != nil {
		s.log.Warn("Failed to queue alarm", slog.String("id", alarm.ID), slog.Any("error", err))
		return false
	}
	return true
}
