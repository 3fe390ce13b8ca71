package update

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/sandeepkv93/alarmd/internal/alarms"
	"github.com/sandeepkv93/alarmd/internal/calendar"
	"github.com/sandeepkv93/alarmd/internal/model"
	"github.com/sandeepkv93/alarmd/internal/notify"
	"github.com/sandeepkv93/alarmd/internal/recurrence"
	"github.com/sandeepkv93/alarmd/internal/scheduler"
	"github.com/sandeepkv93/alarmd/internal/storage"
	"github.com/sandeepkv93/alarmd/internal/validate"
)

// Monday.
var start = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type harness struct {
	svc      *alarms.Service
	clock    *clocktesting.FakeClock
	notifier *notify.Recorder
}

func newHarness(t *testing.T) harness {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	clk := clocktesting.NewFakeClock(start)
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "alarms.db"), log)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc, err := alarms.New(alarms.Options{
		Repo:       repo,
		Calculator: recurrence.New(calendar.New(time.UTC, clk), log),
		Validator:  validate.New(0),
		Clock:      clk,
		Log:        log,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return harness{svc: svc, clock: clk, notifier: &notify.Recorder{}}
}

func (h harness) model() Model {
	return NewModel(Options{
		Backend:  h.svc,
		Clock:    h.clock,
		Location: time.UTC,
		Notifier: h.notifier,
	})
}

func (h harness) save(t *testing.T, title, expr string, times ...model.TimeOfDay) model.Alarm {
	t.Helper()
	s, err := model.ParseSchedule(expr, start)
	if err != nil {
		t.Fatalf("parse schedule %q: %v", expr, err)
	}
	a, _, err := h.svc.Save(context.Background(), alarms.Draft{Title: title, Schedule: s, Times: times})
	if err != nil {
		t.Fatalf("save %q: %v", title, err)
	}
	return a
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		updated, _ := m.Update(msg)
		m = updated.(Model)
	}
	return m
}

func tod(h, m int) model.TimeOfDay { return model.NewTimeOfDay(h, m) }

func TestNewModelDefaults(t *testing.T) {
	m := NewModel(Options{})
	if m.Keys.Quit != "q" || m.Keys.Palette != "/" {
		t.Fatalf("unexpected keys: %+v", m.Keys)
	}
	if m.SelectedID != "" || len(m.Alarms) != 0 {
		t.Fatalf("expected empty model, got %+v", m.Alarms)
	}
	if !strings.Contains(m.View(), "no alarms yet") {
		t.Fatalf("expected empty-state hint in view:\n%s", m.View())
	}
}

func TestModelLoadsAlarmsByNextFire(t *testing.T) {
	h := newHarness(t)
	late := h.save(t, "Evening pills", "daily", tod(21, 0))
	early := h.save(t, "Stretch", "daily", tod(9, 0))

	m := h.model()
	if len(m.Alarms) != 2 {
		t.Fatalf("expected 2 alarms, got %d", len(m.Alarms))
	}
	if m.Alarms[0].ID != early.ID || m.Alarms[1].ID != late.ID {
		t.Fatalf("unexpected order: %s, %s", m.Alarms[0].Title, m.Alarms[1].Title)
	}
	if m.SelectedID != early.ID {
		t.Fatalf("expected first alarm selected, got %q", m.SelectedID)
	}
	if len(m.Detail.Preview) != defaultPreviewCount {
		t.Fatalf("expected %d preview fires, got %d", defaultPreviewCount, len(m.Detail.Preview))
	}

	m = press(t, m, "j")
	if m.SelectedID != late.ID {
		t.Fatalf("expected selection to move down, got %q", m.SelectedID)
	}
	m = press(t, m, "j", "k", "k")
	if m.SelectedID != early.ID || m.Cursor != 0 {
		t.Fatalf("expected cursor clamped at top, got %d %q", m.Cursor, m.SelectedID)
	}

	view := m.View()
	for _, want := range []string{"Stretch", "Evening pills", "today 09:00", "Every day", "streaks:"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDoneKeyAdvancesAndUpdatesStreak(t *testing.T) {
	h := newHarness(t)
	a := h.save(t, "Stretch", "daily", tod(9, 0))
	m := h.model()

	m = press(t, m, "d")
	if m.Status.IsError {
		t.Fatalf("unexpected error: %s", m.Status.Text)
	}
	if !strings.Contains(m.Status.Text, "completed Stretch") {
		t.Fatalf("unexpected status: %q", m.Status.Text)
	}
	got, _ := m.selected()
	want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if got.ID != a.ID || !got.NextFireAt.Equal(want) {
		t.Fatalf("expected next fire %s, got %s", want, got.NextFireAt)
	}
	if m.Detail.Streak.Current != 1 || m.Detail.Streak.Completed != 1 {
		t.Fatalf("unexpected streak: %+v", m.Detail.Streak)
	}
}

func TestSnoozeKeyStopsAtLimit(t *testing.T) {
	h := newHarness(t)
	h.save(t, "Wake up", "daily", tod(9, 0))
	m := h.model()

	m = press(t, m, "s", "s", "s")
	if m.Status.IsError {
		t.Fatalf("unexpected error after three snoozes: %s", m.Status.Text)
	}
	m = press(t, m, "s")
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "snooze limit") {
		t.Fatalf("expected snooze limit error, got %+v", m.Status)
	}
	if !errors.Is(m.LastError, alarms.ErrSnoozeLimit) {
		t.Fatalf("unexpected last error: %v", m.LastError)
	}
}

func TestToggleKeyDisablesAndEnables(t *testing.T) {
	h := newHarness(t)
	h.save(t, "Stretch", "daily", tod(9, 0))
	m := h.model()

	m = press(t, m, "space")
	if a, _ := m.selected(); a.Enabled {
		t.Fatal("expected alarm disabled")
	}
	if !strings.Contains(m.View(), "never") {
		t.Fatalf("disabled alarm should show no next fire:\n%s", m.View())
	}
	m = press(t, m, "space")
	if a, _ := m.selected(); !a.Enabled {
		t.Fatal("expected alarm enabled again")
	}
}

func TestPaletteAddShowsWarnings(t *testing.T) {
	h := newHarness(t)
	h.save(t, "Workout", "weekly mon", tod(7, 0))
	m := h.model()

	m = press(t, m, "/")
	if !m.Palette.Active {
		t.Fatal("expected palette active")
	}
	m = press(t, m, "add workout at 07:00 weekly mon", "enter")
	if m.Palette.Active {
		t.Fatal("expected palette closed after enter")
	}
	if m.Status.IsError {
		t.Fatalf("warnings must not block a save: %s", m.Status.Text)
	}
	if !strings.Contains(m.Status.Text, "warning:") {
		t.Fatalf("expected duplicate warning in status, got %q", m.Status.Text)
	}
	if len(m.Alarms) != 2 {
		t.Fatalf("expected the alarm saved anyway, got %d alarms", len(m.Alarms))
	}
	if len(h.notifier.Sent) != 1 || h.notifier.Sent[0].Level != "warn" {
		t.Fatalf("expected one warning notification, got %+v", h.notifier.Sent)
	}
}

func TestPaletteRejectsEmptyTitleAndBadSchedule(t *testing.T) {
	h := newHarness(t)
	m := h.model()

	m = press(t, m, "/", "add \x07 at 07:00 daily", "enter")
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "empty_title") {
		t.Fatalf("expected empty title error, got %+v", m.Status)
	}

	m = press(t, m, "/", "add tea at 07:00 fortnightly", "enter")
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "invalid_argument") {
		t.Fatalf("expected schedule error, got %+v", m.Status)
	}
	if len(m.Alarms) != 0 {
		t.Fatalf("nothing should be saved, got %d", len(m.Alarms))
	}
}

func TestPaletteTargetsByIDPrefix(t *testing.T) {
	h := newHarness(t)
	h.save(t, "Stretch", "daily", tod(9, 0))
	other := h.save(t, "Rent", "monthly 1", tod(10, 0))
	m := h.model()

	m = press(t, m, "/", "skip "+other.ID[:8], "enter")
	if m.Status.IsError {
		t.Fatalf("unexpected error: %s", m.Status.Text)
	}
	if !strings.Contains(m.Status.Text, "skipped Rent") {
		t.Fatalf("unexpected status: %q", m.Status.Text)
	}

	m = press(t, m, "/", "delete "+other.ID, "enter")
	if len(m.Alarms) != 1 || m.Alarms[0].Title != "Stretch" {
		t.Fatalf("expected only Stretch left, got %+v", m.Alarms)
	}

	m = press(t, m, "/", "done nope", "enter")
	if !m.Status.IsError {
		t.Fatal("expected unknown target error")
	}
}

func TestPaletteEscCloses(t *testing.T) {
	m := NewModel(Options{})
	m = press(t, m, "/", "add x", "esc")
	if m.Palette.Active || m.Palette.Input != "" {
		t.Fatalf("expected palette reset, got %+v", m.Palette)
	}
}

func TestAlarmDueMsgRingsSelectsAndRearms(t *testing.T) {
	h := newHarness(t)
	h.save(t, "Stretch", "daily", tod(9, 0))
	pills := h.save(t, "Pills", "daily", tod(21, 0))

	events := make(chan scheduler.AlarmEvent, 1)
	m := NewModel(Options{Backend: h.svc, Events: events, Clock: h.clock, Location: time.UTC, Notifier: h.notifier})
	if m.Init() == nil {
		t.Fatal("expected Init to wait for alarm events")
	}

	ev := scheduler.AlarmEvent{AlarmID: pills.ID, Title: "Pills", FireAt: pills.NextFireAt}
	updated, cmd := m.Update(AlarmDueMsg{Event: ev})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("expected the event wait to be re-armed")
	}
	if m.SelectedID != pills.ID {
		t.Fatalf("expected ringing alarm selected, got %q", m.SelectedID)
	}
	if len(m.Ringing) != 1 || !strings.Contains(m.View(), "RINGING Pills") {
		t.Fatalf("expected ringing banner:\n%s", m.View())
	}
	if len(h.notifier.Sent) != 1 || h.notifier.Sent[0].Level != "alarm" {
		t.Fatalf("expected desktop notification, got %+v", h.notifier.Sent)
	}

	m = press(t, m, "d")
	if len(m.Ringing) != 0 {
		t.Fatalf("answering the alarm should clear the banner, got %+v", m.Ringing)
	}

	events <- ev
	msg := cmd()
	if due, ok := msg.(AlarmDueMsg); !ok || due.Event.AlarmID != pills.ID {
		t.Fatalf("unexpected msg from wait cmd: %#v", msg)
	}
}

func TestHelpToggleRendersPaletteGuide(t *testing.T) {
	m := NewModel(Options{})
	m = press(t, m, "?")
	if !m.HelpVisible {
		t.Fatal("expected help visible")
	}
	view := m.View()
	if !strings.Contains(view, "help:") || !strings.Contains(view, "open command palette") {
		t.Fatalf("help panel missing:\n%s", view)
	}
	if strings.TrimSpace(m.helpMarkdown) == "" {
		t.Fatal("expected rendered palette guide")
	}
	m = press(t, m, "?")
	if m.HelpVisible {
		t.Fatal("expected help hidden")
	}
}

func TestStatusAndErrorMessages(t *testing.T) {
	m := NewModel(Options{})
	updated, _ := m.Update(SetStatusMsg{Text: "saved"})
	m = updated.(Model)
	if m.Status.Text != "saved" || m.Status.IsError {
		t.Fatalf("unexpected status: %+v", m.Status)
	}
	updated, _ = m.Update(AppErrorMsg{Err: errors.New("boom")})
	m = updated.(Model)
	if !m.Status.IsError || m.LastError == nil {
		t.Fatalf("expected error status, got %+v", m.Status)
	}
	updated, _ = m.Update(ClearStatusMsg{})
	m = updated.(Model)
	if m.Status.Text != "" {
		t.Fatalf("expected cleared status, got %+v", m.Status)
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(Options{})
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !updated.(Model).Quitting || cmd == nil {
		t.Fatal("expected quit")
	}
}
