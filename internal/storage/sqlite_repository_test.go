package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/alarmd/internal/model"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "alarmd-test.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := MigrateUp(t.Context(), db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	repo, err := NewSQLiteRepository(db, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func newAlarm(id, title string, s model.Schedule, created time.Time) model.Alarm {
	return model.Alarm{
		ID:        id,
		Title:     title,
		Category:  model.CategoryHealth,
		Schedule:  s,
		Times:     []model.TimeOfDay{model.NewTimeOfDay(19, 0), model.NewTimeOfDay(7, 30)},
		Enabled:   true,
		CreatedAt: created,
	}
}

func TestAlarmCRUDAndList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")
	next := parseRFC3339(t, "2026-02-10T07:30:00Z")

	alarm := newAlarm("alarm-1", "Vitamins", model.NewWeekly([]model.Weekday{model.Tuesday, model.Monday}, 1), created)
	alarm.NextFireAt = next
	if err := repo.CreateAlarm(ctx, alarm); err != nil {
		t.Fatalf("create alarm: %v", err)
	}

	got, err := repo.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatalf("get alarm: %v", err)
	}
	if got.Title != "Vitamins" || got.Category != model.CategoryHealth || got.Cycle != model.CycleWeekly {
		t.Fatalf("unexpected alarm get result: %#v", got)
	}
	if len(got.Times) != 2 || got.Times[0].String() != "07:30" {
		t.Fatalf("times should come back sorted: %v", got.Times)
	}
	if !got.NextFireAt.Equal(next) || !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(created) {
		t.Fatalf("unexpected timestamps: %#v", got)
	}
	if w, ok := got.Schedule.(model.Weekly); !ok || w.Days[0] != model.Monday {
		t.Fatalf("unexpected schedule: %#v", got.Schedule)
	}

	alarm.Title = "Vitamins D"
	alarm.Enabled = false
	alarm.SnoozeCount = 2
	alarm.UpdatedAt = created.Add(time.Hour)
	if err := repo.UpdateAlarm(ctx, alarm); err != nil {
		t.Fatalf("update alarm: %v", err)
	}

	disabled := false
	list, err := repo.ListAlarms(ctx, AlarmListFilter{Enabled: &disabled})
	if err != nil {
		t.Fatalf("list alarms: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Vitamins D" || list[0].SnoozeCount != 2 {
		t.Fatalf("unexpected disabled list: %#v", list)
	}

	if err := repo.DeleteAlarm(ctx, alarm.ID); err != nil {
		t.Fatalf("delete alarm: %v", err)
	}
	if _, err := repo.GetAlarm(ctx, alarm.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if err := repo.DeleteAlarm(ctx, alarm.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got: %v", err)
	}
	if err := repo.UpdateAlarm(ctx, alarm); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got: %v", err)
	}
}

func TestCreateAlarmRejectsInvalid(t *testing.T) {
	repo := setupRepo(t)
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")
	bad := newAlarm("alarm-bad", "No days", model.Weekly{Interval: 1}, created)
	if err := repo.CreateAlarm(context.Background(), bad); !errors.Is(err, model.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestListAlarmsByNextFireAndDue(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")

	b := parseRFC3339(t, "2026-02-10T08:00:00Z")
	fires := []struct {
		id string
		at time.Time
	}{
		{"a", parseRFC3339(t, "2026-02-12T08:00:00Z")},
		{"b", b},
		{"c", b.Add(500 * time.Millisecond)},
	}
	for _, f := range fires {
		alarm := newAlarm(f.id, "Alarm "+f.id, model.NewMonthlyByDate([]int{1}, 1), created)
		alarm.NextFireAt = f.at
		if err := repo.CreateAlarm(ctx, alarm); err != nil {
			t.Fatalf("create alarm %s: %v", f.id, err)
		}
	}
	unscheduled := newAlarm("d", "Alarm d", model.NewMonthlyByDate([]int{1}, 1), created)
	if err := repo.CreateAlarm(ctx, unscheduled); err != nil {
		t.Fatalf("create alarm d: %v", err)
	}

	ordered, err := repo.ListAlarms(ctx, AlarmListFilter{ByNextFire: true})
	if err != nil {
		t.Fatalf("list ordered: %v", err)
	}
	ids := make([]string, 0, len(ordered))
	for _, a := range ordered {
		ids = append(ids, a.ID)
	}
	if strings.Join(ids, ",") != "b,c,a,d" {
		t.Fatalf("unexpected order: %v", ids)
	}

	cutoff := parseRFC3339(t, "2026-02-11T00:00:00Z")
	due, err := repo.ListAlarms(ctx, AlarmListFilter{DueBefore: &cutoff, ByNextFire: true})
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 || due[0].ID != "b" || due[1].ID != "c" {
		t.Fatalf("unexpected due list: %#v", due)
	}

	page, err := repo.ListAlarms(ctx, AlarmListFilter{ByNextFire: true, Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "c" || page[1].ID != "a" {
		t.Fatalf("unexpected page: %#v", page)
	}

	health, err := repo.ListAlarms(ctx, AlarmListFilter{Category: model.CategoryWork})
	if err != nil {
		t.Fatalf("list category: %v", err)
	}
	if len(health) != 0 {
		t.Fatalf("expected no work alarms, got %d", len(health))
	}
}

func TestListAlarmsSkipsUnknownScheduleType(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")

	if err := repo.CreateAlarm(ctx, newAlarm("known", "Known", model.NewOneTime(created), created)); err != nil {
		t.Fatalf("create alarm: %v", err)
	}
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO alarms (`+alarmColumns+`)
		VALUES ('future', 'From a newer build', 'general', 'monthly', 'lunar', '{"type":"lunar","phase":"full"}', '21:00', 1, 0, NULL, ?, ?)`,
		mustTime(created), mustTime(created))
	if err != nil {
		t.Fatalf("insert raw row: %v", err)
	}

	list, err := repo.ListAlarms(ctx, AlarmListFilter{})
	if err != nil {
		t.Fatalf("list alarms: %v", err)
	}
	if len(list) != 1 || list[0].ID != "known" {
		t.Fatalf("unexpected list: %#v", list)
	}
	if _, err := repo.GetAlarm(ctx, "future"); !errors.Is(err, model.ErrUnknownScheduleType) {
		t.Fatalf("expected ErrUnknownScheduleType, got %v", err)
	}
}

func TestCompletionsAppendListAndCascade(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")

	alarm := newAlarm("alarm-1", "Stretch", model.NewCustomIntervalDays(2, created), created)
	if err := repo.CreateAlarm(ctx, alarm); err != nil {
		t.Fatalf("create alarm: %v", err)
	}

	actions := []model.Action{model.ActionSnoozed, model.ActionCompleted, model.ActionSkipped}
	for i, action := range actions {
		rec := model.CompletionRecord{
			ID:      "c" + string(rune('0'+i)),
			AlarmID: alarm.ID,
			Action:  action,
			At:      created.Add(time.Duration(3-i) * time.Hour),
		}
		if err := repo.AppendCompletion(ctx, rec); err != nil {
			t.Fatalf("append completion: %v", err)
		}
	}

	history, err := repo.ListCompletions(ctx, CompletionListFilter{AlarmID: alarm.ID})
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(history) != 3 || history[0].Action != model.ActionSkipped || history[2].Action != model.ActionSnoozed {
		t.Fatalf("history should be oldest first: %#v", history)
	}

	since := created.Add(2 * time.Hour)
	recent, err := repo.ListCompletions(ctx, CompletionListFilter{AlarmID: alarm.ID, Since: &since})
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent records, got %d", len(recent))
	}

	orphan := model.CompletionRecord{ID: "orphan", AlarmID: "missing", Action: model.ActionCompleted, At: created}
	if err := repo.AppendCompletion(ctx, orphan); err == nil {
		t.Fatal("expected foreign key violation for unknown alarm")
	}
	if err := repo.AppendCompletion(ctx, model.CompletionRecord{ID: "bad", AlarmID: alarm.ID, Action: "dismissed", At: created}); !errors.Is(err, model.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}

	if err := repo.DeleteAlarm(ctx, alarm.ID); err != nil {
		t.Fatalf("delete alarm: %v", err)
	}
	history, err = repo.ListCompletions(ctx, CompletionListFilter{AlarmID: alarm.ID})
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("completions should cascade on delete, got %d", len(history))
	}
}

func TestOpenSQLiteMigrates(t *testing.T) {
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "open.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer repo.Close()

	list, err := repo.ListAlarms(context.Background(), AlarmListFilter{})
	if err != nil {
		t.Fatalf("list alarms: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty database, got %d alarms", len(list))
	}
}

func TestRecordCompletionIsAtomic(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")

	alarm := newAlarm("alarm-1", "Water plants", model.NewCustomIntervalDays(3, created), created)
	if err := repo.CreateAlarm(ctx, alarm); err != nil {
		t.Fatalf("create alarm: %v", err)
	}

	advanced := alarm
	advanced.NextFireAt = created.Add(72 * time.Hour)
	advanced.UpdatedAt = created.Add(time.Hour)
	rec := model.CompletionRecord{ID: "done-1", AlarmID: alarm.ID, Action: model.ActionCompleted, At: created.Add(time.Hour)}
	if err := repo.RecordCompletion(ctx, advanced, rec); err != nil {
		t.Fatalf("record completion: %v", err)
	}
	got, err := repo.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatalf("get alarm: %v", err)
	}
	if !got.NextFireAt.Equal(advanced.NextFireAt) {
		t.Fatalf("alarm not advanced: %s", got.NextFireAt)
	}

	// An alarm that cannot be stored must take the completion down with it.
	broken := advanced
	broken.Title = ""
	rec2 := model.CompletionRecord{ID: "done-2", AlarmID: alarm.ID, Action: model.ActionCompleted, At: created.Add(2 * time.Hour)}
	if err := repo.RecordCompletion(ctx, broken, rec2); err == nil {
		t.Fatal("expected error for invalid alarm update")
	}
	history, err := repo.ListCompletions(ctx, CompletionListFilter{AlarmID: alarm.ID})
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(history) != 1 || history[0].ID != "done-1" {
		t.Fatalf("failed update left a completion behind: %#v", history)
	}

	mismatched := model.CompletionRecord{ID: "done-3", AlarmID: "other", Action: model.ActionCompleted, At: created}
	if err := repo.RecordCompletion(ctx, advanced, mismatched); err == nil {
		t.Fatal("expected error for completion of a different alarm")
	}
}
