package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/alarmd/internal/model"
)

// Fixed-width so that stored instants sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const alarmColumns = `id, title, category, cycle_type, schedule_type, schedule, times, enabled, snooze_count, next_fire_at, created_at, updated_at`

type SQLiteRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSQLiteRepository(db *sql.DB, log *slog.Logger) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if log == nil {
		log = slog.Default()
	}
	// One connection keeps the foreign_keys pragma in effect and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db, log: log}, nil
}

// OpenSQLite opens the database at path and applies pending migrations.
func OpenSQLite(path string, log *slog.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	applied, err := MigrateUp(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if applied > 0 {
		repo.log.Info("Applied migrations", slog.String("path", path), slog.Int("count", applied))
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateAlarm(ctx context.Context, in model.Alarm) error {
	row, err := encodeAlarm(in)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO alarms (`+alarmColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Title, row.category, row.cycle, row.kind, row.schedule, row.times,
		boolInt(in.Enabled), in.SnoozeCount, zeroTime(in.NextFireAt), mustTime(in.CreatedAt), mustTime(row.updated),
	)
	return err
}

func (r *SQLiteRepository) GetAlarm(ctx context.Context, id string) (model.Alarm, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alarmColumns+` FROM alarms WHERE id = ?`, id)
	alarm, err := scanAlarm(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Alarm{}, ErrNotFound
		}
		return model.Alarm{}, err
	}
	return alarm, nil
}

func (r *SQLiteRepository) UpdateAlarm(ctx context.Context, in model.Alarm) error {
	return updateAlarm(ctx, r.db, in)
}

func (r *SQLiteRepository) DeleteAlarm(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// ListAlarms skips rows whose schedule type this build does not know,
// logging each one, so a newer database still lists.
func (r *SQLiteRepository) ListAlarms(ctx context.Context, filter AlarmListFilter) ([]model.Alarm, error) {
	query := `SELECT ` + alarmColumns + ` FROM alarms`
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if filter.Enabled != nil {
		clauses = append(clauses, "enabled = ?")
		args = append(args, boolInt(*filter.Enabled))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.DueBefore != nil {
		clauses = append(clauses, "next_fire_at IS NOT NULL AND next_fire_at <= ?")
		args = append(args, mustTime(*filter.DueBefore))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.ByNextFire {
		query += ` ORDER BY next_fire_at IS NULL, next_fire_at ASC, id ASC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Alarm, 0)
	for rows.Next() {
		alarm, scanErr := scanAlarm(rows)
		if errors.Is(scanErr, model.ErrUnknownScheduleType) {
			r.log.Warn("Skipping alarm with unknown schedule type", slog.Any("error", scanErr))
			continue
		}
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, alarm)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AppendCompletion(ctx context.Context, in model.CompletionRecord) error {
	return appendCompletion(ctx, r.db, in)
}

// RecordCompletion appends rec and stores the advanced alarm in one
// transaction; either both land or neither does.
func (r *SQLiteRepository) RecordCompletion(ctx context.Context, alarm model.Alarm, rec model.CompletionRecord) error {
	if rec.AlarmID != alarm.ID {
		return fmt.Errorf("storage: completion for %q recorded against alarm %q", rec.AlarmID, alarm.ID)
	}
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := appendCompletion(ctx, tx, rec); err != nil {
			return fmt.Errorf("append completion: %w", err)
		}
		if err := updateAlarm(ctx, tx, alarm); err != nil {
			return fmt.Errorf("update alarm: %w", err)
		}
		return nil
	})
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateAlarm(ctx context.Context, db execer, in model.Alarm) error {
	row, err := encodeAlarm(in)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE alarms
		SET title = ?, category = ?, cycle_type = ?, schedule_type = ?, schedule = ?, times = ?,
		    enabled = ?, snooze_count = ?, next_fire_at = ?, updated_at = ?
		WHERE id = ?`,
		in.Title, row.category, row.cycle, row.kind, row.schedule, row.times,
		boolInt(in.Enabled), in.SnoozeCount, zeroTime(in.NextFireAt), mustTime(row.updated), in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func appendCompletion(ctx context.Context, db execer, in model.CompletionRecord) error {
	if err := in.Validate(); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO completions (id, alarm_id, action, at, snooze_count)
		VALUES (?, ?, ?, ?, ?)`,
		in.ID, in.AlarmID, string(in.Action), mustTime(in.At), in.SnoozeCount,
	)
	return err
}

// ListCompletions returns records oldest first.
func (r *SQLiteRepository) ListCompletions(ctx context.Context, filter CompletionListFilter) ([]model.CompletionRecord, error) {
	query := `SELECT id, alarm_id, action, at, snooze_count FROM completions`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.AlarmID != "" {
		clauses = append(clauses, "alarm_id = ?")
		args = append(args, filter.AlarmID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "at >= ?")
		args = append(args, mustTime(*filter.Since))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY at ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.CompletionRecord, 0)
	for rows.Next() {
		rec, scanErr := scanCompletion(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type alarmRow struct {
	category string
	cycle    string
	kind     string
	schedule string
	times    string
	updated  time.Time
}

func encodeAlarm(in model.Alarm) (alarmRow, error) {
	if err := in.Validate(); err != nil {
		return alarmRow{}, err
	}
	raw, err := model.MarshalSchedule(in.Schedule)
	if err != nil {
		return alarmRow{}, err
	}
	category := in.Category
	if category == "" {
		category = model.CategoryGeneral
	}
	updated := in.UpdatedAt
	if updated.IsZero() {
		updated = in.CreatedAt
	}
	return alarmRow{
		category: string(category),
		cycle:    string(in.CycleType()),
		kind:     string(in.Schedule.Kind()),
		schedule: string(raw),
		times:    joinTimes(in.Times),
		updated:  updated,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlarm(s scanner) (model.Alarm, error) {
	var out model.Alarm
	var category, cycle, kind, schedule, times string
	var enabled int
	var next sql.NullString
	var created, updated string
	if err := s.Scan(&out.ID, &out.Title, &category, &cycle, &kind, &schedule, &times, &enabled, &out.SnoozeCount, &next, &created, &updated); err != nil {
		return model.Alarm{}, err
	}
	sched, err := model.UnmarshalSchedule([]byte(schedule))
	if err != nil {
		return model.Alarm{}, fmt.Errorf("alarm %s (%s): %w", out.ID, kind, err)
	}
	parsedTimes, err := model.ParseTimes(times)
	if err != nil {
		return model.Alarm{}, fmt.Errorf("alarm %s times: %w", out.ID, err)
	}
	nextAt, err := parseNullableTime(next)
	if err != nil {
		return model.Alarm{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.Alarm{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return model.Alarm{}, err
	}
	out.Category = model.Category(category)
	out.Cycle = model.CycleType(cycle)
	out.Schedule = sched
	out.Times = parsedTimes
	out.Enabled = enabled == 1
	if nextAt != nil {
		out.NextFireAt = *nextAt
	}
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	return out, nil
}

func scanCompletion(s scanner) (model.CompletionRecord, error) {
	var out model.CompletionRecord
	var action, at string
	if err := s.Scan(&out.ID, &out.AlarmID, &action, &at, &out.SnoozeCount); err != nil {
		return model.CompletionRecord{}, err
	}
	atTime, err := parseRequiredTime(at)
	if err != nil {
		return model.CompletionRecord{}, err
	}
	out.Action = model.Action(action)
	out.At = atTime
	return out, nil
}

func joinTimes(times []model.TimeOfDay) string {
	parts := make([]string, 0, len(times))
	for _, t := range model.SortTimes(times) {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ",")
}

func zeroTime(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return mustTime(v)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
