package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/alarmd/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

type Repository interface {
	CreateAlarm(ctx context.Context, in model.Alarm) error
	GetAlarm(ctx context.Context, id string) (model.Alarm, error)
	UpdateAlarm(ctx context.Context, in model.Alarm) error
	DeleteAlarm(ctx context.Context, id string) error
	ListAlarms(ctx context.Context, filter AlarmListFilter) ([]model.Alarm, error)

	AppendCompletion(ctx context.Context, in model.CompletionRecord) error
	// RecordCompletion appends rec and updates alarm atomically.
	RecordCompletion(ctx context.Context, alarm model.Alarm, rec model.CompletionRecord) error
	ListCompletions(ctx context.Context, filter CompletionListFilter) ([]model.CompletionRecord, error)
}

type AlarmListFilter struct {
	Enabled  *bool
	Category model.Category
	// DueBefore keeps alarms whose next fire is at or before the instant.
	DueBefore *time.Time
	// ByNextFire orders by next fire instead of creation time.
	ByNextFire bool
	Limit      int
	Offset     int
}

type CompletionListFilter struct {
	AlarmID string
	Since   *time.Time
	Limit   int
	Offset  int
}
