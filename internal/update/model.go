// Package update holds the bubbletea model of the alarmd TUI: an alarm
// table, a detail pane with upcoming fires and streaks, and a command
// palette.
package update

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"k8s.io/utils/clock"

	"github.com/sandeepkv93/alarmd/internal/alarms"
	"github.com/sandeepkv93/alarmd/internal/model"
	"github.com/sandeepkv93/alarmd/internal/notify"
	"github.com/sandeepkv93/alarmd/internal/scheduler"
	"github.com/sandeepkv93/alarmd/internal/storage"
	"github.com/sandeepkv93/alarmd/internal/streak"
	"github.com/sandeepkv93/alarmd/internal/validate"
)

const (
	defaultPreviewCount = 5
	maxRinging          = 10
	maxNotifications    = 40
)

// Backend is the part of alarms.Service the TUI drives.
type Backend interface {
	List(ctx context.Context, filter storage.AlarmListFilter) ([]model.Alarm, error)
	Save(ctx context.Context, d alarms.Draft) (model.Alarm, validate.Result, error)
	Record(ctx context.Context, id string, action model.Action) (model.Alarm, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (model.Alarm, error)
	Delete(ctx context.Context, id string) error
	Streaks(ctx context.Context, id string) (streak.Summary, error)
	Preview(ctx context.Context, id string, n int) ([]time.Time, error)
}

type Options struct {
	Backend Backend
	// Events, when set, delivers alarms as they ring.
	Events       <-chan scheduler.AlarmEvent
	Clock        clock.PassiveClock
	Location     *time.Location
	Notifier     notify.Notifier
	Log          *slog.Logger
	PreviewCount int
}

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Up      string
	Down    string
	Done    string
	Snooze  string
	Skip    string
	Toggle  string
	Refresh string
	Dismiss string
	Palette string
	Help    string
	Quit    string
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type DetailState struct {
	AlarmID string
	Preview []time.Time
	Streak  streak.Summary
}

type Model struct {
	Alarms        []model.Alarm
	Cursor        int
	SelectedID    string
	Detail        DetailState
	Ringing       []scheduler.AlarmEvent
	Palette       CommandPaletteState
	HelpVisible   bool
	Notifications []notify.Notification
	Status        StatusBar
	Keys          GlobalKeyMap
	Quitting      bool
	LastError     error

	backend      Backend
	events       <-chan scheduler.AlarmEvent
	clock        clock.PassiveClock
	loc          *time.Location
	notifier     notify.Notifier
	log          *slog.Logger
	previewCount int

	alarmTable   table.Model
	commandInput textinput.Model
	helpModel    help.Model
	helpMarkdown string
}

type AlarmDueMsg struct {
	Event scheduler.AlarmEvent
}

type RefreshMsg struct{}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

func NewModel(opts Options) Model {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	if opts.PreviewCount <= 0 {
		opts.PreviewCount = defaultPreviewCount
	}

	m := Model{
		backend:      opts.Backend,
		events:       opts.Events,
		clock:        opts.Clock,
		loc:          opts.Location,
		notifier:     opts.Notifier,
		log:          opts.Log,
		previewCount: opts.PreviewCount,
		Keys: GlobalKeyMap{
			Up:      "k",
			Down:    "j",
			Done:    "d",
			Snooze:  "s",
			Skip:    "x",
			Toggle:  " ",
			Refresh: "r",
			Dismiss: "esc",
			Palette: "/",
			Help:    "?",
			Quit:    "q",
		},
	}
	m.initBubbleComponents()
	m.reload()
	m.syncBubbleData()
	return m
}

func (m *Model) initBubbleComponents() {
	cols := []table.Column{
		{Title: "On", Width: 3},
		{Title: "Next", Width: 15},
		{Title: "Title", Width: 18},
		{Title: "Schedule", Width: 15},
	}
	m.alarmTable = table.New(table.WithColumns(cols), table.WithRows([]table.Row{}), table.WithFocused(true), table.WithHeight(12))

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.Placeholder = "add vitamins at 08:00 daily"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 40

	m.helpModel = help.New()
}

func (m Model) now() time.Time {
	return m.clock.Now().In(m.loc)
}

func (m Model) selected() (model.Alarm, bool) {
	for _, a := range m.Alarms {
		if a.ID == m.SelectedID {
			return a, true
		}
	}
	return model.Alarm{}, false
}
