package update

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/alarmd/internal/alarms"
	"github.com/sandeepkv93/alarmd/internal/model"
	"github.com/sandeepkv93/alarmd/internal/notify"
	"github.com/sandeepkv93/alarmd/internal/recurrence"
	"github.com/sandeepkv93/alarmd/internal/scheduler"
	"github.com/sandeepkv93/alarmd/internal/storage"
	"github.com/sandeepkv93/alarmd/internal/views"
)

var errNoBackend = errors.New("update: no backend configured")

func (m Model) Init() tea.Cmd {
	return waitForAlarmCmd(m.events)
}

func waitForAlarmCmd(ch <-chan scheduler.AlarmEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return AlarmDueMsg{Event: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.syncBubbleData()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed), nil
		}

		switch typed.String() {
		case "ctrl+c", m.Keys.Quit:
			m.Quitting = true
			return m, tea.Quit
		case m.Keys.Palette:
			m.Palette.Active = true
			m.Palette.Input = ""
			m.commandInput.SetValue("")
			m.commandInput.Focus()
			m.Status = StatusBar{Text: "command palette active"}
		case m.Keys.Help:
			m.HelpVisible = !m.HelpVisible
			if m.HelpVisible && m.helpMarkdown == "" {
				m.helpMarkdown = views.RenderMarkdown(paletteHelpMarkdown, 44)
			}
		case m.Keys.Down, "down":
			m.moveCursor(1)
		case m.Keys.Up, "up":
			m.moveCursor(-1)
		case m.Keys.Done:
			m.recordSelected(model.ActionCompleted)
		case m.Keys.Snooze:
			m.recordSelected(model.ActionSnoozed)
		case m.Keys.Skip:
			m.recordSelected(model.ActionSkipped)
		case m.Keys.Toggle, "space":
			if a, ok := m.selected(); ok {
				m.toggle(a)
			}
		case m.Keys.Refresh:
			m.reload()
			m.Status = StatusBar{Text: "alarms reloaded"}
		case m.Keys.Dismiss:
			m.Ringing = nil
		}
		return m, nil
	case AlarmDueMsg:
		m.ring(typed.Event)
		return m, waitForAlarmCmd(m.events)
	case RefreshMsg:
		m.reload()
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.fail(typed.Err)
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	status := m.Status.Text
	if status != "" && m.Status.IsError {
		status = "error: " + status
	}

	right := m.renderDetailPane() + views.RenderCommandPalette(m.Palette.Active, m.commandInput.View()) + m.renderHelpIfVisible()

	enabled := 0
	for _, a := range m.Alarms {
		if a.Enabled {
			enabled++
		}
	}

	return views.RenderApp(views.AppData{
		Header: fmt.Sprintf("alarmd | %s | selected: %s", m.now().Format("Mon 2006-01-02 15:04"), m.SelectedID),
		LeftPane: views.RenderAlarmList(views.AlarmListData{
			TableView: m.alarmTable.View(),
			Count:     len(m.Alarms),
			Enabled:   enabled,
		}),
		RightPane:    right,
		StatusLine:   status,
		StatusError:  m.Status.IsError,
		Notification: m.renderNotificationsView(),
		Footer: fmt.Sprintf("keys: %s/%s move | %s done | %s snooze | %s skip | space toggle | %s cmd | %s help | %s quit",
			m.Keys.Down, m.Keys.Up, m.Keys.Done, m.Keys.Snooze, m.Keys.Skip, m.Keys.Palette, m.Keys.Help, m.Keys.Quit),
	})
}

// reload refetches alarms ordered by next fire and keeps the selection on
// the same alarm when it still exists.
func (m *Model) reload() {
	if m.backend == nil {
		return
	}
	list, err := m.backend.List(context.Background(), storage.AlarmListFilter{ByNextFire: true})
	if err != nil {
		m.fail(fmt.Errorf("load alarms: %w", err))
		return
	}
	m.Alarms = list
	m.Cursor = 0
	for i, a := range list {
		if a.ID == m.SelectedID {
			m.Cursor = i
			break
		}
	}
	m.selectCursor()
}

func (m *Model) moveCursor(delta int) {
	if len(m.Alarms) == 0 {
		return
	}
	m.Cursor = min(max(m.Cursor+delta, 0), len(m.Alarms)-1)
	m.selectCursor()
}

func (m *Model) selectCursor() {
	if len(m.Alarms) == 0 {
		m.SelectedID = ""
		m.Detail = DetailState{}
		return
	}
	m.SelectedID = m.Alarms[m.Cursor].ID
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	if m.backend == nil || m.SelectedID == "" {
		m.Detail = DetailState{}
		return
	}
	ctx := context.Background()
	d := DetailState{AlarmID: m.SelectedID}
	preview, err := m.backend.Preview(ctx, m.SelectedID, m.previewCount)
	if err != nil {
		m.log.Warn("Preview failed", "alarm", m.SelectedID, "error", err)
	}
	d.Preview = preview
	summary, err := m.backend.Streaks(ctx, m.SelectedID)
	if err != nil {
		m.log.Warn("Streak summary failed", "alarm", m.SelectedID, "error", err)
	}
	d.Streak = summary
	m.Detail = d
}

func (m *Model) recordSelected(action model.Action) {
	a, ok := m.selected()
	if !ok {
		m.Status = StatusBar{Text: "no alarm selected", IsError: true}
		return
	}
	if _, err := m.record(a, action); err != nil {
		m.fail(err)
	}
}

func (m *Model) record(a model.Alarm, action model.Action) (string, error) {
	if m.backend == nil {
		return "", errNoBackend
	}
	updated, err := m.backend.Record(context.Background(), a.ID, action)
	if err != nil {
		if errors.Is(err, alarms.ErrSnoozeLimit) {
			return "", fmt.Errorf("%s (mark it done or skip it): %w", a.Title, err)
		}
		return "", err
	}
	m.dismiss(a.ID)
	m.reload()

	var text string
	switch {
	case action == model.ActionSnoozed:
		text = fmt.Sprintf("snoozed %s until %s", a.Title, updated.NextFireAt.In(m.loc).Format("15:04"))
	case !updated.Enabled:
		text = fmt.Sprintf("%s %s, no further fires", action, a.Title)
	default:
		text = fmt.Sprintf("%s %s, next %s", action, a.Title, formatNext(updated, *m))
	}
	m.Status = StatusBar{Text: text}
	return text, nil
}

func (m *Model) toggle(a model.Alarm) (string, error) {
	if m.backend == nil {
		return "", errNoBackend
	}
	updated, err := m.backend.SetEnabled(context.Background(), a.ID, !a.Enabled)
	if err != nil {
		m.fail(err)
		return "", err
	}
	m.reload()
	text := fmt.Sprintf("disabled %s", a.Title)
	if updated.Enabled {
		text = fmt.Sprintf("enabled %s, next %s", a.Title, formatNext(updated, *m))
	}
	m.Status = StatusBar{Text: text}
	return text, nil
}

func (m *Model) ring(ev scheduler.AlarmEvent) {
	m.Ringing = append(m.Ringing, ev)
	if len(m.Ringing) > maxRinging {
		m.Ringing = m.Ringing[len(m.Ringing)-maxRinging:]
	}
	title := ev.Title
	if title == "" {
		title = ev.AlarmID
	}
	m.Status = StatusBar{Text: fmt.Sprintf("alarm ringing: %s", title)}
	m.notify(title, fmt.Sprintf("%s is ringing (%s)", title, ev.FireAt.In(m.loc).Format("15:04")), "alarm")

	// Select the ringing alarm so d/s/x act on it directly.
	m.reload()
	for i, a := range m.Alarms {
		if a.ID == ev.AlarmID {
			m.Cursor = i
			m.selectCursor()
			break
		}
	}
}

func (m *Model) dismiss(alarmID string) {
	out := m.Ringing[:0]
	for _, ev := range m.Ringing {
		if ev.AlarmID != alarmID {
			out = append(out, ev)
		}
	}
	m.Ringing = out
}

func (m *Model) fail(err error) {
	if err == nil {
		return
	}
	m.LastError = err
	m.Status = StatusBar{Text: err.Error(), IsError: true}
	m.log.Warn("TUI action failed", "error", err)
}

func (m *Model) notify(title, body, level string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	n := notify.Notification{Title: title, Body: body, Level: level, At: m.clock.Now()}
	m.Notifications = append(m.Notifications, n)
	if len(m.Notifications) > maxNotifications {
		m.Notifications = m.Notifications[len(m.Notifications)-maxNotifications:]
	}
	if err := m.notifier.Send(n); err != nil {
		m.log.Warn("Desktop notification failed", "error", err)
	}
}

func (m *Model) syncBubbleData() {
	rows := make([]table.Row, 0, len(m.Alarms))
	for _, a := range m.Alarms {
		on := "x"
		if !a.Enabled {
			on = "-"
		}
		rows = append(rows, table.Row{on, formatNext(a, *m), a.Title, a.Schedule.Describe()})
	}
	m.alarmTable.SetRows(rows)
	if len(rows) > 0 {
		m.alarmTable.SetCursor(m.Cursor)
	}
}

func formatNext(a model.Alarm, m Model) string {
	if !a.Enabled || a.NextFireAt.IsZero() || recurrence.IsNever(a.NextFireAt) {
		return "never"
	}
	next := a.NextFireAt.In(m.loc)
	now := m.now()
	if y, mo, d := next.Date(); y == now.Year() && mo == now.Month() && d == now.Day() {
		return "today " + next.Format("15:04")
	}
	return next.Format("Mon 01-02 15:04")
}
