package update

import (
	"strings"
	"time"

	"github.com/sandeepkv93/alarmd/internal/views"
)

func (m Model) renderDetailPane() string {
	a, ok := m.selected()
	if !ok {
		return views.RenderDetailPane(views.DetailData{})
	}
	times := make([]string, 0, len(a.Times))
	for _, t := range a.Times {
		times = append(times, t.String())
	}
	preview := make([]time.Time, 0, len(m.Detail.Preview))
	if m.Detail.AlarmID == a.ID {
		for _, t := range m.Detail.Preview {
			preview = append(preview, t.In(m.loc))
		}
	}
	s := m.Detail.Streak
	return views.RenderDetailPane(views.DetailData{
		ID:          a.ID,
		Title:       a.Title,
		Category:    string(a.Category),
		Schedule:    a.Schedule.Describe(),
		Times:       times,
		Enabled:     a.Enabled,
		SnoozeCount: a.SnoozeCount,
		NextFire:    formatNext(a, m),
		Preview:     preview,
		Current:     s.Current,
		Longest:     s.Longest,
		Rate:        s.CompletionRate,
		Completed:   s.Completed,
		Missed:      s.Missed,
	})
}

func (m Model) renderNotificationsView() string {
	ringing := make([]views.RingingData, 0, len(m.Ringing))
	for _, ev := range m.Ringing {
		title := ev.Title
		if title == "" {
			title = ev.AlarmID
		}
		ringing = append(ringing, views.RingingData{Title: title, FireAt: ev.FireAt.In(m.loc)})
	}
	parts := []string{views.RenderRinging(ringing)}
	if len(m.Notifications) > 0 {
		n := m.Notifications[len(m.Notifications)-1]
		parts = append(parts, views.RenderNotification(n.Level, n.Body))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
