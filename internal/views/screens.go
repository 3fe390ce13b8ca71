package views

import (
	"fmt"
	"strings"
	"time"
)

type AlarmListData struct {
	TableView string
	Count     int
	Enabled   int
}

type DetailData struct {
	ID          string
	Title       string
	Category    string
	Schedule    string
	Times       []string
	Enabled     bool
	SnoozeCount int
	NextFire    string
	Preview     []time.Time
	Current     int
	Longest     int
	Rate        float64
	Completed   int
	Missed      int
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
	Markdown string
}

type RingingData struct {
	Title  string
	FireAt time.Time
}

func RenderAlarmList(data AlarmListData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "alarms: %d (%d enabled)\n", data.Count, data.Enabled)
	if data.Count == 0 {
		b.WriteString(mutedStyle.Render("no alarms yet, try /add vitamins at 08:00 daily"))
		return b.String()
	}
	b.WriteString(data.TableView)
	return strings.TrimSpace(b.String())
}

func RenderDetailPane(data DetailData) string {
	if strings.TrimSpace(data.ID) == "" {
		return "details:\n(no selection)"
	}
	var b strings.Builder
	b.WriteString("details:\n")
	fmt.Fprintf(&b, "title: %s\n", data.Title)
	fmt.Fprintf(&b, "id: %s\n", data.ID)
	if data.Category != "" {
		fmt.Fprintf(&b, "category: %s\n", data.Category)
	}
	fmt.Fprintf(&b, "schedule: %s\n", data.Schedule)
	fmt.Fprintf(&b, "times: %s\n", strings.Join(data.Times, ", "))
	state := "enabled"
	if !data.Enabled {
		state = "disabled"
	}
	fmt.Fprintf(&b, "state: %s", state)
	if data.SnoozeCount > 0 {
		fmt.Fprintf(&b, " (snoozed %dx)", data.SnoozeCount)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "next: %s\n", data.NextFire)

	if len(data.Preview) > 0 {
		b.WriteString("\nupcoming:\n")
		for _, t := range data.Preview {
			fmt.Fprintf(&b, "- %s\n", t.Format("Mon 2006-01-02 15:04"))
		}
	}
	b.WriteString("\nstreaks:\n")
	fmt.Fprintf(&b, "current: %d | longest: %d\n", data.Current, data.Longest)
	fmt.Fprintf(&b, "completed: %d | missed: %d | rate: %.0f%%", data.Completed, data.Missed, data.Rate*100)
	return strings.TrimSpace(b.String())
}

func RenderCommandPalette(active bool, inputView string) string {
	if !active {
		return ""
	}
	return "\ncommand:\n" + inputView
}

func RenderNotification(level string, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("notification: [%s] %s", strings.ToUpper(level), body)
}

func RenderRinging(items []RingingData) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, ringingStyle.Render(fmt.Sprintf("RINGING %s (%s)", it.Title, it.FireAt.Format("15:04"))))
	}
	return strings.Join(lines, "\n")
}

func RenderHelpPanel(data HelpPanelData) string {
	var b strings.Builder
	b.WriteString("\nhelp:\n")
	b.WriteString(strings.Join(data.Bindings, "\n"))
	if data.HelpView != "" {
		b.WriteString("\n" + data.HelpView)
	}
	if data.Markdown != "" {
		b.WriteString("\n" + data.Markdown)
	}
	return b.String()
}
