package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/alarmd/internal/views"
)

const paletteHelpMarkdown = "## Command palette\n\n" +
	"- `add <title> at 07:30[,19:00] <schedule> [cat:health]`\n" +
	"- `done`, `snooze`, `skip`, `toggle`, `delete` act on the selection or an id prefix\n\n" +
	"### Schedules\n\n" +
	"`daily`, `weekdays`, `weekends`, `weekly mon,thu [every 2]`, " +
	"`monthly 1,15 [every 3]`, `monthly last fri`, `annual 02-29`, " +
	"`every 3 days [from 2026-03-01]`, `once 2026-12-24`\n"

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k helpKeyMap) ShortHelp() []key.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]key.Binding { return k.full }

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	bindings := m.helpBindings()
	plain := make([]string, 0, len(bindings))
	for _, kb := range m.bindings() {
		plain = append(plain, fmt.Sprintf("- %s: %s", kb.Key, kb.Action))
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: plain,
		HelpView: m.helpModel.View(helpKeyMap{short: bindings, full: [][]key.Binding{bindings}}),
		Markdown: m.helpMarkdown,
	})
}

func (m Model) bindings() []KeyBinding {
	return []KeyBinding{
		{Key: m.Keys.Down + "/" + m.Keys.Up, Action: "move selection"},
		{Key: m.Keys.Done, Action: "mark done"},
		{Key: m.Keys.Snooze, Action: "snooze"},
		{Key: m.Keys.Skip, Action: "skip this occurrence"},
		{Key: "space", Action: "enable/disable"},
		{Key: m.Keys.Refresh, Action: "reload alarms"},
		{Key: m.Keys.Dismiss, Action: "dismiss ringing alarms"},
		{Key: m.Keys.Palette, Action: "open command palette"},
		{Key: m.Keys.Help, Action: "toggle help panel"},
		{Key: m.Keys.Quit, Action: "quit"},
	}
}

func (m Model) helpBindings() []key.Binding {
	out := make([]key.Binding, 0, len(m.bindings()))
	for _, kb := range m.bindings() {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	return out
}
