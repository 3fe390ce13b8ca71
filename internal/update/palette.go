package update

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/alarmd/internal/alarms"
	"github.com/sandeepkv93/alarmd/internal/commands"
	"github.com/sandeepkv93/alarmd/internal/model"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		m = m.executePaletteCommand()
	default:
		if msg.Type == tea.KeyRunes {
			m.commandInput.SetValue(m.commandInput.Value() + string(msg.Runes))
			m.Palette.Input = m.commandInput.Value()
			return m
		}
		m.commandInput, _ = m.commandInput.Update(msg)
		m.Palette.Input = m.commandInput.Value()
	}
	return m
}

func (m *Model) closePalette() {
	m.Palette.Active = false
	m.Palette.Input = ""
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

func (m Model) executePaletteCommand() Model {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m
	}

	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			return m.addAlarm(a)
		},
		Done: func(t commands.TargetArgs) (commands.Result, error) {
			return m.recordTarget(t, model.ActionCompleted)
		},
		Snooze: func(t commands.TargetArgs) (commands.Result, error) {
			return m.recordTarget(t, model.ActionSnoozed)
		},
		Skip: func(t commands.TargetArgs) (commands.Result, error) {
			return m.recordTarget(t, model.ActionSkipped)
		},
		Toggle: func(t commands.TargetArgs) (commands.Result, error) {
			a, err := m.resolveTarget(t.Target)
			if err != nil {
				return commands.Result{}, err
			}
			text, err := m.toggle(a)
			return commands.Result{Message: text}, err
		},
		Delete: func(t commands.TargetArgs) (commands.Result, error) {
			a, err := m.resolveTarget(t.Target)
			if err != nil {
				return commands.Result{}, err
			}
			if m.backend == nil {
				return commands.Result{}, errNoBackend
			}
			if err := m.backend.Delete(context.Background(), a.ID); err != nil {
				return commands.Result{}, err
			}
			m.dismiss(a.ID)
			m.reload()
			return commands.Result{Message: fmt.Sprintf("deleted %s", a.Title)}, nil
		},
	})
	if err != nil {
		m.fail(err)
		return m
	}
	m.Status = StatusBar{Text: res.Message}
	return m
}

func (m *Model) addAlarm(a commands.AddArgs) (commands.Result, error) {
	if m.backend == nil {
		return commands.Result{}, errNoBackend
	}
	schedule, err := model.ParseSchedule(a.Schedule, m.now())
	if err != nil {
		return commands.Result{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: err.Error()}
	}
	saved, res, err := m.backend.Save(context.Background(), alarms.Draft{
		Title:    a.Title,
		Category: a.Category,
		Schedule: schedule,
		Times:    a.Times,
	})
	if err != nil {
		return commands.Result{}, err
	}
	m.SelectedID = saved.ID
	m.reload()

	msg := fmt.Sprintf("added %s (%s), next %s", saved.Title, saved.Schedule.Describe(), formatNext(saved, *m))
	if len(res.Warnings) > 0 {
		warnings := make([]string, 0, len(res.Warnings))
		for _, w := range res.Warnings {
			warnings = append(warnings, w.Message)
		}
		msg += " | warning: " + strings.Join(warnings, "; ")
		m.notify("Warning", strings.Join(warnings, "; "), "warn")
	}
	return commands.Result{Message: msg}, nil
}

func (m *Model) recordTarget(t commands.TargetArgs, action model.Action) (commands.Result, error) {
	a, err := m.resolveTarget(t.Target)
	if err != nil {
		return commands.Result{}, err
	}
	text, err := m.record(a, action)
	return commands.Result{Message: text}, err
}

// resolveTarget accepts "selected", a full alarm ID, or an unambiguous ID
// prefix.
func (m *Model) resolveTarget(target string) (model.Alarm, error) {
	if target == "" || strings.EqualFold(target, commands.TargetSelected) {
		a, ok := m.selected()
		if !ok {
			return model.Alarm{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: "no alarm selected"}
		}
		return a, nil
	}
	var matches []model.Alarm
	for _, a := range m.Alarms {
		if a.ID == target {
			return a, nil
		}
		if strings.HasPrefix(a.ID, target) {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Alarm{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: fmt.Sprintf("no alarm matches %q", target)}
	default:
		return model.Alarm{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: fmt.Sprintf("%q matches %d alarms", target, len(matches))}
	}
}
