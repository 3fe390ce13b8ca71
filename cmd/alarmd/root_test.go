package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/alarmd/internal/logging"
)

type cli struct {
	t      *testing.T
	config string
	db     string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{t: t, config: filepath.Join(dir, "config.yaml"), db: filepath.Join(dir, "alarmd.db")}
	yaml := "timezone: UTC\nlog:\n  level: error\n  format: text\n  no_color: true\n"
	require.NoError(t, os.WriteFile(c.config, []byte(yaml), 0o644))
	return c
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", c.config, "--db", c.db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("alarmd %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// addedID pulls the short id out of "added <id> ...".
func addedID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	for i, f := range fields {
		if f == "added" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	t.Fatalf("no id in %q", out)
	return ""
}

func TestInitWritesConfigOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", path, "init"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "snooze:")

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", path, "init"})
	require.Error(t, cmd.Execute())

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", path, "init", "--force"})
	require.NoError(t, cmd.Execute())
}

func TestAddListAndShow(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("add", "Stretch", "--at", "10:30,15:00", "--schedule", "weekdays", "--category", "health")
	id := addedID(t, out)
	assert.Len(t, id, 8)

	list := c.mustRun("list")
	assert.Contains(t, list, id)
	assert.Contains(t, list, "Stretch")
	assert.Contains(t, list, "10:30, 15:00")

	show := c.mustRun("show", id, "--raw")
	assert.Contains(t, show, "# Stretch")
	assert.Contains(t, show, "**Category:** health")
	assert.Contains(t, show, "## Upcoming")
}

func TestAddRejectsBadInput(t *testing.T) {
	c := newCLI(t)
	tests := []struct {
		name string
		args []string
	}{
		{name: "empty title", args: []string{"add", "   ", "--at", "07:00"}},
		{name: "missing time", args: []string{"add", "Wake"}},
		{name: "bad time", args: []string{"add", "Wake", "--at", "7h"}},
		{name: "bad schedule", args: []string{"add", "Wake", "--at", "07:00", "--schedule", "fortnightly"}},
		{name: "bad category", args: []string{"add", "Wake", "--at", "07:00", "--category", "chores"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.run(tt.args...); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
	assert.Equal(t, "no alarms\n", c.mustRun("list", "--all"))
}

func TestAddPrintsWarnings(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "Rent", "--at", "09:00", "--schedule", "monthly 1")

	out := c.mustRun("add", "Rent", "--at", "09:00", "--schedule", "monthly 1")
	assert.Contains(t, out, "warning: An alarm named \"Rent\"")

	out = c.mustRun("add", "Report", "--at", "08:00", "--schedule", "monthly 31", "--check")
	assert.Contains(t, out, "warning: Some months have no day 31")
	assert.Contains(t, out, "ok: Monthly on the 31st")
}

func TestCheckRejectsEmptyTitle(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("add", "  ", "--at", "07:00", "--check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title must not be empty")
}

func TestListUpcomingOrderAndFilters(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "Late", "--at", "23:58", "--category", "work")
	c.mustRun("add", "Early", "--at", "00:01", "--schedule", "once 2099-01-01", "--category", "health")
	off := addedID(t, c.mustRun("add", "Off", "--at", "12:00", "--disabled"))

	out := c.mustRun("list")
	assert.Less(t, strings.Index(out, "Late"), strings.Index(out, "Early"))
	assert.NotContains(t, out, "Off")

	out = c.mustRun("list", "-n", "1")
	assert.Contains(t, out, "Late")
	assert.NotContains(t, out, "Early")

	out = c.mustRun("list", "--category", "health")
	assert.Contains(t, out, "Early")
	assert.NotContains(t, out, "Late")

	assert.Contains(t, c.mustRun("list", "--all"), off)
}

func TestRecordAndStreak(t *testing.T) {
	c := newCLI(t)
	id := addedID(t, c.mustRun("add", "Meds", "--at", "08:00"))

	out := c.mustRun("done", id)
	assert.Contains(t, out, `completed "Meds"`)

	out = c.mustRun("streak", id)
	assert.Contains(t, out, "current streak: 1")
	assert.Contains(t, out, "completion rate: 100%")

	for i := 0; i < 3; i++ {
		c.mustRun("snooze", id)
	}
	_, err := c.run("snooze", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snooze limit")
}

func TestEnableDisableAndRemove(t *testing.T) {
	c := newCLI(t)
	id := addedID(t, c.mustRun("add", "Walk", "--at", "18:00"))

	assert.Contains(t, c.mustRun("disable", id), `disabled "Walk"`)
	assert.Equal(t, "no alarms\n", c.mustRun("list"))
	assert.Contains(t, c.mustRun("list", "--all"), "Walk")

	assert.Contains(t, c.mustRun("enable", id), `enabled "Walk"`)
	assert.Contains(t, c.mustRun("rm", id), `deleted "Walk"`)

	_, err := c.run("show", id)
	require.Error(t, err)
}

func TestEditKeepsUnchangedFields(t *testing.T) {
	c := newCLI(t)
	id := addedID(t, c.mustRun("add", "Gym", "--at", "06:30", "--schedule", "weekly mon,thu"))

	out := c.mustRun("edit", id, "--title", "Gym session", "--at", "07:00")
	assert.Contains(t, out, `updated `+id+` "Gym session"`)

	show := c.mustRun("show", id, "--raw")
	assert.Contains(t, show, "Weekly on Mon, Thu at 07:00")
}

func TestPreviewAdHocSchedule(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("preview", "--schedule", "monthly last fri", "--at", "17:00", "-n", "3")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Monthly on the last Fri at 17:00", lines[0])
	for _, line := range lines[1:] {
		assert.Contains(t, line, "Fri")
		assert.Contains(t, line, "17:00")
	}

	out = c.mustRun("preview", "--schedule", "once 2001-01-01")
	assert.Contains(t, out, "never fires again")

	_, err := c.run("preview")
	require.Error(t, err)
}

func TestExport(t *testing.T) {
	c := newCLI(t)
	c.mustRun("add", "Standup", "--at", "09:15", "--schedule", "weekdays")
	id := addedID(t, c.mustRun("add", "Night", "--at", "22:00"))
	c.mustRun("disable", id)

	out := c.mustRun("export")
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Standup")
	assert.Contains(t, out, "FREQ=WEEKLY")
	assert.NotContains(t, out, "SUMMARY:Night")

	path := filepath.Join(t.TempDir(), "alarms.ics")
	c.mustRun("export", "--all", "--out", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SUMMARY:Night")
}

func TestOpenStampsLogsWithAppClock(t *testing.T) {
	c := newCLI(t)
	opts := &rootOptions{configPath: c.config, dbPath: c.db}
	cmd := newRootCmd()
	cmd.SetErr(&bytes.Buffer{})

	a, err := opts.open(cmd, modeCLI)
	require.NoError(t, err)
	defer a.Close()
	_, ok := a.log.Handler().(*logging.ClockHandler)
	assert.True(t, ok, "logger handler is %T", a.log.Handler())
	assert.Nil(t, a.engine)
}

func TestVersion(t *testing.T) {
	c := newCLI(t)
	assert.Equal(t, "alarmd dev\n", c.mustRun("version"))
}
