// Package notify delivers ringing alarms to the desktop.
package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

type Notification struct {
	Title string
	Body  string
	Level string
	At    time.Time
}

type Notifier interface {
	Send(Notification) error
}

type Noop struct{}

func (Noop) Send(Notification) error { return nil }

// Desktop shells out to notify-send on Linux and osascript on macOS. Other
// platforms are a no-op.
type Desktop struct{}

func (Desktop) Send(n Notification) error {
	name, args := command(runtime.GOOS, n)
	if name == "" {
		return nil
	}
	if err := exec.Command(name, args...).Run(); err != nil {
		return fmt.Errorf("notify: %s: %w", name, err)
	}
	return nil
}

func command(goos string, n Notification) (string, []string) {
	switch goos {
	case "linux":
		args := []string{n.Title, n.Body}
		if n.Level == "alarm" {
			args = append([]string{"--urgency=critical"}, args...)
		}
		return "notify-send", args
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(n.Body), escapeAppleScript(n.Title))
		return "osascript", []string{"-e", script}
	default:
		return "", nil
	}
}

// appleScriptQuoter escapes backslashes before quotes so user text cannot
// end the string literal.
var appleScriptQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeAppleScript(s string) string {
	return appleScriptQuoter.Replace(s)
}

// Recorder keeps what it was sent. It backs the TUI notification log and
// tests.
type Recorder struct {
	Sent []Notification
}

func (r *Recorder) Send(n Notification) error {
	r.Sent = append(r.Sent, n)
	return nil
}
