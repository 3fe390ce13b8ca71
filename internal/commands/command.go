package commands

import (
	"fmt"
	"strings"

	"github.com/sandeepkv93/alarmd/internal/model"
)

type Type string

const (
	TypeAdd    Type = "add"
	TypeDone   Type = "done"
	TypeSnooze Type = "snooze"
	TypeSkip   Type = "skip"
	TypeToggle Type = "toggle"
	TypeDelete Type = "delete"
)

// TargetSelected refers to the alarm highlighted in the TUI.
const TargetSelected = "selected"

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AddArgs carries a new alarm. Schedule is left as an expression for
// model.ParseSchedule because it needs the current time to resolve.
type AddArgs struct {
	Title    string
	Times    []model.TimeOfDay
	Schedule string
	Category model.Category
}

type TargetArgs struct {
	Target string
}

type Command struct {
	Type   Type
	Raw    string
	Add    *AddArgs
	Target *TargetArgs
}

// Parse reads one palette line. A leading slash is optional.
//
//	add <title> at HH:MM[,HH:MM...] [schedule expression] [cat:<category>]
//	done|snooze|skip|toggle|delete [selected|<alarm id>]
func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := Type(strings.ToLower(parts[0]))
	args := parts[1:]

	switch head {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeDone, TypeSnooze, TypeSkip, TypeToggle, TypeDelete:
		return parseTarget(input, head, args)
	case "rm":
		return parseTarget(input, TypeDelete, args)
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseAdd(raw string, args []string) (Command, error) {
	category := model.Category("")
	rest := make([]string, 0, len(args))
	for _, arg := range args {
		if v, ok := strings.CutPrefix(strings.ToLower(arg), "cat:"); ok {
			category = model.Category(v)
			if !category.IsValid() {
				return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown category %q", v)}
			}
			continue
		}
		rest = append(rest, arg)
	}

	// The title may itself contain "at", so split on the last "at" that is
	// followed by a valid time list.
	for i := len(rest) - 2; i >= 1; i-- {
		if !strings.EqualFold(rest[i], "at") {
			continue
		}
		times, err := model.ParseTimes(rest[i+1])
		if err != nil {
			continue
		}
		schedule := strings.Join(rest[i+2:], " ")
		if schedule == "" {
			schedule = "daily"
		}
		return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{
			Title:    strings.Join(rest[:i], " "),
			Times:    times,
			Schedule: schedule,
			Category: category,
		}}, nil
	}
	return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires a title and times, e.g. add vitamins at 08:00 daily"}
}

func parseTarget(raw string, typ Type, args []string) (Command, error) {
	target := TargetSelected
	switch len(args) {
	case 0:
	case 1:
		target = args[0]
	default:
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes at most one target", typ)}
	}
	return Command{Type: typ, Raw: raw, Target: &TargetArgs{Target: target}}, nil
}
