package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Add    func(AddArgs) (Result, error)
	Done   func(TargetArgs) (Result, error)
	Snooze func(TargetArgs) (Result, error)
	Skip   func(TargetArgs) (Result, error)
	Toggle func(TargetArgs) (Result, error)
	Delete func(TargetArgs) (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	if cmd.Type == TypeAdd {
		if handlers.Add == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Add(*cmd.Add)
	}

	var h func(TargetArgs) (Result, error)
	switch cmd.Type {
	case TypeDone:
		h = handlers.Done
	case TypeSnooze:
		h = handlers.Snooze
	case TypeSkip:
		h = handlers.Skip
	case TypeToggle:
		h = handlers.Toggle
	case TypeDelete:
		h = handlers.Delete
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
	if h == nil {
		return Result{}, missing(cmd.Type)
	}
	target := TargetArgs{Target: TargetSelected}
	if cmd.Target != nil {
		target = *cmd.Target
	}
	return h(target)
}

func missing(t Type) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}
