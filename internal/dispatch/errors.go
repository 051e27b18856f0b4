package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// Exit codes for failures the dispatcher raises itself.
const (
	ExitUsage       = 1
	ExitInterrupted = 130 // 128 + SIGINT
)

var (
	// ErrUnknownCommand is returned for a verb that is neither built in nor a toolchain.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMissingArgument is returned when a verb needs an argument and got none.
	ErrMissingArgument = errors.New("missing argument")
)

// ExitCodeError carries the exit code of a failed build or container run.
type ExitCodeError struct {
	Code int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exited with code %d", e.Code)
}

// ExitCode maps an error returned by the dispatcher to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	return ExitUsage
}
