package main

import (
	"errors"
	"os"

	"github.com/loykin/pushprobe/cmd/pushprobe/commands"
	"github.com/loykin/pushprobe/internal/common"
)

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

// DefaultExitHandler implements ExitHandler for production use
type DefaultExitHandler struct{}

// Exit terminates the program with the given exit code
func (h *DefaultExitHandler) Exit(code int) {
	os.Exit(code)
}

// LogFatalError logs err and exits 1. A commands.ExitError carrying no
// error exits with its code silently: the report already said why.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	code := 1
	var exitErr *commands.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
		if exitErr.Err == nil {
			h.Exit(code)
			return
		}
	}
	allKeyvals := append([]any{"error", err}, keyvals...)
	common.GetLogger().WithComponent("main").Error(msg, allKeyvals...)
	h.Exit(code)
}

// Global exit handler (can be replaced for testing)
var exitHandler ExitHandler = &DefaultExitHandler{}
