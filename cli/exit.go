// Package cli implements the verdict command line: rule checking,
// one-shot evaluation, and the daemon server.
package cli

import "fmt"

// Process exit codes. Eval follows the grep convention: the verdict
// itself is the exit status.
const (
	exitSuccess      = 0
	exitFalse        = 1
	exitValidation   = 2
	exitEval         = 3
	exitFileNotFound = 4
	exitInputParse   = 5
	exitRuntime      = 10
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
