package commands

import (
	"errors"
	"io"
	"os"
)

// cmdStdout is where table/JSON-rendering commands write; overridable in
// tests.
var cmdStdout io.Writer = os.Stdout

// exitError carries the process exit code a RunE function wants, alongside
// the underlying error cobra prints to stderr. Plain errors (not wrapped
// this way) exit 1, matching the teacher's unconditional os.Exit(1).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// withExitCode wraps err so ExitCode reports code for it. Returns nil
// unchanged so callers can write `return withExitCode(2, err)` directly
// after an `if err != nil`.
func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode extracts the process exit code intended for err, defaulting to 1
// for any error not explicitly classified (§6's per-command exit codes).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}
