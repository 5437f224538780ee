package errext

import (
	"errors"

	"github.com/liuxd6825/devtools/errext/exitcodes"
)

// HasExitCode is a wrapper around an error with an attached exit code.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

// WithExitCodeIfNone attaches an exit code to the given error, unless the
// error chain already carries one. A nil error stays nil.
func WithExitCodeIfNone(err error, exitCode exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	var ecerr HasExitCode
	if errors.As(err, &ecerr) {
		return err
	}
	return withExitCode{err, exitCode}
}

type withExitCode struct {
	error
	exitCode exitcodes.ExitCode
}

func (wc withExitCode) Unwrap() error {
	return wc.error
}

func (wc withExitCode) ExitCode() exitcodes.ExitCode {
	return wc.exitCode
}

var _ HasExitCode = withExitCode{}
