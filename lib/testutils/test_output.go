// Package testutils contains helpers shared by the tests of several packages.
package testutils

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

// testOutput makes the test a valid io.Writer, useful as an output for logs
// and CLI help messages.
type testOutput struct{ testing.TB }

func (to testOutput) Write(p []byte) (n int, err error) {
	to.Logf("%s", p)

	return len(p), nil
}

// NewTestOutput returns an io.Writer that uses the test's logger as an output.
func NewTestOutput(t testing.TB) io.Writer {
	return testOutput{t}
}

// NewLogger returns a logger writing through t.Logf, or discarding everything
// when t is nil.
func NewLogger(t testing.TB) *logrus.Logger {
	return newLogger(t, logrus.InfoLevel)
}

// NewLoggerWithHook returns a logger with a SimpleLogrusHook attached for the
// given levels. Without levels, every level is hooked and the logger level
// is Debug.
func NewLoggerWithHook(t testing.TB, levels ...logrus.Level) (*logrus.Logger, *SimpleLogrusHook) {
	maxLevel := logrus.PanicLevel
	if len(levels) == 0 {
		levels = logrus.AllLevels
		maxLevel = logrus.DebugLevel
	} else {
		for _, l := range levels {
			if l > maxLevel {
				maxLevel = l
			}
		}
	}

	l := newLogger(t, maxLevel)
	hook := NewLogHook(levels...)
	l.AddHook(hook)
	return l, hook
}

func newLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	if t == nil {
		l.SetOutput(io.Discard)
	} else {
		l.SetOutput(NewTestOutput(t))
	}
	return l
}
