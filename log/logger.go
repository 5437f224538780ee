// Package log implements the category logger used by the devtools client and
// the logrus hooks used by the devtools command.
package log

import (
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger logs messages tagged with a category (e.g. "devtools:fetch") and the
// time elapsed since the previous message. A nil *Logger discards everything,
// so library code never has to check for one.
type Logger struct {
	Log            logrus.FieldLogger
	mu             sync.Mutex
	lastLogCall    int64
	categoryFilter *regexp.Regexp
}

// NewNullLogger will create a logger where log lines will
// be discarded and not logged anywhere.
func NewNullLogger() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return New(log, nil)
}

// New creates a new logger. Messages whose category doesn't match
// categoryFilter are dropped; a nil filter keeps everything.
func New(logger logrus.FieldLogger, categoryFilter *regexp.Regexp) *Logger {
	return &Logger{
		Log:            logger,
		categoryFilter: categoryFilter,
	}
}

func (l *Logger) Debugf(category string, msg string, args ...interface{}) {
	l.Logf(logrus.DebugLevel, category, msg, args...)
}

func (l *Logger) Infof(category string, msg string, args ...interface{}) {
	l.Logf(logrus.InfoLevel, category, msg, args...)
}

func (l *Logger) Warnf(category string, msg string, args ...interface{}) {
	l.Logf(logrus.WarnLevel, category, msg, args...)
}

func (l *Logger) Errorf(category string, msg string, args ...interface{}) {
	l.Logf(logrus.ErrorLevel, category, msg, args...)
}

// Logf logs msg at the given level under category.
func (l *Logger) Logf(level logrus.Level, category string, msg string, args ...interface{}) {
	if l == nil {
		return
	}
	if lg, ok := l.Log.(*logrus.Logger); ok && !lg.IsLevelEnabled(level) {
		return
	}

	l.mu.Lock()
	if l.categoryFilter != nil && !l.categoryFilter.MatchString(category) {
		l.mu.Unlock()
		return
	}
	now := time.Now().UnixNano() / int64(time.Millisecond)
	elapsed := now - l.lastLogCall
	if l.lastLogCall == 0 {
		elapsed = 0
	}
	l.lastLogCall = now
	l.mu.Unlock()

	if l.Log == nil {
		magenta := color.New(color.FgMagenta).SprintFunc()
		fmt.Printf("%s: %s - %s ms\n", magenta(category), fmt.Sprintf(msg, args...), magenta(elapsed)) //nolint:forbidigo
		return
	}
	l.Log.WithFields(logrus.Fields{
		"category": category,
		"elapsed":  fmt.Sprintf("%d ms", elapsed),
	}).Logf(level, msg, args...)
}

// SetCategoryFilter sets the category filter from a regular expression.
// An empty expression removes the filter.
func (l *Logger) SetCategoryFilter(filter string) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if filter == "" {
		l.categoryFilter = nil
		return nil
	}
	if l.categoryFilter, err = regexp.Compile(filter); err != nil {
		return fmt.Errorf("invalid category filter %q: %w", filter, err)
	}
	return nil
}

// DebugMode returns true if the underlying logrus logger is set to Debug or higher.
func (l *Logger) DebugMode() bool {
	if l == nil {
		return false
	}
	lg, ok := l.Log.(*logrus.Logger)
	return ok && lg.IsLevelEnabled(logrus.DebugLevel)
}
