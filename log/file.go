package log

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/liuxd6825/devtools/internal/lib/strvals"
	"github.com/liuxd6825/devtools/lib/fsext"
)

// FileHook is a logrus hook writing formatted entries to a file. Entries are
// buffered; Close flushes them.
type FileHook struct {
	path   string
	levels []logrus.Level

	mu sync.Mutex
	w  io.WriteCloser
	bw *bufio.Writer
}

var _ logrus.Hook = &FileHook{}

// FileHookFromConfigLine returns a new FileHook for a configuration line of
// the form `file=<path>[,level=<level>]`. The file is created on fs if it
// doesn't exist and appended to otherwise.
func FileHookFromConfigLine(fs fsext.Fs, line string) (*FileHook, error) {
	hook := &FileHook{levels: logrus.AllLevels}

	if err := hook.parseArgs(line); err != nil {
		return nil, err
	}
	if err := hook.openFile(fs); err != nil {
		return nil, err
	}

	return hook, nil
}

func (h *FileHook) parseArgs(line string) error {
	tokens, err := strvals.Parse(line)
	if err != nil {
		return fmt.Errorf("error while parsing logfile configuration %w", err)
	}
	if len(tokens) == 0 || tokens[0].Key != "file" {
		return fmt.Errorf("logfile configuration should be in the form `file=path-to-local-file` but is `%s`", line)
	}

	for _, token := range tokens {
		switch token.Key {
		case "file":
			if token.Value == "" {
				return errors.New("filepath must not be empty")
			}
			h.path = token.Value
		case "level":
			h.levels, err = parseLevels(token.Value)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown logfile config key %s", token.Key)
		}
	}

	return nil
}

func (h *FileHook) openFile(fs fsext.Fs) error {
	dir := filepath.Dir(h.path)
	if ok, err := fsext.Exists(fs, dir); err != nil || !ok {
		return fmt.Errorf("provided directory '%s' does not exist", dir)
	}

	file, err := fs.OpenFile(h.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open logfile %s: %w", h.path, err)
	}

	h.w = file
	h.bw = bufio.NewWriter(file)
	return nil
}

// Fire writes the formatted entry to the file buffer.
func (h *FileHook) Fire(entry *logrus.Entry) error {
	message, err := entry.Bytes()
	if err != nil {
		return fmt.Errorf("failed to get a log entry bytes: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bw == nil {
		return errors.New("logfile is closed")
	}
	_, err = h.bw.Write(message)
	return err
}

// Levels returns configured log levels.
func (h *FileHook) Levels() []logrus.Level {
	return h.levels
}

// Close flushes the buffered entries and closes the file.
func (h *FileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bw == nil {
		return nil
	}
	err := h.bw.Flush()
	if cerr := h.w.Close(); err == nil {
		err = cerr
	}
	h.bw = nil
	return err
}
