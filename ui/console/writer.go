// Package console contains the terminal writers of the devtools command.
package console

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Writer syncs writes with a mutex and, if the output is a TTY, clears
// before newlines.
type Writer struct {
	RawOut *os.File
	Mutex  *sync.Mutex
	Writer io.Writer
	IsTTY  bool
}

// IsTerminal reports whether f is an interactive terminal. A TERM of "dumb"
// is never considered one.
func IsTerminal(f *os.File, termType string) bool {
	return termType != "dumb" && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Write writes p to the underlying writer while holding the shared mutex.
func (w *Writer) Write(p []byte) (n int, err error) {
	origLen := len(p)
	if w.IsTTY {
		// Add a TTY code to erase till the end of line with each new line
		p = bytes.ReplaceAll(p, []byte{'\n'}, []byte{'\x1b', '[', '0', 'K', '\n'})
	}

	w.Mutex.Lock()
	n, err = w.Writer.Write(p)
	w.Mutex.Unlock()

	if err != nil && n < origLen {
		return n, err
	}
	return origLen, err
}
