// Package fsext provides the file system abstraction the devtools command
// reads its configuration from and writes protocol descriptors to.
package fsext

import (
	"os"

	"github.com/spf13/afero"
)

// Fs represents a file system
type Fs = afero.Fs

// NewOsFs returns a Fs backed by the operating system.
func NewOsFs() Fs {
	return afero.NewOsFs()
}

// NewMemMapFs returns a Fs that is in memory
func NewMemMapFs() Fs {
	return afero.NewMemMapFs()
}

// WriteFile writes the provided data to the provided fs in the provided filename
func WriteFile(fs Fs, filename string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(fs, filename, data, perm)
}

// ReadFile reads the whole file from the filesystem
func ReadFile(fs Fs, filename string) ([]byte, error) {
	return afero.ReadFile(fs, filename)
}

// Exists reports whether the named file or directory exists.
func Exists(fs Fs, path string) (bool, error) {
	return afero.Exists(fs, path)
}
