package testutils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/devtools/lib/fsext"
)

// MakeMemMapFs creates a new in-memory filesystem holding the given files,
// keyed by path.
func MakeMemMapFs(t testing.TB, withFiles map[string][]byte) fsext.Fs {
	fs := fsext.NewMemMapFs()

	for path, data := range withFiles {
		require.NoError(t, fsext.WriteFile(fs, path, data, 0o644))
	}

	return fs
}
