//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewScratchDir checks that cleanup removes the directory with its contents.
func TestNewScratchDir(t *testing.T) {
	t.Parallel()

	dir, cleanup, err := NewScratchDir(context.Background())
	require.NoError(t, err)
	require.DirExists(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive.zip"), []byte("zip"), 0o600))

	cleanup()

	_, err = os.Stat(dir)
	require.ErrorIs(t, err, os.ErrNotExist)

	// A second cleanup is harmless.
	cleanup()
}
