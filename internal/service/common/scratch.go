//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/shippedbrain/internal/logger"
)

// scratchPattern names scratch directories in the system temp folder.
const scratchPattern = "shippedbrain-*"

// NewScratchDir creates an isolated scratch directory and returns it with its cleanup function.
// Cleanup removes everything inside and only logs a warning when that fails.
func NewScratchDir(ctx context.Context) (string, func(), error) {
	dir, err := os.MkdirTemp("", scratchPattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("create scratch directory: %w", err)
	}

	logger.DebugKV(ctx, "Created scratch directory", "path", dir)

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.WarnKV(ctx, "Could not remove scratch directory", "path", dir, "error", err)
			return
		}

		logger.DebugKV(ctx, "Removed scratch directory", "path", dir)
	}

	return dir, cleanup, nil
}
