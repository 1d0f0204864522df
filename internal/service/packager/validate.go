package packager

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/logger"
	"github.com/oshokin/shippedbrain/internal/repository/tracking"
)

// ErrRunNotFinished is returned for runs that did not complete successfully.
var ErrRunNotFinished = errors.New("run is not finished")

// ValidateRun checks that runID refers to a finished run with a publishable logged model.
// It only reads from the store.
func ValidateRun(ctx context.Context, store tracking.Store, runID string) (*model.Run, *model.LoggedModel, error) {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("get run %q: %w", runID, err)
	}

	if !run.Status.IsFinished() {
		return nil, nil, fmt.Errorf("run %q has status %s: %w", runID, run.Status, ErrRunNotFinished)
	}

	logged, err := run.LoggedModel()
	if err != nil {
		return nil, nil, fmt.Errorf("find logged model: %w", err)
	}

	if err = logged.Publishable(); err != nil {
		return nil, nil, err
	}

	logger.DebugKV(ctx, "Run is publishable",
		"run_id", run.ID,
		"artifact_path", logged.ArtifactPath)

	return run, logged, nil
}
