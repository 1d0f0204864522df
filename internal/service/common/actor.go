//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/logger"
)

// DetectActor gathers host and user information recorded on bookkeeping runs.
func DetectActor() (*model.Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &model.Actor{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}

// CurrentActor is DetectActor for callers that can go on without an actor.
// Detection failures are logged and yield nil.
func CurrentActor(ctx context.Context) *model.Actor {
	actor, err := DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Could not detect current user", "error", err)
		return nil
	}

	return actor
}
