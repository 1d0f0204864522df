package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// RunStatus is the lifecycle status of a tracked run.
type RunStatus string

// Known run statuses.
const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusScheduled RunStatus = "SCHEDULED"
	RunStatusFinished  RunStatus = "FINISHED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusKilled    RunStatus = "KILLED"
)

// Well-known run tags.
const (
	// TagLogModelHistory holds the JSON list of models logged under a run.
	TagLogModelHistory = "mlflow.log-model.history"
	// TagSourceName records what created a run.
	TagSourceName = "mlflow.source.name"
	// TagUser records who created a run.
	TagUser = "mlflow.user"
	// TagRunName holds the display name of a run.
	TagRunName = "mlflow.runName"
	// TagSourceRunID links a bookkeeping run to the run it was packaged from.
	TagSourceRunID = "shippedbrain.source_run_id"
)

var (
	// ErrUnknownRunStatus is returned when a status cannot be parsed.
	ErrUnknownRunStatus = errors.New("unknown run status")
	// ErrLoggedModelNotFound is returned when a run has no model logged under its own id.
	ErrLoggedModelNotFound = errors.New("logged model not found")
	// ErrMissingSignature is returned when a logged model carries no signature.
	ErrMissingSignature = errors.New("logged model has no signature")
	// ErrMissingInputExample is returned when a logged model carries no saved input example.
	ErrMissingInputExample = errors.New("logged model has no input example")
)

// runStatusByCode follows the numbering used by the tracking file store.
//
//nolint:gochecknoglobals // Read-only lookup table.
var runStatusByCode = map[int]RunStatus{
	1: RunStatusRunning,
	2: RunStatusScheduled,
	3: RunStatusFinished,
	4: RunStatusFailed,
	5: RunStatusKilled,
}

// ParseRunStatus accepts both the textual form ("FINISHED") and the numeric file store form ("3").
func ParseRunStatus(s string) (RunStatus, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	if code, err := strconv.Atoi(s); err == nil {
		if status, ok := runStatusByCode[code]; ok {
			return status, nil
		}

		return "", fmt.Errorf("%w: %d", ErrUnknownRunStatus, code)
	}

	for _, status := range runStatusByCode {
		if string(status) == s {
			return status, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownRunStatus, s)
}

// Code returns the numeric file store form of the status, or 0 when unknown.
func (s RunStatus) Code() int {
	for code, status := range runStatusByCode {
		if status == s {
			return code
		}
	}

	return 0
}

// IsFinished reports whether the run completed successfully.
func (s RunStatus) IsFinished() bool {
	return s == RunStatusFinished
}

// Run is one recorded execution of a training procedure.
type Run struct {
	// ID is the tracking system identifier of the run.
	ID string
	// ExperimentID is the experiment the run belongs to.
	ExperimentID string
	// Name is the display name of the run.
	Name string
	// Status is the lifecycle status of the run.
	Status RunStatus
	// ArtifactURI is the root location of the run artifacts.
	ArtifactURI string
	// StartTime is when the run started.
	StartTime time.Time
	// EndTime is when the run ended, zero while running.
	EndTime time.Time
	// Tags are the run tags keyed by name.
	Tags map[string]string
}

// LoggedModels decodes the log-model history tag of the run.
// The tag is treated as strict JSON; a missing tag yields an empty list.
func (r *Run) LoggedModels() ([]*LoggedModel, error) {
	raw, ok := r.Tags[TagLogModelHistory]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode %s tag: %w", TagLogModelHistory, err)
	}

	models := make([]*LoggedModel, 0, len(entries))

	for i, entry := range entries {
		var m LoggedModel
		if err := mapstructure.Decode(entry, &m); err != nil {
			return nil, fmt.Errorf("decode logged model #%d: %w", i, err)
		}

		models = append(models, &m)
	}

	return models, nil
}

// LoggedModel returns the model that was logged under the run's own id.
func (r *Run) LoggedModel() (*LoggedModel, error) {
	models, err := r.LoggedModels()
	if err != nil {
		return nil, err
	}

	for _, m := range models {
		if m.RunID == r.ID {
			return m, nil
		}
	}

	return nil, fmt.Errorf("run %s: %w", r.ID, ErrLoggedModelNotFound)
}

// LoggedModel is the metadata of a model logged under a run.
type LoggedModel struct {
	// RunID is the run the model was logged under.
	RunID string `mapstructure:"run_id"`
	// ArtifactPath is the model directory relative to the run artifact root.
	ArtifactPath string `mapstructure:"artifact_path"`
	// UTCTimeCreated is the creation timestamp as written by the tracking library.
	UTCTimeCreated string `mapstructure:"utc_time_created"`
	// Flavors holds per-flavor configuration keyed by flavor tag.
	Flavors map[string]any `mapstructure:"flavors"`
	// Signature is the declared input/output schema.
	Signature map[string]any `mapstructure:"signature"`
	// SavedInputExampleInfo describes the stored input example.
	SavedInputExampleInfo map[string]any `mapstructure:"saved_input_example_info"`
}

// HasSignature reports whether the model was logged with a signature.
func (m *LoggedModel) HasSignature() bool {
	return len(m.Signature) > 0
}

// HasInputExample reports whether the model was logged with an input example.
func (m *LoggedModel) HasInputExample() bool {
	return len(m.SavedInputExampleInfo) > 0
}

// HasFlavor reports whether the model declares the given flavor.
func (m *LoggedModel) HasFlavor(f Flavor) bool {
	_, ok := m.Flavors[f.Tag()]
	return ok
}

// Publishable checks that the model carries everything the hosting platform needs.
func (m *LoggedModel) Publishable() error {
	if !m.HasSignature() {
		return fmt.Errorf("run %s, artifact path %q: %w; log the model with a signature",
			m.RunID, m.ArtifactPath, ErrMissingSignature)
	}

	if !m.HasInputExample() {
		return fmt.Errorf("run %s, artifact path %q: %w; log the model with an input example",
			m.RunID, m.ArtifactPath, ErrMissingInputExample)
	}

	return nil
}
