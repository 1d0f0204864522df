// Package trackingtest writes mlruns fixtures laid out like the tracking file store.
package trackingtest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/shippedbrain/internal/domain/model"
)

// MLmodelTime is the utc_time_created written into fixture MLmodel files.
const MLmodelTime = "2021-05-24 17:51:42.123456"

// Run describes a fixture run.
type Run struct {
	// ExperimentID defaults to "0".
	ExperimentID string
	// RunID must be set.
	RunID string
	// Status defaults to FINISHED.
	Status model.RunStatus
	// ArtifactPath defaults to "model".
	ArtifactPath string
	// WithoutSignature drops the signature from the logged model.
	WithoutSignature bool
	// WithoutInputExample drops the input example from the logged model.
	WithoutInputExample bool
	// WithoutHistory omits the log-model history tag.
	WithoutHistory bool
	// Files are extra files relative to the model directory.
	Files map[string]string
}

// MLmodel returns the MLmodel document written for a fixture run.
func MLmodel(runID, artifactPath string) string {
	return fmt.Sprintf(`artifact_path: %s
flavors:
  python_function:
    env: conda.yaml
    loader_module: mlflow.sklearn
    model_path: model.pkl
    python_version: 3.8.10
  sklearn:
    pickled_model: model.pkl
    serialization_format: cloudpickle
    sklearn_version: 0.24.2
run_id: %s
saved_input_example_info:
  artifact_path: input_example.json
  pandas_orient: split
  type: dataframe
signature:
  inputs: '[{"name": "alcohol", "type": "double"}]'
  outputs: '[{"type": "tensor", "tensor-spec": {"dtype": "float64", "shape": [-1]}}]'
utc_time_created: '%s'
`, artifactPath, runID, MLmodelTime)
}

// WriteRun lays out the fixture under root and returns the run directory.
func WriteRun(t testing.TB, root string, r Run) string {
	t.Helper()

	require.NotEmpty(t, r.RunID)

	if r.ExperimentID == "" {
		r.ExperimentID = "0"
	}

	if r.Status == "" {
		r.Status = model.RunStatusFinished
	}

	if r.ArtifactPath == "" {
		r.ArtifactPath = "model"
	}

	runDir := filepath.Join(root, r.ExperimentID, r.RunID)
	artifactsDir, err := filepath.Abs(filepath.Join(runDir, "artifacts"))
	require.NoError(t, err)

	modelDir := filepath.Join(artifactsDir, filepath.FromSlash(r.ArtifactPath))

	files := map[string]string{
		"MLmodel":            MLmodel(r.RunID, r.ArtifactPath),
		"conda.yaml":         "name: mlflow-env\ndependencies:\n  - python=3.8.10\n",
		"model.pkl":          "pickled-model-bytes",
		"input_example.json": `{"columns": ["alcohol"], "data": [[9.4]]}`,
	}
	for name, contents := range r.Files {
		files[name] = contents
	}

	for name, contents := range files {
		path := filepath.Join(modelDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	}

	meta := fmt.Sprintf(`artifact_uri: file://%s
end_time: 1621878702123
entry_point_name: ''
experiment_id: '%s'
lifecycle_stage: active
run_id: %s
run_name: ''
run_uuid: %s
source_name: ''
source_type: 4
source_version: ''
start_time: 1621878700000
status: %d
tags: []
user_id: trainer
`, filepath.ToSlash(artifactsDir), r.ExperimentID, r.RunID, r.RunID, r.Status.Code())
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "meta.yaml"), []byte(meta), 0o600))

	tagsDir := filepath.Join(runDir, "tags")
	require.NoError(t, os.MkdirAll(tagsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tagsDir, model.TagUser), []byte("trainer"), 0o600))

	if !r.WithoutHistory {
		require.NoError(t, os.WriteFile(
			filepath.Join(tagsDir, model.TagLogModelHistory), []byte(History(r)), 0o600))
	}

	return runDir
}

// History renders the log-model history tag for a fixture run.
func History(r Run) string {
	entry := map[string]any{
		"run_id":           r.RunID,
		"artifact_path":    r.ArtifactPath,
		"utc_time_created": MLmodelTime,
		"flavors": map[string]any{
			"python_function": map[string]any{"loader_module": "mlflow.sklearn"},
			"sklearn":         map[string]any{"pickled_model": "model.pkl"},
		},
	}

	if !r.WithoutSignature {
		entry["signature"] = map[string]any{
			"inputs":  `[{"name": "alcohol", "type": "double"}]`,
			"outputs": `[{"type": "tensor"}]`,
		}
	}

	if !r.WithoutInputExample {
		entry["saved_input_example_info"] = map[string]any{
			"artifact_path": "input_example.json",
			"type":          "dataframe",
		}
	}

	data, err := json.Marshal([]any{entry})
	if err != nil {
		panic(err)
	}

	return string(data)
}
