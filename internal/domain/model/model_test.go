package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateName checks the publish-name rule on accepted and rejected inputs.
func TestValidateName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"Model1", "my-model_2", "wine-quality", "a"} {
		require.NoError(t, ValidateName(name), name)
	}

	for _, name := range []string{"", "1model", "_model", "model name", "-model", "model!", "modèle"} {
		require.ErrorIs(t, ValidateName(name), ErrInvalidModelName, name)
	}
}

// TestParseFlavor verifies the closed flavor set and its canonical tags.
func TestParseFlavor(t *testing.T) {
	t.Parallel()

	f, err := ParseFlavor("sklearn")
	require.NoError(t, err)
	require.Equal(t, FlavorSklearn, f)
	require.Equal(t, "sklearn", f.Tag())

	f, err = ParseFlavor(" PyFunc ")
	require.NoError(t, err)
	require.Equal(t, "python_function", f.Tag())

	f, err = ParseFlavor("")
	require.NoError(t, err)
	require.Equal(t, DefaultFlavor, f)

	_, err = ParseFlavor("onnx")
	require.ErrorIs(t, err, ErrUnsupportedFlavor)

	require.Len(t, Flavors(), 11)
	require.Empty(t, Flavor("onnx").Tag())
}

// TestParseRunStatus covers textual and numeric status forms.
func TestParseRunStatus(t *testing.T) {
	t.Parallel()

	s, err := ParseRunStatus("FINISHED")
	require.NoError(t, err)
	require.True(t, s.IsFinished())

	s, err = ParseRunStatus("3")
	require.NoError(t, err)
	require.Equal(t, RunStatusFinished, s)
	require.Equal(t, 3, s.Code())

	s, err = ParseRunStatus("running")
	require.NoError(t, err)
	require.False(t, s.IsFinished())

	_, err = ParseRunStatus("9")
	require.ErrorIs(t, err, ErrUnknownRunStatus)

	_, err = ParseRunStatus("DONE")
	require.ErrorIs(t, err, ErrUnknownRunStatus)
}

// TestRunLoggedModel decodes the history tag and picks the entry of the run itself.
func TestRunLoggedModel(t *testing.T) {
	t.Parallel()

	run := &Run{
		ID: "abc",
		Tags: map[string]string{
			TagLogModelHistory: `[
				{"run_id": "other", "artifact_path": "old"},
				{"run_id": "abc", "artifact_path": "model", "utc_time_created": "2021-05-24 17:51:42.000001",
				 "flavors": {"python_function": {"loader_module": "mlflow.sklearn"}, "sklearn": {}},
				 "signature": {"inputs": "[]", "outputs": "[]"},
				 "saved_input_example_info": {"artifact_path": "input_example.json", "type": "dataframe"},
				 "model_uuid": "ignored"}
			]`,
		},
	}

	models, err := run.LoggedModels()
	require.NoError(t, err)
	require.Len(t, models, 2)

	m, err := run.LoggedModel()
	require.NoError(t, err)
	require.Equal(t, "model", m.ArtifactPath)
	require.True(t, m.HasSignature())
	require.True(t, m.HasInputExample())
	require.True(t, m.HasFlavor(FlavorSklearn))
	require.True(t, m.HasFlavor(FlavorPyfunc))
	require.False(t, m.HasFlavor(FlavorKeras))
	require.NoError(t, m.Publishable())
}

// TestRunLoggedModel_Errors covers missing entries, malformed tags and unpublishable models.
func TestRunLoggedModel_Errors(t *testing.T) {
	t.Parallel()

	_, err := (&Run{ID: "abc"}).LoggedModel()
	require.ErrorIs(t, err, ErrLoggedModelNotFound)

	_, err = (&Run{ID: "abc", Tags: map[string]string{TagLogModelHistory: "[{'run_id': 'abc'}]"}}).LoggedModel()
	require.Error(t, err)

	m := &LoggedModel{RunID: "abc", ArtifactPath: "model"}
	require.ErrorIs(t, m.Publishable(), ErrMissingSignature)

	m.Signature = map[string]any{"inputs": "[]"}
	require.ErrorIs(t, m.Publishable(), ErrMissingInputExample)
}

// TestNewManifest uses the canonical flavor tag.
func TestNewManifest(t *testing.T) {
	t.Parallel()

	m := NewManifest("wine-quality", "model", FlavorPyfunc)
	require.Equal(t, "wine-quality", m.ModelName)
	require.Equal(t, "model", m.ModelArtifactsPath)
	require.Equal(t, "python_function", m.Flavor)
}

// TestActorTags renders the actor for a bookkeeping run.
func TestActorTags(t *testing.T) {
	t.Parallel()

	require.Empty(t, (*Actor)(nil).Tags())

	tags := (&Actor{Hostname: "host", Username: "user"}).Tags()
	require.Equal(t, "user", tags[TagUser])
	require.Equal(t, "host", tags["mlflow.source.host"])
}
