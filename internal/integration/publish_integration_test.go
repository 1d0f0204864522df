package integration

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/shippedbrain/internal/config"
	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/service/packager"
	"github.com/oshokin/shippedbrain/internal/service/publisher"
)

// clearEnv removes overrides that would redirect a test away from its fake servers.
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		config.EnvEmail,
		config.EnvPassword,
		config.EnvLoginURL,
		config.EnvUploadURL,
		config.EnvTrackingURI,
	} {
		t.Setenv(key, "")
	}
}

// TestPublish_TrackingServer publishes a run stored on a tracking server through a settings file.
func TestPublish_TrackingServer(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvPassword, "p")

	fake, server := newFakeServer(t)

	cfgPath := filepath.Join(t.TempDir(), "shippedbrain.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		LoginURL:    server.URL + "/login",
		UploadURL:   server.URL + "/upload",
		TrackingURI: server.URL,
		Email:       "user@x",
	}))

	response, err := publisher.Run(context.Background(), &publisher.Options{
		RunID:      "R",
		ModelName:  "wine-quality",
		Flavor:     "sklearn",
		ConfigPath: cfgPath,
	})
	require.NoError(t, err)

	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, response.StatusCode)
	require.JSONEq(t, `{"status":"queued"}`, string(body))

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Equal(t, 1, fake.uploads)
	require.Equal(t, "Bearer T", fake.authorization)

	// The bookkeeping run is finished and holds the re-associated model.
	bookkeeping, ok := fake.runs["B1"]
	require.True(t, ok)
	require.Equal(t, string(model.RunStatusFinished), bookkeeping.Status)
	require.Equal(t, "R", bookkeeping.Tags[model.TagSourceRunID])
	require.Contains(t, string(fake.files["0/B1/artifacts/model/MLmodel"]), "run_id: B1")
	require.Equal(t, []byte("weights"), fake.files["0/B1/artifacts/model/data/weights.bin"])

	// The source run is left as it was.
	require.Contains(t, string(fake.files["0/R/artifacts/model/MLmodel"]), "run_id: R")

	archive := filepath.Join(t.TempDir(), "uploaded.zip")
	require.NoError(t, os.WriteFile(archive, fake.uploaded, 0o600))

	unpacked := t.TempDir()
	require.NoError(t, packager.Unzip(context.Background(), archive, unpacked))

	manifest, err := packager.ReadManifest(unpacked)
	require.NoError(t, err)
	require.Equal(t, "wine-quality", manifest.ModelName)
	require.Equal(t, "sklearn", manifest.Flavor)
	require.Equal(t, "model", manifest.ModelArtifactsPath)
	require.FileExists(t, filepath.Join(unpacked, "model", "data", "weights.bin"))
}

// TestPublish_UnknownRunOnServer stops before logging in.
func TestPublish_UnknownRunOnServer(t *testing.T) {
	clearEnv(t)

	fake, server := newFakeServer(t)

	_, err := publisher.Run(context.Background(), &publisher.Options{
		RunID:       "missing",
		ModelName:   "wine-quality",
		Email:       "user@x",
		Password:    "p",
		TrackingURI: server.URL,
		Config: &config.Config{
			LoginURL:  server.URL + "/login",
			UploadURL: server.URL + "/upload",
		},
	})
	require.Error(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()

	require.Zero(t, fake.uploads)
}
