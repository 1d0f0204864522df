package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/shippedbrain/internal/config"
	"github.com/oshokin/shippedbrain/internal/repository/tracking/trackingtest"
	"github.com/oshokin/shippedbrain/internal/service/packager"
)

// TestPackage_DefaultMlruns packages a run from ./mlruns without a settings file.
func TestPackage_DefaultMlruns(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	trackingtest.WriteRun(t, filepath.Join(dir, config.DefaultTrackingURI), trackingtest.Run{
		RunID: "R",
		Files: map[string]string{"data/weights.bin": "weights"},
	})

	t.Chdir(dir)

	path, err := packager.Run(context.Background(), &packager.Options{
		ConfigPath: config.DefaultConfigFilename,
		RunID:      "R",
		ModelName:  "wine-quality",
		OutputDir:  "dist",
	})
	require.NoError(t, err)
	require.Equal(t, "dist", filepath.Dir(path))

	target := filepath.Join(dir, "unpacked")
	require.NoError(t, packager.Unzip(context.Background(), path, target))

	manifest, err := packager.ReadManifest(target)
	require.NoError(t, err)
	require.Equal(t, "python_function", manifest.Flavor)

	contents, err := os.ReadFile(filepath.Join(target, "model", "data", "weights.bin"))
	require.NoError(t, err)
	require.Equal(t, "weights", string(contents))

	// A bookkeeping run was added next to the source run.
	runs, err := os.ReadDir(filepath.Join(dir, config.DefaultTrackingURI, "0"))
	require.NoError(t, err)
	require.Len(t, runs, 2)
}
