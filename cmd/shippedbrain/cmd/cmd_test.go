package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/shippedbrain/internal/config"
	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/service/packager"
)

// TestFlavorsCmd lists every flavor with its tag.
func TestFlavorsCmd(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	command := newFlavorsCmd()
	command.SetOut(&out)
	command.SetArgs([]string{})
	require.NoError(t, command.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(model.Flavors())+1)
	require.Contains(t, out.String(), "python_function")
	require.Contains(t, out.String(), "sklearn")
}

// TestResolvePassword prefers the flag, then stdin.
func TestResolvePassword(t *testing.T) {
	t.Parallel()

	command := &cobra.Command{}
	command.SetIn(strings.NewReader("secret\n"))

	password, err := (&uploadOptions{password: "flag"}).resolvePassword(command)
	require.NoError(t, err)
	require.Equal(t, "flag", password)

	password, err = (&uploadOptions{passwordStdin: true}).resolvePassword(command)
	require.NoError(t, err)
	require.Equal(t, "secret", password)

	command.SetIn(strings.NewReader("\n"))
	_, err = (&uploadOptions{passwordStdin: true}).resolvePassword(command)
	require.ErrorIs(t, err, errPasswordRequired)
}

// TestUnpackCmd unpacks an archive and reports the manifest.
func TestUnpackCmd(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	_, err := packager.WriteManifest(src, model.NewManifest("wine-quality", "model", model.FlavorSklearn))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "model"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "model", "MLmodel"), []byte("run_id: R\n"), 0o600))

	archive, err := packager.Zip(src)
	require.NoError(t, err)

	var out bytes.Buffer

	target := t.TempDir()
	command := newUnpackCmd()
	command.SetOut(&out)
	command.SetArgs([]string{archive, target})
	require.NoError(t, command.ExecuteContext(context.Background()))

	require.Contains(t, out.String(), `"wine-quality" (sklearn)`)
	require.FileExists(t, filepath.Join(target, "model", "MLmodel"))

	// An archive without a manifest fails the command.
	bare := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bare, "MLmodel"), []byte("run_id: R\n"), 0o600))

	bareArchive, err := packager.Zip(bare)
	require.NoError(t, err)

	out.Reset()

	command = newUnpackCmd()
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{bareArchive, t.TempDir()})
	require.ErrorIs(t, command.ExecuteContext(context.Background()), os.ErrNotExist)
	require.Empty(t, out.String())
}

// TestPrintColored writes plain text to streams other than stdout.
func TestPrintColored(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	printFailure(&out, "failed\n")
	printSuccess(&out, "done\n")
	require.Equal(t, "failed\ndone\n", out.String())
}

// TestConfigureCmd updates only the flags that were set and keeps the rest of the file.
func TestConfigureCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("login_url: http://localhost:8080/login\n"), 0o600))

	previous := configPath
	configPath = path

	t.Cleanup(func() {
		configPath = previous
	})

	var out bytes.Buffer

	command := newConfigureCmd()
	command.SetOut(&out)
	command.SetArgs([]string{"--email", "user@example.com", "--upload-url", "http://localhost:8080/upload"})
	require.NoError(t, command.ExecuteContext(context.Background()))
	require.Contains(t, out.String(), path)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", cfg.Email)
	require.Equal(t, "http://localhost:8080/login", cfg.LoginURL)
	require.Equal(t, "http://localhost:8080/upload", cfg.UploadURL)
	require.Equal(t, config.DefaultTrackingURI, cfg.TrackingURI)

	// Invalid endpoints are rejected and the file is left as it was.
	command = newConfigureCmd()
	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"--login-url", "/relative"})
	require.Error(t, command.ExecuteContext(context.Background()))

	cfg, err = config.LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/login", cfg.LoginURL)
}
