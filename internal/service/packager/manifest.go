package packager

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/shippedbrain/internal/domain/model"
)

// manifestFileMode is used for the manifest written next to the artifacts.
const manifestFileMode os.FileMode = 0o644

// WriteManifest writes shipped-brain.yaml into dir and returns its path.
func WriteManifest(dir string, manifest *model.Manifest) (string, error) {
	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(dir, model.ManifestFilename)
	if err = os.WriteFile(path, contents, manifestFileMode); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	return path, nil
}

// ReadManifest loads shipped-brain.yaml from dir.
func ReadManifest(dir string) (*model.Manifest, error) {
	contents, err := os.ReadFile(filepath.Join(dir, model.ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest model.Manifest
	if err = yaml.Unmarshal(contents, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &manifest, nil
}
