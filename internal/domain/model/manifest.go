package model

// ManifestFilename is the name of the manifest placed at the archive root.
const ManifestFilename = "shipped-brain.yaml"

// Manifest describes the published model to the hosting platform.
type Manifest struct {
	// ModelName is the name the model is published under.
	ModelName string `yaml:"model_name"`
	// ModelArtifactsPath is the artifact path of the model inside the source run.
	ModelArtifactsPath string `yaml:"model_artifacts_path"`
	// Flavor is the canonical flavor tag, e.g. "python_function".
	Flavor string `yaml:"flavor"`
}

// NewManifest builds a manifest for the given name, artifact path and flavor.
func NewManifest(modelName, artifactPath string, flavor Flavor) *Manifest {
	return &Manifest{
		ModelName:          modelName,
		ModelArtifactsPath: artifactPath,
		Flavor:             flavor.Tag(),
	}
}
