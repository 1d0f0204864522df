package packager

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MLmodelFilename is the metadata file at the root of a logged model.
	MLmodelFilename = "MLmodel"

	// MLmodelTimeLayout matches the timestamps written by the tracking library.
	MLmodelTimeLayout = "2006-01-02 15:04:05.000000"

	mlmodelRunIDKey       = "run_id"
	mlmodelTimeCreatedKey = "utc_time_created"
)

var (
	// ErrMissingMLmodel is returned when the downloaded model has no MLmodel file.
	ErrMissingMLmodel = errors.New("model artifacts have no MLmodel file")
	// errMalformedMLmodel is returned when the MLmodel file is not a YAML mapping.
	errMalformedMLmodel = errors.New("MLmodel is not a mapping")
)

// RewriteMLmodel sets run_id and utc_time_created in the MLmodel file at path.
// Every other key keeps its value and position.
func RewriteMLmodel(path, runID string, createdAt time.Time) error {
	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrMissingMLmodel)
	} else if err != nil {
		return fmt.Errorf("read MLmodel: %w", err)
	}

	var doc yaml.Node
	if err = yaml.Unmarshal(contents, &doc); err != nil {
		return fmt.Errorf("decode MLmodel: %w", err)
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%s: %w", path, errMalformedMLmodel)
	}

	root := doc.Content[0]
	setMappingString(root, mlmodelRunIDKey, runID)
	setMappingString(root, mlmodelTimeCreatedKey, createdAt.UTC().Format(MLmodelTimeLayout))

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode MLmodel: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), out, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write MLmodel: %w", err)
	}

	return nil
}

// setMappingString replaces the value of key in a mapping node, appending the pair if absent.
func setMappingString(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
			return
		}
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}
