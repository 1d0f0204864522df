package tracking

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/repository/artifact"
)

const (
	// DefaultFileStoreDir is where the tracking library keeps runs by default.
	DefaultFileStoreDir = "mlruns"

	metaFilename    = "meta.yaml"
	tagsDirname     = "tags"
	artifactsDir    = "artifacts"
	trashDirname    = ".trash"
	lifecycleActive = "active"

	dirPermissions  = 0o755
	filePermissions = 0o644
)

// runMeta mirrors the run meta.yaml written by the tracking file store.
type runMeta struct {
	ArtifactURI    string `yaml:"artifact_uri"`
	EndTime        int64  `yaml:"end_time"`
	EntryPointName string `yaml:"entry_point_name"`
	ExperimentID   string `yaml:"experiment_id"`
	LifecycleStage string `yaml:"lifecycle_stage"`
	RunID          string `yaml:"run_id"`
	RunName        string `yaml:"run_name"`
	RunUUID        string `yaml:"run_uuid"`
	SourceName     string `yaml:"source_name"`
	SourceType     int    `yaml:"source_type"`
	SourceVersion  string `yaml:"source_version"`
	StartTime      int64  `yaml:"start_time"`
	Status         int    `yaml:"status"`
	Tags           []any  `yaml:"tags"`
	UserID         string `yaml:"user_id"`
}

// FileStore reads and writes runs in a local mlruns directory.
type FileStore struct {
	// root is the mlruns directory.
	root string
	// mu serializes writes to run metadata.
	mu   sync.Mutex
	opts *options
}

// NewFileStore creates a store over the mlruns directory at root.
func NewFileStore(root string, opts ...Option) *FileStore {
	return &FileStore{
		root: filepath.Clean(root),
		opts: newOptions(opts),
	}
}

// Root returns the mlruns directory.
func (s *FileStore) Root() string {
	return s.root
}

// GetRun loads run metadata and tags from disk.
func (s *FileStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	runDir, err := s.findRunDir(runID)
	if err != nil {
		return nil, err
	}

	meta, err := readMeta(runDir)
	if err != nil {
		return nil, err
	}

	status, err := model.ParseRunStatus(fmt.Sprint(meta.Status))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	tags, err := readTags(filepath.Join(runDir, tagsDirname))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	id := meta.RunID
	if id == "" {
		id = meta.RunUUID
	}

	name := meta.RunName
	if name == "" {
		name = tags[model.TagRunName]
	}

	return &model.Run{
		ID:           id,
		ExperimentID: meta.ExperimentID,
		Name:         name,
		Status:       status,
		ArtifactURI:  meta.ArtifactURI,
		StartTime:    millisToTime(meta.StartTime),
		EndTime:      millisToTime(meta.EndTime),
		Tags:         tags,
	}, nil
}

// CreateRun lays out a new RUNNING run in the experiment directory.
func (s *FileStore) CreateRun(_ context.Context, experimentID string, tags map[string]string) (*model.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if experimentID == "" {
		experimentID = "0"
	}

	runID := strings.ReplaceAll(uuid.NewString(), "-", "")
	runDir := filepath.Join(s.root, experimentID, runID)

	for _, dir := range []string{artifactsDir, "metrics", "params", tagsDirname} {
		if err := os.MkdirAll(filepath.Join(runDir, dir), dirPermissions); err != nil {
			return nil, fmt.Errorf("create run directory: %w", err)
		}
	}

	absArtifacts, err := filepath.Abs(filepath.Join(runDir, artifactsDir))
	if err != nil {
		return nil, err
	}

	artifactURI := (&url.URL{Scheme: "file", Path: filepath.ToSlash(absArtifacts)}).String()
	startTime := s.opts.now()

	meta := &runMeta{
		ArtifactURI:    artifactURI,
		ExperimentID:   experimentID,
		LifecycleStage: lifecycleActive,
		RunID:          runID,
		RunName:        tags[model.TagRunName],
		RunUUID:        runID,
		SourceName:     tags[model.TagSourceName],
		SourceType:     4,
		StartTime:      timeToMillis(startTime),
		Status:         model.RunStatusRunning.Code(),
		Tags:           []any{},
		UserID:         tags[model.TagUser],
	}

	if err = writeMeta(runDir, meta); err != nil {
		return nil, err
	}

	for key, value := range tags {
		if err = writeTag(filepath.Join(runDir, tagsDirname), key, value); err != nil {
			return nil, err
		}
	}

	return &model.Run{
		ID:           runID,
		ExperimentID: experimentID,
		Name:         meta.RunName,
		Status:       model.RunStatusRunning,
		ArtifactURI:  artifactURI,
		StartTime:    millisToTime(meta.StartTime),
		Tags:         maps.Clone(tags),
	}, nil
}

// TerminateRun sets the run status and records the end time.
func (s *FileStore) TerminateRun(_ context.Context, runID string, status model.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runDir, err := s.findRunDir(runID)
	if err != nil {
		return err
	}

	meta, err := readMeta(runDir)
	if err != nil {
		return err
	}

	meta.Status = status.Code()
	meta.EndTime = timeToMillis(s.opts.now())

	return writeMeta(runDir, meta)
}

// Artifacts opens the artifact root of the run.
// Runs copied from another machine keep a stale absolute artifact URI, so a
// missing local root falls back to the artifacts directory next to meta.yaml.
//
//nolint:ireturn // Callers only need the Repository behaviour.
func (s *FileStore) Artifacts(_ context.Context, run *model.Run) (artifact.Repository, error) {
	repo, err := artifact.Open(run.ArtifactURI, s.opts.artifactOptions...)
	if err != nil {
		return nil, err
	}

	local, ok := repo.(*artifact.LocalRepository)
	if !ok {
		return repo, nil
	}

	if _, err = os.Stat(local.Root()); err == nil {
		return repo, nil
	}

	runDir, err := s.findRunDir(run.ID)
	if err != nil {
		return nil, err
	}

	return artifact.NewLocalRepository(filepath.Join(runDir, artifactsDir)), nil
}

// findRunDir locates <root>/<experiment>/<runID> for an active run.
func (s *FileStore) findRunDir(runID string) (string, error) {
	if runID == "" {
		return "", errRunIDRequired
	}

	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}

	experiments, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s (no tracking directory %s)", ErrRunNotFound, runID, s.root)
	} else if err != nil {
		return "", fmt.Errorf("read tracking directory: %w", err)
	}

	for _, experiment := range experiments {
		if !experiment.IsDir() || experiment.Name() == trashDirname {
			continue
		}

		runDir := filepath.Join(s.root, experiment.Name(), runID)
		if _, err = os.Stat(filepath.Join(runDir, metaFilename)); err == nil {
			return runDir, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

func readMeta(runDir string) (*runMeta, error) {
	contents, err := os.ReadFile(filepath.Join(runDir, metaFilename))
	if err != nil {
		return nil, fmt.Errorf("read run metadata: %w", err)
	}

	var meta runMeta
	if err = yaml.Unmarshal(contents, &meta); err != nil {
		return nil, fmt.Errorf("decode run metadata: %w", err)
	}

	return &meta, nil
}

func writeMeta(runDir string, meta *runMeta) error {
	contents, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode run metadata: %w", err)
	}

	if err = os.WriteFile(filepath.Join(runDir, metaFilename), contents, filePermissions); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}

	return nil
}

// readTags reads one file per tag; nested keys ("a/b") live in subdirectories.
func readTags(dir string) (map[string]string, error) {
	tags := make(map[string]string)

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return filepath.SkipDir
			}

			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		value, err := os.ReadFile(filepath.Clean(p))
		if err != nil {
			return fmt.Errorf("read tag %s: %w", rel, err)
		}

		tags[filepath.ToSlash(rel)] = string(value)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return tags, nil
}

func writeTag(dir, key, value string) error {
	path := filepath.Join(dir, filepath.FromSlash(key))
	if !strings.HasPrefix(path, filepath.Clean(dir)+string(filepath.Separator)) {
		return fmt.Errorf("invalid tag key %q", key)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(value), filePermissions); err != nil {
		return fmt.Errorf("write tag %s: %w", key, err)
	}

	return nil
}
