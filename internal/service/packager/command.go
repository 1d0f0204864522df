package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/shippedbrain/internal/config"
	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/logger"
	"github.com/oshokin/shippedbrain/internal/repository/artifact"
	"github.com/oshokin/shippedbrain/internal/repository/tracking"
	"github.com/oshokin/shippedbrain/internal/service/common"
)

// SourceName is recorded on bookkeeping runs as the run source.
const SourceName = "shippedbrain"

// Request holds everything Package needs for one archive.
type Request struct {
	// Store is the tracking store the run lives in.
	Store tracking.Store
	// Run is the validated source run.
	Run *model.Run
	// Model is the publishable model logged under Run.
	Model *model.LoggedModel
	// ModelName is the name the model is published under.
	ModelName string
	// Flavor selects the canonical flavor tag written to the manifest.
	Flavor model.Flavor
	// ScratchDir receives the artifacts, the manifest and the archive.
	ScratchDir string
	// Actor is recorded on the bookkeeping run. Optional.
	Actor *model.Actor
	// Now overrides the clock used for the MLmodel timestamp. Optional.
	Now func() time.Time
}

// Archive is the result of Package.
type Archive struct {
	// Path is the archive location inside the scratch directory.
	Path string
	// Manifest is the manifest packed at the archive root.
	Manifest *model.Manifest
	// BookkeepingRunID is the run the artifacts were re-associated with.
	BookkeepingRunID string
	// Checksum is the hex SHA-256 digest of the archive.
	Checksum string
}

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file.
	ConfigPath string
	// TrackingURI overrides the tracking location from settings.
	TrackingURI string
	// RunID is the source run.
	RunID string
	// ModelName is the name the model will be published under.
	ModelName string
	// Flavor is the requested model flavor, DefaultFlavor when empty.
	Flavor string
	// OutputDir receives a copy of the archive.
	OutputDir string
	// Store overrides the tracking store built from settings.
	Store tracking.Store
}

var (
	// errRequestIncomplete is returned when a Request misses required fields.
	errRequestIncomplete = errors.New("package request is incomplete")
	// errOutputDirRequired is returned when Run has nowhere to put the archive.
	errOutputDirRequired = errors.New("output directory must be provided")
)

// Run validates a run, packages it and copies the archive into opts.OutputDir.
// It returns the path of the copied archive.
func Run(ctx context.Context, opts *Options) (string, error) {
	ctx = logger.WithName(ctx, "packager")

	if opts.OutputDir == "" {
		return "", errOutputDirRequired
	}

	if err := model.ValidateName(opts.ModelName); err != nil {
		return "", err
	}

	flavor, err := model.ParseFlavor(opts.Flavor)
	if err != nil {
		return "", err
	}

	store, err := resolveStore(opts)
	if err != nil {
		return "", err
	}

	run, logged, err := ValidateRun(ctx, store, opts.RunID)
	if err != nil {
		return "", err
	}

	scratch, cleanup, err := common.NewScratchDir(ctx)
	if err != nil {
		return "", err
	}

	defer cleanup()

	archive, err := Package(ctx, &Request{
		Store:      store,
		Run:        run,
		Model:      logged,
		ModelName:  opts.ModelName,
		Flavor:     flavor,
		ScratchDir: scratch,
		Actor:      common.CurrentActor(ctx),
	})
	if err != nil {
		return "", err
	}

	if err = os.MkdirAll(opts.OutputDir, dirPermissions); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	target := filepath.Join(opts.OutputDir, filepath.Base(archive.Path))
	if err = artifact.CopyTree(ctx, archive.Path, target); err != nil {
		return "", fmt.Errorf("copy archive: %w", err)
	}

	logger.InfoKV(ctx, "Archive written", "path", target)

	return target, nil
}

// Package builds the archive described by req inside req.ScratchDir.
func Package(ctx context.Context, req *Request) (*Archive, error) {
	if req.Store == nil || req.Run == nil || req.Model == nil || req.ScratchDir == "" {
		return nil, errRequestIncomplete
	}

	if req.Flavor.Tag() == "" {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedFlavor, req.Flavor)
	}

	now := req.Now
	if now == nil {
		now = time.Now
	}

	ctx = logger.WithKV(ctx, "run_id", req.Run.ID)

	if !req.Model.HasFlavor(req.Flavor) {
		logger.WarnKV(ctx, "Logged model does not declare the requested flavor",
			"flavor", req.Flavor, "tag", req.Flavor.Tag())
	}

	logger.InfoKV(ctx, "Downloading model artifacts", "artifact_path", req.Model.ArtifactPath)

	repo, err := req.Store.Artifacts(ctx, req.Run)
	if err != nil {
		return nil, fmt.Errorf("open run artifacts: %w", err)
	}

	modelDir, err := repo.Download(ctx, req.Model.ArtifactPath, req.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("download model artifacts: %w", err)
	}

	bookkeepingRunID, err := reassociate(ctx, req, modelDir, now())
	if err != nil {
		return nil, err
	}

	manifest := model.NewManifest(req.ModelName, req.Model.ArtifactPath, req.Flavor)
	if _, err = WriteManifest(req.ScratchDir, manifest); err != nil {
		return nil, err
	}

	archivePath, err := Zip(req.ScratchDir)
	if err != nil {
		return nil, err
	}

	checksum, err := Checksum(archivePath)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Model packaged",
		"archive", archivePath,
		"sha256", checksum,
		"model_name", manifest.ModelName,
		"flavor", manifest.Flavor)

	return &Archive{
		Path:             archivePath,
		Manifest:         manifest,
		BookkeepingRunID: bookkeepingRunID,
		Checksum:         checksum,
	}, nil
}

// reassociate starts a bookkeeping run, points the MLmodel at it and logs the
// artifacts under it. The run ends FAILED when any later step fails.
func reassociate(ctx context.Context, req *Request, modelDir string, createdAt time.Time) (_ string, err error) {
	tags := req.Actor.Tags()
	tags[model.TagSourceName] = SourceName
	tags[model.TagSourceRunID] = req.Run.ID

	bookkeeping, err := req.Store.CreateRun(ctx, req.Run.ExperimentID, tags)
	if err != nil {
		return "", fmt.Errorf("start bookkeeping run: %w", err)
	}

	ctx = logger.WithKV(ctx, "bookkeeping_run_id", bookkeeping.ID)
	logger.Info(ctx, "Started bookkeeping run")

	defer func() {
		if err == nil {
			return
		}

		logger.ErrorKV(ctx, "Packaging failed, ending bookkeeping run", "status", model.RunStatusFailed, "error", err)

		// Context may already be canceled, the run still has to be closed.
		termErr := req.Store.TerminateRun(context.WithoutCancel(ctx), bookkeeping.ID, model.RunStatusFailed)
		if termErr != nil {
			logger.WarnKV(ctx, "Failed to end bookkeeping run", "error", termErr)
		}
	}()

	if err = RewriteMLmodel(filepath.Join(modelDir, MLmodelFilename), bookkeeping.ID, createdAt); err != nil {
		return "", err
	}

	bookkeepingRepo, err := req.Store.Artifacts(ctx, bookkeeping)
	if err != nil {
		return "", fmt.Errorf("open bookkeeping run artifacts: %w", err)
	}

	if err = bookkeepingRepo.Upload(ctx, req.ScratchDir, ""); err != nil {
		return "", fmt.Errorf("log artifacts to bookkeeping run: %w", err)
	}

	if err = req.Store.TerminateRun(ctx, bookkeeping.ID, model.RunStatusFinished); err != nil {
		return "", fmt.Errorf("finish bookkeeping run: %w", err)
	}

	return bookkeeping.ID, nil
}

func resolveStore(opts *Options) (tracking.Store, error) {
	if opts.Store != nil {
		return opts.Store, nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.TrackingURI != "" {
		cfg.TrackingURI = opts.TrackingURI
	}

	return OpenStore(cfg)
}

// OpenStore opens the tracking store described by cfg.
//
//nolint:ireturn // Callers only need the Store behaviour.
func OpenStore(cfg *config.Config) (tracking.Store, error) {
	store, err := tracking.Open(cfg.TrackingURI, tracking.WithArtifactOptions(
		artifact.WithS3(artifact.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		}),
	))
	if err != nil {
		return nil, fmt.Errorf("open tracking store: %w", err)
	}

	return store, nil
}
