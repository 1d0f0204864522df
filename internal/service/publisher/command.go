package publisher

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/oshokin/shippedbrain/internal/api/platform"
	"github.com/oshokin/shippedbrain/internal/config"
	"github.com/oshokin/shippedbrain/internal/domain/model"
	"github.com/oshokin/shippedbrain/internal/logger"
	"github.com/oshokin/shippedbrain/internal/repository/tracking"
	"github.com/oshokin/shippedbrain/internal/service/common"
	"github.com/oshokin/shippedbrain/internal/service/packager"
)

// Platform is the part of the platform client a publish needs.
type Platform interface {
	Login(ctx context.Context, email, password string) (*platform.Token, error)
	Upload(ctx context.Context, token *platform.Token, archivePath string) (*http.Response, error)
}

// Options configures a single publish.
type Options struct {
	// RunID is the tracked run holding the model.
	RunID string
	// ModelName is the name the model is published under.
	ModelName string
	// Flavor is the requested model flavor, pyfunc when empty.
	Flavor string
	// Email is the platform account email, SHIPPED_BRAIN_EMAIL when empty.
	Email string
	// Password is the platform account password, SHIPPED_BRAIN_PASSWORD when empty.
	Password string
	// ConfigPath is an optional path to the settings file.
	ConfigPath string
	// TrackingURI overrides the tracking location from settings.
	TrackingURI string

	// Config replaces the settings loaded from ConfigPath.
	Config *config.Config
	// Store replaces the tracking store opened from settings.
	Store tracking.Store
	// Platform replaces the platform client built from settings.
	Platform Platform
}

var (
	// ErrMissingEmail is returned when no account email was supplied.
	ErrMissingEmail = errors.New("email is required: pass it explicitly or set " + config.EnvEmail)
	// ErrMissingPassword is returned when no account password was supplied.
	ErrMissingPassword = errors.New("password is required: pass it explicitly or set " + config.EnvPassword)
)

// Run validates, packages and uploads the model logged under opts.RunID.
// The upload response is returned unmodified; the caller closes its body.
//
//nolint:cyclop,funlen // Linear pipeline with a check after every step.
func Run(ctx context.Context, opts *Options) (*http.Response, error) {
	ctx = logger.WithName(ctx, "publisher")

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	email := firstNonEmpty(opts.Email, cfg.Email, os.Getenv(config.EnvEmail))
	if email == "" {
		return nil, ErrMissingEmail
	}

	password := firstNonEmpty(opts.Password, cfg.Password, os.Getenv(config.EnvPassword))
	if password == "" {
		return nil, ErrMissingPassword
	}

	if err := model.ValidateName(opts.ModelName); err != nil {
		return nil, err
	}

	flavor, err := model.ParseFlavor(opts.Flavor)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		if opts.TrackingURI != "" {
			cfg.TrackingURI = opts.TrackingURI
		}

		if store, err = packager.OpenStore(cfg); err != nil {
			return nil, err
		}
	}

	client := opts.Platform
	if client == nil {
		client = platform.NewClient(cfg.LoginURL, cfg.UploadURL)
	}

	ctx = logger.WithKV(ctx, "run_id", opts.RunID, "model_name", opts.ModelName)

	run, logged, err := packager.ValidateRun(ctx, store, opts.RunID)
	if err != nil {
		return nil, err
	}

	scratch, cleanup, err := common.NewScratchDir(ctx)
	if err != nil {
		return nil, err
	}

	defer cleanup()

	archive, err := packager.Package(ctx, &packager.Request{
		Store:      store,
		Run:        run,
		Model:      logged,
		ModelName:  opts.ModelName,
		Flavor:     flavor,
		ScratchDir: scratch,
		Actor:      common.CurrentActor(ctx),
	})
	if err != nil {
		return nil, err
	}

	token, err := client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Logged in")

	response, err := client.Upload(ctx, token, archive.Path)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Upload finished", "status", response.Status, "sha256", archive.Checksum)

	return response, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}

	return ""
}
