package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/shippedbrain/internal/config"
	"github.com/oshokin/shippedbrain/internal/logger"
	"github.com/oshokin/shippedbrain/internal/version"
)

// errUnknownLogLevel is returned for an unrecognized --log-level value.
var errUnknownLogLevel = errors.New("unknown log level")

var (
	// configPath to the configuration YAML file.
	configPath string
	// trackingURI overrides the tracking location from the configuration file.
	trackingURI string
	// logLevel is the minimum level written to stderr.
	logLevel string

	// rootCmd represents the base command when called without any subcommands.
	rootCmd = &cobra.Command{
		Use:   "shippedbrain",
		Short: "Publish tracked model runs to the Shipped Brain platform.",
		Long: `Validates a finished tracking run, packages its logged model together with a
shipped-brain.yaml manifest into a zip archive and uploads the archive to the
hosting platform.

Runs are read from a local mlruns directory or from a tracking server
(--tracking-uri or MLFLOW_TRACKING_URI). Credentials can be passed as flags or
through SHIPPED_BRAIN_EMAIL and SHIPPED_BRAIN_PASSWORD.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("%w: %q", errUnknownLogLevel, logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the shippedbrain CLI and exits with non-zero status on error.
func Execute() {
	defer logger.Sync()

	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&trackingURI, "tracking-uri", "", "mlruns directory or tracking server URL")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newUploadCmd(),
		newPackageCmd(),
		newUnpackCmd(),
		newFlavorsCmd(),
		newConfigureCmd(),
	)
}
