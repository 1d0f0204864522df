package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/shippedbrain/internal/config"
)

func newConfigureCmd() *cobra.Command {
	var (
		email      string
		loginURL   string
		uploadURL  string
		s3Endpoint string
		s3Region   string
	)

	command := &cobra.Command{
		Use:   "configure",
		Short: "Write endpoints and the account email to the configuration file.",
		Long: `Updates the configuration file given by --config with the flags that were set.
Unset flags keep the value already in the file. Passwords and secret keys are
never written, pass them through the environment or the upload command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}

			flags := cmd.Flags()

			for name, field := range map[string]struct {
				dst   *string
				value string
			}{
				"email":        {&cfg.Email, email},
				"login-url":    {&cfg.LoginURL, loginURL},
				"upload-url":   {&cfg.UploadURL, uploadURL},
				"tracking-uri": {&cfg.TrackingURI, trackingURI},
				"s3-endpoint":  {&cfg.S3.Endpoint, s3Endpoint},
				"s3-region":    {&cfg.S3.Region, s3Region},
			} {
				if flags.Changed(name) {
					*field.dst = field.value
				}
			}

			path := configPath
			if path == "" {
				path = config.DefaultConfigFilename
			}

			if err = config.Save(path, cfg); err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("settings written to %s\n", path))

			return nil
		},
	}

	command.Flags().StringVar(&email, "email", "", "platform account email")
	command.Flags().StringVar(&loginURL, "login-url", "", "platform login endpoint")
	command.Flags().StringVar(&uploadURL, "upload-url", "", "platform upload endpoint")
	command.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "object storage host[:port] for s3:// artifacts")
	command.Flags().StringVar(&s3Region, "s3-region", "", "object storage region")

	return command
}
