package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/shippedbrain/internal/service/packager"
)

func newPackageCmd() *cobra.Command {
	var (
		flavor    string
		outputDir string
	)

	command := &cobra.Command{
		Use:   "package <run-id> <model-name>",
		Short: "Validate and package the model logged under a run without uploading it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			path, err := packager.Run(ctx, &packager.Options{
				ConfigPath:  configPath,
				TrackingURI: trackingURI,
				RunID:       args[0],
				ModelName:   args[1],
				Flavor:      flavor,
				OutputDir:   outputDir,
			})
			if err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("archive written to %s\n", path))

			return nil
		},
	}

	command.Flags().StringVarP(&flavor, "flavor", "f", "", "model flavor, see the flavors command (default pyfunc)")
	command.Flags().StringVarP(&outputDir, "out", "o", ".", "directory receiving the archive")

	return command
}
