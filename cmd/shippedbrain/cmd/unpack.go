package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/shippedbrain/internal/service/packager"
)

func newUnpackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <archive> <target-dir>",
		Short: "Unpack an archive produced by the package command.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := packager.Unzip(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			manifest, err := packager.ReadManifest(args[1])
			if err != nil {
				return fmt.Errorf("unpacked %s: %w", args[0], err)
			}

			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("unpacked model %q (%s) from %s\n",
				manifest.ModelName, manifest.Flavor, manifest.ModelArtifactsPath))

			return nil
		},
	}
}
