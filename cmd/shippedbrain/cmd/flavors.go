package cmd

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/oshokin/shippedbrain/internal/domain/model"
)

func newFlavorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flavors",
		Short: "List supported model flavors and the tag written to the manifest.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			data := make([][]string, 0, len(model.Flavors()))

			for _, f := range model.Flavors() {
				def := ""
				if f == model.DefaultFlavor {
					def = "*"
				}

				data = append(data, []string{f.String(), f.Tag(), def})
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"FLAVOR", "TAG", "DEFAULT"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(data)
			table.Render()
		},
	}
}
