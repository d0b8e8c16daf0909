package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kagent-dev/toolchat/pkg/tools"
)

// NewToolsCmd creates the tools command
func NewToolsCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		Long: `List the built-in tools and any command tools declared in the catalog
file configured under tools.catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := tools.NewRegistryFromConfig(opts.config.Tools)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Description", "Parameters"})
			for _, tool := range registry.List() {
				t.AppendRow(table.Row{tool.Name(), tool.Description(), formatParameters(tool.Parameters())})
			}
			t.Render()
			return nil
		},
	}
}

func formatParameters(params []tools.Parameter) string {
	if len(params) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	return strings.Join(parts, ", ")
}
