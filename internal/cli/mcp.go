package cli

import (
	"github.com/spf13/cobra"

	"github.com/kagent-dev/toolchat/internal/mcpserver"
	"github.com/kagent-dev/toolchat/pkg/tools"
)

// NewMCPCmd creates the mcp command
func NewMCPCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tool registry over MCP on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the same
tools the chat flow uses. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := tools.NewRegistryFromConfig(opts.config.Tools)
			if err != nil {
				return err
			}
			s := mcpserver.New(registry, tools.NewExecutor(registry, opts.log), opts.log)
			opts.log.Info("Serving MCP on stdio", "tools", len(registry.List()))
			return mcpserver.ServeStdio(s)
		},
	}
}
