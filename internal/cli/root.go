// Package cli implements the toolchat command line.
package cli

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/kagent-dev/toolchat/pkg/config"
	"github.com/kagent-dev/toolchat/pkg/logging"
)

// GlobalOptions holds flags shared by every subcommand.
type GlobalOptions struct {
	ConfigFile string
	LogLevel   string

	config *config.Config
	log    logr.Logger
}

// NewRootCmd creates the toolchat root command
func NewRootCmd() *cobra.Command {
	opts := &GlobalOptions{log: logr.Discard()}

	cmd := &cobra.Command{
		Use:   "toolchat",
		Short: "Chat with a Gemini model that can call local tools",
		Long: `toolchat relays chat messages to Gemini, lets the model propose one tool
call per message, runs the tool locally and returns the model's final answer.

Available subcommands:
  serve       Run the HTTP API
  chat        Send a message, or start an interactive session
  tools       List registered tools
  history     Show the messages stored for a session
  mcp         Serve the tool registry over MCP on stdio
  config      Manage the configuration file

Examples:
  toolchat serve --config toolchat.yaml
  toolchat chat --message "What is 134 + 456?"
  toolchat tools`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipConfig(cmd) {
				return nil
			}
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to configuration file (default: ./toolchat.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewChatCmd(opts))
	cmd.AddCommand(NewToolsCmd(opts))
	cmd.AddCommand(NewHistoryCmd(opts))
	cmd.AddCommand(NewMCPCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))

	return cmd
}

func (o *GlobalOptions) load() error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}

	o.config = cfg
	o.log = log
	return nil
}

// skipConfig reports whether cmd runs without a loaded configuration.
func skipConfig(cmd *cobra.Command) bool {
	return cmd.Annotations["config"] == "skip"
}
