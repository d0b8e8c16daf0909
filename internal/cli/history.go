package cli

import (
	"encoding/json"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/kagent-dev/toolchat/pkg/store"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <context-id>",
		Short: "Show the messages stored for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(opts.config.Database, opts.log)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			session, err := st.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			messages, err := st.ListMessages(ctx, session.ID)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.SetTitle("Session " + session.ContextID)
			t.AppendHeader(table.Row{"Time", "Role", "Content", "Tool call"})
			for _, m := range messages {
				t.AppendRow(table.Row{
					m.CreatedAt.Format("2006-01-02 15:04:05"),
					m.Role,
					wordwrap.String(m.Content, 60),
					formatToolCall(m),
				})
			}
			t.Render()
			return nil
		},
	}
}

func formatToolCall(m store.Message) string {
	if m.ToolCall == nil {
		return ""
	}
	args, _ := json.Marshal(m.ToolCall.Arguments)
	return m.ToolCall.Name + string(args)
}
