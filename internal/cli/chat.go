package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/kagent-dev/toolchat/pkg/orchestrator"
)

const wrapWidth = 100

// ChatOptions holds flags for the chat command
type ChatOptions struct {
	Message string
	Session string
}

// NewChatCmd creates the chat command
func NewChatCmd(opts *GlobalOptions) *cobra.Command {
	chatOpts := &ChatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a message, or start an interactive session",
		Long: `Send a single message with --message, or start an interactive shell when
no message is given. Messages in one invocation share a session; pass
--session to continue an earlier one.

Examples:
  toolchat chat --message "What time is it?"
  toolchat chat --session my-session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts.config, opts.log)
			if err != nil {
				return err
			}
			defer rt.Close()

			if chatOpts.Session == "" {
				chatOpts.Session = uuid.NewString()
			}
			if chatOpts.Message != "" {
				return sendOnce(cmd.Context(), cmd.OutOrStdout(), rt.orchestrator, chatOpts.Session, chatOpts.Message)
			}
			return runShell(cmd.Context(), rt.orchestrator, chatOpts.Session)
		},
	}

	cmd.Flags().StringVarP(&chatOpts.Message, "message", "m", "", "Message to send")
	cmd.Flags().StringVarP(&chatOpts.Session, "session", "s", "", "Session (context) id to use (default: a new one)")

	return cmd
}

type messageProcessor interface {
	ProcessMessage(ctx context.Context, contextID, text string) (*orchestrator.Result, error)
}

func sendOnce(ctx context.Context, w io.Writer, processor messageProcessor, contextID, text string) error {
	result, err := processor.ProcessMessage(ctx, contextID, text)
	if err != nil {
		return err
	}
	printResult(w, result)
	return nil
}

func runShell(ctx context.Context, processor messageProcessor, contextID string) error {
	shell := ishell.New()
	shell.SetPrompt("you> ")
	shell.Println(color.New(color.Bold).Sprintf("toolchat session %s", contextID))
	shell.Println("Type a message to chat. Commands: session, new, help, exit.")

	shell.AddCmd(&ishell.Cmd{
		Name: "session",
		Help: "print the current session id",
		Func: func(c *ishell.Context) {
			c.Println(contextID)
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "new",
		Help: "start a new session",
		Func: func(c *ishell.Context) {
			contextID = uuid.NewString()
			c.Println("New session " + contextID)
		},
	})

	shell.NotFound(func(c *ishell.Context) {
		text := strings.TrimSpace(strings.Join(c.RawArgs, " "))
		if text == "" {
			return
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " thinking..."
		s.Start()
		result, err := processor.ProcessMessage(ctx, contextID, text)
		s.Stop()

		if err != nil {
			c.Println(color.RedString("error: %v", err))
			return
		}
		var b strings.Builder
		printResult(&b, result)
		c.Print(b.String())
	})

	shell.Run()
	shell.Close()
	return nil
}

func printResult(w io.Writer, result *orchestrator.Result) {
	if call := result.ProposedCall; call != nil {
		args, _ := json.Marshal(call.Arguments)
		fmt.Fprintln(w, color.YellowString("-> %s(%s)", call.Name, args))
	}
	fmt.Fprintln(w, color.CyanString("%s", wordwrap.String(result.FinalText, wrapWidth)))
}
