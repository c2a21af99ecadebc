package main

import (
	"bufio"
	"fmt"
	"slices"
	"strings"

	"github.com/randalmurphal/stategraph/internal/workflows"
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/spf13/cobra"
)

var exitWords = []string{"exit", "end"}

func newChatCmd(a *app) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat on a thread with checkpointed memory",
		Long:  `Reads one message per line and replies. The conversation is checkpointed under --thread, so it continues across invocations. Type 'exit' or 'end' to stop.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			compiled, err := workflows.Chatbot(echoClient, nil)
			if err != nil {
				return err
			}
			if _, err := a.openStore(); err != nil {
				return err
			}

			ctx := a.context(cmd)
			out := cmd.OutOrStdout()
			input := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "User: ")
				if !input.Scan() {
					fmt.Fprintln(out)
					return input.Err()
				}
				line := strings.TrimSpace(input.Text())
				if slices.Contains(exitWords, line) {
					return nil
				}
				if line == "" {
					continue
				}

				res, err := compiled.Run(ctx, stategraph.Update{
					workflows.MessagesField: llm.UserMessage(line),
				}, a.runOptions(threadID)...)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "AI: %s\n", workflows.LastReply(res.State))
			}
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "1", "Thread ID")
	return cmd
}
