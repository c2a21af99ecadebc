package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/internal/workflows"
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/spf13/cobra"
)

func newReviewCmd(a *app) *cobra.Command {
	var threadID, topic string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Write a post with human feedback",
		Long: `Drafts a post on --topic and asks for feedback after every draft. Type 'done' to finish.
If input ends first, the thread stays parked and a later run with the same --thread picks it up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			compiled, err := workflows.Review(draftWriter)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if threadID == "" {
				threadID = uuid.NewString()
			}

			ctx := a.context(cmd)
			out := cmd.OutOrStdout()
			opts := a.runOptions(threadID)

			var pending *stategraph.PendingInterrupt
			var state stategraph.State

			snap, err := compiled.GetState(ctx, store, threadID)
			switch {
			case err == nil && snap.Pending != nil:
				pending, state = snap.Pending, snap.State
				fmt.Fprintf(out, "Continuing thread %s\n", threadID)
			case err == nil || errors.Is(err, checkpoint.ErrNotFound):
				var input stategraph.Update
				switch {
				case topic != "":
					input = stategraph.Update{workflows.TopicField: topic}
				case err != nil:
					return errors.New("--topic is required for a new review")
				}
				res, err := compiled.Run(ctx, input, opts...)
				if err != nil {
					return err
				}
				pending, state = res.Interrupt, res.State
			default:
				return err
			}

			input := bufio.NewScanner(cmd.InOrStdin())
			for pending != nil {
				var req workflows.ReviewRequest
				if err := pending.Decode(&req); err != nil {
					return fmt.Errorf("decode review request: %w", err)
				}
				fmt.Fprintf(out, "\n[draft]\n%s\n\n%s\n> ", req.GeneratedPost, req.Message)

				if !input.Scan() {
					fmt.Fprintf(out, "\nInput closed; thread %s is waiting for feedback.\n", threadID)
					return input.Err()
				}
				res, err := compiled.Resume(ctx, store, threadID, strings.TrimSpace(input.Text()), opts...)
				if err != nil {
					return err
				}
				pending, state = res.Interrupt, res.State
			}

			fmt.Fprintf(out, "\n[final]\n%s\n", stategraph.Value[string](state, workflows.FinalField))
			return nil
		},
	}

	cmd.Flags().StringVar(&threadID, "thread", "", "Thread ID (new thread when empty)")
	cmd.Flags().StringVar(&topic, "topic", "", "Post topic")
	return cmd
}
