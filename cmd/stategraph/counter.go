package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/internal/workflows"
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type counterResult struct {
	threadID string
	result   *stategraph.Result
}

func newCounterCmd(a *app) *cobra.Command {
	var limit, threads int

	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Run the counter loop on one or more threads",
		Long:  `Runs increment until count reaches --limit. With --threads N the loop runs on N independent threads concurrently.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 || threads < 1 {
				return fmt.Errorf("--limit and --threads must be positive")
			}
			compiled, err := workflows.Counter(limit)
			if err != nil {
				return err
			}
			if _, err := a.openStore(); err != nil {
				return err
			}

			done := observability.TimedOperation()
			results := make([]counterResult, threads)
			g, gctx := errgroup.WithContext(cmd.Context())
			for i := range threads {
				threadID := "counter-" + uuid.NewString()
				g.Go(func() error {
					ctx := stategraph.NewContext(gctx, stategraph.WithLogger(a.logger))
					res, err := compiled.Run(ctx, nil, a.runOptions(threadID)...)
					if err != nil {
						return fmt.Errorf("thread %s: %w", threadID, err)
					}
					results[i] = counterResult{threadID: threadID, result: res}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				s := r.result.State
				fmt.Fprintf(out, "%s count=%d sum=%d history=%v steps=%d\n",
					r.threadID,
					stategraph.Value[int](s, workflows.CountField),
					stategraph.Value[int](s, workflows.SumField),
					stategraph.Value[[]int](s, workflows.HistoryField),
					r.result.Steps)
			}
			a.logger.Info("counter finished", "threads", threads, "duration_ms", done())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "Stop once count reaches this value")
	cmd.Flags().IntVar(&threads, "threads", 1, "Number of concurrent threads")
	return cmd
}
