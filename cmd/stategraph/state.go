package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/spf13/cobra"
)

type stateView struct {
	ThreadID string           `json:"thread_id"`
	NodeID   string           `json:"node_id"`
	NextNode string           `json:"next_node"`
	Sequence int              `json:"sequence"`
	Time     time.Time        `json:"time"`
	Finished bool             `json:"finished"`
	Pending  json.RawMessage  `json:"pending,omitempty"`
	State    stategraph.State `json:"state"`
}

type historyView struct {
	Sequence int    `json:"sequence"`
	NodeID   string `json:"node_id"`
	NextNode string `json:"next_node"`
	Size     int64  `json:"size"`
	Pending  bool   `json:"pending"`
}

func newStateCmd(a *app) *cobra.Command {
	var workflow, threadID string
	var history bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the latest checkpoint of a thread",
		Long:  `Prints the thread's latest checkpoint as JSON, decoded with the fields of --workflow. With --history, lists every checkpoint instead.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if threadID == "" {
				return fmt.Errorf("--thread is required")
			}
			compiled, err := buildWorkflow(workflow)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if history {
				infos, err := store.List(cmd.Context(), threadID)
				if err != nil {
					return err
				}
				views := make([]historyView, len(infos))
				for i, info := range infos {
					views[i] = historyView{
						Sequence: info.Sequence,
						NodeID:   info.NodeID,
						NextNode: info.NextNode,
						Size:     info.Size,
						Pending:  info.Pending,
					}
				}
				return enc.Encode(views)
			}

			snap, err := compiled.GetState(cmd.Context(), store, threadID)
			if err != nil {
				return fmt.Errorf("thread %s: %w", threadID, err)
			}
			view := stateView{
				ThreadID: snap.ThreadID,
				NodeID:   snap.NodeID,
				NextNode: snap.NextNode,
				Sequence: snap.Sequence,
				Time:     snap.Time,
				Finished: snap.Finished(),
				State:    snap.State,
			}
			if snap.Pending != nil {
				view.Pending = snap.Pending.Payload
			}
			return enc.Encode(view)
		},
	}

	cmd.Flags().StringVar(&workflow, "workflow", "chat", "Workflow the thread belongs to")
	cmd.Flags().StringVar(&threadID, "thread", "", "Thread ID")
	cmd.Flags().BoolVar(&history, "history", false, "List every checkpoint")
	return cmd
}
