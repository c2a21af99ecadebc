package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGraphCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:       "graph <workflow>",
		Short:     "Print a workflow as a Mermaid diagram",
		Args:      cobra.ExactArgs(1),
		ValidArgs: catalog().Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			compiled, err := buildWorkflow(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), compiled.Mermaid())
			return nil
		},
	}
}
