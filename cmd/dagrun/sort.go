package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

func sortCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Print a workflow's nodes in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := orchestrator.LoadDefinition(file)
			if err != nil {
				return err
			}

			sorted := orchestrator.TopologicalSort(def.Nodes)
			if len(sorted) < len(def.Nodes) {
				return fmt.Errorf("workflow %s contains a cycle", def.ID)
			}

			for i, id := range sorted {
				fmt.Printf("%3d. %s\n", i+1, id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the workflow file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
