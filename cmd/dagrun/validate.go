package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagrun-io/dagrun/internal/application/orchestrator"
)

func validateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow file without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := orchestrator.LoadDefinition(file)
			if err != nil {
				return err
			}

			if errs := orchestrator.ValidateWorkflow(def); len(errs) > 0 {
				for _, e := range errs {
					fmt.Printf("  error: %s\n", e)
				}
				return fmt.Errorf("workflow %s is invalid (%d errors)", def.ID, len(errs))
			}

			fmt.Printf("workflow %s is valid (%d nodes)\n", def.ID, len(def.Nodes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the workflow file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
