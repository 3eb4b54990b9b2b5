package main

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/internal/adapters/file"
	"github.com/spf13/cobra"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List the available workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		names, err := file.New(cfg.Workflows.Dir).List(context.Background())
		if err != nil {
			return err
		}
		for _, name := range names {
			marker := " "
			if name == cfg.Workflows.Default {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workflowsCmd)
}
