package main

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/internal/adapters/file"
	"github.com/aretw0/parley/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workflow...]",
	Short: "Check workflows for consistency",
	Long: `Loads each workflow, crawls it from its start node and reports broken answers,
unreachable nodes and dead ends. Without arguments every workflow in the directory is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runValidate(cmd, file.New(cfg.Workflows.Dir), args)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, catalog *file.Catalog, names []string) error {
	ctx := context.Background()
	if len(names) == 0 {
		var err error
		if names, err = catalog.List(ctx); err != nil {
			return err
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no workflows found")
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, name := range names {
		g, err := catalog.Load(ctx, name)
		if err == nil {
			err = validator.ValidateGraph(g).Err()
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(out, "%s: valid ✅\n", name)
	}
	if failed > 0 {
		return fmt.Errorf("validation failed for %d of %d workflows", failed, len(names))
	}
	return nil
}
