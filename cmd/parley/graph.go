package main

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/internal/adapters/file"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [workflow]",
	Short: "Export a workflow as a Mermaid diagram",
	Long:  `Prints a Mermaid flowchart of the workflow. Paste it into a Markdown file or the Mermaid live editor.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		name := cfg.Workflows.Default
		if len(args) > 0 {
			name = args[0]
		}

		g, err := file.New(cfg.Workflows.Dir).Load(context.Background(), name)
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if current, _ := cmd.Flags().GetString("current"); current != "" {
			overlay = &graph.Overlay{CurrentNode: current}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("current", "", "Highlight this node")
}
