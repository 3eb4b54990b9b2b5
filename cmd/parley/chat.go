package main

import (
	"context"
	"os"

	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a workflow in the terminal",
	Long: `Starts an interactive conversation on Stdin/Stdout.
Pick an option by its number or its text, or type your own question.
Ctrl+C interrupts a streaming reply; "exit" leaves.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if name, _ := cmd.Flags().GetString("workflow"); name != "" {
			cfg.Workflows.Default = name
		}
		logger := newLogger(cfg)

		engine, closer, err := buildEngine(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer closer.Close()

		opts := []runner.Option{
			runner.WithLogger(logger.With("component", "runner")),
			runner.WithMaxInputSize(cfg.Input.MaxSize),
		}
		if id, _ := cmd.Flags().GetString("conversation"); id != "" {
			opts = append(opts, runner.WithConversationID(id))
		}

		fd := int(os.Stdout.Fd())
		if term.IsTerminal(fd) {
			width, _, err := term.GetSize(fd)
			if err != nil || width <= 0 {
				width = 80
			}
			tui.PrintBanner(os.Stdout, cfg.Workflows.Default)
			opts = append(opts, runner.WithRenderer(tui.NewRenderer(width)))
		}

		interrupts, stop := runner.NotifyInterrupts()
		defer stop()
		opts = append(opts, runner.WithInterrupts(interrupts))

		return runner.NewRunner(engine, opts...).Run(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("workflow", "w", "", "Workflow to start with (overrides the config)")
	chatCmd.Flags().String("conversation", "", "Conversation id")
}
