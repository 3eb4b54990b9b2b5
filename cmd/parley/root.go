package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/adapters/file"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/openai"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley runs guided conversations backed by a language model",
	Long: `Parley walks users through question workflows defined in JSON or YAML files.
Answers that match an option move the conversation along; anything else is
handed to a language model and the user stays on the current question.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "parley.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("dir", "", "Directory containing the workflow files (overrides the config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides the config)")
}

// loadConfig reads the config file and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Workflows.Dir = dir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.Log.Level))
}

// buildEngine wires the configured adapters into a parley.Engine. The returned closer
// releases the event bus connection.
func buildEngine(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*parley.Engine, io.Closer, error) {
	catalog := file.New(cfg.Workflows.Dir, file.WithLogger(logger.With("component", "catalog")))
	completer := openai.New(openai.Config{
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
		Timeout: cfg.Completion.Timeout,
	}, openai.WithLogger(logger.With("component", "completer")))

	opts := []parley.Option{
		parley.WithCatalog(catalog),
		parley.WithCompleter(completer),
		parley.WithLogger(logger),
		parley.WithDefaultWorkflow(cfg.Workflows.Default),
		parley.WithSystemPrompt(cfg.Completion.SystemPrompt),
	}
	if reg != nil {
		opts = append(opts, parley.WithMetrics(observability.NewMetrics(reg)))
	}

	var closer io.Closer = nopCloser{}
	if cfg.Events.RedisAddr != "" {
		bus := redis.New(cfg.Events.RedisAddr, cfg.Events.RedisPassword, cfg.Events.RedisDB,
			redis.WithLogger(logger.With("component", "events")))
		opts = append(opts, parley.WithEventBus(bus))
		closer = bus
		logger.Info("Publishing events to redis", "addr", cfg.Events.RedisAddr)
	}

	engine, err := parley.New(opts...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("failed to initialize parley: %w", err)
	}
	return engine, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
