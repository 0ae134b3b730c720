// cmd/threatscope/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/threatscope/internal/agent"
	"github.com/signalnine/threatscope/internal/collector"
	"github.com/signalnine/threatscope/internal/config"
	"github.com/signalnine/threatscope/internal/logging"
)

var (
	logLevel  string
	logFormat string
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "threatscope",
	Short:         "Log threat analysis: parse, classify, score and alert",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logLevel, logFormat)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Tail a log file and ship new lines to the collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadAgentConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.LogPath == "" || cfg.CollectorURL == "" || cfg.StateFile == "" {
			return fmt.Errorf("config %s: log_path, collector_url and state_file are required", path)
		}
		if cfg.APIKey == "" {
			return fmt.Errorf("THREATSCOPE_API_KEY is not set")
		}
		if err := applyLogConfig(cmd, cfg.Log); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()
		return agent.New(cfg, logger.Named("agent")).Run(ctx)
	},
}

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run the central collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadCollectorConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := applyLogConfig(cmd, cfg.Log); err != nil {
			return err
		}
		if cfg.APIKey == "" {
			logger.Warn("THREATSCOPE_API_KEY is not set, /ingest will reject every agent")
		}

		ctx, cancel := signalContext()
		defer cancel()

		srv, err := collector.NewServer(ctx, cfg, logger.Named("collector"))
		if err != nil {
			return err
		}
		return srv.Run(ctx)
	},
}

// resolveLogSettings prefers explicit flags, then the config file and
// THREATSCOPE_LOG_LEVEL, then the flag defaults.
func resolveLogSettings(cmd *cobra.Command, lc config.LogConfig) (level, format string) {
	flags := cmd.Flags()
	level, _ = flags.GetString("log-level")
	format, _ = flags.GetString("log-format")
	if !flags.Changed("log-level") && lc.Level != "" {
		level = lc.Level
	}
	if !flags.Changed("log-format") && lc.Format != "" {
		format = lc.Format
	}
	return level, format
}

// applyLogConfig rebuilds the root logger once a config file has been read.
func applyLogConfig(cmd *cobra.Command, lc config.LogConfig) error {
	level, format := resolveLogSettings(cmd, lc)
	if level == logLevel && format == logFormat {
		return nil
	}
	l, err := logging.New(level, format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Sync()
	logger = l
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format: console, json")

	agentCmd.Flags().String("config", "/etc/threatscope/agent.yaml", "agent config file")
	collectorCmd.Flags().String("config", "/etc/threatscope/collector.yaml", "collector config file")

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(collectorCmd)
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newHistoryCmd())
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
