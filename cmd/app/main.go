package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mission_rewards/pkg/logger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigDir string
	cfg       *Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "missions",
		Short:         "Location mission verification and rewards service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.ConfigDir)
			if err != nil {
				return err
			}
			if err := logger.Initialize(cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", configPath, "directory containing config.yaml")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newIssueCodeCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newGrantRoleCommand(opts))
	cmd.AddCommand(newReviewerTokenCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
