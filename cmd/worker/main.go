// Package main provides the sync worker: fetch help-center articles, detect changes,
// and upload the changed files to the vector store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kbsync/internal/config"
	"kbsync/internal/logger"
	"kbsync/internal/pipeline"
	"kbsync/internal/scheduler"
)

const stopTimeout = 2 * time.Minute

var (
	configFile string
	logLevel   string
	cronSpec   string
	configOut  string
)

var rootCmd = &cobra.Command{
	Use:           "worker",
	Short:         "Incrementally sync a help center into a vector store",
	Long:          `Fetches help-center articles, stores changed ones as Markdown and uploads only the changed files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runOnce,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full scrape and upload job",
	RunE:  runOnce,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the job on a cron schedule until interrupted",
	RunE:  runScheduled,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the resolved configuration as YAML (the API key is omitted)",
	Args:  cobra.NoArgs,
	RunE:  dumpConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	scheduleCmd.Flags().StringVar(&cronSpec, "cron", "", "Override schedule.cron")

	configCmd.Flags().StringVarP(&configOut, "out", "o", "kbsync.yaml", "Output file")

	rootCmd.AddCommand(runCmd, scheduleCmd, configCmd)
}

func setup() (*config.Config, *logger.Logger, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	return cfg, log, nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("🚀 Starting sync job", "source", cfg.ArticlesURL())

	job, closeStore, err := pipeline.Build(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	summary, err := job.Run(ctx)
	if err != nil {
		return err
	}

	summary.Print(cmd.OutOrStdout())

	return nil
}

func runScheduled(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	if cronSpec != "" {
		cfg.Schedule.Cron = cronSpec
	}

	job, closeStore, err := pipeline.Build(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	sched, err := scheduler.New(cfg.Schedule.Cron, func(ctx context.Context) error {
		summary, err := job.Run(ctx)
		if err != nil {
			return err
		}

		summary.Print(cmd.OutOrStdout())

		return nil
	}, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	return sched.Stop(stopCtx)
}

func dumpConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}

	cfg, err := config.Resolve(configFile)
	if err != nil {
		return err
	}

	if err := cfg.SaveConfig(configOut); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", configOut)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
