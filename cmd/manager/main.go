// Package main provides the file manager for local article files and vector store files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kbsync/internal/config"
	"kbsync/internal/hashstore"
	"kbsync/internal/logger"
	"kbsync/internal/manager"
	"kbsync/internal/storage"
	"kbsync/internal/vectorstore"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "manager",
	Short:         "Manage synced article files and vector store files",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
			return m.Interactive(ctx, cmd.InOrStdin())
		})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Local article files",
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Files in the configured vector store",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")

	filesCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List local files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd, func(_ context.Context, m *manager.Manager) error {
					_, err := m.ListLocal()
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "delete <file>",
			Short: "Delete one local file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd, func(_ context.Context, m *manager.Manager) error {
					return m.DeleteLocal(args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Check local files against the stored hashes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
					_, err := m.Verify(ctx)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "delete-all",
			Short: "Delete all local files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd, func(_ context.Context, m *manager.Manager) error {
					_, err := m.DeleteAllLocal()
					return err
				})
			},
		},
	)

	indexCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List vector store files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
					_, err := m.ListRemote(ctx)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "delete <file-id>",
			Short: "Delete one vector store file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
					return m.DeleteRemote(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "delete-all",
			Short: "Delete all vector store files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
					_, err := m.DeleteAllRemote(ctx)
					return err
				})
			},
		},
	)

	rootCmd.AddCommand(filesCmd, indexCmd, &cobra.Command{
		Use:   "reset",
		Short: "Clear stored fingerprints so the next run uploads everything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				return m.Reset(ctx)
			})
		},
	})
}

// withManager builds a manager from configuration. The config is not validated, so
// local operations work without an API key; index operations need one.
func withManager(cmd *cobra.Command, fn func(context.Context, *manager.Manager) error) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}

	cfg, err := config.Resolve(configFile)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	hashes, err := hashstore.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = hashes.Close() }()

	opts := manager.Options{
		Articles: storage.NewArticleStore(cfg.DataDir(), cfg.Storage.ArticleExt),
		Hashes:   hashes,
		Logger:   log,
		Out:      cmd.OutOrStdout(),
	}

	if cfg.Index.APIKey != "" {
		opts.Remote = vectorstore.NewFiles(vectorstore.NewOpenAIClient(cfg.Index), log)
		opts.IndexID = cfg.Index.ID
	}

	return fn(cmd.Context(), manager.New(opts))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
