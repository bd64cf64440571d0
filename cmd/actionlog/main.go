package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coffersTech/actionlog/internal/config"
	"github.com/coffersTech/actionlog/internal/engine"
	"github.com/coffersTech/actionlog/internal/logging"
	"github.com/coffersTech/actionlog/internal/server"
	"github.com/coffersTech/actionlog/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "actionlog",
		Short:         "User-action log server and client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server", serverURL(), "Server URL for client commands")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newClientCommands()...)
	rootCmd.AddCommand(newArchiveCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serverURL() string {
	if v := os.Getenv("ACTIONLOG_SERVER"); v != "" {
		return v
	}
	return "http://127.0.0.1:8088"
}

func newServeCommand() *cobra.Command {
	cfg := config.Default()
	config.FromEnv(&cfg)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the log server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	f.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Directory holding the log files")
	f.StringVar(&cfg.WebDir, "web", cfg.WebDir, "Directory of static dashboard files (optional)")
	f.IntVar(&cfg.RetentionDays, "retention-days", cfg.RetentionDays, "Delete files whose oldest entry is older than this many days (0 disables)")
	f.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Interval between scheduled retention sweeps")
	f.BoolVar(&cfg.SweepOnWrite, "sweep-on-write", cfg.SweepOnWrite, "Run a retention sweep after every save")
	f.StringVar(&cfg.ArchiveDir, "archive", cfg.ArchiveDir, "Compress expired files into this directory before deleting them (optional)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json|console")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		return err
	}

	opts := engine.Options{
		Retention:    cfg.Retention(),
		SweepOnWrite: cfg.SweepOnWrite,
	}
	if cfg.ArchiveDir != "" {
		archiver, err := storage.NewArchiver(cfg.ArchiveDir)
		if err != nil {
			return err
		}
		defer archiver.Close()
		opts.Archiver = archiver
	}

	eng := engine.New(store, opts, logger)
	startup := eng.Bootstrap()
	logger.Info().
		Str("data", store.Root()).
		Int("retention_days", cfg.RetentionDays).
		Int("expired_on_startup", startup.DeletedCount).
		Int("entries", eng.Index().Len()).
		Msg("actionlog started")

	srv := server.NewIngestServer(eng, cfg.WebDir, logging.Component(logger, "http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Addr)
	})
	if cfg.RetentionDays > 0 {
		g.Go(func() error {
			eng.RunCleaner(gctx, cfg.SweepInterval)
			return nil
		})
	}

	err = g.Wait()
	logger.Info().Msg("actionlog stopped")
	return err
}
