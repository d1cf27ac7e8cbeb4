package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/mentorbridge/internal/app"
	"github.com/yungbote/mentorbridge/internal/data/db"
	"github.com/yungbote/mentorbridge/internal/platform/envutil"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mentorbridge",
		Short:         "MentorBridge web BFF",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var port string
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New()
			if err != nil {
				return err
			}
			if port != "" {
				a.Cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.Start()
			errCh := make(chan error, 1)
			go func() { errCh <- a.Run() }()

			select {
			case err := <-errCh:
				a.Close()
				return err
			case <-ctx.Done():
			}

			a.Log.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the draft tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(envutil.String("LOG_MODE", "development"))
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			dbs, err := db.Open(log, db.ConfigFromEnv())
			if err != nil {
				return err
			}
			defer func() { _ = dbs.Close() }()

			if err := db.AutoMigrateAll(dbs.DB()); err != nil {
				return fmt.Errorf("automigrate: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
