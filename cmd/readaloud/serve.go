package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/go-readaloud/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read-aloud HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			p, err := buildPipeline(cfg, "", cmd.OutOrStdout())
			if err != nil {
				return err
			}

			srv := server.New(cfg, p).
				WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second).
				WithLogger(slog.Default())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("listening", slog.String("addr", cfg.Server.ListenAddr), slog.String("device", cfg.Playback.Device))
			return srv.Start(ctx)
		},
	}

	return cmd
}
