package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eleven-am/transcoder/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the transcoder HTTP server.

The server exposes:
- POST /transcodes/{client}/{id} to start a transcode
- GET  /transcodes/{client}/{id}/stream, /index.m3u8 and /{segment}.ts
- POST /transcodes/{client}/{id}/master.m3u8 for the quality ladder
- GET  /metrics for Prometheus`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("address", ":8080", "address to listen on")
	serveCmd.Flags().Bool("hwaccel", false, "use hardware encoders when available")
	mustBindPFlag("server.address", serveCmd.Flags().Lookup("address"))
	mustBindPFlag("ffmpeg.hwaccel", serveCmd.Flags().Lookup("hwaccel"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, err := newController(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}
	if err := ctrl.Start(); err != nil {
		return err
	}

	serveErr := httpapi.NewServer(cfg.Server, ctrl, logger).ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := ctrl.Stop(shutdownCtx); err != nil {
		logger.Warn("transcodes still running at shutdown", slog.Any("error", err))
	}
	return serveErr
}
