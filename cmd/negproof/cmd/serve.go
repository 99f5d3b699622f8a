package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/negproof/negproof/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the render server for the darkroom UI",
	Long: `Start an HTTP server exposing render, roll and health endpoints
plus a websocket stream for interactive previews. Prometheus metrics are
served on /metrics.

Examples:
  negproof serve
  negproof serve --host 0.0.0.0 --port 9090
  negproof serve --cors-origin https://darkroom.local`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		corsOrigin, _ := cmd.Flags().GetString("cors-origin")

		if host == "" {
			host = cfg.Server.Host
		}
		if port == 0 {
			port = cfg.Server.Port
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		coord := newCoordinator(cfg)
		defer coord.Close()

		srv := server.NewServer(coord, store, server.Config{
			CORSOrigin:  corsOrigin,
			TimeoutSec:  cfg.Server.TimeoutSec,
			PreviewSize: cfg.Render.PreviewSize,
		}, slog.Default())

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.TimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.TimeoutSec) * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("server listening", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig.String())
		case <-cmd.Context().Done():
			slog.Info("shutting down", "reason", "context canceled")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		slog.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("host", "", "listen address (default: from config)")
	serveCmd.Flags().Int("port", 0, "listen port (default: from config)")
	serveCmd.Flags().String("cors-origin", "*", "allowed CORS origin")
	rootCmd.AddCommand(serveCmd)
}
