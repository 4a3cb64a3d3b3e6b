package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dataset-m/dsm/internal/handlers"
	"github.com/dataset-m/dsm/internal/logger"
)

func newServeCmd() *cobra.Command {
	var port string
	var root string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the label API for a dataset folder",
		Long: `Starts an HTTP API serving one dataset folder to labelling front ends.

Images, thumbnails and YOLO labels can be listed, read and saved; sessions keep
their own annotation mode (rectangle or polygon) and current image; files can be
moved to and restored from the recycle bin. All paths are relative to --root.`,
		Example: `  # Serve the current folder on the default port 8888
  dsm serve

  # Serve a dataset on a custom port
  dsm serve --root ./photos --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			handler, err := handlers.New(root)
			if err != nil {
				return err
			}

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				logger.S().Infow("Label API available", "root", root, "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				logger.S().Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.S().Errorw("Server shutdown failed", "err", err)
					return err
				}
				logger.S().Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVarP(&root, "root", "r", ".", "Dataset folder to serve")

	return cmd
}
