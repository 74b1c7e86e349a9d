package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hkhalifa/versemind/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the versemind API server",
	Long: `Starts the REST API server: document upload and management,
background ingestion with live progress over websockets, and hybrid
search.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		embedder, err := newEmbedder(cfg)
		if err != nil {
			return err
		}
		provider := newProvider(cfg)

		database, vectors, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		srv, err := server.New(cfg, database, vectors, embedder, provider)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			fmt.Fprintf(os.Stderr, "received %s, shutting down\n", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
