package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/adapter/api"
)

var (
	serveAddr       string
	serveWithWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. With --with-worker the reminder dispatcher and
sweeper run in the same process, which suits single-node SQLite setups.

Examples:
  cadence serve
  cadence serve --addr 127.0.0.1:9090 --with-worker`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := MustApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		cfg := api.DefaultServerConfig()
		cfg.Addr = c.Config.APIAddr
		if serveAddr != "" {
			cfg.Addr = serveAddr
		}
		server := api.NewServer(cfg, api.NewDeps(c), c.Health, c.Logger)

		if serveWithWorker {
			if err := c.Sweeper.Start(ctx); err != nil {
				return err
			}
			if err := c.Dispatcher.Start(ctx); err != nil {
				return err
			}
		}

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start() }()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from API_ADDR)")
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false, "also run the reminder dispatcher and sweeper")
	rootCmd.AddCommand(serveCmd)
}
