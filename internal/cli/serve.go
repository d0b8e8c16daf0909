package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kagent-dev/toolchat/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command
func NewServeCmd(opts *GlobalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the chat HTTP API and the prometheus metrics endpoint.

The server stops gracefully on SIGINT or SIGTERM.

Examples:
  toolchat serve
  toolchat serve --config toolchat.yaml --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				opts.config.Server.Port = port
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override the configured listen port")

	return cmd
}

func runServe(ctx context.Context, opts *GlobalOptions) error {
	cfg, log := opts.config, opts.log

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	api := httpapi.NewServer(cfg.Server, cfg.Metrics, rt.orchestrator, rt.store, rt.registerer, log)
	srv := api.HTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", srv.Addr, "model", rt.gateway.ModelName(), "tools", len(rt.registry.List()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Shutdown complete")
	return nil
}
