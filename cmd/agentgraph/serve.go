package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/http"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the task, thread, project and tool endpoints over HTTP.

Examples:
  # Serve on the configured address (default 127.0.0.1:9090)
  agentgraph serve

  # Submit a task
  curl -X POST localhost:9090/api/v1/tasks -d '{"task":"Check Go version","project":"mycli"}' \
    -H 'Content-Type: application/json'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root, host, port)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.http_port)")
	return cmd
}

// runServe blocks until ctx is cancelled, then shuts the server down
// within server.shutdown_timeout.
func runServe(ctx context.Context, root *rootOptions, host string, port int) error {
	a, err := newApp(ctx, appOptions{configPath: root.configPath})
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := &http.Config{Host: a.cfg.Server.Host, Port: a.cfg.Server.Port, Version: version}
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}

	srv, err := http.NewServer(http.Deps{
		Runner:   a.runner,
		Threads:  a.graph,
		Projects: a.projects,
		Tools:    a.tools,
		Metrics:  a.metrics,
	}, a.logger.Underlying(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error(shutdownCtx, "http server shutdown failed", zap.Error(err))
		return err
	}
	<-errCh
	return nil
}
