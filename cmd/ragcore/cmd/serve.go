package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relevant-segments/ragcore/internal/httpapi"
	"github.com/relevant-segments/ragcore/internal/logging"
	"github.com/relevant-segments/ragcore/internal/mcp"
	"github.com/relevant-segments/ragcore/internal/metrics"
)

func newServeCmd() *cobra.Command {
	var transport string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge base over MCP or HTTP",
		Long: `Serve the knowledge base to clients.

Transports:
  stdio  MCP over stdio, for AI clients like Claude Code (default)
  http   JSON over HTTP: POST /v1/query, plus /healthz and /metrics`,
		Example: `  # MCP server for AI clients
  ragcore serve

  # HTTP API with Prometheus metrics
  ragcore serve --transport http --addr 127.0.0.1:8765`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, addr)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "Transport: stdio or http (default from config)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")

	return cmd
}

func runServe(ctx context.Context, transport, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	if transport == "" {
		transport = stack.cfg.Server.Transport
	}
	if addr == "" {
		addr = stack.cfg.Server.Addr
	}

	switch transport {
	case "stdio":
		// The MCP protocol owns stdout exclusively; logs go to file only.
		if cleanup, err := logging.SetupMCPMode(); err == nil {
			defer cleanup()
		}

		server, err := mcp.NewServer(stack.kb, stack.engine, stack.metadata, stack.embedder, stack.cfg)
		if err != nil {
			return err
		}
		server.SetMetrics(stack.metrics)
		if err := server.RegisterResources(ctx); err != nil {
			slog.Warn("resource registration failed", slog.String("error", err.Error()))
		}
		return server.Serve(ctx, "stdio")

	case "http":
		prom := metrics.New()
		server, err := httpapi.NewServer(stack.kb, prom, httpapi.Config{Addr: addr})
		if err != nil {
			return err
		}
		return server.ListenAndServe(ctx)

	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, http)", transport)
	}
}
