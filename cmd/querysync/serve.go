package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/querysync/pkg/server"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schema to browsers over WebSocket",
		Long: `Start the sync server. Browsers connect to the WebSocket endpoint,
announce their address, and receive pushState/replaceState commands and
state snapshots as the query string changes.

Endpoints:
  /ws          sync sessions (server.wsPath)
  /metrics     Prometheus metrics (server.metricsPath, "-" disables)
  /healthz     health check
  /api/read    GET ?url=...
  /api/patch   POST {"url": ..., "changes": {...}, "mode": ...}

Examples:
  querysync serve
  querysync serve --addr 127.0.0.1:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config)")

	return cmd
}

func runServe(ctx context.Context, flags *globalFlags, addr string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	schema, err := cfg.Schema()
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	readTimeout, err := cfg.ReadTimeout()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	metricsPath := ""
	if cfg.MetricsEnabled() {
		metricsPath = cfg.Server.MetricsPath
	}

	srv, err := server.New(server.Config{
		Schema:         schema,
		Options:        opts,
		Addr:           addr,
		WSPath:         cfg.Server.WSPath,
		MetricsPath:    metricsPath,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    readTimeout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	success("Serving %d keys on %s", schema.Len(), addr)
	info("WebSocket: %s", cfg.Server.WSPath)
	if metricsPath != "" {
		info("Metrics:   %s", metricsPath)
	} else {
		warn("Metrics endpoint disabled")
	}

	return srv.Run(ctx)
}
