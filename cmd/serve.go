package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/assetc/internal/dispatch"
	"github.com/conneroisu/assetc/internal/events"
	"github.com/conneroisu/assetc/internal/metrics"
	"github.com/conneroisu/assetc/internal/server"
	"github.com/conneroisu/assetc/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the destination roots, compiling assets on demand",
	Long: `Start an HTTP server that runs every eligible request through the enabled
backends before serving the destination roots.

Endpoints:
  /healthz        health and build information
  /api/backends   registered backends as JSON
  /metrics        Prometheus metrics (metrics.enabled)
  /ws             WebSocket stream of compile events

Examples:
  assetc serve
  assetc serve --port 3000 --host 0.0.0.0
  assetc serve --tracing`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	fs := serveCmd.Flags()
	fs.IntP("port", "p", 0, "Port to serve on")
	fs.String("host", "", "Host to bind to")
	fs.Bool("static", true, "Serve the destination roots")
	fs.Bool("tracing", false, "Export OpenTelemetry spans to stderr")
	fs.StringSlice("origin", nil, "Allowed WebSocket origin patterns")
	bindFlag(fs, "port", "server.port")
	bindFlag(fs, "host", "server.host")
	bindFlag(fs, "static", "server.static")
	bindFlag(fs, "tracing", "tracing.enabled")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	origins, _ := cmd.Flags().GetStringSlice("origin")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.InitTracer(telemetry.TracerConfig{Output: cmd.ErrOrStderr()}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	hub := events.NewHub(logger, origins...)
	observers := []dispatch.Observer{hub}
	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
		observers = append(observers, recorder)
	}

	a, err := newApp(cfg, cmd.ErrOrStderr(), observers...)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Deps{
		Config:     cfg,
		Registry:   a.registry,
		Dispatcher: a.dispatcher,
		Hub:        hub,
		Metrics:    recorder,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "assetc serving %d root(s) on http://%s\n", len(cfg.Roots), srv.Addr())
	return srv.Start(ctx)
}
