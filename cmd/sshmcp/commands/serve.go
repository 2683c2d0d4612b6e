package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/volkan-m/ssh-mcp-server/internal/conventions"
	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/mcp"
	"github.com/volkan-m/ssh-mcp-server/internal/metrics"
	"github.com/volkan-m/ssh-mcp-server/internal/model"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	version string

	metricsListenAddress string
	disableMetrics       bool
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application, version string) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd, version: version}

	c.Cmd = app.Command("serve", "Serve the SSH tools to an MCP client over stdio.").Default()
	c.Cmd.Flag("metrics-listen-address", "Address of the Prometheus metrics endpoint.").Default(conventions.DefaultMetricsListenAddress).StringVar(&c.metricsListenAddress)
	c.Cmd.Flag("disable-metrics", "Disable the Prometheus metrics endpoint.").BoolVar(&c.disableMetrics)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var recorder metrics.Recorder = metrics.Noop
	registry := prometheus.NewRegistry()
	if !c.disableMetrics {
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	svc, closeGateway, err := c.rootCmd.Gateway(ctx, recorder)
	if err != nil {
		return err
	}
	defer closeGateway()

	// Startup banner, like the checks the operator would run by hand.
	cfg := svc.DescribeConfig()
	logger.WithValues(log.Kv{
		"target":    fmt.Sprintf("%s@%s:%d", cfg.User, cfg.Host, cfg.Port),
		"key":       cfg.PrivateKeyPath,
		"timeout":   cfg.CommandTimeout,
		"allowlist": cfg.PatternCount,
	}).Infof("Starting SSH MCP server")

	if cfg.ConfigError != "" {
		return fmt.Errorf("%s: %w", cfg.ConfigError, model.ErrConfigInvalid)
	}
	logger.Infof("Configuration OK")

	server, err := mcp.NewServer(mcp.ServerConfig{
		Gateway: svc,
		Version: c.version,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create MCP server: %w", err)
	}

	var g run.Group

	// MCP stdio server.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				logger.Infof("MCP server is running on stdio")
				return server.Serve(ctx, c.rootCmd.Stdin, c.rootCmd.Stdout)
			},
			func(_ error) {
				cancel()
				// Unblocks the pending stdin read of the server.
				if closer, ok := c.rootCmd.Stdin.(io.Closer); ok {
					_ = closer.Close()
				}
			},
		)
	}

	// Metrics.
	if !c.disableMetrics {
		mux := http.NewServeMux()
		mux.Handle(conventions.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		httpServer := &http.Server{
			Addr:              c.metricsListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Add(
			func() error {
				logger.Infof("Metrics listening on %s%s", c.metricsListenAddress, conventions.MetricsPath)
				err := httpServer.ListenAndServe()
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(ctx)
			},
		)
	}

	return g.Run()
}
