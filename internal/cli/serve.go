package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stepbook/pkg/config"
	"github.com/matzehuels/stepbook/pkg/observability"
	"github.com/matzehuels/stepbook/pkg/pipeline"
	"github.com/matzehuels/stepbook/pkg/server"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr      string // listen address
	noMetrics bool   // disable /metrics
}

// serveCommand creates the serve command, which exposes generate, export
// and graph over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversions over HTTP",
		Long: `Serve generate, export and graph over HTTP:

  POST /v1/generate   script body, returns the notebook
  POST /v1/export     notebook body, returns the script
  POST /v1/graph      script or notebook body, returns the cell graph
  GET  /healthz
  GET  /metrics       Prometheus metrics

Settings come from stepbook.toml in the working directory or --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default: "+config.DefaultAddr+")")
	cmd.Flags().BoolVar(&opts.noMetrics, "no-metrics", false, "do not serve /metrics")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts serveOpts) error {
	ctx := cmd.Context()

	cfg, err := c.loadConfig("")
	if err != nil {
		return err
	}
	addr := opts.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if addr == "" {
		addr = config.DefaultAddr
	}

	var metrics *observability.Metrics
	if !opts.noMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(reg)
		metrics.Install()
		defer observability.Reset()
	}

	runner := c.newRunner(ctx, cfg)
	defer runner.Close()

	srv := server.New(server.Options{
		Runner:   runner,
		Logger:   c.Logger,
		Metrics:  metrics,
		Defaults: pipeline.FromConfig(cfg, ""),
	})
	return srv.ListenAndServe(ctx, addr)
}
