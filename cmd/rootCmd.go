package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/routelab/routelab/pkg/logger"
	"github.com/routelab/routelab/pkg/orchestrator"
	"github.com/routelab/routelab/pkg/runtime"
)

// timePrecision rounds durations in human-facing output.
const timePrecision = 10 * time.Millisecond

var (
	verbose     bool
	routerImage string
	metricsAddr string
	opTimeout   time.Duration

	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "routelab",
	Short:         "routelab drives containerized routing topologies",
	Long:          "A command-line tool for declaring, converging and exercising containerized FRR topologies.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logger.New(verbose)
		if metricsAddr != "" {
			serveMetrics(metricsAddr)
		}
	},
}

// Execute runs the CLI and returns the process exit code. Scenario runs
// surface their own codes (0 pass, 1 assertion failure, 2 infrastructure
// error); everything else maps errors to 2.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code, ok := err.(exitErr); ok {
			return int(code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}
	return 0
}

// exitErr carries a scenario exit code through cobra's error return
// without printing it as an error.
type exitErr int

func (e exitErr) Error() string { return fmt.Sprintf("exit code %d", int(e)) }

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
	log.Info("serving metrics", "addr", addr)
}

func newRuntime(ctx context.Context) (*runtime.DockerRuntime, error) {
	return runtime.NewDocker(ctx, runtime.DockerConfig{
		Logger:    log,
		Image:     routerImage,
		OpTimeout: opTimeout,
	})
}

func newOrchestrator(rt runtime.Runtime, prune bool) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(orchestrator.Config{
		Logger:         log,
		Runtime:        rt,
		PruneUnmanaged: prune,
	})
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&routerImage, "image", "", "Router container image (default quay.io/frrouting/frr:9.1.0)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().DurationVar(&opTimeout, "op-timeout", 0, "Timeout for individual container runtime operations")
}
