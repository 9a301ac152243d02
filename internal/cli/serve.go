package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/config"
	"github.com/dejo1307/docdrift/internal/engine"
	"github.com/dejo1307/docdrift/internal/renderers/jsonexport"
	"github.com/dejo1307/docdrift/internal/server"
	"github.com/dejo1307/docdrift/internal/telemetry"
)

func newServeCommand(root *rootFlags) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve [repo]",
		Short: "Serve analyses over MCP on stdio",
		Long: `Serve starts an MCP server on stdin/stdout. An analysis.json left by an
earlier run is loaded at startup so its prompts can be queried immediately.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Repo = args[0]
			}

			eng := engine.New(cfg)
			if metricsAddr != "" {
				m, _, err := serveMetrics(cmd.Context(), metricsAddr)
				if err != nil {
					return err
				}
				eng.SetMetrics(m)
			}
			loadPrevious(cmd.Context(), eng, cfg)

			srv, err := server.New(eng, cfg)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

// loadPrevious restores the analysis a previous run left in the output directory.
func loadPrevious(ctx context.Context, eng *engine.Engine, cfg *config.Config) {
	dir := cfg.Output.Dir
	if !filepath.IsAbs(dir) {
		repo, err := filepath.Abs(cfg.Repo)
		if err != nil {
			return
		}
		dir = filepath.Join(repo, dir)
	}
	path := filepath.Join(dir, jsonexport.AnalysisArtifact)
	if _, err := os.Stat(path); err != nil {
		return
	}
	klog.Infof("[cli] loading existing analysis from %s", path)
	if _, err := eng.LoadAnalysis(ctx, path); err != nil {
		klog.Warningf("[cli] failed to load existing analysis: %v", err)
	}
}

// serveMetrics exposes a fresh registry on addr until ctx is done and
// returns the address it listens on.
func serveMetrics(ctx context.Context, addr string) (*telemetry.Metrics, net.Addr, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := telemetry.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	go func() {
		klog.Infof("[cli] serving metrics on %s/metrics", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Errorf("[cli] metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return m, ln.Addr(), nil
}
