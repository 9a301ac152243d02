package cli

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/config"
	"github.com/dejo1307/docdrift/internal/engine"
	"github.com/dejo1307/docdrift/internal/snapshot"
	"github.com/dejo1307/docdrift/internal/watch"
)

type watchFlags struct {
	debounce    time.Duration
	metricsAddr string
	quiet       bool
}

func newWatchCommand(root *rootFlags) *cobra.Command {
	flags := &watchFlags{}
	cmd := &cobra.Command{
		Use:   "watch [repo]",
		Short: "Re-analyze a repository whenever its files change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, flags, args)
		},
	}
	cmd.Flags().DurationVar(&flags.debounce, "debounce", watch.DefaultDebounce, "quiet period before re-analyzing")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "only print errors")
	return cmd
}

func runWatch(cmd *cobra.Command, root *rootFlags, flags *watchFlags, args []string) error {
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	repo := cfg.Repo
	if len(args) > 0 {
		repo = args[0]
	}
	ctx := cmd.Context()

	r := newRerunner(engine.New(cfg), cfg, repo)
	if !flags.quiet {
		r.out = newPrinter(cmd.OutOrStdout(), root.noColor)
	}
	if flags.metricsAddr != "" {
		m, _, err := serveMetrics(ctx, flags.metricsAddr)
		if err != nil {
			return err
		}
		r.eng.SetMetrics(m)
	}

	w, err := watch.New(repo, watch.Options{Debounce: flags.debounce, Ignore: r.ignore})
	if err != nil {
		return err
	}
	if _, err := r.run(ctx); err != nil {
		var discovery *engine.DiscoveryError
		if errors.As(err, &discovery) {
			return err
		}
		klog.Warningf("[cli] %v", err)
	}
	return w.Run(ctx, func(paths []string) {
		klog.V(1).Infof("[cli] %d paths changed, first %s", len(paths), paths[0])
		if _, err := r.run(ctx); err != nil && ctx.Err() == nil {
			klog.Warningf("[cli] %v", err)
		}
	})
}

// rerunner analyzes a repository and skips runs whose file listing is
// unchanged since the last analysis.
type rerunner struct {
	eng    *engine.Engine
	cfg    *config.Config
	repo   string
	ignore []string
	out    *printer

	last string // fingerprint of the last analyzed listing
}

func newRerunner(eng *engine.Engine, cfg *config.Config, repo string) *rerunner {
	ignore := append([]string(nil), cfg.Ignore...)
	if dir := cfg.Output.Dir; dir != "" && !filepath.IsAbs(dir) {
		ignore = append(ignore, filepath.ToSlash(filepath.Clean(dir))+"/**")
	}
	return &rerunner{eng: eng, cfg: cfg, repo: repo, ignore: ignore}
}

// run reports whether an analysis ran.
func (r *rerunner) run(ctx context.Context) (bool, error) {
	opts := r.cfg.Options
	snap, err := snapshot.Build(ctx, r.repo, snapshot.Options{
		Ignore:      r.ignore,
		MaxFileSize: opts.MaxFileSize(),
		MaxRepoSize: opts.MaxRepoSize(),
		AllowLarge:  opts.AllowLargeRepo,
	})
	if err != nil {
		return false, &engine.DiscoveryError{Path: r.repo, Cause: err}
	}
	fp := snap.Fingerprint()
	if fp == r.last {
		klog.V(1).Infof("[cli] listing unchanged, skipping analysis")
		return false, nil
	}
	r.last = fp

	a, runErr := r.eng.RunFullAnalysis(ctx, r.repo, opts, nil)
	if a == nil {
		return true, runErr
	}
	written, err := r.eng.WriteArtifacts("")
	if r.out != nil {
		r.out.summary(a, written)
	}
	return true, errors.Join(runErr, err)
}
