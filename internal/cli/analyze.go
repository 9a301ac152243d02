package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dejo1307/docdrift/internal/config"
	"github.com/dejo1307/docdrift/internal/engine"
	"github.com/dejo1307/docdrift/internal/renderers/jsonexport"
	"github.com/dejo1307/docdrift/internal/renderers/promptmd"
)

// Output formats accepted by --format.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatBoth     = "both"
)

type analyzeFlags struct {
	outputDir  string
	format     string
	strict     bool
	noValidate bool
	allowLarge bool
	timeout    time.Duration
	workers    int
	quiet      bool
}

func newAnalyzeCommand(root *rootFlags) *cobra.Command {
	flags := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze [repo]",
		Short: "Analyze a repository and write the drift report and review prompts",
		Long: `Analyze reads the documentation and code of a repository, validates the
documentation's claims and writes review_prompts.md plus the JSON exports to
the output directory (.docdrift under the repository by default).

Exit status is 2 when --strict is set and critical drift is found, and 3 when
the analysis times out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, flags, args)
		},
	}
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "directory for the artifacts (default <repo>/.docdrift)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", FormatBoth, "artifacts to write: markdown, json or both")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "fail when critical documentation drift is found")
	cmd.Flags().BoolVar(&flags.noValidate, "no-validate", false, "skip claim validation")
	cmd.Flags().BoolVar(&flags.allowLarge, "allow-large-repo", false, "analyze repositories above the size limit")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "overall analysis timeout (default from config)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "parallel sub-analyzers (default from config)")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "only print errors")
	return cmd
}

// apply overlays the command line on the loaded config.
func (f *analyzeFlags) apply(cfg *config.Config) error {
	switch f.format {
	case FormatMarkdown:
		cfg.Renderers = []string{promptmd.New(0).Name()}
	case FormatJSON:
		cfg.Renderers = []string{jsonexport.New().Name()}
	case FormatBoth:
		cfg.Renderers = []string{promptmd.New(0).Name(), jsonexport.New().Name()}
	default:
		return fmt.Errorf("unknown format %q (want markdown, json or both)", f.format)
	}
	if f.strict {
		cfg.Options.StrictValidation = true
	}
	if f.noValidate {
		cfg.Options.ValidateClaims = false
	}
	if f.allowLarge {
		cfg.Options.AllowLargeRepo = true
	}
	if f.workers > 0 {
		cfg.Options.Limits.ParallelWorkers = f.workers
	}
	if f.outputDir != "" {
		cfg.Output.Dir = f.outputDir
	}
	return nil
}

func runAnalyze(cmd *cobra.Command, root *rootFlags, flags *analyzeFlags, args []string) error {
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}
	repo := cfg.Repo
	if len(args) > 0 {
		repo = args[0]
	}

	ctx := cmd.Context()
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	out := newPrinter(cmd.OutOrStdout(), root.noColor)
	progress := func(phase string) {
		if !flags.quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "==> %s\n", phase)
		}
	}

	eng := engine.New(cfg)
	a, runErr := eng.RunFullAnalysis(ctx, repo, cfg.Options, progress)
	if a == nil {
		return runErr
	}

	var written []string
	if len(a.Artifacts) > 0 {
		var err error
		if written, err = eng.WriteArtifacts(""); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if !flags.quiet {
		out.summary(a, written)
		out.warnings(a.Warnings)
	}
	return runErr
}
