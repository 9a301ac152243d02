package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dejo1307/docdrift/internal/engine"
	"github.com/dejo1307/docdrift/internal/prompts"
	"github.com/dejo1307/docdrift/internal/renderers/jsonexport"
	"github.com/dejo1307/docdrift/internal/renderers/promptmd"
)

type promptsFlags struct {
	phase     int
	id        string
	format    string
	outputDir string
}

func newPromptsCommand(root *rootFlags) *cobra.Command {
	flags := &promptsFlags{}
	cmd := &cobra.Command{
		Use:   "prompts [repo]",
		Short: "Print the review prompts of the last analysis",
		Long: `Prompts prints the review prompts recorded in the analysis.json written by
a previous "docdrift analyze" run, optionally filtered by phase or id.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrompts(cmd, root, flags, args)
		},
	}
	cmd.Flags().IntVarP(&flags.phase, "phase", "p", -1, "only print prompts of this phase (0-4)")
	cmd.Flags().StringVar(&flags.id, "id", "", "only print the prompt with this id")
	cmd.Flags().StringVarP(&flags.format, "format", "f", FormatMarkdown, "output format: markdown or json")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "directory holding analysis.json (default <repo>/.docdrift)")
	return cmd
}

func runPrompts(cmd *cobra.Command, root *rootFlags, flags *promptsFlags, args []string) error {
	if flags.format != FormatMarkdown && flags.format != FormatJSON {
		return fmt.Errorf("unknown format %q (want markdown or json)", flags.format)
	}
	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	repo := cfg.Repo
	if len(args) > 0 {
		repo = args[0]
	}
	dir := flags.outputDir
	if dir == "" {
		dir = cfg.Output.Dir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(repo, dir)
	}

	path := filepath.Join(dir, jsonexport.AnalysisArtifact)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no analysis found at %s, run \"docdrift analyze\" first", path)
	}
	a, err := engine.New(cfg).LoadAnalysis(cmd.Context(), path)
	if err != nil {
		return err
	}

	ps := a.Prompts
	if flags.phase >= 0 {
		ps = prompts.Phase(ps, flags.phase)
	}
	if flags.id != "" {
		ps = prompts.ByID(ps, flags.id)
	}
	if len(ps) == 0 {
		return fmt.Errorf("no prompts match the filter")
	}

	w := cmd.OutOrStdout()
	if flags.format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ps)
	}
	md, err := promptmd.Prompts(ps)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, md)
	return err
}
