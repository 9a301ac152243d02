// Package cli implements the docdrift command line.
package cli

import (
	"errors"
	goflag "flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/dejo1307/docdrift/internal/config"
	"github.com/dejo1307/docdrift/internal/engine"
	"github.com/dejo1307/docdrift/internal/server"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitError         = 1
	ExitCriticalDrift = 2
	ExitTimedOut      = 3
)

// DefaultConfigFile is read from the working directory when --config is not given.
const DefaultConfigFile = "docdrift.yaml"

type rootFlags struct {
	configPath string
	noColor    bool
}

// NewRootCommand builds the docdrift command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "docdrift",
		Short: "Validate documentation against code and generate review prompts",
		Long: `docdrift reads a repository's documentation, derives facts from its code,
checks every testable documentation claim against those facts and writes a
drift report plus a dependency-ordered set of AI code review prompts.`,
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", DefaultConfigFile, "path to the config file")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	root.AddCommand(
		newAnalyzeCommand(flags),
		newPromptsCommand(flags),
		newServeCommand(flags),
		newWatchCommand(flags),
		newVersionCommand(),
	)
	return root
}

// loadConfig reads the config file. A missing default config file falls back
// to the built-in defaults; a missing explicit one is an error.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		klog.V(1).Infof("[cli] %s not found, using defaults", flags.configPath)
		return config.Default(), nil
	}
	return nil, err
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var critical *engine.CriticalDriftError
	var timedOut *engine.TimedOutError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &critical):
		return ExitCriticalDrift
	case errors.As(err, &timedOut):
		return ExitTimedOut
	default:
		return ExitError
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docdrift version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docdrift %s\n", server.Version)
		},
	}
}
