// Package cli is the querysync command line: one-shot and watch syncs,
// sync history and query inspection.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const versionString = "1.0.0"

type rootOptions struct {
	configPath string
	workspace  string
	replayFile string
	format     string
	verbose    bool

	stdout io.Writer
	stderr io.Writer
}

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "querysync",
		Short:         "Build an IDE project model from a Bazel query",
		Long:          "querysync runs a Bazel dependency query over the configured import roots and turns the result into a project model of content entries and source folders with package prefixes.",
		Version:       versionString,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(opts.format)
		},
		// No Run; prints help by default.
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: querysync.toml in the working directory or workspace root)")
	root.PersistentFlags().StringVar(&opts.workspace, "workspace", "", "workspace root, overrides workspace.root")
	root.PersistentFlags().StringVar(&opts.replayFile, "replay", "", "answer queries from a recorded streamed_jsonproto file")
	root.PersistentFlags().StringVar(&opts.format, "format", formatText, "output format: text|json|yaml")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newSyncCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newQueryCmd(opts))
	return root
}
