// Package cli defines the pxl command tree and maps outcomes onto process
// exit codes: 0 for a clean build, 1 when any target failed, 2 for
// configuration and usage errors.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scbrown/pixelsrc/internal/app"
	"github.com/scbrown/pixelsrc/internal/config"
)

const (
	ExitOK          = 0
	ExitBuildFailed = 1
	ExitConfigError = 2
)

// ExitError carries a specific process exit code out of command execution.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

type buildFlags struct {
	watch     bool
	verbose   bool
	jsonOut   bool
	force     bool
	jobs      int
	configPth string
	root      string
	logLevel  string
	logFormat string
}

// NewRootCommand builds the pxl command tree. Events and results are written
// to outW, logs to errW.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "pxl",
		Short:         "Incremental pixel-art asset compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.AddCommand(newBuildCommand(outW, errW))
	return root
}

func newBuildCommand(outW, errW io.Writer) *cobra.Command {
	flags := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build [TARGET...]",
		Short: "Build stale targets, or keep rebuilding with --watch",
		Long: `Build runs one incremental cycle over the project's target graph.

Optional TARGET filters restrict the cycle, e.g. "atlas:main", "sprite",
or "*:hero". Dependencies of matched targets are always included.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), outW, errW, flags, args)
		},
	}
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild on source changes")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "report every target, not just failures")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "emit build events as JSON lines")
	cmd.Flags().BoolVar(&flags.force, "force", false, "rebuild every target regardless of staleness")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "worker count (0 means number of CPUs)")
	cmd.Flags().StringVarP(&flags.configPth, "config", "c", "", "path to the project configuration file")
	cmd.Flags().StringVar(&flags.root, "root", ".", "project root directory")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "text", "log format: text or json")
	return cmd
}

func runBuild(ctx context.Context, outW, errW io.Writer, flags *buildFlags, filters []string) error {
	if err := validateFlags(flags); err != nil {
		return err
	}

	a, err := app.New(outW, errW, app.Options{
		Root:       flags.root,
		ConfigPath: flags.configPth,
		Filters:    filters,
		Verbose:    flags.verbose,
		JSONOutput: flags.jsonOut,
		Force:      flags.force,
		Jobs:       flags.jobs,
		LogLevel:   flags.logLevel,
		LogFormat:  flags.logFormat,
	})
	if err != nil {
		return asExitError(err)
	}

	if flags.watch {
		if err := a.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return asExitError(err)
		}
		return nil
	}

	cycle, err := a.Run(ctx)
	if err != nil {
		return asExitError(err)
	}
	if !cycle.OK() {
		return &ExitError{Code: ExitBuildFailed, Message: fmt.Sprintf("%d target(s) failed", cycle.Failed())}
	}
	return nil
}

func validateFlags(flags *buildFlags) error {
	switch strings.ToLower(flags.logLevel) {
	case "debug", "info", "warn", "error":
	default:
		return &ExitError{Code: ExitConfigError, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	switch strings.ToLower(flags.logFormat) {
	case "text", "json":
	default:
		return &ExitError{Code: ExitConfigError, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	if flags.jobs < 0 {
		return &ExitError{Code: ExitConfigError, Message: "invalid jobs: must be zero or positive"}
	}
	return nil
}

// asExitError classifies an execution error. Configuration problems exit 2;
// everything else counts as a failed build.
func asExitError(err error) error {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return &ExitError{Code: ExitConfigError, Message: err.Error()}
	}
	return &ExitError{Code: ExitBuildFailed, Message: err.Error()}
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) int {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(errW, "Error:", exitErr.Message)
			}
			return exitErr.Code
		}
		fmt.Fprintln(errW, "Error:", err)
		return ExitConfigError
	}
	return ExitOK
}
