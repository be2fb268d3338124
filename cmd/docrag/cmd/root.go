// Package cmd provides the CLI commands for docrag.
package cmd

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/profiling"
	"github.com/Aman-CERP/docrag/pkg/version"
)

// Global flags
var (
	debugMode bool
	configDir string
	profile   profiling.Options
	session   *profiling.Session
)

// errReported marks an error the command already printed.
var errReported = stderrors.New("already reported")

// NewRootCmd creates the root command for the docrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docrag",
		Short: "Ingest documents and query them by semantic similarity",
		Long: `docrag turns PDF and text documents into cached vector indexes and
answers similarity queries against them.

Each document is identified by the SHA-256 of its bytes: ingesting the same
file again is a cache hit and costs no embedding calls.

Scores are 1 - squared euclidean distance between the query and chunk
embeddings. Higher is closer; scores are not bounded to [0, 1].`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("docrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Log at debug level and mirror logs to stderr")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Project directory holding .docrag.yaml (default: nearest project root)")
	cmd.PersistentFlags().StringVar(&profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profile.Heap, "profile-mem", "", "Write heap profile to file")
	cmd.PersistentFlags().StringVar(&profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if !profile.Enabled() {
		return nil
	}
	s, err := profiling.Start(profile)
	if err != nil {
		return err
	}
	session = s
	return nil
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	err := session.Stop()
	session = nil
	return err
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		_ = session.Stop()
		session = nil
		reportError(root.ErrOrStderr(), err)
	}
	return err
}

// reportError prints err with its hint and code. Errors that are not
// structured (flag parsing, unknown commands) print as-is.
func reportError(w io.Writer, err error) {
	if stderrors.Is(err, errReported) {
		return
	}
	if _, ok := errors.As(err); ok {
		_, _ = fmt.Fprint(w, errors.FormatForCLI(err))
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
