package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vbind/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vbind",
		Short: "Reactive list binding over WebSocket",
		Long: `vbind keeps a keyed list of items in sync with connected browsers.

A reactive runtime tracks the list; a keyed reconciler turns each change
into the minimal set of inserts, moves and removals, which are streamed
to clients as binary patch frames.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Print errors as a single line")

	rootCmd.AddCommand(
		serveCmd(),
		reconcileCmd(),
		benchCmd(),
		versionCmd(),
	)
	return rootCmd
}

// reportError prints err in the form selected by --quiet.
func reportError(w io.Writer, cmd *cobra.Command, err error) {
	quiet, _ := cmd.PersistentFlags().GetBool("quiet")
	errors.FprintError(w, err, quiet)
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		reportError(os.Stderr, cmd, err)
		os.Exit(1)
	}
}
