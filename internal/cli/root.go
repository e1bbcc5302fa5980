// Package cli implements the strata command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// app carries the global flags of one command tree.
type app struct {
	flags rootFlags
}

// exitCodeError pairs an error with the process exit code it maps to.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// userError marks err as caused by bad input: flags, arguments or files.
func userError(err error) error {
	return &exitCodeError{code: exitUserError, err: err}
}

// sysError marks err as caused by the environment: storage or filesystem.
func sysError(err error) error {
	return &exitCodeError{code: exitSysError, err: err}
}

// exitCode returns the exit code for err. Errors without a code, such as
// cobra's flag and argument errors, are user errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ce *exitCodeError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUserError
}

// NewRootCmd creates the top-level "strata" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "strata",
		Short: "Versioned schema migrations for local row stores",
		Long: "Strata migrates the stored rows of an entity between declared schema\n" +
			"versions, one milestone step at a time.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(a),
		newInitCmd(a),
		newPlanCmd(a),
		newStatusCmd(a),
		newMigrateCmd(a),
		newRebuildCmd(a),
		newDumpCmd(a),
		newLoadCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
}
