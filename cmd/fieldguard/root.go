package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/fieldguard/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fieldguard",
	Short: "fieldguard - declarative field validation engine",
	Long: `fieldguard validates field values against declarative rule documents.

Rules describe per-field conditions: required values, comparisons,
cross-field dependencies, type, length and emptiness checks, regular
expressions and custom checks written as CEL expressions. Every failure is
reported keyed by field, and rules can clear or update field values when
they fail.

fieldguard runs as a one-shot command or as an HTTP service that reloads
rules from a directory or Git repository and archives every report.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the status its error maps to.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if _, ok := err.(*cli.ExitError); !ok {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// commandOutput returns the writer for command output. Tests call RunE
// functions with a nil command.
func commandOutput(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd == nil || cmd.Context() == nil {
		return context.Background()
	}
	return cmd.Context()
}
