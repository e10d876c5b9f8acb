// Package main implements the importwaterfall CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"importwaterfall/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "importwaterfall [flags] <module>",
	Short: "Show where a Python module spends its import time",
	Long: `importwaterfall runs "python -X importtime -c 'import <module>'" several times,
keeps the fastest run and prints its imports as a timing tree or as a HAR document.`,
	Args:          cobra.ExactArgs(1),
	RunE:          analyzeExecution,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// main registers subcommands and persistent flags, then executes the root
// command. Any error is printed to stderr and the process exits with 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(versionCmd)

	registerGlobalFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		os.Exit(1)
	}
}

// registerGlobalFlags adds the flags shared by every command.
func registerGlobalFlags(cmd *cobra.Command) {
	// Глобальные флаги
	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file (default: nearest importwaterfall.toml)")
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("timings", false, "print stage timings to stderr")
	pf.String("trace", "", "write diagnostic trace to file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	pf.Duration("trace-heartbeat", 0, "emit a trace heartbeat at this interval (0 = off)")
	pf.String("cpu-profile", "", "write a CPU profile of importwaterfall itself")
	pf.String("mem-profile", "", "write a heap profile of importwaterfall itself")
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
