// Package main provides the entry point for the Atlas CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/atlas/internal/log"
)

// NewRootCmd creates the root command for Atlas.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atlas",
		Short: "Polite, extensible web crawler",
		Long: `Atlas crawls websites from a seed URL and builds a link graph.

It honors robots.txt and allowed domains, runs pluggable hooks over every
fetched page, and stores per-page records and crawl history locally.

Three traversal strategies are available:
  depth    depth-first, bounded by --depth (default)
  site     breadth-first over the whole site (--entire-site)
  layered  breadth-first with concurrent fetches per layer (--concurrent)`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag retrieves a boolean flag from the command or the root's
// persistent flags.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// setupLogger creates a structured logger from the global logging flags.
// Logs always go to w (stderr in production) so that reports written to
// stdout stay machine-readable.
func setupLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose := getBoolFlag(cmd, "verbose")
	if getBoolFlag(cmd, "json-log") {
		return log.NewJSONLogger(w, verbose)
	}
	return log.NewLogger(w, verbose)
}
