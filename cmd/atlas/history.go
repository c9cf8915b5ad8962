package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/atlas/internal/config"
	"github.com/nao1215/atlas/internal/database"
	"github.com/nao1215/atlas/internal/model"
	"github.com/nao1215/atlas/internal/report"
)

// NewHistoryCmd creates the history command.
// This command reads past crawl runs from the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "Show past crawl runs",
		Long: `History lists crawl runs stored in the database, newest first.

Pass a seed URL to list only the runs started from it. Use --show to print
the full report of one run, --records to dump its records as JSON lines,
and --delete to remove it.

Examples:
  # List the 20 most recent runs
  atlas history

  # List runs for one seed
  atlas history https://example.com

  # Show the report of a run as Markdown
  atlas history --show 3f8c... -f markdown

  # Export the records of a run
  atlas history --records 3f8c... > records.jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("storage", "s", "", "Directory holding the history database (default: XDG data dir)")
	cmd.Flags().IntP("limit", "l", 20, "Maximum number of runs to list (0 = all)")
	cmd.Flags().String("show", "", "Print the report of the run with this ID")
	cmd.Flags().String("records", "", "Print the records of the run with this ID as JSON lines")
	cmd.Flags().String("delete", "", "Delete the run with this ID")
	cmd.Flags().StringP("format", "f", report.FormatText, "Report format for --show (text, json, markdown)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	storagePath, err := flags.GetString("storage")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	show, err := flags.GetString("show")
	if err != nil {
		return err
	}
	records, err := flags.GetString("records")
	if err != nil {
		return err
	}
	del, err := flags.GetString("delete")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}

	db, err := openHistory(storagePath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case show != "":
		return showRun(ctx, out, db, show, format)
	case records != "":
		return dumpRecords(ctx, out, db, records)
	case del != "":
		if err := db.DeleteRun(ctx, del); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %s\n", del)
		return nil
	}

	var seed string
	if len(args) > 0 {
		if seed, err = model.NormalizeURL(args[0]); err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
	}
	return listRuns(ctx, out, db, seed, limit)
}

// openHistory opens the history database in dir, defaulting to the XDG
// data directory.
func openHistory(dir string) (*database.CrawlDB, error) {
	if dir == "" {
		dir = config.XDGDataDir()
	}
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// listRuns prints a table of runs.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string, limit int) error {
	runs, err := db.ListRuns(ctx, seed, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs found in the database.")
		fmt.Fprintln(out, "\nUse 'atlas crawl <url>' to crawl a website.")
		return nil
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-8s  %6s  %6s  %s\n", "Run ID", "Started", "Strategy", "Pages", "Errors", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-8s  %6d  %6d  %s%s\n",
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Strategy,
			r.PagesFetched,
			r.Errors,
			r.SeedURL,
			runState(r),
		)
	}

	fmt.Fprintln(out, "\nUse 'atlas history --show <run-id>' to see the report of a run.")
	return nil
}

// runState returns a marker for runs that did not complete normally.
func runState(r database.RunMetadata) string {
	switch {
	case !r.Finished():
		return " (incomplete)"
	case r.Cancelled:
		return " (cancelled)"
	default:
		return ""
	}
}

// loadRun returns the stored summary of a run with its graph attached.
func loadRun(ctx context.Context, db *database.CrawlDB, runID string) (*model.Summary, error) {
	summary, err := db.GetSummary(ctx, runID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("run %s did not finish", runID)
	}
	graph, err := db.GetGraph(ctx, runID)
	if err != nil {
		return nil, err
	}
	summary.Graph = graph
	return summary, nil
}

// showRun prints the report of one run.
func showRun(ctx context.Context, out io.Writer, db *database.CrawlDB, runID, format string) error {
	summary, err := loadRun(ctx, db, runID)
	if err != nil {
		return err
	}
	w, err := report.New(format, out, getVersion())
	if err != nil {
		return err
	}
	_, err = w.Write(summary)
	return err
}

// dumpRecords prints the records of one run as JSON lines.
func dumpRecords(ctx context.Context, out io.Writer, db *database.CrawlDB, runID string) error {
	records, err := db.GetRecords(ctx, runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}
