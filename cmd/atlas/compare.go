package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/atlas/internal/database"
	"github.com/nao1215/atlas/internal/model"
	"github.com/nao1215/atlas/internal/report"
)

// Constants for comparison summaries.
const (
	changeGrown     = "grown"
	changeShrunk    = "shrunk"
	changeUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares the link graphs of two crawl runs of the same seed.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Compare crawl runs of a site",
		Long: `Compare displays differences between two crawl runs of the same seed URL.

It shows:
- Pages that appeared or disappeared since the earlier run
- Links that were added or removed
- Pages that started or stopped failing

By default the two latest finished runs are compared. Use 'atlas history <url>'
to see the available runs.

Examples:
  # Compare the latest two runs of a site
  atlas compare https://example.com

  # Compare the latest run with a specific earlier run
  atlas compare --with-run 3f8c... https://example.com

  # Compare with the first run since a date
  atlas compare --since 2025-01-01 https://example.com

  # Output the comparison as JSON
  atlas compare -f json https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("storage", "s", "", "Directory holding the history database (default: XDG data dir)")
	cmd.Flags().StringP("with-run", "i", "", "Compare with the run with this ID")
	cmd.Flags().String("since", "", "Compare with the first run after this date (format: YYYY-MM-DD)")
	cmd.Flags().StringP("format", "f", report.FormatText, "Output format (text, json, markdown)")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Validate arguments before opening the database.
	seed, err := model.NormalizeURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	flags := cmd.Flags()
	storagePath, err := flags.GetString("storage")
	if err != nil {
		return err
	}
	withRun, err := flags.GetString("with-run")
	if err != nil {
		return err
	}
	since, err := flags.GetString("since")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	if _, err := report.New(format, io.Discard, ""); err != nil {
		return err
	}

	db, err := openHistory(storagePath)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := runComparison(cmd.Context(), db, seed, withRun, since)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case report.FormatJSON:
		return outputComparisonJSON(out, result)
	case report.FormatMarkdown:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// runComparison selects two runs of seed and compares them.
func runComparison(ctx context.Context, db *database.CrawlDB, seed, withRun, since string) (*ComparisonResult, error) {
	all, err := db.ListRuns(ctx, seed, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}

	// Only finished runs have a summary to compare.
	runs := make([]database.RunMetadata, 0, len(all))
	for _, r := range all {
		if r.Finished() {
			runs = append(runs, r)
		}
	}

	if len(runs) == 0 {
		return nil, fmt.Errorf("no crawl history found for %s", seed)
	}
	if len(runs) < 2 && withRun == "" && since == "" {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
	}

	// Latest run is always the current one
	current := runs[0]
	var previous *database.RunMetadata

	switch {
	case withRun != "":
		run, err := db.GetRun(ctx, withRun)
		if err != nil {
			return nil, err
		}
		if run.SeedURL != seed {
			return nil, fmt.Errorf("run %s belongs to %s, not %s", withRun, run.SeedURL, seed)
		}
		if !run.Finished() {
			return nil, fmt.Errorf("run %s did not finish", withRun)
		}
		previous = run
	case since != "":
		date, err := time.Parse("2006-01-02", since)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Runs are sorted newest first, so iterate in reverse to find the
		// oldest run at or after the date.
		for i := len(runs) - 1; i >= 0; i-- {
			if !runs[i].StartedAt.Before(date) {
				previous = &runs[i]
				break
			}
		}
		if previous == nil {
			return nil, fmt.Errorf("no runs found since %s", since)
		}
		if previous.RunID == current.RunID {
			return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", since)
		}
	default:
		previous = &runs[1]
	}

	prevSummary, err := loadRun(ctx, db, previous.RunID)
	if err != nil {
		return nil, err
	}
	currSummary, err := loadRun(ctx, db, current.RunID)
	if err != nil {
		return nil, err
	}
	return compareRuns(prevSummary, currSummary), nil
}

// ComparisonResult holds the result of comparing two crawl runs.
type ComparisonResult struct {
	// SeedURL is the seed both runs started from.
	SeedURL string `json:"seed_url"`

	// PreviousRun contains metadata about the earlier run.
	PreviousRun RunSnapshot `json:"previous_run"`

	// CurrentRun contains metadata about the later run.
	CurrentRun RunSnapshot `json:"current_run"`

	// AddedPages are graph keys only present in the current run.
	AddedPages []string `json:"added_pages,omitempty"`

	// RemovedPages are graph keys only present in the previous run.
	RemovedPages []string `json:"removed_pages,omitempty"`

	// AddedLinks are edges only present in the current run.
	AddedLinks []Edge `json:"added_links,omitempty"`

	// RemovedLinks are edges only present in the previous run.
	RemovedLinks []Edge `json:"removed_links,omitempty"`

	// NewErrors are URLs that failed in the current run but not before.
	NewErrors []string `json:"new_errors,omitempty"`

	// FixedErrors are URLs that failed before but not in the current run.
	FixedErrors []string `json:"fixed_errors,omitempty"`

	// UnchangedPages is the number of pages present in both runs.
	UnchangedPages int `json:"unchanged_pages"`

	// Change is "grown", "shrunk" or "unchanged" by page count.
	Change string `json:"change"`
}

// RunSnapshot contains metadata about a run for comparison display.
type RunSnapshot struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	Pages        int       `json:"pages"`
	Links        int       `json:"links"`
	PagesFetched int       `json:"pages_fetched"`
	Errors       int       `json:"errors"`
}

// Edge is one link in the graph.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func snapshotOf(s *model.Summary) RunSnapshot {
	snap := RunSnapshot{
		RunID:        s.RunID,
		StartedAt:    s.StartedAt,
		PagesFetched: s.PagesFetched,
		Errors:       len(s.Errors),
	}
	if s.Graph != nil {
		snap.Pages = s.Graph.Len()
		snap.Links = s.Graph.EdgeCount()
	}
	return snap
}

// compareRuns compares two run summaries and generates a comparison result.
func compareRuns(previous, current *model.Summary) *ComparisonResult {
	result := &ComparisonResult{
		SeedURL:     current.SeedURL,
		PreviousRun: snapshotOf(previous),
		CurrentRun:  snapshotOf(current),
	}

	prevPages, prevEdges := graphSets(previous.Graph)
	currPages, currEdges := graphSets(current.Graph)

	for p := range currPages {
		if prevPages[p] {
			result.UnchangedPages++
		} else {
			result.AddedPages = append(result.AddedPages, p)
		}
	}
	for p := range prevPages {
		if !currPages[p] {
			result.RemovedPages = append(result.RemovedPages, p)
		}
	}
	for e := range currEdges {
		if !prevEdges[e] {
			result.AddedLinks = append(result.AddedLinks, e)
		}
	}
	for e := range prevEdges {
		if !currEdges[e] {
			result.RemovedLinks = append(result.RemovedLinks, e)
		}
	}

	prevErrors := errorSet(previous)
	currErrors := errorSet(current)
	for u := range currErrors {
		if !prevErrors[u] {
			result.NewErrors = append(result.NewErrors, u)
		}
	}
	for u := range prevErrors {
		if !currErrors[u] {
			result.FixedErrors = append(result.FixedErrors, u)
		}
	}

	sort.Strings(result.AddedPages)
	sort.Strings(result.RemovedPages)
	sort.Strings(result.NewErrors)
	sort.Strings(result.FixedErrors)
	sortEdges(result.AddedLinks)
	sortEdges(result.RemovedLinks)

	switch {
	case result.CurrentRun.Pages > result.PreviousRun.Pages:
		result.Change = changeGrown
	case result.CurrentRun.Pages < result.PreviousRun.Pages:
		result.Change = changeShrunk
	default:
		result.Change = changeUnchanged
	}

	return result
}

func graphSets(g *model.Graph) (map[string]bool, map[Edge]bool) {
	pages := make(map[string]bool)
	edges := make(map[Edge]bool)
	if g == nil {
		return pages, edges
	}
	for source, links := range g.Snapshot() {
		pages[source] = true
		for _, l := range links {
			edges[Edge{Source: source, Target: l.Target}] = true
		}
	}
	return pages, edges
}

func errorSet(s *model.Summary) map[string]bool {
	set := make(map[string]bool, len(s.Errors))
	for _, e := range s.Errors {
		set[e.URL] = true
	}
	return set
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)
	md.H1("Crawl Comparison: " + result.SeedURL)
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Site:** %s", formatChange(result.Change))
	md.PlainText("")

	prev, curr := result.PreviousRun, result.CurrentRun
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", prev.StartedAt.Format("2006-01-02 15:04"), curr.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Pages", strconv.Itoa(prev.Pages), strconv.Itoa(curr.Pages), formatDelta(curr.Pages - prev.Pages)},
			{"Links", strconv.Itoa(prev.Links), strconv.Itoa(curr.Links), formatDelta(curr.Links - prev.Links)},
			{"Fetched", strconv.Itoa(prev.PagesFetched), strconv.Itoa(curr.PagesFetched), formatDelta(curr.PagesFetched - prev.PagesFetched)},
			{"Errors", strconv.Itoa(prev.Errors), strconv.Itoa(curr.Errors), formatDelta(curr.Errors - prev.Errors)},
		},
	})
	md.PlainText("")

	writeMarkdownList(md, "New Pages", result.AddedPages)
	writeMarkdownList(md, "Removed Pages", result.RemovedPages)
	writeMarkdownList(md, "New Errors", result.NewErrors)
	writeMarkdownList(md, "Fixed Errors", result.FixedErrors)
	writeMarkdownList(md, "New Links", edgeStrings(result.AddedLinks))
	writeMarkdownList(md, "Removed Links", edgeStrings(result.RemovedLinks))

	if result.UnchangedPages > 0 {
		md.HorizontalRule()
		md.PlainTextf("*%d pages unchanged*", result.UnchangedPages)
	}

	return md.Build()
}

func writeMarkdownList(md *markdown.Markdown, title string, items []string) {
	if len(items) == 0 {
		return
	}
	md.H2(fmt.Sprintf("%s (%d)", title, len(items)))
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	prev, curr := result.PreviousRun, result.CurrentRun

	var sb strings.Builder
	fmt.Fprintf(&sb, "Crawl Comparison: %s\n", result.SeedURL)
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	fmt.Fprintf(&sb, "\nSite: %s\n", formatChange(result.Change))
	fmt.Fprintf(&sb, "\nPrevious run: %s  %s\n", prev.StartedAt.Format("2006-01-02 15:04:05"), prev.RunID)
	fmt.Fprintf(&sb, "Current run:  %s  %s\n", curr.StartedAt.Format("2006-01-02 15:04:05"), curr.RunID)

	sb.WriteString("\nSummary:\n")
	fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	for _, row := range []struct {
		name       string
		prev, curr int
	}{
		{"Pages", prev.Pages, curr.Pages},
		{"Links", prev.Links, curr.Links},
		{"Fetched", prev.PagesFetched, curr.PagesFetched},
		{"Errors", prev.Errors, curr.Errors},
	} {
		fmt.Fprintf(&sb, "  %-10s  %-10d  %-10d  %-10s\n", row.name, row.prev, row.curr, formatDelta(row.curr-row.prev))
	}

	writeTextList(&sb, "New Pages", "+", result.AddedPages)
	writeTextList(&sb, "Removed Pages", "-", result.RemovedPages)
	writeTextList(&sb, "New Errors", "!", result.NewErrors)
	writeTextList(&sb, "Fixed Errors", "*", result.FixedErrors)
	writeTextList(&sb, "New Links", "+", edgeStrings(result.AddedLinks))
	writeTextList(&sb, "Removed Links", "-", edgeStrings(result.RemovedLinks))

	if result.UnchangedPages > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d pages\n", result.UnchangedPages)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

func writeTextList(sb *strings.Builder, title, marker string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(sb, "  [%s] %s\n", marker, item)
	}
}

func edgeStrings(edges []Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.Source + " -> " + e.Target
	}
	return out
}

// formatChange formats the site change for display.
func formatChange(change string) string {
	switch change {
	case changeGrown:
		return "GROWN (more pages)"
	case changeShrunk:
		return "SHRUNK (fewer pages)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
