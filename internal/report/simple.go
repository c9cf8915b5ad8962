package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/atlas/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to report are shown.
	showEmpty bool

	// verbose adds the full link graph to the report.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with the full link graph.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl report in human-readable format.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeTotals(&sb, summary)
	w.writeSkipped(&sb, summary)
	w.writeErrors(&sb, summary)
	w.writeMostLinked(&sb, summary)
	if w.verbose {
		w.writeSection(&sb, "LINK GRAPH")
		writeAdjacency(&sb, summary.Graph)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteGraph outputs the graph as an indented adjacency list.
func (w *SimpleWriter) WriteGraph(graph *model.Graph) (int, error) {
	var sb strings.Builder
	writeAdjacency(&sb, graph)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                         ATLAS CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed:      %s\n", summary.SeedURL)
	fmt.Fprintf(sb, "Run ID:    %s\n", summary.RunID)
	fmt.Fprintf(sb, "Strategy:  %s\n", summary.Strategy)
	fmt.Fprintf(sb, "Started:   %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:   %s\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:    %s\n", status(summary))
	sb.WriteString("\n")
}

// writeTotals writes the counters section.
func (w *SimpleWriter) writeTotals(sb *strings.Builder, summary *model.Summary) {
	w.writeSection(sb, "SUMMARY")

	nodes, edges := graphSize(summary.Graph)
	fmt.Fprintf(sb, "  Pages fetched:  %d\n", summary.PagesFetched)
	fmt.Fprintf(sb, "  Pages visited:  %d\n", summary.PagesVisited)
	fmt.Fprintf(sb, "  Graph:          %d pages, %d links\n", nodes, edges)
	fmt.Fprintf(sb, "  Records saved:  %d\n", summary.Records)
	fmt.Fprintf(sb, "  Errors:         %d\n", len(summary.Errors))
	fmt.Fprintf(sb, "  Skipped:        %d\n", summary.TotalSkipped())
	sb.WriteString("\n")
}

// writeSkipped writes the skip counts by reason.
func (w *SimpleWriter) writeSkipped(sb *strings.Builder, summary *model.Summary) {
	rows := skipBreakdown(summary)
	if len(rows) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "SKIPPED URLS")
	if len(rows) == 0 {
		sb.WriteString("  Nothing skipped\n\n")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(sb, "  %-20s %d\n", r.reason, r.count)
	}
	sb.WriteString("\n")
}

// writeErrors lists failed fetches.
func (w *SimpleWriter) writeErrors(sb *strings.Builder, summary *model.Summary) {
	if len(summary.Errors) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "ERRORS")
	if len(summary.Errors) == 0 {
		sb.WriteString("  No fetch errors\n\n")
		return
	}
	for _, e := range summary.Errors {
		fmt.Fprintf(sb, "  [!] %s (depth %d)\n", e.URL, e.Depth)
		fmt.Fprintf(sb, "      %s\n", e.Message)
	}
	sb.WriteString("\n")
}

// writeMostLinked lists the pages with the most incoming links.
func (w *SimpleWriter) writeMostLinked(sb *strings.Builder, summary *model.Summary) {
	rows := mostLinked(summary.Graph, 10)
	if len(rows) == 0 && !w.showEmpty {
		return
	}

	w.writeSection(sb, "MOST LINKED PAGES")
	if len(rows) == 0 {
		sb.WriteString("  No internal links\n\n")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(sb, "  %4d  %s\n", r.count, r.url)
	}
	sb.WriteString("\n")
}

// writeAdjacency writes every graph key followed by its links.
func writeAdjacency(sb *strings.Builder, graph *model.Graph) {
	if graph == nil || graph.Len() == 0 {
		sb.WriteString("  (empty graph)\n\n")
		return
	}
	for _, source := range graph.URLs() {
		fmt.Fprintf(sb, "%s\n", source)
		links, _ := graph.Links(source)
		for _, l := range links {
			if l.AnchorText != "" {
				fmt.Fprintf(sb, "  -> %s  %q\n", l.Target, l.AnchorText)
			} else {
				fmt.Fprintf(sb, "  -> %s\n", l.Target)
			}
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by Atlas\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
