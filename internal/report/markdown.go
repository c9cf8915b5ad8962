package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/atlas/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl report in Markdown format.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeSummary(md, summary)
	w.writeErrors(md, summary)
	w.writeMostLinked(md, summary)
	w.writeGraph(md, summary.Graph)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteGraph outputs the graph as one collapsible section per page.
func (w *MarkdownWriter) WriteGraph(graph *model.Graph) (int, error) {
	md := markdown.NewMarkdown(w.output)
	w.writeGraph(md, graph)
	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary) {
	md.H1("Atlas Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + summary.SeedURL + "`"},
			{"Run ID", "`" + summary.RunID + "`"},
			{"Strategy", summary.Strategy},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on run state.
func (w *MarkdownWriter) getStatusText(summary *model.Summary) string {
	switch {
	case summary.Cancelled:
		return "⚠️ " + status(summary)
	case len(summary.Errors) > 0:
		return "❌ " + status(summary)
	default:
		return "✅ " + status(summary)
	}
}

// writeSummary writes the counters and the skip breakdown.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	nodes, edges := graphSize(summary.Graph)
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages fetched", strconv.Itoa(summary.PagesFetched)},
			{"Pages visited", strconv.Itoa(summary.PagesVisited)},
			{"Graph pages", strconv.Itoa(nodes)},
			{"Graph links", strconv.Itoa(edges)},
			{"Records saved", strconv.Itoa(summary.Records)},
			{"Errors", strconv.Itoa(len(summary.Errors))},
			{"**Skipped**", "**" + strconv.Itoa(summary.TotalSkipped()) + "**"},
		},
	})
	md.PlainText("")

	if rows := skipBreakdown(summary); len(rows) > 0 {
		w.writePieChart(md, rows)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of skip reasons.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, rows []reasonCount) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Skipped URLs by Reason"),
		piechart.WithShowData(true),
	)
	for _, r := range rows {
		chart.LabelAndIntValue(r.reason.String(), uint64(r.count)) //nolint:gosec // counts are never negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	switch {
	case summary.Cancelled:
		md.Warningf("The crawl was cancelled after %d page(s). Results are partial.", summary.PagesFetched)
	case len(summary.Errors) > 0:
		md.Importantf("%d page(s) could not be fetched.", len(summary.Errors))
	case summary.PagesFetched == 0:
		md.Note("No pages were fetched. Check the seed URL and the allowed domains.")
	default:
		md.Tip("All pages were fetched successfully.")
	}
	md.PlainText("")
}

// writeErrors writes a table of failed fetches.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Errors")
	md.PlainText("")

	if len(summary.Errors) == 0 {
		md.PlainText("No fetch errors.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Errors))
	for i, e := range summary.Errors {
		rows[i] = []string{
			truncateString(e.URL, 60),
			strconv.Itoa(e.Depth),
			truncateString(e.Message, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeMostLinked writes the pages with the most incoming links.
func (w *MarkdownWriter) writeMostLinked(md *markdown.Markdown, summary *model.Summary) {
	rows := mostLinked(summary.Graph, 10)
	if len(rows) == 0 {
		return
	}

	md.H2("Most Linked Pages")
	md.PlainText("")

	table := make([][]string, len(rows))
	for i, r := range rows {
		table[i] = []string{truncateString(r.url, 80), strconv.Itoa(r.count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Incoming links"},
		Rows:   table,
	})
	md.PlainText("")
}

// writeGraph writes each page's links in a collapsible section.
func (w *MarkdownWriter) writeGraph(md *markdown.Markdown, graph *model.Graph) {
	md.H2("Link Graph")
	md.PlainText("")

	if graph == nil || graph.Len() == 0 {
		md.PlainText("The graph is empty.")
		md.PlainText("")
		return
	}

	for _, source := range graph.URLs() {
		targets := graph.Targets(source)
		if len(targets) == 0 {
			md.Details(source, "No outgoing links.")
			continue
		}
		md.Details(source+" ("+strconv.Itoa(len(targets))+")", "- "+strings.Join(targets, "\n- "))
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by Atlas*")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
