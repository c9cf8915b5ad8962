package report

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/nao1215/atlas/internal/model"
)

// Writer defines the interface for report output.
// Implementations write crawl results in various formats.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the full crawl report.
	// Returns the number of bytes written and any error encountered.
	Write(summary *model.Summary) (int, error)

	// WriteGraph outputs only the link graph.
	WriteGraph(graph *model.Graph) (int, error)
}

// Output formats accepted by New.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned by New for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// New returns the Writer for format. version is embedded in JSON reports.
func New(format string, output io.Writer, version string) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version)), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q (use %s, %s or %s)", ErrUnknownFormat, format, FormatText, FormatJSON, FormatMarkdown)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface is different
// from io.Writer - we write reports, not raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteGraph outputs the graph to all configured Writers.
func (m *MultiWriter) WriteGraph(graph *model.Graph) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteGraph(graph)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// reasonCount is one row of the skip breakdown.
type reasonCount struct {
	reason model.SkipReason
	count  int
}

// skipBreakdown returns skip counts sorted by count, then reason.
func skipBreakdown(summary *model.Summary) []reasonCount {
	rows := make([]reasonCount, 0, len(summary.Skipped))
	for r, c := range summary.Skipped {
		rows = append(rows, reasonCount{reason: r, count: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].reason < rows[j].reason
	})
	return rows
}

// pageCount is one row of the most-linked breakdown.
type pageCount struct {
	url   string
	count int
}

// mostLinked returns up to n graph keys with the most incoming links.
func mostLinked(graph *model.Graph, n int) []pageCount {
	if graph == nil {
		return nil
	}
	in := make(map[string]int)
	for _, source := range graph.URLs() {
		for _, target := range graph.Targets(source) {
			if target != source && graph.Has(target) {
				in[target]++
			}
		}
	}

	rows := make([]pageCount, 0, len(in))
	for u, c := range in {
		rows = append(rows, pageCount{url: u, count: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].url < rows[j].url
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// status describes how the run ended.
func status(summary *model.Summary) string {
	switch {
	case summary.Cancelled:
		return "Cancelled (partial results)"
	case len(summary.Errors) > 0:
		return fmt.Sprintf("Complete with %d error(s)", len(summary.Errors))
	default:
		return "Complete"
	}
}

func graphSize(graph *model.Graph) (nodes, edges int) {
	if graph == nil {
		return 0, 0
	}
	return graph.Len(), graph.EdgeCount()
}
