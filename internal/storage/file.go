package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/atlas/internal/model"
)

// File and directory permissions for crawl output.
const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// FileSink writes records to <dir>/<resultsFilename> as JSON lines and the
// graph snapshot to <dir>/<graphFilename>.
type FileSink struct {
	dir             string
	resultsFilename string
	graphFilename   string

	results *os.File
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithGraphFilename overrides the graph snapshot file name.
func WithGraphFilename(name string) FileSinkOption {
	return func(s *FileSink) {
		s.graphFilename = name
	}
}

// NewFileSink creates a FileSink rooted at dir. Nothing is created on disk
// until the first call.
func NewFileSink(dir, resultsFilename string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		dir:             dir,
		resultsFilename: resultsFilename,
		graphFilename:   "graph.json",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResultsPath returns the path of the JSON lines file.
func (s *FileSink) ResultsPath() string {
	return filepath.Join(s.dir, s.resultsFilename)
}

// GraphPath returns the path of the graph snapshot.
func (s *FileSink) GraphPath() string {
	return filepath.Join(s.dir, s.graphFilename)
}

// Reset creates the output directory and truncates the results file.
func (s *FileSink) Reset(_ context.Context) error {
	if err := s.closeResults(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	f, err := os.OpenFile(s.ResultsPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open results file: %w", err)
	}
	s.results = f
	return nil
}

// AppendRecord writes record as one JSON line. If Reset was not called,
// the file is opened in append mode.
func (s *FileSink) AppendRecord(_ context.Context, record model.Record) error {
	if s.results == nil {
		if err := os.MkdirAll(s.dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
		f, err := os.OpenFile(s.ResultsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
		if err != nil {
			return fmt.Errorf("failed to open results file: %w", err)
		}
		s.results = f
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.results.Write(line); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// WriteSnapshot writes the graph as indented JSON. The file is replaced
// atomically so readers never observe a partial snapshot.
func (s *FileSink) WriteSnapshot(_ context.Context, graph *model.Graph) error {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	data, err := json.MarshalIndent(graph, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, s.graphFilename+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("failed to write graph: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close graph file: %w", err)
	}
	if err := os.Rename(tmpName, s.GraphPath()); err != nil {
		return fmt.Errorf("failed to replace graph file: %w", err)
	}
	return nil
}

// Close closes the results file.
func (s *FileSink) Close() error {
	return s.closeResults()
}

func (s *FileSink) closeResults() error {
	if s.results == nil {
		return nil
	}
	err := s.results.Close()
	s.results = nil
	return err
}

// ReadRecords reads a JSON lines results file.
func ReadRecords(path string) ([]model.Record, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the caller's settings
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only

	var records []model.Record
	dec := json.NewDecoder(f)
	for dec.More() {
		var r model.Record
		if err := dec.Decode(&r); err != nil {
			return records, fmt.Errorf("failed to decode record %d: %w", len(records)+1, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// ReadGraph reads a graph snapshot file.
func ReadGraph(path string) (*model.Graph, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the caller's settings
	if err != nil {
		return nil, err
	}
	g := model.NewGraph()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	return g, nil
}
