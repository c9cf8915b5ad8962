package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/nao1215/atlas/internal/model"
)

// Sink persists crawl output.
type Sink interface {
	// Reset prepares the sink for a new run, discarding previous records.
	Reset(ctx context.Context) error
	// AppendRecord persists one page record.
	AppendRecord(ctx context.Context, record model.Record) error
	// WriteSnapshot persists the final link graph.
	WriteSnapshot(ctx context.Context, graph *model.Graph) error
	// Close releases resources held by the sink.
	Close() error
}

// MultiSink writes to multiple Sinks.
// Every sink is called even if an earlier one fails; the errors are joined.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a Sink that writes to all provided sinks in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Reset resets every sink.
func (m *MultiSink) Reset(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Reset(ctx))
	}
	return errors.Join(errs...)
}

// AppendRecord appends record to every sink.
func (m *MultiSink) AppendRecord(ctx context.Context, record model.Record) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.AppendRecord(ctx, record))
	}
	return errors.Join(errs...)
}

// WriteSnapshot writes graph to every sink.
func (m *MultiSink) WriteSnapshot(ctx context.Context, graph *model.Graph) error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.WriteSnapshot(ctx, graph))
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// MemorySink keeps output in memory. It is used by tests and by callers
// that post-process results themselves.
type MemorySink struct {
	mu       sync.Mutex
	records  []model.Record
	snapshot *model.Graph
	resets   int
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Reset discards stored records.
func (m *MemorySink) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.snapshot = nil
	m.resets++
	return nil
}

// AppendRecord stores record.
func (m *MemorySink) AppendRecord(_ context.Context, record model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

// WriteSnapshot stores graph. Each crawl builds a new append-only graph,
// so the stored value does not change after the crawl ends.
func (m *MemorySink) WriteSnapshot(_ context.Context, graph *model.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = graph
	return nil
}

// Close does nothing.
func (m *MemorySink) Close() error { return nil }

// Records returns the stored records.
func (m *MemorySink) Records() []model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Record(nil), m.records...)
}

// Snapshot returns the last written graph, or nil.
func (m *MemorySink) Snapshot() *model.Graph {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Resets returns how many times Reset was called.
func (m *MemorySink) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}
