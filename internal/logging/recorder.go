package logging

import (
	"context"
	"log/slog"
	"sync"
)

// Recorder is an in-memory handler for asserting on log output in tests.
type Recorder struct {
	mu      *sync.Mutex
	records *[]RecordedEntry
	attrs   []slog.Attr
}

// RecordedEntry is one captured log line with its flattened attributes.
type RecordedEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// NewRecorder returns a logger writing into a fresh Recorder.
func NewRecorder() (*slog.Logger, *Recorder) {
	rec := &Recorder{mu: &sync.Mutex{}, records: &[]RecordedEntry{}}
	return slog.New(rec), rec
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *Recorder) Handle(_ context.Context, record slog.Record) error {
	kvs := make([]kv, 0, record.NumAttrs()+len(r.attrs))
	for _, attr := range r.attrs {
		flattenAttr(&kvs, nil, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&kvs, nil, attr)
		return true
	})
	entry := RecordedEntry{Level: record.Level, Message: record.Message, Attrs: make(map[string]string, len(kvs))}
	for _, item := range kvs {
		entry.Attrs[item.key] = attrString(item.value)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.records = append(*r.records, entry)
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Recorder{mu: r.mu, records: r.records, attrs: append(append([]slog.Attr(nil), r.attrs...), attrs...)}
}

// WithGroup is not needed by callers; groups are flattened by key.
func (r *Recorder) WithGroup(string) slog.Handler { return r }

// Entries returns a snapshot of captured records.
func (r *Recorder) Entries() []RecordedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEntry(nil), (*r.records)...)
}

// Find returns the first entry whose event_type matches.
func (r *Recorder) Find(eventType string) (RecordedEntry, bool) {
	for _, entry := range r.Entries() {
		if entry.Attrs[FieldEventType] == eventType {
			return entry, true
		}
	}
	return RecordedEntry{}, false
}
