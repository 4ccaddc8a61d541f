package state

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process LabelStore that stands in for the mailbox in
// state and workflow tests. BeforeModify injects write failures and races.
type MemoryStore struct {
	mu     sync.Mutex
	labels map[string][]string
	writes int

	// BeforeModify, when set, runs before each write and may fail it.
	BeforeModify func(ids []string) error
}

// NewMemoryStore seeds the store with message labels.
func NewMemoryStore(seed map[string][]string) *MemoryStore {
	m := &MemoryStore{labels: make(map[string][]string, len(seed))}
	for id, labels := range seed {
		m.labels[id] = slices.Clone(labels)
	}
	return m
}

// Labels implements LabelStore.
func (m *MemoryStore) Labels(_ context.Context, ids []string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(ids))
	for _, id := range ids {
		if labels, ok := m.labels[id]; ok {
			out[id] = slices.Clone(labels)
		}
	}
	return out, nil
}

// Modify implements LabelStore.
func (m *MemoryStore) Modify(_ context.Context, ids []string, add, remove []string) error {
	if m.BeforeModify != nil {
		if err := m.BeforeModify(ids); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	for _, id := range ids {
		labels, ok := m.labels[id]
		if !ok {
			continue
		}
		labels = slices.DeleteFunc(labels, func(l string) bool {
			return slices.ContainsFunc(remove, func(r string) bool { return strings.EqualFold(l, r) })
		})
		for _, a := range add {
			if !hasLabel(labels, a) {
				labels = append(labels, a)
			}
		}
		sort.Strings(labels)
		m.labels[id] = labels
	}
	return nil
}

// Set replaces the labels of one message.
func (m *MemoryStore) Set(id string, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels[id] = slices.Clone(labels)
}

// Get returns the labels of one message.
func (m *MemoryStore) Get(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.labels[id])
}

// Writes counts Modify calls that reached the store.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Snapshot copies the full label state.
func (m *MemoryStore) Snapshot() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(m.labels))
	for id, labels := range m.labels {
		out[id] = slices.Clone(labels)
	}
	return out
}
