// Package label_store keeps the user's bar-range annotations: an
// in-memory store the interaction layer mutates, with DuckDB persistence
// and a periodic autosave job.
package label_store

import (
	"sort"
	"sync"
	"time"

	"candlelab/go_src/chart_exceptions"
	"candlelab/go_src/schema"

	"github.com/google/uuid"
)

// Store is the in-memory label set. Safe for concurrent use; the UI
// thread writes and the autosave job reads.
type Store struct {
	mu     sync.RWMutex
	labels map[uuid.UUID]schema.Label
	dirty  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{labels: make(map[uuid.UUID]schema.Label)}
}

// Add creates a label over the inclusive bar range [startIndex, endIndex]
// with the given category. Reversed ranges are normalized, so a
// right-to-left drag works the same as a left-to-right one.
func (s *Store) Add(startIndex, endIndex int, category string) (schema.Label, error) {
	if endIndex < startIndex {
		startIndex, endIndex = endIndex, startIndex
	}
	label := schema.Label{
		ID:         uuid.New(),
		StartIndex: startIndex,
		EndIndex:   endIndex,
		Category:   category,
		CreatedAt:  time.Now().UTC(),
	}
	if err := label.Validate(); err != nil {
		return schema.Label{}, &chart_exceptions.LabelStoreError{
			Message:   err.Error(),
			Operation: "add",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[label.ID] = label
	s.dirty = true
	return label, nil
}

// Put inserts or replaces a label with its identity preserved. Used when
// loading persisted labels and when editing an existing one.
func (s *Store) Put(label schema.Label) error {
	if err := label.Validate(); err != nil {
		return &chart_exceptions.LabelStoreError{Message: err.Error(), Operation: "put"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[label.ID] = label
	s.dirty = true
	return nil
}

// Remove deletes the label with the given id.
func (s *Store) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.labels[id]; !ok {
		return &chart_exceptions.LabelStoreError{
			Message:   "label " + id.String() + " not found",
			Operation: "remove",
		}
	}
	delete(s.labels, id)
	s.dirty = true
	return nil
}

// Get returns the label with the given id.
func (s *Store) Get(id uuid.UUID) (schema.Label, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, ok := s.labels[id]
	return label, ok
}

// At returns the labels covering the bar at index, oldest first.
func (s *Store) At(index int) []schema.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schema.Label
	for _, label := range s.labels {
		if label.Covers(index) {
			out = append(out, label)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// All returns every label ordered by start index, then creation time.
func (s *Store) All() []schema.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Label, 0, len(s.labels))
	for _, label := range s.labels {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartIndex != out[j].StartIndex {
			return out[i].StartIndex < out[j].StartIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of labels.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.labels)
}

// Dirty reports whether the store has unsaved changes.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// replaceAll swaps the whole label set, used by DB.LoadInto. The loaded
// state is by definition in sync with disk.
func (s *Store) replaceAll(labels []schema.Label) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = make(map[uuid.UUID]schema.Label, len(labels))
	for _, label := range labels {
		s.labels[label.ID] = label
	}
	s.dirty = false
}

// markClean records a successful save.
func (s *Store) markClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}
