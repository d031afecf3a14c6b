package eventsource

import (
	"context"
	"sync"
)

// EventFilter selects events for ReadAll. Zero-value fields match
// everything.
type EventFilter struct {
	// StreamID restricts to a single stream.
	StreamID string

	// Types restricts to the given record types.
	Types []string
}

func (f EventFilter) matches(e *Event) bool {
	if f.StreamID != "" && e.StreamID != f.StreamID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Store is an append-only event journal with per-stream optimistic
// concurrency.
type Store interface {
	// Append adds events to a stream. expectedVersion must equal the
	// stream's current version (-1 for a new stream) or
	// ErrConcurrencyConflict is returned. It returns the stream's new
	// version.
	Append(ctx context.Context, streamID string, expectedVersion int, events []*Event) (int, error)

	// Read returns a stream's events starting at fromVersion, in order.
	Read(ctx context.Context, streamID string, fromVersion int) ([]*Event, error)

	// ReadAll returns all events matching the filter, in append order.
	ReadAll(ctx context.Context, filter EventFilter) ([]*Event, error)

	// StreamVersion returns the stream's current version, or -1 if the
	// stream does not exist.
	StreamVersion(ctx context.Context, streamID string) (int, error)

	// DeleteStream removes a stream and its events.
	DeleteStream(ctx context.Context, streamID string) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-memory Store, suitable for tests and ephemeral
// engines.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]*Event
	order   []*Event // global append order for ReadAll
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[string][]*Event),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, streamID string, expectedVersion int, events []*Event) (int, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamID]
	current := len(stream) - 1
	if expectedVersion != current {
		return current, ErrConcurrencyConflict
	}

	for _, e := range events {
		copied := *e
		copied.StreamID = streamID
		copied.Version = len(stream)
		stream = append(stream, &copied)
		s.order = append(s.order, &copied)
	}
	s.streams[streamID] = stream
	return len(stream) - 1, nil
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context, streamID string, fromVersion int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[streamID]
	var out []*Event
	for _, e := range stream {
		if e.Version >= fromVersion {
			out = append(out, e)
		}
	}
	return out, nil
}

// ReadAll implements Store.
func (s *MemoryStore) ReadAll(_ context.Context, filter EventFilter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.order {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// StreamVersion implements Store.
func (s *MemoryStore) StreamVersion(_ context.Context, streamID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[streamID]) - 1, nil
}

// DeleteStream implements Store.
func (s *MemoryStore) DeleteStream(_ context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.streams, streamID)
	kept := s.order[:0]
	for _, e := range s.order {
		if e.StreamID != streamID {
			kept = append(kept, e)
		}
	}
	s.order = kept
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
