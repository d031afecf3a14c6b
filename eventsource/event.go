// Package eventsource provides the append-only journal the engine uses
// to persist operation records: an Event type, a Store interface with
// optimistic concurrency, and memory and SQLite implementations.
//
// The journal records commands (operation name plus arguments), not the
// derived component events; replaying the commands through the engine
// rebuilds identical state because the core is deterministic.
package eventsource

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common store errors.
var (
	// ErrConcurrencyConflict is returned by Append when the expected
	// version does not match the stream's current version.
	ErrConcurrencyConflict = errors.New("eventsource: stream version conflict")

	// ErrStreamNotFound is returned by Read for an unknown stream.
	ErrStreamNotFound = errors.New("eventsource: stream not found")
)

// Event is a single journal record.
type Event struct {
	// ID is a unique record identifier.
	ID string `json:"id"`

	// StreamID identifies the stream (one per engine instance).
	StreamID string `json:"streamId"`

	// Type is the record type name (e.g. "token.transfer").
	Type string `json:"type"`

	// Version is the record's position in its stream, assigned by
	// Append. The first record of a stream has version 0.
	Version int `json:"version"`

	// Data is the JSON-encoded payload.
	Data json.RawMessage `json:"data,omitempty"`

	// Timestamp is when the record was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID and the payload marshaled to
// JSON. Version is assigned later by Store.Append.
func NewEvent(streamID, eventType string, data any) (*Event, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("eventsource: marshal payload: %w", err)
		}
		raw = encoded
	}
	return &Event{
		ID:        uuid.NewString(),
		StreamID:  streamID,
		Type:      eventType,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
