package eventsource_test

import (
	"context"
	"errors"
	"testing"

	"github.com/crowdsale-xyz/go-crowdsale/eventsource"
)

type payload struct {
	Actor  string `json:"actor"`
	Amount string `json:"amount"`
}

func mustEvent(t *testing.T, stream, kind string, data any) *eventsource.Event {
	t.Helper()
	e, err := eventsource.NewEvent(stream, kind, data)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	return e
}

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, open func(t *testing.T) eventsource.Store) {
	ctx := context.Background()

	t.Run("AppendAndRead", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		e1 := mustEvent(t, "sale-1", "token.mint", payload{Actor: "owner", Amount: "500"})
		e2 := mustEvent(t, "sale-1", "token.transfer", payload{Actor: "owner", Amount: "200"})

		version, err := s.Append(ctx, "sale-1", -1, []*eventsource.Event{e1, e2})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if version != 1 {
			t.Errorf("version = %d, want 1", version)
		}

		got, err := s.Read(ctx, "sale-1", 0)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("read %d events, want 2", len(got))
		}
		if got[0].Version != 0 || got[1].Version != 1 {
			t.Errorf("versions = %d,%d, want 0,1", got[0].Version, got[1].Version)
		}
		if got[0].Type != "token.mint" {
			t.Errorf("type = %q, want token.mint", got[0].Type)
		}
		var p payload
		if err := got[0].Decode(&p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.Actor != "owner" || p.Amount != "500" {
			t.Errorf("payload = %+v", p)
		}
	})

	t.Run("ConcurrencyConflict", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		e := mustEvent(t, "sale-1", "token.mint", nil)
		if _, err := s.Append(ctx, "sale-1", -1, []*eventsource.Event{e}); err != nil {
			t.Fatalf("append: %v", err)
		}

		stale := mustEvent(t, "sale-1", "token.mint", nil)
		if _, err := s.Append(ctx, "sale-1", -1, []*eventsource.Event{stale}); !errors.Is(err, eventsource.ErrConcurrencyConflict) {
			t.Errorf("expected ErrConcurrencyConflict, got %v", err)
		}

		next := mustEvent(t, "sale-1", "token.mint", nil)
		if _, err := s.Append(ctx, "sale-1", 0, []*eventsource.Event{next}); err != nil {
			t.Errorf("append at correct version: %v", err)
		}
	})

	t.Run("StreamVersion", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		v, err := s.StreamVersion(ctx, "missing")
		if err != nil {
			t.Fatalf("stream version: %v", err)
		}
		if v != -1 {
			t.Errorf("version of unknown stream = %d, want -1", v)
		}

		e := mustEvent(t, "sale-1", "token.mint", nil)
		if _, err := s.Append(ctx, "sale-1", -1, []*eventsource.Event{e}); err != nil {
			t.Fatalf("append: %v", err)
		}
		v, err = s.StreamVersion(ctx, "sale-1")
		if err != nil {
			t.Fatalf("stream version: %v", err)
		}
		if v != 0 {
			t.Errorf("version = %d, want 0", v)
		}
	})

	t.Run("ReadFromVersion", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		events := []*eventsource.Event{
			mustEvent(t, "sale-1", "token.mint", nil),
			mustEvent(t, "sale-1", "token.transfer", nil),
			mustEvent(t, "sale-1", "token.approve", nil),
		}
		if _, err := s.Append(ctx, "sale-1", -1, events); err != nil {
			t.Fatalf("append: %v", err)
		}

		got, err := s.Read(ctx, "sale-1", 1)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("read %d events, want 2", len(got))
		}
		if got[0].Type != "token.transfer" {
			t.Errorf("first type = %q, want token.transfer", got[0].Type)
		}
	})

	t.Run("ReadAllWithFilter", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		if _, err := s.Append(ctx, "sale-1", -1, []*eventsource.Event{
			mustEvent(t, "sale-1", "token.mint", nil),
			mustEvent(t, "sale-1", "escrow.deposit", nil),
		}); err != nil {
			t.Fatalf("append sale-1: %v", err)
		}
		if _, err := s.Append(ctx, "sale-2", -1, []*eventsource.Event{
			mustEvent(t, "sale-2", "token.mint", nil),
		}); err != nil {
			t.Fatalf("append sale-2: %v", err)
		}

		got, err := s.ReadAll(ctx, eventsource.EventFilter{})
		if err != nil {
			t.Fatalf("read all: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("read all = %d events, want 3", len(got))
		}

		got, err = s.ReadAll(ctx, eventsource.EventFilter{StreamID: "sale-1"})
		if err != nil {
			t.Fatalf("read all by stream: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("stream filter = %d events, want 2", len(got))
		}

		got, err = s.ReadAll(ctx, eventsource.EventFilter{Types: []string{"token.mint"}})
		if err != nil {
			t.Fatalf("read all by type: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("type filter = %d events, want 2", len(got))
		}
	})

	t.Run("DeleteStream", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		e := mustEvent(t, "sale-1", "token.mint", nil)
		if _, err := s.Append(ctx, "sale-1", -1, []*eventsource.Event{e}); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := s.DeleteStream(ctx, "sale-1"); err != nil {
			t.Fatalf("delete stream: %v", err)
		}
		v, err := s.StreamVersion(ctx, "sale-1")
		if err != nil {
			t.Fatalf("stream version: %v", err)
		}
		if v != -1 {
			t.Errorf("version after delete = %d, want -1", v)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) eventsource.Store {
		return eventsource.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) eventsource.Store {
		s, err := eventsource.NewSQLiteStore(":memory:")
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		return s
	})
}
