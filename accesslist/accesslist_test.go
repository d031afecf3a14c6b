package accesslist_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/crowdsale-xyz/go-crowdsale/accesslist"
)

func newTestList(t *testing.T) *accesslist.AccessList {
	t.Helper()
	a, err := accesslist.New("primary")
	if err != nil {
		t.Fatalf("new access list: %v", err)
	}
	return a
}

func TestAddIdempotent(t *testing.T) {
	a := newTestList(t)

	changed, events, err := a.Add("primary", "x")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !changed || len(events) != 1 {
		t.Errorf("first add: changed=%v events=%d, want true/1", changed, len(events))
	}

	changed, events, err = a.Add("primary", "x")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if changed || len(events) != 0 {
		t.Errorf("second add: changed=%v events=%d, want false/0", changed, len(events))
	}
	if !a.Contains("x") {
		t.Errorf("x not contained after add")
	}
}

func TestAddBatch(t *testing.T) {
	a := newTestList(t)
	if _, _, err := a.Add("primary", "x"); err != nil {
		t.Fatalf("add: %v", err)
	}

	changed, events, err := a.AddBatch("primary", []string{"x", "y", "z"})
	if err != nil {
		t.Fatalf("add batch: %v", err)
	}
	if !changed {
		t.Errorf("batch with new members reported no change")
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events (x already present), got %d", len(events))
	}

	members := a.Members()
	sort.Strings(members)
	want := []string{"x", "y", "z"}
	if len(members) != len(want) {
		t.Fatalf("members = %v, want %v", members, want)
	}
	for i := range want {
		if members[i] != want[i] {
			t.Errorf("members = %v, want %v", members, want)
			break
		}
	}
}

func TestRemoveBatch(t *testing.T) {
	a := newTestList(t)
	if _, _, err := a.AddBatch("primary", []string{"x", "y"}); err != nil {
		t.Fatalf("add batch: %v", err)
	}

	// Succeeds if at least one member was actually removed.
	changed, events, err := a.RemoveBatch("primary", []string{"y", "ghost"})
	if err != nil {
		t.Fatalf("remove batch: %v", err)
	}
	if !changed || len(events) != 1 {
		t.Errorf("remove batch: changed=%v events=%d, want true/1", changed, len(events))
	}

	changed, _, err = a.RemoveBatch("primary", []string{"ghost"})
	if err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	if changed {
		t.Errorf("removing only absent members reported a change")
	}
}

func TestBatchAtomicity(t *testing.T) {
	a := newTestList(t)

	// A rejected batch must leave no trace of its earlier entries.
	changed, events, err := a.AddBatch("primary", []string{"alice", "bob", ""})
	if !errors.Is(err, accesslist.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if changed || len(events) != 0 {
		t.Errorf("failed batch: changed=%v events=%d, want false/0", changed, len(events))
	}
	if a.Contains("alice") || a.Contains("bob") {
		t.Errorf("failed AddBatch left members behind: %v", a.Members())
	}

	if _, _, err := a.AddBatch("primary", []string{"alice", "bob"}); err != nil {
		t.Fatalf("add batch: %v", err)
	}
	changed, events, err = a.RemoveBatch("primary", []string{"alice", ""})
	if !errors.Is(err, accesslist.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if changed || len(events) != 0 {
		t.Errorf("failed batch: changed=%v events=%d, want false/0", changed, len(events))
	}
	if !a.Contains("alice") || !a.Contains("bob") {
		t.Errorf("failed RemoveBatch dropped members: %v", a.Members())
	}
}

func TestPrimaryGating(t *testing.T) {
	a := newTestList(t)
	if _, _, err := a.Add("intruder", "x"); !errors.Is(err, accesslist.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := a.Remove("intruder", "x"); !errors.Is(err, accesslist.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := a.Add("primary", ""); !errors.Is(err, accesslist.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty principal, got %v", err)
	}
}

func TestGuard(t *testing.T) {
	a := newTestList(t)
	guard := a.Guard()

	if err := guard("x"); !errors.Is(err, accesslist.ErrNotWhitelisted) {
		t.Errorf("expected ErrNotWhitelisted, got %v", err)
	}
	if _, _, err := a.Add("primary", "x"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := guard("x"); err != nil {
		t.Errorf("guard rejected whitelisted principal: %v", err)
	}
	// Guard tracks later removals.
	if _, _, err := a.Remove("primary", "x"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := guard("x"); !errors.Is(err, accesslist.ErrNotWhitelisted) {
		t.Errorf("guard did not track removal: %v", err)
	}
}

func TestTransferPrimary(t *testing.T) {
	a := newTestList(t)
	if _, err := a.TransferPrimary("primary", ""); !errors.Is(err, accesslist.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := a.TransferPrimary("primary", "next"); err != nil {
		t.Fatalf("transfer primary: %v", err)
	}
	if _, _, err := a.Add("primary", "x"); !errors.Is(err, accesslist.ErrUnauthorized) {
		t.Errorf("previous primary still authorized")
	}
	if _, _, err := a.Add("next", "x"); err != nil {
		t.Errorf("new primary rejected: %v", err)
	}
}
