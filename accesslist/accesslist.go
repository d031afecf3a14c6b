// Package accesslist implements an address whitelist gate: a set of
// authorized principals with idempotent membership changes and a
// reusable caller guard.
package accesslist

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnauthorized    = errors.New("accesslist: caller is not the primary")
	ErrNotWhitelisted  = errors.New("accesslist: principal is not whitelisted")
	ErrInvalidArgument = errors.New("accesslist: invalid argument")
)

// Event is a record emitted by a successful membership change.
type Event interface {
	// Kind returns the event type name.
	Kind() string
}

// AddedEvent records a principal joining the whitelist. Emitted once per
// principal that actually joined; idempotent no-ops emit nothing.
type AddedEvent struct {
	Principal string `json:"principal"`
}

// Kind returns "WhitelistedAddressAdded".
func (AddedEvent) Kind() string { return "WhitelistedAddressAdded" }

// RemovedEvent records a principal leaving the whitelist.
type RemovedEvent struct {
	Principal string `json:"principal"`
}

// Kind returns "WhitelistedAddressRemoved".
func (RemovedEvent) Kind() string { return "WhitelistedAddressRemoved" }

// PrimaryTransferredEvent records a change of the primary principal.
type PrimaryTransferredEvent struct {
	Previous string `json:"previous"`
	Next     string `json:"next"`
}

// Kind returns "PrimaryTransferred".
func (PrimaryTransferredEvent) Kind() string { return "PrimaryTransferred" }

// Guard is a reusable capability check: it returns nil when the caller
// is whitelisted and ErrNotWhitelisted otherwise. Operations gated on
// membership take a Guard instead of duplicating the check.
type Guard func(caller string) error

// AccessList owns the membership set. All mutating operations execute
// under a single writer lock.
type AccessList struct {
	mu      sync.RWMutex
	primary string
	members map[string]bool
}

// New creates an empty access list administered by primary.
func New(primary string) (*AccessList, error) {
	if primary == "" {
		return nil, fmt.Errorf("%w: empty primary", ErrInvalidArgument)
	}
	return &AccessList{
		primary: primary,
		members: make(map[string]bool),
	}, nil
}

// Add inserts principal into the whitelist. Primary only. The returned
// bool reports whether membership actually changed; adding an existing
// member is a no-op that emits nothing.
func (a *AccessList) Add(caller, principal string) (bool, []Event, error) {
	return a.AddBatch(caller, []string{principal})
}

// AddBatch inserts each principal, emitting one event per principal that
// actually joined. It reports whether at least one member was added. The
// whole batch applies or none of it does.
func (a *AccessList) AddBatch(caller string, principals []string) (bool, []Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.primary {
		return false, nil, ErrUnauthorized
	}
	for _, p := range principals {
		if p == "" {
			return false, nil, fmt.Errorf("%w: empty principal", ErrInvalidArgument)
		}
	}
	var events []Event
	for _, p := range principals {
		if a.members[p] {
			continue
		}
		a.members[p] = true
		events = append(events, AddedEvent{Principal: p})
	}
	return len(events) > 0, events, nil
}

// Remove deletes principal from the whitelist. Symmetric to Add.
func (a *AccessList) Remove(caller, principal string) (bool, []Event, error) {
	return a.RemoveBatch(caller, []string{principal})
}

// RemoveBatch deletes each principal, emitting one event per principal
// that was actually removed. It reports whether at least one member was
// removed. The whole batch applies or none of it does.
func (a *AccessList) RemoveBatch(caller string, principals []string) (bool, []Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.primary {
		return false, nil, ErrUnauthorized
	}
	for _, p := range principals {
		if p == "" {
			return false, nil, fmt.Errorf("%w: empty principal", ErrInvalidArgument)
		}
	}
	var events []Event
	for _, p := range principals {
		if !a.members[p] {
			continue
		}
		delete(a.members, p)
		events = append(events, RemovedEvent{Principal: p})
	}
	return len(events) > 0, events, nil
}

// Contains reports whether principal is whitelisted. Pure query.
func (a *AccessList) Contains(principal string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.members[principal]
}

// Guard returns the membership capability check for this list.
func (a *AccessList) Guard() Guard {
	return func(caller string) error {
		if !a.Contains(caller) {
			return fmt.Errorf("%w: %s", ErrNotWhitelisted, caller)
		}
		return nil
	}
}

// TransferPrimary hands the primary role to next. Only the current
// primary may call, and the empty principal is rejected.
func (a *AccessList) TransferPrimary(caller, next string) ([]Event, error) {
	if next == "" {
		return nil, fmt.Errorf("%w: empty principal", ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.primary {
		return nil, ErrUnauthorized
	}
	previous := a.primary
	a.primary = next
	return []Event{PrimaryTransferredEvent{Previous: previous, Next: next}}, nil
}

// Primary returns the primary principal.
func (a *AccessList) Primary() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.primary
}

// Members returns a copy of the current membership.
func (a *AccessList) Members() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.members))
	for p := range a.members {
		out = append(out, p)
	}
	return out
}
