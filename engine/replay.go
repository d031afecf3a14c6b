package engine

import (
	"context"
	"fmt"
)

// Replay rebuilds engine state by re-dispatching every journaled command
// in order. The components are deterministic, so the rebuilt state is
// identical to the state at the time of the last append. Rules are
// skipped: commands they fired are already in the journal.
//
// Replay must run on a fresh engine before any new command is
// dispatched.
func (e *Engine) Replay(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	records, err := e.store.Read(ctx, e.streamID, 0)
	if err != nil {
		return fmt.Errorf("engine: read journal: %w", err)
	}

	e.mu.Lock()
	e.replaying = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.replaying = false
		e.mu.Unlock()
	}()

	for _, rec := range records {
		if _, err := e.Dispatch(ctx, Command{Op: rec.Type, Args: rec.Data}); err != nil {
			return fmt.Errorf("engine: replay %s at version %d: %w", rec.Type, rec.Version, err)
		}
		e.mu.Lock()
		e.version = rec.Version
		e.mu.Unlock()
	}
	return nil
}
