package engine

import (
	"context"

	"github.com/holiman/uint256"
)

// Condition is a predicate over the engine snapshot.
type Condition func(snap Snapshot) bool

// Action runs when its condition holds. Actions dispatch commands of
// their own and are journaled like any other command.
type Action func(ctx context.Context, e *Engine) error

// Rule pairs a condition with an action. Rules are evaluated after every
// successful command.
type Rule struct {
	Name      string
	Condition Condition
	Action    Action
}

// AddRule registers a rule.
func (e *Engine) AddRule(r *Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
}

// checkRules evaluates all rules against a fresh snapshot. Runs without
// the engine lock so actions can dispatch.
func (e *Engine) checkRules(ctx context.Context) {
	e.mu.Lock()
	rules := make([]*Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.Unlock()

	if len(rules) == 0 {
		return
	}
	snap := e.Snapshot()
	for _, r := range rules {
		if !r.Condition(snap) {
			continue
		}
		if err := r.Action(ctx, e); err != nil {
			e.log.WithError(err).WithField("rule", r.Name).Warn("rule action failed")
		}
	}
}

// SoftCapRule marks the escrow soft-cap gate once pooled deposits reach
// threshold. The action runs with the escrow primary's authority and is
// skipped once the gate is already set.
func SoftCapRule(threshold *uint256.Int) *Rule {
	want := threshold.Clone()
	return &Rule{
		Name: "soft-cap-reached",
		Condition: func(snap Snapshot) bool {
			return !snap.Escrow.SoftCapReached &&
				!snap.Escrow.Pool.Lt(want) &&
				snap.Escrow.State == "active"
		},
		Action: func(ctx context.Context, e *Engine) error {
			_, err := e.SetSoftCapReached(ctx, e.escrow.Primary(), true)
			return err
		},
	}
}
