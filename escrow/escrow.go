// Package escrow implements a refund escrow: deposits are collected from
// multiple parties while the escrow is Active, then either released to a
// beneficiary (Closed) or returned to the depositors (Refunding).
//
// The lifecycle is one-directional. Refunding and Closed are terminal.
// Whether a depositor may withdraw is decided by an injected policy
// predicate, not by the operations themselves, so alternative escrow
// flavors can reuse the same machine.
package escrow

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// State is the escrow lifecycle state.
type State int

const (
	// Active accepts deposits.
	Active State = iota
	// Refunding lets depositors withdraw their accumulated entries.
	Refunding
	// Closed lets the beneficiary drain the pooled balance once.
	Closed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Refunding:
		return "refunding"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WithdrawalPolicy decides whether a depositor may withdraw in the given
// state. The default policy permits withdrawal only while Refunding.
type WithdrawalPolicy func(st State, payee string) bool

// RefundingOnly is the default withdrawal policy.
func RefundingOnly(st State, _ string) bool {
	return st == Refunding
}

// book is the internal deposit ledger: accumulated amount per depositor
// plus the pooled total. It is owned exclusively by the escrow.
type book struct {
	deposits map[string]*uint256.Int
	pool     *uint256.Int
}

func newBook() *book {
	return &book{
		deposits: make(map[string]*uint256.Int),
		pool:     uint256.NewInt(0),
	}
}

func (b *book) depositOf(payee string) *uint256.Int {
	if d, ok := b.deposits[payee]; ok {
		return d
	}
	return uint256.NewInt(0)
}

// credit adds amount to payee's entry and the pool.
func (b *book) credit(payee string, amount *uint256.Int) error {
	entry, overflow := new(uint256.Int).AddOverflow(b.depositOf(payee), amount)
	if overflow {
		return ErrArithmeticOverflow
	}
	pool, overflow := new(uint256.Int).AddOverflow(b.pool, amount)
	if overflow {
		return ErrArithmeticOverflow
	}
	b.deposits[payee] = entry
	b.pool = pool
	return nil
}

// clear zeroes payee's entry, removes it from the pool, and returns the
// cleared amount.
func (b *book) clear(payee string) (*uint256.Int, error) {
	entry := b.depositOf(payee)
	pool, underflow := new(uint256.Int).SubOverflow(b.pool, entry)
	if underflow {
		return nil, ErrArithmeticOverflow
	}
	b.deposits[payee] = uint256.NewInt(0)
	b.pool = pool
	return entry, nil
}

// Config holds constructor-time escrow configuration.
type Config struct {
	// Primary is the principal authorized for transitions and gates.
	Primary string

	// Beneficiary receives the pooled balance when the escrow closes.
	Beneficiary string

	// Policy decides withdrawal permission; nil selects RefundingOnly.
	Policy WithdrawalPolicy
}

// Escrow is the refund escrow state machine. All mutating operations
// execute under a single writer lock.
type Escrow struct {
	mu sync.RWMutex

	primary     string
	beneficiary string

	state          State
	saleFinished   bool
	softCapReached bool
	drained        bool

	book            *book
	allowWithdrawal WithdrawalPolicy
}

// New creates an escrow in the Active state with no deposits.
func New(cfg Config) (*Escrow, error) {
	if cfg.Primary == "" {
		return nil, fmt.Errorf("%w: empty primary", ErrInvalidArgument)
	}
	if cfg.Beneficiary == "" {
		return nil, fmt.Errorf("%w: empty beneficiary", ErrInvalidArgument)
	}
	policy := cfg.Policy
	if policy == nil {
		policy = RefundingOnly
	}
	return &Escrow{
		primary:         cfg.Primary,
		beneficiary:     cfg.Beneficiary,
		state:           Active,
		book:            newBook(),
		allowWithdrawal: policy,
	}, nil
}

// Deposit adds amount to payee's accumulated entry. Only permitted while
// Active.
func (e *Escrow) Deposit(payee string, amount *uint256.Int) ([]Event, error) {
	if payee == "" {
		return nil, fmt.Errorf("%w: empty payee", ErrInvalidArgument)
	}
	if amount == nil || amount.IsZero() {
		return nil, fmt.Errorf("%w: zero deposit", ErrInvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Active {
		return nil, fmt.Errorf("%w: deposit in %s", ErrInvalidState, e.state)
	}
	if err := e.book.credit(payee, amount); err != nil {
		return nil, err
	}
	return []Event{DepositedEvent{Payee: payee, Amount: amount.Clone()}}, nil
}

// Withdraw pays out and zeroes payee's full accumulated entry. The entry
// is zeroed before the payout amount is surfaced, so a re-entrant call
// observes an empty entry. Permitted only when the withdrawal policy
// holds (by default: state is Refunding). A second consecutive withdraw
// succeeds and pays zero.
func (e *Escrow) Withdraw(payee string) (*uint256.Int, []Event, error) {
	if payee == "" {
		return nil, nil, fmt.Errorf("%w: empty payee", ErrInvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.allowWithdrawal(e.state, payee) {
		return nil, nil, fmt.Errorf("%w: withdraw in %s", ErrInvalidState, e.state)
	}
	payout, err := e.book.clear(payee)
	if err != nil {
		return nil, nil, err
	}
	return payout, []Event{WithdrawnEvent{Payee: payee, Amount: payout.Clone()}}, nil
}

// EnableRefunds transitions Active -> Refunding. Primary only,
// irreversible.
func (e *Escrow) EnableRefunds(caller string) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.primary {
		return nil, ErrUnauthorized
	}
	if e.state != Active {
		return nil, fmt.Errorf("%w: enableRefunds in %s", ErrInvalidState, e.state)
	}
	e.state = Refunding
	return []Event{RefundsEnabledEvent{}}, nil
}

// Close transitions Active -> Closed. Primary only, and both the
// sale-finished and soft-cap gates must be set. Irreversible.
func (e *Escrow) Close(caller string) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.primary {
		return nil, ErrUnauthorized
	}
	if e.state != Active {
		return nil, fmt.Errorf("%w: close in %s", ErrInvalidState, e.state)
	}
	if !e.saleFinished || !e.softCapReached {
		return nil, ErrGatesNotSet
	}
	e.state = Closed
	return []Event{ClosedEvent{}}, nil
}

// BeneficiaryWithdraw drains the entire pooled balance to the
// beneficiary. Permitted only when Closed. The pool is zeroed before the
// payout amount is surfaced; subsequent calls succeed and pay zero.
func (e *Escrow) BeneficiaryWithdraw() (*uint256.Int, []Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Closed {
		return nil, nil, fmt.Errorf("%w: beneficiaryWithdraw in %s", ErrInvalidState, e.state)
	}
	if e.drained {
		return uint256.NewInt(0), nil, nil
	}
	payout := e.book.pool.Clone()
	e.book.pool = uint256.NewInt(0)
	e.drained = true
	return payout, []Event{BeneficiaryWithdrawnEvent{Beneficiary: e.beneficiary, Amount: payout.Clone()}}, nil
}

// SetSaleFinished toggles the sale-finished gate. Primary only. The gate
// has no side effects beyond the flag.
func (e *Escrow) SetSaleFinished(caller string, v bool) ([]Event, error) {
	return e.setGate(caller, "saleFinished", v)
}

// SetSoftCapReached toggles the soft-cap gate. Primary only.
func (e *Escrow) SetSoftCapReached(caller string, v bool) ([]Event, error) {
	return e.setGate(caller, "softCapReached", v)
}

func (e *Escrow) setGate(caller, gate string, v bool) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.primary {
		return nil, ErrUnauthorized
	}
	switch gate {
	case "saleFinished":
		e.saleFinished = v
	case "softCapReached":
		e.softCapReached = v
	}
	return []Event{GateChangedEvent{Gate: gate, Value: v}}, nil
}

// TransferPrimary hands the primary role to next. Only the current
// primary may call, and the empty principal is rejected.
func (e *Escrow) TransferPrimary(caller, next string) ([]Event, error) {
	if next == "" {
		return nil, fmt.Errorf("%w: empty principal", ErrInvalidArgument)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.primary {
		return nil, ErrUnauthorized
	}
	previous := e.primary
	e.primary = next
	return []Event{PrimaryTransferredEvent{Previous: previous, Next: next}}, nil
}

// State returns the current lifecycle state.
func (e *Escrow) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// DepositOf returns payee's accumulated entry.
func (e *Escrow) DepositOf(payee string) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.depositOf(payee).Clone()
}

// Pool returns the remaining pooled balance.
func (e *Escrow) Pool() *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.pool.Clone()
}

// Primary returns the primary principal.
func (e *Escrow) Primary() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.primary
}

// Beneficiary returns the beneficiary principal.
func (e *Escrow) Beneficiary() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.beneficiary
}

// WithdrawalAllowed reports whether the policy currently permits payee
// to withdraw.
func (e *Escrow) WithdrawalAllowed(payee string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.allowWithdrawal(e.state, payee)
}

// Snapshot is a consistent value copy of the escrow state.
type Snapshot struct {
	Primary        string                  `json:"primary"`
	Beneficiary    string                  `json:"beneficiary"`
	State          string                  `json:"state"`
	SaleFinished   bool                    `json:"saleFinished"`
	SoftCapReached bool                    `json:"softCapReached"`
	Drained        bool                    `json:"drained"`
	Pool           *uint256.Int            `json:"pool"`
	Deposits       map[string]*uint256.Int `json:"deposits"`
}

// Snapshot returns a deep copy of the current state.
func (e *Escrow) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		Primary:        e.primary,
		Beneficiary:    e.beneficiary,
		State:          e.state.String(),
		SaleFinished:   e.saleFinished,
		SoftCapReached: e.softCapReached,
		Drained:        e.drained,
		Pool:           e.book.pool.Clone(),
		Deposits:       make(map[string]*uint256.Int, len(e.book.deposits)),
	}
	for p, d := range e.book.deposits {
		snap.Deposits[p] = d.Clone()
	}
	return snap
}
