// Package ledger implements fixed-cap fungible token accounting: balances,
// allowances and supply counters with checked 256-bit arithmetic.
//
// The ledger is a standalone core with no transport or persistence concerns.
// Every mutating operation either fully applies and returns the event records
// it emitted, or fully fails with a typed error and no observable state change.
// Callers supply the authenticated identity for each call; the ledger only
// enforces the accounting rules.
package ledger

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

// PurchasePolicy selects how Purchase behaves when a payment buys more
// units than the sale cap allows.
type PurchasePolicy int

const (
	// RejectWhole rejects the entire payment when the sale cap would be
	// exceeded. This is the default.
	RejectWhole PurchasePolicy = iota

	// AcceptPartialAndRefundRemainder mints up to the sale cap and reports
	// the unspent payment as a refund.
	AcceptPartialAndRefundRemainder
)

// String returns the policy name.
func (p PurchasePolicy) String() string {
	switch p {
	case RejectWhole:
		return "reject-whole"
	case AcceptPartialAndRefundRemainder:
		return "accept-partial"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Config holds constructor-time ledger configuration.
type Config struct {
	// Owner is the principal authorized for mint, burn, sale-cap and
	// price administration. Must be non-empty.
	Owner string

	// MaxCap is the hard ceiling on total supply. Required.
	MaxCap *uint256.Int

	// Price is the exchange rate in native-currency units per token unit.
	// May be nil; Purchase fails until a price is set.
	Price *uint256.Int

	// Policy selects the Purchase cap behavior.
	Policy PurchasePolicy
}

// Ledger owns the balance table, the allowance table and the supply
// counters. All mutating operations execute under a single writer lock;
// reads take consistent snapshots under a read lock.
type Ledger struct {
	mu sync.RWMutex

	owner      string
	balances   map[string]*uint256.Int
	allowances map[string]map[string]*uint256.Int

	totalSupply *uint256.Int
	saleCap     *uint256.Int // portion of supply authorized for public sale
	maxCap      *uint256.Int
	price       *uint256.Int
	policy      PurchasePolicy

	// CheckConservation verifies sum(balances) == totalSupply after each
	// mutation (default: true). A violation is unrecoverable.
	CheckConservation bool
}

// New creates a ledger with zero supply.
func New(cfg Config) (*Ledger, error) {
	if cfg.Owner == "" {
		return nil, fmt.Errorf("%w: empty owner", ErrInvalidArgument)
	}
	if cfg.MaxCap == nil || cfg.MaxCap.IsZero() {
		return nil, fmt.Errorf("%w: maximum cap required", ErrInvalidArgument)
	}
	l := &Ledger{
		owner:             cfg.Owner,
		balances:          make(map[string]*uint256.Int),
		allowances:        make(map[string]map[string]*uint256.Int),
		totalSupply:       uint256.NewInt(0),
		saleCap:           uint256.NewInt(0),
		maxCap:            cfg.MaxCap.Clone(),
		policy:            cfg.Policy,
		CheckConservation: true,
	}
	if cfg.Price != nil {
		l.price = cfg.Price.Clone()
	}
	return l, nil
}

// Unlimited returns the allowance sentinel: the maximum representable
// value. An allowance equal to this value is never decremented by
// TransferFrom.
func Unlimited() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

// IsUnlimited reports whether x equals the unlimited-allowance sentinel.
func IsUnlimited(x *uint256.Int) bool {
	return x != nil && x.Eq(Unlimited())
}

// checkedAdd returns x+y or ErrArithmeticOverflow.
func checkedAdd(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

// checkedSub returns x-y or ErrArithmeticOverflow on underflow.
func checkedSub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

// checkedMul returns x*y or ErrArithmeticOverflow.
func checkedMul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return z, nil
}

// balanceOf returns the stored balance, or zero. Callers hold the lock.
func (l *Ledger) balanceOf(p string) *uint256.Int {
	if b, ok := l.balances[p]; ok {
		return b
	}
	return uint256.NewInt(0)
}

// credit adds amount to p's balance and to the total supply.
// Callers hold the lock and have already verified the cap.
func (l *Ledger) credit(p string, amount *uint256.Int) error {
	supply, err := checkedAdd(l.totalSupply, amount)
	if err != nil {
		return err
	}
	balance, err := checkedAdd(l.balanceOf(p), amount)
	if err != nil {
		return err
	}
	l.totalSupply = supply
	l.balances[p] = balance
	return nil
}

// conservation verifies sum(balances) == totalSupply. Callers hold the lock.
func (l *Ledger) conservation() error {
	if !l.CheckConservation {
		return nil
	}
	sum := uint256.NewInt(0)
	for _, b := range l.balances {
		next, overflow := new(uint256.Int).AddOverflow(sum, b)
		if overflow {
			return fmt.Errorf("%w: balance sum overflow", ErrConservation)
		}
		sum = next
	}
	if !sum.Eq(l.totalSupply) {
		return fmt.Errorf("%w: sum=%s supply=%s", ErrConservation, sum, l.totalSupply)
	}
	return nil
}

// Mint creates amount new units credited to the owner. Only the owner may
// mint, and the new total supply must not exceed the maximum cap.
func (l *Ledger) Mint(caller string, amount *uint256.Int) ([]Event, error) {
	if amount == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, ErrUnauthorized
	}
	supply, err := checkedAdd(l.totalSupply, amount)
	if err != nil {
		return nil, err
	}
	if supply.Gt(l.maxCap) {
		return nil, fmt.Errorf("%w: supply %s + %s exceeds cap %s",
			ErrSupplyCapExceeded, l.totalSupply, amount, l.maxCap)
	}
	if err := l.credit(l.owner, amount); err != nil {
		return nil, err
	}
	if err := l.conservation(); err != nil {
		return nil, err
	}
	return []Event{TransferEvent{From: "", To: l.owner, Amount: amount.Clone()}}, nil
}

// Burn destroys amount units from the owner's balance and reduces total
// supply. Only the owner may burn.
func (l *Ledger) Burn(caller string, amount *uint256.Int) ([]Event, error) {
	if amount == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, ErrUnauthorized
	}
	balance := l.balanceOf(l.owner)
	if balance.Lt(amount) {
		return nil, fmt.Errorf("%w: have %s, burn %s", ErrInsufficientBalance, balance, amount)
	}
	next, err := checkedSub(balance, amount)
	if err != nil {
		return nil, err
	}
	supply, err := checkedSub(l.totalSupply, amount)
	if err != nil {
		return nil, err
	}
	l.balances[l.owner] = next
	l.totalSupply = supply
	if err := l.conservation(); err != nil {
		return nil, err
	}
	return []Event{TransferEvent{From: l.owner, To: "", Amount: amount.Clone()}}, nil
}

// SetSaleCap raises the sellable supply by amount. The resulting sale cap
// may not exceed the maximum cap. Owner only.
func (l *Ledger) SetSaleCap(caller string, amount *uint256.Int) ([]Event, error) {
	if amount == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, ErrUnauthorized
	}
	next, err := checkedAdd(l.saleCap, amount)
	if err != nil {
		return nil, err
	}
	if next.Gt(l.maxCap) {
		return nil, fmt.Errorf("%w: sale cap %s exceeds maximum cap %s",
			ErrSupplyCapExceeded, next, l.maxCap)
	}
	l.saleCap = next
	return []Event{SaleCapRaisedEvent{Amount: amount.Clone(), SaleCap: next.Clone()}}, nil
}

// SetPrice sets the native-units-per-token exchange rate. Owner only.
func (l *Ledger) SetPrice(caller string, price *uint256.Int) error {
	if price == nil || price.IsZero() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrUnauthorized
	}
	l.price = price.Clone()
	return nil
}

// Transfer moves amount from one principal to another. A self-transfer
// succeeds and leaves the balance unchanged.
func (l *Ledger) Transfer(from, to string, amount *uint256.Int) ([]Event, error) {
	if amount == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidArgument)
	}
	if from == "" || to == "" {
		return nil, fmt.Errorf("%w: empty principal", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.move(from, to, amount); err != nil {
		return nil, err
	}
	if err := l.conservation(); err != nil {
		return nil, err
	}
	return []Event{TransferEvent{From: from, To: to, Amount: amount.Clone()}}, nil
}

// move debits from and credits to. Callers hold the lock.
func (l *Ledger) move(from, to string, amount *uint256.Int) error {
	source := l.balanceOf(from)
	if source.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, source, amount)
	}
	if from == to {
		return nil
	}
	debited, err := checkedSub(source, amount)
	if err != nil {
		return err
	}
	credited, err := checkedAdd(l.balanceOf(to), amount)
	if err != nil {
		return err
	}
	l.balances[from] = debited
	l.balances[to] = credited
	return nil
}

// Approve sets (overwrites) the allowance of spender over owner's balance.
func (l *Ledger) Approve(owner, spender string, amount *uint256.Int) ([]Event, error) {
	if amount == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidArgument)
	}
	if owner == "" || spender == "" {
		return nil, fmt.Errorf("%w: empty principal", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.allowances[owner]
	if !ok {
		row = make(map[string]*uint256.Int)
		l.allowances[owner] = row
	}
	row[spender] = amount.Clone()
	return []Event{ApprovalEvent{Owner: owner, Spender: spender, Amount: amount.Clone()}}, nil
}

// TransferFrom spends spender's allowance to move amount from one
// principal to another. The allowance is decremented unless it equals
// the unlimited sentinel.
func (l *Ledger) TransferFrom(spender, from, to string, amount *uint256.Int) ([]Event, error) {
	if amount == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidArgument)
	}
	if spender == "" || from == "" || to == "" {
		return nil, fmt.Errorf("%w: empty principal", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	source := l.balanceOf(from)
	if source.Lt(amount) {
		return nil, fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, source, amount)
	}
	allowance := l.allowanceOf(from, spender)
	if allowance.Lt(amount) {
		return nil, fmt.Errorf("%w: %s allowed %s, needs %s",
			ErrInsufficientAllowance, spender, allowance, amount)
	}

	if err := l.move(from, to, amount); err != nil {
		return nil, err
	}
	if !IsUnlimited(allowance) {
		remaining, err := checkedSub(allowance, amount)
		if err != nil {
			return nil, err
		}
		l.allowances[from][spender] = remaining
	}
	if err := l.conservation(); err != nil {
		return nil, err
	}
	return []Event{TransferEvent{From: from, To: to, Amount: amount.Clone()}}, nil
}

// allowanceOf returns the stored allowance, or zero. Callers hold the lock.
func (l *Ledger) allowanceOf(owner, spender string) *uint256.Int {
	if row, ok := l.allowances[owner]; ok {
		if a, ok := row[spender]; ok {
			return a
		}
	}
	return uint256.NewInt(0)
}

// Receipt reports the outcome of a Purchase.
type Receipt struct {
	// Units is the number of token units minted to the buyer.
	Units *uint256.Int `json:"units"`

	// Cost is the native amount actually spent (Units * price).
	Cost *uint256.Int `json:"cost"`

	// Refund is the native amount the collaborator must return to the
	// buyer: the integer-division remainder, plus the unsold portion
	// under the accept-partial policy. The core never retains it.
	Refund *uint256.Int `json:"refund"`
}

// Purchase is the public funding entry point. It converts the native
// payment to units at the configured price and mints them to the buyer,
// bounded by the sale cap. On error the whole payment is rejected: no
// units are minted and the collaborator must refund everything.
func (l *Ledger) Purchase(buyer string, paid *uint256.Int) (*Receipt, []Event, error) {
	if paid == nil {
		return nil, nil, fmt.Errorf("%w: nil payment", ErrInvalidArgument)
	}
	if buyer == "" {
		return nil, nil, fmt.Errorf("%w: empty buyer", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.price == nil || l.price.IsZero() {
		return nil, nil, fmt.Errorf("%w: price not set", ErrInvalidArgument)
	}

	units := new(uint256.Int).Div(paid, l.price)
	available, err := checkedSub(l.saleCap, l.totalSupply)
	if err != nil {
		// Sale cap below current supply: nothing is sellable.
		available = uint256.NewInt(0)
	}
	if units.Gt(available) {
		switch l.policy {
		case AcceptPartialAndRefundRemainder:
			units = available.Clone()
		default:
			return nil, nil, fmt.Errorf("%w: %s units requested, %s sellable",
				ErrSaleCapExceeded, units, available)
		}
	}

	cost, err := checkedMul(units, l.price)
	if err != nil {
		return nil, nil, err
	}
	refund, err := checkedSub(paid, cost)
	if err != nil {
		return nil, nil, err
	}

	receipt := &Receipt{Units: units.Clone(), Cost: cost, Refund: refund}
	if units.IsZero() {
		// Payment below price, or nothing sellable under accept-partial:
		// no mint, full refund, no event.
		return receipt, nil, nil
	}

	if err := l.credit(buyer, units); err != nil {
		return nil, nil, err
	}
	if err := l.conservation(); err != nil {
		return nil, nil, err
	}
	return receipt, []Event{TransferEvent{From: "", To: buyer, Amount: units.Clone()}}, nil
}

// TransferOwnership hands the owner role to next. Only the current owner
// may call, and the empty principal is rejected.
func (l *Ledger) TransferOwnership(caller, next string) ([]Event, error) {
	if next == "" {
		return nil, fmt.Errorf("%w: empty principal", ErrInvalidArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return nil, ErrUnauthorized
	}
	previous := l.owner
	l.owner = next
	return []Event{OwnershipTransferredEvent{Previous: previous, Next: next}}, nil
}

// Owner returns the owner principal.
func (l *Ledger) Owner() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owner
}

// BalanceOf returns p's balance.
func (l *Ledger) BalanceOf(p string) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceOf(p).Clone()
}

// Allowance returns the remaining allowance of spender over owner's balance.
func (l *Ledger) Allowance(owner, spender string) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowanceOf(owner, spender).Clone()
}

// TotalSupply returns the minted-and-in-circulation amount.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalSupply.Clone()
}

// SaleCap returns the portion of supply currently authorized for sale.
func (l *Ledger) SaleCap() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.saleCap.Clone()
}

// MaxCap returns the hard supply ceiling.
func (l *Ledger) MaxCap() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxCap.Clone()
}

// Price returns the configured exchange rate, or nil if unset.
func (l *Ledger) Price() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.price == nil {
		return nil
	}
	return l.price.Clone()
}

// Policy returns the configured purchase policy.
func (l *Ledger) Policy() PurchasePolicy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policy
}
