// Package engine composes the token ledger, the refund escrow and the
// whitelist into a single crowdsale state machine with one command
// surface. Successful commands are journaled to an append-only store and
// can be replayed to rebuild identical state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/crowdsale-xyz/go-crowdsale/accesslist"
	"github.com/crowdsale-xyz/go-crowdsale/escrow"
	"github.com/crowdsale-xyz/go-crowdsale/eventsource"
	"github.com/crowdsale-xyz/go-crowdsale/ledger"
)

var (
	// ErrUnknownOp is returned by Dispatch for an unrecognized operation name.
	ErrUnknownOp = errors.New("engine: unknown operation")

	// ErrHalted is returned by Dispatch after a journal write has failed.
	// At that point the live state holds a command the journal does not,
	// so the engine refuses further commands; rebuild it with New and
	// Replay.
	ErrHalted = errors.New("engine: halted after journal write failure")
)

// Config holds constructor-time engine configuration.
type Config struct {
	// Owner administers all three components: token owner, escrow
	// primary and whitelist primary.
	Owner string

	// Beneficiary receives the escrow pool on close.
	Beneficiary string

	// MaxCap is the hard supply ceiling. Required.
	MaxCap *uint256.Int

	// Price is the native-units-per-token rate. Optional; purchases fail
	// until a price is set.
	Price *uint256.Int

	// SaleCap is the initial sellable supply. Optional.
	SaleCap *uint256.Int

	// SoftCap, when set, registers a rule that marks the escrow soft-cap
	// gate once the pooled deposits reach this native amount.
	SoftCap *uint256.Int

	// Policy selects the purchase cap behavior.
	Policy ledger.PurchasePolicy

	// StreamID names the journal stream. Defaults to "crowdsale".
	StreamID string

	// Store, when set, journals every successful command.
	Store eventsource.Store

	// Logger receives rule evaluation errors. Defaults to the standard
	// logrus logger.
	Logger logrus.FieldLogger
}

// Engine is the composed crowdsale state machine.
type Engine struct {
	mu sync.Mutex

	ledger    *ledger.Ledger
	escrow    *escrow.Escrow
	whitelist *accesslist.AccessList

	store     eventsource.Store
	streamID  string
	version   int
	replaying bool
	halted    error

	rules []*Rule
	log   logrus.FieldLogger
}

// New creates an engine with fresh components. If cfg.Store holds an
// existing journal, call Replay before dispatching new commands.
func New(cfg Config) (*Engine, error) {
	l, err := ledger.New(ledger.Config{
		Owner:  cfg.Owner,
		MaxCap: cfg.MaxCap,
		Price:  cfg.Price,
		Policy: cfg.Policy,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: ledger: %w", err)
	}
	esc, err := escrow.New(escrow.Config{
		Primary:     cfg.Owner,
		Beneficiary: cfg.Beneficiary,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: escrow: %w", err)
	}
	wl, err := accesslist.New(cfg.Owner)
	if err != nil {
		return nil, fmt.Errorf("engine: whitelist: %w", err)
	}
	if cfg.SaleCap != nil && !cfg.SaleCap.IsZero() {
		if _, err := l.SetSaleCap(cfg.Owner, cfg.SaleCap); err != nil {
			return nil, fmt.Errorf("engine: sale cap: %w", err)
		}
	}

	streamID := cfg.StreamID
	if streamID == "" {
		streamID = "crowdsale"
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	e := &Engine{
		ledger:    l,
		escrow:    esc,
		whitelist: wl,
		store:     cfg.Store,
		streamID:  streamID,
		version:   -1,
		log:       log,
	}
	if cfg.SoftCap != nil && !cfg.SoftCap.IsZero() {
		e.AddRule(SoftCapRule(cfg.SoftCap))
	}
	return e, nil
}

// Ledger returns the token component.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Escrow returns the escrow component.
func (e *Engine) Escrow() *escrow.Escrow { return e.escrow }

// Whitelist returns the access list component.
func (e *Engine) Whitelist() *accesslist.AccessList { return e.whitelist }

// Version returns the journal version of the last applied command, or -1
// when nothing has been journaled.
func (e *Engine) Version() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Purchase runs the composed funding flow: the buyer must be
// whitelisted, the escrow must accept deposits, the payment converts to
// units at the configured price, and the spent amount lands in escrow
// under the buyer's name. The receipt's refund is owed back to the buyer
// by the caller.
func (e *Engine) Purchase(ctx context.Context, buyer string, paid *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "sale.purchase", purchaseArgs{Buyer: buyer, Paid: paid})
}

// Mint creates new units credited to the owner.
func (e *Engine) Mint(ctx context.Context, caller string, amount *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "token.mint", amountArgs{Caller: caller, Amount: amount})
}

// Burn destroys units from the owner's balance.
func (e *Engine) Burn(ctx context.Context, caller string, amount *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "token.burn", amountArgs{Caller: caller, Amount: amount})
}

// Transfer moves units between principals.
func (e *Engine) Transfer(ctx context.Context, from, to string, amount *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "token.transfer", transferArgs{From: from, To: to, Amount: amount})
}

// Approve sets a spender's allowance.
func (e *Engine) Approve(ctx context.Context, owner, spender string, amount *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "token.approve", approveArgs{Owner: owner, Spender: spender, Amount: amount})
}

// TransferFrom spends an allowance.
func (e *Engine) TransferFrom(ctx context.Context, spender, from, to string, amount *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "token.transferFrom", transferFromArgs{Spender: spender, From: from, To: to, Amount: amount})
}

// SetSaleCap raises the sellable supply.
func (e *Engine) SetSaleCap(ctx context.Context, caller string, amount *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "token.setSaleCap", amountArgs{Caller: caller, Amount: amount})
}

// SetPrice sets the exchange rate.
func (e *Engine) SetPrice(ctx context.Context, caller string, price *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "token.setPrice", amountArgs{Caller: caller, Amount: price})
}

// Deposit adds a direct escrow deposit outside the purchase flow.
func (e *Engine) Deposit(ctx context.Context, payee string, amount *uint256.Int) (*Result, error) {
	return e.dispatch(ctx, "escrow.deposit", amountArgs{Caller: payee, Amount: amount})
}

// Withdraw pays out a depositor's accumulated entry.
func (e *Engine) Withdraw(ctx context.Context, payee string) (*Result, error) {
	return e.dispatch(ctx, "escrow.withdraw", callerArgs{Caller: payee})
}

// EnableRefunds moves the escrow to the refunding state.
func (e *Engine) EnableRefunds(ctx context.Context, caller string) (*Result, error) {
	return e.dispatch(ctx, "escrow.enableRefunds", callerArgs{Caller: caller})
}

// Close moves the escrow to the closed state.
func (e *Engine) Close(ctx context.Context, caller string) (*Result, error) {
	return e.dispatch(ctx, "escrow.close", callerArgs{Caller: caller})
}

// BeneficiaryWithdraw drains the escrow pool to the beneficiary.
func (e *Engine) BeneficiaryWithdraw(ctx context.Context) (*Result, error) {
	return e.dispatch(ctx, "escrow.beneficiaryWithdraw", nil)
}

// SetSaleFinished toggles the escrow sale-finished gate.
func (e *Engine) SetSaleFinished(ctx context.Context, caller string, v bool) (*Result, error) {
	return e.dispatch(ctx, "escrow.setSaleFinished", gateArgs{Caller: caller, Value: v})
}

// SetSoftCapReached toggles the escrow soft-cap gate.
func (e *Engine) SetSoftCapReached(ctx context.Context, caller string, v bool) (*Result, error) {
	return e.dispatch(ctx, "escrow.setSoftCapReached", gateArgs{Caller: caller, Value: v})
}

// TransferOwnership hands the token owner role to next.
func (e *Engine) TransferOwnership(ctx context.Context, caller, next string) (*Result, error) {
	return e.dispatch(ctx, "token.transferOwnership", membersArgs{Caller: caller, Principals: []string{next}})
}

// TransferPrimary hands the escrow primary role to next.
func (e *Engine) TransferPrimary(ctx context.Context, caller, next string) (*Result, error) {
	return e.dispatch(ctx, "escrow.transferPrimary", membersArgs{Caller: caller, Principals: []string{next}})
}

// WhitelistAdd inserts principals into the whitelist.
func (e *Engine) WhitelistAdd(ctx context.Context, caller string, principals ...string) (*Result, error) {
	return e.dispatch(ctx, "whitelist.add", membersArgs{Caller: caller, Principals: principals})
}

// WhitelistRemove deletes principals from the whitelist.
func (e *Engine) WhitelistRemove(ctx context.Context, caller string, principals ...string) (*Result, error) {
	return e.dispatch(ctx, "whitelist.remove", membersArgs{Caller: caller, Principals: principals})
}

// Snapshot is a consistent value copy of the composed state.
type Snapshot struct {
	Ledger    ledger.Snapshot `json:"ledger"`
	Escrow    escrow.Snapshot `json:"escrow"`
	Whitelist []string        `json:"whitelist"`
	Version   int             `json:"version"`
}

// Snapshot returns a copy of the full engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	version := e.version
	e.mu.Unlock()

	return Snapshot{
		Ledger:    e.ledger.Snapshot(),
		Escrow:    e.escrow.Snapshot(),
		Whitelist: e.whitelist.Members(),
		Version:   version,
	}
}
