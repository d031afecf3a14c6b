package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/crowdsale-xyz/go-crowdsale/accesslist"
	"github.com/crowdsale-xyz/go-crowdsale/escrow"
	"github.com/crowdsale-xyz/go-crowdsale/eventsource"
	"github.com/crowdsale-xyz/go-crowdsale/ledger"
)

// Command is one operation against the engine: an operation name plus
// its JSON-encoded arguments. Commands are what the journal stores.
type Command struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// EventRecord is a component event flattened for transport: the event
// kind plus the event's own fields.
type EventRecord struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// Result reports the outcome of a successful command.
type Result struct {
	// Events are the records emitted by the command.
	Events []EventRecord `json:"events,omitempty"`

	// Receipt is set by sale.purchase.
	Receipt *ledger.Receipt `json:"receipt,omitempty"`

	// Payout is set by the withdraw operations.
	Payout *uint256.Int `json:"payout,omitempty"`

	// Changed is set by the whitelist operations.
	Changed bool `json:"changed,omitempty"`

	// Version is the journal version assigned to the command, or -1
	// when the engine runs without a store.
	Version int `json:"version"`
}

// Argument shapes, one per operation family. Amounts marshal as the
// uint256 hex encoding.

type amountArgs struct {
	Caller string       `json:"caller"`
	Amount *uint256.Int `json:"amount"`
}

type callerArgs struct {
	Caller string `json:"caller"`
}

type gateArgs struct {
	Caller string `json:"caller"`
	Value  bool   `json:"value"`
}

type transferArgs struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

type approveArgs struct {
	Owner   string       `json:"owner"`
	Spender string       `json:"spender"`
	Amount  *uint256.Int `json:"amount"`
}

type transferFromArgs struct {
	Spender string       `json:"spender"`
	From    string       `json:"from"`
	To      string       `json:"to"`
	Amount  *uint256.Int `json:"amount"`
}

type purchaseArgs struct {
	Buyer string       `json:"buyer"`
	Paid  *uint256.Int `json:"paid"`
}

type membersArgs struct {
	Caller     string   `json:"caller"`
	Principals []string `json:"principals"`
}

// Dispatch applies one command: execute, journal, then evaluate rules.
// The command either fully applies or fully fails. A failed journal
// write halts the engine: the live state would otherwise diverge from
// what a later Replay rebuilds.
func (e *Engine) Dispatch(ctx context.Context, cmd Command) (*Result, error) {
	e.mu.Lock()
	if e.halted != nil {
		err := e.halted
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrHalted, err)
	}
	res, err := e.execute(cmd)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	res.Version = e.version
	if e.store != nil && !e.replaying {
		record, err := eventsource.NewEvent(e.streamID, cmd.Op, cmd.Args)
		if err != nil {
			e.halted = err
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: encode %s: %w", ErrHalted, cmd.Op, err)
		}
		version, err := e.store.Append(ctx, e.streamID, e.version, []*eventsource.Event{record})
		if err != nil {
			e.halted = err
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: journal %s: %w", ErrHalted, cmd.Op, err)
		}
		e.version = version
		res.Version = version
	}
	replaying := e.replaying
	e.mu.Unlock()

	// Rule actions dispatch commands of their own, so they run outside
	// the lock. Replay skips them: rule-fired commands are already in
	// the journal.
	if !replaying {
		e.checkRules(ctx)
	}
	return res, nil
}

// dispatch marshals typed arguments and runs the command path.
func (e *Engine) dispatch(ctx context.Context, op string, args any) (*Result, error) {
	var raw json.RawMessage
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("engine: marshal %s args: %w", op, err)
		}
		raw = encoded
	}
	return e.Dispatch(ctx, Command{Op: op, Args: raw})
}

func decodeArgs[T any](cmd Command) (T, error) {
	var args T
	if len(cmd.Args) == 0 {
		return args, fmt.Errorf("engine: %s: missing arguments", cmd.Op)
	}
	if err := json.Unmarshal(cmd.Args, &args); err != nil {
		return args, fmt.Errorf("engine: %s: decode arguments: %w", cmd.Op, err)
	}
	return args, nil
}

// execute runs one command against the components. Callers hold the
// engine lock.
func (e *Engine) execute(cmd Command) (*Result, error) {
	switch cmd.Op {
	case "token.mint":
		args, err := decodeArgs[amountArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.ledger.Mint(args.Caller, args.Amount)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordLedger(events)}, nil

	case "token.burn":
		args, err := decodeArgs[amountArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.ledger.Burn(args.Caller, args.Amount)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordLedger(events)}, nil

	case "token.transfer":
		args, err := decodeArgs[transferArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.ledger.Transfer(args.From, args.To, args.Amount)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordLedger(events)}, nil

	case "token.approve":
		args, err := decodeArgs[approveArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.ledger.Approve(args.Owner, args.Spender, args.Amount)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordLedger(events)}, nil

	case "token.transferFrom":
		args, err := decodeArgs[transferFromArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.ledger.TransferFrom(args.Spender, args.From, args.To, args.Amount)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordLedger(events)}, nil

	case "token.setSaleCap":
		args, err := decodeArgs[amountArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.ledger.SetSaleCap(args.Caller, args.Amount)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordLedger(events)}, nil

	case "token.setPrice":
		args, err := decodeArgs[amountArgs](cmd)
		if err != nil {
			return nil, err
		}
		if err := e.ledger.SetPrice(args.Caller, args.Amount); err != nil {
			return nil, err
		}
		return &Result{}, nil

	case "token.transferOwnership":
		args, err := decodeArgs[membersArgs](cmd)
		if err != nil {
			return nil, err
		}
		if len(args.Principals) != 1 {
			return nil, fmt.Errorf("engine: %s: exactly one successor required", cmd.Op)
		}
		events, err := e.ledger.TransferOwnership(args.Caller, args.Principals[0])
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordLedger(events)}, nil

	case "sale.purchase":
		args, err := decodeArgs[purchaseArgs](cmd)
		if err != nil {
			return nil, err
		}
		return e.purchase(args.Buyer, args.Paid)

	case "escrow.deposit":
		args, err := decodeArgs[amountArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.escrow.Deposit(args.Caller, args.Amount)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordEscrow(events)}, nil

	case "escrow.withdraw":
		args, err := decodeArgs[callerArgs](cmd)
		if err != nil {
			return nil, err
		}
		payout, events, err := e.escrow.Withdraw(args.Caller)
		if err != nil {
			return nil, err
		}
		return &Result{Payout: payout, Events: recordEscrow(events)}, nil

	case "escrow.enableRefunds":
		args, err := decodeArgs[callerArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.escrow.EnableRefunds(args.Caller)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordEscrow(events)}, nil

	case "escrow.close":
		args, err := decodeArgs[callerArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.escrow.Close(args.Caller)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordEscrow(events)}, nil

	case "escrow.beneficiaryWithdraw":
		payout, events, err := e.escrow.BeneficiaryWithdraw()
		if err != nil {
			return nil, err
		}
		return &Result{Payout: payout, Events: recordEscrow(events)}, nil

	case "escrow.setSaleFinished":
		args, err := decodeArgs[gateArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.escrow.SetSaleFinished(args.Caller, args.Value)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordEscrow(events)}, nil

	case "escrow.setSoftCapReached":
		args, err := decodeArgs[gateArgs](cmd)
		if err != nil {
			return nil, err
		}
		events, err := e.escrow.SetSoftCapReached(args.Caller, args.Value)
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordEscrow(events)}, nil

	case "escrow.transferPrimary":
		args, err := decodeArgs[membersArgs](cmd)
		if err != nil {
			return nil, err
		}
		if len(args.Principals) != 1 {
			return nil, fmt.Errorf("engine: %s: exactly one successor required", cmd.Op)
		}
		events, err := e.escrow.TransferPrimary(args.Caller, args.Principals[0])
		if err != nil {
			return nil, err
		}
		return &Result{Events: recordEscrow(events)}, nil

	case "whitelist.add":
		args, err := decodeArgs[membersArgs](cmd)
		if err != nil {
			return nil, err
		}
		changed, events, err := e.whitelist.AddBatch(args.Caller, args.Principals)
		if err != nil {
			return nil, err
		}
		return &Result{Changed: changed, Events: recordAccess(events)}, nil

	case "whitelist.remove":
		args, err := decodeArgs[membersArgs](cmd)
		if err != nil {
			return nil, err
		}
		changed, events, err := e.whitelist.RemoveBatch(args.Caller, args.Principals)
		if err != nil {
			return nil, err
		}
		return &Result{Changed: changed, Events: recordAccess(events)}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, cmd.Op)
	}
}

// purchase is the composed funding flow. Every way the deposit could be
// rejected is checked before the ledger mutates, so a failed deposit can
// never strand minted units: the escrow must be active, and the pool
// must have room for the full payment (cost never exceeds paid).
func (e *Engine) purchase(buyer string, paid *uint256.Int) (*Result, error) {
	if err := e.whitelist.Guard()(buyer); err != nil {
		return nil, err
	}
	if st := e.escrow.State(); st != escrow.Active {
		return nil, fmt.Errorf("%w: purchase in %s", escrow.ErrInvalidState, st)
	}
	if paid != nil {
		if _, overflow := new(uint256.Int).AddOverflow(e.escrow.Pool(), paid); overflow {
			return nil, fmt.Errorf("%w: escrow pool", escrow.ErrArithmeticOverflow)
		}
	}
	receipt, levents, err := e.ledger.Purchase(buyer, paid)
	if err != nil {
		return nil, err
	}
	records := recordLedger(levents)
	if !receipt.Cost.IsZero() {
		eevents, err := e.escrow.Deposit(buyer, receipt.Cost)
		if err != nil {
			return nil, err
		}
		records = append(records, recordEscrow(eevents)...)
	}
	return &Result{Receipt: receipt, Events: records}, nil
}

func recordLedger(events []ledger.Event) []EventRecord {
	out := make([]EventRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, EventRecord{Kind: ev.Kind(), Data: ev})
	}
	return out
}

func recordEscrow(events []escrow.Event) []EventRecord {
	out := make([]EventRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, EventRecord{Kind: ev.Kind(), Data: ev})
	}
	return out
}

func recordAccess(events []accesslist.Event) []EventRecord {
	out := make([]EventRecord, 0, len(events))
	for _, ev := range events {
		out = append(out, EventRecord{Kind: ev.Kind(), Data: ev})
	}
	return out
}
