package escrow_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/crowdsale-xyz/go-crowdsale/escrow"
)

func newTestEscrow(t *testing.T) *escrow.Escrow {
	t.Helper()
	e, err := escrow.New(escrow.Config{Primary: "primary", Beneficiary: "beneficiary"})
	if err != nil {
		t.Fatalf("new escrow: %v", err)
	}
	return e
}

func mustDeposit(t *testing.T, e *escrow.Escrow, payee string, amount uint64) {
	t.Helper()
	if _, err := e.Deposit(payee, uint256.NewInt(amount)); err != nil {
		t.Fatalf("deposit %s/%d: %v", payee, amount, err)
	}
}

func setBothGates(t *testing.T, e *escrow.Escrow) {
	t.Helper()
	if _, err := e.SetSaleFinished("primary", true); err != nil {
		t.Fatalf("set sale finished: %v", err)
	}
	if _, err := e.SetSoftCapReached("primary", true); err != nil {
		t.Fatalf("set soft cap: %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := escrow.New(escrow.Config{Beneficiary: "b"}); !errors.Is(err, escrow.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty primary, got %v", err)
	}
	if _, err := escrow.New(escrow.Config{Primary: "p"}); !errors.Is(err, escrow.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty beneficiary, got %v", err)
	}
}

func TestDeposit(t *testing.T) {
	t.Run("Accumulates", func(t *testing.T) {
		e := newTestEscrow(t)
		mustDeposit(t, e, "x", 30)
		mustDeposit(t, e, "x", 20)
		if !e.DepositOf("x").Eq(uint256.NewInt(50)) {
			t.Errorf("deposit = %s, want 50", e.DepositOf("x"))
		}
		if !e.Pool().Eq(uint256.NewInt(50)) {
			t.Errorf("pool = %s, want 50", e.Pool())
		}
	})

	t.Run("ZeroRejected", func(t *testing.T) {
		e := newTestEscrow(t)
		if _, err := e.Deposit("x", uint256.NewInt(0)); !errors.Is(err, escrow.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("OnlyWhileActive", func(t *testing.T) {
		e := newTestEscrow(t)
		if _, err := e.EnableRefunds("primary"); err != nil {
			t.Fatalf("enable refunds: %v", err)
		}
		if _, err := e.Deposit("x", uint256.NewInt(1)); !errors.Is(err, escrow.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("FailsBeforeRefunding", func(t *testing.T) {
		e := newTestEscrow(t)
		mustDeposit(t, e, "x", 50)
		if _, _, err := e.Withdraw("x"); !errors.Is(err, escrow.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("PaysFullEntryThenZero", func(t *testing.T) {
		e := newTestEscrow(t)
		mustDeposit(t, e, "x", 50)
		mustDeposit(t, e, "y", 30)
		if _, err := e.EnableRefunds("primary"); err != nil {
			t.Fatalf("enable refunds: %v", err)
		}

		payout, events, err := e.Withdraw("x")
		if err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		if !payout.Eq(uint256.NewInt(50)) {
			t.Errorf("payout = %s, want 50", payout)
		}
		if len(events) != 1 || events[0].Kind() != "Withdrawn" {
			t.Errorf("unexpected events: %v", events)
		}
		if !e.DepositOf("x").IsZero() {
			t.Errorf("entry not zeroed: %s", e.DepositOf("x"))
		}

		payout, _, err = e.Withdraw("x")
		if err != nil {
			t.Fatalf("second withdraw: %v", err)
		}
		if !payout.IsZero() {
			t.Errorf("second payout = %s, want 0", payout)
		}
		if !e.Pool().Eq(uint256.NewInt(30)) {
			t.Errorf("pool = %s, want 30", e.Pool())
		}
	})
}

func TestClose(t *testing.T) {
	t.Run("RequiresBothGates", func(t *testing.T) {
		e := newTestEscrow(t)
		if _, err := e.Close("primary"); !errors.Is(err, escrow.ErrGatesNotSet) {
			t.Errorf("expected ErrGatesNotSet, got %v", err)
		}
		if _, err := e.SetSaleFinished("primary", true); err != nil {
			t.Fatalf("set gate: %v", err)
		}
		if _, err := e.Close("primary"); !errors.Is(err, escrow.ErrGatesNotSet) {
			t.Errorf("expected ErrGatesNotSet with one gate, got %v", err)
		}
	})

	t.Run("RequiresPrimary", func(t *testing.T) {
		e := newTestEscrow(t)
		setBothGates(t, e)
		if _, err := e.Close("intruder"); !errors.Is(err, escrow.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("Irreversible", func(t *testing.T) {
		e := newTestEscrow(t)
		setBothGates(t, e)
		if _, err := e.Close("primary"); err != nil {
			t.Fatalf("close: %v", err)
		}
		if e.State() != escrow.Closed {
			t.Fatalf("state = %s, want closed", e.State())
		}
		if _, err := e.EnableRefunds("primary"); !errors.Is(err, escrow.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState after close, got %v", err)
		}
		if _, err := e.Close("primary"); !errors.Is(err, escrow.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState on double close, got %v", err)
		}
	})
}

func TestEnableRefunds(t *testing.T) {
	e := newTestEscrow(t)
	if _, err := e.EnableRefunds("intruder"); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := e.EnableRefunds("primary"); err != nil {
		t.Fatalf("enable refunds: %v", err)
	}
	if e.State() != escrow.Refunding {
		t.Errorf("state = %s, want refunding", e.State())
	}
	// Terminal: no path back, close forbidden.
	if _, err := e.Close("primary"); !errors.Is(err, escrow.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestBeneficiaryWithdraw(t *testing.T) {
	t.Run("OnlyWhenClosed", func(t *testing.T) {
		e := newTestEscrow(t)
		mustDeposit(t, e, "x", 50)
		if _, _, err := e.BeneficiaryWithdraw(); !errors.Is(err, escrow.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("SingleDrain", func(t *testing.T) {
		e := newTestEscrow(t)
		mustDeposit(t, e, "x", 50)
		mustDeposit(t, e, "y", 30)
		setBothGates(t, e)
		if _, err := e.Close("primary"); err != nil {
			t.Fatalf("close: %v", err)
		}

		payout, events, err := e.BeneficiaryWithdraw()
		if err != nil {
			t.Fatalf("beneficiary withdraw: %v", err)
		}
		if !payout.Eq(uint256.NewInt(80)) {
			t.Errorf("payout = %s, want 80", payout)
		}
		if len(events) != 1 {
			t.Errorf("expected 1 event, got %d", len(events))
		}

		payout, events, err = e.BeneficiaryWithdraw()
		if err != nil {
			t.Fatalf("second beneficiary withdraw: %v", err)
		}
		if !payout.IsZero() {
			t.Errorf("second payout = %s, want 0", payout)
		}
		if len(events) != 0 {
			t.Errorf("second drain emitted events")
		}
	})
}

func TestGates(t *testing.T) {
	e := newTestEscrow(t)
	if _, err := e.SetSaleFinished("intruder", true); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	setBothGates(t, e)
	snap := e.Snapshot()
	if !snap.SaleFinished || !snap.SoftCapReached {
		t.Errorf("gates not set: %+v", snap)
	}
	// Gates are plain toggles and can be cleared again.
	if _, err := e.SetSoftCapReached("primary", false); err != nil {
		t.Fatalf("clear gate: %v", err)
	}
	if _, err := e.Close("primary"); !errors.Is(err, escrow.ErrGatesNotSet) {
		t.Errorf("expected ErrGatesNotSet after clearing, got %v", err)
	}
}

func TestTransferPrimary(t *testing.T) {
	e := newTestEscrow(t)
	if _, err := e.TransferPrimary("primary", ""); !errors.Is(err, escrow.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := e.TransferPrimary("primary", "next"); err != nil {
		t.Fatalf("transfer primary: %v", err)
	}
	if _, err := e.EnableRefunds("primary"); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Errorf("previous primary still authorized")
	}
	if _, err := e.EnableRefunds("next"); err != nil {
		t.Errorf("new primary rejected: %v", err)
	}
}

// TestRefundScenario: deposit(X,50), deposit(Y,30),
// enableRefunds, withdraw(X) pays 50 and zeroes the entry, withdraw(X)
// again pays 0.
func TestRefundScenario(t *testing.T) {
	e := newTestEscrow(t)
	mustDeposit(t, e, "X", 50)
	mustDeposit(t, e, "Y", 30)
	if _, err := e.EnableRefunds("primary"); err != nil {
		t.Fatalf("enable refunds: %v", err)
	}

	payout, _, err := e.Withdraw("X")
	if err != nil {
		t.Fatalf("withdraw X: %v", err)
	}
	if !payout.Eq(uint256.NewInt(50)) {
		t.Errorf("payout = %s, want 50", payout)
	}
	payout, _, err = e.Withdraw("X")
	if err != nil {
		t.Fatalf("withdraw X again: %v", err)
	}
	if !payout.IsZero() {
		t.Errorf("second payout = %s, want 0", payout)
	}
}

func TestCustomWithdrawalPolicy(t *testing.T) {
	// A policy permitting withdrawal in any state turns the machine into
	// a plain deposit box.
	open := func(escrow.State, string) bool { return true }
	e, err := escrow.New(escrow.Config{Primary: "p", Beneficiary: "b", Policy: open})
	if err != nil {
		t.Fatalf("new escrow: %v", err)
	}
	if _, err := e.Deposit("x", uint256.NewInt(5)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	payout, _, err := e.Withdraw("x")
	if err != nil {
		t.Fatalf("withdraw under open policy: %v", err)
	}
	if !payout.Eq(uint256.NewInt(5)) {
		t.Errorf("payout = %s, want 5", payout)
	}
}
