package escrow

import "github.com/holiman/uint256"

// Event is a record emitted by a successful mutating operation, to be
// relayed by the embedding system.
type Event interface {
	// Kind returns the event type name.
	Kind() string
}

// DepositedEvent records a payment added to a depositor's entry.
type DepositedEvent struct {
	Payee  string       `json:"payee"`
	Amount *uint256.Int `json:"amount"`
}

// Kind returns "Deposited".
func (DepositedEvent) Kind() string { return "Deposited" }

// WithdrawnEvent records a refund paid out to a depositor.
type WithdrawnEvent struct {
	Payee  string       `json:"payee"`
	Amount *uint256.Int `json:"amount"`
}

// Kind returns "Withdrawn".
func (WithdrawnEvent) Kind() string { return "Withdrawn" }

// RefundsEnabledEvent records the transition to Refunding.
type RefundsEnabledEvent struct{}

// Kind returns "RefundsEnabled".
func (RefundsEnabledEvent) Kind() string { return "RefundsEnabled" }

// ClosedEvent records the transition to Closed.
type ClosedEvent struct{}

// Kind returns "Closed".
func (ClosedEvent) Kind() string { return "Closed" }

// BeneficiaryWithdrawnEvent records the pooled balance being drained to
// the beneficiary.
type BeneficiaryWithdrawnEvent struct {
	Beneficiary string       `json:"beneficiary"`
	Amount      *uint256.Int `json:"amount"`
}

// Kind returns "BeneficiaryWithdrawn".
func (BeneficiaryWithdrawnEvent) Kind() string { return "BeneficiaryWithdrawn" }

// GateChangedEvent records a primary-gated boolean toggle.
type GateChangedEvent struct {
	Gate  string `json:"gate"` // "saleFinished" or "softCapReached"
	Value bool   `json:"value"`
}

// Kind returns "GateChanged".
func (GateChangedEvent) Kind() string { return "GateChanged" }

// PrimaryTransferredEvent records a change of the primary principal.
type PrimaryTransferredEvent struct {
	Previous string `json:"previous"`
	Next     string `json:"next"`
}

// Kind returns "PrimaryTransferred".
func (PrimaryTransferredEvent) Kind() string { return "PrimaryTransferred" }
