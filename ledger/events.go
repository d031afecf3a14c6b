package ledger

import "github.com/holiman/uint256"

// Event is a record emitted by a successful mutating operation.
// The core never relays events itself; the embedding system decides
// how to log or notify.
type Event interface {
	// Kind returns the event type name.
	Kind() string
}

// TransferEvent records a balance movement. Minting is recorded as a
// transfer from the empty principal; burning as a transfer to it.
type TransferEvent struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

// Kind returns "Transfer".
func (TransferEvent) Kind() string { return "Transfer" }

// ApprovalEvent records an allowance being set.
type ApprovalEvent struct {
	Owner   string       `json:"owner"`
	Spender string       `json:"spender"`
	Amount  *uint256.Int `json:"amount"`
}

// Kind returns "Approval".
func (ApprovalEvent) Kind() string { return "Approval" }

// SaleCapRaisedEvent records an increase of the sellable supply.
type SaleCapRaisedEvent struct {
	Amount  *uint256.Int `json:"amount"`
	SaleCap *uint256.Int `json:"saleCap"`
}

// Kind returns "SaleCapRaised".
func (SaleCapRaisedEvent) Kind() string { return "SaleCapRaised" }

// OwnershipTransferredEvent records a change of the owner principal.
type OwnershipTransferredEvent struct {
	Previous string `json:"previous"`
	Next     string `json:"next"`
}

// Kind returns "OwnershipTransferred".
func (OwnershipTransferredEvent) Kind() string { return "OwnershipTransferred" }
