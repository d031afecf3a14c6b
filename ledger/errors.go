package ledger

import "errors"

var (
	// Authorization and argument errors
	ErrUnauthorized    = errors.New("ledger: caller is not the owner")
	ErrInvalidArgument = errors.New("ledger: invalid argument")

	// Accounting errors
	ErrInsufficientBalance   = errors.New("ledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrSupplyCapExceeded     = errors.New("ledger: supply cap exceeded")
	ErrSaleCapExceeded       = errors.New("ledger: sale cap exceeded")

	// Internal-consistency errors. These indicate a precondition violation
	// upstream and must abort the operation, never be silently continued.
	ErrArithmeticOverflow = errors.New("ledger: arithmetic overflow")
	ErrConservation       = errors.New("ledger: sum of balances does not equal total supply")
)
