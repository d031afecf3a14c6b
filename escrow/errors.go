package escrow

import "errors"

var (
	ErrUnauthorized    = errors.New("escrow: caller is not the primary")
	ErrInvalidArgument = errors.New("escrow: invalid argument")

	// ErrInvalidState is returned when an operation is attempted in a
	// lifecycle state that forbids it.
	ErrInvalidState = errors.New("escrow: operation not allowed in current state")

	// ErrGatesNotSet is returned by Close when the sale-finished and
	// soft-cap gates are not both set.
	ErrGatesNotSet = errors.New("escrow: close requires sale finished and soft cap reached")

	ErrArithmeticOverflow = errors.New("escrow: arithmetic overflow")
)
