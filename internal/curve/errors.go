package curve

import "errors"

var (
	// ErrInvalidAmount rejects zero or negative trade inputs before any state is read.
	ErrInvalidAmount = errors.New("curve: invalid amount")

	// ErrArithmetic covers division by zero, 128-bit overflow, and reserve underflow.
	// The operation aborts before any mutation.
	ErrArithmetic = errors.New("curve: arithmetic error")

	// ErrSlippageExceeded is returned when the realized output falls below the
	// caller's minimum or the realized slippage exceeds the allowed bps.
	ErrSlippageExceeded = errors.New("curve: slippage exceeded")

	// ErrSupplyExhausted is returned when a buy arrives for a curve that already
	// issued its full CurveSupply.
	ErrSupplyExhausted = errors.New("curve: supply exhausted")

	// ErrInvalidFee rejects creator fee configurations above MaxCreatorFeeBps.
	ErrInvalidFee = errors.New("curve: invalid fee")
)
