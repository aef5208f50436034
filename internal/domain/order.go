package domain

import "fmt"

// Direction of a swap relative to the target token.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// MaxSlippageBps is the upper bound for a swap order's slippage setting.
const MaxSlippageBps = 10000

// SwapOrder is a request to exchange a base asset for a target asset.
// AmountIn is a fixed-point integer in the input token's smallest unit
// (lamports for SOL). IdempotencyKey is derived deterministically from
// mint, direction and a monotonic attempt counter; the executor
// guarantees at most one economically-effective fill per key.
type SwapOrder struct {
	Direction      Direction
	InputMint      string
	OutputMint     string
	AmountIn       int64
	MaxSlippageBps int
	IdempotencyKey string
}

// Validate checks the swap order invariants.
func (o *SwapOrder) Validate() error {
	if !o.Direction.IsValid() {
		return fmt.Errorf("%w: direction %q", ErrInvalidOrder, o.Direction)
	}
	if o.InputMint == "" || o.OutputMint == "" {
		return fmt.Errorf("%w: missing mint", ErrInvalidOrder)
	}
	if o.AmountIn <= 0 {
		return fmt.Errorf("%w: amount_in %d", ErrInvalidOrder, o.AmountIn)
	}
	if o.MaxSlippageBps < 0 || o.MaxSlippageBps > MaxSlippageBps {
		return fmt.Errorf("%w: max_slippage_bps %d", ErrInvalidOrder, o.MaxSlippageBps)
	}
	if o.IdempotencyKey == "" {
		return fmt.Errorf("%w: missing idempotency key", ErrInvalidOrder)
	}
	return nil
}

// OrderStatus is the terminal classification of a submission attempt.
type OrderStatus string

const (
	// OrderFilled means the swap settled on chain.
	OrderFilled OrderStatus = "filled"
	// OrderRejected means the venue or chain refused the swap; retrying
	// the same order will not succeed.
	OrderRejected OrderStatus = "rejected"
	// OrderUnknown means the outcome could not be confirmed either way.
	// The transaction signature, if any, must be reconciled before a new
	// transaction may be issued for the same idempotency key.
	OrderUnknown OrderStatus = "unknown"
)

// OrderResult is the collapsed outcome of submitting a SwapOrder.
// Internal retries are invisible; callers observe exactly one result
// per logical attempt.
type OrderResult struct {
	Status         OrderStatus
	TxSignature    string  // set when a transaction was broadcast
	EffectivePrice float64 // set on fill
	Reason         string  // set on rejected/unknown
}

// Filled reports whether the order settled.
func (r *OrderResult) Filled() bool {
	return r.Status == OrderFilled
}
