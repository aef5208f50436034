package domain

// PositionState is the position monitor's state machine state.
type PositionState string

const (
	// PositionWatching means the monitor is consuming price updates and
	// the take-profit trigger is armed.
	PositionWatching PositionState = "watching"
	// PositionExitSubmitted means an exit order is in flight; the trigger
	// must not fire again until the order reaches a terminal outcome.
	PositionExitSubmitted PositionState = "exit_submitted"
	// PositionHoldingMoonbag is terminal: the target fraction was sold and
	// the remainder is deliberately retained.
	PositionHoldingMoonbag PositionState = "holding_moonbag"
	// PositionClosedFully is terminal: nothing is held anymore.
	PositionClosedFully PositionState = "closed_fully"
	// PositionCancelled is terminal: the monitor was cancelled externally.
	PositionCancelled PositionState = "cancelled"
)

// Terminal reports whether the state ends the monitor's lifecycle.
func (s PositionState) Terminal() bool {
	return s == PositionHoldingMoonbag || s == PositionClosedFully || s == PositionCancelled
}

// Position is an open holding created after a filled buy order. It is
// owned exclusively by its position monitor; QuantityHeld only ever
// decreases.
type Position struct {
	Mint             string
	EntryPrice       float64
	QuantityHeld     float64
	OpenedAt         int64   // Unix timestamp in milliseconds
	TargetMultiplier float64 // e.g. 2.0 triggers at twice the entry price
	SellFraction     float64 // fraction liquidated on target, remainder is the moonbag
}

// TargetReached reports whether price has reached the take-profit target.
func (p *Position) TargetReached(price float64) bool {
	if p.EntryPrice <= 0 {
		return false
	}
	return price/p.EntryPrice >= p.TargetMultiplier
}

// SellQuantity returns the quantity to liquidate when the target fires.
func (p *Position) SellQuantity() float64 {
	return p.SellFraction * p.QuantityHeld
}
