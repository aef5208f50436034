// Package monitor runs the per-position take-profit state machine. One
// Monitor owns exactly one Position and reacts to that mint's price
// stream; monitors never share state with each other.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/executor"
	"solana-sniper/internal/idhash"
)

const (
	// DefaultMaxResubmits bounds the re-queries of an exit order stuck in
	// an unknown outcome before the monitor waits for the next update.
	DefaultMaxResubmits = 3
	// DefaultResubmitDelay is the initial delay between re-queries.
	DefaultResubmitDelay = 2 * time.Second
)

// OrderSubmitter submits a swap order and returns its collapsed outcome.
type OrderSubmitter interface {
	Submit(ctx context.Context, order domain.SwapOrder) *domain.OrderResult
}

// Compile-time interface check.
var _ OrderSubmitter = (*executor.Executor)(nil)

// Alerter sends a best-effort operator alert.
type Alerter interface {
	Notify(ctx context.Context, text string) error
}

// Monitor drives one Position from watching to a terminal state. The
// trigger fires exactly once per armed cycle: while an exit order is in
// flight no further updates are evaluated, and after a partial fill the
// position holds its moonbag without re-triggering on the same target.
type Monitor struct {
	position  *domain.Position
	updates   <-chan domain.PriceUpdate
	submitter OrderSubmitter
	alerter   Alerter
	logger    *logrus.Entry

	baseMint       string
	maxSlippageBps int
	maxResubmits   int
	resubmitDelay  time.Duration

	// attempt feeds the idempotency key. It advances only when a
	// rejected exit re-arms the trigger; an unknown outcome keeps the
	// same attempt so reconciliation finds the original transaction.
	attempt uint64

	mu       sync.Mutex
	state    domain.PositionState
	lastSeen int64 // Unix millis of the newest processed update

	cancelOnce sync.Once
	cancelCh   chan struct{}
}

// Options contains configuration for creating a Monitor.
type Options struct {
	Position  *domain.Position
	Updates   <-chan domain.PriceUpdate
	Submitter OrderSubmitter
	Alerter   Alerter // optional

	// BaseMint is the asset received when the position is sold.
	BaseMint       string
	MaxSlippageBps int
	MaxResubmits   int           // default DefaultMaxResubmits
	ResubmitDelay  time.Duration // default DefaultResubmitDelay
	Logger         *logrus.Logger
}

// New creates a new Monitor in the watching state.
func New(opts Options) (*Monitor, error) {
	if opts.Position == nil {
		return nil, fmt.Errorf("position is required")
	}
	if opts.Updates == nil {
		return nil, fmt.Errorf("updates channel is required")
	}
	if opts.Submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if opts.BaseMint == "" {
		return nil, fmt.Errorf("base mint is required")
	}
	maxResubmits := opts.MaxResubmits
	if maxResubmits == 0 {
		maxResubmits = DefaultMaxResubmits
	}
	resubmitDelay := opts.ResubmitDelay
	if resubmitDelay == 0 {
		resubmitDelay = DefaultResubmitDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{
		position:       opts.Position,
		updates:        opts.Updates,
		submitter:      opts.Submitter,
		alerter:        opts.Alerter,
		logger:         logger.WithField("mint", opts.Position.Mint),
		baseMint:       opts.BaseMint,
		maxSlippageBps: opts.MaxSlippageBps,
		maxResubmits:   maxResubmits,
		resubmitDelay:  resubmitDelay,
		attempt:        1,
		state:          domain.PositionWatching,
		cancelCh:       make(chan struct{}),
	}, nil
}

// State returns the current state of the position.
func (m *Monitor) State() domain.PositionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Position returns a snapshot of the monitored position.
func (m *Monitor) Position() domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.position
}

// Cancel requests a graceful stop. A monitor that has not broadcast an
// exit order stops immediately; an exit already in flight completes
// first, then the monitor stops.
func (m *Monitor) Cancel() {
	m.cancelOnce.Do(func() { close(m.cancelCh) })
}

// Run consumes the price stream until the position reaches a terminal
// state, the stream closes, or the context is cancelled. Updates are
// processed in arrival order; trigger evaluation is not reentrant
// because the exit submission completes before the next update is read.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.setState(domain.PositionCancelled)
			return ctx.Err()
		case <-m.cancelCh:
			m.setState(domain.PositionCancelled)
			m.logger.Info("position monitor cancelled")
			return nil
		case update, ok := <-m.updates:
			if !ok {
				return fmt.Errorf("price stream for %s closed", m.position.Mint)
			}
			// Replays after a stream reconnect carry timestamps at or
			// before the last processed update; skip them so a trigger
			// never fires twice off the same tick.
			if update.Timestamp <= m.lastSeen {
				continue
			}
			m.lastSeen = update.Timestamp

			done, err := m.handleUpdate(ctx, update)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (m *Monitor) handleUpdate(ctx context.Context, update domain.PriceUpdate) (bool, error) {
	if m.State() != domain.PositionWatching {
		return false, nil
	}
	if !m.position.TargetReached(update.Price) {
		return false, nil
	}

	m.logger.WithFields(logrus.Fields{
		"price":       update.Price,
		"entry_price": m.position.EntryPrice,
		"multiplier":  m.position.TargetMultiplier,
	}).Info("take-profit target reached")

	m.setState(domain.PositionExitSubmitted)

	sellQty := m.position.SellQuantity()
	result, err := m.submitExit(ctx, sellQty)
	if err != nil {
		return false, err
	}

	switch result.Status {
	case domain.OrderFilled:
		m.settleFill(ctx, result)
		return true, nil

	case domain.OrderRejected:
		// Re-arm with a fresh attempt; the trigger re-evaluates on the
		// next price update instead of crash-looping on this one.
		m.attempt++
		m.setState(domain.PositionWatching)
		m.logger.WithField("reason", result.Reason).Warn("exit rejected, trigger re-armed")
		m.alert(ctx, fmt.Sprintf("Exit order for %s rejected: %s", m.position.Mint, result.Reason))
		return false, nil

	default: // unknown after bounded re-queries
		// Stay in exit_submitted: the next update re-queries the same
		// attempt instead of triggering a second exit.
		m.logger.WithField("reason", result.Reason).Warn("exit outcome still unknown")
		return m.awaitReconciliation(ctx)
	}
}

// submitExit submits the exit order and re-queries a bounded number of
// times while the outcome is unknown. The idempotency key is identical
// across re-queries, so the executor reconciles the original
// transaction instead of issuing a new one.
func (m *Monitor) submitExit(ctx context.Context, sellQty float64) (*domain.OrderResult, error) {
	order := domain.SwapOrder{
		Direction:      domain.DirectionSell,
		InputMint:      m.position.Mint,
		OutputMint:     m.baseMint,
		AmountIn:       int64(math.Round(sellQty)),
		MaxSlippageBps: m.maxSlippageBps,
		IdempotencyKey: idhash.ComputeOrderKey(m.position.Mint, domain.DirectionSell, m.attempt),
	}

	delay := m.resubmitDelay
	var result *domain.OrderResult
	for try := 0; try <= m.maxResubmits; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return result, nil
			case <-time.After(delay):
			}
			delay *= 2
		}

		result = m.submitter.Submit(ctx, order)
		if result.Status != domain.OrderUnknown {
			return result, nil
		}
	}
	return result, nil
}

// awaitReconciliation keeps the monitor in exit_submitted and re-queries
// the pending attempt on each new price update until it settles.
func (m *Monitor) awaitReconciliation(ctx context.Context) (bool, error) {
	order := domain.SwapOrder{
		Direction:      domain.DirectionSell,
		InputMint:      m.position.Mint,
		OutputMint:     m.baseMint,
		AmountIn:       int64(math.Round(m.position.SellQuantity())),
		MaxSlippageBps: m.maxSlippageBps,
		IdempotencyKey: idhash.ComputeOrderKey(m.position.Mint, domain.DirectionSell, m.attempt),
	}

	for {
		select {
		case <-ctx.Done():
			m.setState(domain.PositionCancelled)
			return true, ctx.Err()
		case <-m.cancelCh:
			// The in-flight exit is re-queried once more before teardown.
			result := m.submitter.Submit(ctx, order)
			if result.Filled() {
				m.settleFill(ctx, result)
				return true, nil
			}
			m.setState(domain.PositionCancelled)
			return true, nil
		case update, ok := <-m.updates:
			if !ok {
				return true, fmt.Errorf("price stream for %s closed", m.position.Mint)
			}
			if update.Timestamp <= m.lastSeen {
				continue
			}
			m.lastSeen = update.Timestamp

			result := m.submitter.Submit(ctx, order)
			switch result.Status {
			case domain.OrderFilled:
				m.settleFill(ctx, result)
				return true, nil
			case domain.OrderRejected:
				m.attempt++
				m.setState(domain.PositionWatching)
				m.logger.WithField("reason", result.Reason).Warn("exit rejected after reconciliation, trigger re-armed")
				return false, nil
			}
			// Still unknown: wait for the next update.
		}
	}
}

func (m *Monitor) settleFill(ctx context.Context, result *domain.OrderResult) {
	sellQty := m.position.SellQuantity()

	m.mu.Lock()
	m.position.QuantityHeld -= sellQty
	if m.position.QuantityHeld <= 0 {
		m.position.QuantityHeld = 0
		m.state = domain.PositionClosedFully
	} else {
		m.state = domain.PositionHoldingMoonbag
	}
	remaining := m.position.QuantityHeld
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"sold":      sellQty,
		"remaining": remaining,
		"tx":        result.TxSignature,
	}).Info("exit filled")
	m.alert(ctx, fmt.Sprintf("Sold %.0f of %s at %.6f (tx %s)", sellQty, m.position.Mint, result.EffectivePrice, result.TxSignature))
}

func (m *Monitor) setState(s domain.PositionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Terminal() {
		return
	}
	m.state = s
}

func (m *Monitor) alert(ctx context.Context, text string) {
	if m.alerter == nil {
		return
	}
	if err := m.alerter.Notify(ctx, text); err != nil {
		m.logger.WithError(err).Warn("alert delivery failed")
	}
}
