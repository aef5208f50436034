// Package executor submits swap orders to the execution venue with
// idempotency, bounded retries and defensive slippage checking.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/venue"
)

// Default configuration values.
const (
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 1 * time.Second
	DefaultMaxDelay        = 10 * time.Second
	DefaultBackoffMult     = 2.0
	DefaultConfirmTimeout  = 30 * time.Second
	DefaultConfirmInterval = 2 * time.Second
)

// Venue quotes and builds signable swap transactions.
type Venue interface {
	RequestQuote(ctx context.Context, order *domain.SwapOrder) (*venue.Quote, error)
}

// Signer signs a transaction payload, returning the signed bytes and
// the base58 signature that identifies the transaction on chain.
type Signer interface {
	SignTransaction(payload []byte) ([]byte, string)
}

// Executor drives a swap order to exactly one terminal outcome.
//
// The principal hazard is the ambiguous broadcast: a send that may or
// may not have landed. The transaction signature is recorded in the
// ledger before every broadcast, and any retry for the same
// idempotency key reconciles that signature on chain before a new
// transaction may be issued. Retries collapse into a single terminal
// OrderResult; the caller never observes intermediate attempts.
type Executor struct {
	venue  Venue
	signer Signer
	rpc    solana.RPCClient
	ledger *ledger
	logger *logrus.Logger

	maxRetries      int
	retryDelay      time.Duration
	maxDelay        time.Duration
	backoffMult     float64
	confirmTimeout  time.Duration
	confirmInterval time.Duration
}

// Options contains configuration for creating an Executor.
type Options struct {
	Venue  Venue
	Signer Signer
	RPC    solana.RPCClient
	Logger *logrus.Logger

	MaxRetries      int           // default DefaultMaxRetries
	RetryDelay      time.Duration // default DefaultRetryDelay
	MaxDelay        time.Duration // default DefaultMaxDelay
	ConfirmTimeout  time.Duration // default DefaultConfirmTimeout
	ConfirmInterval time.Duration // default DefaultConfirmInterval
}

// New creates a new Executor.
func New(opts Options) *Executor {
	e := &Executor{
		venue:           opts.Venue,
		signer:          opts.Signer,
		rpc:             opts.RPC,
		ledger:          newLedger(),
		logger:          opts.Logger,
		maxRetries:      opts.MaxRetries,
		retryDelay:      opts.RetryDelay,
		maxDelay:        opts.MaxDelay,
		backoffMult:     DefaultBackoffMult,
		confirmTimeout:  opts.ConfirmTimeout,
		confirmInterval: opts.ConfirmInterval,
	}
	if e.logger == nil {
		e.logger = logrus.New()
	}
	if e.maxRetries == 0 {
		e.maxRetries = DefaultMaxRetries
	}
	if e.retryDelay == 0 {
		e.retryDelay = DefaultRetryDelay
	}
	if e.maxDelay == 0 {
		e.maxDelay = DefaultMaxDelay
	}
	if e.confirmTimeout == 0 {
		e.confirmTimeout = DefaultConfirmTimeout
	}
	if e.confirmInterval == 0 {
		e.confirmInterval = DefaultConfirmInterval
	}
	return e
}

// Submit drives the order to a terminal outcome. For a given
// idempotency key, repeated calls never produce a second fill: a prior
// terminal result is returned as-is, and a prior ambiguous broadcast is
// reconciled on chain first.
func (e *Executor) Submit(ctx context.Context, order domain.SwapOrder) *domain.OrderResult {
	if err := order.Validate(); err != nil {
		return &domain.OrderResult{Status: domain.OrderRejected, Reason: err.Error()}
	}

	st := e.ledger.acquire(order.IdempotencyKey)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.result != nil {
		return st.result
	}

	// A previous call broadcast a transaction and could not confirm it.
	// Settle its fate before anything else touches the chain.
	if st.txSignature != "" {
		result, settled := e.reconcile(ctx, st)
		if settled {
			return e.finish(st, &order, result)
		}
		if result != nil {
			// Reconciliation itself failed; outcome still ambiguous.
			return result
		}
		// Original transaction is dead, a fresh attempt is safe.
		st.txSignature = ""
	}

	return e.finish(st, &order, e.attempt(ctx, st, &order))
}

// finish caches terminal outcomes on the ledger and logs them.
func (e *Executor) finish(st *attemptState, order *domain.SwapOrder, result *domain.OrderResult) *domain.OrderResult {
	if result.Status != domain.OrderUnknown {
		st.result = result
	}
	e.logger.WithFields(logrus.Fields{
		"key":       order.IdempotencyKey,
		"direction": order.Direction,
		"mint":      order.OutputMint,
		"status":    result.Status,
		"tx":        result.TxSignature,
	}).Info("order settled")
	return result
}

// reconcile queries the chain for a previously broadcast signature.
// Returns (result, true) when the fate is settled either way,
// (nil, false) when the transaction is unknown to the chain and a fresh
// attempt may proceed, and (unknown-result, false) when the query
// failed and the outcome stays ambiguous.
func (e *Executor) reconcile(ctx context.Context, st *attemptState) (*domain.OrderResult, bool) {
	status, err := e.rpc.GetSignatureStatus(ctx, st.txSignature)
	if err != nil {
		return &domain.OrderResult{
			Status:      domain.OrderUnknown,
			TxSignature: st.txSignature,
			Reason:      fmt.Sprintf("reconcile failed: %v", err),
		}, false
	}

	switch {
	case status.Confirmed():
		return &domain.OrderResult{
			Status:         domain.OrderFilled,
			TxSignature:    st.txSignature,
			EffectivePrice: st.quotedPrice,
		}, true
	case status.Failed():
		return &domain.OrderResult{
			Status:      domain.OrderRejected,
			TxSignature: st.txSignature,
			Reason:      "transaction failed on chain",
		}, true
	default:
		return nil, false
	}
}

// attempt runs the quote → sign → broadcast → confirm sequence with
// bounded retries for transient failures.
func (e *Executor) attempt(ctx context.Context, st *attemptState, order *domain.SwapOrder) *domain.OrderResult {
	delay := e.retryDelay
	var lastErr error
	var signed []byte

	for try := 0; try <= e.maxRetries; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return e.unknownOrRejected(st, ctx.Err())
			case <-time.After(jitter(delay)):
			}
			delay = time.Duration(float64(delay) * e.backoffMult)
			if delay > e.maxDelay {
				delay = e.maxDelay
			}
		}

		// Once a transaction has been signed it is reused on every
		// retry: rebroadcasting the same signature cannot settle twice,
		// whereas a fresh quote would.
		if signed == nil {
			quote, err := e.venue.RequestQuote(ctx, order)
			if err != nil {
				if errors.Is(err, domain.ErrVenueRejected) {
					return &domain.OrderResult{Status: domain.OrderRejected, Reason: err.Error()}
				}
				lastErr = err
				continue
			}

			// The venue was asked to bound slippage; do not trust it blindly.
			if quote.PriceImpactBps > order.MaxSlippageBps {
				return &domain.OrderResult{
					Status: domain.OrderRejected,
					Reason: fmt.Sprintf("quoted price impact %d bps exceeds bound %d bps", quote.PriceImpactBps, order.MaxSlippageBps),
				}
			}

			var sig string
			signed, sig = e.signer.SignTransaction(quote.Transaction)

			// Record before broadcasting: if the send is ambiguous, the
			// signature is the only handle left to find out what happened.
			st.txSignature = sig
			st.quotedPrice = quote.Price
		}

		if _, err := e.rpc.SendTransaction(ctx, signed); err != nil {
			// The send may still have reached the chain. Reconcile; if
			// the chain has no record the same transaction is resent.
			if result, settled := e.reconcile(ctx, st); settled {
				return result
			} else if result != nil {
				return result
			}
			lastErr = fmt.Errorf("%w: broadcast: %v", domain.ErrTransient, err)
			continue
		}

		return e.confirm(ctx, st)
	}

	return e.unknownOrRejected(st, lastErr)
}

// confirm polls the chain until the broadcast transaction settles or
// the confirmation window closes.
func (e *Executor) confirm(ctx context.Context, st *attemptState) *domain.OrderResult {
	deadline := time.Now().Add(e.confirmTimeout)

	for {
		result, settled := e.reconcile(ctx, st)
		if settled {
			return result
		}

		if time.Now().After(deadline) {
			return &domain.OrderResult{
				Status:      domain.OrderUnknown,
				TxSignature: st.txSignature,
				Reason:      "confirmation timeout",
			}
		}

		select {
		case <-ctx.Done():
			return &domain.OrderResult{
				Status:      domain.OrderUnknown,
				TxSignature: st.txSignature,
				Reason:      ctx.Err().Error(),
			}
		case <-time.After(e.confirmInterval):
		}
	}
}

// unknownOrRejected maps exhausted retries to a terminal report: if a
// transaction was ever broadcast the outcome is ambiguous, otherwise
// nothing reached the chain and the attempt is plainly rejected.
func (e *Executor) unknownOrRejected(st *attemptState, lastErr error) *domain.OrderResult {
	reason := "retries exhausted"
	if lastErr != nil {
		reason = fmt.Sprintf("retries exhausted: %v", lastErr)
	}
	if st.txSignature != "" {
		return &domain.OrderResult{Status: domain.OrderUnknown, TxSignature: st.txSignature, Reason: reason}
	}
	return &domain.OrderResult{Status: domain.OrderRejected, Reason: reason}
}

// jitter spreads a delay by up to ±25% to avoid thundering retries.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := int64(d) / 4
	return d + time.Duration(rand.Int63n(2*spread+1)-spread)
}
