// Package coordinator drives candidates from the inbound signal stream
// through the risk gate, entry execution, and per-position monitoring.
// It owns the registry of active positions and the lifecycle of every
// monitor it spawns.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/executor"
	"solana-sniper/internal/idhash"
	"solana-sniper/internal/monitor"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/pricefeed"
	"solana-sniper/internal/riskgate"
	"solana-sniper/internal/storage"
)

const (
	// DefaultMaxConcurrent bounds concurrent candidate processing.
	DefaultMaxConcurrent = 8
	// DefaultGracePeriod bounds the wait for monitors to finish in-flight
	// exits on shutdown before forced teardown.
	DefaultGracePeriod = 30 * time.Second
)

// Gate screens a candidate mint before any funds move.
type Gate interface {
	Evaluate(ctx context.Context, mint string) riskgate.Decision
}

// OrderSubmitter submits a swap order and returns its collapsed outcome.
type OrderSubmitter interface {
	Submit(ctx context.Context, order domain.SwapOrder) *domain.OrderResult
}

// Compile-time interface check.
var _ OrderSubmitter = (*executor.Executor)(nil)

// MetadataClient enriches a discovered mint with market data.
type MetadataClient interface {
	Lookup(ctx context.Context, mint string, discoveredAt int64) (*domain.TokenRecord, error)
}

// Alerter sends a best-effort operator alert.
type Alerter interface {
	Notify(ctx context.Context, text string) error
}

// entry is one slot in the position registry. A slot is reserved before
// the risk gate runs so that concurrent signals for the same mint
// coalesce; Monitor is nil until a buy fills.
type entry struct {
	monitor *monitor.Monitor
}

// Coordinator consumes the signal stream and enforces at most one
// active position per mint.
type Coordinator struct {
	gate     Gate
	executor OrderSubmitter
	feed     pricefeed.Feed
	metadata MetadataClient
	tokens   storage.TokenRecordStore
	ticks    storage.PriceTickStore
	alerter  Alerter
	logger   *logrus.Logger

	baseMint         string
	buyAmount        int64
	targetMultiplier float64
	sellFraction     float64
	maxSlippageBps   int
	maxConcurrent    int
	gracePeriod      time.Duration

	mu       sync.Mutex
	active   map[string]*entry
	attempts map[string]uint64 // monotonic buy attempt counter per mint

	monitorWG sync.WaitGroup

	// hardStop tears down monitors that outlive the shutdown grace period.
	hardStop   context.CancelFunc
	monitorCtx context.Context
}

// Options contains configuration for creating a Coordinator.
type Options struct {
	Gate     Gate
	Executor OrderSubmitter
	Feed     pricefeed.Feed
	Metadata MetadataClient           // optional
	Tokens   storage.TokenRecordStore // optional, append-only
	Ticks    storage.PriceTickStore   // optional price archive
	Alerter  Alerter                  // optional
	Logger   *logrus.Logger

	// BaseMint is the funding asset spent on entries and received on exits.
	BaseMint string
	// BuyAmount is the entry size in the base asset's smallest unit.
	BuyAmount        int64
	TargetMultiplier float64
	SellFraction     float64
	MaxSlippageBps   int
	MaxConcurrent    int           // default DefaultMaxConcurrent
	GracePeriod      time.Duration // default DefaultGracePeriod
}

// New creates a new Coordinator. Configuration errors are fatal and
// wrap ErrConfig.
func New(opts Options) (*Coordinator, error) {
	if opts.Gate == nil || opts.Executor == nil || opts.Feed == nil {
		return nil, fmt.Errorf("%w: gate, executor and feed are required", domain.ErrConfig)
	}
	if opts.BaseMint == "" {
		return nil, fmt.Errorf("%w: base mint is required", domain.ErrConfig)
	}
	if opts.BuyAmount <= 0 {
		return nil, fmt.Errorf("%w: buy amount %d", domain.ErrConfig, opts.BuyAmount)
	}
	if opts.TargetMultiplier <= 1 {
		return nil, fmt.Errorf("%w: target multiplier %v", domain.ErrConfig, opts.TargetMultiplier)
	}
	if opts.SellFraction <= 0 || opts.SellFraction > 1 {
		return nil, fmt.Errorf("%w: sell fraction %v", domain.ErrConfig, opts.SellFraction)
	}
	if opts.MaxSlippageBps < 0 || opts.MaxSlippageBps > domain.MaxSlippageBps {
		return nil, fmt.Errorf("%w: max slippage %d bps", domain.ErrConfig, opts.MaxSlippageBps)
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent == 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	gracePeriod := opts.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = DefaultGracePeriod
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	monitorCtx, hardStop := context.WithCancel(context.Background())
	return &Coordinator{
		gate:             opts.Gate,
		executor:         opts.Executor,
		feed:             opts.Feed,
		metadata:         opts.Metadata,
		tokens:           opts.Tokens,
		ticks:            opts.Ticks,
		alerter:          opts.Alerter,
		logger:           logger,
		baseMint:         opts.BaseMint,
		buyAmount:        opts.BuyAmount,
		targetMultiplier: opts.TargetMultiplier,
		sellFraction:     opts.SellFraction,
		maxSlippageBps:   opts.MaxSlippageBps,
		maxConcurrent:    maxConcurrent,
		gracePeriod:      gracePeriod,
		active:           make(map[string]*entry),
		attempts:         make(map[string]uint64),
		monitorCtx:       monitorCtx,
		hardStop:         hardStop,
	}, nil
}

// ActiveCount returns the number of registry slots in use, including
// reservations still working through the gate and entry order.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Run consumes signals until the channel closes or the context is
// cancelled, then shuts down all monitors within the grace period.
// Per-candidate failures degrade that candidate only; Run returns an
// error only for context cancellation.
func (c *Coordinator) Run(ctx context.Context, signals <-chan domain.Signal) error {
	workers, workerCtx := errgroup.WithContext(ctx)
	workers.SetLimit(c.maxConcurrent)

consume:
	for {
		select {
		case <-ctx.Done():
			break consume
		case sig, ok := <-signals:
			if !ok {
				break consume
			}
			observability.RecordSignal(sig.Source)
			observability.DefaultMetrics.LastSignalProcessed.SetToCurrentTime()

			for _, mint := range sig.Mints {
				if !c.reserve(mint) {
					c.logger.WithField("mint", mint).Debug("signal coalesced, position already active")
					continue
				}
				mint := mint
				sig := sig
				workers.Go(func() error {
					c.processCandidate(workerCtx, mint, sig)
					return nil
				})
			}
		}
	}

	if err := workers.Wait(); err != nil {
		c.logger.WithError(err).Error("candidate worker failed")
	}

	c.shutdown()
	return ctx.Err()
}

// shutdown asks every monitor to finish its in-flight work and stop,
// waits out the grace period, then tears down stragglers.
func (c *Coordinator) shutdown() {
	c.mu.Lock()
	for mint, e := range c.active {
		if e.monitor != nil {
			c.logger.WithField("mint", mint).Info("cancelling position monitor")
			e.monitor.Cancel()
		}
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.monitorWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("all position monitors stopped")
	case <-time.After(c.gracePeriod):
		c.logger.Warn("grace period elapsed, forcing monitor teardown")
		c.hardStop()
		<-done
	}
}

// processCandidate runs one candidate through gate → buy → monitor.
func (c *Coordinator) processCandidate(ctx context.Context, mint string, sig domain.Signal) {
	log := c.logger.WithFields(logrus.Fields{"mint": mint, "source": sig.Source})

	candidate := &domain.Candidate{
		Mint:         mint,
		Source:       sig.Source,
		DiscoveredAt: sig.MentionedAt,
		State:        domain.CandidateStateNew,
	}

	start := time.Now()
	decision := c.gate.Evaluate(ctx, mint)
	candidate.RawScore = decision.Score
	if !decision.Admit {
		observability.RecordGateDecision("reject", time.Since(start).Seconds())
		candidate.State = domain.CandidateStateRejected
		log.WithFields(logrus.Fields{
			"reason": decision.Reason,
			"state":  candidate.State,
		}).Info("candidate rejected")
		c.release(mint)
		return
	}
	observability.RecordGateDecision("admit", time.Since(start).Seconds())

	// Metadata is best-effort enrichment; its failure never blocks a buy.
	c.recordMetadata(ctx, mint, sig, log)

	result := c.submitBuy(ctx, mint)
	if !result.Filled() {
		candidate.State = domain.CandidateStateRejected
		log.WithFields(logrus.Fields{
			"status": result.Status,
			"reason": result.Reason,
			"state":  candidate.State,
		}).Warn("entry order did not fill")
		c.alert(ctx, fmt.Sprintf("Entry for %s failed (%s): %s", mint, result.Status, result.Reason))
		c.release(mint)
		return
	}
	candidate.State = domain.CandidateStatePromoted
	log.WithFields(logrus.Fields{
		"state": candidate.State,
		"score": decision.Score,
	}).Info("candidate promoted")

	position := &domain.Position{
		Mint:             mint,
		EntryPrice:       result.EffectivePrice,
		QuantityHeld:     float64(c.buyAmount) / result.EffectivePrice,
		OpenedAt:         time.Now().UnixMilli(),
		TargetMultiplier: c.targetMultiplier,
		SellFraction:     c.sellFraction,
	}
	log.WithFields(logrus.Fields{
		"entry_price": position.EntryPrice,
		"quantity":    position.QuantityHeld,
		"tx":          result.TxSignature,
	}).Info("position opened")
	c.alert(ctx, fmt.Sprintf("Bought %s at %.8f (tx %s)", mint, position.EntryPrice, result.TxSignature))

	if err := c.spawnMonitor(position); err != nil {
		log.WithError(err).Error("position monitor could not be started")
		c.alert(ctx, fmt.Sprintf("Position %s is UNMONITORED: %v", mint, err))
		c.release(mint)
		return
	}
}

// submitBuy issues the entry order under a fresh idempotency key.
func (c *Coordinator) submitBuy(ctx context.Context, mint string) *domain.OrderResult {
	c.mu.Lock()
	c.attempts[mint]++
	attempt := c.attempts[mint]
	c.mu.Unlock()

	order := domain.SwapOrder{
		Direction:      domain.DirectionBuy,
		InputMint:      c.baseMint,
		OutputMint:     mint,
		AmountIn:       c.buyAmount,
		MaxSlippageBps: c.maxSlippageBps,
		IdempotencyKey: idhash.ComputeOrderKey(mint, domain.DirectionBuy, attempt),
	}

	start := time.Now()
	result := c.executor.Submit(ctx, order)
	observability.RecordOrder(string(domain.DirectionBuy), string(result.Status), time.Since(start).Seconds())
	return result
}

// spawnMonitor subscribes the mint's price stream and starts the
// position monitor as a supervised goroutine.
func (c *Coordinator) spawnMonitor(position *domain.Position) error {
	updates, err := c.feed.SubscribeMint(c.monitorCtx, position.Mint)
	if err != nil {
		return fmt.Errorf("price subscription: %w", err)
	}

	mon, err := monitor.New(monitor.Options{
		Position:       position,
		Updates:        c.teeTicks(position.Mint, updates),
		Submitter:      c.executor,
		Alerter:        c.alerter,
		BaseMint:       c.baseMint,
		MaxSlippageBps: c.maxSlippageBps,
		Logger:         c.logger,
	})
	if err != nil {
		c.feed.Unsubscribe(position.Mint)
		return err
	}

	c.mu.Lock()
	c.active[position.Mint] = &entry{monitor: mon}
	c.mu.Unlock()
	observability.RecordPositionOpened()

	c.monitorWG.Add(1)
	go func() {
		defer c.monitorWG.Done()
		defer c.release(position.Mint)
		defer c.feed.Unsubscribe(position.Mint)

		err := mon.Run(c.monitorCtx)
		state := mon.State()
		observability.RecordPositionClosed(string(state))
		if err != nil && c.monitorCtx.Err() == nil {
			c.logger.WithError(err).WithField("mint", position.Mint).Error("position monitor stopped abnormally")
			c.alert(context.Background(), fmt.Sprintf("Monitor for %s stopped: %v", position.Mint, err))
			return
		}
		c.logger.WithFields(logrus.Fields{
			"mint":  position.Mint,
			"state": state,
		}).Info("position monitor finished")
	}()
	return nil
}

// teeTicks forwards price updates to the monitor while archiving them.
func (c *Coordinator) teeTicks(mint string, updates <-chan domain.PriceUpdate) <-chan domain.PriceUpdate {
	if c.ticks == nil {
		return updates
	}

	out := make(chan domain.PriceUpdate, cap(updates))
	go func() {
		defer close(out)
		for update := range updates {
			observability.DefaultMetrics.PriceUpdatesReceived.Inc()
			tick := &domain.PriceTick{Mint: update.Mint, Price: update.Price, TimestampMs: update.Timestamp}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.ticks.InsertBulk(ctx, []*domain.PriceTick{tick}); err != nil {
				c.logger.WithError(err).WithField("mint", mint).Warn("price tick archive write failed")
			}
			cancel()

			select {
			case out <- update:
			case <-c.monitorCtx.Done():
				return
			}
		}
	}()
	return out
}

// recordMetadata looks up market data and appends a token record.
func (c *Coordinator) recordMetadata(ctx context.Context, mint string, sig domain.Signal, log *logrus.Entry) {
	if c.metadata == nil || c.tokens == nil {
		return
	}

	record, err := c.metadata.Lookup(ctx, mint, sig.MentionedAt)
	if err != nil {
		log.WithError(err).Warn("metadata lookup failed")
		return
	}
	record.CreatedAt = time.Now().UnixMilli()

	start := time.Now()
	err = c.tokens.Insert(ctx, record)
	observability.RecordDBQuery("postgres", "insert_token_record", time.Since(start).Seconds(), err)
	if err != nil {
		// Duplicates are expected when the same mint resurfaces.
		log.WithError(err).Debug("token record not inserted")
	}
}

// reserve claims the registry slot for a mint. The check-then-insert is
// the serialization point behind the one-position-per-mint invariant.
func (c *Coordinator) reserve(mint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[mint]; ok {
		return false
	}
	c.active[mint] = &entry{}
	return true
}

func (c *Coordinator) release(mint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, mint)
}

func (c *Coordinator) alert(ctx context.Context, text string) {
	if c.alerter == nil {
		return
	}
	if err := c.alerter.Notify(ctx, text); err != nil {
		c.logger.WithError(err).Warn("alert delivery failed")
	}
}
