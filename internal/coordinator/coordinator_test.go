package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/riskgate"
	"solana-sniper/internal/storage/memory"
)

const (
	baseMint = "So11111111111111111111111111111111111111112"
	mintA    = "TokenMintA111111111111111111111111111111111A"
)

type fakeGate struct {
	mu      sync.Mutex
	calls   int
	admit   bool
	blockCh chan struct{} // when set, Evaluate blocks until closed
}

func (g *fakeGate) Evaluate(_ context.Context, mint string) riskgate.Decision {
	g.mu.Lock()
	g.calls++
	block := g.blockCh
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	if g.admit {
		score := 92
		return riskgate.Decision{Admit: true, Score: &score}
	}
	score := 70
	return riskgate.Decision{Admit: false, Score: &score, Reason: "low score"}
}

func (g *fakeGate) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSubmitter struct {
	mu     sync.Mutex
	orders []domain.SwapOrder
}

func (f *fakeSubmitter) Submit(_ context.Context, order domain.SwapOrder) *domain.OrderResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return &domain.OrderResult{
		Status:         domain.OrderFilled,
		TxSignature:    fmt.Sprintf("Sig%d", len(f.orders)),
		EffectivePrice: 1.0,
	}
}

func (f *fakeSubmitter) submitted() []domain.SwapOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SwapOrder, len(f.orders))
	copy(out, f.orders)
	return out
}

// fakeFeed hands out channels the test pushes updates into.
type fakeFeed struct {
	mu           sync.Mutex
	channels     map[string]chan domain.PriceUpdate
	unsubscribed []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{channels: make(map[string]chan domain.PriceUpdate)}
}

func (f *fakeFeed) SubscribeMint(_ context.Context, mint string) (<-chan domain.PriceUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[mint]; ok {
		return nil, fmt.Errorf("mint %s already subscribed", mint)
	}
	ch := make(chan domain.PriceUpdate, 16)
	f.channels[mint] = ch
	return ch, nil
}

func (f *fakeFeed) Unsubscribe(mint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[mint]; ok {
		close(ch)
		delete(f.channels, mint)
		f.unsubscribed = append(f.unsubscribed, mint)
	}
	return nil
}

func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) push(mint string, price float64) bool {
	f.mu.Lock()
	ch, ok := f.channels[mint]
	f.mu.Unlock()
	if !ok {
		return false
	}
	ch <- domain.PriceUpdate{Mint: mint, Price: price, Timestamp: time.Now().UnixMilli()}
	return true
}

func (f *fakeFeed) subscribed(mint string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.channels[mint]
	return ok
}

func newCoordinator(t *testing.T, gate Gate, exec OrderSubmitter, feed *fakeFeed, opts func(*Options)) *Coordinator {
	t.Helper()
	o := Options{
		Gate:             gate,
		Executor:         exec,
		Feed:             feed,
		BaseMint:         baseMint,
		BuyAmount:        100,
		TargetMultiplier: 2.0,
		SellFraction:     0.8,
		MaxSlippageBps:   500,
		GracePeriod:      2 * time.Second,
	}
	if opts != nil {
		opts(&o)
	}
	c, err := New(o)
	require.NoError(t, err)
	return c
}

func TestCoordinator_AdmitBuyAndExit(t *testing.T) {
	gate := &fakeGate{admit: true}
	exec := &fakeSubmitter{}
	feed := newFakeFeed()
	c := newCoordinator(t, gate, exec, feed, nil)

	signals := make(chan domain.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), signals) }()

	signals <- domain.Signal{Source: "twitter/@alpha", Mints: []string{mintA}, MentionedAt: time.Now().UnixMilli()}

	require.Eventually(t, func() bool { return feed.subscribed(mintA) },
		2*time.Second, 10*time.Millisecond, "monitor must subscribe after the buy fills")

	// Entry filled at 1.0; 2.5 crosses the 2.0 target.
	require.True(t, feed.push(mintA, 2.5))

	require.Eventually(t, func() bool { return len(exec.submitted()) == 2 },
		2*time.Second, 10*time.Millisecond, "target crossing must produce the exit order")

	close(signals)
	require.NoError(t, <-done)

	orders := exec.submitted()
	assert.Equal(t, domain.DirectionBuy, orders[0].Direction)
	assert.Equal(t, baseMint, orders[0].InputMint)
	assert.Equal(t, mintA, orders[0].OutputMint)
	assert.Equal(t, int64(100), orders[0].AmountIn)

	assert.Equal(t, domain.DirectionSell, orders[1].Direction)
	assert.Equal(t, mintA, orders[1].InputMint)
	assert.Equal(t, baseMint, orders[1].OutputMint)
	assert.Equal(t, int64(80), orders[1].AmountIn, "sell fraction of the bought quantity")

	assert.Zero(t, c.ActiveCount(), "terminal positions leave the registry")
	assert.Contains(t, feed.unsubscribed, mintA)
}

func TestCoordinator_RejectedCandidateNeverBuys(t *testing.T) {
	gate := &fakeGate{admit: false}
	exec := &fakeSubmitter{}
	feed := newFakeFeed()
	c := newCoordinator(t, gate, exec, feed, nil)

	signals := make(chan domain.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), signals) }()

	signals <- domain.Signal{Source: "twitter/@alpha", Mints: []string{mintA}}
	close(signals)
	require.NoError(t, <-done)

	assert.Equal(t, 1, gate.callCount())
	assert.Empty(t, exec.submitted(), "no swap order for a rejected candidate")
	assert.Zero(t, c.ActiveCount())
}

func TestCoordinator_ConcurrentSignalsCoalesce(t *testing.T) {
	// The gate blocks so the first candidate holds its reservation while
	// the second signal for the same mint arrives.
	release := make(chan struct{})
	gate := &fakeGate{admit: true, blockCh: release}
	exec := &fakeSubmitter{}
	feed := newFakeFeed()
	c := newCoordinator(t, gate, exec, feed, nil)

	signals := make(chan domain.Signal, 2)
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), signals) }()

	signals <- domain.Signal{Source: "twitter/@alpha", Mints: []string{mintA}}
	signals <- domain.Signal{Source: "twitter/@beta", Mints: []string{mintA}}

	require.Eventually(t, func() bool { return gate.callCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool { return feed.subscribed(mintA) },
		2*time.Second, 10*time.Millisecond)

	// Only one buy despite two signals; one active monitor.
	assert.Len(t, exec.submitted(), 1)
	assert.Equal(t, 1, gate.callCount(), "second signal must not reach the gate")
	assert.Equal(t, 1, c.ActiveCount())

	close(signals)
	require.NoError(t, <-done)
}

func TestCoordinator_ShutdownCancelsMonitors(t *testing.T) {
	gate := &fakeGate{admit: true}
	exec := &fakeSubmitter{}
	feed := newFakeFeed()
	c := newCoordinator(t, gate, exec, feed, nil)

	signals := make(chan domain.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), signals) }()

	signals <- domain.Signal{Source: "twitter/@alpha", Mints: []string{mintA}}
	require.Eventually(t, func() bool { return feed.subscribed(mintA) },
		2*time.Second, 10*time.Millisecond)

	// No target was reached; closing the stream must still stop the
	// monitor within the grace period.
	close(signals)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not shut down")
	}
	assert.Len(t, exec.submitted(), 1, "only the entry order was submitted")
	assert.Zero(t, c.ActiveCount())
}

func TestCoordinator_MetadataRecorded(t *testing.T) {
	gate := &fakeGate{admit: true}
	exec := &fakeSubmitter{}
	feed := newFakeFeed()
	tokens := memory.NewTokenRecordStore()

	name := "Test Token"
	c := newCoordinator(t, gate, exec, feed, func(o *Options) {
		o.Tokens = tokens
		o.Metadata = metadataFunc(func(_ context.Context, mint string, discoveredAt int64) (*domain.TokenRecord, error) {
			return &domain.TokenRecord{Mint: mint, Name: &name, DiscoveredAt: discoveredAt}, nil
		})
	})

	signals := make(chan domain.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), signals) }()

	signals <- domain.Signal{Source: "twitter/@alpha", Mints: []string{mintA}, MentionedAt: 1700000000000}
	require.Eventually(t, func() bool { return feed.subscribed(mintA) },
		2*time.Second, 10*time.Millisecond)
	close(signals)
	require.NoError(t, <-done)

	records, err := tokens.GetByMint(context.Background(), mintA)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Test Token", *records[0].Name)
	assert.Equal(t, int64(1700000000000), records[0].DiscoveredAt)
}

type metadataFunc func(ctx context.Context, mint string, discoveredAt int64) (*domain.TokenRecord, error)

func (f metadataFunc) Lookup(ctx context.Context, mint string, discoveredAt int64) (*domain.TokenRecord, error) {
	return f(ctx, mint, discoveredAt)
}

func TestCoordinator_ConfigValidation(t *testing.T) {
	valid := func() Options {
		return Options{
			Gate:             &fakeGate{},
			Executor:         &fakeSubmitter{},
			Feed:             newFakeFeed(),
			BaseMint:         baseMint,
			BuyAmount:        100,
			TargetMultiplier: 2.0,
			SellFraction:     0.8,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing gate", func(o *Options) { o.Gate = nil }},
		{"missing base mint", func(o *Options) { o.BaseMint = "" }},
		{"zero buy amount", func(o *Options) { o.BuyAmount = 0 }},
		{"multiplier below one", func(o *Options) { o.TargetMultiplier = 0.5 }},
		{"sell fraction above one", func(o *Options) { o.SellFraction = 1.5 }},
		{"slippage out of range", func(o *Options) { o.MaxSlippageBps = 20000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(&o)
			_, err := New(o)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}
