package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"solana-sniper/internal/domain"
)

// WSFeedConfig configures WebSocket feed behavior.
type WSFeedConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSFeedConfig returns default WebSocket feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// WSFeed implements Feed over gorilla/websocket. The connection is
// supervised: on read failure it reconnects with exponential backoff and
// resubscribes every active mint, keeping subscriber channels intact.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig
	logger   *logrus.Entry

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subsMu guards the three maps below as one unit.
	subsMu sync.RWMutex
	// subs maps subscription ID to subscriber channel.
	subs map[int64]chan domain.PriceUpdate
	// mintSubs maps mint to its current subscription ID.
	mintSubs map[string]int64
	// subMints is the reverse mapping, used for resubscription.
	subMints map[int64]string

	// pendingSubs maps request ID to channel waiting for subscription ID.
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

var _ Feed = (*WSFeed)(nil)

// NewWSFeed creates a new WebSocket price feed and connects to the endpoint.
func NewWSFeed(ctx context.Context, endpoint string, config *WSFeedConfig, logger *logrus.Logger) (*WSFeed, error) {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	f := &WSFeed{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger.WithField("component", "pricefeed"),
		subs:        make(map[int64]chan domain.PriceUpdate),
		mintSubs:    make(map[string]int64),
		subMints:    make(map[int64]string),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// SubscribeMint subscribes to price updates for a single mint. A mint can
// have at most one active subscription.
func (f *WSFeed) SubscribeMint(ctx context.Context, mint string) (<-chan domain.PriceUpdate, error) {
	if f.closed.Load() {
		return nil, fmt.Errorf("feed closed")
	}

	f.subsMu.RLock()
	_, exists := f.mintSubs[mint]
	f.subsMu.RUnlock()
	if exists {
		return nil, fmt.Errorf("mint %s already subscribed", mint)
	}

	subID, err := f.subscribeMintInternal(ctx, mint)
	if err != nil {
		return nil, err
	}

	// Large buffer absorbs bursts; the dispatcher blocks rather than
	// dropping updates.
	ch := make(chan domain.PriceUpdate, 1024)
	f.subsMu.Lock()
	f.subs[subID] = ch
	f.mintSubs[mint] = subID
	f.subMints[subID] = mint
	f.subsMu.Unlock()

	return ch, nil
}

// Unsubscribe stops the subscription for a mint and closes its channel.
func (f *WSFeed) Unsubscribe(mint string) error {
	f.subsMu.Lock()
	subID, ok := f.mintSubs[mint]
	if !ok {
		f.subsMu.Unlock()
		return fmt.Errorf("mint %s not subscribed", mint)
	}
	ch := f.subs[subID]
	delete(f.subs, subID)
	delete(f.mintSubs, mint)
	delete(f.subMints, subID)
	f.subsMu.Unlock()

	if ch != nil {
		close(ch)
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      f.requestID.Add(1),
		Method:  "priceUnsubscribe",
		Params:  []interface{}{subID},
	}

	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := f.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write unsubscribe: %w", err)
	}
	return nil
}

// Close closes the WebSocket connection and all subscription channels.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil // Already closed
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.subsMu.Lock()
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
	f.mintSubs = make(map[string]int64)
	f.subMints = make(map[int64]string)
	f.subsMu.Unlock()

	f.pendingSubsMu.Lock()
	for id, ch := range f.pendingSubs {
		close(ch)
		delete(f.pendingSubs, id)
	}
	f.pendingSubsMu.Unlock()

	f.wg.Wait()
	return nil
}

// readLoop reads messages from the WebSocket and dispatches to subscribers.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

// reconnect dials until the connection is restored, backing off
// exponentially up to MaxReconnectDelay. With the connection down no
// read error will ever fire again, so this loop is the only way back;
// it gives up only when the feed is closed.
func (f *WSFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	for !f.closed.Load() {
		select {
		case <-f.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := f.connect(ctx)
		cancel()
		if err == nil {
			f.logger.Info("reconnected, resubscribing active mints")
			f.resubscribeAll()
			return
		}

		f.logger.WithError(err).WithField("retry_in", delay.String()).Warn("reconnect failed")
		delay = delay * 2
		if delay > f.config.MaxReconnectDelay {
			delay = f.config.MaxReconnectDelay
		}
	}
}

// resubscribeAll re-issues subscriptions for all active mints after a
// reconnect, rebinding existing channels to the new subscription IDs.
func (f *WSFeed) resubscribeAll() {
	f.subsMu.RLock()
	active := make(map[int64]string, len(f.subMints))
	for id, mint := range f.subMints {
		active[id] = mint
	}
	f.subsMu.RUnlock()

	for oldSubID, mint := range active {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := f.subscribeMintInternal(ctx, mint)
		cancel()

		if err != nil {
			f.logger.WithError(err).WithField("mint", mint).Warn("resubscribe failed, keeping old mapping")
			continue
		}

		f.subsMu.Lock()
		ch, ok := f.subs[oldSubID]
		if ok {
			delete(f.subs, oldSubID)
			delete(f.subMints, oldSubID)
			f.subs[newSubID] = ch
			f.mintSubs[mint] = newSubID
			f.subMints[newSubID] = mint
		}
		f.subsMu.Unlock()
	}
}

// subscribeMintInternal sends a subscribe request and waits for the
// subscription ID without touching the channel mappings.
func (f *WSFeed) subscribeMintInternal(ctx context.Context, mint string) (int64, error) {
	if f.closed.Load() {
		return 0, fmt.Errorf("feed closed")
	}

	reqID := f.requestID.Add(1)

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "priceSubscribe",
		Params: []interface{}{
			map[string]string{"mint": mint},
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	f.pendingSubsMu.Lock()
	f.pendingSubs[reqID] = confirmCh
	f.pendingSubsMu.Unlock()

	dropPending := func() {
		f.pendingSubsMu.Lock()
		delete(f.pendingSubs, reqID)
		f.pendingSubsMu.Unlock()
	}

	f.connMu.Lock()
	if f.conn == nil {
		f.connMu.Unlock()
		dropPending()
		return 0, fmt.Errorf("not connected")
	}

	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	err := f.conn.WriteJSON(req)
	f.connMu.Unlock()

	if err != nil {
		dropPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(f.config.SubscribeTimeout):
		dropPending()
		return 0, fmt.Errorf("subscription timeout after %s", f.config.SubscribeTimeout)
	case <-f.done:
		return 0, fmt.Errorf("feed closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// handleMessage processes an incoming WebSocket message.
func (f *WSFeed) handleMessage(message []byte) {
	// Subscription confirmation first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		f.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "priceNotification" {
		f.handlePriceNotification(&notif)
		return
	}

	var errResp struct {
		JSONRPC string `json:"jsonrpc"`
		ID      uint64 `json:"id"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		// Don't crash on error responses, the subscription will time out
		f.logger.WithFields(logrus.Fields{
			"code":    errResp.Error.Code,
			"message": errResp.Error.Message,
		}).Warn("feed error response")
	}
}

func (f *WSFeed) handleSubscribeResponse(resp *wsSubscribeResponse) {
	f.pendingSubsMu.Lock()
	ch, ok := f.pendingSubs[resp.ID]
	if ok {
		delete(f.pendingSubs, resp.ID)
	}
	f.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

func (f *WSFeed) handlePriceNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	subID := notif.Params.Subscription
	value := notif.Params.Result.Value

	update := domain.PriceUpdate{
		Mint:      value.Mint,
		Price:     value.Price,
		Timestamp: value.TimestampMs,
	}

	f.subsMu.RLock()
	ch, ok := f.subs[subID]
	f.subsMu.RUnlock()

	if ok {
		// Block until we can send - never drop updates
		select {
		case ch <- update:
		case <-f.done:
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			f.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext   `json:"context"`
	Value   wsPriceValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsPriceValue struct {
	Mint        string  `json:"mint"`
	Price       float64 `json:"price"`
	TimestampMs int64   `json:"timestampMs"`
}
