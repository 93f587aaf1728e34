package xrpl

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config configures WebSocket client behavior.
type Config struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
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
	// RequestTimeout bounds one request/response round trip.
	RequestTimeout time.Duration
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:  10 * time.Second,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		RequestTimeout:    20 * time.Second,
	}
}

// Client is a WebSocket JSON-RPC client for one rippled endpoint. Requests
// are correlated to responses by numeric id; stream notifications are fanned
// out on a single subscription channel.
type Client struct {
	endpoint string
	config   Config

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to the channel waiting for its response
	pending   map[uint64]chan *envelope
	pendingMu sync.Mutex

	// streamCh receives all stream notifications; activeSub is replayed
	// after a reconnect
	streamCh  chan StreamMessage
	activeSub *SubscribeRequest
	streamMu  sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// RPCError is an error envelope returned by the server, distinct from
// transport failures.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %s: %s", e.Code, e.Message)
}

// envelope is a response frame correlated by id.
type envelope struct {
	ID           uint64          `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorCode    string          `json:"error,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Dial creates a new client and connects to the endpoint.
func Dial(ctx context.Context, endpoint string, config *Config) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		pending:  make(map[uint64]chan *envelope),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Endpoint returns the URL this client is connected to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// connect establishes the WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// Request performs one command round trip. params fields are merged into the
// request frame next to "id" and "command". A server error envelope is
// returned as *RPCError.
func (c *Client) Request(ctx context.Context, command string, params map[string]interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)

	frame := make(map[string]interface{}, len(params)+2)
	for k, v := range params {
		frame[k] = v
	}
	frame["id"] = reqID
	frame["command"] = command

	respCh := make(chan *envelope, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = respCh
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		cleanup()
		return nil, fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(frame)
	c.connMu.Unlock()

	if err != nil {
		cleanup()
		return nil, fmt.Errorf("write %s request: %w", command, err)
	}

	select {
	case env := <-respCh:
		// Close drains the pending map by closing its channels; a nil
		// envelope means shutdown, not a response.
		if env == nil {
			return nil, fmt.Errorf("client closed")
		}
		if env.Status == "error" || env.ErrorCode != "" {
			return env.Result, &RPCError{Code: env.ErrorCode, Message: env.ErrorMessage}
		}
		return env.Result, nil
	case <-time.After(c.config.RequestTimeout):
		cleanup()
		return nil, fmt.Errorf("%s request timeout after %v", command, c.config.RequestTimeout)
	case <-c.done:
		return nil, fmt.Errorf("client closed")
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	}
}

// Subscribe opens the ledger / account / book streams described by req.
// All notifications arrive on the returned channel; the subscription is
// replayed automatically after a reconnect.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) (<-chan StreamMessage, error) {
	if _, err := c.Request(ctx, "subscribe", subscribeParams(req)); err != nil {
		return nil, err
	}

	c.streamMu.Lock()
	defer c.streamMu.Unlock()

	if c.streamCh == nil {
		// Large buffer absorbs bursts; sends block rather than drop.
		c.streamCh = make(chan StreamMessage, 10000)
	}
	c.activeSub = &req
	return c.streamCh, nil
}

func subscribeParams(req SubscribeRequest) map[string]interface{} {
	params := make(map[string]interface{})
	if len(req.Streams) > 0 {
		params["streams"] = req.Streams
	}
	if len(req.Accounts) > 0 {
		params["accounts"] = req.Accounts
	}
	if len(req.Books) > 0 {
		books := make([]map[string]interface{}, 0, len(req.Books))
		for _, b := range req.Books {
			books = append(books, map[string]interface{}{
				"taker_gets": assetSpec(b.TakerGets),
				"taker_pays": assetSpec(b.TakerPays),
				"snapshot":   b.Snapshot,
				"both":       b.Both,
			})
		}
		params["books"] = books
	}
	return params
}

// assetSpec renders an amount as a currency specifier without a value, the
// form book subscriptions and book_offers expect.
func assetSpec(a Amount) map[string]interface{} {
	if a.Native {
		return map[string]interface{}{"currency": "XRP"}
	}
	return map[string]interface{}{"currency": a.Currency, "issuer": a.Issuer}
}

// Close closes the connection and all channels.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	c.streamMu.Lock()
	if c.streamCh != nil {
		close(c.streamCh)
		c.streamCh = nil
	}
	c.streamMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads frames and dispatches responses and notifications.
func (c *Client) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect re-dials and replays the active subscription.
func (c *Client) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Next read error triggers another attempt.
		return
	}

	c.streamMu.Lock()
	sub := c.activeSub
	c.streamMu.Unlock()

	if sub != nil {
		if _, err := c.Request(ctx, "subscribe", subscribeParams(*sub)); err != nil {
			log.Printf("[ws] resubscribe after reconnect failed: %v", err)
		}
	}
}

// handleMessage routes one frame to a pending request or the stream channel.
func (c *Client) handleMessage(message []byte) {
	var probe struct {
		ID   *uint64 `json:"id"`
		Type string  `json:"type"`
	}
	if err := json.Unmarshal(message, &probe); err != nil {
		return
	}

	switch {
	case probe.ID != nil && probe.Type != "ledgerClosed" && probe.Type != "transaction":
		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			return
		}
		c.dispatchResponse(&env)

	case probe.Type == "ledgerClosed":
		var lc LedgerClosed
		if err := json.Unmarshal(message, &lc); err != nil {
			return
		}
		c.deliverStream(StreamMessage{Type: "ledgerClosed", Ledger: &lc, Raw: message})

	case probe.Type == "transaction":
		var ev TransactionEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			return
		}
		c.deliverStream(StreamMessage{Type: "transaction", Transaction: &ev, Raw: message})
	}
}

func (c *Client) dispatchResponse(env *envelope) {
	c.pendingMu.Lock()
	ch, ok := c.pending[env.ID]
	if ok {
		delete(c.pending, env.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		select {
		case ch <- env:
		default:
		}
	}
}

func (c *Client) deliverStream(msg StreamMessage) {
	c.streamMu.Lock()
	ch := c.streamCh
	c.streamMu.Unlock()

	if ch == nil {
		return
	}

	// Block until delivered - never drop stream events.
	select {
	case ch <- msg:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			c.connMu.Unlock()
		}
	}
}
