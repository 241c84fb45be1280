// Package polymarket implements the venue-facing clients: the streaming
// WebSocket connection manager, the frame normalizer, and the CLOB REST
// client.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/polyfeed/internal/domain"
)

const (
	// connectTimeout bounds how long Connect blocks waiting for the
	// socket to open.
	connectTimeout = 10 * time.Second

	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// heartbeatPeriod is the interval between keep-alive PING text
	// frames, per the venue's WebSocket docs.
	heartbeatPeriod = 30 * time.Second

	// reconnectDelay is the backoff before the single reconnect attempt
	// a public channel makes after a drop.
	reconnectDelay = 2 * time.Second
)

// ChannelType selects the streaming channel variant.
type ChannelType string

const (
	// ChannelMarket is the public market-data channel. It auto-reconnects
	// once per drop.
	ChannelMarket ChannelType = "market"
	// ChannelUser is the private account channel. It requires
	// authentication and never auto-reconnects.
	ChannelUser ChannelType = "user"
)

// FrameHandler receives every raw inbound frame, synchronously on the read
// loop.
type FrameHandler func(raw []byte)

// Stats is a point-in-time view of a connection.
type Stats struct {
	Connected     bool
	MessageCount  int64
	Subscribed    int
	LastMessageAt time.Time
}

// SubscribeOptions carries per-subscription flags.
type SubscribeOptions struct {
	// InitialDump requests the initial orderbook state on subscription
	// (market channel).
	InitialDump bool
}

// WSClient owns one streaming connection: dialing, the auth/subscribe
// handshake on open, the keep-alive heartbeat, the single-shot public
// reconnect, and the subscription set. Raw frames are handed to the
// registered FrameHandler.
type WSClient struct {
	url     string
	channel ChannelType
	creds   domain.CredentialProvider // required for ChannelUser
	logger  *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	connected  bool
	closed     bool
	subscribed map[string]struct{}
	opts       SubscribeOptions

	// dispatchMu gates frame dispatch against Disconnect: once Disconnect
	// returns, no handler call is in flight or will start.
	dispatchMu sync.Mutex

	onFrame FrameHandler
	onError domain.StreamErrorHandler

	msgCount  atomic.Int64
	lastMsgNS atomic.Int64

	done chan struct{}
}

// NewWSClient creates a client for one channel of the streaming endpoint.
// baseURL is the endpoint root, e.g.
// "wss://ws-subscriptions-clob.polymarket.com"; the channel path is
// appended. creds may be nil for the market channel.
func NewWSClient(baseURL string, channel ChannelType, creds domain.CredentialProvider, logger *slog.Logger) *WSClient {
	return &WSClient{
		url:        fmt.Sprintf("%s/ws/%s", baseURL, channel),
		channel:    channel,
		creds:      creds,
		logger:     logger.With(slog.String("component", "ws"), slog.String("channel", string(channel))),
		subscribed: make(map[string]struct{}),
		done:       make(chan struct{}),
	}
}

// OnFrame registers the raw frame handler. Must be called before Connect.
func (w *WSClient) OnFrame(h FrameHandler) { w.onFrame = h }

// OnError registers the transport error handler. Must be called before
// Connect.
func (w *WSClient) OnError(h domain.StreamErrorHandler) { w.onError = h }

// Connect dials the streaming endpoint, blocking up to connectTimeout. On
// open it sends the authenticated subscribe frame (user channel) or
// flushes any subscription queued before the socket was open (market
// channel). It returns an error rather than panicking on failure.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: connect: %w", domain.ErrWSDisconnect)
	}
	if w.connected {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, w.url, nil)
	if err != nil {
		if dialCtx.Err() != nil {
			return fmt.Errorf("polymarket/ws: %w: %v", domain.ErrConnectTimeout, err)
		}
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.conn = conn
	w.connected = true

	if err := w.openHandshakeLocked(ctx); err != nil {
		w.connected = false
		conn.Close()
		w.conn = nil
		return err
	}

	// connDone outlives this connection only; it stops the heartbeat and
	// read loops of a dropped connection without touching their
	// replacements after a reconnect.
	connDone := make(chan struct{})
	go w.readLoop(conn, connDone)
	go w.heartbeatLoop(conn, connDone)

	w.logger.Info("websocket connected", slog.String("url", w.url))
	return nil
}

// openHandshakeLocked sends whatever the just-opened socket requires: an
// auth+subscribe control frame for the user channel, or the full tracked
// subscription set for the market channel (queued subscriptions are
// flushed here exactly once). Caller must hold w.mu.
func (w *WSClient) openHandshakeLocked(ctx context.Context) error {
	switch w.channel {
	case ChannelUser:
		if w.creds == nil {
			return fmt.Errorf("polymarket/ws: user channel: %w", domain.ErrUnauthorized)
		}
		creds, err := w.creds.Credentials(ctx)
		if err != nil {
			return fmt.Errorf("polymarket/ws: fetch credentials: %w", err)
		}
		if !creds.Valid() {
			return fmt.Errorf("polymarket/ws: user channel: %w", domain.ErrUnauthorized)
		}
		return w.sendLocked(userSubscribeCommand(creds, w.subscribedLocked()))
	default:
		if len(w.subscribed) == 0 {
			return nil
		}
		return w.sendLocked(marketSubscribeCommand(w.subscribedLocked(), w.opts))
	}
}

// Subscribe adds token IDs to the tracked subscription set. Repeated calls
// union their IDs. When the socket is not open yet the subscription is
// buffered and flushed exactly once on open; it is never lost.
func (w *WSClient) Subscribe(ctx context.Context, tokenIDs []string, opts SubscribeOptions) error {
	if len(tokenIDs) == 0 {
		return fmt.Errorf("polymarket/ws: subscribe: no token ids")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: subscribe: %w", domain.ErrWSDisconnect)
	}

	for _, id := range tokenIDs {
		w.subscribed[id] = struct{}{}
	}
	w.opts = opts

	if !w.connected {
		// Buffered; openHandshakeLocked flushes the full set on open.
		return nil
	}

	var cmd any
	if w.channel == ChannelUser {
		creds, err := w.creds.Credentials(ctx)
		if err != nil {
			return fmt.Errorf("polymarket/ws: fetch credentials: %w", err)
		}
		cmd = userSubscribeCommand(creds, tokenIDs)
	} else {
		cmd = marketSubscribeCommand(tokenIDs, opts)
	}
	return w.sendLocked(cmd)
}

// Unsubscribe removes one token ID from the tracked set and sends an
// explicit unsubscribe control frame.
func (w *WSClient) Unsubscribe(ctx context.Context, tokenID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.subscribed, tokenID)

	if !w.connected {
		return nil
	}
	return w.sendLocked(unsubscribeCommand(tokenID))
}

// Disconnect stops the read and heartbeat loops and closes the socket. It
// does not return until any in-flight frame dispatch has finished, so no
// handler fires after Disconnect returns.
func (w *WSClient) Disconnect() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.connected = false
	close(w.done)

	var err error
	if w.conn != nil {
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = w.conn.Close()
		w.conn = nil
	}
	w.mu.Unlock()

	// Wait out any dispatch that started before closed was set.
	w.dispatchMu.Lock()
	w.dispatchMu.Unlock() //nolint:staticcheck // empty critical section is the barrier

	w.logger.Info("websocket disconnected")
	return err
}

// Stats reports connection statistics.
func (w *WSClient) Stats() Stats {
	w.mu.Lock()
	connected := w.connected
	subscribed := len(w.subscribed)
	w.mu.Unlock()

	var last time.Time
	if ns := w.lastMsgNS.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Connected:     connected,
		MessageCount:  w.msgCount.Load(),
		Subscribed:    subscribed,
		LastMessageAt: last,
	}
}

// Subscribed returns the current subscription set.
func (w *WSClient) Subscribed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subscribedLocked()
}

// --------------------------------------------------------------------------
// Internal
// --------------------------------------------------------------------------

func (w *WSClient) subscribedLocked() []string {
	ids := make([]string, 0, len(w.subscribed))
	for id := range w.subscribed {
		ids = append(ids, id)
	}
	return ids
}

// sendLocked marshals and writes one control command. Caller holds w.mu.
func (w *WSClient) sendLocked(cmd any) error {
	if w.conn == nil {
		return fmt.Errorf("polymarket/ws: send: %w", domain.ErrNotConnected)
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("polymarket/ws: marshal command: %w", err)
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("polymarket/ws: send command: %w", err)
	}
	return nil
}

// readLoop reads frames until the connection drops or the client closes.
// Frame processing runs synchronously here, so registered handlers must be
// fast and non-blocking.
func (w *WSClient) readLoop(conn *websocket.Conn, connDone chan struct{}) {
	defer close(connDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.handleDrop(err)
			return
		}

		w.msgCount.Add(1)
		w.lastMsgNS.Store(time.Now().UnixNano())

		// Heartbeat echoes are filtered ahead of JSON decoding.
		if s := string(raw); s == "PING" || s == "PONG" {
			continue
		}

		w.dispatchMu.Lock()
		if !w.isClosed() && w.onFrame != nil {
			w.onFrame(raw)
		}
		w.dispatchMu.Unlock()
	}
}

// heartbeatLoop sends a keep-alive PING text frame on a fixed interval for
// the lifetime of one connection. Send failures are silent: the read
// loop's error handling is authoritative for liveness.
func (w *WSClient) heartbeatLoop(conn *websocket.Conn, connDone chan struct{}) {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, []byte("PING"))
		}
	}
}

// handleDrop reacts to a fatal read error. Public channels schedule
// exactly one reconnect attempt; the private channel stays down until the
// caller explicitly re-establishes it (a silent re-auth could replay stale
// credentials).
func (w *WSClient) handleDrop(cause error) {
	w.mu.Lock()
	w.connected = false
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.mu.Unlock()

	w.emitError(fmt.Errorf("polymarket/ws: %w: %v", domain.ErrWSDisconnect, cause))

	if w.channel != ChannelMarket {
		w.logger.Warn("private channel dropped, not reconnecting",
			slog.String("error", cause.Error()))
		return
	}

	w.logger.Warn("public channel dropped, scheduling reconnect",
		slog.String("error", cause.Error()))
	go w.reconnectOnce()
}

// reconnectOnce waits out the backoff and re-runs the full connect
// sequence, including re-subscription of the last-known set, exactly once.
func (w *WSClient) reconnectOnce() {
	select {
	case <-w.done:
		return
	case <-time.After(reconnectDelay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := w.Connect(ctx); err != nil {
		w.emitError(fmt.Errorf("polymarket/ws: reconnect: %w", err))
		w.logger.Error("reconnect attempt failed", slog.String("error", err.Error()))
	}
}

func (w *WSClient) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *WSClient) emitError(err error) {
	w.dispatchMu.Lock()
	if !w.isClosed() && w.onError != nil {
		w.onError(err)
	}
	w.dispatchMu.Unlock()
}
