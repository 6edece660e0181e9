package octohub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Client supervises a single logical channel to an OctoHub server.
//
// It owns at most one transport connection and the heartbeat and reconnect
// timers around it. Every event (consumer call, inbound frame, close, timer)
// is handled to completion under one lock, so state and notifications never
// diverge. Notifications are delivered after the lock is released.
type Client struct {
	cfg      Config
	resolver Resolver
	dialer   dialer
	clock    clock
	log      zerolog.Logger
	policy   reconnectPolicy
	bridge   *bridge
	registry *handlerRegistry

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc

	mu       sync.Mutex
	phase    phase
	attempts int // consecutive reconnectable failures
	closed   bool
}

// NewClient creates a new client with the given configuration and endpoint resolver.
// The client is not connected until Connect() is called.
func NewClient(cfg Config, resolver Resolver, opts ...ClientOption) (*Client, error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	if resolver == nil {
		return nil, errors.New("Resolver must not be nil")
	}

	o := clientDefaults()
	for _, opt := range opts {
		opt(&o)
	}
	if o.dialer == nil {
		o.dialer = &wsDialer{
			handshakeTimeout: resolved.DialTimeout,
			writeTimeout:     resolved.WriteTimeout,
			header:           o.header,
		}
	}
	if o.onError == nil {
		o.onError = LogErrors(o.logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:      resolved,
		resolver: resolver,
		dialer:   o.dialer,
		clock:    o.clock,
		log:      o.logger,
		policy:   newReconnectPolicy(resolved.ReconnectInterval, resolved.MaxReconnectAttempts),
		bridge:   newBridge(o.logger, o.onError),
		registry: newHandlerRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		phase:    disconnectedPhase{},
	}
	c.bridge.onMessage(c.route)
	return c, nil
}

// Connect resolves an endpoint and opens the connection.
//
// It is a no-op while the client is already connecting or connected. Called
// while a reconnect is pending, it cancels the pending timer and tries
// immediately. ctx bounds the resolve and dial steps of this attempt.
//
// Connect blocks until the attempt settles. Failures are not returned: they
// enter the reconnect path and are observed through OnStatusChange. The only
// error is ErrClientClosed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.unlock()
		return ErrClientClosed
	}

	switch p := c.phase.(type) {
	case *connectingPhase, *connectedPhase:
		c.log.Debug().Str("state", p.state().String()).Msg("already connecting or connected")
		c.unlock()
		return nil
	case *reconnectingPhase:
		p.timer.Stop()
	}

	attempt := c.beginAttempt(ctx)
	c.unlock()

	c.runAttempt(attempt)
	return nil
}

// Disconnect closes the connection with a normal closure and cancels every
// pending timer and attempt. It is safe to call in any state and idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.unlock()
	c.disconnectLocked("client disconnect")
}

// Close disposes the client. It disconnects and rejects further Connect calls.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.disconnectLocked("client closed")
	c.cancel()
	return nil
}

// Send stamps msg with the current time and writes it to the connection.
// It reports false, without writing, when the client is not connected, and
// false when the write fails. msg itself is not modified.
func (c *Client) Send(msg *Message) bool {
	if msg == nil {
		return false
	}

	c.mu.Lock()
	cp, ok := c.phase.(*connectedPhase)
	if !ok {
		c.mu.Unlock()
		c.log.Debug().Str("action", msg.Action).Msg("not connected, message not sent")
		return false
	}
	conn := cp.conn
	c.mu.Unlock()

	if err := c.write(conn, *msg); err != nil {
		c.log.Warn().Err(err).Str("action", msg.Action).Msg("send failed")
		c.bridge.publishError(ClientError{
			Kind:      ErrTransportWrite,
			Action:    msg.Action,
			RequestID: msg.RequestID,
			Cause:     err,
			Timestamp: c.clock.Now(),
		})
		c.bridge.flush()
		return false
	}
	return true
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase.state()
}

// IsConnected reports whether the client is in StateConnected.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// ReconnectAttempts returns the number of consecutive reconnectable failures.
// It is reset by a successful connection and by Disconnect.
func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Err returns the cause of the failure while the client is in StateFailed, nil otherwise.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.phase.(failedPhase); ok {
		return p.cause
	}
	return nil
}

// ConnectionCount returns how many times the client has entered StateConnected.
// A count above one means the current session was resumed after a loss.
func (c *Client) ConnectionCount() uint64 {
	return c.bridge.connectionCount()
}

// LastMessage returns the most recent inbound application message, or nil.
func (c *Client) LastMessage() *Message {
	return c.bridge.lastMessage()
}

// OnStatusChange registers fn for state transitions. Redundant assignments of
// the same state are not reported. The returned func unregisters fn.
func (c *Client) OnStatusChange(fn StatusHandler) (cancel func()) {
	return c.bridge.onStatus(fn)
}

// OnMessage registers fn for inbound application messages. Heartbeat control
// messages are never delivered. The returned func unregisters fn.
func (c *Client) OnMessage(fn MessageHandler) (cancel func()) {
	return c.bridge.onMessage(fn)
}

// Handle registers a handler for inbound messages with the given action.
// Handlers run on their own goroutine; replies are sent with the request's
// request_id. The reserved ping and pong actions cannot be handled.
func (c *Client) Handle(action string, fn HandlerFunc) error {
	return c.registry.register(action, fn)
}

// Actions returns the actions that have a registered handler.
func (c *Client) Actions() []string {
	return c.registry.actions()
}

// unlock releases the supervisor lock and delivers queued notifications.
func (c *Client) unlock() {
	c.mu.Unlock()
	c.bridge.flush()
}

// transition is the single state mutator. It publishes a notification only
// when the visible state actually changes.
func (c *Client) transition(next phase) {
	prev := c.phase.state()
	c.phase = next
	if s := next.state(); s != prev {
		c.log.Debug().Str("from", prev.String()).Str("to", s.String()).Int("attempt", c.attempts).Msg("state change")
		c.bridge.publishStatus(s)
	}
}

func (c *Client) report(kind ErrorKind, cause error) {
	c.bridge.publishError(ClientError{
		Kind:      kind,
		Attempt:   c.attempts,
		Cause:     cause,
		Timestamp: c.clock.Now(),
	})
}

func (c *Client) disconnectLocked(reason string) {
	switch p := c.phase.(type) {
	case *connectingPhase:
		p.cancel()
	case *connectedPhase:
		p.heartbeat.stop()
		if err := p.conn.close(CloseNormalClosure, reason); err != nil {
			c.log.Debug().Err(err).Msg("close transport")
		}
	case *reconnectingPhase:
		p.timer.Stop()
	}
	c.attempts = 0
	c.transition(disconnectedPhase{})
}

// beginAttempt enters StateConnecting. The caller holds the lock and must
// run the attempt after releasing it.
func (c *Client) beginAttempt(parent context.Context) *connectingPhase {
	ctx, cancel := context.WithCancel(parent)
	p := &connectingPhase{ctx: ctx, cancel: cancel}
	c.transition(p)
	return p
}

func (c *Client) runAttempt(p *connectingPhase) {
	url, err := c.resolver.Resolve(p.ctx)
	if err != nil {
		c.attemptFailed(p, ErrResolveFailure, err)
		return
	}

	conn, err := c.dialer.dial(p.ctx, url)
	if err != nil {
		c.attemptFailed(p, ErrTransportFailure, err)
		return
	}

	c.attemptSucceeded(p, url, conn)
}

func (c *Client) attemptSucceeded(p *connectingPhase, url string, conn transport) {
	c.mu.Lock()
	defer c.unlock()
	p.cancel()

	if c.phase != p {
		// Disconnected or closed while dialing.
		conn.close(CloseNormalClosure, "connect cancelled")
		return
	}

	cp := &connectedPhase{conn: conn, url: url}
	cp.heartbeat = newHeartbeat(c.clock, c.cfg.HeartbeatInterval, c.cfg.HeartbeatTimeout, c.onHeartbeat)
	c.attempts = 0
	c.transition(cp)
	cp.heartbeat.start()
	conn.listen(c)

	c.log.Info().Str("url", url).Uint64("connections", c.bridge.connectionCount()).Msg("connected")
}

func (c *Client) attemptFailed(p *connectingPhase, kind ErrorKind, err error) {
	c.mu.Lock()
	defer c.unlock()
	p.cancel()

	if c.phase != p {
		return
	}

	c.log.Warn().Err(err).Int("attempt", c.attempts).Msg("connect attempt failed")
	c.report(kind, err)
	c.transition(failedPhase{cause: err})
	c.scheduleReconnect(err)
}

// scheduleReconnect counts a reconnectable failure and either arms the
// reconnect timer or gives up once the ceiling is reached.
func (c *Client) scheduleReconnect(cause error) {
	c.attempts++

	delay, ok := c.policy.next(c.attempts)
	if !ok {
		c.log.Error().Int("attempts", c.attempts).Int("max", c.cfg.MaxReconnectAttempts).Msg("reconnect attempts exhausted, giving up")
		err := fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, c.attempts, cause)
		c.report(ErrReconnectExhausted, err)
		c.transition(failedPhase{cause: err})
		return
	}

	rp := &reconnectingPhase{attempt: c.attempts}
	rp.timer = c.clock.AfterFunc(delay, func() {
		c.reconnectDue(rp)
	})
	c.log.Info().Int("attempt", c.attempts).Int("max", c.cfg.MaxReconnectAttempts).Dur("delay", delay).Msg("scheduling reconnect")
	c.transition(rp)
}

func (c *Client) reconnectDue(rp *reconnectingPhase) {
	c.mu.Lock()
	if c.phase != rp {
		c.unlock()
		return
	}
	p := c.beginAttempt(c.ctx)
	c.unlock()

	c.runAttempt(p)
}

// lost handles an unexpected end of the current connection.
func (c *Client) lost(cp *connectedPhase, kind ErrorKind, cause error) {
	cp.heartbeat.stop()
	c.report(kind, cause)
	c.transition(disconnectedPhase{})
	c.scheduleReconnect(cause)
}

func (c *Client) handleFrame(t transport, payload []byte) {
	msg, parseErr := parseMessage(payload)

	c.mu.Lock()
	cp, ok := c.phase.(*connectedPhase)
	if !ok || cp.conn != t {
		c.unlock()
		return
	}

	if parseErr != nil {
		c.log.Warn().Err(parseErr).Int("bytes", len(payload)).Msg("dropping malformed message")
		c.bridge.publishError(ClientError{
			Kind:      ErrParseFailure,
			Cause:     parseErr,
			Raw:       payload,
			Timestamp: c.clock.Now(),
		})
		c.unlock()
		return
	}

	switch msg.Action {
	case ActionPong:
		if cp.heartbeat.pong() {
			c.log.Debug().Str("request_id", msg.RequestID).Msg("pong received")
		}
		c.unlock()
	case ActionPing:
		conn := cp.conn
		c.unlock()
		if err := c.write(conn, Message{Action: ActionPong, RequestID: msg.RequestID}); err != nil {
			c.log.Debug().Err(err).Msg("pong reply failed")
		}
	default:
		c.bridge.publishMessage(msg)
		c.unlock()
	}
}

func (c *Client) handleClose(t transport, code int, reason string) {
	c.mu.Lock()
	defer c.unlock()

	cp, ok := c.phase.(*connectedPhase)
	if !ok || cp.conn != t {
		return
	}

	if code == CloseNormalClosure {
		cp.heartbeat.stop()
		c.log.Info().Int("code", code).Str("reason", reason).Msg("connection closed")
		c.transition(disconnectedPhase{})
		return
	}

	c.log.Warn().Int("code", code).Str("reason", reason).Msg("connection lost")
	c.lost(cp, ErrTransportFailure, &ConnectionError{URL: cp.url, Code: code, Reason: reason})
}

func (c *Client) onHeartbeat(h *heartbeat, kind beatKind, seq uint64) {
	c.mu.Lock()
	cp, ok := c.phase.(*connectedPhase)
	if !ok || cp.heartbeat != h || h.stopped {
		c.unlock()
		return
	}

	switch kind {
	case beatTick:
		if !h.beat() {
			c.pongTimeout(cp)
			c.unlock()
			return
		}
		conn := cp.conn
		c.unlock()

		ping := Message{Action: ActionPing, RequestID: generateID()}
		if err := c.write(conn, ping); err != nil {
			c.log.Debug().Err(err).Msg("ping failed")
			return
		}
		c.log.Debug().Str("request_id", ping.RequestID).Msg("ping sent")

	case beatTimeout:
		if h.expired(seq) {
			c.pongTimeout(cp)
		}
		c.unlock()
	}
}

// pongTimeout drops a connection whose ping went unanswered. Closed with the
// normal code, but routed as a loss here: no close event is delivered for a
// local close.
func (c *Client) pongTimeout(cp *connectedPhase) {
	c.log.Warn().Dur("timeout", c.cfg.HeartbeatTimeout).Msg("pong timeout, closing connection")
	cp.heartbeat.stop()
	if err := cp.conn.close(CloseNormalClosure, "pong timeout"); err != nil {
		c.log.Debug().Err(err).Msg("close transport")
	}
	c.lost(cp, ErrHeartbeatTimeout, ErrPongTimeout)
}

func (c *Client) write(conn transport, msg Message) error {
	msg.Timestamp = c.clock.Now().UnixMilli()
	data, err := marshalMessage(&msg)
	if err != nil {
		return err
	}
	return conn.send(data)
}

// route dispatches inbound messages to registered action handlers.
func (c *Client) route(msg *Message) {
	fn, ok := c.registry.lookup(msg.Action)
	if !ok {
		return
	}
	go c.runHandler(fn, msg)
}

func (c *Client) runHandler(fn HandlerFunc, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			c.handlerFailed(msg, fmt.Errorf("handler panic: %v", r))
		}
	}()

	resp, err := fn(msg)
	if err != nil {
		c.handlerFailed(msg, err)
		return
	}

	if resp != nil {
		if resp.RequestID == "" {
			resp.RequestID = msg.RequestID
		}
		c.Send(resp)
	}
}

func (c *Client) handlerFailed(msg *Message, err error) {
	c.bridge.publishError(ClientError{
		Kind:      ErrHandlerFailure,
		Action:    msg.Action,
		RequestID: msg.RequestID,
		Cause:     err,
		Timestamp: c.clock.Now(),
	})
	c.bridge.flush()

	c.Send(&Message{
		Action: ActionError,
		Data: ErrorData{
			Code:    ErrorCodeInternalError,
			Message: err.Error(),
			Details: msg.Action,
		},
		RequestID: msg.RequestID,
	})
}
