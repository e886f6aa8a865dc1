package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"AgentDesk/entity"
	"AgentDesk/internal/config"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/metrics"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	defaultHeartbeat = 30 * time.Second
	maxMessageSize   = 64 * 1024

	defaultMaxAttempts = 5
	defaultBackoffCap  = 10 * time.Second
)

// Status is the externally visible connection state.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

// Handler receives every normalized inbound envelope. The client holds
// exactly one handler reference, replaceable at any time via SetHandler.
type Handler interface {
	HandleEnvelope(env entity.Envelope)
}

// StatusFunc is invoked on every connection state transition.
type StatusFunc func(status Status)

// TokenValidator checks whether the auth token is still accepted by
// the server. valid=false with a nil error means the token expired;
// a non-nil error means the check itself could not be completed.
type TokenValidator interface {
	ValidateToken(token string) (bool, error)
}

// RefreshFunc obtains a fresh auth token after the current one expires.
type RefreshFunc func() (string, error)

// Client owns one logical streaming connection to the desk server.
type Client struct {
	url         string
	heartbeat   time.Duration
	maxAttempts int
	backoffCap  time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	state    Status
	token    string
	closed   bool // user-initiated disconnect
	retrying bool
	quit     chan struct{}
	send     chan []byte

	handler   Handler
	statusFn  StatusFunc
	tokens    TokenValidator
	refreshFn RefreshFunc

	validate *validator.Validate
	log      *slog.Logger
}

// NewClient creates a connection client from config. It does not dial;
// call Connect once the handler is wired.
func NewClient(conf *config.Config, logger *slog.Logger) *Client {
	heartbeat := time.Duration(conf.Server.HeartbeatSec) * time.Second
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	maxAttempts := conf.Server.MaxReconnects
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoffCap := time.Duration(conf.Server.BackoffCapMs) * time.Millisecond
	if backoffCap <= 0 {
		backoffCap = defaultBackoffCap
	}

	return &Client{
		url:         conf.Server.WsURL,
		heartbeat:   heartbeat,
		maxAttempts: maxAttempts,
		backoffCap:  backoffCap,
		state:       StatusDisconnected,
		validate:    validator.New(),
		log:         logger.With(sl.Module("ws-client")),
	}
}

// SetHandler replaces the inbound event handler.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// SetStatusFunc sets the state-transition callback.
func (c *Client) SetStatusFunc(f StatusFunc) {
	c.mu.Lock()
	c.statusFn = f
	c.mu.Unlock()
}

// SetTokenValidator sets the collaborator consulted after abnormal closes.
func (c *Client) SetTokenValidator(v TokenValidator) {
	c.mu.Lock()
	c.tokens = v
	c.mu.Unlock()
}

// SetRefreshFunc sets the token refresh callback. Without it an expired
// token is a terminal authentication error.
func (c *Client) SetRefreshFunc(f RefreshFunc) {
	c.mu.Lock()
	c.refreshFn = f
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsConnected() bool {
	return c.State() == StatusConnected
}

// Connect establishes the streaming connection. Calling it while already
// connected or connecting is a no-op.
func (c *Client) Connect(token string) error {
	c.mu.Lock()
	if c.state == StatusConnected || c.state == StatusConnecting || c.retrying {
		c.mu.Unlock()
		return nil
	}
	c.token = token
	c.closed = false
	c.quit = make(chan struct{})
	c.mu.Unlock()

	return c.dial()
}

func (c *Client) dial() error {
	c.setState(StatusConnecting)

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(c.url, header)
	if err != nil {
		// do not stick in connecting, or a later Connect would no-op
		c.setState(StatusDisconnected)
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.send = make(chan []byte, 256)
	send := c.send
	quit := c.quit
	c.mu.Unlock()

	c.setState(StatusConnected)

	done := make(chan struct{})
	go c.writePump(conn, send, quit, done)
	go c.readPump(conn, done)

	return nil
}

// readPump pumps frames off the connection, normalizes them and hands
// them to the handler. It owns disconnect detection; closing done tells
// the write pump the connection is gone.
func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			close(done)
			c.handleClose(err)
			return
		}

		env, err := Normalize(raw)
		if err != nil {
			c.log.Warn("dropping malformed frame", sl.Err(err))
			metrics.EventsDropped.WithLabelValues("malformed").Inc()
			continue
		}

		if env.Type == entity.EventPing || env.Type == entity.EventPong {
			continue
		}

		if env.Type == entity.EventNewMessage {
			if err := c.checkMessage(env.Payload); err != nil {
				c.log.Warn("dropping invalid message payload", sl.Err(err))
				metrics.EventsDropped.WithLabelValues("invalid").Inc()
				continue
			}
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h.HandleEnvelope(env)
		}
	}
}

// checkMessage enforces the message schema on inbound new_message
// payloads before they reach the handler.
func (c *Client) checkMessage(payload []byte) error {
	var msg entity.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	return c.validate.Struct(&msg)
}

// writePump serializes all writes and runs the heartbeat. The ticker
// stops the moment the connection goes away, via the per-connection
// done channel, not first at the next tick.
func (c *Client) writePump(conn *websocket.Conn, send chan []byte, quit, done chan struct{}) {
	ticker := time.NewTicker(c.heartbeat)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	ping, _ := json.Marshal(map[string]string{"event": entity.EventPing})

	for {
		select {
		case <-done:
			return
		case <-quit:
			return
		case msg, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
			// transport-level ping keeps the read deadline fed via pongs
			conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

// SendEvent wraps payload in the outbound frame and queues it. Sending
// while the connection is down fails loudly and kicks a reconnect.
func (c *Client) SendEvent(kind string, payload interface{}) error {
	data, err := json.Marshal(entity.OutboundEvent{
		Event:     kind,
		Payload:   payload,
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", kind, err)
	}

	c.mu.Lock()
	if c.state != StatusConnected || c.conn == nil {
		c.mu.Unlock()
		c.log.Warn("send while connection down", slog.String("event", kind))
		go c.reconnect()
		return fmt.Errorf("send %s: connection is not open", kind)
	}
	send := c.send
	c.mu.Unlock()

	select {
	case send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Disconnect closes the connection cleanly. No reconnect is attempted.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.quit != nil {
		close(c.quit)
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}

	c.setState(StatusDisconnected)
}

// handleClose triages a dropped connection. Abnormal closes consult the
// token validator first; every other non-clean close goes straight to
// backoff.
func (c *Client) handleClose(err error) {
	c.mu.Lock()
	closed := c.closed
	c.conn = nil
	c.mu.Unlock()

	if closed {
		return
	}

	code := websocket.CloseAbnormalClosure
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}

	c.log.Warn("connection lost", slog.Int("code", code), sl.Err(err))

	if code == websocket.CloseAbnormalClosure && !c.tokenStillUsable() {
		return
	}

	c.reconnect()
}

// tokenStillUsable validates the auth token after an abnormal close.
// Ambiguity fails open: a network error on the validation call itself
// must not strand the user.
func (c *Client) tokenStillUsable() bool {
	c.mu.Lock()
	tokens := c.tokens
	token := c.token
	refresh := c.refreshFn
	c.mu.Unlock()

	if tokens == nil {
		return true
	}

	valid, err := tokens.ValidateToken(token)
	if err != nil {
		c.log.Warn("token validation unreachable, retrying anyway", sl.Err(err))
		return true
	}
	if valid {
		return true
	}

	if refresh == nil {
		c.log.Error("auth token expired and no refresh path configured")
		c.setState(StatusError)
		return false
	}

	newToken, err := refresh()
	if err != nil {
		c.log.Error("token refresh failed", sl.Err(err))
		c.setState(StatusError)
		return false
	}

	c.mu.Lock()
	c.token = newToken
	c.mu.Unlock()
	c.log.Info("auth token refreshed")
	return true
}

// reconnect runs the capped exponential backoff loop. At most one loop
// runs at a time; exhaustion is terminal until external intervention.
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.closed || c.retrying {
		c.mu.Unlock()
		return
	}
	c.retrying = true
	quit := c.quit
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.retrying = false
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.setState(StatusReconnecting)
		metrics.ReconnectAttempts.Inc()

		select {
		case <-quit:
			return
		case <-time.After(c.backoffDelay(attempt)):
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if err := c.dial(); err != nil {
			c.log.Warn("reconnect attempt failed",
				slog.Int("attempt", attempt),
				sl.Err(err),
			)
			continue
		}

		c.log.Info("reconnected", slog.Int("attempt", attempt))
		return
	}

	c.log.Error("reconnect attempts exhausted", slog.Int("attempts", c.maxAttempts))
	c.setState(StatusError)
}

// backoffDelay returns min(1000 * 2^attempt, cap) for 1-indexed attempts.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1000*(1<<uint(attempt))) * time.Millisecond
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	return delay
}

func (c *Client) setState(s Status) {
	c.mu.Lock()
	c.state = s
	fn := c.statusFn
	c.mu.Unlock()

	metrics.ConnectionTransitions.WithLabelValues(string(s)).Inc()
	if fn != nil {
		fn(s)
	}
}
