package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradeview/settingsync/internal/config"
	"github.com/tradeview/settingsync/internal/events"
	"github.com/tradeview/settingsync/internal/models"
)

const pongTimeout = 10 * time.Second

// WSClient implements Transport over a websocket connection. It
// reconnects at a fixed, bounded rate while the device is online, and
// the reconnect timer is stored explicitly so a deliberate disconnect
// can cancel it atomically.
type WSClient struct {
	url     string
	session Session
	logger  *events.Logger

	reconnectDelay time.Duration
	ackTimeout     time.Duration
	pingInterval   time.Duration
	dialTimeout    time.Duration

	mu             sync.Mutex
	conn           *websocket.Conn
	state          State
	online         bool
	closed         bool
	connecting     bool
	reconnectTimer *time.Timer
	acks           map[string]chan models.ChangeAckMessage

	// Serializes writes to the connection.
	writeMu sync.Mutex

	messages chan models.ServerMessage
	states   chan State
}

// NewWSClient creates a websocket transport.
func NewWSClient(apiCfg *config.APIConfig, syncCfg *config.SyncConfig, session Session, logger *events.Logger) *WSClient {
	wsURL := apiCfg.ServerURL
	if len(wsURL) > 4 && wsURL[:4] == "http" {
		wsURL = "ws" + wsURL[4:] // Convert http(s) to ws(s)
	}

	return &WSClient{
		url:            wsURL,
		session:        session,
		logger:         logger.WithField("component", "ws_client"),
		reconnectDelay: syncCfg.ReconnectDelay,
		ackTimeout:     syncCfg.AckTimeout,
		pingInterval:   syncCfg.PingInterval,
		dialTimeout:    apiCfg.Timeout,
		acks:           make(map[string]chan models.ChangeAckMessage),
		messages:       make(chan models.ServerMessage, 100),
		states:         make(chan State, 16),
	}
}

// SetOnline feeds the reachability signal.
func (c *WSClient) SetOnline(online bool) {
	c.mu.Lock()
	if c.closed || c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online

	if online {
		c.mu.Unlock()
		c.logger.Info("Network reachable, connecting")
		go c.connect()
		return
	}

	// Going offline cancels any pending reconnect and drops the
	// connection; queued changes stay put.
	c.cancelReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.setStateLocked(Disconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.logger.Info("Network unreachable, disconnected")
}

// State returns the current connection state.
func (c *WSClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns the inbound message channel.
func (c *WSClient) Messages() <-chan models.ServerMessage {
	return c.messages
}

// States returns the state transition channel.
func (c *WSClient) States() <-chan State {
	return c.states
}

// PushChange sends one change and waits for its ack.
func (c *WSClient) PushChange(ctx context.Context, change models.Change) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.pushError(change, models.ErrTransportClosed)
	}
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return c.pushError(change, models.ErrNotConnected)
	}
	ackCh := make(chan models.ChangeAckMessage, 1)
	c.acks[change.ID] = ackCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.acks, change.ID)
		c.mu.Unlock()
	}()

	push := models.ChangePushMessage{Type: models.MsgChangePush, Change: change}
	c.writeMu.Lock()
	err := conn.WriteJSON(push)
	c.writeMu.Unlock()
	if err != nil {
		return c.pushError(change, err)
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()

	select {
	case ack := <-ackCh:
		if !ack.Accepted {
			return c.pushError(change, fmt.Errorf("%w: %s", models.ErrChangeRejected, ack.Reason))
		}
		return nil
	case <-ctx.Done():
		return c.pushError(change, ctx.Err())
	case <-timer.C:
		return c.pushError(change, models.ErrAckTimeout)
	}
}

// Close permanently tears down the transport.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.setStateLocked(Disconnected)
	c.mu.Unlock()

	c.logger.Info("Transport closed")

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

// connect attempts a single dial; failures schedule the next attempt.
func (c *WSClient) connect() {
	c.mu.Lock()
	if c.closed || !c.online || c.conn != nil || c.connecting {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	c.logger.WithField("url", c.url).Debug("Dialing")

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	header := http.Header{}
	if c.session.Token != "" {
		header.Set("Authorization", "Bearer "+c.session.Token)
	}

	conn, resp, err := dialer.Dial(c.url, header)
	if err != nil {
		if resp != nil {
			c.logger.WithError(err).WithField("status", resp.StatusCode).Warn("Connect failed")
		} else {
			c.logger.WithError(err).Warn("Connect failed")
		}
		c.connectFailed()
		return
	}

	hello := models.HelloMessage{
		Type:     models.MsgHello,
		UserID:   c.session.UserID,
		DeviceID: c.session.DeviceID,
		Token:    c.session.Token,
	}
	if err := conn.WriteJSON(hello); err != nil {
		c.logger.WithError(err).Warn("Send hello failed")
		_ = conn.Close()
		c.connectFailed()
		return
	}

	c.mu.Lock()
	if c.closed || !c.online {
		// Torn down while the dial was in flight.
		c.connecting = false
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.connecting = false
	c.setStateLocked(Connected)
	c.mu.Unlock()

	c.logger.Info("Connected")

	go c.readLoop(conn)
	go c.pingLoop(conn)
}

func (c *WSClient) connectFailed() {
	c.mu.Lock()
	c.connecting = false
	c.setStateLocked(Disconnected)
	c.scheduleReconnectLocked()
	c.mu.Unlock()
}

// readLoop reads inbound messages until the connection drops.
func (c *WSClient) readLoop(conn *websocket.Conn) {
	defer c.handleDisconnect(conn)

	_ = conn.SetReadDeadline(time.Now().Add(c.pingInterval + pongTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.pingInterval + pongTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.logger.WithError(err).Warn("Connection lost")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.pingInterval + pongTimeout))

		var msg models.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			// Malformed input never tears down the transport.
			c.logger.WithField("size", len(data)).Warn("Dropping malformed message")
			continue
		}

		if msg.Type == models.MsgChangeAck {
			var ack models.ChangeAckMessage
			if err := json.Unmarshal(msg.Data, &ack); err != nil {
				c.logger.WithError(err).Warn("Dropping malformed ack")
				continue
			}
			c.deliverAck(ack)
			continue
		}

		select {
		case c.messages <- msg:
		default:
			c.logger.WithField("type", string(msg.Type)).Warn("Message channel full, dropping")
		}
	}
}

// pingLoop sends keepalives while the connection is current.
func (c *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := c.conn == conn
		c.mu.Unlock()
		if !current {
			return
		}

		c.writeMu.Lock()
		err := conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// handleDisconnect records the drop and schedules a reconnect when the
// device still believes it is online.
func (c *WSClient) handleDisconnect(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.setStateLocked(Disconnected)
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// scheduleReconnectLocked arms the backoff timer. Callers hold c.mu.
// At most one timer is pending; Close and SetOnline(false) cancel it.
func (c *WSClient) scheduleReconnectLocked() {
	if c.closed || !c.online || c.reconnectTimer != nil {
		return
	}

	c.logger.WithField("delay", c.reconnectDelay.String()).Info("Reconnect scheduled")
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		if c.closed || !c.online {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.connect()
	})
}

// cancelReconnectLocked stops a pending reconnect. Callers hold c.mu.
func (c *WSClient) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// setStateLocked records a transition and publishes it. Callers hold
// c.mu. A full channel drops the oldest consumer-visible transition
// rather than blocking.
func (c *WSClient) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	select {
	case c.states <- state:
	default:
	}
}

func (c *WSClient) deliverAck(ack models.ChangeAckMessage) {
	c.mu.Lock()
	ch, ok := c.acks[ack.ChangeID]
	c.mu.Unlock()
	if !ok {
		c.logger.WithField("change_id", ack.ChangeID).Debug("Ack for unknown change")
		return
	}
	select {
	case ch <- ack:
	default:
	}
}

func (c *WSClient) pushError(change models.Change, err error) error {
	return &models.PushError{
		ChangeID:    change.ID,
		SettingType: change.SettingType,
		SettingKey:  change.SettingKey,
		Err:         err,
	}
}
