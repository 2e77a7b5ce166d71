package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns every physical WebSocket connection: it opens transports on
// demand, tracks their lifecycle state, runs the per-connection heartbeat,
// and drives reconnection with exponential backoff. Channel bookkeeping
// lives in the subscription registry, which observes the manager through
// Hooks.
type Manager struct {
	cfg    ManagerConfig
	hooks  Hooks
	logger *slog.Logger

	// newClient is swapped out in tests.
	newClient func(ClientConfig, *slog.Logger) Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	conns     map[string]*conn
	online    bool
	suspended bool
}

// conn holds the state for a single connection.
type conn struct {
	id        string
	url       string
	protocols []string
	headers   map[string]string

	status       Status
	client       Client
	lastActivity time.Time
	attempts     int
	userClosed   bool

	// pumpStop terminates the read pump on forced teardown; nil when no
	// pump is running.
	pumpStop chan struct{}

	// hbStop terminates the heartbeat loop; nil when no heartbeat runs.
	hbStop chan struct{}

	// reconnectTimer is non-nil while exactly one reconnect is scheduled.
	reconnectTimer *time.Timer
}

// NewManager creates a new connection Manager. Zero config fields fall back
// to DefaultManagerConfig values.
func NewManager(cfg ManagerConfig, hooks Hooks, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultManagerConfig()
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}

	return &Manager{
		cfg:       cfg,
		hooks:     hooks,
		logger:    logger,
		newClient: NewClient,
		conns:     make(map[string]*conn),
		online:    true,
	}
}

// Start prepares the manager. It must be called before Create.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("connection manager started",
		"heartbeat_interval", m.cfg.HeartbeatInterval,
		"max_reconnect_attempts", m.cfg.MaxReconnectAttempts,
	)
	return nil
}

// Stop closes every connection and waits for goroutines to finish.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	m.mu.Lock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
	}
	return nil
}

// CreateOptions carries optional transport settings for Create.
type CreateOptions struct {
	Headers map[string]string
}

// Create registers a new connection and dials it asynchronously. Only a
// malformed URL fails synchronously; dial failures feed the reconnect path
// like any other transport error.
func (m *Manager) Create(rawURL string, protocols []string, opts CreateOptions) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrBadURL, rawURL)
	}

	c := &conn{
		id:        uuid.NewString(),
		url:       rawURL,
		protocols: protocols,
		headers:   opts.Headers,
		status:    StatusConnecting,
	}

	m.mu.Lock()
	m.conns[c.id] = c
	m.mu.Unlock()

	m.logger.Debug("connection created", "conn_id", c.id, "url", rawURL)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.dial(c)
	}()

	return c.id, nil
}

// Send serializes v as JSON and writes it to the connection. It returns
// false when the connection is not in Connected state or the write fails;
// callers must treat false as dropped, not delivered.
func (m *Manager) Send(connID string, v any) bool {
	m.mu.Lock()
	c, ok := m.conns[connID]
	if !ok || c.status != StatusConnected || c.client == nil {
		m.mu.Unlock()
		return false
	}
	cl := c.client
	m.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Warn("failed to marshal outbound message", "conn_id", connID, "error", err)
		return false
	}
	if err := cl.Send(data); err != nil {
		m.logger.Warn("send failed", "conn_id", connID, "error", err)
		return false
	}
	return true
}

// Close tears down a connection: channels are unsubscribed via the OnClosing
// hook, the heartbeat stops, a clean close frame is sent, and bookkeeping is
// removed. Safe to call multiple times.
func (m *Manager) Close(connID string) {
	m.mu.Lock()
	c, ok := m.conns[connID]
	if !ok || c.userClosed {
		m.mu.Unlock()
		return
	}
	c.userClosed = true
	m.mu.Unlock()

	// Unsubscribe while the transport can still carry the frames.
	if m.hooks.OnClosing != nil {
		m.hooks.OnClosing(connID)
	}

	m.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	m.stopHeartbeatLocked(c)
	if c.pumpStop != nil {
		close(c.pumpStop)
		c.pumpStop = nil
	}
	cl := c.client
	m.transitionLocked(c, StatusClosed)
	delete(m.conns, connID)
	m.mu.Unlock()

	if cl != nil {
		cl.Close()
	}

	m.logger.Info("connection closed", "conn_id", connID)
}

// Reconnect manually re-dials a connection that is not connected. The
// attempt counter is reset, so this also revives a connection that exhausted
// its automatic attempts.
func (m *Manager) Reconnect(connID string) error {
	m.mu.Lock()
	c, ok := m.conns[connID]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownConnection
	}
	if c.userClosed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.status == StatusConnected || c.status == StatusConnecting {
		m.mu.Unlock()
		return nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.attempts = 0
	m.transitionLocked(c, StatusConnecting)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.dial(c)
	}()
	return nil
}

// SetOnline records network reachability. The offline→online transition
// immediately re-dials every connection left in closed or error state,
// bypassing backoff with a fresh attempt counter. While offline, transport
// failures do not schedule reconnects.
func (m *Manager) SetOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	var revive []*conn
	if online && !wasOnline {
		revive = m.notConnectedLocked()
	}
	m.mu.Unlock()

	if online && !wasOnline {
		m.logger.Info("network online, reviving connections", "count", len(revive))
		m.redialNow(revive)
	} else if !online && wasOnline {
		m.logger.Info("network offline")
	}
}

// Suspend pauses heartbeat work without destroying the timers. Used when
// the host application is backgrounded.
func (m *Manager) Suspend() {
	m.mu.Lock()
	m.suspended = true
	m.mu.Unlock()
	m.logger.Debug("heartbeats suspended")
}

// Resume re-enables heartbeats and re-validates every connection: stale
// connected ones are recycled and any connection not connected is re-dialed.
func (m *Manager) Resume() {
	m.mu.Lock()
	m.suspended = false
	var stale, revive []*conn
	for _, c := range m.conns {
		if c.userClosed {
			continue
		}
		switch c.status {
		case StatusConnected:
			if time.Since(c.lastActivity) > 2*m.cfg.HeartbeatInterval {
				stale = append(stale, c)
			}
		case StatusClosed, StatusError, StatusReconnecting:
			revive = append(revive, c)
		}
	}
	for _, c := range revive {
		if c.reconnectTimer != nil {
			c.reconnectTimer.Stop()
			c.reconnectTimer = nil
		}
		c.attempts = 0
	}
	m.mu.Unlock()

	m.logger.Debug("heartbeats resumed", "stale", len(stale), "revive", len(revive))

	for _, c := range stale {
		m.forceStale(c)
	}
	m.redialNow(revive)
}

// Get returns a snapshot of a connection's state.
func (m *Manager) Get(connID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[connID]
	if !ok {
		return Info{}, false
	}
	return m.infoLocked(c), true
}

// Connections returns snapshots of all tracked connections.
func (m *Manager) Connections() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, m.infoLocked(c))
	}
	return out
}

func (m *Manager) infoLocked(c *conn) Info {
	return Info{
		ID:           c.id,
		URL:          c.url,
		Protocols:    c.protocols,
		Status:       c.status,
		LastActivity: c.lastActivity,
		Attempts:     c.attempts,
	}
}

// notConnectedLocked collects revivable connections and resets their backoff.
func (m *Manager) notConnectedLocked() []*conn {
	var out []*conn
	for _, c := range m.conns {
		if c.userClosed {
			continue
		}
		switch c.status {
		case StatusClosed, StatusError, StatusReconnecting:
			if c.reconnectTimer != nil {
				c.reconnectTimer.Stop()
				c.reconnectTimer = nil
			}
			c.attempts = 0
			out = append(out, c)
		}
	}
	return out
}

// redialNow dials the given connections immediately, bypassing backoff.
func (m *Manager) redialNow(conns []*conn) {
	for _, c := range conns {
		m.mu.Lock()
		if c.userClosed || c.status == StatusConnecting || c.status == StatusConnected {
			m.mu.Unlock()
			continue
		}
		m.transitionLocked(c, StatusConnecting)
		m.mu.Unlock()

		m.wg.Add(1)
		go func(c *conn) {
			defer m.wg.Done()
			m.dial(c)
		}(c)
	}
}

// dial opens a fresh transport for the connection and wires it up. Failures
// feed the backoff-driven reconnect path.
func (m *Manager) dial(c *conn) {
	cl := m.newClient(ClientConfig{
		URL:              c.url,
		Protocols:        c.protocols,
		Headers:          c.headers,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		BufferSize:       m.cfg.BufferSize,
	}, m.logger.With("conn_id", c.id))

	stop := make(chan struct{})

	m.mu.Lock()
	if c.userClosed {
		m.mu.Unlock()
		return
	}
	c.client = cl
	c.pumpStop = stop
	m.mu.Unlock()

	if err := cl.Connect(m.ctx); err != nil {
		m.logger.Warn("connect failed", "conn_id", c.id, "url", c.url, "error", err)
		m.mu.Lock()
		m.transitionLocked(c, StatusError)
		if m.online {
			m.scheduleReconnectLocked(c)
		}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if c.userClosed {
		m.mu.Unlock()
		cl.Close()
		return
	}
	m.transitionLocked(c, StatusConnected)
	c.attempts = 0
	c.lastActivity = time.Now()
	m.startHeartbeatLocked(c)
	m.mu.Unlock()

	m.logger.Info("connection established", "conn_id", c.id, "url", c.url)

	m.wg.Add(1)
	go m.pump(c, cl, stop)

	// The registry replays this connection's channel subscriptions here.
	if m.hooks.OnConnected != nil {
		m.hooks.OnConnected(c.id)
	}
}

// pump forwards inbound messages until the transport terminates.
func (m *Manager) pump(c *conn, cl Client, stop chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-stop:
			return
		case data := <-cl.Messages():
			m.handleMessage(c, cl, data)
		case ev := <-cl.Done():
			m.handleClose(c, cl, ev)
			return
		}
	}
}

// handleMessage decodes one inbound frame. Any inbound traffic counts as
// liveness. Malformed frames are logged and still delivered raw rather than
// dropped.
func (m *Manager) handleMessage(c *conn, cl Client, data []byte) {
	m.mu.Lock()
	c.lastActivity = time.Now()
	m.mu.Unlock()

	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		m.logger.Warn("malformed frame, delivering raw", "conn_id", c.id, "error", err)
		if m.hooks.OnFrame != nil {
			m.hooks.OnFrame(c.id, InboundFrame{}, data)
		}
		return
	}

	switch frame.Type {
	case FrameHeartbeat:
		// Server-initiated probe; echo back.
		resp, _ := json.Marshal(map[string]any{
			"type":      FrameHeartbeatResponse,
			"timestamp": time.Now().UnixMilli(),
		})
		if err := cl.Send(resp); err != nil {
			m.logger.Debug("heartbeat response failed", "conn_id", c.id, "error", err)
		}
	case FrameHeartbeatResponse:
		// Liveness only, already recorded above.
	default:
		if m.hooks.OnFrame != nil {
			m.hooks.OnFrame(c.id, frame, data)
		}
	}
}

// handleClose reacts to transport termination. A clean close (code 1000)
// never reconnects; anything else does, while the network is online.
func (m *Manager) handleClose(c *conn, cl Client, ev CloseEvent) {
	m.mu.Lock()
	if c.client != cl || c.userClosed {
		// Stale event from a transport that was already replaced.
		m.mu.Unlock()
		return
	}
	if c.reconnectTimer != nil {
		// The stale path already tore this transport down and armed the
		// reconnect timer; this event is the dead socket reporting its own
		// close. The timer owns recovery.
		m.mu.Unlock()
		return
	}
	m.stopHeartbeatLocked(c)
	c.pumpStop = nil

	if ev.Clean() {
		m.transitionLocked(c, StatusClosed)
		m.mu.Unlock()
		m.logger.Info("connection closed by peer", "conn_id", c.id, "code", ev.Code)
		return
	}

	m.transitionLocked(c, StatusError)
	online := m.online
	if online {
		m.scheduleReconnectLocked(c)
	}
	m.mu.Unlock()

	m.logger.Warn("connection lost",
		"conn_id", c.id,
		"code", ev.Code,
		"reason", ev.Reason,
		"error", ev.Err,
		"reconnect", online,
	)
}

// forceStale recycles a connected transport that stopped producing traffic.
// It pre-empts the transport's own error callback: the socket is torn down
// and a reconnect is scheduled right away.
func (m *Manager) forceStale(c *conn) {
	m.mu.Lock()
	if c.status != StatusConnected || c.userClosed {
		m.mu.Unlock()
		return
	}
	m.stopHeartbeatLocked(c)
	if c.pumpStop != nil {
		close(c.pumpStop)
		c.pumpStop = nil
	}
	cl := c.client
	m.transitionLocked(c, StatusError)
	if m.online {
		m.scheduleReconnectLocked(c)
	}
	m.mu.Unlock()

	if cl != nil {
		cl.Close()
	}

	m.logger.Warn("connection stale, forcing reconnect",
		"conn_id", c.id,
		"error", ErrStaleConnection,
	)
}

// scheduleReconnectLocked arms the single reconnect timer for a connection.
// The attempt counter is incremented before computing the delay; once it
// exceeds the configured maximum, automatic reconnection stops and the
// terminal hook fires. Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked(c *conn) {
	if c.reconnectTimer != nil {
		// A reconnect is already scheduled; never stack a second timer.
		return
	}

	c.attempts++
	if c.attempts > m.cfg.MaxReconnectAttempts {
		m.logger.Error("max reconnect attempts reached",
			"conn_id", c.id,
			"attempts", c.attempts-1,
			"error", ErrMaxReconnects,
		)
		if m.hooks.OnMaxAttempts != nil {
			go m.hooks.OnMaxAttempts(c.id)
		}
		return
	}

	delay := Delay(c.attempts, m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay)
	m.transitionLocked(c, StatusReconnecting)
	m.logger.Info("reconnect scheduled",
		"conn_id", c.id,
		"attempt", c.attempts,
		"delay", delay,
	)

	c.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		c.reconnectTimer = nil
		if c.userClosed || c.status != StatusReconnecting {
			m.mu.Unlock()
			return
		}
		m.transitionLocked(c, StatusConnecting)
		m.mu.Unlock()

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.dial(c)
		}()
	})
}

// transitionLocked applies a status change, rejecting illegal moves.
// Callers hold m.mu.
func (m *Manager) transitionLocked(c *conn, to Status) {
	if c.status == to {
		return
	}
	if !validTransition(c.status, to) {
		m.logger.Error("illegal status transition",
			"conn_id", c.id,
			"from", c.status.String(),
			"to", to.String(),
		)
		return
	}
	c.status = to
	if m.hooks.OnStatus != nil {
		go m.hooks.OnStatus(c.id, to)
	}
}
