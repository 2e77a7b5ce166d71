package subscription

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alexvargas/portfolio-realtime/internal/connection"
)

// Sender writes one serialized control frame to a connection. Satisfied by
// *connection.Manager.
type Sender interface {
	Send(connID string, v any) bool
}

// Registry tracks the logical channels multiplexed over connections and the
// listeners attached to them. It owns the Channel records; the connection
// manager only knows channel names through the registry's hook methods.
type Registry struct {
	sender Sender
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*channel            // channel name → record
	byConn   map[string]map[string]struct{} // conn id → owned channel names
	nextID   int

	// rawHandler receives frames that could not be decoded or carry no
	// channel tag. Optional.
	rawHandler func(connID string, raw []byte)
}

// channel is one logical stream over a single connection.
type channel struct {
	name         string
	connID       string
	options      map[string]any
	status       ChannelStatus
	lastMessage  time.Time
	listeners    []listener
	onSubscribed []func()
}

type listener struct {
	id      int
	matcher Matcher
	fn      ListenerFunc
}

// NewRegistry creates a channel subscription registry.
func NewRegistry(sender Sender, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sender:   sender,
		logger:   logger,
		channels: make(map[string]*channel),
		byConn:   make(map[string]map[string]struct{}),
	}
}

// SetRawHandler installs the handler for undecodable or unchanneled frames.
func (r *Registry) SetRawHandler(fn func(connID string, raw []byte)) {
	r.mu.Lock()
	r.rawHandler = fn
	r.mu.Unlock()
}

// Subscribe registers a channel on a connection and sends the subscribe
// control frame. Subscribing an already-registered name on the same
// connection keeps the existing record and listeners but still resends the
// frame, which makes resubscription after reconnect idempotent.
func (r *Registry) Subscribe(connID, name string, options map[string]any) string {
	r.mu.Lock()
	ch, exists := r.channels[name]
	if exists && ch.connID == connID {
		ch.status = StatusSubscribing
	} else {
		if exists {
			// Ownership moves to another connection; the old owner must not
			// replay this channel anymore.
			r.dropOwnerLocked(ch.connID, name)
		}
		ch = &channel{
			name:    name,
			connID:  connID,
			options: options,
			status:  StatusSubscribing,
		}
		r.channels[name] = ch
		if r.byConn[connID] == nil {
			r.byConn[connID] = make(map[string]struct{})
		}
		r.byConn[connID][name] = struct{}{}
	}
	opts := ch.options
	r.mu.Unlock()

	r.sendControl(connID, connection.FrameSubscribe, name, opts)

	r.logger.Debug("channel subscribe sent",
		"channel", name,
		"conn_id", connID,
		"existing", exists,
	)
	return name
}

// Unsubscribe sends the unsubscribe frame and discards the channel record.
func (r *Registry) Unsubscribe(name string) error {
	r.mu.Lock()
	ch, ok := r.channels[name]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("unsubscribe for unknown channel", "channel", name)
		return ErrUnknownChannel
	}
	connID := ch.connID
	ch.status = StatusUnsubscribed
	delete(r.channels, name)
	r.dropOwnerLocked(connID, name)
	r.mu.Unlock()

	r.sendControl(connID, connection.FrameUnsubscribe, name, nil)

	r.logger.Debug("channel unsubscribed", "channel", name, "conn_id", connID)
	return nil
}

// dropOwnerLocked removes a channel name from a connection's owned set.
// Callers hold r.mu.
func (r *Registry) dropOwnerLocked(connID, name string) {
	if owned := r.byConn[connID]; owned != nil {
		delete(owned, name)
		if len(owned) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// AddListener attaches a listener to a channel. The returned closure removes
// exactly this listener and is safe to call more than once. Listening on an
// unknown channel logs a warning and returns a no-op remover.
func (r *Registry) AddListener(name string, m Matcher, fn ListenerFunc) func() {
	r.mu.Lock()
	ch, ok := r.channels[name]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("listener for unknown channel", "channel", name)
		return func() {}
	}
	r.nextID++
	id := r.nextID
	ch.listeners = append(ch.listeners, listener{id: id, matcher: m, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		ch, ok := r.channels[name]
		if !ok {
			return
		}
		for i, l := range ch.listeners {
			if l.id == id {
				ch.listeners = append(ch.listeners[:i], ch.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnSubscribed registers a callback invoked every time the channel reaches
// subscribed state, including after resubscription on reconnect. The
// presence tracker uses this to announce itself.
func (r *Registry) OnSubscribed(name string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[name]
	if !ok {
		r.logger.Warn("subscribed hook for unknown channel", "channel", name)
		return
	}
	ch.onSubscribed = append(ch.onSubscribed, fn)
}

// ResubscribeAll replays the subscribe frame for every channel owned by the
// connection, with each channel's original options. Wired as the manager's
// OnConnected hook; channel order is not preserved.
func (r *Registry) ResubscribeAll(connID string) {
	r.mu.Lock()
	type replay struct {
		name string
		opts map[string]any
	}
	var replays []replay
	for name := range r.byConn[connID] {
		if ch := r.channels[name]; ch != nil {
			ch.status = StatusSubscribing
			replays = append(replays, replay{name: name, opts: ch.options})
		}
	}
	r.mu.Unlock()

	for _, rp := range replays {
		r.sendControl(connID, connection.FrameSubscribe, rp.name, rp.opts)
	}

	if len(replays) > 0 {
		r.logger.Info("channels resubscribed", "conn_id", connID, "count", len(replays))
	}
}

// RemoveConnection tears down every channel owned by a closing connection.
// Wired as the manager's OnClosing hook, while the transport can still carry
// the unsubscribe frames.
func (r *Registry) RemoveConnection(connID string) {
	r.mu.Lock()
	names := make([]string, 0, len(r.byConn[connID]))
	for name := range r.byConn[connID] {
		names = append(names, name)
	}
	r.mu.Unlock()

	for _, name := range names {
		r.Unsubscribe(name)
	}
}

// HandleFrame demultiplexes one inbound frame by channel name and dispatches
// it to matching listeners. Wired as the manager's OnFrame hook.
func (r *Registry) HandleFrame(connID string, frame connection.InboundFrame, raw []byte) {
	if frame.Type == "" || frame.Channel == "" {
		r.mu.Lock()
		rawFn := r.rawHandler
		r.mu.Unlock()
		if rawFn != nil {
			rawFn(connID, raw)
			return
		}
		r.logger.Debug("frame without channel", "conn_id", connID, "type", frame.Type)
		return
	}

	r.mu.Lock()
	ch, ok := r.channels[frame.Channel]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("frame for unknown channel", "channel", frame.Channel, "conn_id", connID)
		return
	}
	ch.lastMessage = time.Now()

	var hooks []func()
	eventType := ""
	switch frame.Type {
	case connection.FrameSystemMessage:
		eventType = frame.Action
		if frame.Action == "subscribed" && ch.status != StatusSubscribed {
			ch.status = StatusSubscribed
			hooks = append(hooks, ch.onSubscribed...)
		}
	case connection.FrameChannelMessage:
		eventType = extractEventType(frame.Payload)
	}

	listeners := make([]listener, len(ch.listeners))
	copy(listeners, ch.listeners)
	r.mu.Unlock()

	for _, fn := range hooks {
		r.safeInvoke(frame.Channel, "subscribed-hook", func() { fn() })
	}

	ev := Event{
		Channel: frame.Channel,
		ConnID:  connID,
		Type:    eventType,
		Payload: frame.Payload,
		Raw:     raw,
	}

	for _, l := range listeners {
		if !l.matcher.Matches(ev.Type) {
			continue
		}
		l := l
		r.safeInvoke(frame.Channel, l.matcher.String(), func() { l.fn(ev) })
	}
}

// Get returns a snapshot of a channel's bookkeeping.
func (r *Registry) Get(name string) (ChannelInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[name]
	if !ok {
		return ChannelInfo{}, false
	}
	return ChannelInfo{
		Name:        ch.name,
		ConnID:      ch.connID,
		Options:     ch.options,
		Status:      ch.status,
		LastMessage: ch.lastMessage,
		Listeners:   len(ch.listeners),
	}, true
}

// Channels returns snapshots of all registered channels.
func (r *Registry) Channels() []ChannelInfo {
	r.mu.Lock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	r.mu.Unlock()

	out := make([]ChannelInfo, 0, len(names))
	for _, name := range names {
		if info, ok := r.Get(name); ok {
			out = append(out, info)
		}
	}
	return out
}

// safeInvoke runs a listener callback, catching panics so one broken
// listener cannot stop the rest of the dispatch loop.
func (r *Registry) safeInvoke(channel, listenerName string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked",
				"channel", channel,
				"listener", listenerName,
				"panic", rec,
			)
		}
	}()
	fn()
}

// sendControl writes one subscribe/unsubscribe frame, merging subscription
// options into the top level of the frame. A dropped frame is fine: the
// subscription is replayed when the connection comes back.
func (r *Registry) sendControl(connID, frameType, name string, options map[string]any) {
	frame := map[string]any{
		"type":    frameType,
		"channel": name,
	}
	for k, v := range options {
		if k == "type" || k == "channel" {
			continue
		}
		frame[k] = v
	}
	if !r.sender.Send(connID, frame) {
		r.logger.Debug("control frame dropped",
			"frame", frameType,
			"channel", name,
			"conn_id", connID,
		)
	}
}

// extractEventType pulls the database-level event tag out of a channel
// message payload. Opaque or non-object payloads yield an empty type, which
// only wildcard listeners receive.
func extractEventType(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var probe struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.Event
}
