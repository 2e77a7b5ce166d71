package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alexvargas/portfolio-realtime/internal/subscription"
)

// Tracker is a channel specialization that maintains the set of currently
// active participants. The state map is derived solely from frames on the
// presence channel; application code only reads it.
type Tracker struct {
	reg     *subscription.Registry
	sender  subscription.Sender
	logger  *slog.Logger
	channel string
	self    Record

	mu      sync.RWMutex
	connID  string
	state   map[string][]Record
	onJoin  []func(key string, records []Record)
	onLeave []func(key string)

	removeListener func()
}

// NewTracker creates a presence tracker for the given channel. The self
// record is announced every time the channel (re)subscribes.
func NewTracker(reg *subscription.Registry, sender subscription.Sender, channelName string, self Record, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		reg:     reg,
		sender:  sender,
		logger:  logger.With("channel", channelName),
		channel: channelName,
		self:    self,
		state:   make(map[string][]Record),
	}
}

// OnJoin registers a callback for discrete join events. Must be called
// before Start.
func (t *Tracker) OnJoin(fn func(key string, records []Record)) {
	t.mu.Lock()
	t.onJoin = append(t.onJoin, fn)
	t.mu.Unlock()
}

// OnLeave registers a callback for discrete leave events. Must be called
// before Start.
func (t *Tracker) OnLeave(fn func(key string)) {
	t.mu.Lock()
	t.onLeave = append(t.onLeave, fn)
	t.mu.Unlock()
}

// Start subscribes the presence channel on the given connection and begins
// tracking. The self record is sent on every subscribed transition, which
// covers resubscription after reconnects.
func (t *Tracker) Start(connID string, options map[string]any) {
	t.mu.Lock()
	t.connID = connID
	t.mu.Unlock()

	t.reg.Subscribe(connID, t.channel, options)
	t.reg.OnSubscribed(t.channel, t.Track)
	t.removeListener = t.reg.AddListener(t.channel, subscription.Any(), t.handleEvent)
}

// Stop removes the listener and unsubscribes the presence channel.
func (t *Tracker) Stop() {
	if t.removeListener != nil {
		t.removeListener()
		t.removeListener = nil
	}
	t.reg.Unsubscribe(t.channel)
}

// Track announces this client's own presence record.
func (t *Tracker) Track() {
	t.mu.RLock()
	connID := t.connID
	self := t.self
	t.mu.RUnlock()

	self.JoinedAt = time.Now()
	if !t.sender.Send(connID, map[string]any{
		"type":    "track",
		"channel": t.channel,
		"payload": self,
	}) {
		t.logger.Debug("track frame dropped")
	}
}

// State returns a copy of the current presence map.
func (t *Tracker) State() map[string][]Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string][]Record, len(t.state))
	for k, recs := range t.state {
		out[k] = append([]Record(nil), recs...)
	}
	return out
}

// ActiveCount returns the number of distinct participant keys present.
func (t *Tracker) ActiveCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.state)
}

// handleEvent applies one presence frame: sync replaces the whole map,
// join/leave patch single keys and additionally fire discrete callbacks.
func (t *Tracker) handleEvent(ev subscription.Event) {
	f, err := decodeFrame(ev.Payload)
	if err != nil {
		t.logger.Warn("ignoring presence frame", "error", err)
		return
	}

	var joins []func(string, []Record)
	var leaves []func(string)

	t.mu.Lock()
	switch f.kind {
	case kindSync:
		state := f.state
		if state == nil {
			state = make(map[string][]Record)
		}
		t.state = state
	case kindJoin:
		t.state[f.key] = append(t.state[f.key], f.records...)
		joins = append(joins, t.onJoin...)
	case kindLeave:
		delete(t.state, f.key)
		leaves = append(leaves, t.onLeave...)
	}
	t.mu.Unlock()

	for _, fn := range joins {
		fn(f.key, f.records)
	}
	for _, fn := range leaves {
		fn(f.key)
	}
}
