package events

import (
	"log/slog"
	"sync"
	"time"
)

// Topics published by the realtime layer. Components outside the layer
// subscribe to these instead of coupling to the facade directly.
const (
	TopicNewComment        = "realtime:newComment"
	TopicCommentUpdated    = "realtime:commentUpdated"
	TopicBlogPostChanged   = "realtime:blogPostChanged"
	TopicContactSubmission = "realtime:contactSubmission"
	TopicAnalyticsEvent    = "realtime:analyticsEvent"
	TopicPresenceJoin      = "realtime:userJoined"
	TopicPresenceLeave     = "realtime:userLeft"
	TopicConnectionOpen    = "ws:connection:open"
	TopicConnectionClosed  = "ws:connection:closed"
	TopicConnectionFailed  = "ws:connection:max_attempts"
	TopicChannelMessage    = "ws:channel:message"
)

// Event is one published notification.
type Event struct {
	Topic   string
	Payload any
	Time    time.Time
}

// Bus is a process-wide publish/subscribe fan-out for realtime
// notifications. Publish never blocks: a subscriber that cannot keep up has
// events dropped and logged rather than stalling the dispatch path.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event // topic → subscriber id → channel
	buffer int
}

// NewBus creates an event bus. Each subscriber channel buffers up to buffer
// events; zero means the default of 64.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		logger: logger,
		subs:   make(map[string]map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe returns a channel of events for one topic and a cancel function
// that removes the subscription and closes the channel.
func (b *Bus) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Event)
	}
	b.subs[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[topic]; subs != nil {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subs, topic)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the topic without
// blocking. Full subscriber buffers drop the event.
func (b *Bus) Publish(topic string, payload any) {
	ev := Event{Topic: topic, Payload: payload, Time: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs[topic] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("event subscriber full, dropping event",
				"topic", topic,
				"subscriber", id,
			)
		}
	}
}
