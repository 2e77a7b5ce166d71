package subscription

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrUnknownChannel is returned for operations on a channel name that was
// never subscribed or was already unsubscribed.
var ErrUnknownChannel = errors.New("unknown channel")

// ChannelStatus is the lifecycle state of a logical channel.
type ChannelStatus int

const (
	StatusSubscribing ChannelStatus = iota
	StatusSubscribed
	StatusUnsubscribed
)

// String returns the log name of the status.
func (s ChannelStatus) String() string {
	switch s {
	case StatusSubscribing:
		return "subscribing"
	case StatusSubscribed:
		return "subscribed"
	case StatusUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// Matcher selects which event types a listener receives. The zero value
// matches nothing; use Exact or Any.
type Matcher struct {
	any       bool
	eventType string
}

// Exact returns a matcher for one specific event type.
func Exact(eventType string) Matcher {
	return Matcher{eventType: eventType}
}

// Any returns a matcher for all event types on a channel.
func Any() Matcher {
	return Matcher{any: true}
}

// Matches reports whether the matcher accepts the given event type.
func (m Matcher) Matches(eventType string) bool {
	if m.any {
		return true
	}
	return m.eventType != "" && m.eventType == eventType
}

// String returns the matcher's log name.
func (m Matcher) String() string {
	if m.any {
		return "*"
	}
	return m.eventType
}

// Event is a decoded frame delivered to channel listeners.
type Event struct {
	Channel string
	ConnID  string
	// Type is the database-level event type carried in the payload
	// ("INSERT", "UPDATE", ...), or the system action for system messages.
	// Empty for opaque payloads, which only Any-listeners receive.
	Type    string
	Payload json.RawMessage
	Raw     []byte
}

// ListenerFunc handles one delivered event. Panics are caught at the
// dispatch boundary and never stop other listeners.
type ListenerFunc func(Event)

// ChannelInfo is a read-only snapshot of a channel's bookkeeping.
type ChannelInfo struct {
	Name        string
	ConnID      string
	Options     map[string]any
	Status      ChannelStatus
	LastMessage time.Time
	Listeners   int
}
