package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrStaleConnection   = errors.New("connection stale (no activity)")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrMaxReconnects     = errors.New("max reconnect attempts reached")
	ErrBadURL            = errors.New("invalid websocket url")
)

// Status is the lifecycle state of a single connection.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusClosed
	StatusError
	StatusReconnecting
)

// String returns the log name of the status.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// validTransition reports whether moving from one status to another is a
// legal lifecycle move. The heartbeat only runs while Connected, so every
// transition away from Connected stops it first.
func validTransition(from, to Status) bool {
	switch from {
	case StatusConnecting:
		return to == StatusConnected || to == StatusError || to == StatusClosed
	case StatusConnected:
		return to == StatusClosed || to == StatusError
	case StatusError:
		return to == StatusReconnecting || to == StatusConnecting || to == StatusClosed
	case StatusReconnecting:
		return to == StatusConnecting || to == StatusError || to == StatusClosed
	case StatusClosed:
		// Manual reconnect or a network-online transition revives a
		// closed connection.
		return to == StatusConnecting
	}
	return false
}

// Inbound frame types.
const (
	FrameHeartbeat         = "heartbeat"
	FrameHeartbeatResponse = "heartbeat_response"
	FrameChannelMessage    = "channel_message"
	FrameSystemMessage     = "system_message"
)

// Outbound frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// InboundFrame is the application-level envelope for messages from the
// realtime service. Payload stays raw; decoding is the consumer's job.
type InboundFrame struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Action    string          `json:"action,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// CloseEvent describes how a transport terminated.
type CloseEvent struct {
	Code   int    // WebSocket close code; 1000 means clean
	Reason string // Close reason text, if any
	Err    error  // Underlying read error when no close frame was seen
}

// Clean reports whether the transport closed with a normal closure code.
func (e CloseEvent) Clean() bool {
	return e.Code == 1000
}

// Info is a read-only snapshot of a connection's bookkeeping.
type Info struct {
	ID           string
	URL          string
	Protocols    []string
	Status       Status
	LastActivity time.Time
	Attempts     int
}

// ClientConfig configures a single WebSocket transport.
type ClientConfig struct {
	URL              string   // wss:// endpoint of the realtime service
	Protocols        []string // Sec-WebSocket-Protocol values
	Headers          map[string]string
	HandshakeTimeout time.Duration // Dial deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Inbound message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	HeartbeatInterval    time.Duration // Interval between heartbeat frames
	ReconnectBaseDelay   time.Duration // Base delay for reconnect backoff
	ReconnectMaxDelay    time.Duration // Cap on reconnect backoff
	MaxReconnectAttempts int           // Consecutive failures before giving up
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration
	BufferSize           int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		HeartbeatInterval:    30 * time.Second,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           256,
	}
}

// Hooks let owning layers observe connection lifecycle events without the
// manager importing them. All hooks are optional, are invoked from manager
// goroutines, and must not block.
type Hooks struct {
	// OnConnected fires after a connection reaches Connected, including
	// after a reconnect. The subscription registry uses it to replay
	// channel subscriptions.
	OnConnected func(connID string)

	// OnClosing fires when Close begins tearing down a connection, before
	// the transport is closed. The registry uses it to unsubscribe the
	// connection's channels.
	OnClosing func(connID string)

	// OnFrame fires for every decoded channel_message or system_message
	// frame. Raw holds the original wire bytes.
	OnFrame func(connID string, frame InboundFrame, raw []byte)

	// OnMaxAttempts fires once when automatic reconnection gives up.
	OnMaxAttempts func(connID string)

	// OnStatus fires after every status transition.
	OnStatus func(connID string, status Status)
}
