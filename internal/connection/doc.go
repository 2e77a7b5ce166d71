// Package connection implements the Connection Lifecycle Manager.
//
// The Manager:
//   - Owns one WebSocket transport per logical endpoint
//   - Drives the per-connection state machine (connecting → connected →
//     closed/error → reconnecting)
//   - Runs a heartbeat loop per connection and recycles stale transports
//   - Reconnects with exponential backoff, capped at a maximum attempt count
//   - Surfaces lifecycle events to the subscription layer through Hooks
//
// A clean close (code 1000) never triggers reconnection; any other close
// does while the network is reachable.
package connection
