// Package presence implements the Presence Tracker, a channel
// specialization that keeps a synchronized map of active participants.
//
// Sync frames replace the whole map; join/leave frames patch single keys
// and are also surfaced as discrete callbacks. On every subscribed
// transition the tracker re-announces this client's own record, so presence
// survives reconnects.
package presence
