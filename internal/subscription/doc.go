// Package subscription implements the Channel Subscription Registry.
//
// The Registry:
//   - Tracks logical channels layered over physical connections
//   - Sends subscribe/unsubscribe control frames
//   - Demultiplexes inbound frames by channel name and dispatches them to
//     listeners in registration order
//   - Replays every channel's original subscription options after a
//     reconnect
//
// Listener callbacks run behind a recover boundary: a panicking listener is
// logged and never prevents later listeners from seeing the same frame.
package subscription
