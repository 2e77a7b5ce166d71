// Package realtime is the domain facade over the connection and
// subscription layers.
//
// It declares the fixed channel set of the portfolio CMS (comments, blog
// posts, contact forms, analytics, presence), decides which database event
// types each channel cares about, gates admin-only channels through the
// auth provider, and routes decoded payloads to the UI sink while
// re-broadcasting them on the process-wide event bus.
package realtime
