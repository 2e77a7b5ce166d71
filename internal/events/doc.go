// Package events provides a process-wide publish/subscribe bus.
//
// The facade re-broadcasts every decoded realtime action on the bus so
// unrelated components can react without coupling to the realtime layer.
// Publishing never blocks; slow subscribers lose events rather than stalling
// dispatch.
package events
