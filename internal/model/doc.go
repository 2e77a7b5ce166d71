// Package model defines the decoded domain payload types carried over the
// realtime channels.
//
// Conventions:
//   - Timestamps: time.Time, RFC 3339 on the wire
//   - IDs: int64 for CMS rows, uuid.UUID for analytics events
//   - JSON tags match the backend broadcaster's camelCase payloads
package model
