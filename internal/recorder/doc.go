// Package recorder persists analytics events to PostgreSQL.
//
// The recorder subscribes to the analytics topic on the event bus,
// accumulates batches, and flushes them on size or interval using
// pgx batch inserts with append-only semantics.
package recorder
