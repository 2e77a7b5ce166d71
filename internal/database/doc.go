// Package database provides the PostgreSQL connection pool for the
// analytics recorder. It is only used when the recorder is enabled.
package database
