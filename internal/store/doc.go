// Package store provides neru's persistent state layer over per-store
// SQLite database files.
//
// Each logical concern owns its own database file and store type:
//
//   - HistoryStore: per-channel bounded conversation history with
//     idle-channel eviction
//   - BanStore: per-(guild, user) ban list with a reason trail
//   - CallNameStore: per-(guild, user) call-name preferences
//   - ReplayLog: append-only chat audit log with stable sequential ids
//
// No two stores share a file; within one file all access serializes on
// a single pooled connection, so every mutating call is atomic. Stores
// are created once at startup and closed at shutdown; operations on a
// closed store fail with ErrClosed, and lookups that find nothing
// return ErrNotFound rather than an empty struct.
package store
