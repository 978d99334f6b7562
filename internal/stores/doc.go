// Package stores provides Redis-backed, short-lived records for the OAuth
// redirect flow.
//
// # Design
//
// Each store persists a versioned, binary-encoded record in Redis with a TTL.
// Records are single-use: Consume reads and deletes in one GETDEL round-trip, so a
// replayed state value is indistinguishable from an unknown one.
//
// # Architecture boundaries
//
// This package owns persistence of transient records. It does NOT generate the
// state values or make authentication decisions; the HTTP transport does that.
//
// # What this package must NOT do
//
//   - Import linkauth or any sibling internal package.
//   - Log record contents.
package stores
