// Package exchange holds short-lived, single-use codes that hand an issued
// token pair from the OAuth redirect to the client.
//
// A code is 32 random bytes, base64url encoded. Consume is an atomic
// get-and-delete: across any number of concurrent callers at most one receives
// the payload, and expired, unknown and already-consumed codes all report
// ok=false.
//
// [RedisStore] is the multi-instance implementation. [MemoryStore] serves a
// single process and purges lazily on Consume or through [MemoryStore.Janitor].
package exchange
