// Package internal contains helper utilities that are intentionally private to linkauth,
// chiefly secure random generation of opaque tokens and their storage digests.
//
// # Sub-packages
//
//   - stores: Redis-backed one-shot records (OAuth redirect state)
//   - config: environment loading for the server binaries
//   - rate: Redis fixed-window throttle for failed password logins
//
// # What this package must NOT do
//
//   - Export types that appear in the public linkauth API.
//   - Be imported by any package outside the linkauth module.
package internal
