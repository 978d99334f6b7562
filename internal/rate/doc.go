// Package rate throttles password logins with Redis fixed-window counters.
//
// # Window semantics
//
// INCR + conditional EXPIRE on the first failure. Keys:
//   - {prefix}:email:{email}  failures per account email
//   - {prefix}:ip:{ip}        failures per client address, when PerIP is set
//
// Only failures are counted; a successful login clears the email counter.
package rate
