// Package middleware adapts linkauth to net/http.
//
//   - [RequireAccess] verifies the Bearer access token through
//     Engine.Validate and stores the [linkauth.Principal] in the request
//     context; handlers read it back with [PrincipalFromContext].
//   - [ClientContext] records the caller's IP and User-Agent for audit events.
//
// Authentication decisions stay in the engine.
package middleware
