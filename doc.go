// Package reelclient is the client side of the reel processing API: a
// session-aware HTTP gateway with typed task operations.
//
// A [Client] owns a [session.Store] holding the bearer token. Every request
// carries the token; any 401 response logs the session out, asks the
// configured [Navigator] to show the login surface and is still returned to
// the caller as an [*APIError].
//
// Clients are safe for concurrent use once built through [Builder.Build] or
// [NewClient].
//
// # What this package must NOT do
//
//   - Retry, queue or deduplicate requests.
//   - Refresh tokens. A rejected token ends the session.
//   - Verify token signatures. The server is the authority; the client only
//     reads the subject for display.
package reelclient
