// Package jwt decodes and issues the bearer tokens exchanged with the reel
// processing API.
//
// # Client side
//
// [Decode] performs a structural decode only. The signature is never checked
// on the client: the backend is the sole authority on whether a token is
// valid, and the client only needs the subject claim to display who is
// logged in. A decode error therefore means the token is malformed, not that
// it is forged or expired.
//
// # Server side
//
// [Manager] signs and verifies tokens with HS256 or Ed25519 keys. It backs the
// in-repo fake backend used by tests and the dev example.
//
// # What this package must NOT do
//
//   - Persist tokens (the session package owns persistence).
//   - Import the root reelclient package.
package jwt
