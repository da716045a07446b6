// Package fakeapi is an in-memory stand-in for the reel processing backend.
// It serves the same routes, status codes and error bodies, and issues real
// HS256 tokens, so the client can be exercised end to end without the
// production stack.
package fakeapi
