// Package session owns the client's authentication state: the bearer token,
// the identity decoded from it, and the durable copy of the token.
//
// # Invariants
//
// An identity is held if and only if a token is held and that token decoded
// successfully. A token that fails to decode is never kept: [Store.SetToken]
// and [New] fall back to a full logout instead, so there is no partially
// valid session.
//
// # Reactivity
//
// Consumers observe changes through [Store.Subscribe]. Callbacks run
// synchronously in the goroutine that performed the mutation, after the
// store's lock has been released, so a callback may read the store.
//
// # What this package must NOT do
//
//   - Verify token signatures (the backend is the authority).
//   - Issue HTTP requests or decide navigation policy.
//   - Import the root reelclient package.
package session
