// Package storage provides the durable key-value capability the session
// store persists its token into.
//
// Three backends are available:
//
//   - [Memory]: process-local map, lost on exit. Useful for tests and
//     short-lived tools.
//   - [Redis]: one Redis string per key under a configurable prefix.
//   - [SQLite]: a single-file database, the default for the reelctl CLI.
//
// Every backend reports a missing key as [ErrNotFound] and treats Delete of
// a missing key as success.
package storage
