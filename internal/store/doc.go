// Package store persists the session token and origin marker.
//
// Three backends share the Store interface:
//   - Memory keeps values in process (tests, one-shot CLI runs)
//   - SQLite keeps values in a local database file
//   - Postgres keeps values in a shared database so several processes see
//     the same token lineage
//
// Every backend scopes keys by namespace so that profiles sharing one
// database never observe each other's tokens.
package store
