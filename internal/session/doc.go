// Package session implements the client-side connection manager.
//
// The Manager owns one transport.Socket for its lifetime. It authenticates
// with the bearer token held in a store.Store and keeps the resulting Session
// up to date as the socket connects, drops and re-authenticates.
//
// # Lifecycle
//
//	DISCONNECTED --Connect--> CONNECTING --connect--> AUTHENTICATING
//	AUTHENTICATING --authenticated(token)--> CONNECTED
//	CONNECTED --disconnect--> DISCONNECTED (the socket re-dials by itself)
//	*  --unauthorized(reason)--> DISCONNECTED
//	*  --logged_out--> LOGGED_OUT
//
// # Token Refresh
//
// Each authenticated token carries a "duration" claim in seconds. Halfway
// through it the manager re-sends authenticate with whatever token the store
// holds at that moment and arms a grace timer for the other half. If the
// grace timer fires and the store still holds the token that was sent, the
// session is treated as expired.
//
// # Inactivity
//
// An optional inactivity timeout, in minutes, logs the user out when no
// activity is recorded. Zero disables it; values outside 0..7 days clamp to
// seven days.
//
// # Listeners
//
// Every registration returns a function that removes it. Removal is
// idempotent. Listeners run synchronously on the goroutine that delivered the
// transport event, after the manager has released its lock.
package session
