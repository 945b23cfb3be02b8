// Package gateway issues request/response calls over the session socket.
//
// A call serializes its payload once, waits for an authenticated socket and
// emits an "api" event with an acknowledgement. It then waits for whichever
// comes first:
//   - the acknowledgement, which settles the call
//   - a reconnection of the session, which re-emits the payload while attempts remain
//   - the per-call deadline, which fails the call
//
// Acknowledgements of abandoned emissions are ignored.
package gateway
