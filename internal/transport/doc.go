// Package transport defines the event/acknowledgement socket contract the
// session layer is built on, plus a WebSocket implementation of it.
//
// The contract:
//   - Connect starts the socket; it connects in the background and keeps
//     re-dialling at the wire level until Close is called
//   - Local lifecycle events "connect", "disconnect" and "connect_error" are
//     delivered through the same On handlers as server events
//   - Emit sends an event; EmitWithAck additionally registers a one-shot
//     callback for the server's acknowledgement
//   - Pending acknowledgements are dropped when the wire connection is lost
package transport
