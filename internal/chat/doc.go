// Package chat is the coordination engine behind the websocket events.
//
// Engine owns no state of its own beyond a join lock. It validates that the
// session user is the party named by an event, calls the presence, rooms,
// friends, invites and relay services, and emits the resulting events through
// an Emitter (the hub in production, a recorder in tests).
//
// Errors for which IsPolicy is true are meant for the client. Any other
// error is a storage or internal failure.
package chat
