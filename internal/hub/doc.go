// Package hub owns live websocket connections and performs event emission.
//
// Targets are one user (all of that user's connections), one connection, a
// room (optionally excluding the originating connection), or everyone. Each
// connection has a bounded outbound queue drained by its own write pump;
// emission never blocks, and frames for a full queue are dropped and counted.
//
// Room subscriptions here are connection level. Which user belongs to which
// room is decided by the rooms package; the chat engine keeps the two in step.
package hub
