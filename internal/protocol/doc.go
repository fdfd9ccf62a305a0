// Package protocol defines the JSON frames carried over the chat websocket.
//
// Inbound:  {"event": "join", "id": "7", "args": ["alice", "bob"]}
// Outbound: {"event": "incoming", "args": ["alice", "c1", "k1", "m1"]}
// Ack:      {"event": "ack", "id": "7", "result": 3}
//
// System notices are "incoming" events whose args are [text, color].
package protocol
