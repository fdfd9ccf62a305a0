// Package relay stores and replays encrypted message envelopes.
//
// The server never interprets ciphertext, key artifacts or MACs. Each stored
// message carries a conversation key for both parties, derived by the
// configured KeyStrategy:
//
//   - stable: the username, so history survives credential changes
//   - credential: the password hash at send time, so a password change
//     hides earlier history from that user
//
// Message ids are ULIDs. History is ordered by timestamp, then id.
package relay
