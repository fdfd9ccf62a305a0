// Package store provides SQLite persistence for huddle-gateway.
//
// # Tables
//
//   - users: accounts with hex PBKDF2 hash and salt, role and mute flag
//   - friend_requests: pending directed requests, PRIMARY KEY(sender, receiver)
//   - friendships: undirected edges stored with user1 < user2
//   - chat_invitations: single use room invitations
//   - messages: opaque encrypted envelopes keyed by conversation key pair
//
// Presence and room membership are not stored; they live in process memory.
//
// # Drivers
//
// NewSQLiteStore uses modernc.org/sqlite (driver "sqlite", no cgo).
// NewSQLiteStoreWithDriver also accepts "sqlite3" for mattn/go-sqlite3.
//
// # Timestamps
//
// Times are stored as fixed width UTC text so ORDER BY on the column is
// chronological.
//
// # Errors
//
//   - ErrNotFound: missing row, or a foreign key pointing at an unknown user
//   - ErrDuplicate: unique key collision
//   - ErrAlreadyFriends, ErrReverseRequest: friend request conflicts
package store
