// Package rooms implements the in-memory room directory.
//
// Each user occupies at most one room. Rooms are identified by an int64
// allocated from a counter that starts at 1 and never repeats within the
// process lifetime. A room is an explicit member set; it disappears when its
// last member leaves. Nothing here is persisted.
package rooms
