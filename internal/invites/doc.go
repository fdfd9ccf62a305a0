// Package invites lets a room occupant invite another user into that room.
//
// Invitations are stored durably and consumed exactly once, by accept or
// reject. Accepting into a room whose members have all left consumes the
// invitation but records no assignment.
package invites
