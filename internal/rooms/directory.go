// ABOUTME: Room directory assigning users to ephemeral chat rooms
// ABOUTME: Allocates strictly increasing room ids and keeps explicit member sets

package rooms

import (
	"log/slog"
	"sort"
	"sync"
)

// Room is a snapshot of one live room.
type Room struct {
	ID      int64
	Members []string
}

// Stats summarizes the directory for admin reporting.
type Stats struct {
	Rooms         int
	AssignedUsers int
}

// Directory maps users to the room they occupy. A room exists while its
// member set is non-empty.
type Directory struct {
	mu       sync.Mutex
	nextID   int64
	assigned map[string]int64
	members  map[int64]map[string]struct{}
	logger   *slog.Logger
}

// NewDirectory creates an empty directory. The first room id is 1.
func NewDirectory(logger *slog.Logger) *Directory {
	return &Directory{
		nextID:   1,
		assigned: make(map[string]int64),
		members:  make(map[int64]map[string]struct{}),
		logger:   logger.With("component", "rooms"),
	}
}

// GetRoom returns the room username currently occupies.
func (d *Directory) GetRoom(username string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.assigned[username]
	return id, ok
}

// CreateRoom allocates a new room and assigns both users to it.
func (d *Directory) CreateRoom(a, b string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++

	d.assignLocked(a, id)
	d.assignLocked(b, id)

	d.logger.Info("room created", "room_id", id, "members", d.sortedMembersLocked(id))
	return id
}

// JoinRoom assigns username to roomID. Callers decide whether the room is
// valid to join.
func (d *Directory) JoinRoom(username string, roomID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.assignLocked(username, roomID)
	d.logger.Debug("room joined", "room_id", roomID, "username", username)
}

// LeaveRoom removes the user's assignment and returns the room it held.
func (d *Directory) LeaveRoom(username string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.assigned[username]
	if !ok {
		return 0, false
	}
	d.unassignLocked(username)
	d.logger.Debug("room left", "room_id", id, "username", username)
	return id, true
}

// Exists reports whether roomID has at least one member.
func (d *Directory) Exists(roomID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.members[roomID]) > 0
}

// Members returns the sorted members of roomID.
func (d *Directory) Members(roomID int64) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sortedMembersLocked(roomID)
}

// RoomForPair returns a live room containing both users.
func (d *Directory) RoomForPair(a, b string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.assigned[a]
	if !ok {
		return 0, false
	}
	if other, ok := d.assigned[b]; !ok || other != id {
		return 0, false
	}
	return id, true
}

// Snapshot returns every live room ordered by id.
func (d *Directory) Snapshot() []Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	rooms := make([]Room, 0, len(d.members))
	for id := range d.members {
		rooms = append(rooms, Room{ID: id, Members: d.sortedMembersLocked(id)})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Stats returns room and assignment counts.
func (d *Directory) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Rooms: len(d.members), AssignedUsers: len(d.assigned)}
}

// assignLocked moves username into roomID. Must be called with mu held.
func (d *Directory) assignLocked(username string, roomID int64) {
	if cur, ok := d.assigned[username]; ok {
		if cur == roomID {
			return
		}
		d.unassignLocked(username)
	}
	set, ok := d.members[roomID]
	if !ok {
		set = make(map[string]struct{})
		d.members[roomID] = set
	}
	set[username] = struct{}{}
	d.assigned[username] = roomID
}

// unassignLocked drops username from its room, deleting the room when it
// empties. Must be called with mu held.
func (d *Directory) unassignLocked(username string) {
	id := d.assigned[username]
	delete(d.assigned, username)
	if set, ok := d.members[id]; ok {
		delete(set, username)
		if len(set) == 0 {
			delete(d.members, id)
			d.logger.Debug("room closed", "room_id", id)
		}
	}
}

func (d *Directory) sortedMembersLocked(roomID int64) []string {
	set := d.members[roomID]
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
