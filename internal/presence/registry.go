// ABOUTME: Presence registry mapping each online user to its latest connection
// ABOUTME: Tracks heartbeats so stale entries can be expired without a disconnect

package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type entry struct {
	connID   string
	lastSeen time.Time
}

// Registry holds at most one live connection per username.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	byConn  map[string]string // connID -> username
	now     func() time.Time
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		byConn:  make(map[string]string),
		now:     time.Now,
		logger:  logger.With("component", "presence"),
	}
}

// Connect registers connID as the live connection for username, replacing
// any previous one. It returns the replaced connection id, if any.
func (r *Registry) Connect(username, connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var previous string
	replaced := false
	if old, ok := r.entries[username]; ok {
		previous, replaced = old.connID, true
		delete(r.byConn, old.connID)
	}
	// A connection id belongs to one user only.
	if other, ok := r.byConn[connID]; ok && other != username {
		delete(r.entries, other)
	}

	r.entries[username] = &entry{connID: connID, lastSeen: r.now()}
	r.byConn[connID] = username

	r.logger.Debug("presence registered",
		"username", username,
		"conn_id", connID,
		"replaced", replaced,
		"online", len(r.entries),
	)
	return previous, replaced
}

// Touch refreshes the heartbeat of the entry owned by connID.
// Returns false when connID is not the user's current connection.
func (r *Registry) Touch(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connID]
	if !ok {
		return false
	}
	r.entries[username].lastSeen = r.now()
	return true
}

// Logoff removes the entry whose connection is connID.
func (r *Registry) Logoff(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	delete(r.entries, username)

	r.logger.Debug("presence removed", "username", username, "conn_id", connID, "online", len(r.entries))
	return username, true
}

// Lookup returns the current connection id of username.
func (r *Registry) Lookup(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[username]
	if !ok {
		return "", false
	}
	return e.connID, true
}

// UsernameFor returns the user whose current connection is connID.
func (r *Registry) UsernameFor(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byConn[connID]
	return username, ok
}

// Online returns the sorted list of online usernames.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.entries))
	for u := range r.entries {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Expire removes every entry whose last heartbeat precedes cutoff and
// returns the removed usernames, sorted.
func (r *Registry) Expire(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for username, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.byConn, e.connID)
			delete(r.entries, username)
			expired = append(expired, username)
		}
	}
	sort.Strings(expired)

	if len(expired) > 0 {
		r.logger.Info("expired stale presence", "users", expired, "online", len(r.entries))
	}
	return expired
}

// Len returns the number of online users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
