// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject storage failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
// When FailWrites is set, every mutating call returns it without changing state.
type MockStore struct {
	mu          sync.RWMutex
	users       map[string]*User
	requests    map[[2]string]*FriendRequest // keyed by {sender, receiver}
	friendships map[[2]string]*Friendship    // keyed by canonical pair
	invitations map[int64]*ChatInvitation
	messages    []*Message
	nextInvite  int64

	FailWrites error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:       make(map[string]*User),
		requests:    make(map[[2]string]*FriendRequest),
		friendships: make(map[[2]string]*Friendship),
		invitations: make(map[int64]*ChatInvitation),
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	if _, ok := m.users[user.Username]; ok {
		return ErrDuplicate
	}
	u := *user
	if u.Role == "" {
		u.Role = RoleStudent
	}
	m.users[u.Username] = &u
	return nil
}

// GetUser retrieves a user by username.
func (m *MockStore) GetUser(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// UpdatePassword replaces the stored hash and salt.
func (m *MockStore) UpdatePassword(ctx context.Context, username, passwordHash, salt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	u, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.Salt = salt
	return nil
}

// SetMuted sets the mute flag.
func (m *MockStore) SetMuted(ctx context.Context, username string, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	u, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	u.Muted = muted
	return nil
}

// CreateFriendRequest stores a pending request with the same conflict rules as SQLiteStore.
func (m *MockStore) CreateFriendRequest(ctx context.Context, sender, receiver string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	if _, ok := m.users[sender]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[receiver]; !ok {
		return ErrNotFound
	}
	u1, u2 := canonicalPair(sender, receiver)
	if _, ok := m.friendships[[2]string{u1, u2}]; ok {
		return ErrAlreadyFriends
	}
	if _, ok := m.requests[[2]string{receiver, sender}]; ok {
		return ErrReverseRequest
	}
	key := [2]string{sender, receiver}
	if _, ok := m.requests[key]; ok {
		return ErrDuplicate
	}
	m.requests[key] = &FriendRequest{Sender: sender, Receiver: receiver, CreatedAt: time.Now()}
	return nil
}

// AcceptFriendRequest moves a pending request into a friendship.
func (m *MockStore) AcceptFriendRequest(ctx context.Context, sender, receiver string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return false, m.FailWrites
	}

	key := [2]string{sender, receiver}
	if _, ok := m.requests[key]; !ok {
		return false, nil
	}
	delete(m.requests, key)
	u1, u2 := canonicalPair(sender, receiver)
	m.friendships[[2]string{u1, u2}] = &Friendship{User1: u1, User2: u2, CreatedAt: time.Now()}
	return true, nil
}

// DeleteFriendRequest removes a pending request.
func (m *MockStore) DeleteFriendRequest(ctx context.Context, sender, receiver string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return false, m.FailWrites
	}

	key := [2]string{sender, receiver}
	_, ok := m.requests[key]
	delete(m.requests, key)
	return ok, nil
}

// ListIncomingRequests returns requests addressed to username.
func (m *MockStore) ListIncomingRequests(ctx context.Context, username string) ([]*FriendRequest, error) {
	return m.filterRequests(func(r *FriendRequest) bool { return r.Receiver == username }), nil
}

// ListOutgoingRequests returns requests sent by username.
func (m *MockStore) ListOutgoingRequests(ctx context.Context, username string) ([]*FriendRequest, error) {
	return m.filterRequests(func(r *FriendRequest) bool { return r.Sender == username }), nil
}

func (m *MockStore) filterRequests(keep func(*FriendRequest) bool) []*FriendRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*FriendRequest
	for _, r := range m.requests {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sender != out[j].Sender {
			return out[i].Sender < out[j].Sender
		}
		return out[i].Receiver < out[j].Receiver
	})
	return out
}

// AreFriends reports whether the pair are friends.
func (m *MockStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u1, u2 := canonicalPair(a, b)
	_, ok := m.friendships[[2]string{u1, u2}]
	return ok, nil
}

// DeleteFriendship removes the friendship. Idempotent.
func (m *MockStore) DeleteFriendship(ctx context.Context, a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	u1, u2 := canonicalPair(a, b)
	delete(m.friendships, [2]string{u1, u2})
	return nil
}

// ListFriends returns the sorted friends of username.
func (m *MockStore) ListFriends(ctx context.Context, username string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for _, f := range m.friendships {
		switch username {
		case f.User1:
			out = append(out, f.User2)
		case f.User2:
			out = append(out, f.User1)
		}
	}
	sort.Strings(out)
	return out, nil
}

// CreateChatInvitation stores an invitation and assigns its ID.
func (m *MockStore) CreateChatInvitation(ctx context.Context, inv *ChatInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	if _, ok := m.users[inv.Sender]; !ok {
		return ErrNotFound
	}
	if _, ok := m.users[inv.Receiver]; !ok {
		return ErrNotFound
	}
	m.nextInvite++
	inv.ID = m.nextInvite
	cp := *inv
	m.invitations[cp.ID] = &cp
	return nil
}

// GetChatInvitation retrieves an invitation.
func (m *MockStore) GetChatInvitation(ctx context.Context, id int64) (*ChatInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

// TakeChatInvitation reads and deletes an invitation.
func (m *MockStore) TakeChatInvitation(ctx context.Context, id int64) (*ChatInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return nil, m.FailWrites
	}

	inv, ok := m.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.invitations, id)
	return inv, nil
}

// DeleteChatInvitation removes an invitation.
func (m *MockStore) DeleteChatInvitation(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return false, m.FailWrites
	}

	_, ok := m.invitations[id]
	delete(m.invitations, id)
	return ok, nil
}

// ListChatInvitations returns invitations addressed to username.
func (m *MockStore) ListChatInvitations(ctx context.Context, username string) ([]*ChatInvitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ChatInvitation
	for _, inv := range m.invitations {
		if inv.Receiver == username {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveMessage appends a message.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

// ListConversation returns messages for the unordered key pair.
func (m *MockStore) ListConversation(ctx context.Context, keyA, keyB string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Message
	for _, msg := range m.messages {
		if (msg.SenderKey == keyA && msg.ReceiverKey == keyB) || (msg.SenderKey == keyB && msg.ReceiverKey == keyA) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Stats returns counts.
func (m *MockStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &Stats{
		Users:          int64(len(m.users)),
		FriendRequests: int64(len(m.requests)),
		Friendships:    int64(len(m.friendships)),
		Invitations:    int64(len(m.invitations)),
		Messages:       int64(len(m.messages)),
	}, nil
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

var _ Store = (*MockStore)(nil)
