// ABOUTME: Store interface and data types for huddle-gateway persistence
// ABOUTME: Defines users, friend graph, chat invitations and encrypted message records

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with a unique key
var ErrDuplicate = errors.New("already exists")

// ErrAlreadyFriends is returned when a friend request targets an existing friend
var ErrAlreadyFriends = errors.New("already friends")

// ErrReverseRequest is returned when the receiver already has a pending request to the sender
var ErrReverseRequest = errors.New("reverse request pending")

// Role is a user's account role
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleStaff
}

// User is an account known to the auth service.
// PasswordHash and Salt are hex encoded.
type User struct {
	Username     string
	PasswordHash string
	Salt         string
	Role         Role
	Muted        bool
	CreatedAt    time.Time
}

// FriendRequest is a pending directed proposal from Sender to Receiver.
// Existence of the row is the pending state.
type FriendRequest struct {
	Sender    string
	Receiver  string
	CreatedAt time.Time
}

// Friendship is an undirected edge, stored with User1 < User2
type Friendship struct {
	User1     string
	User2     string
	CreatedAt time.Time
}

// ChatInvitation is a single-use offer for Receiver to join RoomID
type ChatInvitation struct {
	ID        int64
	Sender    string
	Receiver  string
	RoomID    int64
	CreatedAt time.Time
}

// Message is a relayed encrypted envelope. Ciphertext, KeyArtifact and MAC
// are opaque to the server. SenderKey and ReceiverKey identify the
// conversation for history lookup.
type Message struct {
	ID          string
	Sender      string
	Receiver    string
	Ciphertext  string
	KeyArtifact string
	MAC         string
	SenderKey   string
	ReceiverKey string
	Timestamp   time.Time
}

// Stats is a row count summary used by the admin API
type Stats struct {
	Users          int64
	FriendRequests int64
	Friendships    int64
	Invitations    int64
	Messages       int64
}

// Store defines the interface for huddle-gateway persistence
type Store interface {
	// CreateUser inserts a new user. Returns ErrDuplicate if the username is taken.
	CreateUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by username. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, username string) (*User, error)

	// UpdatePassword replaces a user's credential hash and salt.
	UpdatePassword(ctx context.Context, username, passwordHash, salt string) error

	// SetMuted sets a user's mute flag.
	SetMuted(ctx context.Context, username string, muted bool) error

	// CreateFriendRequest records a pending sender->receiver request.
	// Returns ErrDuplicate, ErrReverseRequest or ErrAlreadyFriends when the
	// pair already has a pending request or friendship.
	CreateFriendRequest(ctx context.Context, sender, receiver string) error

	// AcceptFriendRequest atomically deletes the pending request and creates the friendship.
	// Returns false when no such request exists.
	AcceptFriendRequest(ctx context.Context, sender, receiver string) (bool, error)

	// DeleteFriendRequest removes a pending request. Returns false when none existed.
	DeleteFriendRequest(ctx context.Context, sender, receiver string) (bool, error)

	// ListIncomingRequests returns requests addressed to username, oldest first.
	ListIncomingRequests(ctx context.Context, username string) ([]*FriendRequest, error)

	// ListOutgoingRequests returns requests sent by username, oldest first.
	ListOutgoingRequests(ctx context.Context, username string) ([]*FriendRequest, error)

	// AreFriends reports whether a friendship exists in either ordering.
	AreFriends(ctx context.Context, a, b string) (bool, error)

	// DeleteFriendship removes the friendship in both orderings. Idempotent.
	DeleteFriendship(ctx context.Context, a, b string) error

	// ListFriends returns the other endpoint of every friendship touching username.
	ListFriends(ctx context.Context, username string) ([]string, error)

	// CreateChatInvitation persists an invitation and sets its ID.
	CreateChatInvitation(ctx context.Context, inv *ChatInvitation) error

	// GetChatInvitation retrieves an invitation. Returns ErrNotFound if absent.
	GetChatInvitation(ctx context.Context, id int64) (*ChatInvitation, error)

	// TakeChatInvitation atomically reads and deletes an invitation.
	// Returns ErrNotFound if it was already consumed.
	TakeChatInvitation(ctx context.Context, id int64) (*ChatInvitation, error)

	// DeleteChatInvitation removes an invitation. Returns false when none existed.
	DeleteChatInvitation(ctx context.Context, id int64) (bool, error)

	// ListChatInvitations returns invitations addressed to username, oldest first.
	ListChatInvitations(ctx context.Context, username string) ([]*ChatInvitation, error)

	// SaveMessage persists an encrypted envelope.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListConversation returns messages whose key pair matches {keyA, keyB}
	// in either direction, ordered by timestamp then ID.
	ListConversation(ctx context.Context, keyA, keyB string) ([]*Message, error)

	// Stats returns row counts.
	Stats(ctx context.Context) (*Stats, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Close closes the database connection
	Close() error
}
