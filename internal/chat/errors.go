// ABOUTME: Policy errors for the chat engine and their classification
// ABOUTME: Policy errors are shown to the client; anything else is an internal failure

package chat

import (
	"errors"

	"github.com/2389/huddle-gateway/internal/friends"
	"github.com/2389/huddle-gateway/internal/invites"
	"github.com/2389/huddle-gateway/internal/protocol"
	"github.com/2389/huddle-gateway/internal/relay"
)

// Policy errors. The join messages are shown to users verbatim.
var (
	ErrNotAuthorized   = errors.New("not authorized")
	ErrUnknownReceiver = errors.New("Unknown receiver!")
	ErrUnknownSender   = errors.New("Unknown sender!")
	ErrNotFriends      = errors.New("You must be friends to join the chatroom!")
	ErrNotInRoom       = errors.New("you are not in that room")
	ErrRequestNotFound = errors.New("no pending friend request")
)

var policyErrors = []error{
	ErrNotAuthorized,
	ErrUnknownReceiver,
	ErrUnknownSender,
	ErrNotFriends,
	ErrNotInRoom,
	ErrRequestNotFound,
	friends.ErrSelfRequest,
	friends.ErrUnknownUser,
	friends.ErrAlreadyFriends,
	friends.ErrDuplicateRequest,
	friends.ErrReverseRequest,
	invites.ErrNotInRoom,
	invites.ErrSelfInvite,
	invites.ErrUnknownUser,
	invites.ErrInvitationNotFound,
	invites.ErrNotInvitee,
	invites.ErrRoomGone,
	relay.ErrUnknownUser,
	relay.ErrMuted,
	relay.ErrEmptyEnvelope,
	protocol.ErrBadArgs,
	protocol.ErrMalformed,
}

// IsPolicy reports whether err is a user-facing policy error rather than an
// internal failure.
func IsPolicy(err error) bool {
	for _, p := range policyErrors {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}
