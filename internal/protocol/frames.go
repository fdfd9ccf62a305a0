// ABOUTME: JSON wire frames exchanged over the chat websocket
// ABOUTME: Inbound events carry positional args; outbound events and acks mirror them

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Inbound event names.
const (
	EventPing                   = "ping"
	EventLogoff                 = "logoff"
	EventSend                   = "send"
	EventJoin                   = "join"
	EventLeave                  = "leave"
	EventFriendRequestSent      = "friend_request_sent"
	EventFriendRequestAccepted  = "friend_request_accepted"
	EventFriendRequestRejected  = "friend_request_rejected"
	EventFriendRequestCancelled = "friend_request_cancelled"
	EventFriendRemoved          = "friend_removed"
	EventAddFriendToChat        = "add_friend_to_chat"
	EventAcceptChatInvitation   = "accept_chat_invitation"
	EventRejectChatInvitation   = "reject_chat_invitation"
	EventGetChatInvitations     = "get_chat_invitations"
)

// Outbound event names.
const (
	EventAck                            = "ack"
	EventIncoming                       = "incoming"
	EventOnline                         = "online"
	EventOffline                        = "offline"
	EventFriendsList                    = "friends_list"
	EventFriendRequestsList             = "friend_requests_list"
	EventSentFriendRequestsList         = "sent_friend_requests_list"
	EventChatInvitationsList            = "chat_invitations_list"
	EventFriendRequestReceived          = "friend_request_received"
	EventFriendRequestSentSuccess       = "friend_request_sent_success"
	EventFriendAdded                    = "friend_added"
	EventFriendRequestRemoved           = "friend_request_removed"
	EventFriendsListUpdated             = "friends_list_updated"
	EventFriendRequestRejectedSender    = "friend_request_rejected_sender"
	EventFriendRequestCancelledReceiver = "friend_request_cancelled_receiver"
	EventChatInvitationSent             = "chat_invitation_sent"
)

// Notice colors.
const (
	ColorGreen = "green"
	ColorRed   = "red"
)

// ErrMalformed is returned for frames that are not valid inbound events.
var ErrMalformed = errors.New("malformed frame")

// ErrBadArgs is returned when an argument is missing or of the wrong type.
var ErrBadArgs = errors.New("bad arguments")

// Inbound is a client event. ID is optional; when set the server acks.
type Inbound struct {
	Event string            `json:"event"`
	ID    string            `json:"id,omitempty"`
	Args  []json.RawMessage `json:"args,omitempty"`
}

// Outbound is a server event.
type Outbound struct {
	Event string `json:"event"`
	Args  []any  `json:"args"`
}

// Ack answers an inbound event that carried an ID.
type Ack struct {
	Event  string `json:"event"`
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Decode parses an inbound frame.
func Decode(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	return &in, nil
}

// NewEvent builds an outbound event.
func NewEvent(event string, args ...any) Outbound {
	if args == nil {
		args = []any{}
	}
	return Outbound{Event: event, Args: args}
}

// Notice builds an "incoming" event carrying a colored system line.
func Notice(text, color string) Outbound {
	return NewEvent(EventIncoming, text, color)
}

// OK builds a successful ack.
func OK(id string, result any) Ack {
	return Ack{Event: EventAck, ID: id, Result: result}
}

// Fail builds an error ack.
func Fail(id, msg string) Ack {
	return Ack{Event: EventAck, ID: id, Error: msg}
}

// NArgs returns the number of arguments.
func (in *Inbound) NArgs() int {
	return len(in.Args)
}

// String returns argument i as a string.
func (in *Inbound) String(i int) (string, error) {
	if i >= len(in.Args) {
		return "", fmt.Errorf("%w: missing argument %d", ErrBadArgs, i)
	}
	var s string
	if err := json.Unmarshal(in.Args[i], &s); err != nil {
		return "", fmt.Errorf("%w: argument %d must be a string", ErrBadArgs, i)
	}
	return s, nil
}

// Int64 returns argument i as an integer. Numeric strings are accepted
// since browser clients often carry ids as strings.
func (in *Inbound) Int64(i int) (int64, error) {
	if i >= len(in.Args) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrBadArgs, i)
	}
	var n int64
	if err := json.Unmarshal(in.Args[i], &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(in.Args[i], &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: argument %d must be an integer", ErrBadArgs, i)
}
