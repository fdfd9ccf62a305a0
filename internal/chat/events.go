// ABOUTME: Outbound event payload builders used by the engine
// ABOUTME: Keeps payload shapes for lists, presence and invitations in one place

package chat

import (
	"github.com/2389/huddle-gateway/internal/protocol"
	"github.com/2389/huddle-gateway/internal/store"
)

// InvitationView is the client view of a chat invitation.
type InvitationView struct {
	ID     int64  `json:"id"`
	Sender string `json:"sender"`
	RoomID int64  `json:"room_id"`
}

func invitationViews(invs []*store.ChatInvitation) []InvitationView {
	out := make([]InvitationView, 0, len(invs))
	for _, inv := range invs {
		out = append(out, InvitationView{ID: inv.ID, Sender: inv.Sender, RoomID: inv.RoomID})
	}
	return out
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func onlineEvent(users []string) protocol.Outbound {
	return protocol.NewEvent(protocol.EventOnline, map[string]any{"user_list": nonNil(users)})
}

func offlineEvent(username string) protocol.Outbound {
	return protocol.NewEvent(protocol.EventOffline, map[string]any{"username": username})
}

func envelopeEvent(m *store.Message) protocol.Outbound {
	return protocol.NewEvent(protocol.EventIncoming, m.Sender, m.Ciphertext, m.KeyArtifact, m.MAC)
}
