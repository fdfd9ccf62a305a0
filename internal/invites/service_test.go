// ABOUTME: Tests for chat invitations over the mock store and a real room directory
// ABOUTME: Covers occupancy checks, single-use accept, closed rooms and reject

package invites

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/huddle-gateway/internal/rooms"
	"github.com/2389/huddle-gateway/internal/store"
)

func setup(t *testing.T) (*Service, *rooms.Directory, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	for _, u := range []string{"alice", "bob", "carol"} {
		require.NoError(t, st.CreateUser(context.Background(), &store.User{Username: u}))
	}
	dir := rooms.NewDirectory(slog.Default())
	return New(st, dir, slog.Default()), dir, st
}

func TestInvite(t *testing.T) {
	svc, dir, _ := setup(t)
	ctx := t.Context()
	room := dir.CreateRoom("alice", "bob")

	inv, err := svc.Invite(ctx, "alice", "carol", room)
	require.NoError(t, err)
	assert.NotZero(t, inv.ID)
	assert.Equal(t, room, inv.RoomID)

	list, err := svc.List(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Sender)

	_, err = svc.Invite(ctx, "carol", "alice", room)
	assert.ErrorIs(t, err, ErrNotInRoom)
	_, err = svc.Invite(ctx, "alice", "alice", room)
	assert.ErrorIs(t, err, ErrSelfInvite)
	_, err = svc.Invite(ctx, "alice", "zed", room)
	assert.ErrorIs(t, err, ErrUnknownUser)
	_, err = svc.Invite(ctx, "alice", "carol", room+1)
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestAccept_JoinsRoomOnce(t *testing.T) {
	svc, dir, _ := setup(t)
	ctx := t.Context()
	room := dir.CreateRoom("alice", "bob")
	inv, err := svc.Invite(ctx, "alice", "carol", room)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, inv.ID, "bob")
	assert.ErrorIs(t, err, ErrNotInvitee)

	got, err := svc.Accept(ctx, inv.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, room, got.RoomID)
	assert.Equal(t, []string{"alice", "bob", "carol"}, dir.Members(room))

	_, err = svc.Accept(ctx, inv.ID, "carol")
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestAccept_ClosedRoom(t *testing.T) {
	svc, dir, _ := setup(t)
	ctx := t.Context()
	room := dir.CreateRoom("alice", "bob")
	inv, err := svc.Invite(ctx, "alice", "carol", room)
	require.NoError(t, err)

	dir.LeaveRoom("alice")
	dir.LeaveRoom("bob")

	_, err = svc.Accept(ctx, inv.ID, "carol")
	assert.ErrorIs(t, err, ErrRoomGone)

	_, ok := dir.GetRoom("carol")
	assert.False(t, ok, "no dangling assignment")

	list, _ := svc.List(ctx, "carol")
	assert.Empty(t, list, "invitation consumed")
}

func TestAccept_Concurrent(t *testing.T) {
	svc, dir, _ := setup(t)
	ctx := t.Context()
	room := dir.CreateRoom("alice", "bob")
	inv, err := svc.Invite(ctx, "alice", "carol", room)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Accept(ctx, inv.ID, "carol"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestReject(t *testing.T) {
	svc, dir, _ := setup(t)
	ctx := t.Context()
	room := dir.CreateRoom("alice", "bob")
	inv, err := svc.Invite(ctx, "alice", "carol", room)
	require.NoError(t, err)

	_, err = svc.Reject(ctx, inv.ID, "bob")
	assert.ErrorIs(t, err, ErrNotInvitee)

	ok, err := svc.Reject(ctx, inv.ID, "carol")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Reject(ctx, inv.ID, "carol")
	require.NoError(t, err)
	assert.False(t, ok)
}
