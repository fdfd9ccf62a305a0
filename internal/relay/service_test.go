// ABOUTME: Tests for the message relay over SQLite with the real auth service
// ABOUTME: Covers history round trips, symmetry, unknown parties, mute and key strategies

package relay

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/huddle-gateway/internal/auth"
	"github.com/2389/huddle-gateway/internal/store"
)

type fixture struct {
	relay *Service
	auth  *auth.Service
	store *store.SQLiteStore
}

func newFixture(t *testing.T, strategy KeyStrategy) *fixture {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	verifier, err := auth.NewJWTVerifier([]byte("relay-test-secret-0123456789abcdef"))
	require.NoError(t, err)
	authSvc := auth.NewService(st, verifier, auth.Options{Iterations: 1000}, slog.Default())

	for _, u := range []string{"alice", "bob", "carol"} {
		_, err := authSvc.Register(t.Context(), u, "pw-"+u, "")
		require.NoError(t, err)
	}

	svc := New(authSvc, st, strategy, slog.Default())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	return &fixture{relay: svc, auth: authSvc, store: st}
}

func envelope(from, to, ct string) Envelope {
	return Envelope{Sender: from, Receiver: to, Ciphertext: ct, KeyArtifact: "k-" + ct, MAC: "m-" + ct, RoomID: 1}
}

func TestSendHistory_Scenario(t *testing.T) {
	f := newFixture(t, StableKeys)
	ctx := t.Context()

	msg, err := f.relay.Send(ctx, Envelope{Sender: "alice", Receiver: "bob", Ciphertext: "c1", KeyArtifact: "k1", MAC: "m1", RoomID: 1})
	require.NoError(t, err)
	assert.Len(t, msg.ID, 26)

	history, err := f.relay.History(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	got := history[0]
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, "c1", got.Ciphertext)
	assert.Equal(t, "k1", got.KeyArtifact)
	assert.Equal(t, "m1", got.MAC)
}

func TestHistory_OrderedAndSymmetric(t *testing.T) {
	f := newFixture(t, StableKeys)
	ctx := t.Context()

	for _, e := range []Envelope{
		envelope("alice", "bob", "1"),
		envelope("bob", "alice", "2"),
		envelope("alice", "carol", "x"),
		envelope("alice", "bob", "3"),
	} {
		_, err := f.relay.Send(ctx, e)
		require.NoError(t, err)
	}

	ab, err := f.relay.History(ctx, "alice", "bob")
	require.NoError(t, err)
	ba, err := f.relay.History(ctx, "bob", "alice")
	require.NoError(t, err)

	var order []string
	for _, m := range ab {
		order = append(order, m.Ciphertext)
	}
	assert.Equal(t, []string{"1", "2", "3"}, order)
	assert.Equal(t, ab, ba)

	last := ab[len(ab)-1]
	assert.Equal(t, "alice", last.Sender)
	assert.Equal(t, "k-3", last.KeyArtifact)
	assert.Equal(t, "m-3", last.MAC)
}

func TestSend_UnknownParty(t *testing.T) {
	f := newFixture(t, StableKeys)
	ctx := t.Context()

	_, err := f.relay.Send(ctx, envelope("alice", "zed", "c"))
	assert.ErrorIs(t, err, ErrUnknownUser)
	_, err = f.relay.Send(ctx, envelope("zed", "alice", "c"))
	assert.ErrorIs(t, err, ErrUnknownUser)

	stats, err := f.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Messages)

	_, err = f.relay.History(ctx, "alice", "zed")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestSend_MutedAndEmpty(t *testing.T) {
	f := newFixture(t, StableKeys)
	ctx := t.Context()

	require.NoError(t, f.auth.SetMuted(ctx, "alice", true))
	_, err := f.relay.Send(ctx, envelope("alice", "bob", "c"))
	assert.ErrorIs(t, err, ErrMuted)

	_, err = f.relay.Send(ctx, envelope("bob", "alice", ""))
	assert.ErrorIs(t, err, ErrEmptyEnvelope)

	stats, _ := f.store.Stats(ctx)
	assert.Zero(t, stats.Messages)
}

func TestKeyStrategies_PasswordChange(t *testing.T) {
	tests := []struct {
		strategy    KeyStrategy
		wantHistory int
	}{
		{StableKeys, 1},
		{CredentialKeys, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			f := newFixture(t, tt.strategy)
			ctx := t.Context()

			_, err := f.relay.Send(ctx, envelope("alice", "bob", "before"))
			require.NoError(t, err)

			require.NoError(t, f.auth.ChangePassword(ctx, "alice", "pw-alice", "new-pw"))

			history, err := f.relay.History(ctx, "bob", "alice")
			require.NoError(t, err)
			assert.Len(t, history, tt.wantHistory)
		})
	}
}

func TestNew_DefaultsToStable(t *testing.T) {
	svc := New(nil, nil, "", nil)
	assert.Equal(t, StableKeys, svc.Strategy())
	assert.Equal(t, "alice", StableKeys.Key(&store.User{Username: "alice", PasswordHash: "h"}))
	assert.Equal(t, "h", CredentialKeys.Key(&store.User{Username: "alice", PasswordHash: "h"}))
}
