// ABOUTME: Tests for the auth service and password hashing
// ABOUTME: Covers signup, login, token authentication, password change and mute

package auth

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/huddle-gateway/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.MockStore) {
	t.Helper()
	verifier, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)
	st := store.NewMockStore()
	return NewService(st, verifier, Options{Iterations: 1000, SessionTTL: time.Hour}, slog.Default()), st
}

func TestHashPassword(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 32)

	hash := HashPassword("Secret#1", salt, 1000)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashPassword("Secret#1", salt, 1000), "deterministic for a salt")
	assert.NotEqual(t, hash, HashPassword("Secret#1", salt+"x", 1000))

	assert.True(t, CheckPassword("Secret#1", salt, hash, 1000))
	assert.False(t, CheckPassword("secret#1", salt, hash, 1000))
}

func TestRegister(t *testing.T) {
	svc, st := newTestService(t)
	ctx := t.Context()

	user, err := svc.Register(ctx, "alice", "Secret#1", "")
	require.NoError(t, err)
	assert.Equal(t, store.RoleStudent, user.Role)

	stored, err := st.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret#1", stored.PasswordHash)
	assert.NotEmpty(t, stored.Salt)

	_, err = svc.Register(ctx, "alice", "other", store.RoleStaff)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	tests := []struct {
		name     string
		username string
		password string
		role     store.Role
		wantErr  error
	}{
		{"empty username", "", "pw", "", ErrInvalidUsername},
		{"spaces", "a b", "pw", "", ErrInvalidUsername},
		{"too long", "abcdefghijklmnopqrstuvwxyz0123456789", "pw", "", ErrInvalidUsername},
		{"empty password", "bob", "", "", ErrEmptyPassword},
		{"bad role", "bob", "pw", "admin", ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password, tt.role)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "Secret#1", store.RoleStaff)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "Secret#1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := svc.Login(ctx, "alice", "Secret#1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)

	user, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, store.RoleStaff, user.Role)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	svc, _ := newTestService(t)

	token, _, err := svc.IssueToken("ghost")
	require.NoError(t, err)

	_, err = svc.Authenticate(t.Context(), token)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestChangePassword(t *testing.T) {
	svc, st := newTestService(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "Secret#1", "")
	require.NoError(t, err)
	before, _ := st.GetUser(ctx, "alice")

	assert.ErrorIs(t, svc.ChangePassword(ctx, "alice", "wrong", "New#2"), ErrInvalidCredentials)
	assert.ErrorIs(t, svc.ChangePassword(ctx, "alice", "Secret#1", ""), ErrEmptyPassword)
	assert.ErrorIs(t, svc.ChangePassword(ctx, "nobody", "x", "y"), ErrUnknownUser)

	require.NoError(t, svc.ChangePassword(ctx, "alice", "Secret#1", "New#2"))

	after, _ := st.GetUser(ctx, "alice")
	assert.NotEqual(t, before.PasswordHash, after.PasswordHash)

	_, err = svc.Login(ctx, "alice", "Secret#1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "alice", "New#2")
	assert.NoError(t, err)
}

func TestSetMuted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := t.Context()

	_, err := svc.Register(ctx, "alice", "Secret#1", "")
	require.NoError(t, err)

	require.NoError(t, svc.SetMuted(ctx, "alice", true))
	u, err := svc.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, u.Muted)

	assert.ErrorIs(t, svc.SetMuted(ctx, "nobody", true), ErrUnknownUser)
	_, err = svc.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUnknownUser)
}
