// ABOUTME: Message relay persisting opaque encrypted envelopes between two users
// ABOUTME: History is looked up by a conversation key pair derived per KeyStrategy

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/2389/huddle-gateway/internal/auth"
	"github.com/2389/huddle-gateway/internal/store"
)

// Policy errors returned to callers.
var (
	ErrUnknownUser   = errors.New("unknown user")
	ErrMuted         = errors.New("you are muted")
	ErrEmptyEnvelope = errors.New("ciphertext must not be empty")
)

// KeyStrategy derives the conversation key stored with each message.
type KeyStrategy string

const (
	// StableKeys uses the permanent username.
	StableKeys KeyStrategy = "stable"
	// CredentialKeys uses the password hash at send time. A password change
	// orphans earlier history for that user.
	CredentialKeys KeyStrategy = "credential"
)

// Key returns the conversation key for user.
func (k KeyStrategy) Key(user *store.User) string {
	if k == CredentialKeys {
		return user.PasswordHash
	}
	return user.Username
}

// Users resolves identities through the auth service.
type Users interface {
	GetUser(ctx context.Context, username string) (*store.User, error)
}

// MessageStore defines what the relay needs from storage.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *store.Message) error
	ListConversation(ctx context.Context, keyA, keyB string) ([]*store.Message, error)
}

// Envelope is one encrypted message as received from a client.
type Envelope struct {
	Sender      string
	Receiver    string
	Ciphertext  string
	KeyArtifact string
	MAC         string
	RoomID      int64
}

// Service persists and replays encrypted envelopes.
type Service struct {
	users    Users
	store    MessageStore
	strategy KeyStrategy
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a relay using the given key strategy. An empty strategy means StableKeys.
func New(users Users, st MessageStore, strategy KeyStrategy, logger *slog.Logger) *Service {
	if strategy == "" {
		strategy = StableKeys
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		store:    st,
		strategy: strategy,
		now:      time.Now,
		logger:   logger.With("component", "relay"),
	}
}

// Strategy returns the configured key strategy.
func (s *Service) Strategy() KeyStrategy {
	return s.strategy
}

// Send resolves both parties and persists the envelope. Nothing is stored
// when either party is unknown or the sender is muted.
func (s *Service) Send(ctx context.Context, env Envelope) (*store.Message, error) {
	if env.Ciphertext == "" {
		return nil, ErrEmptyEnvelope
	}

	sender, err := s.resolve(ctx, env.Sender)
	if err != nil {
		return nil, err
	}
	receiver, err := s.resolve(ctx, env.Receiver)
	if err != nil {
		return nil, err
	}
	if sender.Muted {
		s.logger.Info("dropped message from muted user", "sender", sender.Username)
		return nil, ErrMuted
	}

	msg := &store.Message{
		ID:          ulid.Make().String(),
		Sender:      sender.Username,
		Receiver:    receiver.Username,
		Ciphertext:  env.Ciphertext,
		KeyArtifact: env.KeyArtifact,
		MAC:         env.MAC,
		SenderKey:   s.strategy.Key(sender),
		ReceiverKey: s.strategy.Key(receiver),
		Timestamp:   s.now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}

	s.logger.Debug("message relayed",
		"message_id", msg.ID,
		"sender", msg.Sender,
		"receiver", msg.Receiver,
		"room_id", env.RoomID,
	)
	return msg, nil
}

// History returns every message between a and b, oldest first.
// History(a, b) and History(b, a) are equal.
func (s *Service) History(ctx context.Context, a, b string) ([]*store.Message, error) {
	ua, err := s.resolve(ctx, a)
	if err != nil {
		return nil, err
	}
	ub, err := s.resolve(ctx, b)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.ListConversation(ctx, s.strategy.Key(ua), s.strategy.Key(ub))
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return msgs, nil
}

func (s *Service) resolve(ctx context.Context, username string) (*store.User, error) {
	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, auth.ErrUnknownUser) || errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("unresolvable party", "username", username)
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", username, err)
	}
	return user, nil
}
