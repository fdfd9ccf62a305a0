// ABOUTME: Encrypted message envelope persistence
// ABOUTME: Messages are immutable and looked up by their unordered conversation key pair

package store

import (
	"context"
	"fmt"
)

// SaveMessage persists an encrypted envelope
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, sender, receiver, ciphertext, key_artifact, mac, sender_key, receiver_key, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.Sender,
		msg.Receiver,
		msg.Ciphertext,
		msg.KeyArtifact,
		msg.MAC,
		msg.SenderKey,
		msg.ReceiverKey,
		formatTime(msg.Timestamp),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting message: %w", err)
	}

	s.logger.Debug("saved message", "id", msg.ID, "sender", msg.Sender, "receiver", msg.Receiver)
	return nil
}

// ListConversation returns every message stored under the key pair {keyA, keyB}
// in either direction, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, keyA, keyB string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, ciphertext, key_artifact, mac, sender_key, receiver_key, timestamp
		FROM messages
		WHERE (sender_key = ? AND receiver_key = ?) OR (sender_key = ? AND receiver_key = ?)
		ORDER BY timestamp ASC, id ASC
	`, keyA, keyB, keyB, keyA)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var ts string
		if err := rows.Scan(
			&msg.ID,
			&msg.Sender,
			&msg.Receiver,
			&msg.Ciphertext,
			&msg.KeyArtifact,
			&msg.MAC,
			&msg.SenderKey,
			&msg.ReceiverKey,
			&ts,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parsing message timestamp: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return messages, nil
}
