// ABOUTME: Chat invitation persistence
// ABOUTME: Invitations are single use; Take reads and deletes in one transaction

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateChatInvitation persists an invitation and sets inv.ID.
// Returns ErrNotFound when sender or receiver is not a known user.
func (s *SQLiteStore) CreateChatInvitation(ctx context.Context, inv *ChatInvitation) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_invitations (sender, receiver, room_id, created_at)
		VALUES (?, ?, ?, ?)
	`, inv.Sender, inv.Receiver, inv.RoomID, formatTime(inv.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("inserting chat invitation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading invitation id: %w", err)
	}
	inv.ID = id

	s.logger.Debug("created chat invitation", "id", id, "sender", inv.Sender, "receiver", inv.Receiver, "room_id", inv.RoomID)
	return nil
}

// GetChatInvitation retrieves an invitation by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetChatInvitation(ctx context.Context, id int64) (*ChatInvitation, error) {
	return getInvitation(ctx, s.db, id)
}

func getInvitation(ctx context.Context, q queryRower, id int64) (*ChatInvitation, error) {
	var inv ChatInvitation
	var createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT id, sender, receiver, room_id, created_at
		FROM chat_invitations
		WHERE id = ?
	`, id).Scan(&inv.ID, &inv.Sender, &inv.Receiver, &inv.RoomID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying chat invitation: %w", err)
	}

	inv.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing invitation created_at: %w", err)
	}
	return &inv, nil
}

// TakeChatInvitation reads and deletes an invitation atomically.
// Returns ErrNotFound if it was already consumed.
func (s *SQLiteStore) TakeChatInvitation(ctx context.Context, id int64) (*ChatInvitation, error) {
	var inv *ChatInvitation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		inv, err = getInvitation(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_invitations WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting chat invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("took chat invitation", "id", id, "receiver", inv.Receiver)
	return inv, nil
}

// DeleteChatInvitation removes an invitation. Returns false when none existed.
func (s *SQLiteStore) DeleteChatInvitation(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_invitations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting chat invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}

	s.logger.Debug("deleted chat invitation", "id", id, "existed", n > 0)
	return n > 0, nil
}

// ListChatInvitations returns invitations addressed to username, oldest first.
func (s *SQLiteStore) ListChatInvitations(ctx context.Context, username string) ([]*ChatInvitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, room_id, created_at
		FROM chat_invitations
		WHERE receiver = ?
		ORDER BY id ASC
	`, username)
	if err != nil {
		return nil, fmt.Errorf("querying chat invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*ChatInvitation
	for rows.Next() {
		var inv ChatInvitation
		var createdAt string
		if err := rows.Scan(&inv.ID, &inv.Sender, &inv.Receiver, &inv.RoomID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chat invitation row: %w", err)
		}
		inv.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing invitation created_at: %w", err)
		}
		invitations = append(invitations, &inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat invitation rows: %w", err)
	}
	return invitations, nil
}
