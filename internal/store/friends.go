// ABOUTME: Friend request and friendship persistence
// ABOUTME: Every mutation runs in a transaction so request/friendship transitions stay atomic

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// canonicalPair orders two usernames so each friendship has one row.
func canonicalPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// CreateFriendRequest records a pending sender->receiver request.
// At most one pending request may exist per unordered pair, and none once
// the pair are friends.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, sender, receiver string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		friends, err := areFriendsTx(ctx, tx, sender, receiver)
		if err != nil {
			return err
		}
		if friends {
			return ErrAlreadyFriends
		}

		var exists int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM friend_requests WHERE sender = ? AND receiver = ?`,
			receiver, sender,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking reverse request: %w", err)
		}
		if exists > 0 {
			return ErrReverseRequest
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO friend_requests (sender, receiver, created_at) VALUES (?, ?, ?)`,
			sender, receiver, formatTime(time.Now()),
		)
		if err != nil {
			if isConstraintViolation(err) {
				return ErrDuplicate
			}
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("inserting friend request: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("created friend request", "sender", sender, "receiver", receiver)
	return nil
}

// AcceptFriendRequest deletes the pending sender->receiver request and creates
// the friendship in one transaction. Returns false when no request exists.
func (s *SQLiteStore) AcceptFriendRequest(ctx context.Context, sender, receiver string) (bool, error) {
	var accepted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM friend_requests WHERE sender = ? AND receiver = ?`,
			sender, receiver,
		)
		if err != nil {
			return fmt.Errorf("deleting friend request: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}

		u1, u2 := canonicalPair(sender, receiver)
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO friendships (user1, user2, created_at) VALUES (?, ?, ?)`,
			u1, u2, formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("inserting friendship: %w", err)
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if accepted {
		s.logger.Debug("accepted friend request", "sender", sender, "receiver", receiver)
	}
	return accepted, nil
}

// DeleteFriendRequest removes the pending sender->receiver request.
// Returns false when none existed.
func (s *SQLiteStore) DeleteFriendRequest(ctx context.Context, sender, receiver string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM friend_requests WHERE sender = ? AND receiver = ?`,
			sender, receiver,
		)
		if err != nil {
			return fmt.Errorf("deleting friend request: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.Debug("deleted friend request", "sender", sender, "receiver", receiver, "existed", deleted)
	return deleted, nil
}

// ListIncomingRequests returns pending requests addressed to username, oldest first.
func (s *SQLiteStore) ListIncomingRequests(ctx context.Context, username string) ([]*FriendRequest, error) {
	return s.listRequests(ctx, `
		SELECT sender, receiver, created_at FROM friend_requests
		WHERE receiver = ?
		ORDER BY created_at ASC, sender ASC
	`, username)
}

// ListOutgoingRequests returns pending requests sent by username, oldest first.
func (s *SQLiteStore) ListOutgoingRequests(ctx context.Context, username string) ([]*FriendRequest, error) {
	return s.listRequests(ctx, `
		SELECT sender, receiver, created_at FROM friend_requests
		WHERE sender = ?
		ORDER BY created_at ASC, receiver ASC
	`, username)
}

func (s *SQLiteStore) listRequests(ctx context.Context, query, username string) ([]*FriendRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("querying friend requests: %w", err)
	}
	defer rows.Close()

	var requests []*FriendRequest
	for rows.Next() {
		var req FriendRequest
		var createdAt string
		if err := rows.Scan(&req.Sender, &req.Receiver, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning friend request row: %w", err)
		}
		req.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing friend request created_at: %w", err)
		}
		requests = append(requests, &req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friend request rows: %w", err)
	}
	return requests, nil
}

// AreFriends reports whether a friendship exists in either ordering.
func (s *SQLiteStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return areFriendsTx(ctx, s.db, a, b)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func areFriendsTx(ctx context.Context, q queryRower, a, b string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM friendships
		WHERE (user1 = ? AND user2 = ?) OR (user1 = ? AND user2 = ?)
	`, a, b, b, a).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying friendship: %w", err)
	}
	return n > 0, nil
}

// DeleteFriendship removes the friendship in both orderings. Idempotent.
func (s *SQLiteStore) DeleteFriendship(ctx context.Context, a, b string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM friendships
			WHERE (user1 = ? AND user2 = ?) OR (user1 = ? AND user2 = ?)
		`, a, b, b, a)
		if err != nil {
			return fmt.Errorf("deleting friendship: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("deleted friendship", "user1", a, "user2", b)
	return nil
}

// ListFriends returns the other endpoint of every friendship touching username, sorted.
func (s *SQLiteStore) ListFriends(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN user1 = ? THEN user2 ELSE user1 END AS friend
		FROM friendships
		WHERE user1 = ? OR user2 = ?
		ORDER BY friend ASC
	`, username, username, username)
	if err != nil {
		return nil, fmt.Errorf("querying friends: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scanning friend row: %w", err)
		}
		friends = append(friends, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friend rows: %w", err)
	}
	return friends, nil
}
