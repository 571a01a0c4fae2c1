package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/storage"
)

const memberColumns = `m.id, m.group_id, m.user_id, COALESCE(u.display_name, ''), m.is_owner, m.ready, m.ready_at, m.joined_at`

func scanMember(row scanner) (*models.Member, error) {
	m := &models.Member{}
	var readyAt sql.NullInt64
	var joined int64
	if err := row.Scan(
		&m.ID,
		&m.GroupID,
		&m.UserID,
		&m.DisplayName,
		&m.IsOwner,
		&m.Ready,
		&readyAt,
		&joined,
	); err != nil {
		return nil, err
	}
	m.ReadyAt = fromNull(readyAt)
	m.JoinedAt = fromNano(joined)
	return m, nil
}

func insertMember(ctx context.Context, tx *sql.Tx, m *models.Member) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (id, group_id, user_id, is_owner, ready, ready_at, joined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.GroupID,
		m.UserID,
		m.IsOwner,
		m.Ready,
		toNull(m.ReadyAt),
		toNano(m.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

// AddMember inserts a membership and bumps the group's member count.
// The count update is conditional so two concurrent joins can never push
// the group past capacity.
func (s *SQLiteStore) AddMember(ctx context.Context, member *models.Member, now time.Time) error {
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?`,
		member.GroupID, member.UserID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("member %s: %w", member.UserID, storage.ErrDuplicate)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE groups
		SET current_member_count = current_member_count + 1, updated_at = ?
		WHERE id = ?
			AND status = ?
			AND finalized_at IS NULL
			AND current_member_count < max_member
			AND (expires_at IS NULL OR expires_at >= ?)`,
		toNano(now),
		member.GroupID,
		string(models.StatusRecruiting),
		toNano(now),
	)
	if err != nil {
		return fmt.Errorf("failed to update member count: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		var found int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups WHERE id = ?`, member.GroupID).Scan(&found); err != nil {
			return fmt.Errorf("failed to check group: %w", err)
		}
		if found == 0 {
			return fmt.Errorf("group %s: %w", member.GroupID, storage.ErrNotFound)
		}
		return fmt.Errorf("group %s is not accepting members: %w", member.GroupID, storage.ErrConflict)
	}

	if err := insertMember(ctx, tx, member); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership and decrements the member count.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, userID string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %s: %w", userID, storage.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE groups
		SET current_member_count = MAX(current_member_count - 1, 0), updated_at = ?
		WHERE id = ?`,
		toNano(now), groupID)
	if err != nil {
		return fmt.Errorf("failed to update member count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetMember retrieves one membership.
func (s *SQLiteStore) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM group_members m LEFT JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ? AND m.user_id = ?`,
		groupID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// ListMembers returns the members of a group in join order, owner first.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID string) (models.Members, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM group_members m LEFT JOIN users u ON u.id = m.user_id
		WHERE m.group_id = ?
		ORDER BY m.is_owner DESC, m.joined_at, m.id`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members models.Members
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// SetReady marks a member ready. A member who is already ready keeps the
// original ready_at and the call reports no change.
func (s *SQLiteStore) SetReady(ctx context.Context, groupID, userID string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE group_members SET ready = 1, ready_at = ?
		WHERE group_id = ? AND user_id = ? AND ready = 0`,
		toNano(at), groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark ready: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.GetMember(ctx, groupID, userID); err != nil {
		return false, err
	}
	return false, nil
}
