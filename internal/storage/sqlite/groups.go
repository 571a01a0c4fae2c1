package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/storage"
)

const groupColumns = `id, owner_user_id, name, group_type, status, max_member, current_member_count,
	invitation_token, finalized_at, countdown_started_at, scheduled_capture_time, template_id,
	expires_at, created_at, updated_at`

func scanGroup(row scanner) (*models.Group, error) {
	g := &models.Group{}
	var kind, status string
	var finalized, countdown, capture, expires sql.NullInt64
	var created, updated int64
	err := row.Scan(
		&g.ID,
		&g.OwnerUserID,
		&g.Name,
		&kind,
		&status,
		&g.MaxMember,
		&g.CurrentMemberCount,
		&g.InvitationToken,
		&finalized,
		&countdown,
		&capture,
		&g.TemplateID,
		&expires,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	g.Kind = models.GroupKind(kind)
	g.Status = models.GroupStatus(status)
	g.FinalizedAt = fromNull(finalized)
	g.CountdownStartedAt = fromNull(countdown)
	g.ScheduledCaptureTime = fromNull(capture)
	g.ExpiresAt = fromNull(expires)
	g.CreatedAt = fromNano(created)
	g.UpdatedAt = fromNano(updated)
	return g, nil
}

// CreateGroup persists a new group and its owner membership.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group, owner *models.Member) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.InvitationToken == "" {
		group.InvitationToken = uuid.New().String()
	}
	if owner.ID == "" {
		owner.ID = uuid.New().String()
	}
	owner.GroupID = group.ID
	owner.IsOwner = true
	group.CurrentMemberCount = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID,
		group.OwnerUserID,
		group.Name,
		string(group.Kind),
		string(group.Status),
		group.MaxMember,
		group.CurrentMemberCount,
		group.InvitationToken,
		toNull(group.FinalizedAt),
		toNull(group.CountdownStartedAt),
		toNull(group.ScheduledCaptureTime),
		group.TemplateID,
		toNull(group.ExpiresAt),
		toNano(group.CreatedAt),
		toNano(group.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := insertMember(ctx, tx, owner); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ?`, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// GetGroupByInvitation retrieves the group an invitation token belongs to.
func (s *SQLiteStore) GetGroupByInvitation(ctx context.Context, token string) (*models.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE invitation_token = ?`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group for invitation: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group by invitation: %w", err)
	}
	return g, nil
}

// ListGroups returns groups newest first, optionally filtered by owner.
func (s *SQLiteStore) ListGroups(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Group, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + groupColumns + ` FROM groups`
	var args []any
	if ownerUserID != "" {
		query += ` WHERE owner_user_id = ?`
		args = append(args, ownerUserID)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.queryGroups(ctx, query, args...)
}

// ListGroupsByStatus returns every group in one of the given states.
func (s *SQLiteStore) ListGroupsByStatus(ctx context.Context, statuses ...models.GroupStatus) ([]models.Group, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	query := `SELECT ` + groupColumns + ` FROM groups WHERE status IN (?` + repeatPlaceholder(len(statuses)-1) + `) ORDER BY created_at`
	return s.queryGroups(ctx, query, args...)
}

func (s *SQLiteStore) queryGroups(ctx context.Context, query string, args ...any) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// UpdateGroup writes the mutable columns of a group. The member count is
// owned by AddMember and RemoveMember and is never written here; a capacity
// below the stored count is rejected as a conflict.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *models.Group, expect models.GroupStatus) error {
	query := `
		UPDATE groups SET
			status = ?, max_member = ?, finalized_at = ?,
			countdown_started_at = ?, scheduled_capture_time = ?, template_id = ?,
			expires_at = ?, updated_at = ?
		WHERE id = ? AND current_member_count <= ?`
	args := []any{
		string(group.Status),
		group.MaxMember,
		toNull(group.FinalizedAt),
		toNull(group.CountdownStartedAt),
		toNull(group.ScheduledCaptureTime),
		group.TemplateID,
		toNull(group.ExpiresAt),
		toNano(group.UpdatedAt),
		group.ID,
		group.MaxMember,
	}
	if expect != "" {
		query += ` AND status = ?`
		args = append(args, string(expect))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetGroup(ctx, group.ID); err != nil {
			return err
		}
		return fmt.Errorf("group %s changed concurrently: %w", group.ID, storage.ErrConflict)
	}
	return nil
}

// DeleteGroup removes a group. Members and photos cascade.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}

// repeatPlaceholder returns a string of ", ?" repeated n times.
// Used for building IN clauses with multiple placeholders.
func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(", ?", n)
}
