package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/cameratogether/internal/models"
)

const photoColumns = `id, group_id, user_id, frame_index, object_key, content_type, size, uploaded_at`

func scanPhoto(row scanner) (*models.Photo, error) {
	p := &models.Photo{}
	var uploaded int64
	if err := row.Scan(
		&p.ID,
		&p.GroupID,
		&p.UserID,
		&p.FrameIndex,
		&p.ObjectKey,
		&p.ContentType,
		&p.Size,
		&uploaded,
	); err != nil {
		return nil, err
	}
	p.UploadedAt = fromNano(uploaded)
	return p, nil
}

// SavePhoto stores a photo for its frame. An earlier photo of the same
// frame is removed and returned so the caller can drop its blob.
func (s *SQLiteStore) SavePhoto(ctx context.Context, photo *models.Photo) (*models.Photo, error) {
	if photo.ID == "" {
		photo.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	replaced, err := scanPhoto(tx.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE group_id = ? AND frame_index = ?`,
		photo.GroupID, photo.FrameIndex))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		replaced = nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up frame photo: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, replaced.ID); err != nil {
			return nil, fmt.Errorf("failed to replace photo: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO photos (`+photoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		photo.ID,
		photo.GroupID,
		photo.UserID,
		photo.FrameIndex,
		photo.ObjectKey,
		photo.ContentType,
		photo.Size,
		toNano(photo.UploadedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert photo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return replaced, nil
}

// ListPhotos returns the photos of a group ordered by frame.
func (s *SQLiteStore) ListPhotos(ctx context.Context, groupID string) ([]models.Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE group_id = ? ORDER BY frame_index`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}
	return photos, nil
}
