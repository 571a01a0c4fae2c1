// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/cameratogether/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique row already exists, e.g. a
	// second membership for the same user.
	ErrDuplicate = errors.New("already exists")

	// ErrConflict is returned when a guarded update lost a race: the row
	// changed between the caller's read and its write.
	ErrConflict = errors.New("concurrent update")
)

// Store defines the interface for group session storage.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateGroup persists a new group together with its owner membership.
	// IDs are generated when empty.
	CreateGroup(ctx context.Context, group *models.Group, owner *models.Member) error

	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	GetGroupByInvitation(ctx context.Context, token string) (*models.Group, error)

	// ListGroups returns groups newest first. An empty ownerUserID lists
	// every group.
	ListGroups(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Group, error)

	// ListGroupsByStatus returns every group in one of the given states.
	ListGroupsByStatus(ctx context.Context, statuses ...models.GroupStatus) ([]models.Group, error)

	// UpdateGroup writes the mutable group columns except the member count.
	// When expect is non-empty the write only happens while the stored
	// status still equals expect. A lost race returns ErrConflict, as does a
	// MaxMember below the stored member count.
	UpdateGroup(ctx context.Context, group *models.Group, expect models.GroupStatus) error

	DeleteGroup(ctx context.Context, groupID string) error

	// AddMember inserts a membership and bumps current_member_count in one
	// transaction. It fails with ErrDuplicate for an existing member and
	// with ErrConflict when the group stopped accepting members.
	AddMember(ctx context.Context, member *models.Member, now time.Time) error

	// RemoveMember deletes a membership and decrements the count.
	RemoveMember(ctx context.Context, groupID, userID string, now time.Time) error

	GetMember(ctx context.Context, groupID, userID string) (*models.Member, error)
	ListMembers(ctx context.Context, groupID string) (models.Members, error)

	// SetReady flips the member's ready flag. It reports whether the flag
	// changed.
	SetReady(ctx context.Context, groupID, userID string, at time.Time) (bool, error)

	// SavePhoto stores the photo for a frame, replacing an earlier upload
	// of the same frame. It returns the replaced photo, if any.
	SavePhoto(ctx context.Context, photo *models.Photo) (*models.Photo, error)
	ListPhotos(ctx context.Context, groupID string) ([]models.Photo, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}
