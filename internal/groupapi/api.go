// Package groupapi is the HTTP/JSON client of the CameraTogether Group API,
// plus the wire types shared with the server.
package groupapi

import (
	"context"
	"time"

	"github.com/mmynk/cameratogether/internal/models"
)

// GroupAPI is every group, member and photo operation the coordinator needs.
type GroupAPI interface {
	CreateGroup(ctx context.Context, in CreateGroupInput) (*models.Group, error)
	ListGroups(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Group, error)
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	GetGroupByInvitation(ctx context.Context, token string) (*models.Group, error)
	JoinGroup(ctx context.Context, token, userID string) (*models.Group, error)
	ListMembers(ctx context.Context, groupID string) (models.Members, error)
	FinalizeGroup(ctx context.Context, groupID, userID string) (*models.Group, error)
	StartCountdown(ctx context.Context, groupID, userID, templateID string) (*models.Group, error)
	MarkReady(ctx context.Context, groupID, userID string) error
	LeaveGroup(ctx context.Context, groupID, userID string) error
	DeleteGroup(ctx context.Context, groupID, userID string) error
	UploadPhoto(ctx context.Context, in UploadPhotoInput) (*models.Photo, error)
	ListPhotos(ctx context.Context, groupID string) ([]models.Photo, error)
}

// TemplateAPI reads the template catalogue.
type TemplateAPI interface {
	ListTemplates(ctx context.Context) ([]models.Template, error)
	TemplatesByPhotoCount(ctx context.Context, photoCount int) ([]models.Template, error)
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
}

// UserAPI registers and resolves users.
type UserAPI interface {
	CreateUser(ctx context.Context, displayName string) (*models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

// CreateGroupInput holds the fields of a new group.
type CreateGroupInput struct {
	OwnerUserID string
	Name        string
	Kind        models.GroupKind
	ExpiresAt   *time.Time
}

// UploadPhotoInput is one encoded photo for a frame.
type UploadPhotoInput struct {
	GroupID     string
	UserID      string
	FrameIndex  int
	ContentType string
	Data        []byte
}

var (
	_ GroupAPI    = (*Client)(nil)
	_ TemplateAPI = (*Client)(nil)
	_ UserAPI     = (*Client)(nil)
)
