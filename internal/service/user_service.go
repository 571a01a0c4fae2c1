package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/storage"
)

const maxDisplayNameRunes = 50

// UserService registers users and resolves their display names.
type UserService struct {
	store storage.Store
	now   func() time.Time
}

// NewUserService creates a new UserService with the given storage backend.
func NewUserService(store storage.Store) *UserService {
	return &UserService{store: store, now: time.Now}
}

// CreateUser registers a user with a display name.
func (s *UserService) CreateUser(ctx context.Context, displayName string) (*models.User, error) {
	name := strings.TrimSpace(displayName)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameRunes {
		return nil, NewError(CodeInvalidArgument, fmt.Errorf("name must be 1 to %d characters", maxDisplayNameRunes))
	}

	user := &models.User{DisplayName: name, CreatedAt: s.now().Unix()}
	if err := s.store.CreateUser(ctx, user); err != nil {
		slog.Error("CreateUser failed", "error", err)
		return nil, classify(err)
	}

	slog.Info("User created", "user_id", user.ID)
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return user, nil
}
