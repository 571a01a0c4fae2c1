package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cameratogether/internal/auth"
	"github.com/mmynk/cameratogether/internal/blob"
	"github.com/mmynk/cameratogether/internal/metrics"
	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/storage"
)

const (
	// DefaultCountdown is the delay between StartCountdown and the shutter.
	DefaultCountdown = 10 * time.Second

	defaultListLimit = 10
	maxListLimit     = 100
)

// GroupService implements the group lifecycle: creation, invitations,
// membership, finalization, readiness and the countdown.
type GroupService struct {
	store     storage.Store
	invites   *auth.InviteManager
	templates *TemplateService
	blobs     blob.Store
	metrics   *metrics.Metrics
	countdown time.Duration
	now       func() time.Time
}

// GroupOption configures a GroupService.
type GroupOption func(*GroupService)

// WithCountdown sets the capture delay.
func WithCountdown(d time.Duration) GroupOption {
	return func(s *GroupService) {
		if d > 0 {
			s.countdown = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GroupOption {
	return func(s *GroupService) { s.now = now }
}

// WithBlobs lets DeleteGroup remove stored photos and collages.
func WithBlobs(b blob.Store) GroupOption {
	return func(s *GroupService) { s.blobs = b }
}

// WithMetrics records status transitions.
func WithMetrics(m *metrics.Metrics) GroupOption {
	return func(s *GroupService) { s.metrics = m }
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, invites *auth.InviteManager, templates *TemplateService, opts ...GroupOption) *GroupService {
	s := &GroupService{
		store:     store,
		invites:   invites,
		templates: templates,
		countdown: DefaultCountdown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateGroupParams are the inputs of CreateGroup.
type CreateGroupParams struct {
	OwnerUserID string
	Name        string
	Kind        models.GroupKind
	ExpiresAt   *time.Time
}

// CreateGroup creates a recruiting group whose only member is the owner.
func (s *GroupService) CreateGroup(ctx context.Context, p CreateGroupParams) (*models.Group, error) {
	slog.Info("CreateGroup request received",
		"owner_user_id", p.OwnerUserID,
		"group_type", p.Kind,
	)

	now := s.now()
	group, err := models.NewGroup(p.OwnerUserID, strings.TrimSpace(p.Name), p.Kind, now)
	if err != nil {
		return nil, classify(err)
	}
	if p.ExpiresAt != nil {
		if !p.ExpiresAt.After(now) {
			return nil, NewError(CodeInvalidArgument, ErrInvalidExpiry)
		}
		exp := p.ExpiresAt.UTC()
		group.ExpiresAt = &exp
	}

	group.ID = uuid.New().String()
	group.InvitationToken, err = s.invites.Issue(group.ID, group.ExpiresAt)
	if err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, classify(err)
	}

	owner := &models.Member{UserID: p.OwnerUserID, IsOwner: true, JoinedAt: now}
	if err := s.store.CreateGroup(ctx, group, owner); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, classify(err)
	}

	s.metrics.Transition(string(group.Status))
	slog.Info("Group created", "group_id", group.ID)
	return group, nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, classify(err)
	}
	return group, nil
}

// GetGroupByInvitation resolves an invitation token. Forged tokens are
// rejected before any lookup.
func (s *GroupService) GetGroupByInvitation(ctx context.Context, token string) (*models.Group, error) {
	groupID, err := s.invites.Verify(token)
	if err != nil {
		return nil, classify(err)
	}
	group, err := s.store.GetGroupByInvitation(ctx, token)
	if err != nil {
		return nil, classify(err)
	}
	if group.ID != groupID {
		return nil, NewError(CodeNotFound, auth.ErrInvalidToken)
	}
	return group, nil
}

// ListGroups returns one page of groups, optionally filtered by owner.
func (s *GroupService) ListGroups(ctx context.Context, ownerUserID string, limit, offset int) ([]models.Group, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	groups, err := s.store.ListGroups(ctx, ownerUserID, limit, offset)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, classify(err)
	}
	return groups, nil
}

// JoinGroup adds userID to the group behind token. An existing member gets
// CodeAlreadyExists; a group that stopped recruiting, is full or expired
// gets CodeFailedPrecondition.
func (s *GroupService) JoinGroup(ctx context.Context, token, userID string) (*models.Group, error) {
	slog.Info("JoinGroup request received", "user_id", userID)

	if userID == "" {
		return nil, NewError(CodeInvalidArgument, ErrMissingUserID)
	}
	group, err := s.GetGroupByInvitation(ctx, token)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetMember(ctx, group.ID, userID); err == nil {
		return nil, NewError(CodeAlreadyExists, ErrAlreadyMember)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, classify(err)
	}

	now := s.now()
	if err := group.CanJoin(now); err != nil {
		return nil, classify(err)
	}

	member := &models.Member{GroupID: group.ID, UserID: userID, JoinedAt: now}
	if err := s.store.AddMember(ctx, member, now); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, NewError(CodeAlreadyExists, ErrAlreadyMember)
		}
		if errors.Is(err, storage.ErrConflict) {
			// Lost a race; report why the group stopped accepting members.
			if fresh, ferr := s.store.GetGroup(ctx, group.ID); ferr == nil {
				if reason := fresh.CanJoin(now); reason != nil {
					return nil, classify(reason)
				}
			}
		}
		slog.Error("JoinGroup failed", "group_id", group.ID, "user_id", userID, "error", err)
		return nil, classify(err)
	}

	slog.Info("Member joined", "group_id", group.ID, "user_id", userID)
	return s.GetGroup(ctx, group.ID)
}

// ListMembers returns the members of a group.
func (s *GroupService) ListMembers(ctx context.Context, groupID string) (models.Members, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, classify(err)
	}
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, classify(err)
	}
	return members, nil
}

// FinalizeGroup freezes the member list. Only the owner may finalize.
func (s *GroupService) FinalizeGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	slog.Info("FinalizeGroup request received", "group_id", groupID, "user_id", userID)

	group, err := s.ownedGroup(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if err := group.Finalize(s.now()); err != nil {
		return nil, classify(err)
	}
	if err := s.store.UpdateGroup(ctx, group, models.StatusRecruiting); err != nil {
		return nil, classify(err)
	}

	s.metrics.Transition(string(group.Status))
	slog.Info("Group finalized", "group_id", groupID, "members", group.CurrentMemberCount)
	return group, nil
}

// MarkReady sets a member's ready flag. Marking an already ready member
// again succeeds without changing anything.
func (s *GroupService) MarkReady(ctx context.Context, groupID, userID string) error {
	slog.Info("MarkReady request received", "group_id", groupID, "user_id", userID)

	if userID == "" {
		return NewError(CodeInvalidArgument, ErrMissingUserID)
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return classify(err)
	}
	member, err := s.store.GetMember(ctx, groupID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(CodeNotFound, ErrNotMember)
	}
	if err != nil {
		return classify(err)
	}
	if member.Ready {
		return nil
	}
	if group.Status != models.StatusReadyCheck {
		return classify(models.ErrGroupNotReadyCheck)
	}

	changed, err := s.store.SetReady(ctx, groupID, userID, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(CodeNotFound, ErrNotMember)
	}
	if err != nil {
		return classify(err)
	}

	if changed {
		slog.Info("Member ready", "group_id", groupID, "user_id", userID)
	}
	return nil
}

// StartCountdown schedules the synchronized capture. The owner may start
// it once every member is ready. An empty templateID picks the first
// catalogue template sized for the group.
func (s *GroupService) StartCountdown(ctx context.Context, groupID, userID, templateID string) (*models.Group, error) {
	slog.Info("StartCountdown request received", "group_id", groupID, "user_id", userID, "template_id", templateID)

	group, err := s.ownedGroup(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if group.Status != models.StatusReadyCheck || !group.Finalized() {
		return nil, classify(models.ErrGroupNotReadyCheck)
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, classify(err)
	}
	if !members.AllReady() {
		return nil, classify(fmt.Errorf("%w: %d of %d", models.ErrMembersNotReady, members.ReadyCount(), len(members)))
	}

	tpl, err := s.pickTemplate(ctx, templateID, len(members))
	if err != nil {
		return nil, err
	}

	if err := group.ScheduleCapture(s.now(), s.countdown, tpl.Key()); err != nil {
		return nil, classify(err)
	}
	if err := s.store.UpdateGroup(ctx, group, models.StatusReadyCheck); err != nil {
		return nil, classify(err)
	}

	s.metrics.Transition(string(group.Status))
	slog.Info("Countdown started",
		"group_id", groupID,
		"template_id", group.TemplateID,
		"scheduled_capture_time", group.ScheduledCaptureTime,
	)
	return group, nil
}

func (s *GroupService) pickTemplate(ctx context.Context, templateID string, photos int) (*models.Template, error) {
	if templateID == "" {
		candidates, err := s.templates.ByPhotoCount(ctx, photos)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, NewError(CodeInvalidArgument, fmt.Errorf("%w for %d photos", ErrUnknownTemplate, photos))
		}
		return &candidates[0], nil
	}

	tpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, NewError(CodeInvalidArgument, err)
	}
	if tpl.PhotoCount != photos {
		return nil, NewError(CodeInvalidArgument, fmt.Errorf("%w: %q has %d frames, group has %d members",
			ErrTemplateMismatch, templateID, tpl.PhotoCount, photos))
	}
	return tpl, nil
}

// LeaveGroup removes a non-owner member while the group is recruiting.
func (s *GroupService) LeaveGroup(ctx context.Context, groupID, userID string) error {
	slog.Info("LeaveGroup request received", "group_id", groupID, "user_id", userID)

	if userID == "" {
		return NewError(CodeInvalidArgument, ErrMissingUserID)
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return classify(err)
	}
	if group.IsOwner(userID) {
		return NewError(CodePermissionDenied, ErrOwnerCannotLeave)
	}
	if group.Status != models.StatusRecruiting {
		return classify(models.ErrGroupNotRecruiting)
	}

	if err := s.store.RemoveMember(ctx, groupID, userID, s.now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewError(CodeNotFound, ErrNotMember)
		}
		return classify(err)
	}

	slog.Info("Member left", "group_id", groupID, "user_id", userID)
	return nil
}

// DeleteGroup removes a group with its members, photos and collage.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, userID string) error {
	slog.Info("DeleteGroup request received", "group_id", groupID, "user_id", userID)

	if _, err := s.ownedGroup(ctx, groupID, userID); err != nil {
		return err
	}

	var keys []string
	if s.blobs != nil {
		photos, err := s.store.ListPhotos(ctx, groupID)
		if err != nil {
			return classify(err)
		}
		for _, p := range photos {
			keys = append(keys, p.ObjectKey)
		}
		keys = append(keys, blob.CollageKey(groupID))
	}

	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		slog.Error("DeleteGroup failed", "group_id", groupID, "error", err)
		return classify(err)
	}

	for _, key := range keys {
		if err := s.blobs.Remove(ctx, key); err != nil {
			slog.Warn("Failed to remove group object", "group_id", groupID, "key", key, "error", err)
		}
	}

	slog.Info("Group deleted", "group_id", groupID)
	return nil
}

// ownedGroup loads a group and checks that userID owns it.
func (s *GroupService) ownedGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	if userID == "" {
		return nil, NewError(CodeInvalidArgument, ErrMissingUserID)
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, classify(err)
	}
	if !group.IsOwner(userID) {
		return nil, NewError(CodePermissionDenied, ErrNotOwner)
	}
	return group, nil
}

// BeginDueCaptures moves every counting-down group whose capture time has
// passed to photo_taking. It returns how many groups moved.
func (s *GroupService) BeginDueCaptures(ctx context.Context) (int, error) {
	groups, err := s.store.ListGroupsByStatus(ctx, models.StatusCountdown)
	if err != nil {
		return 0, fmt.Errorf("failed to list countdown groups: %w", err)
	}

	now := s.now()
	moved := 0
	var errs []error
	for i := range groups {
		g := &groups[i]
		if !g.CaptureDue(now) {
			continue
		}
		if err := g.BeginPhotoTaking(now); err != nil {
			continue
		}
		if err := s.store.UpdateGroup(ctx, g, models.StatusCountdown); err != nil {
			// An upload may have moved it first.
			if !errors.Is(err, storage.ErrConflict) {
				errs = append(errs, fmt.Errorf("group %s: %w", g.ID, err))
			}
			continue
		}
		moved++
		s.metrics.Transition(string(g.Status))
		slog.Info("Photo taking started", "group_id", g.ID)
	}
	return moved, errors.Join(errs...)
}

// ExpireGroups moves every non-terminal group past its expiry to expired.
// It returns how many groups expired.
func (s *GroupService) ExpireGroups(ctx context.Context) (int, error) {
	groups, err := s.store.ListGroupsByStatus(ctx,
		models.StatusRecruiting,
		models.StatusReadyCheck,
		models.StatusCountdown,
		models.StatusPhotoTaking,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to list active groups: %w", err)
	}

	now := s.now()
	expired := 0
	var errs []error
	for i := range groups {
		g := &groups[i]
		if !g.IsExpired(now) {
			continue
		}
		from := g.Status
		if err := g.Expire(now); err != nil {
			continue
		}
		if err := s.store.UpdateGroup(ctx, g, from); err != nil {
			if !errors.Is(err, storage.ErrConflict) {
				errs = append(errs, fmt.Errorf("group %s: %w", g.ID, err))
			}
			continue
		}
		expired++
		s.metrics.Transition(string(g.Status))
		slog.Info("Group expired", "group_id", g.ID, "from", from)
	}
	return expired, errors.Join(errs...)
}
