// Package session coordinates one collage group on one device: membership,
// finalization, readiness, the synchronized countdown and reconciliation
// against the Group API.
package session

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/cameratogether/internal/collage"
	"github.com/mmynk/cameratogether/internal/groupapi"
	"github.com/mmynk/cameratogether/internal/models"
)

// DefaultPollInterval is the period of the member poll.
const DefaultPollInterval = 3 * time.Second

// Options tune a Coordinator. Zero values take the defaults.
type Options struct {
	// CountdownDelay is how far ahead a locally scheduled capture is set.
	CountdownDelay time.Duration

	PollInterval time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// OnChange is called after every snapshot replacement, outside any
	// lock. A nil snapshot means the group was left or deleted.
	OnChange func(*Snapshot)
}

// Snapshot is one self-consistent view of the current group.
type Snapshot struct {
	Group   models.Group
	Members models.Members
}

// AllReady reports whether every member is ready.
func (s *Snapshot) AllReady() bool {
	return s.Members.AllReady()
}

func (s *Snapshot) clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{Group: s.Group, Members: s.Members.Clone()}
}

// Coordinator owns the in-memory state of a single group for the current
// device. User actions are serialized; the poll may race with them and the
// last complete snapshot wins.
type Coordinator struct {
	api    groupapi.GroupAPI
	users  groupapi.UserAPI
	logger *slog.Logger
	opts   Options

	busy atomic.Bool

	mu       sync.RWMutex
	snap     *Snapshot
	captured map[int]image.Image
	names    map[string]string
}

// New returns a coordinator. users may be nil, in which case members
// without a name get a fallback derived from their id.
func New(api groupapi.GroupAPI, users groupapi.UserAPI, logger *slog.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CountdownDelay <= 0 {
		opts.CountdownDelay = DefaultLocalCountdown
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		api:      api,
		users:    users,
		logger:   logger,
		opts:     opts,
		captured: make(map[int]image.Image),
		names:    make(map[string]string),
	}
}

// Current returns a copy of the current snapshot, or nil.
func (c *Coordinator) Current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.clone()
}

// Busy reports whether a user action is in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

func (c *Coordinator) begin() (func(), error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { c.busy.Store(false) }, nil
}

func (c *Coordinator) set(s *Snapshot) {
	c.mu.Lock()
	c.snap = s
	if s == nil {
		c.captured = make(map[int]image.Image)
	}
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(s.clone())
	}
}

// active returns a private copy of the snapshot for groupID.
func (c *Coordinator) active(groupID string) (*Snapshot, error) {
	s := c.Current()
	if s == nil || s.Group.ID != groupID {
		return nil, fmt.Errorf("%w: %s", ErrNoGroup, groupID)
	}
	return s, nil
}

// CreateGroup creates a group remotely and seeds the local state with the
// owner as its only member.
func (c *Coordinator) CreateGroup(ctx context.Context, ownerID, name string, kind models.GroupKind) (*Snapshot, error) {
	end, err := c.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Err: errRequired}
	}
	if ownerID == "" {
		return nil, &ValidationError{Field: "owner", Err: errRequired}
	}
	if _, err := models.NewGroup(ownerID, name, kind, c.opts.Now()); err != nil {
		return nil, &ValidationError{Field: "group", Err: err}
	}

	g, err := c.api.CreateGroup(ctx, groupapi.CreateGroupInput{OwnerUserID: ownerID, Name: name, Kind: kind})
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	now := c.opts.Now()
	owner := models.Member{
		ID:       uuid.New().String(),
		GroupID:  g.ID,
		UserID:   ownerID,
		IsOwner:  true,
		JoinedAt: now,
	}
	if g.CurrentMemberCount == 0 {
		g.CurrentMemberCount = 1
	}
	s := &Snapshot{Group: *g, Members: c.resolveNames(ctx, models.Members{owner})}
	c.set(s)

	c.logger.Info("Group created", "group_id", g.ID, "user_id", ownerID, "kind", g.Kind)
	return s.clone(), nil
}

// JoinGroup joins the group behind token. If the server answers 409 the
// user is already a member; the coordinator then loads the group through
// the invitation token and ends up in the same state as a fresh join.
func (c *Coordinator) JoinGroup(ctx context.Context, token, userID string) (*Snapshot, error) {
	end, err := c.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &ValidationError{Field: "invitation token", Err: errRequired}
	}
	if userID == "" {
		return nil, &ValidationError{Field: "user", Err: errRequired}
	}

	g, err := c.api.JoinGroup(ctx, token, userID)
	if groupapi.IsConflict(err) {
		c.logger.Info("Already a member, reloading group", "user_id", userID)
		g, err = c.api.GetGroupByInvitation(ctx, token)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to join group: %w", err)
	}

	members, err := c.api.ListMembers(ctx, g.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	s := &Snapshot{Group: *g, Members: c.resolveNames(ctx, members)}
	c.set(s)

	c.logger.Info("Joined group", "group_id", g.ID, "user_id", userID, "members", len(members))
	return s.clone(), nil
}

// AddLocalMember adds a participant to a single-device group.
func (c *Coordinator) AddLocalMember(userID, displayName string) error {
	end, err := c.begin()
	if err != nil {
		return err
	}
	defer end()

	if userID == "" {
		return &ValidationError{Field: "user", Err: errRequired}
	}
	s := c.Current()
	if s == nil {
		return ErrNoGroup
	}
	if !s.Group.Kind.IsLocal() {
		return ErrNotLocal
	}
	if s.Members.Contains(userID) {
		return ErrAlreadyMember
	}

	now := c.opts.Now()
	if err := s.Group.AddMember(now); err != nil {
		return invalidTransition(err)
	}
	if displayName == "" {
		displayName = models.FallbackName(userID)
	}
	s.Members = append(s.Members, models.Member{
		ID:          uuid.New().String(),
		GroupID:     s.Group.ID,
		UserID:      userID,
		DisplayName: displayName,
		JoinedAt:    now,
	})
	c.set(s)

	c.logger.Info("Local member added", "group_id", s.Group.ID, "user_id", userID, "members", len(s.Members))
	return nil
}

// FinalizeMembers freezes membership. Only the owner can finalize, and only
// while recruiting.
func (c *Coordinator) FinalizeMembers(ctx context.Context, groupID, ownerID string) error {
	end, err := c.begin()
	if err != nil {
		return err
	}
	defer end()

	s, err := c.active(groupID)
	if err != nil {
		return err
	}
	if !s.Group.IsOwner(ownerID) {
		return ErrNotOwner
	}
	if err := s.Group.Finalize(c.opts.Now()); err != nil {
		return invalidTransition(err)
	}

	if !s.Group.Kind.IsLocal() {
		g, err := c.api.FinalizeGroup(ctx, groupID, ownerID)
		if err != nil {
			return fmt.Errorf("failed to finalize group: %w", err)
		}
		s.Group = *g
	}
	c.set(s)

	c.logger.Info("Members finalized", "group_id", groupID, "members", len(s.Members))
	return nil
}

// MarkReady sets userID's ready flag. Marking an already ready member is a
// no-op. In a local group the countdown starts by itself once everyone is
// ready; networked groups wait for the owner's StartCountdown.
func (c *Coordinator) MarkReady(ctx context.Context, groupID, userID string) error {
	end, err := c.begin()
	if err != nil {
		return err
	}
	defer end()

	s, err := c.active(groupID)
	if err != nil {
		return err
	}
	m := s.Members.Find(userID)
	if m == nil {
		return ErrNotMember
	}
	if m.Ready {
		return nil
	}
	if s.Group.Status != models.StatusReadyCheck {
		return invalidTransition(models.ErrGroupNotReadyCheck)
	}

	if !s.Group.Kind.IsLocal() {
		if err := c.api.MarkReady(ctx, groupID, userID); err != nil {
			return fmt.Errorf("failed to mark ready: %w", err)
		}
	}
	now := c.opts.Now()
	m.MarkReady(now)

	if s.Group.Kind.IsLocal() && s.AllReady() {
		if err := s.Group.ScheduleCapture(now, c.opts.CountdownDelay, s.Group.TemplateID); err != nil {
			return invalidTransition(err)
		}
		c.logger.Info("Everyone ready, countdown started", "group_id", groupID)
	}
	c.set(s)

	c.logger.Info("Member ready", "group_id", groupID, "user_id", userID, "ready", s.Members.ReadyCount(), "members", len(s.Members))
	return nil
}

// StartCountdown asks for a synchronized capture. The server assigns the
// capture time and propagates templateID to every member; a local group
// schedules it on this device.
func (c *Coordinator) StartCountdown(ctx context.Context, groupID, ownerID, templateID string) error {
	end, err := c.begin()
	if err != nil {
		return err
	}
	defer end()

	s, err := c.active(groupID)
	if err != nil {
		return err
	}
	if !s.Group.IsOwner(ownerID) {
		return ErrNotOwner
	}
	if !s.Group.Finalized() {
		return invalidTransition(models.ErrGroupNotReadyCheck)
	}
	if !s.AllReady() {
		return ErrNotAllReady
	}
	if err := s.Group.ScheduleCapture(c.opts.Now(), c.opts.CountdownDelay, templateID); err != nil {
		return invalidTransition(err)
	}

	if !s.Group.Kind.IsLocal() {
		g, err := c.api.StartCountdown(ctx, groupID, ownerID, templateID)
		if err != nil {
			return fmt.Errorf("failed to start countdown: %w", err)
		}
		s.Group = *g
	}
	c.set(s)

	c.logger.Info("Countdown started",
		"group_id", groupID,
		"template_id", s.Group.TemplateID,
		"capture_at", s.Group.ScheduledCaptureTime,
	)
	return nil
}

// RefreshMembers replaces the snapshot with a freshly fetched group and
// member list. On failure the current state is kept, except for a 404,
// which means the group is gone and clears it.
func (c *Coordinator) RefreshMembers(ctx context.Context, groupID string) error {
	s, err := c.active(groupID)
	if err != nil {
		return err
	}
	if s.Group.Kind.IsLocal() {
		return nil
	}

	g, err := c.api.GetGroup(ctx, groupID)
	if groupapi.IsNotFound(err) {
		c.clearIf(groupID)
		return fmt.Errorf("group %s no longer exists: %w", groupID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to refresh group: %w", err)
	}
	members, err := c.api.ListMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to refresh members: %w", err)
	}
	members = c.resolveNames(ctx, members)

	c.mu.Lock()
	if c.snap == nil || c.snap.Group.ID != groupID {
		// Left or switched groups while the fetch was in flight.
		c.mu.Unlock()
		return nil
	}
	next := &Snapshot{Group: *g, Members: members}
	c.snap = next
	c.mu.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(next.clone())
	}
	return nil
}

func (c *Coordinator) clearIf(groupID string) {
	c.mu.Lock()
	match := c.snap != nil && c.snap.Group.ID == groupID
	c.mu.Unlock()
	if match {
		c.set(nil)
	}
}

// LeaveGroup removes userID from the group and clears the local state.
func (c *Coordinator) LeaveGroup(ctx context.Context, groupID, userID string) error {
	end, err := c.begin()
	if err != nil {
		return err
	}
	defer end()

	s, err := c.active(groupID)
	if err != nil {
		return err
	}
	if !s.Members.Contains(userID) {
		return ErrNotMember
	}
	if !s.Group.Kind.IsLocal() {
		if err := c.api.LeaveGroup(ctx, groupID, userID); err != nil {
			return fmt.Errorf("failed to leave group: %w", err)
		}
	}
	c.set(nil)

	c.logger.Info("Left group", "group_id", groupID, "user_id", userID)
	return nil
}

// DeleteGroup deletes the group. Only the owner may delete.
func (c *Coordinator) DeleteGroup(ctx context.Context, groupID, ownerID string) error {
	end, err := c.begin()
	if err != nil {
		return err
	}
	defer end()

	s, err := c.active(groupID)
	if err != nil {
		return err
	}
	if !s.Group.IsOwner(ownerID) {
		return ErrNotOwner
	}
	// Local groups are registered remotely at creation, so they are
	// deleted remotely too.
	if err := c.api.DeleteGroup(ctx, groupID, ownerID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	c.set(nil)

	c.logger.Info("Group deleted", "group_id", groupID)
	return nil
}

// ListGroups lists the groups owned by ownerID.
func (c *Coordinator) ListGroups(ctx context.Context, ownerID string, limit, offset int) ([]models.Group, error) {
	groups, err := c.api.ListGroups(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// UploadPhoto keeps img as the capture for frameIndex and, for networked
// groups, uploads it as JPEG. A group still counting down moves to
// photo_taking.
func (c *Coordinator) UploadPhoto(ctx context.Context, groupID, userID string, frameIndex int, img image.Image) (*models.Photo, error) {
	end, err := c.begin()
	if err != nil {
		return nil, err
	}
	defer end()

	if img == nil {
		return nil, &ValidationError{Field: "photo", Err: errRequired}
	}
	if frameIndex < 0 {
		return nil, &ValidationError{Field: "frame index", Err: fmt.Errorf("%d is negative", frameIndex)}
	}
	s, err := c.active(groupID)
	if err != nil {
		return nil, err
	}
	if !s.Members.Contains(userID) {
		return nil, ErrNotMember
	}
	if s.Group.Status != models.StatusCountdown && s.Group.Status != models.StatusPhotoTaking {
		return nil, invalidTransition(models.ErrGroupNotCapturing)
	}

	now := c.opts.Now()
	photo := &models.Photo{
		ID:          uuid.New().String(),
		GroupID:     groupID,
		UserID:      userID,
		FrameIndex:  frameIndex,
		ContentType: collage.FormatJPEG.ContentType(),
		UploadedAt:  now,
	}
	if !s.Group.Kind.IsLocal() {
		var buf bytes.Buffer
		if err := collage.Encode(&buf, img, collage.FormatJPEG); err != nil {
			return nil, fmt.Errorf("failed to encode photo: %w", err)
		}
		photo, err = c.api.UploadPhoto(ctx, groupapi.UploadPhotoInput{
			GroupID:     groupID,
			UserID:      userID,
			FrameIndex:  frameIndex,
			ContentType: collage.FormatJPEG.ContentType(),
			Data:        buf.Bytes(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload photo: %w", err)
		}
	}

	if s.Group.Status == models.StatusCountdown {
		if err := s.Group.BeginPhotoTaking(now); err != nil {
			return nil, invalidTransition(err)
		}
	}
	c.mu.Lock()
	c.captured[frameIndex] = img
	c.mu.Unlock()
	c.set(s)

	c.logger.Info("Photo captured", "group_id", groupID, "user_id", userID, "frame_index", frameIndex)
	return photo, nil
}

// BeginPhotoTaking is fired by the countdown when the capture instant is
// reached.
func (c *Coordinator) BeginPhotoTaking() error {
	s := c.Current()
	if s == nil {
		return ErrNoGroup
	}
	if s.Group.Status == models.StatusPhotoTaking {
		return nil
	}
	if err := s.Group.BeginPhotoTaking(c.opts.Now()); err != nil {
		return invalidTransition(err)
	}
	c.set(s)
	return nil
}

// CompleteSession marks the session finished. Only the owner may do this.
func (c *Coordinator) CompleteSession(ownerID string) error {
	end, err := c.begin()
	if err != nil {
		return err
	}
	defer end()

	s := c.Current()
	if s == nil {
		return ErrNoGroup
	}
	if !s.Group.IsOwner(ownerID) {
		return ErrNotOwner
	}
	if err := s.Group.Complete(c.opts.Now()); err != nil {
		return invalidTransition(err)
	}
	c.set(s)

	c.logger.Info("Session completed", "group_id", s.Group.ID)
	return nil
}

// Countdown returns a countdown to the current group's capture time, or a
// local fallback when none is scheduled.
func (c *Coordinator) Countdown() (*Countdown, error) {
	s := c.Current()
	if s == nil {
		return nil, ErrNoGroup
	}
	return NewCountdown(s.Group.ScheduledCaptureTime, c.opts.Now, c.opts.CountdownDelay), nil
}

// Compose renders the captured images into tpl. Frames without a capture
// make it fail with collage.ErrInsufficientImages.
func (c *Coordinator) Compose(tpl *models.Template, comp *collage.Compositor) (*image.RGBA, error) {
	if tpl == nil {
		return nil, collage.ErrInvalidTemplate
	}
	c.mu.RLock()
	images := make([]image.Image, tpl.PhotoCount)
	for i := range images {
		images[i] = c.captured[i]
	}
	c.mu.RUnlock()

	var have []image.Image
	for _, img := range images {
		if img == nil {
			break
		}
		have = append(have, img)
	}
	return comp.Compose(tpl, have)
}

// Reset drops the current group and every captured image without talking
// to the server.
func (c *Coordinator) Reset() {
	c.set(nil)
}

// resolveNames fills empty display names from the user API, falling back
// to a name derived from the user id.
func (c *Coordinator) resolveNames(ctx context.Context, members models.Members) models.Members {
	out := members.Clone()
	for i := range out {
		m := &out[i]
		if m.DisplayName != "" {
			continue
		}
		c.mu.RLock()
		name, ok := c.names[m.UserID]
		c.mu.RUnlock()
		if !ok {
			var cache bool
			name, cache = c.lookupName(ctx, m.UserID)
			if cache {
				c.mu.Lock()
				c.names[m.UserID] = name
				c.mu.Unlock()
			}
		}
		m.DisplayName = name
	}
	return out
}

// lookupName reports whether the result is final. Lookups that failed are
// retried on the next refresh.
func (c *Coordinator) lookupName(ctx context.Context, userID string) (string, bool) {
	if c.users == nil {
		return models.FallbackName(userID), true
	}
	u, err := c.users.GetUser(ctx, userID)
	if err != nil {
		c.logger.Debug("Failed to resolve member name", "user_id", userID, "error", err)
		return models.FallbackName(userID), false
	}
	if u.DisplayName == "" {
		return models.FallbackName(userID), true
	}
	return u.DisplayName, true
}
