package models

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// DefaultMaxMember is the capacity given to newly created groups.
	DefaultMaxMember = 10

	// SystemMaxMember is the hard ceiling for any group.
	SystemMaxMember = 100

	maxNameRunes = 15
)

// GroupKind describes how a group is shared.
type GroupKind string

const (
	// KindLocalTemporary is a single-device session: every participant
	// shoots from the same phone, nothing is coordinated over the network.
	KindLocalTemporary GroupKind = "local_temporary"
	// KindGlobalTemporary is a networked one-off session.
	KindGlobalTemporary GroupKind = "global_temporary"
	// KindPermanent is a networked group kept across sessions.
	KindPermanent GroupKind = "permanent"
)

// ParseGroupKind maps a wire string onto a GroupKind.
func ParseGroupKind(s string) (GroupKind, error) {
	switch k := GroupKind(s); k {
	case KindLocalTemporary, KindGlobalTemporary, KindPermanent:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// IsLocal reports whether the group lives on a single device.
func (k GroupKind) IsLocal() bool {
	return k == KindLocalTemporary
}

// GroupStatus is the workflow position of a group.
type GroupStatus string

const (
	StatusRecruiting  GroupStatus = "recruiting"
	StatusReadyCheck  GroupStatus = "ready_check"
	StatusCountdown   GroupStatus = "countdown"
	StatusPhotoTaking GroupStatus = "photo_taking"
	StatusCompleted   GroupStatus = "completed"
	StatusExpired     GroupStatus = "expired"
)

// ParseGroupStatus maps a wire string onto a GroupStatus.
func ParseGroupStatus(s string) (GroupStatus, error) {
	switch st := GroupStatus(s); st {
	case StatusRecruiting, StatusReadyCheck, StatusCountdown,
		StatusPhotoTaking, StatusCompleted, StatusExpired:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Terminal reports whether no further transition is possible.
func (s GroupStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// CanTransitionTo reports whether next directly follows s.
func (s GroupStatus) CanTransitionTo(next GroupStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusExpired {
		return true
	}
	switch s {
	case StatusRecruiting:
		return next == StatusReadyCheck
	case StatusReadyCheck:
		return next == StatusCountdown
	case StatusCountdown:
		return next == StatusPhotoTaking
	case StatusPhotoTaking:
		return next == StatusCompleted
	}
	return false
}

// Group represents a collage session.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// OwnerUserID is the user who created the group. Only the owner may
	// finalize, start the countdown or delete the group.
	OwnerUserID string

	// Name is the display name (1 to 15 characters).
	Name string

	Kind   GroupKind
	Status GroupStatus

	// MaxMember is the capacity. Finalizing freezes it to the member count.
	MaxMember int

	CurrentMemberCount int

	// InvitationToken is the opaque string that lets another user join.
	InvitationToken string

	FinalizedAt        *time.Time
	CountdownStartedAt *time.Time

	// ScheduledCaptureTime is the server-assigned instant every device
	// fires its shutter at.
	ScheduledCaptureTime *time.Time

	// TemplateID is the selected collage template, empty until the
	// countdown starts.
	TemplateID string

	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewGroup validates the inputs and returns a recruiting group with no
// members. The caller assigns ID and InvitationToken.
func NewGroup(ownerUserID, name string, kind GroupKind, now time.Time) (*Group, error) {
	if ownerUserID == "" {
		return nil, ErrInvalidOwner
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := ParseGroupKind(string(kind)); err != nil {
		return nil, err
	}
	return &Group{
		OwnerUserID: ownerUserID,
		Name:        name,
		Kind:        kind,
		Status:      StatusRecruiting,
		MaxMember:   DefaultMaxMember,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ValidateName checks the display name length in runes.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > maxNameRunes {
		return ErrInvalidName
	}
	return nil
}

// Finalized reports whether membership has been frozen.
func (g *Group) Finalized() bool {
	return g.FinalizedAt != nil
}

// IsOwner reports whether userID owns the group.
func (g *Group) IsOwner(userID string) bool {
	return userID != "" && g.OwnerUserID == userID
}

// IsFull reports whether capacity is reached.
func (g *Group) IsFull() bool {
	return g.CurrentMemberCount >= g.MaxMember
}

// IsExpired reports whether the expiry instant has passed.
func (g *Group) IsExpired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}

// CanJoin returns the reason a new member cannot join, or nil.
func (g *Group) CanJoin(now time.Time) error {
	switch {
	case g.Status == StatusExpired || g.IsExpired(now):
		return ErrGroupExpired
	case g.Finalized():
		return ErrGroupFinalized
	case g.Status != StatusRecruiting:
		return ErrGroupNotRecruiting
	case g.IsFull():
		return ErrGroupFull
	}
	return nil
}

// AddMember counts one more member, enforcing the join rules.
func (g *Group) AddMember(now time.Time) error {
	if err := g.CanJoin(now); err != nil {
		return err
	}
	g.CurrentMemberCount++
	g.UpdatedAt = now
	return nil
}

// RemoveMember counts one member less. Leaving is only possible while
// recruiting.
func (g *Group) RemoveMember(now time.Time) error {
	if g.Status != StatusRecruiting {
		return ErrGroupNotRecruiting
	}
	if g.CurrentMemberCount <= 0 {
		return ErrNoMembers
	}
	g.CurrentMemberCount--
	g.UpdatedAt = now
	return nil
}

// Finalize freezes membership and moves the group to ready_check.
func (g *Group) Finalize(now time.Time) error {
	if g.Status != StatusRecruiting || g.Finalized() {
		return ErrGroupNotRecruiting
	}
	if g.CurrentMemberCount == 0 {
		return ErrNoMembers
	}
	g.Status = StatusReadyCheck
	g.MaxMember = g.CurrentMemberCount
	g.FinalizedAt = &now
	g.UpdatedAt = now
	return nil
}

// ScheduleCapture starts the countdown: the shutter fires delay after now.
// The caller is responsible for checking that every member is ready.
func (g *Group) ScheduleCapture(now time.Time, delay time.Duration, templateID string) error {
	if g.Status != StatusReadyCheck || !g.Finalized() {
		return ErrGroupNotReadyCheck
	}
	at := now.Add(delay)
	g.Status = StatusCountdown
	g.CountdownStartedAt = &now
	g.ScheduledCaptureTime = &at
	g.TemplateID = templateID
	g.UpdatedAt = now
	return nil
}

// CaptureDue reports whether the scheduled capture instant has been reached.
func (g *Group) CaptureDue(now time.Time) bool {
	return g.ScheduledCaptureTime != nil && !now.Before(*g.ScheduledCaptureTime)
}

// BeginPhotoTaking moves a counting-down group to photo_taking.
func (g *Group) BeginPhotoTaking(now time.Time) error {
	if g.Status != StatusCountdown {
		return ErrGroupNotCountdown
	}
	g.Status = StatusPhotoTaking
	g.UpdatedAt = now
	return nil
}

// Complete marks the session finished.
func (g *Group) Complete(now time.Time) error {
	if g.Status != StatusPhotoTaking {
		return ErrGroupNotCapturing
	}
	g.Status = StatusCompleted
	g.UpdatedAt = now
	return nil
}

// Expire ends a non-terminal session.
func (g *Group) Expire(now time.Time) error {
	if g.Status.Terminal() {
		return ErrGroupTerminal
	}
	g.Status = StatusExpired
	g.UpdatedAt = now
	return nil
}
