package models

import "errors"

// Validation errors.
var (
	ErrInvalidName      = errors.New("group name must be 1 to 15 characters")
	ErrInvalidOwner     = errors.New("owner user id required")
	ErrInvalidKind      = errors.New("unknown group kind")
	ErrInvalidStatus    = errors.New("unknown group status")
	ErrInvalidMaxMember = errors.New("max member must be between 1 and 100")
)

// State machine errors.
var (
	ErrGroupFull          = errors.New("group is full")
	ErrGroupFinalized     = errors.New("group members are finalized")
	ErrGroupNotRecruiting = errors.New("group is not recruiting")
	ErrGroupNotReadyCheck = errors.New("group is not waiting for ready check")
	ErrGroupNotCountdown  = errors.New("group is not counting down")
	ErrGroupNotCapturing  = errors.New("group is not taking photos")
	ErrGroupTerminal      = errors.New("group session has ended")
	ErrGroupExpired       = errors.New("group has expired")
	ErrNoMembers          = errors.New("group has no members")
	ErrMembersNotReady    = errors.New("not every member is ready")
)

// Template errors.
var (
	ErrTemplateFrameCount = errors.New("template frame count does not match photo count")
)
