package service

import (
	"errors"
	"fmt"

	"github.com/mmynk/cameratogether/internal/auth"
	"github.com/mmynk/cameratogether/internal/models"
	"github.com/mmynk/cameratogether/internal/storage"
)

// Code classifies a service error for the transport layer.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidArgument
	CodeNotFound
	CodeAlreadyExists
	CodePermissionDenied
	CodeFailedPrecondition
)

func (c Code) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotFound:
		return "not_found"
	case CodeAlreadyExists:
		return "already_exists"
	case CodePermissionDenied:
		return "permission_denied"
	case CodeFailedPrecondition:
		return "failed_precondition"
	default:
		return "internal"
	}
}

var (
	ErrNotOwner         = errors.New("only the group owner can do this")
	ErrNotMember        = errors.New("user is not a member of the group")
	ErrAlreadyMember    = errors.New("user is already a member of the group")
	ErrOwnerCannotLeave = errors.New("the owner cannot leave the group")
	ErrUnknownTemplate  = errors.New("unknown template")
	ErrTemplateMismatch = errors.New("template photo count does not match the member count")
	ErrInvalidFrame     = errors.New("frame index out of range")
	ErrInvalidImage     = errors.New("photo must be a JPEG or PNG image")
	ErrFrameNotOwned    = errors.New("frame is assigned to another member")
	ErrPhotoTooLarge    = errors.New("photo is too large")
	ErrMissingUserID    = errors.New("user_id is required")
	ErrInvalidExpiry    = errors.New("expires_at must be in the future")
	ErrCollageNotReady  = errors.New("collage has not been generated yet")
)

// Error carries a Code alongside the underlying error.
type Error struct {
	Code Code
	Err  error
}

// NewError wraps err with code.
func NewError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of err. Errors that were never classified are
// internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// classify maps domain and storage errors onto codes. Unknown errors are
// internal.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return NewError(CodeFailedPrecondition, fmt.Errorf("%w: %w", models.ErrGroupExpired, err))
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, auth.ErrInvalidToken):
		return NewError(CodeNotFound, err)
	case errors.Is(err, storage.ErrDuplicate):
		return NewError(CodeAlreadyExists, err)
	case errors.Is(err, models.ErrInvalidName),
		errors.Is(err, models.ErrInvalidOwner),
		errors.Is(err, models.ErrInvalidKind),
		errors.Is(err, models.ErrInvalidMaxMember),
		errors.Is(err, auth.ErrMissingToken):
		return NewError(CodeInvalidArgument, err)
	case errors.Is(err, models.ErrGroupFull),
		errors.Is(err, models.ErrGroupFinalized),
		errors.Is(err, models.ErrGroupNotRecruiting),
		errors.Is(err, models.ErrGroupNotReadyCheck),
		errors.Is(err, models.ErrGroupNotCountdown),
		errors.Is(err, models.ErrGroupNotCapturing),
		errors.Is(err, models.ErrGroupTerminal),
		errors.Is(err, models.ErrGroupExpired),
		errors.Is(err, models.ErrNoMembers),
		errors.Is(err, models.ErrMembersNotReady),
		errors.Is(err, storage.ErrConflict):
		return NewError(CodeFailedPrecondition, err)
	}
	return NewError(CodeInternal, err)
}
