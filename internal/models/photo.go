package models

import "time"

// Photo is one captured image uploaded for a frame of the group's template.
type Photo struct {
	// ID is the unique identifier for the photo (UUID format).
	ID string

	GroupID string
	UserID  string

	// FrameIndex is the zero-based frame slot this photo fills.
	FrameIndex int

	// ObjectKey locates the bytes in the blob store.
	ObjectKey   string
	ContentType string
	Size        int64

	UploadedAt time.Time
}
