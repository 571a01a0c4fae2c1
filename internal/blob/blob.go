// Package blob stores uploaded photos and generated collages.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("object not found")

// Store is a flat key/value object store.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	// Get returns the object bytes and their content type.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Remove deletes an object. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// PhotoKey is the object key of an uploaded frame photo. The photo id keeps
// a replacement upload from overwriting the object it replaces.
func PhotoKey(groupID string, frameIndex int, photoID, ext string) string {
	return path.Join("groups", groupID, "photos", fmt.Sprintf("%02d-%s%s", frameIndex, photoID, ext))
}

// CollageKey is the object key of a group's generated collage.
func CollageKey(groupID string) string {
	return path.Join("groups", groupID, "collage.jpg")
}
