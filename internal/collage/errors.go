package collage

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTemplate is returned for a malformed view box, a frame count
	// that does not match the photo count, or an unusable frame path.
	ErrInvalidTemplate = errors.New("invalid collage template")

	// ErrInsufficientImages is returned when fewer images than frames are
	// supplied.
	ErrInsufficientImages = errors.New("not enough images for template")

	// ErrInvalidPath is returned by ParsePath. It wraps ErrInvalidTemplate.
	ErrInvalidPath = fmt.Errorf("%w: malformed frame path", ErrInvalidTemplate)
)
