package models

import "fmt"

// Template is a collage layout. Its frames are SVG path strings authored in
// the coordinate space given by ViewBox ("minX minY width height").
type Template struct {
	// ID identifies the template. The catalogue keys templates by name, so
	// ID defaults to Name.
	ID string

	Name       string
	PhotoCount int
	ViewBox    string
	Frames     []Frame
}

// Frame is one photo slot of a template.
type Frame struct {
	ID   int
	Path string
}

// Key returns the identifier used to look the template up.
func (t *Template) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name
}

// Validate checks the frame count against the photo count.
func (t *Template) Validate() error {
	if t.PhotoCount <= 0 || len(t.Frames) != t.PhotoCount {
		return fmt.Errorf("%w: %d frames, photo count %d", ErrTemplateFrameCount, len(t.Frames), t.PhotoCount)
	}
	return nil
}
