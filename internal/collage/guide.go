package collage

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"

	"github.com/mmynk/cameratogether/internal/models"
)

// guideShade dims everything outside the frame on the viewfinder.
var guideShade = color.NRGBA{A: 0x80}

// FrameGuide renders the overlay shown on the viewfinder while a member
// shoots frame frameIndex: outside the frame is dimmed, the frame itself is
// transparent and outlined.
func FrameGuide(tpl *models.Template, frameIndex, width, height int) (*image.NRGBA, error) {
	if frameIndex < 0 || frameIndex >= len(tpl.Frames) {
		return nil, fmt.Errorf("%w: frame index %d out of range", ErrInvalidTemplate, frameIndex)
	}
	vb, err := ParseViewBox(tpl.ViewBox)
	if err != nil {
		return nil, err
	}
	shape, err := ParsePath(tpl.Frames[frameIndex].Path)
	if err != nil {
		return nil, err
	}
	shape = shape.Transform(vb, float64(width), float64(height))

	bounds := image.Rect(0, 0, width, height)
	overlay := image.NewNRGBA(bounds)
	draw.Draw(overlay, bounds, image.NewUniform(guideShade), image.Point{}, draw.Src)

	// Punch the frame out of the shade.
	inside := fillMask(shape, bounds)
	draw.DrawMask(overlay, bounds, image.Transparent, image.Point{}, inside, image.Point{}, draw.Src)

	r := vector.NewRasterizer(width, height)
	addStroke(r, shape, 3)
	r.Draw(overlay, bounds, image.NewUniform(color.White), image.Point{})
	return overlay, nil
}

// Preview renders a thumbnail of the template layout: frames filled grey
// and outlined on a white background.
func Preview(tpl *models.Template, size int) (*image.RGBA, error) {
	frames, err := Layout(tpl, size)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	fill := image.NewUniform(color.Gray{Y: 0xd0})
	stroke := image.NewUniform(color.Gray{Y: 0x60})
	for _, f := range frames {
		mask := fillMask(f.Shape, canvas.Bounds())
		draw.DrawMask(canvas, canvas.Bounds(), fill, image.Point{}, mask, image.Point{}, draw.Over)

		r := vector.NewRasterizer(size, size)
		addStroke(r, f.Shape, 1)
		r.Draw(canvas, canvas.Bounds(), stroke, image.Point{})
	}
	return canvas, nil
}
