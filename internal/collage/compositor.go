// Package collage turns a frame template and one image per frame into a
// single composite image.
package collage

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/mmynk/cameratogether/internal/models"
)

const (
	// DefaultSize is the edge length of the square output canvas.
	DefaultSize = 1080

	// DefaultStrokeWidth is the frame separator width in canvas pixels.
	DefaultStrokeWidth = 2.0
)

// Compositor renders collages onto a square canvas.
type Compositor struct {
	// Size is the canvas edge length in pixels.
	Size int

	Background color.Color

	// StrokeColor and StrokeWidth draw a thin line along every frame
	// boundary. A zero width disables the stroke.
	StrokeColor color.Color
	StrokeWidth float64

	// Scaler resamples source images. Defaults to Catmull-Rom.
	Scaler draw.Scaler
}

// New returns a compositor with a white background and a thin white frame
// separator.
func New(size int) *Compositor {
	if size <= 0 {
		size = DefaultSize
	}
	return &Compositor{
		Size:        size,
		Background:  color.White,
		StrokeColor: color.White,
		StrokeWidth: DefaultStrokeWidth,
	}
}

// FrameGeometry is one frame resolved to canvas pixels.
type FrameGeometry struct {
	Shape  Shape
	Bounds Rect
}

// Layout parses the template and maps every frame onto a size x size
// canvas. It fails before any pixel is drawn.
func Layout(tpl *models.Template, size int) ([]FrameGeometry, error) {
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	vb, err := ParseViewBox(tpl.ViewBox)
	if err != nil {
		return nil, err
	}

	frames := make([]FrameGeometry, len(tpl.Frames))
	for i, f := range tpl.Frames {
		shape, err := ParsePath(f.Path)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", f.ID, err)
		}
		shape = shape.Transform(vb, float64(size), float64(size))
		b := shape.Bounds()
		if b.Empty() {
			return nil, fmt.Errorf("%w: frame %d has no area", ErrInvalidTemplate, f.ID)
		}
		frames[i] = FrameGeometry{Shape: shape, Bounds: b}
	}
	return frames, nil
}

// Compose draws images[i] into frame i of tpl, clipped to the frame path and
// cover-fitted to its bounding box. Extra images are ignored.
func (c *Compositor) Compose(tpl *models.Template, images []image.Image) (*image.RGBA, error) {
	if len(images) < tpl.PhotoCount {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientImages, len(images), tpl.PhotoCount)
	}
	for i := 0; i < tpl.PhotoCount; i++ {
		if images[i] == nil || images[i].Bounds().Empty() {
			return nil, fmt.Errorf("%w: image %d is missing", ErrInsufficientImages, i)
		}
	}

	frames, err := Layout(tpl, c.Size)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, c.Size, c.Size))
	stddraw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.background()), image.Point{}, stddraw.Src)

	for i, f := range frames {
		c.drawFrame(canvas, f, images[i])
	}
	for _, f := range frames {
		c.strokeFrame(canvas, f.Shape)
	}
	return canvas, nil
}

func (c *Compositor) drawFrame(canvas *image.RGBA, f FrameGeometry, img image.Image) {
	src := img.Bounds()
	box := CoverFit(f.Bounds, float64(src.Dx()), float64(src.Dy()))
	dr := image.Rect(
		int(math.Floor(box.X)),
		int(math.Floor(box.Y)),
		int(math.Ceil(box.X+box.Width)),
		int(math.Ceil(box.Y+box.Height)),
	)

	mask := fillMask(f.Shape, canvas.Bounds())
	c.scaler().Scale(canvas, dr, img, src, draw.Over, &draw.Options{
		DstMask:  mask,
		DstMaskP: image.Point{},
	})
}

func (c *Compositor) strokeFrame(canvas *image.RGBA, s Shape) {
	if c.StrokeWidth <= 0 || c.StrokeColor == nil {
		return
	}
	b := canvas.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	addStroke(r, s, c.StrokeWidth)
	r.Draw(canvas, b, image.NewUniform(c.StrokeColor), image.Point{})
}

func (c *Compositor) background() color.Color {
	if c.Background == nil {
		return color.White
	}
	return c.Background
}

func (c *Compositor) scaler() draw.Scaler {
	if c.Scaler == nil {
		return draw.CatmullRom
	}
	return c.Scaler
}

// CoverFit grows box so that an srcW x srcH image keeps its aspect ratio and
// covers the whole box, centered. The overflow is removed by clipping.
func CoverFit(box Rect, srcW, srcH float64) Rect {
	if srcW <= 0 || srcH <= 0 || box.Empty() {
		return box
	}
	srcAspect := srcW / srcH
	dstAspect := box.Width / box.Height

	out := box
	if srcAspect > dstAspect {
		out.Width = box.Height * srcAspect
		out.X = box.X - (out.Width-box.Width)/2
	} else {
		out.Height = box.Width / srcAspect
		out.Y = box.Y - (out.Height-box.Height)/2
	}
	return out
}

// fillMask rasterizes the shape interior into an alpha mask the size of
// bounds. Open subpaths are closed implicitly, as SVG fill does.
func fillMask(s Shape, bounds image.Rectangle) *image.Alpha {
	r := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	for _, sp := range s.Subpaths {
		if len(sp.Points) < 3 {
			continue
		}
		r.MoveTo(float32(sp.Points[0].X), float32(sp.Points[0].Y))
		for _, p := range sp.Points[1:] {
			r.LineTo(float32(p.X), float32(p.Y))
		}
		r.ClosePath()
	}
	mask := image.NewAlpha(bounds)
	r.Draw(mask, bounds, image.Opaque, image.Point{})
	return mask
}

// addStroke adds one quad per segment, width pixels wide and centered on
// the segment.
func addStroke(r *vector.Rasterizer, s Shape, width float64) {
	hw := width / 2
	for _, sp := range s.Subpaths {
		pts := sp.Points
		if sp.Closed && len(pts) > 1 && pts[0] != pts[len(pts)-1] {
			pts = append(append([]Point(nil), pts...), pts[0])
		}
		for i := 1; i < len(pts); i++ {
			a, b := pts[i-1], pts[i]
			dx, dy := b.X-a.X, b.Y-a.Y
			l := math.Hypot(dx, dy)
			if l == 0 {
				continue
			}
			// Extend both ends by half the width so corners are filled.
			ux, uy := dx/l*hw, dy/l*hw
			nx, ny := -uy, ux
			a = Point{X: a.X - ux, Y: a.Y - uy}
			b = Point{X: b.X + ux, Y: b.Y + uy}
			r.MoveTo(float32(a.X+nx), float32(a.Y+ny))
			r.LineTo(float32(b.X+nx), float32(b.Y+ny))
			r.LineTo(float32(b.X-nx), float32(b.Y-ny))
			r.LineTo(float32(a.X-nx), float32(a.Y-ny))
			r.ClosePath()
		}
	}
}
