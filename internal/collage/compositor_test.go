package collage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	xdraw "golang.org/x/image/draw"

	"github.com/mmynk/cameratogether/internal/models"
)

func splitTemplate() *models.Template {
	return &models.Template{
		Name:       "2-split",
		PhotoCount: 2,
		ViewBox:    "0 0 1 1",
		Frames: []models.Frame{
			{ID: 1, Path: "M0.02 0.02H0.49V0.98H0.02V0.02Z"},
			{ID: 2, Path: "M0.51 0.02H0.98V0.98H0.51V0.02Z"},
		},
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func rgba(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

var (
	red  = color.RGBA{R: 0xff, A: 0xff}
	blue = color.RGBA{B: 0xff, A: 0xff}
)

func TestCompose(t *testing.T) {
	c := New(100)
	c.Scaler = xdraw.NearestNeighbor

	canvas, err := c.Compose(splitTemplate(), []image.Image{solid(40, 20, red), solid(20, 40, blue)})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if canvas.Bounds() != image.Rect(0, 0, 100, 100) {
		t.Fatalf("bounds: expected 100x100, got %v", canvas.Bounds())
	}

	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"left frame", 25, 50, red},
		{"right frame", 75, 50, blue},
		{"margin", 0, 0, color.RGBA{0xff, 0xff, 0xff, 0xff}},
		{"gutter", 50, 50, color.RGBA{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rgba(canvas.At(tt.x, tt.y)); got != tt.want {
				t.Errorf("pixel (%d,%d): expected %v, got %v", tt.x, tt.y, tt.want, got)
			}
		})
	}
}

func TestCompose_ExtraImagesIgnored(t *testing.T) {
	c := New(50)
	images := []image.Image{solid(4, 4, red), solid(4, 4, blue), solid(4, 4, color.Black)}
	if _, err := c.Compose(splitTemplate(), images); err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
}

func TestCompose_InsufficientImages(t *testing.T) {
	c := New(100)

	canvas, err := c.Compose(splitTemplate(), []image.Image{solid(10, 10, red)})
	if !errors.Is(err, ErrInsufficientImages) {
		t.Fatalf("expected ErrInsufficientImages, got %v", err)
	}
	if canvas != nil {
		t.Error("expected no canvas on failure")
	}

	_, err = c.Compose(splitTemplate(), []image.Image{solid(10, 10, red), nil})
	if !errors.Is(err, ErrInsufficientImages) {
		t.Fatalf("expected ErrInsufficientImages for nil image, got %v", err)
	}
}

func TestCompose_InvalidTemplate(t *testing.T) {
	images := []image.Image{solid(4, 4, red), solid(4, 4, blue)}

	tests := []struct {
		name   string
		mutate func(*models.Template)
	}{
		{"bad view box", func(tpl *models.Template) { tpl.ViewBox = "0 0 1" }},
		{"unsupported command", func(tpl *models.Template) { tpl.Frames[1].Path = "M0 0C1 1 1 1 1 0Z" }},
		{"frame count mismatch", func(tpl *models.Template) { tpl.Frames = tpl.Frames[:1] }},
		{"zero area frame", func(tpl *models.Template) { tpl.Frames[0].Path = "M0.1 0.1H0.5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := splitTemplate()
			tt.mutate(tpl)
			canvas, err := New(64).Compose(tpl, images)
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Fatalf("expected ErrInvalidTemplate, got %v", err)
			}
			if canvas != nil {
				t.Error("expected no canvas on failure")
			}
		})
	}
}

func TestLayout(t *testing.T) {
	frames, err := Layout(splitTemplate(), 1000)
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	b := frames[0].Bounds
	if !approxPx(b.X, 20) || !approxPx(b.Y, 20) || !approxPx(b.Width, 470) || !approxPx(b.Height, 960) {
		t.Errorf("frame 1 bounds: got %+v", b)
	}
}

func approxPx(a, b float64) bool {
	d := a - b
	return d > -1e-6 && d < 1e-6
}

func TestCoverFit(t *testing.T) {
	box := Rect{X: 0, Y: 0, Width: 100, Height: 100}

	wide := CoverFit(box, 200, 100)
	if wide != (Rect{X: -50, Y: 0, Width: 200, Height: 100}) {
		t.Errorf("wide source: got %+v", wide)
	}

	tall := CoverFit(box, 100, 200)
	if tall != (Rect{X: 0, Y: -50, Width: 100, Height: 200}) {
		t.Errorf("tall source: got %+v", tall)
	}

	same := CoverFit(Rect{X: 10, Y: 10, Width: 50, Height: 25}, 100, 50)
	if same != (Rect{X: 10, Y: 10, Width: 50, Height: 25}) {
		t.Errorf("matching aspect: got %+v", same)
	}
}

func TestFrameGuide(t *testing.T) {
	overlay, err := FrameGuide(splitTemplate(), 0, 100, 100)
	if err != nil {
		t.Fatalf("FrameGuide failed: %v", err)
	}
	if a := overlay.NRGBAAt(25, 50).A; a != 0 {
		t.Errorf("inside frame: expected transparent, got alpha %d", a)
	}
	if a := overlay.NRGBAAt(75, 50).A; a != guideShade.A {
		t.Errorf("outside frame: expected alpha %d, got %d", guideShade.A, a)
	}

	if _, err := FrameGuide(splitTemplate(), 2, 100, 100); !errors.Is(err, ErrInvalidTemplate) {
		t.Errorf("expected ErrInvalidTemplate for out of range frame, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	img, err := Preview(splitTemplate(), 64)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if got := rgba(img.At(0, 0)); got != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("background: expected white, got %v", got)
	}
	if got := rgba(img.At(16, 32)); got != (color.RGBA{0xd0, 0xd0, 0xd0, 0xff}) {
		t.Errorf("frame fill: expected grey, got %v", got)
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, name := range []string{"png", "JPG", ".jpeg"} {
		f, err := ParseFormat(name)
		if err != nil {
			t.Fatalf("ParseFormat(%q) failed: %v", name, err)
		}
		var buf bytes.Buffer
		if err := Encode(&buf, solid(8, 6, red), f); err != nil {
			t.Fatalf("Encode %s failed: %v", f, err)
		}
		img, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode %s failed: %v", f, err)
		}
		if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
			t.Errorf("%s: expected 8x6, got %v", f, img.Bounds())
		}
	}

	if _, err := ParseFormat("gif"); err == nil {
		t.Error("expected gif to be rejected")
	}
}
