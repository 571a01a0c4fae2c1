package collage

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestParsePath_Bounds(t *testing.T) {
	shape, err := ParsePath("M0.02 0.02H0.49V0.98H0.02V0.02Z")
	if err != nil {
		t.Fatalf("ParsePath failed: %v", err)
	}

	b := shape.Bounds()
	want := Rect{X: 0.02, Y: 0.02, Width: 0.47, Height: 0.96}
	if !approx(b.X, want.X) || !approx(b.Y, want.Y) || !approx(b.Width, want.Width) || !approx(b.Height, want.Height) {
		t.Errorf("bounds: expected %+v, got %+v", want, b)
	}

	if len(shape.Subpaths) != 1 || !shape.Subpaths[0].Closed {
		t.Fatalf("expected one closed subpath, got %+v", shape.Subpaths)
	}
	if n := len(shape.Points()); n != 5 {
		t.Errorf("points: expected 5, got %d", n)
	}
}

func TestParsePath_Syntax(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		points int
	}{
		{"commas", "M0,0L1,0L1,1Z", 3},
		{"extra whitespace", "  M 0   0 \n L 1 0\tL 1 1  Z  ", 3},
		{"implicit lineto after move", "M0 0 1 0 1 1Z", 3},
		{"repeated lineto pairs", "M0 0L1 0 1 1 0 1Z", 4},
		{"negative and signs", "M-1-1L+1-1L1 1Z", 3},
		{"exponent", "M1e-1 0L1E1 0V2Z", 3},
		{"compact decimals", "M.5.5L1.5.5V1Z", 3},
		{"open path", "M0 0L1 1", 2},
		{"segment after close starts new subpath", "M0 0H1V1ZL2 2", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, err := ParsePath(tt.path)
			if err != nil {
				t.Fatalf("ParsePath(%q) failed: %v", tt.path, err)
			}
			if n := len(shape.Points()); n != tt.points {
				t.Errorf("points: expected %d, got %d", tt.points, n)
			}
		})
	}
}

func TestParsePath_CompactDecimals(t *testing.T) {
	shape, err := ParsePath("M.5.5L1.5.5")
	if err != nil {
		t.Fatalf("ParsePath failed: %v", err)
	}
	pts := shape.Points()
	if pts[0] != (Point{0.5, 0.5}) || pts[1] != (Point{1.5, 0.5}) {
		t.Errorf("unexpected points %+v", pts)
	}
}

func TestParsePath_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"only separators", " , "},
		{"curve", "M0 0C1 1 2 2 3 3Z"},
		{"arc", "M0 0A1 1 0 0 1 1 1"},
		{"relative lowercase", "m0 0l1 0z"},
		{"missing operand", "M0"},
		{"missing y in lineto", "M0 0L1"},
		{"line before move", "L1 1"},
		{"number without command", "0 0"},
		{"number after close", "M0 0H1V1Z 2 2"},
		{"garbage", "M0 0L1 0#"},
		{"stray exponent", "M0 0 e5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, err := ParsePath(tt.path)
			if !errors.Is(err, ErrInvalidPath) {
				t.Fatalf("expected ErrInvalidPath, got %v", err)
			}
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("ErrInvalidPath must wrap ErrInvalidTemplate")
			}
			if !shape.Empty() {
				t.Errorf("expected no geometry on failure, got %+v", shape)
			}
		})
	}
}

func TestTransform(t *testing.T) {
	shape, err := ParsePath("M10 20H60V70H10Z")
	if err != nil {
		t.Fatalf("ParsePath failed: %v", err)
	}
	vb := ViewBox{MinX: 10, MinY: 20, Width: 100, Height: 50}

	b := shape.Transform(vb, 1000, 500).Bounds()
	want := Rect{X: 0, Y: 0, Width: 500, Height: 500}
	if b != want {
		t.Errorf("bounds: expected %+v, got %+v", want, b)
	}
}

func TestParseViewBox(t *testing.T) {
	good := map[string]ViewBox{
		"0 0 1 1":         {0, 0, 1, 1},
		"0,0,100,50":      {0, 0, 100, 50},
		" -5 -5  10  10 ": {-5, -5, 10, 10},
	}
	for in, want := range good {
		got, err := ParseViewBox(in)
		if err != nil {
			t.Errorf("ParseViewBox(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseViewBox(%q): expected %+v, got %+v", in, want, got)
		}
	}

	for _, in := range []string{"", "0 0 1", "0 0 1 1 1", "0 0 a 1", "0 0 0 1", "0 0 1 -1"} {
		if _, err := ParseViewBox(in); !errors.Is(err, ErrInvalidTemplate) {
			t.Errorf("ParseViewBox(%q): expected ErrInvalidTemplate, got %v", in, err)
		}
	}
}
