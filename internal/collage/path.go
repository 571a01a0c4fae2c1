package collage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a 2D coordinate.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X, Y, Width, Height float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return !(r.Width > 0 && r.Height > 0)
}

// Subpath is one M-started run of line segments.
type Subpath struct {
	Points []Point
	Closed bool
}

// Shape is a parsed frame path. It is the single geometry value shared by
// the compositor, the viewfinder guide and the template preview.
type Shape struct {
	Subpaths []Subpath
}

// Empty reports whether the shape has no points.
func (s Shape) Empty() bool {
	for _, sp := range s.Subpaths {
		if len(sp.Points) > 0 {
			return false
		}
	}
	return true
}

// Points returns every vertex in path order.
func (s Shape) Points() []Point {
	var pts []Point
	for _, sp := range s.Subpaths {
		pts = append(pts, sp.Points...)
	}
	return pts
}

// Bounds returns the bounding box of all vertices.
func (s Shape) Bounds() Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, sp := range s.Subpaths {
		for _, p := range sp.Points {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Transform maps the shape from view-box space onto a width x height
// canvas.
func (s Shape) Transform(vb ViewBox, width, height float64) Shape {
	sx := width / vb.Width
	sy := height / vb.Height
	out := Shape{Subpaths: make([]Subpath, len(s.Subpaths))}
	for i, sp := range s.Subpaths {
		pts := make([]Point, len(sp.Points))
		for j, p := range sp.Points {
			pts[j] = Point{X: (p.X - vb.MinX) * sx, Y: (p.Y - vb.MinY) * sy}
		}
		out.Subpaths[i] = Subpath{Points: pts, Closed: sp.Closed}
	}
	return out
}

// ParsePath parses the absolute SVG path subset used by frame templates:
// M x y, L x y, H x, V y and Z. Separators (whitespace and commas) are
// optional between tokens. Extra coordinate pairs after M are line-tos.
// Any other command, a missing operand or a malformed number is an error
// wrapping ErrInvalidPath; no partial shape is returned.
func ParsePath(d string) (Shape, error) {
	p := pathParser{src: d}
	shape, err := p.parse()
	if err != nil {
		return Shape{}, err
	}
	if shape.Empty() {
		return Shape{}, fmt.Errorf("%w: no drawing commands", ErrInvalidPath)
	}
	return shape, nil
}

type pathParser struct {
	src   string
	pos   int
	shape Shape
	cur   Point
	start Point
	open  bool // a subpath is accepting segments
}

func (p *pathParser) parse() (Shape, error) {
	var cmd byte
	for {
		p.skipSeparators()
		if p.pos >= len(p.src) {
			break
		}

		c := p.src[p.pos]
		if isCommandLetter(c) {
			if !strings.ContainsRune("MLHVZ", rune(c)) {
				return Shape{}, fmt.Errorf("%w: unsupported command %q at offset %d", ErrInvalidPath, c, p.pos)
			}
			cmd = c
			p.pos++
			if cmd == 'Z' {
				p.closePath()
				continue
			}
		} else if cmd == 0 || cmd == 'Z' {
			return Shape{}, fmt.Errorf("%w: expected command at offset %d", ErrInvalidPath, p.pos)
		}

		switch cmd {
		case 'M':
			x, y, err := p.pair()
			if err != nil {
				return Shape{}, err
			}
			p.moveTo(Point{X: x, Y: y})
			cmd = 'L'
		case 'L':
			x, y, err := p.pair()
			if err != nil {
				return Shape{}, err
			}
			if err := p.lineTo(Point{X: x, Y: y}); err != nil {
				return Shape{}, err
			}
		case 'H':
			x, err := p.number()
			if err != nil {
				return Shape{}, err
			}
			if err := p.lineTo(Point{X: x, Y: p.cur.Y}); err != nil {
				return Shape{}, err
			}
		case 'V':
			y, err := p.number()
			if err != nil {
				return Shape{}, err
			}
			if err := p.lineTo(Point{X: p.cur.X, Y: y}); err != nil {
				return Shape{}, err
			}
		}
	}
	return p.shape, nil
}

func (p *pathParser) moveTo(pt Point) {
	p.shape.Subpaths = append(p.shape.Subpaths, Subpath{Points: []Point{pt}})
	p.cur, p.start = pt, pt
	p.open = true
}

func (p *pathParser) lineTo(pt Point) error {
	if len(p.shape.Subpaths) == 0 {
		return fmt.Errorf("%w: line before move at offset %d", ErrInvalidPath, p.pos)
	}
	if !p.open {
		// A segment after Z starts a new subpath at the closing point.
		p.moveTo(p.start)
	}
	last := &p.shape.Subpaths[len(p.shape.Subpaths)-1]
	last.Points = append(last.Points, pt)
	p.cur = pt
	return nil
}

func (p *pathParser) closePath() {
	if !p.open {
		return
	}
	last := &p.shape.Subpaths[len(p.shape.Subpaths)-1]
	last.Closed = true
	p.cur = p.start
	p.open = false
}

func (p *pathParser) pair() (float64, float64, error) {
	x, err := p.number()
	if err != nil {
		return 0, 0, err
	}
	y, err := p.number()
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// number scans one SVG number: sign, digits, optional fraction and
// exponent. A second '.' ends the number so "0.5.5" reads as 0.5 and .5.
func (p *pathParser) number() (float64, error) {
	p.skipSeparators()
	start := p.pos
	i := p.pos
	if i < len(p.src) && (p.src[i] == '+' || p.src[i] == '-') {
		i++
	}
	digits := 0
	for i < len(p.src) && isDigit(p.src[i]) {
		i++
		digits++
	}
	if i < len(p.src) && p.src[i] == '.' {
		i++
		for i < len(p.src) && isDigit(p.src[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, fmt.Errorf("%w: expected number at offset %d", ErrInvalidPath, start)
	}
	if i < len(p.src) && (p.src[i] == 'e' || p.src[i] == 'E') {
		j := i + 1
		if j < len(p.src) && (p.src[j] == '+' || p.src[j] == '-') {
			j++
		}
		if j < len(p.src) && isDigit(p.src[j]) {
			for j < len(p.src) && isDigit(p.src[j]) {
				j++
			}
			i = j
		}
	}
	v, err := strconv.ParseFloat(p.src[start:i], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrInvalidPath, p.src[start:i])
	}
	p.pos = i
	return v, nil
}

func (p *pathParser) skipSeparators() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', ',':
			p.pos++
		default:
			return
		}
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isCommandLetter excludes e/E, which only appear inside numbers.
func isCommandLetter(c byte) bool {
	return (c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') && c != 'e' && c != 'E'
}
