package collage

import (
	"fmt"
	"strconv"
	"strings"
)

// ViewBox is the coordinate space template paths are authored in.
type ViewBox struct {
	MinX, MinY, Width, Height float64
}

// ParseViewBox parses "minX minY width height". Components may be separated
// by whitespace or commas. Width and height must be positive.
func ParseViewBox(s string) (ViewBox, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != 4 {
		return ViewBox{}, fmt.Errorf("%w: view box %q needs 4 components", ErrInvalidTemplate, s)
	}

	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return ViewBox{}, fmt.Errorf("%w: view box component %q", ErrInvalidTemplate, f)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return ViewBox{}, fmt.Errorf("%w: view box %q has no area", ErrInvalidTemplate, s)
	}
	return ViewBox{MinX: v[0], MinY: v[1], Width: v[2], Height: v[3]}, nil
}
