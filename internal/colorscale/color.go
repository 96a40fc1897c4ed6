package colorscale

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Fixed pie palette of the overview charts
const (
	Red    = "#e41a1c"
	Orange = "#ff7f00"
	Green  = "#4daf4a"
)

// ResultColors maps aligned results and dispositions to their pie colors
var ResultColors = map[string]string{
	"pass":       Green,
	"fail":       Red,
	"none":       Green,
	"quarantine": Orange,
	"reject":     Red,
}

// ParseColor accepts #rgb, #rrggbb or a CSS/SVG color name
func ParseColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return colorful.Color{}, fmt.Errorf("%w: empty", ErrInvalidColor)
	}

	if strings.HasPrefix(s, "#") {
		if len(s) == 4 {
			s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
		}
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
		return c, nil
	}

	named, ok := colornames.Map[strings.ToLower(s)]
	if !ok {
		return colorful.Color{}, fmt.Errorf("%w: unknown name %q", ErrInvalidColor, s)
	}
	c, ok := colorful.MakeColor(named)
	if !ok {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

// Lightness returns the HSL lightness (0-1) of a parsed color string
func Lightness(s string) (float64, error) {
	c, err := ParseColor(s)
	if err != nil {
		return 0, err
	}
	_, _, l := c.Hsl()
	return l, nil
}

// Shades returns n colors sharing hue and saturation with base. Lightness starts at maxL and
// steps down by (maxL-minL)/n, so the first shade is the lightest.
func Shades(base colorful.Color, n int, minL, maxL float64) []string {
	h, s, _ := base.Hsl()
	step := (maxL - minL) / float64(n)

	shades := make([]string, n)
	for i := 0; i < n; i++ {
		shades[i] = colorful.Hsl(h, s, maxL-float64(i)*step).Clamped().Hex()
	}
	return shades
}
