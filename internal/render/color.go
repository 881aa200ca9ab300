package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultAccentHex is used when an organization's accent color cannot
// be parsed.
const DefaultAccentHex = "#4F46E5"

// AccentHex converts an "H, S%, L%" accent color string to a "#rrggbb"
// value. Malformed input falls back to DefaultAccentHex rather than
// failing the export.
func AccentHex(hsl string) string {
	h, s, l, ok := parseHSL(hsl)
	if !ok {
		return DefaultAccentHex
	}
	r, g, b := hslToRGB(h, s, l)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// parseHSL parses "H, S%, L%" (e.g. "222, 47%, 41%").
func parseHSL(in string) (h, s, l float64, ok bool) {
	parts := strings.Split(in, ",")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}

	h, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, 0, false
	}

	pct := func(p string) (float64, error) {
		p = strings.TrimSpace(p)
		if !strings.HasSuffix(p, "%") {
			return 0, fmt.Errorf("missing %% suffix in %q", p)
		}
		return strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
	}

	s, err = pct(parts[1])
	if err != nil {
		return 0, 0, 0, false
	}
	l, err = pct(parts[2])
	if err != nil {
		return 0, 0, 0, false
	}

	if h < 0 || h >= 360 || s < 0 || s > 100 || l < 0 || l > 100 {
		return 0, 0, 0, false
	}
	return h, s / 100, l / 100, true
}

// hslToRGB performs the standard HSL to RGB conversion.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	r = uint8(math.Round((rf + m) * 255))
	g = uint8(math.Round((gf + m) * 255))
	b = uint8(math.Round((bf + m) * 255))
	return r, g, b
}
