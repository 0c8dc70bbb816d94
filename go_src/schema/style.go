package schema

import (
	"fmt"
	"strings"
)

// --- Color ---

// Color is a toolkit-independent RGBA color with 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

// RGBA returns the color as normalized float32 components, the form the
// vertex color buffers carry.
func (c Color) RGBA() (r, g, b, a float32) {
	return float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255
}

// Hex renders the color as "#rrggbb" or "#rrggbbaa" when the alpha channel
// is not fully opaque. This is the form the style file stores.
func (c Color) Hex() string {
	if c.A != 0xff {
		return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseColor parses "#rrggbb" or "#rrggbbaa" (case-insensitive).
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("invalid color %q: must start with '#'", s)
	}
	hex := s[1:]
	var c Color
	c.A = 0xff
	switch len(hex) {
	case 8:
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A); err != nil {
			return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
	case 6:
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
			return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
	default:
		return Color{}, fmt.Errorf("invalid color %q: expected 6 or 8 hex digits", s)
	}
	return c, nil
}

// --- PenStyle ---

// PenStyle is the closed set of line styles recognized for grid and
// crosshair lines.
type PenStyle string

const (
	PenSolid   PenStyle = "solid"
	PenDash    PenStyle = "dash"
	PenDot     PenStyle = "dot"
	PenDashDot PenStyle = "dash-dot"
)

var validPenStyles = map[PenStyle]bool{
	PenSolid:   true,
	PenDash:    true,
	PenDot:     true,
	PenDashDot: true,
}

// Valid reports whether the pen style is one of the recognized styles.
func (p PenStyle) Valid() bool {
	return validPenStyles[p]
}

// ParsePenStyle validates and normalizes a pen style string.
func ParsePenStyle(s string) (PenStyle, error) {
	ps := PenStyle(strings.ToLower(strings.TrimSpace(s)))
	if !validPenStyles[ps] {
		return "", fmt.Errorf("invalid pen style %q. Valid styles are 'solid', 'dash', 'dot', 'dash-dot'", s)
	}
	return ps, nil
}

// --- StyleConfig ---

// StyleConfig is the read-only appearance snapshot consumed by the
// geometry builder and the UI shell. It is owned by the style manager;
// rendering components never mutate it.
type StyleConfig struct {
	UpColor   Color
	DownColor Color
	TieColor  Color // open == close

	WickColor Color
	WickWidth float32

	UpVolumeColor   Color
	DownVolumeColor Color

	GridColor        Color
	GridStyle        PenStyle
	GridWidth        float32
	GridMinSpacingPx float32 // at most one gridline per this many pixels

	CrosshairColor Color
	CrosshairStyle PenStyle
	CrosshairWidth float32

	BackgroundColor Color
	FontName        string

	// OverlayPalette colors indicator line overlays in attach order.
	OverlayPalette []Color

	VolumePaneRatio    float64 // fraction of viewport height given to volume
	PricePaddingFactor float64 // head/foot room multiplier on the price range
}

// Validate checks the enumerated options and numeric ranges of the style.
func (s *StyleConfig) Validate() error {
	if !validPenStyles[s.GridStyle] {
		return fmt.Errorf("grid style: invalid pen style %q", s.GridStyle)
	}
	if !validPenStyles[s.CrosshairStyle] {
		return fmt.Errorf("crosshair style: invalid pen style %q", s.CrosshairStyle)
	}
	if s.VolumePaneRatio < 0 || s.VolumePaneRatio >= 1 {
		return fmt.Errorf("volume pane ratio must be in [0,1), got %v", s.VolumePaneRatio)
	}
	if s.PricePaddingFactor < 1 {
		return fmt.Errorf("price padding factor must be >= 1, got %v", s.PricePaddingFactor)
	}
	if s.GridMinSpacingPx <= 0 {
		return fmt.Errorf("grid min spacing must be positive, got %v", s.GridMinSpacingPx)
	}
	return nil
}

// OverlayColor picks a palette color for the i-th attached indicator.
func (s *StyleConfig) OverlayColor(i int) Color {
	if len(s.OverlayPalette) == 0 {
		return Color{R: 0xdc, G: 0xdc, B: 0xdc, A: 0xff}
	}
	return s.OverlayPalette[i%len(s.OverlayPalette)]
}
