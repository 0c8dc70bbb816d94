// Package style_manager owns chart appearance: built-in defaults, a YAML
// style file layered on top of them, and saving edited styles back out.
// Unknown or malformed values fall back to the default with a warning
// instead of failing the whole style load.
package style_manager

import (
	"fmt"
	"os"
	"path/filepath"

	"candlelab/go_src/schema"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// fileStyle is the on-disk YAML shape. Colors are hex strings so the
// file stays hand-editable.
type fileStyle struct {
	Candles struct {
		Up        string  `yaml:"up,omitempty"`
		Down      string  `yaml:"down,omitempty"`
		Tie       string  `yaml:"tie,omitempty"`
		Wick      string  `yaml:"wick,omitempty"`
		WickWidth float32 `yaml:"wick_width,omitempty"`
	} `yaml:"candles"`
	Volume struct {
		Up        string  `yaml:"up,omitempty"`
		Down      string  `yaml:"down,omitempty"`
		PaneRatio float64 `yaml:"pane_ratio,omitempty"`
	} `yaml:"volume"`
	Grid struct {
		Color        string  `yaml:"color,omitempty"`
		Style        string  `yaml:"style,omitempty"`
		Width        float32 `yaml:"width,omitempty"`
		MinSpacingPx float32 `yaml:"min_spacing_px,omitempty"`
	} `yaml:"grid"`
	Crosshair struct {
		Color string  `yaml:"color,omitempty"`
		Style string  `yaml:"style,omitempty"`
		Width float32 `yaml:"width,omitempty"`
	} `yaml:"crosshair"`
	Chart struct {
		Background   string   `yaml:"background,omitempty"`
		Font         string   `yaml:"font,omitempty"`
		PricePadding float64  `yaml:"price_padding,omitempty"`
		Overlays     []string `yaml:"overlays,omitempty"`
	} `yaml:"chart"`
}

// Defaults returns the built-in style: green/red candles on a dark
// background with a dotted gray grid.
func Defaults() schema.StyleConfig {
	return schema.StyleConfig{
		UpColor:   schema.Color{R: 0x00, G: 0xcc, B: 0x00, A: 0xff},
		DownColor: schema.Color{R: 0xcc, G: 0x00, B: 0x00, A: 0xff},
		TieColor:  schema.Color{R: 0x80, G: 0x80, B: 0x80, A: 0xff},

		WickColor: schema.Color{R: 180, G: 180, B: 180, A: 0xff},
		WickWidth: 1,

		UpVolumeColor:   schema.Color{R: 0x00, G: 0xcc, B: 0x00, A: 180},
		DownVolumeColor: schema.Color{R: 0xcc, G: 0x00, B: 0x00, A: 180},

		GridColor:        schema.Color{R: 80, G: 80, B: 80, A: 0xff},
		GridStyle:        schema.PenDot,
		GridWidth:        1,
		GridMinSpacingPx: 40,

		CrosshairColor: schema.Color{R: 200, G: 200, B: 200, A: 0xff},
		CrosshairStyle: schema.PenDash,
		CrosshairWidth: 1,

		BackgroundColor: schema.Color{A: 0xff},
		FontName:        "DejaVu Sans",

		OverlayPalette: []schema.Color{
			{R: 0xff, G: 0xa7, B: 0x26, A: 0xff},
			{R: 0x42, G: 0xa5, B: 0xf5, A: 0xff},
			{R: 0xab, G: 0x47, B: 0xbc, A: 0xff},
			{R: 0x26, G: 0xc6, B: 0xda, A: 0xff},
		},

		VolumePaneRatio:    0.25,
		PricePaddingFactor: 1.1,
	}
}

// Load reads the style file at path merged over the defaults. A missing
// file is not an error; you just get the defaults.
func Load(path string) (schema.StyleConfig, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logrus.Infof("Style file %s not found, using built-in defaults", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read style file %s: %w", path, err)
	}

	var fs fileStyle
	if err := yaml.Unmarshal(raw, &fs); err != nil {
		return cfg, fmt.Errorf("failed to parse style file %s: %w", path, err)
	}

	mergeColor(&cfg.UpColor, fs.Candles.Up, "candles.up")
	mergeColor(&cfg.DownColor, fs.Candles.Down, "candles.down")
	mergeColor(&cfg.TieColor, fs.Candles.Tie, "candles.tie")
	mergeColor(&cfg.WickColor, fs.Candles.Wick, "candles.wick")
	if fs.Candles.WickWidth > 0 {
		cfg.WickWidth = fs.Candles.WickWidth
	}

	mergeColor(&cfg.UpVolumeColor, fs.Volume.Up, "volume.up")
	mergeColor(&cfg.DownVolumeColor, fs.Volume.Down, "volume.down")
	if fs.Volume.PaneRatio > 0 && fs.Volume.PaneRatio < 1 {
		cfg.VolumePaneRatio = fs.Volume.PaneRatio
	}

	mergeColor(&cfg.GridColor, fs.Grid.Color, "grid.color")
	mergePen(&cfg.GridStyle, fs.Grid.Style, "grid.style")
	if fs.Grid.Width > 0 {
		cfg.GridWidth = fs.Grid.Width
	}
	if fs.Grid.MinSpacingPx > 0 {
		cfg.GridMinSpacingPx = fs.Grid.MinSpacingPx
	}

	mergeColor(&cfg.CrosshairColor, fs.Crosshair.Color, "crosshair.color")
	mergePen(&cfg.CrosshairStyle, fs.Crosshair.Style, "crosshair.style")
	if fs.Crosshair.Width > 0 {
		cfg.CrosshairWidth = fs.Crosshair.Width
	}

	mergeColor(&cfg.BackgroundColor, fs.Chart.Background, "chart.background")
	if fs.Chart.Font != "" {
		cfg.FontName = fs.Chart.Font
	}
	if fs.Chart.PricePadding >= 1 {
		cfg.PricePaddingFactor = fs.Chart.PricePadding
	}
	if len(fs.Chart.Overlays) > 0 {
		var palette []schema.Color
		for _, hex := range fs.Chart.Overlays {
			c, err := schema.ParseColor(hex)
			if err != nil {
				logrus.Warnf("Ignoring invalid overlay color in %s: %v", path, err)
				continue
			}
			palette = append(palette, c)
		}
		if len(palette) > 0 {
			cfg.OverlayPalette = palette
		}
	}

	if err := cfg.Validate(); err != nil {
		return Defaults(), fmt.Errorf("style file %s produced an invalid style: %w", path, err)
	}
	return cfg, nil
}

// Save writes the style as YAML, creating parent directories as needed.
func Save(cfg schema.StyleConfig, path string) error {
	var fs fileStyle
	fs.Candles.Up = cfg.UpColor.Hex()
	fs.Candles.Down = cfg.DownColor.Hex()
	fs.Candles.Tie = cfg.TieColor.Hex()
	fs.Candles.Wick = cfg.WickColor.Hex()
	fs.Candles.WickWidth = cfg.WickWidth
	fs.Volume.Up = cfg.UpVolumeColor.Hex()
	fs.Volume.Down = cfg.DownVolumeColor.Hex()
	fs.Volume.PaneRatio = cfg.VolumePaneRatio
	fs.Grid.Color = cfg.GridColor.Hex()
	fs.Grid.Style = string(cfg.GridStyle)
	fs.Grid.Width = cfg.GridWidth
	fs.Grid.MinSpacingPx = cfg.GridMinSpacingPx
	fs.Crosshair.Color = cfg.CrosshairColor.Hex()
	fs.Crosshair.Style = string(cfg.CrosshairStyle)
	fs.Crosshair.Width = cfg.CrosshairWidth
	fs.Chart.Background = cfg.BackgroundColor.Hex()
	fs.Chart.Font = cfg.FontName
	fs.Chart.PricePadding = cfg.PricePaddingFactor
	for _, c := range cfg.OverlayPalette {
		fs.Chart.Overlays = append(fs.Chart.Overlays, c.Hex())
	}

	raw, err := yaml.Marshal(&fs)
	if err != nil {
		return fmt.Errorf("failed to marshal style: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create style directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write style file %s: %w", path, err)
	}
	return nil
}

func mergeColor(dst *schema.Color, hex, field string) {
	if hex == "" {
		return
	}
	c, err := schema.ParseColor(hex)
	if err != nil {
		logrus.Warnf("Ignoring invalid style value for %s: %v", field, err)
		return
	}
	*dst = c
}

func mergePen(dst *schema.PenStyle, s, field string) {
	if s == "" {
		return
	}
	ps, err := schema.ParsePenStyle(s)
	if err != nil {
		logrus.Warnf("Ignoring invalid style value for %s: %v", field, err)
		return
	}
	*dst = ps
}
