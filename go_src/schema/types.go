package schema

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- Bar ---

// Bar is one OHLCV sample for a fixed time interval. Timestamps are epoch
// milliseconds and must be non-decreasing within a series.
type Bar struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// BarFlags carries per-bar facts derived once at load/append time so the
// per-frame geometry path does not recompute them.
type BarFlags uint8

const (
	BarUp BarFlags = 1 << iota
	BarDown
	BarDoji // open == close
	BarMalformed
)

// Flags classifies the bar. A bar is malformed when its high/low span does
// not contain the open/close span; such bars still render, but with a
// zero-height wick.
func (b Bar) Flags() BarFlags {
	var f BarFlags
	switch {
	case b.Close > b.Open:
		f = BarUp
	case b.Close < b.Open:
		f = BarDown
	default:
		f = BarDoji
	}
	lo := math.Min(b.Open, b.Close)
	hi := math.Max(b.Open, b.Close)
	if b.Low > lo || b.High < hi || b.Low > b.High {
		f |= BarMalformed
	}
	return f
}

// Finite reports whether every numeric field of the bar is finite.
func (b Bar) Finite() bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// --- Label ---

// Label is a user-created annotation over a contiguous bar index range.
// Labels are keyed by bar index, not pixel position, so they survive
// pan/zoom and window resizes.
type Label struct {
	ID         uuid.UUID `json:"id"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"` // inclusive
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks the integrity of the Label.
func (l *Label) Validate() error {
	if l.ID == uuid.Nil {
		return fmt.Errorf("label id is required and cannot be a nil UUID")
	}
	if l.StartIndex < 0 {
		return fmt.Errorf("label start_index must be >= 0, got %d", l.StartIndex)
	}
	if l.EndIndex < l.StartIndex {
		return fmt.Errorf("label end_index (%d) cannot be before start_index (%d)", l.EndIndex, l.StartIndex)
	}
	if strings.TrimSpace(l.Category) == "" {
		return fmt.Errorf("label category is required")
	}
	if l.CreatedAt.IsZero() {
		return fmt.Errorf("label created_at is required")
	}
	return nil
}

// Covers reports whether the bar at index is inside the label's range.
func (l *Label) Covers(index int) bool {
	return index >= l.StartIndex && index <= l.EndIndex
}

// --- HoverInfo ---

// HoverInfo is the payload surfaced to the tooltip layer when the pointer
// rests over a bar in cursor mode.
type HoverInfo struct {
	Index     int
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// VolumeString renders the volume the way the tooltip displays it:
// millions as "12.34M", thousands as "56.7k", small values as an integer.
func (h HoverInfo) VolumeString() string {
	switch {
	case h.Volume > 1_000_000:
		return fmt.Sprintf("%.2fM", h.Volume/1_000_000)
	case h.Volume > 1_000:
		return fmt.Sprintf("%.1fk", h.Volume/1_000)
	default:
		return fmt.Sprintf("%d", int64(h.Volume))
	}
}

// Time returns the bar timestamp as a UTC time.Time.
func (h HoverInfo) Time() time.Time {
	return time.UnixMilli(h.Timestamp).UTC()
}

// --- RendererKind ---

// RendererKind is the closed set of primitive renderers the geometry
// builder dispatches over. Indicator columns attach to one of these kinds
// instead of arriving as arbitrarily-typed data.
type RendererKind string

const (
	RendererCandle      RendererKind = "candle"
	RendererLineOverlay RendererKind = "line-overlay"
	RendererVolume      RendererKind = "volume"
)

var validRendererKinds = map[RendererKind]bool{
	RendererCandle:      true,
	RendererLineOverlay: true,
	RendererVolume:      true,
}

// Valid reports whether the kind is one of the recognized renderer kinds.
func (rk RendererKind) Valid() bool {
	return validRendererKinds[rk]
}
