// Package viewport owns the visible time/price window and the affine
// transform between data and pixel coordinates. All navigation goes
// through Pan/Zoom/Resize, which makes the model the single source of
// truth for what is visible: a view is reproducible from (ViewWindow,
// pixel size) alone.
package viewport

import (
	"math"

	"github.com/sirupsen/logrus"
)

// ViewWindow is the visible sub-range of the time axis plus an
// independently adjustable price range. Time bounds are epoch
// milliseconds but kept as float64 so sub-millisecond zoom anchoring
// stays exact. Invariant: TimeStart < TimeEnd, PriceMin < PriceMax, and
// both ranges intersect the series extent.
type ViewWindow struct {
	TimeStart float64
	TimeEnd   float64
	PriceMin  float64
	PriceMax  float64
}

// TimeSpan returns the window width in milliseconds.
func (w ViewWindow) TimeSpan() float64 { return w.TimeEnd - w.TimeStart }

// PriceSpan returns the window height in price units.
func (w ViewWindow) PriceSpan() float64 { return w.PriceMax - w.PriceMin }

// Transform is the affine (time,price) -> (pixelX,pixelY) map derived from
// a window and a pixel size. Pixel y grows downward.
type Transform struct {
	win  ViewWindow
	w, h float64
	sx   float64 // pixels per millisecond
	sy   float64 // pixels per price unit
}

func newTransform(win ViewWindow, w, h float64) Transform {
	ts := win.TimeSpan()
	if ts <= 0 {
		ts = 1
	}
	ps := win.PriceSpan()
	if ps <= 0 {
		ps = 1
	}
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return Transform{win: win, w: w, h: h, sx: w / ts, sy: h / ps}
}

// DataToPixel maps a data point into pixel coordinates.
func (t Transform) DataToPixel(timeMs, price float64) (x, y float64) {
	x = (timeMs - t.win.TimeStart) * t.sx
	y = t.h - (price-t.win.PriceMin)*t.sy
	return x, y
}

// PixelToData inverts DataToPixel.
func (t Transform) PixelToData(x, y float64) (timeMs, price float64) {
	timeMs = t.win.TimeStart + x/t.sx
	price = t.win.PriceMin + (t.h-y)/t.sy
	return timeMs, price
}

// Window returns the view window the transform was derived from.
func (t Transform) Window() ViewWindow { return t.win }

// Width returns the viewport pixel width.
func (t Transform) Width() float64 { return t.w }

// Height returns the viewport pixel height.
func (t Transform) Height() float64 { return t.h }

// Config bounds the zoom range.
type Config struct {
	// MinTimeSpanMs is the narrowest the time window may zoom; prevents
	// degenerate zero-width windows.
	MinTimeSpanMs float64
	// MinPriceSpan is the narrowest the price window may zoom.
	MinPriceSpan float64
}

// DefaultConfig returns the zoom bounds used when none are configured.
func DefaultConfig() Config {
	return Config{MinTimeSpanMs: 1, MinPriceSpan: 1e-9}
}

// Per-call zoom factors are clamped to this range before applying.
const (
	minZoomFactor = 0.01
	maxZoomFactor = 100.0
)

// Model holds the current view window, the series extent used for
// clamping, and the derived transform. Not safe for concurrent use; it
// lives on the render thread.
type Model struct {
	win          ViewWindow
	w, h         float64
	tr           Transform
	timeFirst    float64
	timeLast     float64
	priceLo      float64
	priceHi      float64
	cfg          Config
	autoFitPrice bool
	clampCount   uint64
}

// NewModel creates a model showing the full series extent in a 1x1 pixel
// viewport; call Resize with the real size before drawing.
func NewModel(timeFirst, timeLast int64, priceLo, priceHi float64, cfg Config) *Model {
	if cfg.MinTimeSpanMs <= 0 {
		cfg.MinTimeSpanMs = DefaultConfig().MinTimeSpanMs
	}
	if cfg.MinPriceSpan <= 0 {
		cfg.MinPriceSpan = DefaultConfig().MinPriceSpan
	}
	m := &Model{
		timeFirst:    float64(timeFirst),
		timeLast:     float64(timeLast),
		priceLo:      priceLo,
		priceHi:      priceHi,
		cfg:          cfg,
		w:            1,
		h:            1,
		autoFitPrice: true,
	}
	m.win = ViewWindow{
		TimeStart: m.timeFirst,
		TimeEnd:   m.timeLast,
		PriceMin:  priceLo,
		PriceMax:  priceHi,
	}
	m.sanitizeWindow()
	m.tr = newTransform(m.win, m.w, m.h)
	return m
}

// Window returns the current view window.
func (m *Model) Window() ViewWindow { return m.win }

// Transform returns the transform for the current window and pixel size.
func (m *Model) Transform() Transform { return m.tr }

// ClampCount reports how many navigation requests were clamped. Clamping
// is expected interaction behavior, not a fault; the counter exists for
// tests and debug logging.
func (m *Model) ClampCount() uint64 { return m.clampCount }

// AutoFitPrice reports whether the price range follows the visible slice.
func (m *Model) AutoFitPrice() bool { return m.autoFitPrice }

// SetAutoFitPrice re-enables (or disables) automatic price fitting.
func (m *Model) SetAutoFitPrice(on bool) { m.autoFitPrice = on }

// SetExtent updates the series extent used for clamping, after an append.
// The current window is re-clamped against the new extent.
func (m *Model) SetExtent(timeFirst, timeLast int64, priceLo, priceHi float64) {
	m.timeFirst = float64(timeFirst)
	m.timeLast = float64(timeLast)
	m.priceLo = priceLo
	m.priceHi = priceHi
	m.sanitizeWindow()
	m.tr = newTransform(m.win, m.w, m.h)
}

// Resize recomputes the transform for a new pixel size; the window is
// unchanged.
func (m *Model) Resize(w, h float64) {
	if w <= 0 || h <= 0 || math.IsNaN(w) || math.IsNaN(h) {
		return
	}
	m.w = w
	m.h = h
	m.tr = newTransform(m.win, m.w, m.h)
}

// SetWindow replaces the window wholesale (zoom-to-selection), clamped to
// the series extent.
func (m *Model) SetWindow(win ViewWindow) {
	m.win = win
	m.sanitizeWindow()
	m.tr = newTransform(m.win, m.w, m.h)
}

// Pan shifts the window by a pixel delta so that the content follows the
// pointer: dragging right reveals earlier data, dragging down reveals
// higher prices. O(1); clamped to the series extent. The vertical
// component is ignored while the price range auto-fits the visible slice.
func (m *Model) Pan(dxPx, dyPx float64) {
	if math.IsNaN(dxPx) || math.IsNaN(dyPx) || math.IsInf(dxPx, 0) || math.IsInf(dyPx, 0) {
		return
	}
	dt := -dxPx / m.tr.sx
	m.win.TimeStart += dt
	m.win.TimeEnd += dt
	if dyPx != 0 && !m.autoFitPrice {
		dp := dyPx / m.tr.sy
		m.win.PriceMin += dp
		m.win.PriceMax += dp
	}
	m.sanitizeWindow()
	m.tr = newTransform(m.win, m.w, m.h)
}

// Zoom rescales both axes around the data point under the pivot pixel, so
// that point stays under the pivot afterwards. factor > 1 zooms in. The
// factor and the resulting spans are clamped; when no clamp binds, the
// pivot invariance is exact.
func (m *Model) Zoom(factor float64, pivotX, pivotY float64) {
	m.zoom(factor, pivotX, pivotY, true, true)
}

// ZoomTime rescales the time axis only, anchored at pivotX.
func (m *Model) ZoomTime(factor float64, pivotX float64) {
	m.zoom(factor, pivotX, m.h/2, true, false)
}

// ZoomPrice rescales the price axis only, anchored at pivotY. Switches
// the price range to manual (auto-fit off).
func (m *Model) ZoomPrice(factor float64, pivotY float64) {
	m.zoom(factor, m.w/2, pivotY, false, true)
}

func (m *Model) zoom(factor, pivotX, pivotY float64, timeAxis, priceAxis bool) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return
	}
	if factor < minZoomFactor {
		factor = minZoomFactor
		m.clampCount++
	} else if factor > maxZoomFactor {
		factor = maxZoomFactor
		m.clampCount++
	}
	pivotX = clampFloat(pivotX, 0, m.w)
	pivotY = clampFloat(pivotY, 0, m.h)

	// Convert the pivot pixel to data space before rescaling, then anchor
	// the rescaled window on it.
	anchorT, anchorP := m.tr.PixelToData(pivotX, pivotY)

	if timeAxis {
		newSpan := m.win.TimeSpan() / factor
		minSpan := m.cfg.MinTimeSpanMs
		maxSpan := m.timeLast - m.timeFirst
		if maxSpan < minSpan {
			maxSpan = minSpan
		}
		if newSpan < minSpan {
			newSpan = minSpan
			m.clampCount++
		} else if newSpan > maxSpan {
			newSpan = maxSpan
			m.clampCount++
		}
		m.win.TimeStart = anchorT - (pivotX/m.w)*newSpan
		m.win.TimeEnd = m.win.TimeStart + newSpan
	}

	if priceAxis {
		newSpan := m.win.PriceSpan() / factor
		if newSpan < m.cfg.MinPriceSpan {
			newSpan = m.cfg.MinPriceSpan
			m.clampCount++
		}
		top := anchorP + (pivotY/m.h)*newSpan
		m.win.PriceMax = top
		m.win.PriceMin = top - newSpan
		m.autoFitPrice = false
	}

	m.sanitizeWindow()
	m.tr = newTransform(m.win, m.w, m.h)
}

// FitPrice sets the price range from the visible slice's extremes,
// centered with headroom from the padding factor. Used while auto-fit is
// active, mirroring how the chart frames prices on pan.
func (m *Model) FitPrice(lo, hi, padding float64) {
	if math.IsNaN(lo) || math.IsNaN(hi) || hi < lo {
		return
	}
	if padding < 1 {
		padding = 1
	}
	center := (lo + hi) / 2
	span := (hi - lo) * padding
	if span <= 0 {
		span = 1
	}
	m.win.PriceMin = center - span/2
	m.win.PriceMax = center + span/2
	m.sanitizeWindow()
	m.tr = newTransform(m.win, m.w, m.h)
}

// sanitizeWindow restores the window invariants: positive spans, time
// range inside the series extent, price range overlapping it.
func (m *Model) sanitizeWindow() {
	clamped := false

	// Time span first, then position.
	span := m.win.TimeSpan()
	extent := m.timeLast - m.timeFirst
	minSpan := m.cfg.MinTimeSpanMs
	if extent < minSpan {
		extent = minSpan
	}
	if math.IsNaN(span) || span < minSpan {
		span = minSpan
		clamped = true
	}
	if span > extent {
		span = extent
		clamped = true
	}
	if m.win.TimeStart < m.timeFirst {
		m.win.TimeStart = m.timeFirst
		clamped = true
	}
	if m.win.TimeStart+span > m.timeLast {
		m.win.TimeStart = m.timeLast - span
		if m.win.TimeStart < m.timeFirst {
			m.win.TimeStart = m.timeFirst
		}
		clamped = true
	}
	m.win.TimeEnd = m.win.TimeStart + span

	// Price: keep the span, but the window must overlap the series'
	// price extent.
	pspan := m.win.PriceSpan()
	if math.IsNaN(pspan) || pspan < m.cfg.MinPriceSpan {
		pspan = m.cfg.MinPriceSpan
		m.win.PriceMax = m.win.PriceMin + pspan
		clamped = true
	}
	if m.win.PriceMax < m.priceLo {
		m.win.PriceMax = m.priceLo
		m.win.PriceMin = m.win.PriceMax - pspan
		clamped = true
	}
	if m.win.PriceMin > m.priceHi {
		m.win.PriceMin = m.priceHi
		m.win.PriceMax = m.win.PriceMin + pspan
		clamped = true
	}

	if clamped {
		m.clampCount++
		logrus.Debugf("viewport: window clamped to extent (window=%+v)", m.win)
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
