// Package interaction translates normalized pointer, wheel and keyboard
// events into viewport mutations, hover lookups and label edits. It is
// toolkit-agnostic: the UI shell converts its native events into the
// types here, so the whole state machine tests without a window system.
package interaction

import (
	"math"

	"candlelab/go_src/label_store"
	"candlelab/go_src/schema"
	"candlelab/go_src/series_store"
	"candlelab/go_src/viewport"

	"github.com/sirupsen/logrus"
)

// --- Modes ---

// Mode selects how primary-button drags are interpreted.
type Mode string

const (
	// ModeCursor tracks the pointer and reports hover info.
	ModeCursor Mode = "cursor"
	// ModePan drags the view with the primary button.
	ModePan Mode = "pan"
	// ModeZoomSelect arms a one-shot drag-a-rectangle zoom.
	ModeZoomSelect Mode = "zoom-select"
	// ModeLabel drags out a bar range and creates a label on release.
	ModeLabel Mode = "label"
)

var validModes = map[Mode]bool{
	ModeCursor:     true,
	ModePan:        true,
	ModeZoomSelect: true,
	ModeLabel:      true,
}

// Valid reports whether the mode is a known interaction mode.
func (m Mode) Valid() bool { return validModes[m] }

// --- Events ---

// PointerKind classifies a pointer event.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerUp
	PointerMove
	PointerLeave
)

// Button identifies which pointer button an event refers to.
type Button int

const (
	ButtonNone Button = iota
	ButtonPrimary
	ButtonSecondary
)

// PointerEvent is a normalized pointer event in viewport pixel
// coordinates.
type PointerEvent struct {
	Kind   PointerKind
	X, Y   float64
	Button Button
}

// WheelEvent is a scroll step at a pointer position. Positive Delta
// zooms in.
type WheelEvent struct {
	X, Y  float64
	Delta float64
}

// Key identifies a handled keyboard shortcut.
type Key int

const (
	KeyLeft Key = iota
	KeyRight
	KeyUp
	KeyDown
	KeyPlus
	KeyMinus
	KeyEscape
)

// KeyEvent is a normalized key press.
type KeyEvent struct {
	Key Key
}

// --- Controller ---

const (
	// wheelZoomBase is the magnification per wheel notch.
	wheelZoomBase = 1.15
	// keyZoomFactor is the magnification per arrow-key step.
	keyZoomFactor = 1.25
	// keyPanFrac is the fraction of the viewport width panned per
	// arrow-key step.
	keyPanFrac = 0.1
	// minSelectPx is the smallest drag, per axis, accepted as a zoom
	// selection. Anything smaller is treated as an accidental click.
	minSelectPx = 3
)

// Selection is an in-flight drag selection, in inclusive bar indices.
type Selection struct {
	StartIndex int
	EndIndex   int
}

// PixelRect is an in-flight zoom selection rectangle.
type PixelRect struct {
	X0, Y0, X1, Y1 float64
}

// Controller owns the interaction state machine. Not safe for concurrent
// use; it lives on the UI event loop.
type Controller struct {
	model  *viewport.Model
	series *series_store.SeriesHandle
	labels *label_store.Store

	mode     Mode
	category string

	// pan drag
	panning   bool
	panButton Button
	lastX     float64
	lastY     float64

	// primary drag in ModeLabel / ModeZoomSelect
	dragActive bool
	dragStartX float64
	dragStartY float64
	dragIndex  int

	hover    schema.HoverInfo
	hasHover bool
}

// NewController wires the controller to its collaborators. The initial
// mode is ModeCursor.
func NewController(model *viewport.Model, series *series_store.SeriesHandle, labels *label_store.Store) *Controller {
	return &Controller{
		model:     model,
		series:    series,
		labels:    labels,
		mode:      ModeCursor,
		category:  "unlabeled",
		dragIndex: -1,
	}
}

// Mode returns the current interaction mode.
func (c *Controller) Mode() Mode { return c.mode }

// SetMode switches the interaction mode, cancelling any in-flight drag.
// Unknown modes are ignored and logged.
func (c *Controller) SetMode(m Mode) {
	if !m.Valid() {
		logrus.Warnf("Ignoring unknown interaction mode %q", m)
		return
	}
	if m == c.mode {
		return
	}
	c.cancelDrags()
	c.mode = m
}

// Category returns the category applied to newly created labels.
func (c *Controller) Category() string { return c.category }

// SetCategory sets the category applied to newly created labels.
func (c *Controller) SetCategory(category string) {
	if category != "" {
		c.category = category
	}
}

// Hover returns the bar under the cursor, when there is one.
func (c *Controller) Hover() (schema.HoverInfo, bool) {
	return c.hover, c.hasHover
}

// LabelSelection returns the in-flight label drag range, for highlight
// rendering.
func (c *Controller) LabelSelection() (Selection, bool) {
	if c.mode != ModeLabel || !c.dragActive || c.dragIndex < 0 {
		return Selection{}, false
	}
	cur := c.nearestIndex(c.lastX, c.lastY)
	if cur < 0 {
		cur = c.dragIndex
	}
	sel := Selection{StartIndex: c.dragIndex, EndIndex: cur}
	if sel.EndIndex < sel.StartIndex {
		sel.StartIndex, sel.EndIndex = sel.EndIndex, sel.StartIndex
	}
	return sel, true
}

// ZoomSelection returns the in-flight zoom rectangle, for rubber-band
// rendering.
func (c *Controller) ZoomSelection() (PixelRect, bool) {
	if c.mode != ModeZoomSelect || !c.dragActive {
		return PixelRect{}, false
	}
	return PixelRect{X0: c.dragStartX, Y0: c.dragStartY, X1: c.lastX, Y1: c.lastY}, true
}

// Pointer feeds one pointer event through the state machine.
func (c *Controller) Pointer(ev PointerEvent) {
	ev.X, ev.Y = c.clamp(ev.X, ev.Y)

	switch ev.Kind {
	case PointerDown:
		c.pointerDown(ev)
	case PointerMove:
		c.pointerMove(ev)
	case PointerUp:
		c.pointerUp(ev)
	case PointerLeave:
		c.cancelDrags()
		c.hasHover = false
	}
}

func (c *Controller) pointerDown(ev PointerEvent) {
	c.lastX, c.lastY = ev.X, ev.Y

	// The secondary button pans in every mode, so labelling never locks
	// the user out of navigation.
	if ev.Button == ButtonSecondary || (ev.Button == ButtonPrimary && c.mode == ModePan) {
		c.panning = true
		c.panButton = ev.Button
		return
	}

	if ev.Button != ButtonPrimary {
		return
	}
	switch c.mode {
	case ModeLabel:
		if idx := c.nearestIndex(ev.X, ev.Y); idx >= 0 {
			c.dragActive = true
			c.dragIndex = idx
			c.dragStartX, c.dragStartY = ev.X, ev.Y
		}
	case ModeZoomSelect:
		c.dragActive = true
		c.dragStartX, c.dragStartY = ev.X, ev.Y
	}
}

func (c *Controller) pointerMove(ev PointerEvent) {
	dx, dy := ev.X-c.lastX, ev.Y-c.lastY
	c.lastX, c.lastY = ev.X, ev.Y

	if c.panning {
		c.model.Pan(dx, dy)
		return
	}
	if c.mode == ModeCursor {
		c.updateHover(ev.X, ev.Y)
	}
}

func (c *Controller) pointerUp(ev PointerEvent) {
	if c.panning && ev.Button == c.panButton {
		c.panning = false
		return
	}
	if !c.dragActive || ev.Button != ButtonPrimary {
		return
	}
	c.dragActive = false

	switch c.mode {
	case ModeLabel:
		end := c.nearestIndex(ev.X, ev.Y)
		if end < 0 {
			end = c.dragIndex
		}
		if c.dragIndex >= 0 {
			if _, err := c.labels.Add(c.dragIndex, end, c.category); err != nil {
				logrus.Errorf("Failed to create label: %v", err)
			}
		}
		c.dragIndex = -1
	case ModeZoomSelect:
		c.zoomToRect(c.dragStartX, c.dragStartY, ev.X, ev.Y)
		// One-shot: back to cursor after a selection.
		c.mode = ModeCursor
	}
}

// Wheel zooms around the pointer. Ignored mid-label-drag so the anchor
// bar cannot slide out from under the selection.
func (c *Controller) Wheel(ev WheelEvent) {
	if c.dragActive && c.mode == ModeLabel {
		return
	}
	x, y := c.clamp(ev.X, ev.Y)
	factor := math.Pow(wheelZoomBase, ev.Delta)
	c.model.Zoom(factor, x, y)
	if c.mode == ModeCursor {
		c.updateHover(x, y)
	}
}

// Key handles keyboard navigation: arrows pan and zoom the time axis,
// plus/minus zoom the price axis, escape cancels a drag.
func (c *Controller) Key(ev KeyEvent) {
	tr := c.model.Transform()
	cx, cy := tr.Width()/2, tr.Height()/2

	switch ev.Key {
	case KeyLeft:
		c.model.Pan(tr.Width()*keyPanFrac, 0)
	case KeyRight:
		c.model.Pan(-tr.Width()*keyPanFrac, 0)
	case KeyUp:
		c.model.ZoomTime(keyZoomFactor, cx)
	case KeyDown:
		c.model.ZoomTime(1/keyZoomFactor, cx)
	case KeyPlus:
		c.model.ZoomPrice(keyZoomFactor, cy)
	case KeyMinus:
		c.model.ZoomPrice(1/keyZoomFactor, cy)
	case KeyEscape:
		c.cancelDrags()
	}
}

// --- helpers ---

// clamp pins out-of-range pixel coordinates to the viewport edge before
// they are inverted into data space.
func (c *Controller) clamp(x, y float64) (float64, float64) {
	tr := c.model.Transform()
	return math.Min(math.Max(x, 0), tr.Width()), math.Min(math.Max(y, 0), tr.Height())
}

func (c *Controller) nearestIndex(x, y float64) int {
	timeMs, price := c.model.Transform().PixelToData(x, y)
	if math.IsNaN(timeMs) || math.IsInf(timeMs, 0) {
		return -1
	}
	return c.series.Nearest(int64(math.Round(timeMs)), price)
}

func (c *Controller) updateHover(x, y float64) {
	idx := c.nearestIndex(x, y)
	if idx < 0 {
		c.hasHover = false
		return
	}
	bar, ok := c.series.Bar(idx)
	if !ok {
		c.hasHover = false
		return
	}
	c.hover = schema.HoverInfo{
		Index:     idx,
		Timestamp: bar.Timestamp,
		Open:      bar.Open,
		High:      bar.High,
		Low:       bar.Low,
		Close:     bar.Close,
		Volume:    bar.Volume,
	}
	c.hasHover = true
}

func (c *Controller) zoomToRect(x0, y0, x1, y1 float64) {
	if math.Abs(x1-x0) < minSelectPx || math.Abs(y1-y0) < minSelectPx {
		return
	}
	tr := c.model.Transform()
	t0, p0 := tr.PixelToData(math.Min(x0, x1), math.Max(y0, y1))
	t1, p1 := tr.PixelToData(math.Max(x0, x1), math.Min(y0, y1))
	c.model.SetAutoFitPrice(false)
	c.model.SetWindow(viewport.ViewWindow{
		TimeStart: t0,
		TimeEnd:   t1,
		PriceMin:  p0,
		PriceMax:  p1,
	})
}

func (c *Controller) cancelDrags() {
	c.panning = false
	c.dragActive = false
	c.dragIndex = -1
}
