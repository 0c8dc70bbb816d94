package interaction

import (
	"testing"

	"candlelab/go_src/label_store"
	"candlelab/go_src/schema"
	"candlelab/go_src/series_store"
	"candlelab/go_src/viewport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

// newFixture builds ten bars (1000ms apart, t=0..9000), a 100x100px
// viewport over time 0..10000 / price 0..10, and a controller in cursor
// mode. One bar spans 10px, one price unit 10px.
func newFixture(t *testing.T) (*Controller, *viewport.Model, *series_store.SeriesHandle, *label_store.Store) {
	t.Helper()
	bars := make([]schema.Bar, 10)
	for i := range bars {
		f := float64(i)
		bars[i] = schema.Bar{Timestamp: int64(i) * 1000, Open: f, High: f + 1, Low: f, Close: f + 0.5, Volume: 100}
	}
	series, err := series_store.Load(bars)
	require.NoError(t, err)

	model := viewport.NewModel(0, 10000, 0, 10, viewport.DefaultConfig())
	model.Resize(100, 100)
	model.SetAutoFitPrice(false)

	labels := label_store.NewStore()
	return NewController(model, series, labels), model, series, labels
}

func TestController_HoverTracksNearestBar(t *testing.T) {
	c, _, _, _ := newFixture(t)

	c.Pointer(PointerEvent{Kind: PointerMove, X: 32, Y: 50})
	hover, ok := c.Hover()
	require.True(t, ok)
	assert.Equal(t, 3, hover.Index)
	assert.Equal(t, int64(3000), hover.Timestamp)
	assert.Equal(t, 3.0, hover.Open)

	c.Pointer(PointerEvent{Kind: PointerLeave})
	_, ok = c.Hover()
	assert.False(t, ok)
}

func TestController_HoverClampsOutOfRangeCoordinates(t *testing.T) {
	c, _, _, _ := newFixture(t)

	// Far right of the viewport clamps to the edge, which resolves to the
	// nearest (last) bar instead of panicking or missing.
	c.Pointer(PointerEvent{Kind: PointerMove, X: 9999, Y: -50})
	hover, ok := c.Hover()
	require.True(t, ok)
	assert.Equal(t, 9, hover.Index)
}

func TestController_SecondaryDragPansInAnyMode(t *testing.T) {
	for _, mode := range []Mode{ModeCursor, ModePan, ModeZoomSelect, ModeLabel} {
		t.Run(string(mode), func(t *testing.T) {
			c, m, _, _ := newFixture(t)
			m.SetWindow(viewport.ViewWindow{TimeStart: 2000, TimeEnd: 6000, PriceMin: 2, PriceMax: 8})
			c.SetMode(mode)

			c.Pointer(PointerEvent{Kind: PointerDown, X: 50, Y: 50, Button: ButtonSecondary})
			c.Pointer(PointerEvent{Kind: PointerMove, X: 30, Y: 50})
			c.Pointer(PointerEvent{Kind: PointerUp, X: 30, Y: 50, Button: ButtonSecondary})

			// 20px left at 40ms/px drags the content 800ms forward.
			assert.InDelta(t, 2800, m.Window().TimeStart, tol)
			assert.InDelta(t, 6800, m.Window().TimeEnd, tol)
		})
	}
}

func TestController_PrimaryDragPansInPanMode(t *testing.T) {
	c, m, _, _ := newFixture(t)
	m.SetWindow(viewport.ViewWindow{TimeStart: 2000, TimeEnd: 6000, PriceMin: 2, PriceMax: 8})
	c.SetMode(ModePan)

	c.Pointer(PointerEvent{Kind: PointerDown, X: 50, Y: 50, Button: ButtonPrimary})
	c.Pointer(PointerEvent{Kind: PointerMove, X: 30, Y: 40})
	c.Pointer(PointerEvent{Kind: PointerUp, X: 30, Y: 40, Button: ButtonPrimary})

	win := m.Window()
	assert.InDelta(t, 2800, win.TimeStart, tol)
	// 10px upward at 0.06 price/px drags the content up 0.6 units.
	assert.InDelta(t, 1.4, win.PriceMin, tol)
}

func TestController_WheelZoomsAtPointer(t *testing.T) {
	c, m, _, _ := newFixture(t)

	before := m.Window()
	anchorT, anchorP := m.Transform().PixelToData(30, 40)

	c.Wheel(WheelEvent{X: 30, Y: 40, Delta: 1})

	after := m.Window()
	assert.InDelta(t, before.TimeSpan()/1.15, after.TimeSpan(), tol)
	assert.InDelta(t, before.PriceSpan()/1.15, after.PriceSpan(), tol)

	gotT, gotP := m.Transform().PixelToData(30, 40)
	assert.InDelta(t, anchorT, gotT, tol)
	assert.InDelta(t, anchorP, gotP, tol)
}

func TestController_WheelOutZoomsBackOut(t *testing.T) {
	c, m, _, _ := newFixture(t)
	m.SetWindow(viewport.ViewWindow{TimeStart: 2000, TimeEnd: 6000, PriceMin: 2, PriceMax: 8})

	span := m.Window().TimeSpan()
	c.Wheel(WheelEvent{X: 50, Y: 50, Delta: -1})
	assert.InDelta(t, span*1.15, m.Window().TimeSpan(), tol)
}

func TestController_LabelDragCreatesLabel(t *testing.T) {
	c, _, _, labels := newFixture(t)
	c.SetMode(ModeLabel)
	c.SetCategory("breakout")

	// Bar centers sit every 10px: x=22 is bar 2, x=61 is bar 6.
	c.Pointer(PointerEvent{Kind: PointerDown, X: 22, Y: 50, Button: ButtonPrimary})
	c.Pointer(PointerEvent{Kind: PointerMove, X: 61, Y: 50})

	sel, ok := c.LabelSelection()
	require.True(t, ok)
	assert.Equal(t, 2, sel.StartIndex)
	assert.Equal(t, 6, sel.EndIndex)

	c.Pointer(PointerEvent{Kind: PointerUp, X: 61, Y: 50, Button: ButtonPrimary})

	all := labels.All()
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].StartIndex)
	assert.Equal(t, 6, all[0].EndIndex)
	assert.Equal(t, "breakout", all[0].Category)

	_, ok = c.LabelSelection()
	assert.False(t, ok)
}

func TestController_LabelDragNormalizesReversedRange(t *testing.T) {
	c, _, _, labels := newFixture(t)
	c.SetMode(ModeLabel)

	c.Pointer(PointerEvent{Kind: PointerDown, X: 61, Y: 50, Button: ButtonPrimary})
	c.Pointer(PointerEvent{Kind: PointerUp, X: 22, Y: 50, Button: ButtonPrimary})

	all := labels.All()
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].StartIndex)
	assert.Equal(t, 6, all[0].EndIndex)
}

func TestController_ZoomSelectDragSetsWindowAndReturnsToCursor(t *testing.T) {
	c, m, _, _ := newFixture(t)
	c.SetMode(ModeZoomSelect)

	c.Pointer(PointerEvent{Kind: PointerDown, X: 20, Y: 80, Button: ButtonPrimary})
	c.Pointer(PointerEvent{Kind: PointerMove, X: 60, Y: 20})

	rect, ok := c.ZoomSelection()
	require.True(t, ok)
	assert.InDelta(t, 20, rect.X0, tol)
	assert.InDelta(t, 60, rect.X1, tol)

	c.Pointer(PointerEvent{Kind: PointerUp, X: 60, Y: 20, Button: ButtonPrimary})

	win := m.Window()
	assert.InDelta(t, 2000, win.TimeStart, tol)
	assert.InDelta(t, 6000, win.TimeEnd, tol)
	assert.InDelta(t, 2, win.PriceMin, tol)
	assert.InDelta(t, 8, win.PriceMax, tol)
	assert.Equal(t, ModeCursor, c.Mode())
}

func TestController_ZoomSelectIgnoresTinyDrag(t *testing.T) {
	c, m, _, _ := newFixture(t)
	c.SetMode(ModeZoomSelect)
	before := m.Window()

	c.Pointer(PointerEvent{Kind: PointerDown, X: 50, Y: 50, Button: ButtonPrimary})
	c.Pointer(PointerEvent{Kind: PointerUp, X: 51, Y: 51, Button: ButtonPrimary})

	assert.Equal(t, before, m.Window())
	assert.Equal(t, ModeCursor, c.Mode())
}

func TestController_KeyboardNavigation(t *testing.T) {
	c, m, _, _ := newFixture(t)
	m.SetWindow(viewport.ViewWindow{TimeStart: 2000, TimeEnd: 6000, PriceMin: 2, PriceMax: 8})

	c.Key(KeyEvent{Key: KeyRight})
	// 10% of 100px at 40ms/px moves the window 400ms later.
	assert.InDelta(t, 2400, m.Window().TimeStart, tol)

	c.Key(KeyEvent{Key: KeyLeft})
	assert.InDelta(t, 2000, m.Window().TimeStart, tol)

	span := m.Window().TimeSpan()
	c.Key(KeyEvent{Key: KeyUp})
	assert.InDelta(t, span/1.25, m.Window().TimeSpan(), tol)

	pspan := m.Window().PriceSpan()
	c.Key(KeyEvent{Key: KeyPlus})
	assert.InDelta(t, pspan/1.25, m.Window().PriceSpan(), tol)
	c.Key(KeyEvent{Key: KeyMinus})
	assert.InDelta(t, pspan, m.Window().PriceSpan(), tol)
}

func TestController_EscapeCancelsLabelDrag(t *testing.T) {
	c, _, _, labels := newFixture(t)
	c.SetMode(ModeLabel)

	c.Pointer(PointerEvent{Kind: PointerDown, X: 22, Y: 50, Button: ButtonPrimary})
	c.Key(KeyEvent{Key: KeyEscape})
	c.Pointer(PointerEvent{Kind: PointerUp, X: 61, Y: 50, Button: ButtonPrimary})

	assert.Equal(t, 0, labels.Len())
}

func TestController_SetModeValidation(t *testing.T) {
	c, _, _, _ := newFixture(t)

	c.SetMode(Mode("teleport"))
	assert.Equal(t, ModeCursor, c.Mode())

	c.SetMode(ModeLabel)
	assert.Equal(t, ModeLabel, c.Mode())

	// Switching modes cancels an in-flight drag.
	c.Pointer(PointerEvent{Kind: PointerDown, X: 22, Y: 50, Button: ButtonPrimary})
	c.SetMode(ModeCursor)
	_, ok := c.LabelSelection()
	assert.False(t, ok)
}

func TestController_WheelIgnoredDuringLabelDrag(t *testing.T) {
	c, m, _, _ := newFixture(t)
	c.SetMode(ModeLabel)
	before := m.Window()

	c.Pointer(PointerEvent{Kind: PointerDown, X: 22, Y: 50, Button: ButtonPrimary})
	c.Wheel(WheelEvent{X: 50, Y: 50, Delta: 2})

	assert.Equal(t, before, m.Window())
}
