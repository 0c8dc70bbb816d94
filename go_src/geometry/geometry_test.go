package geometry

import (
	"math"
	"testing"

	"candlelab/go_src/schema"
	"candlelab/go_src/series_store"
	"candlelab/go_src/viewport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSlice builds a visible slice of n well-formed bars, one per 1000ms
// starting at t=0, with price i..i+1 and volume 100.
func makeSlice(n int) series_store.Slice {
	bars := make([]schema.Bar, n)
	flags := make([]schema.BarFlags, n)
	for i := range bars {
		f := float64(i)
		bars[i] = schema.Bar{
			Timestamp: int64(i) * 1000,
			Open:      f,
			High:      f + 1,
			Low:       f,
			Close:     f + 0.5,
			Volume:    100,
		}
		flags[i] = bars[i].Flags()
	}
	return series_store.Slice{Bars: bars, Flags: flags}
}

// makeTransform builds a transform over an n-bar, 1000ms-interval slice in
// a 800x600 viewport.
func makeTransform(n int) viewport.Transform {
	m := viewport.NewModel(0, int64(n)*1000, 0, float64(n)+1, viewport.DefaultConfig())
	m.Resize(800, 600)
	return m.Transform()
}

func testStyle() schema.StyleConfig {
	s := schema.StyleConfig{
		UpColor:          schema.Color{R: 0, G: 204, B: 0, A: 255},
		DownColor:        schema.Color{R: 204, G: 0, B: 0, A: 255},
		TieColor:         schema.Color{R: 128, G: 128, B: 128, A: 255},
		WickColor:        schema.Color{R: 180, G: 180, B: 180, A: 255},
		UpVolumeColor:    schema.Color{R: 0, G: 204, B: 0, A: 180},
		DownVolumeColor:  schema.Color{R: 204, G: 0, B: 0, A: 180},
		GridColor:        schema.Color{R: 80, G: 80, B: 80, A: 255},
		GridMinSpacingPx: 40,
		VolumePaneRatio:  0.25,
	}
	return s
}

func TestBuild_EmptySlice(t *testing.T) {
	batch := Build(series_store.Slice{}, makeTransform(10), testStyle(), DefaultConfig())

	assert.Equal(t, 0, batch.Bodies.QuadCount())
	assert.Equal(t, 0, batch.Wicks.SegmentCount())
	assert.Equal(t, 0, batch.Volumes.QuadCount())
	assert.Equal(t, 1, batch.DecimationFactor)
}

func TestBuild_OnePrimitivePerBarWithinBudget(t *testing.T) {
	slice := makeSlice(50)
	batch := Build(slice, makeTransform(50), testStyle(), DefaultConfig())

	assert.Equal(t, 50, batch.Bodies.QuadCount())
	assert.Equal(t, 50, batch.Wicks.SegmentCount())
	assert.Equal(t, 50, batch.Volumes.QuadCount())
	assert.Equal(t, 1, batch.DecimationFactor)
}

func TestBuild_DecimationBoundsBodyCount(t *testing.T) {
	cases := []struct {
		name       string
		bars       int
		budget     int
		wantFactor int
	}{
		{name: "exactly at budget", bars: 100, budget: 100, wantFactor: 1},
		{name: "one over budget", bars: 101, budget: 100, wantFactor: 2},
		{name: "ten times budget", bars: 1000, budget: 100, wantFactor: 10},
		{name: "uneven multiple", bars: 250, budget: 100, wantFactor: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slice := makeSlice(tc.bars)
			cfg := Config{PrimitiveBudget: tc.budget, BodyWidthFrac: 0.8}
			batch := Build(slice, makeTransform(tc.bars), testStyle(), cfg)

			assert.Equal(t, tc.wantFactor, batch.DecimationFactor)
			assert.LessOrEqual(t, batch.Bodies.QuadCount(), tc.budget)
			assert.Equal(t, batch.Bodies.QuadCount(), batch.Wicks.SegmentCount())
		})
	}
}

func TestBuild_DecimationAggregatesBuckets(t *testing.T) {
	bars := []schema.Bar{
		{Timestamp: 0, Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
		{Timestamp: 1000, Open: 11, High: 20, Low: 5, Close: 14, Volume: 300},
		{Timestamp: 2000, Open: 14, High: 15, Low: 13, Close: 13, Volume: 50},
		{Timestamp: 3000, Open: 13, High: 16, Low: 12, Close: 15, Volume: 50},
	}
	flags := make([]schema.BarFlags, len(bars))
	for i, b := range bars {
		flags[i] = b.Flags()
	}
	slice := series_store.Slice{Bars: bars, Flags: flags}

	m := viewport.NewModel(0, 4000, 0, 25, viewport.DefaultConfig())
	m.Resize(400, 250)
	tr := m.Transform()

	cfg := Config{PrimitiveBudget: 2, BodyWidthFrac: 0.8}
	batch := Build(slice, tr, testStyle(), cfg)
	require.Equal(t, 2, batch.DecimationFactor)
	require.Equal(t, 2, batch.Bodies.QuadCount())
	require.Equal(t, 2, batch.Wicks.SegmentCount())

	// First bucket: open 10 (first bar), close 14 (last bar), wick 5..20.
	_, yOpen := tr.DataToPixel(0, 10)
	_, yClose := tr.DataToPixel(0, 14)
	assert.InDelta(t, yOpen, float64(batch.Bodies.Vertices[1]), 0.01)
	assert.InDelta(t, yClose, float64(batch.Bodies.Vertices[5]), 0.01)

	_, yLo := tr.DataToPixel(0, 5)
	_, yHi := tr.DataToPixel(0, 20)
	assert.InDelta(t, yLo, float64(batch.Wicks.Vertices[1]), 0.01)
	assert.InDelta(t, yHi, float64(batch.Wicks.Vertices[3]), 0.01)

	// Bucket volumes sum, so the first volume quad (400) is 4x as tall as
	// the second (100).
	h1 := float64(batch.Volumes.Vertices[1] - batch.Volumes.Vertices[5])
	h2 := float64(batch.Volumes.Vertices[9] - batch.Volumes.Vertices[13])
	assert.InDelta(t, 4.0, h1/h2, 0.01)
}

func TestBuild_MalformedBarGetsZeroHeightWick(t *testing.T) {
	bars := []schema.Bar{
		// low above both open and close
		{Timestamp: 0, Open: 10, High: 12, Low: 11, Close: 10.5, Volume: 100},
	}
	slice := series_store.Slice{Bars: bars, Flags: []schema.BarFlags{bars[0].Flags()}}
	require.NotZero(t, slice.Flags[0]&schema.BarMalformed)

	m := viewport.NewModel(0, 1000, 0, 20, viewport.DefaultConfig())
	m.Resize(100, 100)
	tr := m.Transform()

	batch := Build(slice, tr, testStyle(), DefaultConfig())
	require.Equal(t, 1, batch.Wicks.SegmentCount())

	_, yClose := tr.DataToPixel(0, 10.5)
	assert.InDelta(t, yClose, float64(batch.Wicks.Vertices[1]), 0.01)
	assert.InDelta(t, yClose, float64(batch.Wicks.Vertices[3]), 0.01)
}

func TestBuild_BodyColorsFollowDirection(t *testing.T) {
	bars := []schema.Bar{
		{Timestamp: 0, Open: 10, High: 12, Low: 9, Close: 11, Volume: 1},    // up
		{Timestamp: 1000, Open: 11, High: 12, Low: 9, Close: 10, Volume: 1}, // down
		{Timestamp: 2000, Open: 10, High: 12, Low: 9, Close: 10, Volume: 1}, // tie
	}
	flags := make([]schema.BarFlags, len(bars))
	for i, b := range bars {
		flags[i] = b.Flags()
	}
	slice := series_store.Slice{Bars: bars, Flags: flags}
	style := testStyle()

	batch := Build(slice, makeTransform(3), style, DefaultConfig())
	require.Equal(t, 3, batch.Bodies.QuadCount())

	wantG := []float32{204.0 / 255, 0, 128.0 / 255}
	for i, g := range wantG {
		assert.InDelta(t, g, batch.Bodies.Colors[i*16+1], 0.001, "quad %d green channel", i)
	}
}

func TestBuild_VolumePaneStaysInBottomFraction(t *testing.T) {
	slice := makeSlice(10)
	m := viewport.NewModel(0, 10000, 0, 11, viewport.DefaultConfig())
	m.Resize(400, 400)
	batch := Build(slice, m.Transform(), testStyle(), DefaultConfig())

	// VolumePaneRatio 0.25 of 400px leaves 300px for price; with 1.05
	// headroom no volume quad may rise above y=300.
	paneTop := 400.0 * 0.75
	for i := 0; i < batch.Volumes.VertexCount(); i++ {
		y := float64(batch.Volumes.Vertices[i*2+1])
		assert.GreaterOrEqual(t, y, paneTop-0.01)
		assert.LessOrEqual(t, y, 400.0+0.01)
	}
}

func TestBuild_GridRespectsMinimumSpacing(t *testing.T) {
	slice := makeSlice(200)
	m := viewport.NewModel(0, 200000, 0, 201, viewport.DefaultConfig())
	m.Resize(800, 600)
	style := testStyle()
	style.GridMinSpacingPx = 80

	batch := Build(slice, m.Transform(), style, DefaultConfig())
	require.NotZero(t, batch.Grid.SegmentCount())

	var vertical, horizontal []float64
	for i := 0; i < batch.Grid.SegmentCount(); i++ {
		x0 := float64(batch.Grid.Vertices[i*4])
		y0 := float64(batch.Grid.Vertices[i*4+1])
		x1 := float64(batch.Grid.Vertices[i*4+2])
		if x0 == x1 {
			vertical = append(vertical, x0)
		} else {
			horizontal = append(horizontal, y0)
		}
	}
	for i := 1; i < len(vertical); i++ {
		assert.GreaterOrEqual(t, vertical[i]-vertical[i-1], 80.0-0.01)
	}
	for i := 1; i < len(horizontal); i++ {
		assert.GreaterOrEqual(t, math.Abs(horizontal[i]-horizontal[i-1]), 60.0-0.01)
	}
	// Never more lines than the pixel spacing allows.
	assert.LessOrEqual(t, len(vertical), 800/80+1)
	assert.LessOrEqual(t, len(horizontal), 600/80)
}

func TestBuild_OverlayBreaksAtNaN(t *testing.T) {
	slice := makeSlice(5)
	slice.Indicators = map[string][]float64{
		"sma": {1, 2, math.NaN(), 3, 4},
	}
	batch := Build(slice, makeTransform(5), testStyle(), DefaultConfig())

	// Segments 0-1 and 3-4 survive; the NaN at index 2 breaks the line.
	assert.Equal(t, 2, batch.Overlays.SegmentCount())
}

func TestBuild_OverlaysUseStablePaletteOrder(t *testing.T) {
	slice := makeSlice(3)
	slice.Indicators = map[string][]float64{
		"b_second": {1, 1, 1},
		"a_first":  {2, 2, 2},
	}
	style := testStyle()
	style.OverlayPalette = []schema.Color{
		{R: 10, G: 0, B: 0, A: 255},
		{R: 20, G: 0, B: 0, A: 255},
	}
	batch := Build(slice, makeTransform(3), style, DefaultConfig())
	require.Equal(t, 4, batch.Overlays.SegmentCount())

	// Names sort alphabetically, so a_first takes palette slot 0.
	assert.InDelta(t, 10.0/255, batch.Overlays.Colors[0], 0.001)
	assert.InDelta(t, 20.0/255, batch.Overlays.Colors[2*8], 0.001)
}

func TestBuild_SkipsNonFinitePrimitives(t *testing.T) {
	bars := []schema.Bar{
		{Timestamp: 0, Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
	}
	slice := series_store.Slice{Bars: bars, Flags: []schema.BarFlags{bars[0].Flags()}}

	// Degenerate zero-size viewport produces non-finite pixels; the batch
	// must come out empty rather than carrying NaN vertices.
	m := viewport.NewModel(0, 0, 10, 10, viewport.DefaultConfig())
	m.Resize(100, 100)
	batch := Build(slice, m.Transform(), testStyle(), DefaultConfig())

	for _, v := range batch.Bodies.Vertices {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}
	for _, v := range batch.Wicks.Vertices {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}
}

func TestBuild_PassesAreValidRendererKinds(t *testing.T) {
	require.Len(t, renderPasses, 3)
	for _, kind := range renderPasses {
		assert.True(t, kind.Valid(), "pass %q", kind)
	}
}

func TestBuild_GridExposesTickPositions(t *testing.T) {
	slice := makeSlice(200)
	m := viewport.NewModel(0, 200000, 0, 201, viewport.DefaultConfig())
	m.Resize(800, 600)
	batch := Build(slice, m.Transform(), testStyle(), DefaultConfig())

	require.NotEmpty(t, batch.PriceTicks)
	require.NotEmpty(t, batch.TimeTicks)
	assert.Equal(t, len(batch.PriceTicks)+len(batch.TimeTicks), batch.Grid.SegmentCount(),
		"every grid line carries exactly one tick")

	win := m.Window()
	for i, p := range batch.PriceTicks {
		assert.Greater(t, p, win.PriceMin)
		assert.Less(t, p, win.PriceMax)
		if i > 0 {
			assert.Greater(t, p, batch.PriceTicks[i-1])
		}
	}
	for i, ts := range batch.TimeTicks {
		assert.GreaterOrEqual(t, ts, win.TimeStart)
		assert.LessOrEqual(t, ts, win.TimeEnd)
		if i > 0 {
			assert.Greater(t, ts, batch.TimeTicks[i-1])
		}
	}
}
