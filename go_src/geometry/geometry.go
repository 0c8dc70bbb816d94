// Package geometry converts the visible slice of a series into
// per-primitive vertex and color data. Build is a pure function of its
// inputs; it holds no state between frames, which keeps it testable and
// cacheable.
package geometry

import (
	"math"
	"sort"

	"candlelab/go_src/schema"
	"candlelab/go_src/series_store"
	"candlelab/go_src/viewport"

	"github.com/sirupsen/logrus"
)

// QuadBatch holds axis-aligned quads: 4 vertices of 2 float32 coordinates
// each, with one RGBA color per vertex.
type QuadBatch struct {
	Vertices []float32
	Colors   []float32
}

// QuadCount returns the number of quads in the batch.
func (q QuadBatch) QuadCount() int { return len(q.Vertices) / 8 }

// VertexCount returns the number of vertices in the batch.
func (q QuadBatch) VertexCount() int { return len(q.Vertices) / 2 }

func (q *QuadBatch) add(x0, y0, x1, y1 float64, c schema.Color) {
	if !finite(x0, y0, x1, y1) {
		return // skip this primitive rather than corrupt the frame
	}
	q.Vertices = append(q.Vertices,
		float32(x0), float32(y0),
		float32(x1), float32(y0),
		float32(x1), float32(y1),
		float32(x0), float32(y1),
	)
	r, g, b, a := c.RGBA()
	for i := 0; i < 4; i++ {
		q.Colors = append(q.Colors, r, g, b, a)
	}
}

// LineBatch holds line segments: 2 vertices of 2 float32 coordinates each,
// with one RGBA color per vertex.
type LineBatch struct {
	Vertices []float32
	Colors   []float32
}

// SegmentCount returns the number of line segments in the batch.
func (l LineBatch) SegmentCount() int { return len(l.Vertices) / 4 }

// VertexCount returns the number of vertices in the batch.
func (l LineBatch) VertexCount() int { return len(l.Vertices) / 2 }

func (l *LineBatch) add(x0, y0, x1, y1 float64, c schema.Color) {
	if !finite(x0, y0, x1, y1) {
		return
	}
	l.Vertices = append(l.Vertices, float32(x0), float32(y0), float32(x1), float32(y1))
	r, g, b, a := c.RGBA()
	l.Colors = append(l.Colors, r, g, b, a, r, g, b, a)
}

// RenderBatch is the transient per-frame output of Build, consumed once by
// the buffer manager and then discarded or diffed against the previous
// batch.
type RenderBatch struct {
	Bodies   QuadBatch
	Wicks    LineBatch
	Volumes  QuadBatch
	Grid     LineBatch
	Overlays LineBatch

	// PriceTicks and TimeTicks are the data-space positions of the grid
	// lines, in draw order, so the UI shell can put axis labels next to
	// them without redoing the spacing math.
	PriceTicks []float64
	TimeTicks  []float64

	// DecimationFactor is 1 when every bar got its own body, k when every
	// k-th body aggregates a bucket of bars.
	DecimationFactor int
}

// Config bounds the geometry the builder may emit per frame.
type Config struct {
	// PrimitiveBudget is the maximum number of body quads per frame.
	// Visible ranges wider than the budget are decimated, which bounds
	// worst-case frame cost independent of dataset size.
	PrimitiveBudget int
	// BodyWidthFrac is the fraction of a bar slot the body occupies.
	BodyWidthFrac float64
}

// DefaultConfig matches the reference chart: bodies span 0.1..0.9 of
// their slot.
func DefaultConfig() Config {
	return Config{PrimitiveBudget: 4096, BodyWidthFrac: 0.8}
}

const volumeHeadroom = 1.05

// Build emits vertex data for the visible slice under the given transform
// and style. Malformed bars render with a zero-height wick at the close.
// When the slice exceeds the primitive budget the builder decimates:
// every k-th bar keeps a body built from its bucket's first open and last
// close, and the skipped bars' highs/lows fold into the kept wick.
func Build(slice series_store.Slice, tr viewport.Transform, style schema.StyleConfig, cfg Config) RenderBatch {
	batch := RenderBatch{DecimationFactor: 1}
	n := len(slice.Bars)
	if n == 0 {
		return batch
	}
	if cfg.PrimitiveBudget <= 0 {
		cfg.PrimitiveBudget = DefaultConfig().PrimitiveBudget
	}
	if cfg.BodyWidthFrac <= 0 || cfg.BodyWidthFrac > 1 {
		cfg.BodyWidthFrac = DefaultConfig().BodyWidthFrac
	}

	k := 1
	if n > cfg.PrimitiveBudget {
		k = (n + cfg.PrimitiveBudget - 1) / cfg.PrimitiveBudget
		batch.DecimationFactor = k
		logrus.Debugf("geometry: %d visible bars over budget %d, decimating by %d", n, cfg.PrimitiveBudget, k)
	}

	// A bar's slot runs from its timestamp to the next bar's; estimate the
	// slot width from the slice so the last bar gets one too.
	intervalMs := sliceInterval(slice.Bars, tr)
	slotMs := intervalMs * float64(k)
	inset := slotMs * (1 - cfg.BodyWidthFrac) / 2

	buckets := aggregate(slice, k)
	for _, kind := range renderPasses {
		switch kind {
		case schema.RendererCandle:
			buildCandles(&batch, buckets, tr, style, inset, slotMs)
		case schema.RendererVolume:
			buildVolumes(&batch, buckets, tr, style, inset, slotMs)
		case schema.RendererLineOverlay:
			buildOverlays(&batch, slice, tr, style, k, slotMs)
		}
	}

	buildGrid(&batch, tr, style, slotMs)
	return batch
}

// renderPasses is the closed variant set Build dispatches over. Adding a
// renderer means adding a kind and a case, not a new builder entry point.
var renderPasses = []schema.RendererKind{
	schema.RendererCandle,
	schema.RendererVolume,
	schema.RendererLineOverlay,
}

// bucket is one decimation bucket aggregated in data space: first open,
// last close, accumulated high/low, summed volume.
type bucket struct {
	slotStart float64
	open      float64
	close     float64
	hi        float64
	lo        float64
	volume    float64
}

func aggregate(slice series_store.Slice, k int) []bucket {
	n := len(slice.Bars)
	buckets := make([]bucket, 0, (n+k-1)/k)
	for start := 0; start < n; start += k {
		end := start + k
		if end > n {
			end = n
		}
		bars := slice.Bars[start:end]
		b := bucket{
			slotStart: float64(bars[0].Timestamp),
			open:      bars[0].Open,
			close:     bars[len(bars)-1].Close,
			hi:        math.Inf(-1),
			lo:        math.Inf(1),
		}
		for i, bar := range bars {
			// Malformed bars contribute a zero-height wick at the close.
			if slice.Flags[start+i]&schema.BarMalformed != 0 {
				b.hi = math.Max(b.hi, bar.Close)
				b.lo = math.Min(b.lo, bar.Close)
			} else {
				b.hi = math.Max(b.hi, bar.High)
				b.lo = math.Min(b.lo, bar.Low)
			}
			b.volume += bar.Volume
		}
		buckets = append(buckets, b)
	}
	return buckets
}

func buildCandles(batch *RenderBatch, buckets []bucket, tr viewport.Transform, style schema.StyleConfig, inset, slotMs float64) {
	for _, b := range buckets {
		xLeft, _ := tr.DataToPixel(b.slotStart+inset, 0)
		xRight, _ := tr.DataToPixel(b.slotStart+slotMs-inset, 0)
		xMid, _ := tr.DataToPixel(b.slotStart+slotMs/2, 0)

		bodyColor := style.TieColor
		switch {
		case b.close > b.open:
			bodyColor = style.UpColor
		case b.close < b.open:
			bodyColor = style.DownColor
		}

		_, yOpen := tr.DataToPixel(0, b.open)
		_, yClose := tr.DataToPixel(0, b.close)
		batch.Bodies.add(xLeft, yOpen, xRight, yClose, bodyColor)

		_, yHi := tr.DataToPixel(0, b.hi)
		_, yLo := tr.DataToPixel(0, b.lo)
		batch.Wicks.add(xMid, yLo, xMid, yHi, style.WickColor)
	}
}

func buildVolumes(batch *RenderBatch, buckets []bucket, tr viewport.Transform, style schema.StyleConfig, inset, slotMs float64) {
	maxVol := 0.0
	for _, b := range buckets {
		maxVol = math.Max(maxVol, b.volume)
	}
	if maxVol <= 0 {
		return
	}
	paneTop := tr.Height() * (1 - style.VolumePaneRatio)
	scale := (tr.Height() - paneTop) / (maxVol * volumeHeadroom)

	for _, b := range buckets {
		xLeft, _ := tr.DataToPixel(b.slotStart+inset, 0)
		xRight, _ := tr.DataToPixel(b.slotStart+slotMs-inset, 0)
		volColor := style.UpVolumeColor
		if b.close < b.open {
			volColor = style.DownVolumeColor
		}
		batch.Volumes.add(xLeft, tr.Height(), xRight, tr.Height()-b.volume*scale, volColor)
	}
}

// sliceInterval estimates the per-bar slot width in milliseconds.
func sliceInterval(bars []schema.Bar, tr viewport.Transform) float64 {
	if len(bars) > 1 {
		span := float64(bars[len(bars)-1].Timestamp - bars[0].Timestamp)
		if span > 0 {
			return span / float64(len(bars)-1)
		}
	}
	return tr.Window().TimeSpan()
}

// buildGrid emits horizontal price lines and vertical time lines at a
// density that adapts to the pixel scale: at most one gridline per
// GridMinSpacingPx pixels, so zoomed-out views do not overdraw.
func buildGrid(batch *RenderBatch, tr viewport.Transform, style schema.StyleConfig, slotMs float64) {
	minSpacing := float64(style.GridMinSpacingPx)
	if minSpacing <= 0 {
		minSpacing = 40
	}
	win := tr.Window()

	// Price lines: up to 8 divisions, fewer when the viewport is short.
	divisions := int(tr.Height() / minSpacing)
	if divisions > 8 {
		divisions = 8
	}
	for i := 1; i < divisions; i++ {
		price := win.PriceMin + win.PriceSpan()*float64(i)/float64(divisions)
		_, y := tr.DataToPixel(0, price)
		batch.Grid.add(0, y, tr.Width(), y, style.GridColor)
		batch.PriceTicks = append(batch.PriceTicks, price)
	}

	// Time lines: one per slot multiple, widened until the pixel spacing
	// rule holds.
	if slotMs <= 0 {
		return
	}
	pxPerSlot := tr.Width() / win.TimeSpan() * slotMs
	step := slotMs
	if pxPerSlot < minSpacing {
		step = slotMs * math.Ceil(minSpacing/pxPerSlot)
	}
	first := math.Ceil(win.TimeStart/step) * step
	for t := first; t <= win.TimeEnd; t += step {
		x, _ := tr.DataToPixel(t, 0)
		batch.Grid.add(x, 0, x, tr.Height(), style.GridColor)
		batch.TimeTicks = append(batch.TimeTicks, t)
	}
}

// buildOverlays emits one polyline per attached indicator column,
// sampling the kept bar of each decimation bucket. NaN samples break the
// line instead of poisoning it.
func buildOverlays(batch *RenderBatch, slice series_store.Slice, tr viewport.Transform, style schema.StyleConfig, k int, slotMs float64) {
	if len(slice.Indicators) == 0 {
		return
	}
	names := make([]string, 0, len(slice.Indicators))
	for name := range slice.Indicators {
		names = append(names, name)
	}
	sort.Strings(names)

	for ci, name := range names {
		values := slice.Indicators[name]
		color := style.OverlayColor(ci)
		havePrev := false
		var prevX, prevY float64
		for i := 0; i < len(slice.Bars); i += k {
			v := values[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				havePrev = false
				continue
			}
			x, y := tr.DataToPixel(float64(slice.Bars[i].Timestamp)+slotMs/2, v)
			if havePrev {
				batch.Overlays.add(prevX, prevY, x, y, color)
			}
			prevX, prevY = x, y
			havePrev = true
		}
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
