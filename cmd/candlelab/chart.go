package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"candlelab/go_src/geometry"
	"candlelab/go_src/gio_device"
	"candlelab/go_src/interaction"
	"candlelab/go_src/label_store"
	"candlelab/go_src/render_buffers"
	"candlelab/go_src/schema"
	"candlelab/go_src/series_store"
	"candlelab/go_src/viewport"

	"gioui.org/f32"
	"gioui.org/gesture"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/widget/material"
	"gioui.org/x/stroke"
	"github.com/sirupsen/logrus"
)

// wheelNotchPx converts gesture scroll distance into zoom notches.
const wheelNotchPx = 100.0

// ChartWidget wires one loaded series to the render pipeline and
// translates Gio input into interaction events.
type ChartWidget struct {
	series     *series_store.SeriesHandle
	model      *viewport.Model
	controller *interaction.Controller
	labels     *label_store.Store

	style   schema.StyleConfig
	geomCfg geometry.Config

	device  *gio_device.Device
	manager *render_buffers.Manager

	scroll  gesture.Scroll
	pressed interaction.Button
	lastX   float64
	lastY   float64
	focused bool
}

// NewChartWidget builds the widget and its render pipeline for a loaded
// series.
func NewChartWidget(series *series_store.SeriesHandle, labels *label_store.Store, style schema.StyleConfig, geomCfg geometry.Config) *ChartWidget {
	timeFirst, timeLast := series.Extent()
	priceLo, priceHi := series.PriceExtent()
	model := viewport.NewModel(timeFirst, timeLast, priceLo, priceHi, viewport.DefaultConfig())

	device := gio_device.New()
	device.SetLineWidth(render_buffers.ClassWick, style.WickWidth)
	device.SetLineWidth(render_buffers.ClassGrid, style.GridWidth)
	device.SetPenStyle(render_buffers.ClassGrid, style.GridStyle)

	return &ChartWidget{
		series:     series,
		model:      model,
		controller: interaction.NewController(model, series, labels),
		labels:     labels,
		style:      style,
		geomCfg:    geomCfg,
		device:     device,
		manager:    render_buffers.NewManager(device),
	}
}

// Controller exposes the interaction state machine for toolbar bindings.
func (c *ChartWidget) Controller() *interaction.Controller { return c.controller }

// Layout handles input and renders one frame.
func (c *ChartWidget) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	size := gtx.Constraints.Max
	c.model.Resize(float64(size.X), float64(size.Y))

	c.handleInput(gtx)

	paint.FillShape(gtx.Ops, toNRGBA(c.style.BackgroundColor), clip.Rect{Max: size}.Op())

	slice := c.visibleSlice()
	if c.model.AutoFitPrice() && len(slice.Bars) > 0 {
		lo, hi := sliceExtent(slice)
		c.model.FitPrice(lo, hi, c.style.PricePaddingFactor)
	}

	batch := geometry.Build(slice, c.model.Transform(), c.style, c.geomCfg)

	c.device.Begin(gtx.Ops)
	if err := c.manager.Submit(batch); err != nil {
		// Drop the frame; the next one rebuilds from scratch.
		logrus.Errorf("Frame submit failed: %v", err)
	}
	c.device.End()

	c.drawAxisLabels(gtx, th, batch)
	c.drawLabelHighlights(gtx, slice)
	c.drawSelections(gtx)
	c.drawCrosshair(gtx)
	c.drawHoverInfo(gtx, th)

	// Register the plot area for pointer, scroll and key input.
	area := clip.Rect{Max: size}.Push(gtx.Ops)
	event.Op(gtx.Ops, c)
	c.scroll.Add(gtx.Ops)
	area.Pop()

	return layout.Dimensions{Size: size}
}

func (c *ChartWidget) handleInput(gtx layout.Context) {
	if !c.focused {
		gtx.Execute(key.FocusCmd{Tag: c})
		c.focused = true
	}

	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: c,
			Kinds:  pointer.Press | pointer.Release | pointer.Move | pointer.Drag | pointer.Leave | pointer.Cancel,
		})
		if !ok {
			break
		}
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		c.lastX, c.lastY = float64(pe.Position.X), float64(pe.Position.Y)
		switch pe.Kind {
		case pointer.Press:
			c.pressed = mapButtons(pe.Buttons)
			c.controller.Pointer(interaction.PointerEvent{
				Kind: interaction.PointerDown, X: c.lastX, Y: c.lastY, Button: c.pressed,
			})
		case pointer.Move, pointer.Drag:
			c.controller.Pointer(interaction.PointerEvent{
				Kind: interaction.PointerMove, X: c.lastX, Y: c.lastY,
			})
		case pointer.Release:
			button := c.pressed
			if button == interaction.ButtonNone {
				button = interaction.ButtonPrimary
			}
			c.controller.Pointer(interaction.PointerEvent{
				Kind: interaction.PointerUp, X: c.lastX, Y: c.lastY, Button: button,
			})
			c.pressed = interaction.ButtonNone
		case pointer.Leave, pointer.Cancel:
			c.controller.Pointer(interaction.PointerEvent{Kind: interaction.PointerLeave})
		}
	}

	dist := c.scroll.Update(gtx.Metric, gtx.Source, gtx.Now, gesture.Vertical, image.Rect(0, -1e6, 0, 1e6))
	if dist != 0 {
		c.controller.Wheel(interaction.WheelEvent{
			X: c.lastX, Y: c.lastY, Delta: -float64(dist) / wheelNotchPx,
		})
	}

	keyBindings := []struct {
		name key.Name
		k    interaction.Key
	}{
		{key.NameLeftArrow, interaction.KeyLeft},
		{key.NameRightArrow, interaction.KeyRight},
		{key.NameUpArrow, interaction.KeyUp},
		{key.NameDownArrow, interaction.KeyDown},
		{"+", interaction.KeyPlus},
		{"-", interaction.KeyMinus},
		{key.NameEscape, interaction.KeyEscape},
	}
	for _, kb := range keyBindings {
		for {
			ev, ok := gtx.Event(key.Filter{Focus: c, Name: kb.name})
			if !ok {
				break
			}
			if ke, isKey := ev.(key.Event); isKey && ke.State == key.Press {
				c.controller.Key(interaction.KeyEvent{Key: kb.k})
			}
		}
	}
}

// visibleSlice queries the bars overlapping the current time window.
func (c *ChartWidget) visibleSlice() series_store.Slice {
	win := c.model.Window()
	r := c.series.RangeQuery(int64(math.Floor(win.TimeStart)), int64(math.Ceil(win.TimeEnd)))
	return c.series.Slice(r)
}

// sliceExtent finds the visible price range, counting malformed bars at
// their close.
func sliceExtent(slice series_store.Slice) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i, b := range slice.Bars {
		if slice.Flags[i]&schema.BarMalformed != 0 {
			lo = math.Min(lo, b.Close)
			hi = math.Max(hi, b.Close)
			continue
		}
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	return lo, hi
}

func (c *ChartWidget) drawLabelHighlights(gtx layout.Context, slice series_store.Slice) {
	if c.labels.Len() == 0 || len(slice.Bars) == 0 {
		return
	}
	highlight := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x20}
	first := slice.FirstIndex
	last := slice.FirstIndex + len(slice.Bars) - 1
	for _, label := range c.labels.All() {
		if label.EndIndex < first || label.StartIndex > last {
			continue
		}
		c.fillIndexRange(gtx, label.StartIndex, label.EndIndex, highlight)
	}

	if sel, ok := c.controller.LabelSelection(); ok {
		c.fillIndexRange(gtx, sel.StartIndex, sel.EndIndex, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x40})
	}
}

// fillIndexRange shades the pixel span of an inclusive bar index range.
func (c *ChartWidget) fillIndexRange(gtx layout.Context, startIndex, endIndex int, col color.NRGBA) {
	startBar, ok := c.series.Bar(startIndex)
	if !ok {
		return
	}
	endBar, ok := c.series.Bar(endIndex)
	if !ok {
		return
	}
	tr := c.model.Transform()
	interval := barInterval(c.series)
	x0, _ := tr.DataToPixel(float64(startBar.Timestamp), 0)
	x1, _ := tr.DataToPixel(float64(endBar.Timestamp)+interval, 0)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	rect := image.Rect(int(x0), 0, int(x1), int(tr.Height()))
	paint.FillShape(gtx.Ops, col, clip.Rect(rect).Op())
}

func (c *ChartWidget) drawSelections(gtx layout.Context) {
	rect, ok := c.controller.ZoomSelection()
	if !ok {
		return
	}
	x0, x1 := math.Min(rect.X0, rect.X1), math.Max(rect.X0, rect.X1)
	y0, y1 := math.Min(rect.Y0, rect.Y1), math.Max(rect.Y0, rect.Y1)
	band := image.Rect(int(x0), int(y0), int(x1), int(y1))
	paint.FillShape(gtx.Ops, color.NRGBA{R: 0x90, G: 0xb0, B: 0xff, A: 0x30}, clip.Rect(band).Op())
	// 1px border
	border := clip.Stroke{Path: clip.Rect(band).Path(), Width: 1}.Op()
	paint.FillShape(gtx.Ops, color.NRGBA{R: 0x90, G: 0xb0, B: 0xff, A: 0xc0}, border)
}

// drawCrosshair strokes dashed pointer lines while a bar is hovered in
// cursor mode.
func (c *ChartWidget) drawCrosshair(gtx layout.Context) {
	if _, ok := c.controller.Hover(); !ok {
		return
	}
	width := c.style.CrosshairWidth
	if width <= 0 {
		width = 1
	}
	x := float32(c.lastX)
	y := float32(c.lastY)
	segs := []stroke.Segment{
		stroke.MoveTo(f32.Pt(x, 0)),
		stroke.LineTo(f32.Pt(x, float32(gtx.Constraints.Max.Y))),
		stroke.MoveTo(f32.Pt(0, y)),
		stroke.LineTo(f32.Pt(float32(gtx.Constraints.Max.X), y)),
	}
	area := stroke.Stroke{
		Path:   stroke.Path{Segments: segs},
		Width:  width,
		Dashes: stroke.Dashes{Dashes: gio_device.DashPattern(c.style.CrosshairStyle, width)},
	}.Op(gtx.Ops)
	paint.FillShape(gtx.Ops, toNRGBA(c.style.CrosshairColor), area)
}

// drawAxisLabels annotates the grid: prices along the left edge, times
// along the bottom.
func (c *ChartWidget) drawAxisLabels(gtx layout.Context, th *material.Theme, batch geometry.RenderBatch) {
	tr := c.model.Transform()
	win := c.model.Window()

	for _, price := range batch.PriceTicks {
		_, y := tr.DataToPixel(0, price)
		c.drawTextAt(gtx, th, 4, int(y)-16, formatPriceTick(price, win.PriceSpan()))
	}
	for _, t := range batch.TimeTicks {
		x, _ := tr.DataToPixel(t, 0)
		c.drawTextAt(gtx, th, int(x)+4, gtx.Constraints.Max.Y-18, formatTimeTick(t, win.TimeSpan()))
	}
}

func (c *ChartWidget) drawTextAt(gtx layout.Context, th *material.Theme, x, y int, s string) {
	defer op.Offset(image.Pt(x, y)).Push(gtx.Ops).Pop()
	gtx.Constraints.Min = image.Point{}
	lbl := material.Caption(th, s)
	lbl.Color = toNRGBA(c.style.WickColor)
	lbl.Layout(gtx)
}

// formatPriceTick keeps just enough decimals for the visible span.
func formatPriceTick(price, span float64) string {
	switch {
	case span >= 100:
		return fmt.Sprintf("%.0f", price)
	case span >= 1:
		return fmt.Sprintf("%.2f", price)
	default:
		return fmt.Sprintf("%.5f", price)
	}
}

// formatTimeTick shows dates when the window spans days, clock time when
// it spans hours.
func formatTimeTick(timeMs, spanMs float64) string {
	ts := time.UnixMilli(int64(timeMs)).UTC()
	if spanMs >= float64((48 * time.Hour).Milliseconds()) {
		return ts.Format("2006-01-02")
	}
	return ts.Format("15:04")
}

func (c *ChartWidget) drawHoverInfo(gtx layout.Context, th *material.Theme) {
	hover, ok := c.controller.Hover()
	if !ok {
		return
	}
	text := fmt.Sprintf("%s  O:%.5g H:%.5g L:%.5g C:%.5g V:%s",
		hover.Time().Format("2006-01-02 15:04"),
		hover.Open, hover.High, hover.Low, hover.Close, hover.VolumeString())

	inset := layout.UniformInset(4)
	inset.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		lbl := material.Caption(th, text)
		lbl.Color = toNRGBA(c.style.CrosshairColor)
		return lbl.Layout(gtx)
	})
}

// barInterval estimates the series' bar spacing in milliseconds.
func barInterval(series *series_store.SeriesHandle) float64 {
	if series.Len() < 2 {
		return 0
	}
	first, last := series.Extent()
	return float64(last-first) / float64(series.Len()-1)
}

func mapButtons(b pointer.Buttons) interaction.Button {
	switch {
	case b.Contain(pointer.ButtonSecondary):
		return interaction.ButtonSecondary
	case b.Contain(pointer.ButtonPrimary):
		return interaction.ButtonPrimary
	default:
		return interaction.ButtonNone
	}
}

func toNRGBA(c schema.Color) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}
