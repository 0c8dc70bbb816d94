// Package gio_device renders the buffer manager's primitive classes with
// Gio. Quads become filled clip outlines, lines become stroked paths via
// the x/stroke extension, which keeps horizontal and vertical lines the
// same thickness where the builtin stroke does not.
package gio_device

import (
	"fmt"
	"image/color"

	"candlelab/go_src/render_buffers"
	"candlelab/go_src/schema"

	"gioui.org/f32"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/x/stroke"
)

type classData struct {
	vertices []float32
	colors   []float32
}

// Device implements render_buffers.Device on top of an op list. Begin
// must be called once per frame before the manager submits.
type Device struct {
	ops    *op.Ops
	widths map[render_buffers.PrimitiveClass]float32
	pens   map[render_buffers.PrimitiveClass]schema.PenStyle
	data   map[render_buffers.PrimitiveClass]*classData
}

// New creates a device with 1px solid lines for every line class.
func New() *Device {
	return &Device{
		widths: map[render_buffers.PrimitiveClass]float32{
			render_buffers.ClassWick:    1,
			render_buffers.ClassGrid:    1,
			render_buffers.ClassOverlay: 1,
		},
		pens: make(map[render_buffers.PrimitiveClass]schema.PenStyle),
		data: make(map[render_buffers.PrimitiveClass]*classData),
	}
}

// Begin points the device at this frame's op list.
func (d *Device) Begin(ops *op.Ops) { d.ops = ops }

// End detaches the device from the frame.
func (d *Device) End() { d.ops = nil }

// SetLineWidth sets the stroke width, in pixels, for a line class.
func (d *Device) SetLineWidth(class render_buffers.PrimitiveClass, width float32) {
	if width > 0 {
		d.widths[class] = width
	}
}

// SetPenStyle sets the dash pattern for a line class. Unset classes draw
// solid.
func (d *Device) SetPenStyle(class render_buffers.PrimitiveClass, pen schema.PenStyle) {
	if pen.Valid() {
		d.pens[class] = pen
	}
}

// Upload retains the class's vertex data. The buffers persist across
// frames, so a skipped upload still draws last frame's content.
func (d *Device) Upload(class render_buffers.PrimitiveClass, vertices, colors []float32) error {
	if !class.Valid() {
		return fmt.Errorf("unknown primitive class %q", class)
	}
	buf, ok := d.data[class]
	if !ok {
		buf = &classData{}
		d.data[class] = buf
	}
	buf.vertices = append(buf.vertices[:0], vertices...)
	buf.colors = append(buf.colors[:0], colors...)
	return nil
}

// Draw paints the class into the current frame's op list.
func (d *Device) Draw(class render_buffers.PrimitiveClass, vertexCount int) error {
	if d.ops == nil {
		return fmt.Errorf("no frame in progress (Begin not called)")
	}
	buf, ok := d.data[class]
	if !ok || len(buf.vertices) == 0 {
		return nil
	}
	switch class.Mode() {
	case render_buffers.DrawQuads:
		d.drawQuads(buf)
	case render_buffers.DrawLines:
		d.drawLines(buf, d.widths[class], d.pens[class])
	}
	return nil
}

// drawQuads batches consecutive same-colored quads into one filled
// outline, so a run of up-candles costs a single paint op.
func (d *Device) drawQuads(buf *classData) {
	quads := len(buf.vertices) / 8
	if quads == 0 {
		return
	}

	var p clip.Path
	started := false
	runColor := color.NRGBA{}

	flush := func() {
		if !started {
			return
		}
		stack := clip.Outline{Path: p.End()}.Op().Push(d.ops)
		paint.Fill(d.ops, runColor)
		stack.Pop()
		started = false
	}

	for q := 0; q < quads; q++ {
		c := vertexColor(buf.colors, q*4)
		if !started || c != runColor {
			flush()
			p = clip.Path{}
			p.Begin(d.ops)
			runColor = c
			started = true
		}
		v := buf.vertices[q*8 : q*8+8]
		p.MoveTo(f32.Pt(v[0], v[1]))
		p.LineTo(f32.Pt(v[2], v[3]))
		p.LineTo(f32.Pt(v[4], v[5]))
		p.LineTo(f32.Pt(v[6], v[7]))
		p.Close()
	}
	flush()
}

// drawLines batches consecutive same-colored segments into one stroked
// path, dashed per the class's pen style.
func (d *Device) drawLines(buf *classData, width float32, pen schema.PenStyle) {
	segs := len(buf.vertices) / 4
	if segs == 0 {
		return
	}
	if width <= 0 {
		width = 1
	}
	dashes := DashPattern(pen, width)

	var run []stroke.Segment
	runColor := color.NRGBA{}

	flush := func() {
		if len(run) == 0 {
			return
		}
		area := stroke.Stroke{
			Path:   stroke.Path{Segments: run},
			Width:  width,
			Dashes: stroke.Dashes{Dashes: dashes},
		}.Op(d.ops)
		paint.FillShape(d.ops, runColor, area)
		run = nil
	}

	for s := 0; s < segs; s++ {
		c := vertexColor(buf.colors, s*2)
		if len(run) > 0 && c != runColor {
			flush()
		}
		runColor = c
		v := buf.vertices[s*4 : s*4+4]
		run = append(run,
			stroke.MoveTo(f32.Pt(v[0], v[1])),
			stroke.LineTo(f32.Pt(v[2], v[3])),
		)
	}
	flush()
}

// DashPattern maps a pen style to on/off run lengths scaled by the line
// width. Solid and unset pens return nil, which strokes continuously.
func DashPattern(pen schema.PenStyle, width float32) []float32 {
	switch pen {
	case schema.PenDash:
		return []float32{4 * width, 2 * width}
	case schema.PenDot:
		return []float32{width, 2 * width}
	case schema.PenDashDot:
		return []float32{4 * width, 2 * width, width, 2 * width}
	default:
		return nil
	}
}

// vertexColor reads the RGBA of the vertex at index from the color
// buffer.
func vertexColor(colors []float32, vertex int) color.NRGBA {
	i := vertex * 4
	if i+3 >= len(colors) {
		return color.NRGBA{A: 0xff}
	}
	return color.NRGBA{
		R: uint8(colors[i]*255 + 0.5),
		G: uint8(colors[i+1]*255 + 0.5),
		B: uint8(colors[i+2]*255 + 0.5),
		A: uint8(colors[i+3]*255 + 0.5),
	}
}
