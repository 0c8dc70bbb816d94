package gio_device

import (
	"image/color"
	"testing"

	"candlelab/go_src/render_buffers"
	"candlelab/go_src/schema"

	"gioui.org/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevice_DrawRequiresFrame(t *testing.T) {
	d := New()
	require.NoError(t, d.Upload(render_buffers.ClassBody,
		[]float32{0, 0, 10, 0, 10, 10, 0, 10},
		[]float32{1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0, 1}))

	err := d.Draw(render_buffers.ClassBody, 4)
	require.Error(t, err)

	var ops op.Ops
	d.Begin(&ops)
	assert.NoError(t, d.Draw(render_buffers.ClassBody, 4))
	d.End()
}

func TestDevice_UploadRejectsUnknownClass(t *testing.T) {
	d := New()
	assert.Error(t, d.Upload(render_buffers.PrimitiveClass("sprite"), nil, nil))
}

func TestDevice_DrawEmptyClassIsNoop(t *testing.T) {
	d := New()
	var ops op.Ops
	d.Begin(&ops)
	assert.NoError(t, d.Draw(render_buffers.ClassGrid, 0))
}

func TestDevice_UploadRetainsAcrossFrames(t *testing.T) {
	d := New()
	require.NoError(t, d.Upload(render_buffers.ClassWick,
		[]float32{5, 0, 5, 10},
		[]float32{0, 1, 0, 1, 0, 1, 0, 1}))

	// A second frame without a fresh upload still draws last frame's
	// content, which is what the manager's skip-upload path relies on.
	for frame := 0; frame < 2; frame++ {
		var ops op.Ops
		d.Begin(&ops)
		assert.NoError(t, d.Draw(render_buffers.ClassWick, 2))
		d.End()
	}
}

func TestDashPattern(t *testing.T) {
	assert.Nil(t, DashPattern(schema.PenSolid, 1), "solid pens stroke continuously")
	assert.Nil(t, DashPattern("", 1))

	assert.Equal(t, []float32{4, 2}, DashPattern(schema.PenDash, 1))
	assert.Equal(t, []float32{2, 4}, DashPattern(schema.PenDot, 2))
	assert.Equal(t, []float32{4, 2, 1, 2}, DashPattern(schema.PenDashDot, 1))
}

func TestDevice_SetPenStyleIgnoresInvalid(t *testing.T) {
	d := New()
	d.SetPenStyle(render_buffers.ClassGrid, schema.PenDot)
	assert.Equal(t, schema.PenDot, d.pens[render_buffers.ClassGrid])

	d.SetPenStyle(render_buffers.ClassGrid, schema.PenStyle("wavy"))
	assert.Equal(t, schema.PenDot, d.pens[render_buffers.ClassGrid], "invalid pens keep the previous style")

	// A dotted grid still draws without a panic.
	var ops op.Ops
	d.Begin(&ops)
	require.NoError(t, d.Upload(render_buffers.ClassGrid,
		[]float32{0, 5, 10, 5},
		[]float32{0.3, 0.3, 0.3, 1, 0.3, 0.3, 0.3, 1}))
	assert.NoError(t, d.Draw(render_buffers.ClassGrid, 2))
	d.End()
}

func TestVertexColor(t *testing.T) {
	colors := []float32{1, 0.5, 0, 1}
	c := vertexColor(colors, 0)
	assert.Equal(t, color.NRGBA{R: 255, G: 128, B: 0, A: 255}, c)

	// Out of range falls back to opaque black instead of panicking.
	assert.Equal(t, color.NRGBA{A: 255}, vertexColor(colors, 5))
}
