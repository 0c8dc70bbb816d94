// Package render_buffers owns the GPU-facing lifetime of the geometry a
// frame produces: persistent per-class vertex buffers that grow by
// watermark instead of reallocating every frame, and one batched draw per
// primitive class.
package render_buffers

import (
	"fmt"
	"slices"

	"candlelab/go_src/chart_exceptions"
	"candlelab/go_src/geometry"

	"github.com/sirupsen/logrus"
)

// --- Primitive classes ---

// PrimitiveClass identifies one persistent buffer pair and one draw call.
type PrimitiveClass string

const (
	ClassBody    PrimitiveClass = "body"
	ClassWick    PrimitiveClass = "wick"
	ClassVolume  PrimitiveClass = "volume"
	ClassGrid    PrimitiveClass = "grid"
	ClassOverlay PrimitiveClass = "overlay"
)

// DrawMode distinguishes quad-shaped classes from line-shaped ones.
type DrawMode int

const (
	DrawQuads DrawMode = iota
	DrawLines
)

var classModes = map[PrimitiveClass]DrawMode{
	ClassBody:    DrawQuads,
	ClassWick:    DrawLines,
	ClassVolume:  DrawQuads,
	ClassGrid:    DrawLines,
	ClassOverlay: DrawLines,
}

// Valid reports whether the class is a known primitive class.
func (c PrimitiveClass) Valid() bool {
	_, ok := classModes[c]
	return ok
}

// Mode returns the draw mode for the class.
func (c PrimitiveClass) Mode() DrawMode { return classModes[c] }

// drawOrder is back to front: grid behind volumes behind candles, with
// overlays on top.
var drawOrder = []PrimitiveClass{ClassGrid, ClassVolume, ClassWick, ClassBody, ClassOverlay}

// --- Device ---

// Device is the minimal surface the manager needs from a rendering
// backend. Upload replaces the class's buffer contents; Draw issues one
// batched draw for count vertices of the class.
type Device interface {
	Upload(class PrimitiveClass, vertices, colors []float32) error
	Draw(class PrimitiveClass, vertexCount int) error
}

// --- Manager ---

const growthFactor = 1.5

type classBuffer struct {
	vertices []float32 // retained copy of the last upload
	colors   []float32
	capacity int // float32 watermark, only ever grows
	uploaded bool
}

// Stats summarizes buffer activity for diagnostics.
type Stats struct {
	Frames        int
	Uploads       int
	SkippedUpload int
	Reallocations int
	DrawCalls     int
}

// Manager mediates between per-frame RenderBatch output and the device.
// It keeps one persistent buffer per class, reuses capacity across frames
// (growing with headroom on overflow), and skips uploads whose content is
// unchanged from the previous frame.
type Manager struct {
	dev     Device
	buffers map[PrimitiveClass]*classBuffer
	stats   Stats
}

// NewManager wires a manager to its device.
func NewManager(dev Device) *Manager {
	buffers := make(map[PrimitiveClass]*classBuffer, len(drawOrder))
	for _, class := range drawOrder {
		buffers[class] = &classBuffer{}
	}
	return &Manager{dev: dev, buffers: buffers}
}

// Submit uploads the batch's per-class data and issues one draw call per
// non-empty class, back to front. A device failure aborts the frame with
// a BufferDeviceError naming the failing class.
func (m *Manager) Submit(batch geometry.RenderBatch) error {
	m.stats.Frames++

	classData := map[PrimitiveClass][2][]float32{
		ClassBody:    {batch.Bodies.Vertices, batch.Bodies.Colors},
		ClassWick:    {batch.Wicks.Vertices, batch.Wicks.Colors},
		ClassVolume:  {batch.Volumes.Vertices, batch.Volumes.Colors},
		ClassGrid:    {batch.Grid.Vertices, batch.Grid.Colors},
		ClassOverlay: {batch.Overlays.Vertices, batch.Overlays.Colors},
	}

	for _, class := range drawOrder {
		data := classData[class]
		if err := m.upload(class, data[0], data[1]); err != nil {
			return err
		}
	}
	for _, class := range drawOrder {
		buf := m.buffers[class]
		if len(buf.vertices) == 0 {
			continue
		}
		if err := m.dev.Draw(class, len(buf.vertices)/2); err != nil {
			m.stats.DrawCalls++
			return &chart_exceptions.BufferDeviceError{
				Message: fmt.Sprintf("draw failed: %v", err),
				Class:   string(class),
			}
		}
		m.stats.DrawCalls++
	}
	return nil
}

func (m *Manager) upload(class PrimitiveClass, vertices, colors []float32) error {
	buf := m.buffers[class]

	if buf.uploaded && slices.Equal(buf.vertices, vertices) && slices.Equal(buf.colors, colors) {
		m.stats.SkippedUpload++
		return nil
	}

	if len(vertices) > buf.capacity {
		newCap := int(float64(len(vertices)) * growthFactor)
		logrus.Debugf("render_buffers: %s buffer grows %d -> %d floats", class, buf.capacity, newCap)
		buf.capacity = newCap
		m.stats.Reallocations++
	}

	if err := m.dev.Upload(class, vertices, colors); err != nil {
		return &chart_exceptions.BufferDeviceError{
			Message: fmt.Sprintf("upload failed: %v", err),
			Class:   string(class),
		}
	}
	m.stats.Uploads++

	// Retain copies for next frame's diff; the caller owns the batch and
	// may recycle it.
	buf.vertices = append(buf.vertices[:0], vertices...)
	buf.colors = append(buf.colors[:0], colors...)
	buf.uploaded = true
	return nil
}

// Capacity returns the current float32 watermark of the class's buffer.
func (m *Manager) Capacity(class PrimitiveClass) int {
	if buf, ok := m.buffers[class]; ok {
		return buf.capacity
	}
	return 0
}

// Stats returns a copy of the accumulated counters.
func (m *Manager) Stats() Stats { return m.stats }

// --- Recording device ---

// UploadRecord captures one Upload call for inspection in tests.
type UploadRecord struct {
	Class    PrimitiveClass
	Vertices []float32
	Colors   []float32
}

// DrawRecord captures one Draw call for inspection in tests.
type DrawRecord struct {
	Class       PrimitiveClass
	VertexCount int
}

// RecordingDevice is a Device that records calls instead of touching a
// GPU. FailUpload/FailDraw inject errors for the named class.
type RecordingDevice struct {
	Uploads []UploadRecord
	Draws   []DrawRecord

	FailUpload PrimitiveClass
	FailDraw   PrimitiveClass
}

func (d *RecordingDevice) Upload(class PrimitiveClass, vertices, colors []float32) error {
	if class == d.FailUpload {
		return fmt.Errorf("injected upload failure for %s", class)
	}
	d.Uploads = append(d.Uploads, UploadRecord{
		Class:    class,
		Vertices: slices.Clone(vertices),
		Colors:   slices.Clone(colors),
	})
	return nil
}

func (d *RecordingDevice) Draw(class PrimitiveClass, vertexCount int) error {
	if class == d.FailDraw {
		return fmt.Errorf("injected draw failure for %s", class)
	}
	d.Draws = append(d.Draws, DrawRecord{Class: class, VertexCount: vertexCount})
	return nil
}

// Reset clears recorded calls, keeping the failure injection settings.
func (d *RecordingDevice) Reset() {
	d.Uploads = nil
	d.Draws = nil
}
