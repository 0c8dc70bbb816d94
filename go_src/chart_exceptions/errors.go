package chart_exceptions

import "fmt"

// DataError reports malformed or unsortable input at the ingestion
// boundary. It is terminal for that load attempt: the chart keeps its
// prior (or empty) series and nothing partial is published.
type DataError struct {
	Message string
	Path    string // source file, when known
	Row     int64  // offending row, -1 when not row-specific
}

func (e *DataError) Error() string {
	if e.Path != "" && e.Row >= 0 {
		return fmt.Sprintf("DataError: %s (file: %s, row: %d)", e.Message, e.Path, e.Row)
	}
	if e.Path != "" {
		return fmt.Sprintf("DataError: %s (file: %s)", e.Message, e.Path)
	}
	return fmt.Sprintf("DataError: %s", e.Message)
}

// NewDataError builds a DataError that is not tied to a particular row.
func NewDataError(path, format string, args ...interface{}) *DataError {
	return &DataError{Message: fmt.Sprintf(format, args...), Path: path, Row: -1}
}

// LabelStoreError reports a failed label persistence operation.
type LabelStoreError struct {
	Message   string
	Operation string // e.g. "save", "load", "schema"
}

func (e *LabelStoreError) Error() string {
	return fmt.Sprintf("LabelStoreError: failed label %s: %s", e.Operation, e.Message)
}

// BufferDeviceError reports a failed upload or draw on the render device.
// It never escapes the per-frame path; the frame is dropped and the error
// logged instead.
type BufferDeviceError struct {
	Message string
	Class   string // primitive class name
}

func (e *BufferDeviceError) Error() string {
	return fmt.Sprintf("BufferDeviceError: %s (class: %s)", e.Message, e.Class)
}

// IndicatorError reports an indicator column that cannot be attached to a
// series, typically a length mismatch against the bar count.
type IndicatorError struct {
	Message string
	Name    string
}

func (e *IndicatorError) Error() string {
	return fmt.Sprintf("IndicatorError: indicator '%s': %s", e.Name, e.Message)
}
