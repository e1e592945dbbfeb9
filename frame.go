package odin

import "github.com/odin-pipeline/odin-go/internal/frame"

// Frame is the unit of data a Plugin's ProcessFrame receives and returns.
// Three concrete backings exist internally (owned, shared-buffer, wrapper);
// a plugin author only ever sees this interface.
type Frame = frame.Frame

// Metadata is the descriptive envelope passed to NewFrame alongside a
// frame's raw bytes.
type Metadata = frame.Metadata

// DataType identifies the scalar element type of a frame's payload.
type DataType = frame.DataType

// Compression identifies the codec a frame's payload is compressed with,
// if any.
type Compression = frame.Compression

const (
	DataTypeUint8   = frame.DataTypeUint8
	DataTypeUint16  = frame.DataTypeUint16
	DataTypeUint32  = frame.DataTypeUint32
	DataTypeUint64  = frame.DataTypeUint64
	DataTypeFloat   = frame.DataTypeFloat
	DataTypeUnknown = frame.DataTypeUnknown
)

const (
	CompressionNone    = frame.CompressionNone
	CompressionLZ4     = frame.CompressionLZ4
	CompressionBSLZ4   = frame.CompressionBSLZ4
	CompressionBlosc   = frame.CompressionBlosc
	CompressionUnknown = frame.CompressionUnknown
)

// NewFrame constructs a Frame that owns a private copy of data, for a
// plugin that synthesizes new output rather than forwarding its input
// (e.g. an aggregation plugin emitting a summed frame).
func NewFrame(meta Metadata, data []byte) Frame {
	return frame.NewOwned(meta, data)
}

// NewReshapedFrame constructs a Frame that reuses inner's lifetime but
// presents new metadata and bytes, for a plugin that reinterprets its
// input without taking ownership of a new buffer (e.g. a gap-fill reshape
// that still must release the original shared buffer exactly once).
func NewReshapedFrame(inner Frame, meta Metadata, data []byte) Frame {
	return frame.NewWrapper(inner, meta, data)
}

// NewEndOfAcquisitionFrame constructs the zero-payload sentinel that drains
// a running chain for datasetName without stopping it. Test harnesses for
// third-party plugins use this to exercise ProcessEndOfAcquisition without
// standing up a full acquisition.
func NewEndOfAcquisitionFrame(datasetName string) Frame {
	return frame.NewEndOfAcquisition(datasetName)
}
