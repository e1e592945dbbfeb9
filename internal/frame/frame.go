// Package frame implements the pipeline's Frame type: a piece of detector
// data plus metadata, backed by one of three storage variants depending on
// where in the pipeline it originated.
package frame

import "sync/atomic"

// DataType mirrors the original implementation's DataType enum ordinals so
// integers survive a round trip through the meta channel unchanged.
type DataType int

const (
	DataTypeUint8   DataType = 0
	DataTypeUint16  DataType = 1
	DataTypeUint32  DataType = 2
	DataTypeUint64  DataType = 3
	DataTypeFloat   DataType = 4
	DataTypeUnknown DataType = -1
)

// Compression mirrors the original implementation's CompressionType enum.
type Compression int

const (
	CompressionNone    Compression = 0
	CompressionLZ4     Compression = 1
	CompressionBSLZ4   Compression = 2
	CompressionBlosc   Compression = 3
	CompressionUnknown Compression = -1
)

// ParamKind tags the concrete type held in a ParamValue.
type ParamKind int

const (
	ParamU8 ParamKind = iota
	ParamU16
	ParamU32
	ParamU64
	ParamF32
	ParamString
	ParamRaw
)

// ParamValue is a tagged union of the scalar/blob types a frame parameter
// may hold.
type ParamValue struct {
	Kind   ParamKind
	U8     uint8
	U16    uint16
	U32    uint32
	U64    uint64
	F32    float32
	String string
	Raw    []byte
}

// Optional wraps a value that may be unset ("blank" in the wire protocol).
// An unset Optional never serializes a value field on the meta channel.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some constructs a present Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, ok: true} }

// None constructs an absent ("blank") Optional.
func None[T any]() Optional[T] { return Optional[T]{} }

// Get returns the wrapped value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// IsSet reports whether the Optional carries a value.
func (o Optional[T]) IsSet() bool { return o.ok }

// Metadata is the descriptive envelope carried alongside every frame's raw
// bytes.
type Metadata struct {
	FrameNumber int64
	DatasetName string
	DataType    DataType
	Dimensions  []int64
	Compression Compression
	Parameters  map[string]ParamValue
	// ImageOffset is the byte offset of the image payload within Data, e.g.
	// to skip a UDP header reassembled in place ahead of the pixel data.
	ImageOffset      int64
	EndOfAcquisition bool
}

// Frame is the pipeline's unit of data. Three concrete backings satisfy it:
// an owned in-process allocation, a shared-memory-arena-backed buffer
// (refcounted, released back to the receiver on last Release), and a
// wrapper around another Frame's bytes (used by plugins that reinterpret
// data without copying, e.g. a reshape plugin).
type Frame interface {
	FrameNumber() int64
	DatasetName() string
	DataType() int
	Dimensions() []int64
	Compression() int
	Data() []byte
	// ImageOffset is the byte offset of the image payload within Data,
	// i.e. ImageData() == Data()[ImageOffset():].
	ImageOffset() int64
	// ImageData returns the frame's payload with any leading non-image
	// bytes (e.g. a reassembled transport header) sliced off in place.
	ImageData() []byte
	Parameter(name string) (any, bool)
	// IsEndOfAcquisition reports whether this frame is the zero-payload
	// sentinel that flushes the plugin chain without stopping it. Sentinels
	// bypass each plugin's ProcessFrame and instead run
	// ProcessEndOfAcquisition before being forwarded unchanged.
	IsEndOfAcquisition() bool
	Release()
}

// NewEndOfAcquisition constructs the zero-payload sentinel frame that
// drains the plugin chain for datasetName without stopping it.
func NewEndOfAcquisition(datasetName string) Frame {
	return &ownedFrame{meta: Metadata{DatasetName: datasetName, EndOfAcquisition: true}}
}

// ownedFrame holds its bytes in a plain, GC-managed allocation. Release is
// a no-op; the garbage collector reclaims it once dereferenced.
type ownedFrame struct {
	meta Metadata
	data []byte
}

// NewOwned constructs a Frame that owns a private copy of data.
func NewOwned(meta Metadata, data []byte) Frame {
	return &ownedFrame{meta: meta, data: append([]byte(nil), data...)}
}

func (f *ownedFrame) FrameNumber() int64       { return f.meta.FrameNumber }
func (f *ownedFrame) DatasetName() string      { return f.meta.DatasetName }
func (f *ownedFrame) DataType() int            { return int(f.meta.DataType) }
func (f *ownedFrame) Dimensions() []int64      { return f.meta.Dimensions }
func (f *ownedFrame) Compression() int         { return int(f.meta.Compression) }
func (f *ownedFrame) Data() []byte             { return f.data }
func (f *ownedFrame) ImageOffset() int64       { return f.meta.ImageOffset }
func (f *ownedFrame) ImageData() []byte        { return imageData(f.data, f.meta.ImageOffset) }
func (f *ownedFrame) IsEndOfAcquisition() bool { return f.meta.EndOfAcquisition }
func (f *ownedFrame) Release()                 {}
func (f *ownedFrame) Parameter(name string) (any, bool) {
	v, ok := f.meta.Parameters[name]
	if !ok {
		return nil, false
	}
	return paramAny(v), true
}

// sharedFrame is backed by a buffer inside a shared-memory arena. Multiple
// plugin stages may hold a reference concurrently (e.g. a non-blocking fan
// out edge handing the same frame to two downstream plugins); the buffer
// is returned to the receiver's free-buffer queue only after the last
// holder calls Release.
type sharedFrame struct {
	meta       Metadata
	data       []byte
	refcount   *int32
	onLastFree func(bufferID int)
	bufferID   int
}

// NewShared constructs a Frame backed by a shared-memory buffer. initialRefs
// is the number of holders that will each call Release exactly once;
// onLastFree is invoked (with bufferID) when the last holder releases.
func NewShared(meta Metadata, data []byte, bufferID int, initialRefs int32, onLastFree func(bufferID int)) Frame {
	rc := initialRefs
	return &sharedFrame{
		meta:       meta,
		data:       data,
		refcount:   &rc,
		onLastFree: onLastFree,
		bufferID:   bufferID,
	}
}

func (f *sharedFrame) FrameNumber() int64       { return f.meta.FrameNumber }
func (f *sharedFrame) DatasetName() string      { return f.meta.DatasetName }
func (f *sharedFrame) DataType() int            { return int(f.meta.DataType) }
func (f *sharedFrame) Dimensions() []int64      { return f.meta.Dimensions }
func (f *sharedFrame) Compression() int         { return int(f.meta.Compression) }
func (f *sharedFrame) Data() []byte             { return f.data }
func (f *sharedFrame) ImageOffset() int64       { return f.meta.ImageOffset }
func (f *sharedFrame) ImageData() []byte        { return imageData(f.data, f.meta.ImageOffset) }
func (f *sharedFrame) IsEndOfAcquisition() bool { return f.meta.EndOfAcquisition }

func (f *sharedFrame) Parameter(name string) (any, bool) {
	v, ok := f.meta.Parameters[name]
	if !ok {
		return nil, false
	}
	return paramAny(v), true
}

func (f *sharedFrame) Release() {
	if atomic.AddInt32(f.refcount, -1) == 0 {
		if f.onLastFree != nil {
			f.onLastFree(f.bufferID)
		}
	}
}

// wrapperFrame reinterprets another Frame's bytes (and a subset of its
// metadata) without copying. Release delegates to the wrapped frame so the
// underlying buffer's lifetime is unaffected by how many wrappers sit on
// top of it.
type wrapperFrame struct {
	inner Frame
	meta  Metadata
	data  []byte
}

// NewWrapper constructs a Frame that reuses inner's backing bytes (or a
// slice of them) under new metadata. Release forwards to inner.
func NewWrapper(inner Frame, meta Metadata, data []byte) Frame {
	return &wrapperFrame{inner: inner, meta: meta, data: data}
}

func (f *wrapperFrame) FrameNumber() int64       { return f.meta.FrameNumber }
func (f *wrapperFrame) DatasetName() string      { return f.meta.DatasetName }
func (f *wrapperFrame) DataType() int            { return int(f.meta.DataType) }
func (f *wrapperFrame) Dimensions() []int64      { return f.meta.Dimensions }
func (f *wrapperFrame) Compression() int         { return int(f.meta.Compression) }
func (f *wrapperFrame) Data() []byte             { return f.data }
func (f *wrapperFrame) ImageOffset() int64       { return f.meta.ImageOffset }
func (f *wrapperFrame) ImageData() []byte        { return imageData(f.data, f.meta.ImageOffset) }
func (f *wrapperFrame) IsEndOfAcquisition() bool { return f.meta.EndOfAcquisition }
func (f *wrapperFrame) Release()                 { f.inner.Release() }

func (f *wrapperFrame) Parameter(name string) (any, bool) {
	v, ok := f.meta.Parameters[name]
	if !ok {
		return nil, false
	}
	return paramAny(v), true
}

// imageData slices off a frame's leading offset bytes, clamping to an empty
// result rather than panicking if offset exceeds the payload (e.g. a
// zero-payload end-of-acquisition sentinel).
func imageData(data []byte, offset int64) []byte {
	if offset <= 0 || offset >= int64(len(data)) {
		if offset <= 0 {
			return data
		}
		return nil
	}
	return data[offset:]
}

func paramAny(v ParamValue) any {
	switch v.Kind {
	case ParamU8:
		return v.U8
	case ParamU16:
		return v.U16
	case ParamU32:
		return v.U32
	case ParamU64:
		return v.U64
	case ParamF32:
		return v.F32
	case ParamString:
		return v.String
	case ParamRaw:
		return v.Raw
	default:
		return nil
	}
}
