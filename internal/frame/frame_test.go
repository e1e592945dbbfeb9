package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testMeta(n int64) Metadata {
	return Metadata{
		FrameNumber: n,
		DatasetName: "data",
		DataType:    DataTypeUint16,
		Dimensions:  []int64{512, 512},
		Compression: CompressionNone,
		Parameters: map[string]ParamValue{
			"exposure": {Kind: ParamF32, F32: 0.5},
		},
	}
}

func TestOwnedFrame(t *testing.T) {
	f := NewOwned(testMeta(1), []byte{1, 2, 3})
	assert.Equal(t, int64(1), f.FrameNumber())
	assert.Equal(t, "data", f.DatasetName())
	assert.Equal(t, []byte{1, 2, 3}, f.Data())
	v, ok := f.Parameter("exposure")
	assert.True(t, ok)
	assert.Equal(t, float32(0.5), v)
	f.Release() // no-op, must not panic
}

func TestSharedFrameReleasesOnLastRef(t *testing.T) {
	released := false
	f := NewShared(testMeta(2), []byte{9, 9}, 7, 2, func(bufferID int) {
		released = true
		assert.Equal(t, 7, bufferID)
	})

	f.Release()
	assert.False(t, released, "should not release before all refs dropped")

	f.Release()
	assert.True(t, released, "should release after last ref dropped")
}

func TestWrapperFrameDelegatesRelease(t *testing.T) {
	released := false
	inner := NewShared(testMeta(3), []byte{1}, 1, 1, func(int) { released = true })
	w := NewWrapper(inner, testMeta(3), []byte{1})

	w.Release()
	assert.True(t, released)
}

func TestImageOffsetSkipsLeadingBytes(t *testing.T) {
	meta := testMeta(4)
	meta.ImageOffset = 2
	f := NewOwned(meta, []byte{0xAA, 0xBB, 1, 2, 3})
	assert.Equal(t, int64(2), f.ImageOffset())
	assert.Equal(t, []byte{1, 2, 3}, f.ImageData())
	assert.Equal(t, f.Data()[f.ImageOffset():], f.ImageData())
}

func TestImageOffsetZeroReturnsFullData(t *testing.T) {
	f := NewOwned(testMeta(5), []byte{1, 2, 3})
	assert.Equal(t, int64(0), f.ImageOffset())
	assert.Equal(t, f.Data(), f.ImageData())
}

func TestImageOffsetBeyondPayloadYieldsEmpty(t *testing.T) {
	meta := testMeta(6)
	meta.ImageOffset = 10
	f := NewOwned(meta, []byte{1, 2, 3})
	assert.Empty(t, f.ImageData())
}

func TestWrapperFrameCarriesIndependentImageOffset(t *testing.T) {
	innerMeta := testMeta(7)
	innerMeta.ImageOffset = 1
	inner := NewOwned(innerMeta, []byte{0xFF, 1, 2})

	wrapMeta := testMeta(7)
	wrapMeta.ImageOffset = 0
	w := NewWrapper(inner, wrapMeta, []byte{1, 2})

	assert.Equal(t, int64(1), inner.ImageOffset())
	assert.Equal(t, int64(0), w.ImageOffset())
	assert.Equal(t, []byte{1, 2}, w.ImageData())
}

func TestOptional(t *testing.T) {
	unset := None[int]()
	_, ok := unset.Get()
	assert.False(t, ok)
	assert.False(t, unset.IsSet())

	set := Some(42)
	v, ok := set.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}
