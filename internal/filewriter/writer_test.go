package filewriter

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odin-pipeline/odin-go/internal/acquisition"
	"github.com/odin-pipeline/odin-go/internal/frame"
)

func TestWriterImplementsFileOpener(t *testing.T) {
	var _ acquisition.FileOpener = (*Writer)(nil)
}

func TestWriterCreateWriteCloseRoundTrip(t *testing.T) {
	w := NewWriter(0, nil, nil)
	path := filepath.Join(t.TempDir(), "acq_000001.odn")

	datasets := []acquisition.DatasetDefinition{{Name: "data", FrameDimensions: []int64{2, 2}}}
	require.NoError(t, w.CreateFile(0, path, datasets, 0, 3))

	for i := int64(0); i < 4; i++ {
		f := frame.NewOwned(frame.Metadata{FrameNumber: i, DatasetName: "data"}, []byte{byte(i), byte(i + 1)})
		require.NoError(t, w.WriteFrame(0, "data", i, f))
	}

	n, err := w.DatasetFrameCount(0, "data")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, w.CloseFile(0))
}

func TestWriterWriteFrameUnknownFileFails(t *testing.T) {
	w := NewWriter(0, nil, nil)
	f := frame.NewOwned(frame.Metadata{FrameNumber: 0, DatasetName: "data"}, []byte{1})
	err := w.WriteFrame(99, "data", 0, f)
	assert.Error(t, err)
}

func TestWriterTracksPerCallStats(t *testing.T) {
	w := NewWriter(0, nil, nil)
	path := filepath.Join(t.TempDir(), "acq_000002.odn")
	datasets := []acquisition.DatasetDefinition{{Name: "data"}}
	require.NoError(t, w.CreateFile(0, path, datasets, 0, 0))

	create, _, _, _ := w.Stats()
	last, _, _ := create.Snapshot()
	assert.GreaterOrEqual(t, last.Nanoseconds(), int64(0))
}
