package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odin-pipeline/odin-go/internal/frame"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
)

type fakeOpener struct {
	created map[int64]string
	closed  map[int64]bool
	written map[int64]int64 // fileIndex -> dataset frame count
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{created: map[int64]string{}, closed: map[int64]bool{}, written: map[int64]int64{}}
}

func (o *fakeOpener) CreateFile(fileIndex int64, path string, datasets []DatasetDefinition, lowIndex, highIndex int64) error {
	o.created[fileIndex] = path
	return nil
}

func (o *fakeOpener) CloseFile(fileIndex int64) error {
	o.closed[fileIndex] = true
	return nil
}

func (o *fakeOpener) DatasetFrameCount(fileIndex int64, datasetName string) (int64, error) {
	return o.written[fileIndex], nil
}

func (o *fakeOpener) WriteFrame(fileIndex int64, datasetName string, offsetInFile int64, f interfaces.Frame) error {
	o.written[fileIndex] = offsetInFile + 1
	return nil
}

func baseConfig(opener *fakeOpener) Config {
	return Config{
		AcquisitionID:       "acq1",
		ConcurrentRank:      0,
		ConcurrentProcesses: 1,
		FramesPerBlock:      1,
		BlocksPerFile:       0, // single file, unsharded
		FilePath:            "/tmp",
		FileExtension:       "h5",
		TotalFrames:         10,
		FramesToWrite:       10,
		Datasets:            map[string]DatasetDefinition{"data": {Name: "data"}},
		FileOpener:          opener,
	}
}

func TestSingleFileAcquisitionCompletes(t *testing.T) {
	opener := newFakeOpener()
	cfg := baseConfig(opener)
	a := New(cfg)
	require.NoError(t, a.Start())

	var status Status
	var err error
	for i := int64(0); i < 10; i++ {
		f := frame.NewOwned(frame.Metadata{FrameNumber: i, DatasetName: "data"}, nil)
		status, err = a.ProcessFrame(f, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, StatusComplete, status)
	assert.Len(t, opener.created, 1)
}

func TestShardedAcquisitionAcrossFiles(t *testing.T) {
	opener := newFakeOpener()
	cfg := baseConfig(opener)
	cfg.BlocksPerFile = 2 // 2 blocks (frames, since FramesPerBlock=1) per file
	a := New(cfg)
	require.NoError(t, a.Start())

	for i := int64(0); i < 5; i++ {
		f := frame.NewOwned(frame.Metadata{FrameNumber: i, DatasetName: "data"}, nil)
		_, err := a.ProcessFrame(f, 0)
		require.NoError(t, err)
	}
	// frames 0,1 -> file 0; frames 2,3 -> file 1; frame 4 -> file 2
	assert.GreaterOrEqual(t, len(opener.created), 2)
}

func TestMultiRankOwnershipRejectsForeignFrame(t *testing.T) {
	opener := newFakeOpener()
	cfg := baseConfig(opener)
	cfg.ConcurrentProcesses = 2
	cfg.ConcurrentRank = 0
	a := New(cfg)
	require.NoError(t, a.Start())

	// Frame offset 1 belongs to rank 1, not rank 0.
	f := frame.NewOwned(frame.Metadata{FrameNumber: 1, DatasetName: "data"}, nil)
	status, err := a.ProcessFrame(f, 0)
	assert.Error(t, err)
	assert.Equal(t, StatusInvalid, status)
}

func TestNegativeOffsetAdjustmentRejected(t *testing.T) {
	_, err := AdjustFrameOffset(0, -1)
	assert.Error(t, err)
}

func TestFilenameGeneration(t *testing.T) {
	opener := newFakeOpener()
	cfg := baseConfig(opener)
	cfg.ConfiguredFilename = "run"
	a := New(cfg)
	assert.Equal(t, "run_000001.h5", a.filename(0))
	assert.Equal(t, "run_000042.h5", a.filename(41))
}

// scenario 2 (spec.md §8): N=4, B=1000, F=0, rank under test varies per row.
func TestFileIndexScenario2(t *testing.T) {
	opener := newFakeOpener()
	cfg := baseConfig(opener)
	cfg.ConcurrentProcesses = 4
	cfg.FramesPerBlock = 1000
	cfg.BlocksPerFile = 0

	cases := []struct {
		rank, offset, wantFile, wantInFile int64
	}{
		{0, 0, 0, 0},
		{0, 999, 0, 999},
		{0, 4000, 4, 0},
		{1, 1000, 1, 0},
		{2, 2311, 2, 311},
		{3, 7452, 7, 452},
	}
	for _, c := range cases {
		cfg.ConcurrentRank = c.rank
		a := New(cfg)
		assert.Equal(t, c.wantFile, a.FileIndex(c.offset), "rank %d offset %d file_index", c.rank, c.offset)
		assert.Equal(t, c.wantInFile, a.FrameOffsetInFile(c.offset), "rank %d offset %d in_file_offset", c.rank, c.offset)
	}
}

// scenario 3 (spec.md §8): N=1, B=3, F=5.
func TestFileIndexScenario3(t *testing.T) {
	opener := newFakeOpener()
	cfg := baseConfig(opener)
	cfg.ConcurrentProcesses = 1
	cfg.ConcurrentRank = 0
	cfg.FramesPerBlock = 3
	cfg.BlocksPerFile = 5
	a := New(cfg)

	cases := []struct {
		offset, wantFile, wantInFile int64
	}{
		{14, 0, 14},
		{15, 1, 0},
		{30, 2, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.wantFile, a.FileIndex(c.offset), "offset %d file_index", c.offset)
		assert.Equal(t, c.wantInFile, a.FrameOffsetInFile(c.offset), "offset %d in_file_offset", c.offset)
	}
}

func TestStopClosesOpenFiles(t *testing.T) {
	opener := newFakeOpener()
	cfg := baseConfig(opener)
	a := New(cfg)
	require.NoError(t, a.Start())
	a.Stop()
	assert.True(t, opener.closed[0])
}
