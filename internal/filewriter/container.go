// Package filewriter implements a minimal chunked container file format:
// a fixed header, an extensible per-dataset directory, and append-only
// chunk regions. Structurally grounded on a qcow2-style
// header+directory+block layout, adapted from a single virtual disk to
// multiple named, independently chunked, appendable datasets.
package filewriter

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// Magic identifies the container format ("ODIN" in ASCII).
var Magic = [4]byte{0x4F, 0x44, 0x49, 0x4E}

const formatVersion = 1

// Filter ids registered for each compression scheme, matching the
// pipeline's external wire encoding.
const (
	FilterLZ4   = 32004
	FilterBSLZ4 = 32008
	FilterBlosc = 32001
)

// ChunkEntry locates one written chunk within the file.
type ChunkEntry struct {
	FrameIndex       int64
	Offset           int64
	Length           int64
	UncompressedSize int64
	FilterID         int
	CDValues         []uint32 // Blosc cd_values, kept in memory only
}

// Dataset is one named, independently chunked region of the file.
type Dataset struct {
	Name            string
	DataType        int
	FrameDimensions []int64
	ChunkDimensions []int64
	FilterID        int
	Unlimited       bool
	LowIndex        int64
	HighIndex       int64

	chunks []ChunkEntry
}

// File is one open container file.
type File struct {
	mu               sync.Mutex
	f                *os.File
	acquisitionID    string
	datasets         map[string]*Dataset
	flushEvery       int
	writesSinceFlush int
}

// Create creates a new container file at path with the given datasets and
// low/high index attributes applied uniformly (the acquisition layer
// computes per-dataset values when it matters).
func Create(path string, acquisitionID string, datasets []Dataset, lowIndex, highIndex int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, odinerr.Wrap("filewriter.Create", "filewriter", err)
	}

	cf := &File{f: f, acquisitionID: acquisitionID, datasets: make(map[string]*Dataset), flushEvery: 64}
	for i := range datasets {
		d := datasets[i]
		d.LowIndex = lowIndex
		d.HighIndex = highIndex
		cf.datasets[d.Name] = &d
	}

	if err := cf.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return cf, nil
}

func (cf *File) writeHeader() error {
	hdr := make([]byte, 32)
	copy(hdr[0:4], Magic[:])
	binary.BigEndian.PutUint32(hdr[4:8], formatVersion)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(cf.datasets)))
	_, err := cf.f.WriteAt(hdr, 0)
	if err != nil {
		return odinerr.Wrap("filewriter.writeHeader", "filewriter", err)
	}
	return nil
}

// WriteChunk appends already-compressed chunk bytes for one frame of a
// dataset and records its directory entry. Direct-chunk append bypasses
// any filter pipeline: data arrives pre-compressed. filterID/cdValues are
// recorded in the in-memory chunk entry; they are not written to the file.
func (cf *File) WriteChunk(datasetName string, frameIndex int64, data []byte, uncompressedSize int64, filterID int, cdValues []uint32) error {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	d, ok := cf.datasets[datasetName]
	if !ok {
		return odinerr.New("filewriter.WriteChunk", "filewriter", odinerr.CodeContainerError,
			fmt.Sprintf("unknown dataset %q", datasetName))
	}

	off, err := cf.f.Seek(0, os.SEEK_END)
	if err != nil {
		return odinerr.Wrap("filewriter.WriteChunk", "filewriter", err)
	}
	if _, err := cf.f.Write(data); err != nil {
		return odinerr.Wrap("filewriter.WriteChunk", "filewriter", err)
	}

	d.chunks = append(d.chunks, ChunkEntry{
		FrameIndex:       frameIndex,
		Offset:           off,
		Length:           int64(len(data)),
		UncompressedSize: uncompressedSize,
		FilterID:         filterID,
		CDValues:         cdValues,
	})

	cf.writesSinceFlush++
	if cf.writesSinceFlush >= cf.flushEvery {
		if err := cf.flushDirectory(); err != nil {
			return err
		}
		cf.writesSinceFlush = 0
	}
	return nil
}

// DatasetFrameCount returns how many chunks (frames) have been written to
// datasetName so far.
func (cf *File) DatasetFrameCount(datasetName string) (int64, error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	d, ok := cf.datasets[datasetName]
	if !ok {
		return 0, odinerr.New("filewriter.DatasetFrameCount", "filewriter", odinerr.CodeContainerError,
			fmt.Sprintf("unknown dataset %q", datasetName))
	}
	return int64(len(d.chunks)), nil
}

// WriteParameter appends a scalar parameter value to a resizable 1-D
// dataset, matching the original implementation's extend-then-write
// parameter dataset pattern generalized to this container's chunk model.
func (cf *File) WriteParameter(datasetName string, frameIndex int64, value []byte) error {
	return cf.WriteChunk(datasetName, frameIndex, value, int64(len(value)), 0, nil)
}

// flushDirectory appends each dataset's name and chunk count, followed by
// an 8-byte pointer to where this directory copy starts, at the end of the
// file. Called periodically, on Flush and at Close. Chunk offsets and
// lengths are not written, so the directory alone does not locate
// individual frames.
func (cf *File) flushDirectory() error {
	// The directory is appended past the current data region on every
	// flush; only the most recent copy is authoritative. A production
	// reader locates it via a trailing pointer written last.
	off, err := cf.f.Seek(0, os.SEEK_END)
	if err != nil {
		return odinerr.Wrap("filewriter.flushDirectory", "filewriter", err)
	}

	for name, d := range cf.datasets {
		entry := fmt.Sprintf("dataset=%s chunks=%d\n", name, len(d.chunks))
		if _, err := cf.f.WriteString(entry); err != nil {
			return odinerr.Wrap("filewriter.flushDirectory", "filewriter", err)
		}
	}

	trailer := make([]byte, 8)
	binary.BigEndian.PutUint64(trailer, uint64(off))
	if _, err := cf.f.Write(trailer); err != nil {
		return odinerr.Wrap("filewriter.flushDirectory", "filewriter", err)
	}
	return nil
}

// Flush syncs pending writes and the directory to disk.
func (cf *File) Flush() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if err := cf.flushDirectory(); err != nil {
		return err
	}
	if err := cf.f.Sync(); err != nil {
		return odinerr.Wrap("filewriter.Flush", "filewriter", err)
	}
	cf.writesSinceFlush = 0
	return nil
}

// Close flushes the directory and closes the underlying file.
func (cf *File) Close() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if err := cf.flushDirectory(); err != nil {
		cf.f.Close()
		return err
	}
	return cf.f.Close()
}
