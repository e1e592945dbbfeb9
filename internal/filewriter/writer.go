package filewriter

import (
	"context"
	"fmt"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/acquisition"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// Writer owns zero or more open container Files (indexed by acquisition
// file index) and wraps every create, write, flush and close call in a
// watchdog; DatasetFrameCount is a plain query and is not wrapped.
type Writer struct {
	mu          sync.Mutex
	files       map[int64]*File
	timeoutMs   int
	logger      interfaces.Logger
	wd          *watchdog
	createStats Stats
	writeStats  Stats
	flushStats  Stats
	closeStats  Stats
}

// NewWriter constructs a Writer. timeoutMs is the watchdog threshold
// applied to every container call; onWatchdogExpire is invoked (without
// interrupting the call) if a call overruns it.
func NewWriter(timeoutMs int, logger interfaces.Logger, onWatchdogExpire func(functionName string)) *Writer {
	w := &Writer{files: make(map[int64]*File), timeoutMs: timeoutMs, logger: logger}
	w.wd = newWatchdog(logger, onWatchdogExpire)
	return w
}

// CreateFile implements acquisition.FileOpener.
func (w *Writer) CreateFile(fileIndex int64, path string, datasets []acquisition.DatasetDefinition, lowIndex, highIndex int64) error {
	return w.wd.call(context.Background(), "CreateFile", w.timeoutMs, &w.createStats, func() error {
		fsDatasets := make([]Dataset, 0, len(datasets))
		for _, d := range datasets {
			fsDatasets = append(fsDatasets, Dataset{
				Name:            d.Name,
				DataType:        d.DataType,
				FrameDimensions: d.FrameDimensions,
				ChunkDimensions: d.ChunkDimensions,
				FilterID:        filterIDFor(d.Compression),
			})
		}

		cf, err := Create(path, "", fsDatasets, lowIndex, highIndex)
		if err != nil {
			return odinerr.Wrap("filewriter.Writer.CreateFile", "filewriter", err)
		}

		w.mu.Lock()
		w.files[fileIndex] = cf
		w.mu.Unlock()
		return nil
	})
}

func filterIDFor(compression int) int {
	switch compression {
	case 1: // CompressionLZ4
		return FilterLZ4
	case 2: // CompressionBSLZ4
		return FilterBSLZ4
	case 3: // CompressionBlosc
		return FilterBlosc
	default:
		return 0
	}
}

// CloseFile implements acquisition.FileOpener.
func (w *Writer) CloseFile(fileIndex int64) error {
	return w.wd.call(context.Background(), "CloseFile", w.timeoutMs, &w.closeStats, func() error {
		w.mu.Lock()
		cf, ok := w.files[fileIndex]
		delete(w.files, fileIndex)
		w.mu.Unlock()
		if !ok {
			return nil
		}
		return cf.Close()
	})
}

// DatasetFrameCount implements acquisition.FileOpener.
func (w *Writer) DatasetFrameCount(fileIndex int64, datasetName string) (int64, error) {
	w.mu.Lock()
	cf, ok := w.files[fileIndex]
	w.mu.Unlock()
	if !ok {
		return 0, odinerr.New("filewriter.Writer.DatasetFrameCount", "filewriter", odinerr.CodeContainerError,
			fmt.Sprintf("file index %d not open", fileIndex))
	}
	return cf.DatasetFrameCount(datasetName)
}

// WriteFrame implements acquisition.FileOpener: appends f's data unchanged
// as a chunk (frames arrive already compressed by an upstream plugin),
// tagged with the filter id for its declared Compression.
func (w *Writer) WriteFrame(fileIndex int64, datasetName string, offsetInFile int64, f interfaces.Frame) error {
	return w.wd.call(context.Background(), "WriteFrame", w.timeoutMs, &w.writeStats, func() error {
		w.mu.Lock()
		cf, ok := w.files[fileIndex]
		w.mu.Unlock()
		if !ok {
			return odinerr.New("filewriter.Writer.WriteFrame", "filewriter", odinerr.CodeContainerError,
				fmt.Sprintf("file index %d not open", fileIndex))
		}

		data := f.Data()
		filterID := filterIDFor(f.Compression())
		return cf.WriteChunk(datasetName, offsetInFile, data, int64(len(data)), filterID, nil)
	})
}

// WriteParameter writes a frame parameter to its matching parameter
// dataset, if one exists.
func (w *Writer) WriteParameter(fileIndex int64, datasetName string, offsetInFile int64, value []byte) error {
	return w.wd.call(context.Background(), "WriteParameter", w.timeoutMs, &w.writeStats, func() error {
		w.mu.Lock()
		cf, ok := w.files[fileIndex]
		w.mu.Unlock()
		if !ok {
			return odinerr.New("filewriter.Writer.WriteParameter", "filewriter", odinerr.CodeContainerError,
				fmt.Sprintf("file index %d not open", fileIndex))
		}
		return cf.WriteParameter(datasetName, offsetInFile, value)
	})
}

// Flush flushes every currently open file.
func (w *Writer) Flush() error {
	return w.wd.call(context.Background(), "Flush", w.timeoutMs, &w.flushStats, func() error {
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, cf := range w.files {
			if err := cf.Flush(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats returns the watchdog-tracked duration aggregates for each call
// kind, for publication on the metrics endpoint.
func (w *Writer) Stats() (create, write, flush, close Stats) {
	return w.createStats, w.writeStats, w.flushStats, w.closeStats
}
