package filewriter

import (
	"bytes"

	"github.com/pierrec/lz4/v4"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// CompressLZ4 compresses data with the standard LZ4 block codec.
func CompressLZ4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	var c lz4.Compressor
	n, err := c.CompressBlock(data, buf)
	if err != nil {
		return nil, odinerr.Wrap("filewriter.CompressLZ4", "filewriter", err)
	}
	return buf[:n], nil
}

// DecompressLZ4 reverses CompressLZ4 given the known uncompressed size.
func DecompressLZ4(data []byte, uncompressedSize int) ([]byte, error) {
	buf := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data, buf)
	if err != nil {
		return nil, odinerr.Wrap("filewriter.DecompressLZ4", "filewriter", err)
	}
	return buf[:n], nil
}

// bitshuffle performs the bitshuffle filter's byte-level transpose: for a
// fixed element size, it regroups the input so that all bit-N's across
// consecutive elements become contiguous. This is a narrow numerical
// transpose, not a general compression concern, so it is implemented
// directly rather than bound to a third-party library.
func bitshuffle(data []byte, elemSize int) []byte {
	if elemSize <= 1 || len(data)%elemSize != 0 {
		return append([]byte(nil), data...)
	}
	n := len(data) / elemSize
	out := make([]byte, len(data))
	for bit := 0; bit < elemSize*8; bit++ {
		byteIdx := bit / 8
		bitIdx := uint(bit % 8)
		for i := 0; i < n; i++ {
			srcByte := data[i*elemSize+byteIdx]
			b := (srcByte >> bitIdx) & 1
			dstBit := i % 8
			dstByte := bit*n/8 + i/8
			if dstByte < len(out) {
				out[dstByte] |= b << uint(dstBit)
			}
		}
	}
	return out
}

func unbitshuffle(data []byte, elemSize int, n int) []byte {
	if elemSize <= 1 {
		return append([]byte(nil), data...)
	}
	out := make([]byte, n*elemSize)
	for bit := 0; bit < elemSize*8; bit++ {
		byteIdx := bit / 8
		bitIdx := uint(bit % 8)
		for i := 0; i < n; i++ {
			dstByte := byteIdx
			srcBitByte := bit*n/8 + i/8
			if srcBitByte >= len(data) {
				continue
			}
			b := (data[srcBitByte] >> uint(i%8)) & 1
			out[i*elemSize+dstByte] |= b << bitIdx
		}
	}
	return out
}

// CompressBSLZ4 applies the bitshuffle transpose followed by LZ4,
// matching the detector ecosystem's BSLZ4 filter's two-stage design.
func CompressBSLZ4(data []byte, elemSize int) ([]byte, error) {
	shuffled := bitshuffle(data, elemSize)
	return CompressLZ4(shuffled)
}

// DecompressBSLZ4 reverses CompressBSLZ4.
func DecompressBSLZ4(data []byte, elemSize, uncompressedSize int) ([]byte, error) {
	shuffled, err := DecompressLZ4(data, uncompressedSize)
	if err != nil {
		return nil, err
	}
	n := uncompressedSize / elemSize
	return unbitshuffle(shuffled, elemSize, n), nil
}

// PassThroughBlosc stores Blosc-compressed data unchanged; the upstream
// plugin has already compressed it, and no pure-Go/cgo-free Blosc binding
// exists in the ecosystem to re-encode or validate it against. Blosc
// cd_values passed to WriteChunk are kept only in the in-memory chunk
// entry; the directory written to the file records per-dataset chunk
// counts only.
func PassThroughBlosc(data []byte) []byte {
	return bytes.Clone(data)
}
