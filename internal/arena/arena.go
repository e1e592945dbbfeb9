// Package arena implements the POSIX shared-memory buffer arena used to pass
// frame data between the receiver and processor processes without a copy.
package arena

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

const (
	headerWords = 3
	headerSize  = headerWords * 8 // manager_id, num_buffers, buffer_size, each uint64
)

var nextManagerID uint64

// Arena is a POSIX shared-memory region divided into num_buffers fixed-size
// buffers, preceded by a small bit-exact header. One process creates it
// (Create), others attach to it by name (Open).
type Arena struct {
	name       string
	size       int
	numBuffers int
	bufferSize int
	mem        []byte
	owner      bool
}

// Create allocates a new shared-memory arena under /dev/shm/<name>, sized to
// hold numBuffers buffers of bufferSize bytes plus the header.
func Create(name string, numBuffers int, bufferSize int) (*Arena, error) {
	if numBuffers <= 0 || bufferSize <= 0 {
		return nil, odinerr.New("arena.Create", "arena", odinerr.CodeConfigError,
			fmt.Sprintf("numBuffers=%d bufferSize=%d must be positive", numBuffers, bufferSize))
	}

	regionSize := headerSize + numBuffers*bufferSize
	if bufferSize > regionSize-headerSize {
		return nil, odinerr.New("arena.Create", "arena", odinerr.CodeConfigError,
			"buffer_size exceeds region_size - header_size")
	}

	path := shmPath(name)
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_TRUNC, 0600)
	if err != nil {
		return nil, odinerr.Wrap("arena.Create", "arena", err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(regionSize)); err != nil {
		return nil, odinerr.Wrap("arena.Create", "arena", err)
	}

	mem, err := unix.Mmap(fd, 0, regionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, odinerr.Wrap("arena.Create", "arena", err)
	}

	managerID := atomic.AddUint64(&nextManagerID, 1)
	binary.NativeEndian.PutUint64(mem[0:8], managerID)
	binary.NativeEndian.PutUint64(mem[8:16], uint64(numBuffers))
	binary.NativeEndian.PutUint64(mem[16:24], uint64(bufferSize))

	return &Arena{
		name:       name,
		size:       regionSize,
		numBuffers: numBuffers,
		bufferSize: bufferSize,
		mem:        mem,
		owner:      true,
	}, nil
}

// Open attaches to an existing arena previously created by Create, reading
// its dimensions from the header.
func Open(name string) (*Arena, error) {
	path := shmPath(name)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, odinerr.Wrap("arena.Open", "arena", err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, odinerr.Wrap("arena.Open", "arena", err)
	}
	regionSize := int(st.Size)
	if regionSize < headerSize {
		return nil, odinerr.New("arena.Open", "arena", odinerr.CodeInvalidBuffer, "region too small for header")
	}

	mem, err := unix.Mmap(fd, 0, regionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, odinerr.Wrap("arena.Open", "arena", err)
	}

	numBuffers := int(binary.NativeEndian.Uint64(mem[8:16]))
	bufferSize := int(binary.NativeEndian.Uint64(mem[16:24]))

	return &Arena{
		name:       name,
		size:       regionSize,
		numBuffers: numBuffers,
		bufferSize: bufferSize,
		mem:        mem,
		owner:      false,
	}, nil
}

func shmPath(name string) string {
	return "/dev/shm/" + name
}

// ManagerID returns the identifier stamped into the header at creation.
func (a *Arena) ManagerID() uint64 {
	return binary.NativeEndian.Uint64(a.mem[0:8])
}

// NumBuffers returns the number of fixed-size buffers in the arena.
func (a *Arena) NumBuffers() int {
	return a.numBuffers
}

// BufferSize returns the size in bytes of each buffer.
func (a *Arena) BufferSize() int {
	return a.bufferSize
}

// Buffer returns a byte slice view over the given buffer index, backed
// directly by the mapped memory (no copy).
func (a *Arena) Buffer(index int) ([]byte, error) {
	if index < 0 || index >= a.numBuffers {
		return nil, odinerr.New("arena.Buffer", "arena", odinerr.CodeOffsetOutOfRange,
			fmt.Sprintf("buffer index %d out of range [0,%d)", index, a.numBuffers))
	}
	off := headerSize + index*a.bufferSize
	return a.mem[off : off+a.bufferSize], nil
}

// BufferAddress returns the raw pointer to a buffer, for APIs (decoders,
// io_uring fixed buffers) that need direct memory addresses rather than
// slices.
func (a *Arena) BufferAddress(index int) (unsafe.Pointer, error) {
	buf, err := a.Buffer(index)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(&buf[0]), nil
}

// Close unmaps the arena. If this Arena was the creator, the backing
// shared-memory object is also unlinked.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}
	if err := unix.Munmap(a.mem); err != nil {
		return odinerr.Wrap("arena.Close", "arena", err)
	}
	a.mem = nil
	if a.owner {
		_ = unix.Unlink(shmPath(a.name))
	}
	return nil
}
