// Package reactor implements the single-threaded event loop multiplexing
// socket readability, a command channel, and a periodic tick, built on
// io_uring. The ring-submit/ring-wait idiom is the same one the teacher
// repo used for device I/O completions; here it multiplexes network fds
// and timeouts instead of block-device tags.
package reactor

import (
	"context"
	"runtime"
	"time"

	"github.com/pawelgaczynski/giouring"

	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// udKind tags what a completion's user-data value refers to, since poll,
// timeout and command-eventfd completions all arrive on the same ring.
type udKind uint64

const (
	udReadable udKind = 1 << 62
	udTick     udKind = 2 << 62
	udCommand  udKind = 3 << 62
	udKindMask udKind = 3 << 62
	udIDMask          = ^uint64(udKindMask)
)

// ReadableFunc is invoked when a registered fd becomes readable.
type ReadableFunc func(fd int)

// Reactor multiplexes a fixed set of socket fds, a command eventfd, and a
// recurring tick via a single io_uring ring, running entirely on one
// goroutine pinned to its OS thread (io_uring rings are not safe to share
// across threads without additional synchronization).
type Reactor struct {
	ring       *giouring.Ring
	logger     interfaces.Logger
	fds        map[int]ReadableFunc
	tickPeriod time.Duration
	onTick     func()
	cmdFd      int
	onCommand  func()
}

// Config configures a Reactor.
type Config struct {
	Entries    uint32
	Logger     interfaces.Logger
	TickPeriod time.Duration
	OnTick     func()
	CommandFd  int // eventfd signaled to wake the reactor for out-of-band commands
	OnCommand  func()
}

// New creates a Reactor backed by a fresh io_uring ring of the given depth.
func New(cfg Config) (*Reactor, error) {
	ring, err := giouring.CreateRing(cfg.Entries)
	if err != nil {
		return nil, odinerr.Wrap("reactor.New", "reactor", err)
	}
	return &Reactor{
		ring:       ring,
		logger:     cfg.Logger,
		fds:        make(map[int]ReadableFunc),
		tickPeriod: cfg.TickPeriod,
		onTick:     cfg.OnTick,
		cmdFd:      cfg.CommandFd,
		onCommand:  cfg.OnCommand,
	}, nil
}

// RegisterReadable records fn as fd's handler. Run arms a one-shot poll for
// each registered fd, calls fn whenever fd becomes readable, and re-arms it.
func (r *Reactor) RegisterReadable(fd int, fn ReadableFunc) {
	r.fds[fd] = fn
}

// Unregister removes fd from the poll set.
func (r *Reactor) Unregister(fd int) {
	delete(r.fds, fd)
}

func (r *Reactor) armPoll(fd int) error {
	sqe := r.ring.GetSQE()
	if sqe == nil {
		return odinerr.New("reactor.armPoll", "reactor", odinerr.CodeFatal, "submission queue full")
	}
	sqe.PrepPollAdd(uint64(fd), giouring.POLLIN)
	sqe.UserData = uint64(udReadable) | uint64(fd)
	return nil
}

func (r *Reactor) armTick() error {
	if r.tickPeriod <= 0 {
		return nil
	}
	sqe := r.ring.GetSQE()
	if sqe == nil {
		return odinerr.New("reactor.armTick", "reactor", odinerr.CodeFatal, "submission queue full")
	}
	ts := giouring.Timespec{Sec: int64(r.tickPeriod / time.Second), Nsec: int64(r.tickPeriod % time.Second)}
	sqe.PrepTimeout(&ts, 0, 0)
	sqe.UserData = uint64(udTick)
	return nil
}

func (r *Reactor) armCommand() error {
	if r.cmdFd <= 0 {
		return nil
	}
	sqe := r.ring.GetSQE()
	if sqe == nil {
		return odinerr.New("reactor.armCommand", "reactor", odinerr.CodeFatal, "submission queue full")
	}
	sqe.PrepPollAdd(uint64(r.cmdFd), giouring.POLLIN)
	sqe.UserData = uint64(udCommand)
	return nil
}

// Run drives the event loop until ctx is cancelled. It pins itself to its
// OS thread for the duration, since the ring belongs to the thread that
// created it.
func (r *Reactor) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer r.ring.QueueExit()

	for fd := range r.fds {
		if err := r.armPoll(fd); err != nil {
			return err
		}
	}
	if err := r.armTick(); err != nil {
		return err
	}
	if err := r.armCommand(); err != nil {
		return err
	}
	if _, err := r.ring.Submit(); err != nil {
		return odinerr.Wrap("reactor.Run", "reactor", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		cqe, err := r.ring.WaitCQE()
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("reactor wait failed", "error", err)
			}
			continue
		}
		ud := udKind(cqe.UserData) & udKindMask
		id := cqe.UserData &^ uint64(udKindMask)
		r.ring.CQESeen(cqe)

		switch ud {
		case udReadable:
			fd := int(id)
			if fn, ok := r.fds[fd]; ok {
				fn(fd)
			}
			_ = r.armPoll(fd)
		case udTick:
			if r.onTick != nil {
				r.onTick()
			}
			_ = r.armTick()
		case udCommand:
			if r.onCommand != nil {
				r.onCommand()
			}
			_ = r.armCommand()
		}

		if _, err := r.ring.Submit(); err != nil && r.logger != nil {
			r.logger.Warn("reactor resubmit failed", "error", err)
		}
	}
}

// Close releases the ring's resources. Run must have returned first.
func (r *Reactor) Close() {
	r.ring.QueueExit()
}
