// Package odinerr provides the structured error type shared across the
// receiver and processor pipelines.
package odinerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a high-level error category, matching the fixed set of failure
// modes the pipeline distinguishes for logging and retry decisions.
type Code string

const (
	CodeInvalidBuffer    Code = "invalid buffer"
	CodeConfigError      Code = "config error"
	CodeDecoderError     Code = "decoder error"
	CodeFrameTimeout     Code = "frame timeout"
	CodeInvalidFrame     Code = "invalid frame"
	CodeOffsetOutOfRange Code = "offset out of range"
	CodeWrongRank        Code = "wrong rank"
	CodeContainerError   Code = "container error"
	CodeWatchdogTimeout  Code = "watchdog timeout"
	CodeFatal            Code = "fatal"
)

// Error is a structured error carrying enough context to log and to match
// on programmatically without string inspection.
type Error struct {
	Op          string // operation that failed, e.g. "arena.Open", "filewriter.WriteChunk"
	Component   string // originating component, e.g. "receiver", "acquisition"
	FrameNumber int64  // frame number, -1 if not applicable
	Queue       int    // queue/rank index, -1 if not applicable
	Code        Code
	Msg         string
	Inner       error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("component=%s", e.Component))
	}
	if e.FrameNumber >= 0 {
		parts = append(parts, fmt.Sprintf("frame=%d", e.FrameNumber))
	}
	if e.Queue >= 0 {
		parts = append(parts, fmt.Sprintf("queue=%d", e.Queue))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("odin: %s (%s)", msg, strings.Join(parts, " "))
	}
	return fmt.Sprintf("odin: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is match on Code alone, so callers can test
// errors.Is(err, &odinerr.Error{Code: odinerr.CodeFrameTimeout}) without
// needing every other field to line up.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Code == "" {
		return false
	}
	return e.Code == te.Code
}

// New creates an Error with no frame/queue context.
func New(op string, component string, code Code, msg string) *Error {
	return &Error{Op: op, Component: component, Code: code, Msg: msg, FrameNumber: -1, Queue: -1}
}

// NewFrameError creates an Error scoped to a specific frame number.
func NewFrameError(op, component string, frameNumber int64, code Code, msg string) *Error {
	return &Error{Op: op, Component: component, FrameNumber: frameNumber, Queue: -1, Code: code, Msg: msg}
}

// NewQueueError creates an Error scoped to a specific queue/rank.
func NewQueueError(op, component string, queue int, code Code, msg string) *Error {
	return &Error{Op: op, Component: component, Queue: queue, FrameNumber: -1, Code: code, Msg: msg}
}

// Wrap attaches op/component context to an inner error, preserving its
// Code if inner is already an *Error.
func Wrap(op, component string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var oe *Error
	if errors.As(inner, &oe) {
		return &Error{
			Op:          op,
			Component:   component,
			FrameNumber: oe.FrameNumber,
			Queue:       oe.Queue,
			Code:        oe.Code,
			Msg:         oe.Msg,
			Inner:       oe.Inner,
		}
	}
	return &Error{
		Op:          op,
		Component:   component,
		FrameNumber: -1,
		Queue:       -1,
		Code:        CodeFatal,
		Msg:         inner.Error(),
		Inner:       inner,
	}
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}
