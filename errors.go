package odin

import "github.com/odin-pipeline/odin-go/internal/odinerr"

// Error is the pipeline's structured error type, carrying the failing
// operation, component, and a Code a caller can match on with errors.Is
// instead of string inspection.
type Error = odinerr.Error

// Code classifies an Error into the pipeline's fixed set of failure modes.
type Code = odinerr.Code

const (
	CodeInvalidBuffer    = odinerr.CodeInvalidBuffer
	CodeConfigError      = odinerr.CodeConfigError
	CodeDecoderError     = odinerr.CodeDecoderError
	CodeFrameTimeout     = odinerr.CodeFrameTimeout
	CodeInvalidFrame     = odinerr.CodeInvalidFrame
	CodeOffsetOutOfRange = odinerr.CodeOffsetOutOfRange
	CodeWrongRank        = odinerr.CodeWrongRank
	CodeContainerError   = odinerr.CodeContainerError
	CodeWatchdogTimeout  = odinerr.CodeWatchdogTimeout
	CodeFatal            = odinerr.CodeFatal
)

// IsCode reports whether err is (or wraps) a pipeline Error with the given
// Code.
func IsCode(err error, code Code) bool {
	return odinerr.Is(err, code)
}
