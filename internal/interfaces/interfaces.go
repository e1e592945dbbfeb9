// Package interfaces holds the small set of cross-cutting contracts shared
// between the root facade package and the internal pipeline packages. It
// exists purely to break import cycles: the facade package depends on it,
// and internal packages (chain, workqueue, receiver, proccontrol) also
// depend on it, without depending on each other or on the facade.
package interfaces

import "context"

// Frame is the read contract a plugin sees for an in-flight frame. Concrete
// backings (owned, shared-buffer, wrapper) live in internal/frame; plugins
// only ever see this interface.
type Frame interface {
	FrameNumber() int64
	DatasetName() string
	DataType() int
	Dimensions() []int64
	Compression() int
	Data() []byte
	// ImageOffset is the byte offset of the image payload within Data,
	// i.e. ImageData() == Data()[ImageOffset():].
	ImageOffset() int64
	// ImageData returns the frame's payload with any leading non-image
	// bytes (e.g. a reassembled transport header) sliced off in place.
	ImageData() []byte
	Parameter(name string) (any, bool)
	// IsEndOfAcquisition reports whether this is the zero-payload sentinel
	// that drains the chain without stopping it. The chain dispatches
	// sentinels to EndOfAcquisitionHandler instead of ProcessFrame.
	IsEndOfAcquisition() bool
	Release()
}

// Plugin is the unit of work in the processor's plugin chain. Configure
// receives a JSON blob (the value side of a control message) and applies it
// to the plugin's internal state; ProcessFrame performs the plugin's work
// and returns the frame to forward downstream (or nil to terminate it).
type Plugin interface {
	Name() string
	Configure(ctx context.Context, config []byte) error
	ProcessFrame(ctx context.Context, f Frame) (Frame, error)
}

// EndOfAcquisitionHandler is an optional capability a Plugin may implement
// to flush internal state when an end-of-acquisition sentinel passes
// through. The chain always forwards the sentinel afterward regardless of
// whether the plugin implements this.
type EndOfAcquisitionHandler interface {
	ProcessEndOfAcquisition(ctx context.Context) error
}

// Invoke dispatches f to p: ProcessEndOfAcquisition (if implemented) for a
// sentinel frame, always forwarding the sentinel unchanged afterward; or
// ProcessFrame otherwise. Both the plugin chain and the per-plugin work
// queue route through this so sentinel handling is defined in one place.
func Invoke(ctx context.Context, p Plugin, f Frame) (Frame, error) {
	if f.IsEndOfAcquisition() {
		if h, ok := p.(EndOfAcquisitionHandler); ok {
			if err := h.ProcessEndOfAcquisition(ctx); err != nil {
				return nil, err
			}
		}
		return f, nil
	}
	return p.ProcessFrame(ctx, f)
}

// CommandProvider is an optional capability a Plugin may additionally
// implement to participate in the control channel's request_commands/execute
// contract. Plugins that don't need bespoke commands simply don't implement
// it; the processor controller type-asserts for it per plugin.
type CommandProvider interface {
	Commands() []string
	Execute(ctx context.Context, cmd string, params []byte) ([]byte, error)
}

// Logger is the minimal logging contract internal packages depend on,
// satisfied by *logging.Logger without importing it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives pipeline metrics. Implementations must be safe for
// concurrent use, since calls arrive from worker goroutines and the
// reactor loop alike.
type Observer interface {
	ObserveFramesReceived(count uint64)
	ObserveFramesDropped(count uint64)
	ObservePluginDuration(plugin string, durationNs uint64)
	ObserveQueueDepth(plugin string, depth int)
}
