package odin

import "github.com/odin-pipeline/odin-go/internal/interfaces"

// Plugin is the unit of work in the processor's plugin chain. Configure
// receives a JSON blob (the value side of a control message) and applies
// it to the plugin's internal state; ProcessFrame performs the plugin's
// work and returns the frame to forward downstream, or nil to terminate
// it (e.g. a persistence tail that consumes the frame).
//
// A plugin registers itself with a name, e.g.:
//
//	type Threshold struct{ cutoff uint16 }
//	func (t *Threshold) Name() string { return "threshold" }
//	func (t *Threshold) Configure(ctx context.Context, config []byte) error { ... }
//	func (t *Threshold) ProcessFrame(ctx context.Context, f odin.Frame) (odin.Frame, error) { ... }
type Plugin = interfaces.Plugin

// EndOfAcquisitionHandler is an optional capability a Plugin may implement
// to flush internal state when the end-of-acquisition sentinel passes
// through (e.g. closing an open container file). The chain always
// forwards the sentinel afterward regardless of whether a plugin
// implements this.
type EndOfAcquisitionHandler = interfaces.EndOfAcquisitionHandler

// CommandProvider is an optional capability a Plugin may implement to
// participate in the control channel's request_commands/execute contract,
// for plugin-specific operations beyond Configure (e.g. "recalibrate").
type CommandProvider = interfaces.CommandProvider

// Logger is the minimal logging contract a Plugin may accept from its
// constructor, satisfied by *internal/logging.Logger without the plugin
// package needing to import it.
type Logger = interfaces.Logger

// Observer receives pipeline-wide metrics (frames received/dropped, per-
// plugin processing duration, queue depth). internal/metrics.Observer is
// the concrete implementation; neither binary installs one.
type Observer = interfaces.Observer
