package odin

import "github.com/odin-pipeline/odin-go/internal/config"

// ReceiverConfig is the receiver process's typed startup configuration, as
// loaded from the --config file or a "configure" control message.
type ReceiverConfig = config.ReceiverConfig

// ProcessorConfig is the processor process's typed startup configuration.
type ProcessorConfig = config.ProcessorConfig

// PluginConfig is one entry of a ProcessorConfig's plugin list: a name to
// register against the chain, and its opaque Configure payload.
type PluginConfig = config.PluginConfig

// ChainEdge connects a source plugin's output to a destination plugin's
// input in a ProcessorConfig's chain wiring list.
type ChainEdge = config.ChainEdge

// Message is a single control-channel message, the element type of a
// --json startup replay file.
type Message = config.Message

// LoadReceiverConfig reads path as a single JSON object into a
// ReceiverConfig.
func LoadReceiverConfig(path string) (ReceiverConfig, error) {
	return config.LoadReceiverConfig(path)
}

// LoadProcessorConfig reads path as a single JSON object into a
// ProcessorConfig.
func LoadProcessorConfig(path string) (ProcessorConfig, error) {
	return config.LoadProcessorConfig(path)
}

// LoadMessages reads path as a JSON array (or single object) of control
// messages, for startup replay.
func LoadMessages(path string) ([]Message, error) {
	return config.LoadMessages(path)
}
