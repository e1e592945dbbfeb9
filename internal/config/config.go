// Package config loads the receiver and processor's startup configuration:
// either a single JSON object applied directly, or a JSON array of control
// messages (each with the shape of an ordinary configure command) replayed
// in order. No ecosystem config library (viper, koanf, etc.) is exercised
// anywhere in the example pack, so this is deliberately built on
// encoding/json rather than adopting one — a narrow decoding concern, not a
// general configuration-management one.
package config

import (
	"encoding/json"
	"os"

	"github.com/odin-pipeline/odin-go/internal/odinerr"
)

// Message mirrors one entry of the control channel's request envelope
// (spec.md §6), used both over the wire and for file-based startup config.
type Message struct {
	MsgType string          `json:"msg_type"`
	MsgVal  string          `json:"msg_val"`
	MsgID   string          `json:"msg_id,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// LoadMessages reads path, accepting either a single JSON object (wrapped
// into a one-element slice) or a JSON array, and returns the messages in
// file order for sequential replay.
func LoadMessages(path string) ([]Message, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, odinerr.Wrap("config.LoadMessages", "config", err)
	}

	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err == nil {
		return msgs, nil
	}

	var single Message
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, odinerr.New("config.LoadMessages", "config", odinerr.CodeConfigError, "file is neither a JSON object nor array of control messages")
	}
	return []Message{single}, nil
}

// PluginConfig is one entry of a processor config's plugin list: a name to
// register against the chain, and its opaque Configure payload.
type PluginConfig struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config,omitempty"`
}

// ReceiverConfig is the receiver process's typed startup configuration.
type ReceiverConfig struct {
	SharedBufferName     string `json:"shared_buffer_name"`
	NumBuffers           int    `json:"num_buffers"`
	BufferSize           int    `json:"buffer_size"`
	FrameTimeoutMs       int    `json:"frame_timeout_ms"`
	DecoderType          string `json:"decoder_type"`
	Endpoint             string `json:"endpoint"`
	EnablePacketLog      bool   `json:"enable_packet_log"`
	FrameHeaderSize      int    `json:"frame_header_size"`
	RxEndpoint           string `json:"rx_endpoint"`
	FrameReadyEndpoint   string `json:"frame_ready_endpoint"`
	FrameReleaseEndpoint string `json:"frame_release_endpoint"`
	CtrlEndpoint         string `json:"ctrl_endpoint"`
	IOThreads            int    `json:"io_threads"`
	DebugLevel           int    `json:"debug_level"`
}

// ChainEdge is one entry of a processor config's chain wiring list,
// connecting a source plugin's output to a destination plugin's input.
type ChainEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Blocking bool   `json:"blocking"`
}

// ProcessorConfig is the processor process's typed startup configuration.
type ProcessorConfig struct {
	ReadyEndpoint      string         `json:"ready_endpoint"`
	ReleaseEndpoint    string         `json:"release_endpoint"`
	MetaEndpoint       string         `json:"meta_endpoint"`
	CtrlEndpoint       string         `json:"ctrl_endpoint"`
	IOThreads          int            `json:"io_threads"`
	DebugLevel         int            `json:"debug_level"`
	ShutdownFrameCount int64          `json:"shutdown_frame_count"`
	MasterDataset      string         `json:"master_dataset"`
	Plugins            []PluginConfig `json:"plugins"`
	Connections        []ChainEdge    `json:"connections,omitempty"`
}

// LoadReceiverConfig reads path as a single JSON object into a
// ReceiverConfig.
func LoadReceiverConfig(path string) (ReceiverConfig, error) {
	var cfg ReceiverConfig
	if err := loadObject(path, &cfg); err != nil {
		return ReceiverConfig{}, err
	}
	return cfg, nil
}

// LoadProcessorConfig reads path as a single JSON object into a
// ProcessorConfig.
func LoadProcessorConfig(path string) (ProcessorConfig, error) {
	var cfg ProcessorConfig
	if err := loadObject(path, &cfg); err != nil {
		return ProcessorConfig{}, err
	}
	return cfg, nil
}

func loadObject(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return odinerr.Wrap("config.loadObject", "config", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return odinerr.Wrap("config.loadObject", "config", err)
	}
	return nil
}
