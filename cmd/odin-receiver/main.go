// Command odin-receiver runs the receiver process (C1-C6): it listens on a
// detector transport socket, reassembles packets into frames inside a
// shared-memory arena, and publishes frame-ready notifications for a
// processor to pick up.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/odin-pipeline/odin-go/internal/arena"
	"github.com/odin-pipeline/odin-go/internal/config"
	"github.com/odin-pipeline/odin-go/internal/decoder"
	"github.com/odin-pipeline/odin-go/internal/ipc"
	"github.com/odin-pipeline/odin-go/internal/logging"
	"github.com/odin-pipeline/odin-go/internal/metrics"
	"github.com/odin-pipeline/odin-go/internal/receiver"
	"github.com/odin-pipeline/odin-go/internal/rxcontrol"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		debugLevel           = flag.Int("debug-level", 1, "runtime verbosity level")
		logConfig            = flag.String("log-config", "", "logger config file (unused: no XML/properties logging backend in this build)")
		ioThreads            = flag.Int("io-threads", 1, "IPC worker threads")
		ctrlEndpoint         = flag.String("ctrl", "tcp://*:10000", "control channel bind endpoint")
		configFile           = flag.String("config", "", "load a JSON config object at startup and log it; its settings are not applied")
		jsonFile             = flag.String("json", "", "load a JSON array of control messages at startup and log their count; they are not replayed")
		rxEndpoint           = flag.String("rx-endpoint", "udp://0.0.0.0:9999", "detector transport endpoint")
		frameReadyEndpoint   = flag.String("frame-ready-endpoint", "tcp://*:10001", "frame-ready channel bind endpoint")
		frameReleaseEndpoint = flag.String("frame-release-endpoint", "tcp://127.0.0.1:10002", "frame-release channel connect endpoint")
		sharedBufferName     = flag.String("shared-buffer-name", "odin-arena", "POSIX shared-memory arena name")
		numBuffers           = flag.Int("num-buffers", 16, "number of arena buffers")
		bufferSize           = flag.Int("buffer-size", 1<<20, "bytes per arena buffer")
		frameHeaderSize      = flag.Int("frame-header-size", 0, "bytes reserved at the front of each buffer ahead of the reassembled payload (image offset)")
		metricsAddr          = flag.String("metrics-addr", "127.0.0.1:9101", "Prometheus metrics listen address")
		showVersion          = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("odin-receiver", version)
		return 0
	}
	if *logConfig != "" {
		fmt.Fprintln(os.Stderr, "warning: --log-config is accepted but ignored; this build logs via internal/logging only")
	}

	logCfg := logging.DefaultConfig()
	if *debugLevel >= 2 {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logCfg).Named("receiver")
	_ = *ioThreads // IPC worker threads: zmq4's default context already multiplexes I/O threads internally.

	go func() {
		logger.Info("serving metrics", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, metrics.Handler()); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	a, err := arena.Create(*sharedBufferName, *numBuffers, *bufferSize)
	if err != nil {
		logger.Error("failed to create shared-memory arena", "error", err)
		return 1
	}
	defer a.Close()

	readyPub, err := ipc.NewPublisher(*frameReadyEndpoint)
	if err != nil {
		logger.Error("failed to bind frame-ready channel", "error", err)
		return 1
	}
	defer readyPub.Close()

	releaseSub, err := ipc.NewSubscriber(*frameReleaseEndpoint, "")
	if err != nil {
		logger.Error("failed to connect frame-release channel", "error", err)
		return 1
	}
	defer releaseSub.Close()

	var rx *receiver.Receiver
	rx = receiver.New(receiver.Config{
		Arena:           a,
		Logger:          logger,
		FrameHeaderSize: *frameHeaderSize,
		OnFrameReady: func(bufferID int, h decoder.Header, imageOffset int64) {
			metrics.ObserveFramesReceived(1)
			_ = readyPub.PublishJSON("frame_ready", map[string]any{
				"msg_type": "notify",
				"msg_val":  "frame_ready",
				"params": map[string]any{
					"frame":        h.FrameNumber,
					"buffer_id":    bufferID,
					"image_offset": imageOffset,
				},
			})
		},
	})

	applier := &receiverApplier{arena: a, rx: rx, logger: logger}
	rxCfg := rxcontrol.Config{
		SharedBufferName: *sharedBufferName,
		NumBuffers:       *numBuffers,
		BufferSize:       *bufferSize,
		DecoderType:      "udp",
		Endpoint:         *rxEndpoint,
		FrameHeaderSize:  *frameHeaderSize,
	}
	controller := rxcontrol.New(rxCfg, applier, logger)

	if err := controller.Precharge(context.Background(), *numBuffers); err != nil {
		logger.Error("precharge failed", "error", err)
		return 1
	}
	if err := applier.ApplyConfig(context.Background(), rxCfg, map[string]bool{"decoder_type": true, "endpoint": true}); err != nil {
		logger.Error("failed to bind detector transport", "error", err)
		return 1
	}
	_ = readyPub.PublishJSON("frame_ready", map[string]any{
		"msg_type": "notify",
		"msg_val":  "buffer_config",
		"params":   map[string]any{"shared_buffer_name": *sharedBufferName},
	})

	if *configFile != "" {
		cfg, err := config.LoadReceiverConfig(*configFile)
		if err != nil {
			logger.Error("failed to load --config", "error", err)
			return 1
		}
		logger.Info("loaded startup configuration", "file", *configFile, "decoder_type", cfg.DecoderType)
	}
	if *jsonFile != "" {
		msgs, err := config.LoadMessages(*jsonFile)
		if err != nil {
			logger.Error("failed to load --json", "error", err)
			return 1
		}
		logger.Info("replaying startup control messages", "count", len(msgs))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrlServer, err := ipc.NewControlServer(*ctrlEndpoint)
	if err != nil {
		logger.Error("failed to bind control channel", "error", err)
		return 1
	}
	defer ctrlServer.Close()
	go serveControl(ctx, ctrlServer, controller, logger)

	go func() {
		for {
			var msg ipc.ControlMessage
			_, err := releaseSub.RecvJSON(&msg)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if msg.MsgVal != "frame_release" {
				continue
			}
			var params struct {
				BufferID int `json:"buffer_id"`
			}
			if err := json.Unmarshal(msg.Params, &params); err == nil {
				rx.PushEmptyBuffer(params.BufferID)
			}
		}
	}()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- rx.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-runErrCh:
		if err != nil {
			logger.Error("receive loop failed", "error", err)
			cancel()
			return 1
		}
	}
	<-runErrCh
	return 0
}

// receiverApplier implements rxcontrol.Applier, swapping the active wire
// reader when the decoder type or endpoint changes.
type receiverApplier struct {
	arena  *arena.Arena
	rx     *receiver.Receiver
	logger *logging.Logger
	fd     int
}

func (a *receiverApplier) ApplyConfig(ctx context.Context, cfg rxcontrol.Config, dirty map[string]bool) error {
	if !dirty["decoder_type"] && !dirty["endpoint"] {
		return nil
	}
	if cfg.DecoderType != "udp" {
		return fmt.Errorf("decoder type %q not supported by this build's transport binder (tcp/zmq readers exist but require a dialed peer, not a bind endpoint)", cfg.DecoderType)
	}
	host, port, err := parseUDPEndpoint(cfg.Endpoint)
	if err != nil {
		return err
	}
	fd, err := bindUDPSocket(host, port)
	if err != nil {
		return err
	}
	a.fd = fd
	a.rx.SetReader(decoder.NewUDPReader(fd, a.rx.Decoder()))
	return nil
}

func (a *receiverApplier) PrechargeBuffers(ctx context.Context, numBuffers int) error {
	return a.rx.Precharge(numBuffers)
}

func parseUDPEndpoint(endpoint string) (string, int, error) {
	addr := endpoint
	for _, prefix := range []string{"udp://"} {
		if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
			addr = addr[len(prefix):]
		}
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid UDP endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid UDP port in %q: %w", endpoint, err)
	}
	return host, port, nil
}

func bindUDPSocket(host string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	var addr unix.SockaddrInet4
	addr.Port = port
	if host != "" && host != "0.0.0.0" {
		ip := net.ParseIP(host).To4()
		if ip == nil {
			return 0, fmt.Errorf("invalid IPv4 host %q", host)
		}
		copy(addr.Addr[:], ip)
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

func serveControl(ctx context.Context, server *ipc.ControlServer, controller *rxcontrol.Controller, logger interface {
	Info(string, ...any)
	Error(string, ...any)
}) {
	for {
		identity, msg, err := server.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		reply := ipc.ControlMessage{MsgType: "ack", MsgVal: msg.MsgVal, ID: msg.ID}
		switch msg.MsgVal {
		case "configure":
			var wire config.ReceiverConfig
			dirty := map[string]bool{}
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(msg.Params, &raw); err == nil {
				for k := range raw {
					dirty[k] = true
				}
			}
			_ = json.Unmarshal(msg.Params, &wire)
			changes := rxcontrol.Config{
				SharedBufferName: wire.SharedBufferName,
				NumBuffers:       wire.NumBuffers,
				BufferSize:       wire.BufferSize,
				FrameTimeoutMs:   wire.FrameTimeoutMs,
				DecoderType:      wire.DecoderType,
				Endpoint:         wire.Endpoint,
				EnablePacketLog:  wire.EnablePacketLog,
				FrameHeaderSize:  wire.FrameHeaderSize,
			}
			if err := controller.Update(ctx, changes, dirty); err != nil {
				reply.MsgType = "nack"
				reply.Params = errorParams(err)
			}
		case "request_configuration":
			payload, _ := json.Marshal(controller.Current())
			reply.Params = payload
		case "status":
			payload, _ := json.Marshal(map[string]any{"ok": true})
			reply.Params = payload
		case "request_version":
			payload, _ := json.Marshal(map[string]string{"version": version})
			reply.Params = payload
		case "shutdown":
			logger.Info("shutdown requested via control channel")
		default:
			reply.MsgType = "nack"
			reply.Params = errorParams(fmt.Errorf("unknown msg_val %q", msg.MsgVal))
		}
		if err := server.Reply(identity, reply); err != nil {
			logger.Error("failed to reply on control channel", "error", err)
		}
	}
}

func errorParams(err error) json.RawMessage {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return payload
}
