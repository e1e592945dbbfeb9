// Command odin-processor runs the processor process (C7-C11): it receives
// frame-ready notifications from a receiver, runs each frame through a
// configurable plugin chain, and persists the chain's output into chunked
// container files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/odin-pipeline/odin-go/internal/acquisition"
	"github.com/odin-pipeline/odin-go/internal/arena"
	"github.com/odin-pipeline/odin-go/internal/chain"
	"github.com/odin-pipeline/odin-go/internal/chain/plugins"
	"github.com/odin-pipeline/odin-go/internal/config"
	"github.com/odin-pipeline/odin-go/internal/filewriter"
	"github.com/odin-pipeline/odin-go/internal/frame"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/ipc"
	"github.com/odin-pipeline/odin-go/internal/logging"
	"github.com/odin-pipeline/odin-go/internal/metrics"
	"github.com/odin-pipeline/odin-go/internal/proccontrol"
	"github.com/odin-pipeline/odin-go/internal/store"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		debugLevel         = flag.Int("debug-level", 1, "runtime verbosity level")
		logConfig          = flag.String("log-config", "", "logger config file (unused: no XML/properties logging backend in this build)")
		ioThreads          = flag.Int("io-threads", 1, "IPC worker threads")
		ctrlEndpoint       = flag.String("ctrl", "tcp://*:10010", "control channel bind endpoint")
		configFile         = flag.String("config", "", "apply a JSON config object at startup")
		jsonFile           = flag.String("json", "", "load a JSON array of control messages at startup and log their count; they are not replayed")
		readyEndpoint      = flag.String("ready", "tcp://127.0.0.1:10001", "frame-ready channel connect endpoint")
		releaseEndpoint    = flag.String("release", "tcp://*:10002", "frame-release channel bind endpoint")
		metaEndpoint       = flag.String("meta", "tcp://*:10003", "meta channel bind endpoint")
		metricsAddr        = flag.String("metrics-addr", "127.0.0.1:9100", "Prometheus metrics listen address")
		storePath          = flag.String("store", "odin-processor.db", "stored-configuration database path")
		filePath           = flag.String("file-path", ".", "output directory for container files")
		acquisitionID      = flag.String("acquisition-id", "acquisition", "acquisition/filename stem")
		totalFrames        = flag.Int64("total-frames", 0, "total frames expected (0 = unbounded)")
		shutdownFrameCount = flag.Int64("shutdown-frame-count", 0, "frames completed before requesting shutdown (0 = disabled)")
		masterDataset      = flag.String("master-dataset", "", "dataset used to count completions in multi-dataset acquisitions")
		watchdogTimeoutMs  = flag.Int("watchdog-timeout-ms", 5000, "per-call watchdog timeout for container-file operations")
		defaultDataType    = flag.Int("default-data-type", int(frame.DataTypeUint16), "frame data type assumed for frame-ready notifications, which carry no type information on the wire")
		defaultDimsFlag    = flag.String("default-dimensions", "", "comma-separated frame dimensions assumed for frame-ready notifications, e.g. \"1048,1030\"")
		defaultCompression = flag.Int("default-compression", int(frame.CompressionNone), "frame compression assumed for frame-ready notifications")
		showVersion        = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("odin-processor", version)
		return 0
	}
	if *logConfig != "" {
		fmt.Fprintln(os.Stderr, "warning: --log-config is accepted but ignored; this build logs via internal/logging only")
	}

	logCfg := logging.DefaultConfig()
	if *debugLevel >= 2 {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logCfg).Named("processor")
	_ = *ioThreads

	st, err := store.Open(*storePath)
	if err != nil {
		logger.Error("failed to open stored-configuration database", "error", err)
		return 1
	}
	defer st.Close()

	go func() {
		logger.Info("serving metrics", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, metrics.Handler()); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	metaPub, err := ipc.NewPublisher(*metaEndpoint)
	if err != nil {
		logger.Error("failed to bind meta channel", "error", err)
		return 1
	}
	defer metaPub.Close()

	releasePub, err := ipc.NewPublisher(*releaseEndpoint)
	if err != nil {
		logger.Error("failed to bind frame-release channel", "error", err)
		return 1
	}
	defer releasePub.Close()

	readySub, err := ipc.NewSubscriber(*readyEndpoint, "frame_ready")
	if err != nil {
		logger.Error("failed to connect frame-ready channel", "error", err)
		return 1
	}
	defer readySub.Close()

	c := chain.New(logger)

	writer := filewriter.NewWriter(*watchdogTimeoutMs, logger, func(functionName string) {
		logger.Warn("container watchdog expired", "function", functionName)
	})

	datasets := map[string]acquisition.DatasetDefinition{}
	if *masterDataset != "" {
		datasets[*masterDataset] = acquisition.DatasetDefinition{Name: *masterDataset}
	}

	acq := acquisition.New(acquisition.Config{
		AcquisitionID:       *acquisitionID,
		ConcurrentRank:      0,
		ConcurrentProcesses: 1,
		FramesPerBlock:      1,
		BlocksPerFile:       0,
		FilePath:            *filePath,
		ConfiguredFilename:  *acquisitionID,
		FileExtension:       ".h5",
		MasterFrame:         *masterDataset,
		TotalFrames:         *totalFrames,
		FramesToWrite:       *totalFrames,
		Datasets:            datasets,
		FileOpener:          writer,
		Publisher:           metaPub,
		Logger:              logger,
	})

	pluginMap := map[string]interfaces.Plugin{}
	registerPlugin := func(p interfaces.Plugin) {
		c.Register(p.Name(), p)
		pluginMap[p.Name()] = p
	}

	registerPlugin(plugins.NewGapFill("gapfill"))
	registerPlugin(plugins.NewSum("sum"))
	registerPlugin(plugins.NewLiveView("liveview", metaPub))

	var controller *proccontrol.Controller
	tail := plugins.NewPersistenceTail("persist", acq, func(f interfaces.Frame) {
		controller.TailCallback(f)
	})
	registerPlugin(tail)

	am := &arenaMapper{}
	rel := &frameReleaser{pub: releasePub}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller = proccontrol.New(proccontrol.Config{
		ShutdownFrameCount: *shutdownFrameCount,
		MasterDataset:      *masterDataset,
		Chain:              c,
		Arena:              am,
		Releaser:           rel,
		Store:              st,
		Logger:             logger,
		OnShutdown:         cancel,
	})

	connected, err := applyStartupConfig(*configFile, *jsonFile, pluginMap, c, logger)
	if err != nil {
		logger.Error("failed to apply startup configuration", "error", err)
		return 1
	}
	if !connected {
		if err := c.Connect(proccontrol.SourceName, "gapfill", true); err != nil {
			logger.Error("failed to wire default chain", "error", err)
			return 1
		}
		if err := c.Connect("gapfill", "persist", true); err != nil {
			logger.Error("failed to wire default chain", "error", err)
			return 1
		}
	}

	c.Start(ctx, 64)
	defer c.Stop()

	if err := acq.Start(); err != nil {
		logger.Error("failed to start acquisition", "error", err)
		return 1
	}

	ctrlServer, err := ipc.NewControlServer(*ctrlEndpoint)
	if err != nil {
		logger.Error("failed to bind control channel", "error", err)
		return 1
	}
	defer ctrlServer.Close()
	go serveControl(ctx, ctrlServer, pluginMap, logger)

	defaultDims, err := parseDimensions(*defaultDimsFlag)
	if err != nil {
		logger.Error("invalid --default-dimensions", "error", err)
		return 1
	}
	frameDefaults := frameReadyDefaults{
		dataType:    frame.DataType(*defaultDataType),
		dimensions:  defaultDims,
		compression: frame.Compression(*defaultCompression),
	}
	go frameReadyLoop(ctx, readySub, controller, logger, frameDefaults)
	go publishStatsLoop(ctx, c, pluginMap, acq, *acquisitionID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("shutdown requested by processor controller")
	}

	acq.Stop()
	return 0
}

// frameReadyDefaults supplies the frame metadata the frame-ready wire
// notification never carries (spec.md §6 gives it only frame/buffer_id),
// since the receiver has no notion of the detector's data type or shape.
// A real deployment would look these up per-dataset from its own
// configuration; this build applies one fixed default to every frame.
type frameReadyDefaults struct {
	dataType    frame.DataType
	dimensions  []int64
	compression frame.Compression
}

func frameReadyLoop(ctx context.Context, sub *ipc.Subscriber, controller *proccontrol.Controller, logger *logging.Logger, defaults frameReadyDefaults) {
	for {
		var msg ipc.ControlMessage
		_, err := sub.RecvJSON(&msg)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		switch msg.MsgVal {
		case "buffer_config":
			var params struct {
				SharedBufferName string `json:"shared_buffer_name"`
			}
			if err := json.Unmarshal(msg.Params, &params); err == nil {
				if err := controller.HandleBufferConfig(params.SharedBufferName); err != nil {
					logger.Error("failed to map arena", "error", err)
				}
			}
		case "frame_ready":
			var n proccontrol.FrameReadyNotification
			if err := json.Unmarshal(msg.Params, &n); err == nil {
				if n.DataType == 0 {
					n.DataType = int(defaults.dataType)
				}
				if len(n.Dimensions) == 0 {
					n.Dimensions = defaults.dimensions
				}
				if n.Compression == 0 {
					n.Compression = int(defaults.compression)
				}
				if err := controller.HandleFrameReady(ctx, n); err != nil {
					logger.Error("frame dropped", "error", err)
				}
			}
		}
	}
}

// parseDimensions parses a comma-separated list of positive integers, or
// returns nil for an empty string.
func parseDimensions(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	dims := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid dimension %q: %w", p, err)
		}
		dims[i] = v
	}
	return dims, nil
}

// applyStartupConfig configures named plugins and wires chain edges from
// configFile, if given, plus replays jsonFile's control messages (currently
// logged only; msg_val routing for startup replay mirrors serveControl's
// switch and is left to the operator's own tooling). It reports whether it
// wired any chain edges, so the caller knows whether to fall back to the
// built-in default wiring.
func applyStartupConfig(configFile, jsonFile string, pluginMap map[string]interfaces.Plugin, c *chain.Chain, logger *logging.Logger) (bool, error) {
	connected := false
	if configFile != "" {
		cfg, err := config.LoadProcessorConfig(configFile)
		if err != nil {
			return false, err
		}
		for _, pc := range cfg.Plugins {
			p, ok := pluginMap[pc.Name]
			if !ok {
				logger.Warn("startup config references unknown plugin", "plugin", pc.Name)
				continue
			}
			if err := p.Configure(context.Background(), pc.Config); err != nil {
				return false, err
			}
		}
		for _, edge := range cfg.Connections {
			if err := c.Connect(edge.From, edge.To, edge.Blocking); err != nil {
				return false, err
			}
			connected = true
		}
	}
	if jsonFile != "" {
		msgs, err := config.LoadMessages(jsonFile)
		if err != nil {
			return false, err
		}
		logger.Info("replaying startup control messages", "count", len(msgs))
	}
	return connected, nil
}

// arenaMapper adapts internal/arena.Arena to proccontrol.ArenaMapper.
type arenaMapper struct {
	mu sync.Mutex
	a  *arena.Arena
}

func (m *arenaMapper) MapArena(name string) error {
	a, err := arena.Open(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.a = a
	m.mu.Unlock()
	return nil
}

func (m *arenaMapper) Buffer(bufferID int) ([]byte, error) {
	m.mu.Lock()
	a := m.a
	m.mu.Unlock()
	if a == nil {
		return nil, fmt.Errorf("arena not mapped yet")
	}
	return a.Buffer(bufferID)
}

// frameReleaser adapts ipc.Publisher to proccontrol.FrameReleaser, publishing
// the frame-release channel's buffer_id hand-back.
type frameReleaser struct {
	pub *ipc.Publisher
}

func (r *frameReleaser) ReleaseBuffer(bufferID int, frameNumber int64) error {
	return r.pub.PublishJSON("frame_release", map[string]any{
		"msg_type": "notify",
		"msg_val":  "frame_release",
		"params": map[string]any{
			"frame":     frameNumber,
			"buffer_id": bufferID,
		},
	})
}

func serveControl(ctx context.Context, server *ipc.ControlServer, pluginMap map[string]interfaces.Plugin, logger *logging.Logger) {
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
		case "request_commands":
			reply.Params = marshalOrEmpty(proccontrol.RequestCommands(pluginMap))
		case "execute":
			var params struct {
				Plugin string          `json:"plugin"`
				Cmd    string          `json:"cmd"`
				Args   json.RawMessage `json:"args"`
			}
			_ = json.Unmarshal(msg.Params, &params)
			out, err := proccontrol.Execute(ctx, pluginMap, params.Plugin, params.Cmd, params.Args)
			if err != nil {
				reply.MsgType = "nack"
				reply.Params = marshalOrEmpty(map[string]string{"error": err.Error()})
			} else {
				reply.Params = out
			}
		case "request_version":
			reply.Params = marshalOrEmpty(map[string]string{"version": version})
		case "status":
			reply.Params = marshalOrEmpty(map[string]any{"ok": true})
		default:
			reply.MsgType = "nack"
			reply.Params = marshalOrEmpty(map[string]string{"error": fmt.Sprintf("unknown msg_val %q", msg.MsgVal)})
		}
		if err := server.Reply(identity, reply); err != nil {
			logger.Error("failed to reply on control channel", "error", err)
		}
	}
}

// publishStatsLoop periodically pushes each plugin's queue stats and the
// acquisition's frame counters to the Prometheus registry, so the process
// supervisor sees live progress without polling the control channel.
func publishStatsLoop(ctx context.Context, c *chain.Chain, pluginMap map[string]interfaces.Plugin, acq *acquisition.Acquisition, acquisitionID string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name := range pluginMap {
				stats, ok := c.QueueStats(name)
				if !ok {
					continue
				}
				last, max, mean := stats.Snapshot()
				depth, _ := c.QueueDepth(name)
				metrics.PublishPluginStats(name, uint64(last.Nanoseconds()), uint64(max.Nanoseconds()), uint64(mean.Nanoseconds()), depth)
			}
			metrics.PublishAcquisitionCounters(acquisitionID, acq.FramesWritten(), acq.FramesProcessed())
		}
	}
}

func marshalOrEmpty(v any) json.RawMessage {
	payload, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return payload
}
