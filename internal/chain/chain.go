// Package chain implements the processor's plugin DAG: named plugins wired
// together by blocking (inline, ordered) or non-blocking (queued) edges.
package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/odin-pipeline/odin-go/internal/frame"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
	"github.com/odin-pipeline/odin-go/internal/odinerr"
	"github.com/odin-pipeline/odin-go/internal/workqueue"
)

// isValidFrame reports whether f satisfies the chain's push precondition:
// an end-of-acquisition sentinel, or a frame with a known data type and
// compression scheme.
func isValidFrame(f interfaces.Frame) bool {
	if f.IsEndOfAcquisition() {
		return true
	}
	return f.DataType() != int(frame.DataTypeUnknown) && f.Compression() != int(frame.CompressionUnknown)
}

// pluginNode wraps a registered plugin with its outgoing edges.
type pluginNode struct {
	plugin           interfaces.Plugin
	blockingEdges    []string // processed inline, in order, by the same call stack
	nonBlockingEdges []string // handed off to the destination plugin's workqueue.Queue
	queue            *workqueue.Queue
}

// Chain is a named-plugin DAG. Frames enter at a named source plugin and
// flow along blocking edges synchronously or non-blocking edges via the
// destination plugin's bounded queue.
type Chain struct {
	mu     sync.RWMutex
	nodes  map[string]*pluginNode
	logger interfaces.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs an empty Chain.
func New(logger interfaces.Logger) *Chain {
	return &Chain{nodes: make(map[string]*pluginNode), logger: logger}
}

// Register adds a plugin under name, replacing any previously registered
// plugin with the same name. Edges must be (re)declared afterward via
// Connect.
func (c *Chain) Register(name string, p interfaces.Plugin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[name] = &pluginNode{plugin: p}
}

// Connect declares an edge from src to dst. blocking edges are walked
// inline as part of the same PushFrame call; non-blocking edges hand the
// frame to dst's own bounded queue and return immediately.
func (c *Chain) Connect(src, dst string, blocking bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	srcNode, ok := c.nodes[src]
	if !ok {
		return odinerr.New("chain.Connect", "chain", odinerr.CodeConfigError, fmt.Sprintf("unknown source plugin %q", src))
	}
	if _, ok := c.nodes[dst]; !ok {
		return odinerr.New("chain.Connect", "chain", odinerr.CodeConfigError, fmt.Sprintf("unknown destination plugin %q", dst))
	}
	if blocking {
		srcNode.blockingEdges = append(srcNode.blockingEdges, dst)
	} else {
		srcNode.nonBlockingEdges = append(srcNode.nonBlockingEdges, dst)
	}
	return nil
}

// IsValid reports whether every edge in the chain references a registered
// plugin, the gate the original design checks before accepting pushes.
func (c *Chain) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.nodes {
		for _, e := range append(append([]string{}, n.blockingEdges...), n.nonBlockingEdges...) {
			if _, ok := c.nodes[e]; !ok {
				return false
			}
		}
	}
	return true
}

// Start launches the worker goroutines backing every plugin's non-blocking
// queue. Each plugin's queue capacity is queueCapacity.
func (c *Chain) Start(ctx context.Context, queueCapacity int) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, n := range c.nodes {
		node := n
		nodeName := name
		node.queue = workqueue.New(workqueue.Config{
			Name:     nodeName,
			Capacity: queueCapacity,
			Plugin:   node.plugin,
			Logger:   c.logger,
			Next: func(f interfaces.Frame) {
				c.fanOut(node, f)
			},
		})
		node.queue.Start(c.ctx)
	}
}

// Stop cancels and drains every plugin's queue.
func (c *Chain) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.nodes {
		if n.queue != nil {
			n.queue.Stop()
		}
	}
}

// PushFrame injects f at the named source plugin and walks its outgoing
// edges: blocking edges are run inline and in declared order before this
// call returns; non-blocking edges enqueue onto each destination's own
// queue and do not block the caller.
func (c *Chain) PushFrame(ctx context.Context, source string, f interfaces.Frame) error {
	c.mu.RLock()
	node, ok := c.nodes[source]
	c.mu.RUnlock()
	if !ok {
		return odinerr.New("chain.PushFrame", "chain", odinerr.CodeConfigError, fmt.Sprintf("unknown source plugin %q", source))
	}
	if !isValidFrame(f) {
		return odinerr.NewFrameError("chain.PushFrame", "chain", f.FrameNumber(), odinerr.CodeInvalidFrame, "frame has unknown data type or compression")
	}

	out, err := interfaces.Invoke(ctx, node.plugin, f)
	if err != nil {
		return odinerr.Wrap("chain.PushFrame", "chain", err)
	}
	if out == nil {
		return nil
	}
	c.fanOut(node, out)
	return nil
}

func (c *Chain) fanOut(node *pluginNode, f interfaces.Frame) {
	c.mu.RLock()
	blocking := append([]string{}, node.blockingEdges...)
	nonBlocking := append([]string{}, node.nonBlockingEdges...)
	nodes := c.nodes
	c.mu.RUnlock()

	for _, name := range blocking {
		n, ok := nodes[name]
		if !ok {
			continue
		}
		out, err := interfaces.Invoke(c.ctx, n.plugin, f)
		if err != nil {
			if c.logger != nil {
				c.logger.Error("blocking plugin failed", "plugin", name, "error", err)
			}
			continue
		}
		if out == nil {
			continue
		}
		c.fanOut(n, out)
	}

	for _, name := range nonBlocking {
		n, ok := nodes[name]
		if !ok {
			continue
		}
		n.queue.Push(f)
	}
}

// SourcePlugin is a no-op Plugin that returns its input unchanged. The
// processor controller registers one under the virtual name "frame_receiver"
// so frames arriving from the receiver's notification stream have a DAG
// entry point to fan out from without a real upstream plugin.
type SourcePlugin struct {
	name string
}

// NewSourcePlugin constructs a SourcePlugin registered under name.
func NewSourcePlugin(name string) *SourcePlugin { return &SourcePlugin{name: name} }

func (s *SourcePlugin) Name() string { return s.name }

func (s *SourcePlugin) Configure(ctx context.Context, config []byte) error { return nil }

func (s *SourcePlugin) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	return f, nil
}

// QueueStats returns the last/max/mean processing duration for a plugin's
// queue, if it has one.
func (c *Chain) QueueStats(name string) (*workqueue.Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[name]
	if !ok || n.queue == nil {
		return nil, false
	}
	return n.queue.Stats(), true
}

// QueueDepth returns the current backlog of a plugin's non-blocking queue,
// if it has one.
func (c *Chain) QueueDepth(name string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[name]
	if !ok || n.queue == nil {
		return 0, false
	}
	return n.queue.Depth(), true
}
