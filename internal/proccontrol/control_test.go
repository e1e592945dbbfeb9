package proccontrol

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odin-pipeline/odin-go/internal/chain"
	"github.com/odin-pipeline/odin-go/internal/interfaces"
)

type fakeArena struct {
	mu      sync.Mutex
	mapped  string
	buffers map[int][]byte
}

func newFakeArena() *fakeArena {
	return &fakeArena{buffers: map[int][]byte{0: {1, 2, 3, 4}, 1: {5, 6, 7, 8}}}
}

func (a *fakeArena) MapArena(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mapped = name
	return nil
}

func (a *fakeArena) Buffer(bufferID int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffers[bufferID], nil
}

type fakeReleaser struct {
	mu       sync.Mutex
	released []int
}

func (r *fakeReleaser) ReleaseBuffer(bufferID int, frameNumber int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, bufferID)
	return nil
}

type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string][]byte{}} }

func (s *fakeStore) SaveConfig(name string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = payload
	return nil
}

func (s *fakeStore) LoadConfig(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[name], nil
}

type tailPlugin struct {
	controller *Controller
}

func (t *tailPlugin) Name() string                                       { return "tail" }
func (t *tailPlugin) Configure(ctx context.Context, config []byte) error { return nil }
func (t *tailPlugin) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	t.controller.TailCallback(f)
	f.Release()
	return nil, nil
}

type capturingPlugin struct {
	last interfaces.Frame
}

func (p *capturingPlugin) Name() string                                       { return "capture" }
func (p *capturingPlugin) Configure(ctx context.Context, config []byte) error { return nil }
func (p *capturingPlugin) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	p.last = f
	return f, nil
}

func TestHandleFrameReadyAppliesImageOffset(t *testing.T) {
	arena := newFakeArena()
	ch := chain.New(nil)

	c := New(Config{Chain: ch, Arena: arena})
	capture := &capturingPlugin{}
	ch.Register("capture", capture)
	require.NoError(t, ch.Connect(SourceName, "capture", true))
	require.True(t, ch.IsValid())

	err := c.HandleFrameReady(context.Background(), FrameReadyNotification{FrameNumber: 1, BufferID: 0, ImageOffset: 2})
	require.NoError(t, err)

	require.NotNil(t, capture.last)
	assert.Equal(t, int64(2), capture.last.ImageOffset())
	assert.Equal(t, []byte{3, 4}, capture.last.ImageData())
}

func TestHandleBufferConfigMapsArena(t *testing.T) {
	arena := newFakeArena()
	c := New(Config{Chain: chain.New(nil), Arena: arena})

	require.NoError(t, c.HandleBufferConfig("odin_shm_1"))
	assert.Equal(t, "odin_shm_1", arena.mapped)
}

func TestHandleFrameReadyRoutesToChainAndReleases(t *testing.T) {
	arena := newFakeArena()
	releaser := &fakeReleaser{}
	ch := chain.New(nil)

	c := New(Config{Chain: ch, Arena: arena, Releaser: releaser})
	tail := &tailPlugin{controller: c}
	ch.Register("tail", tail)
	require.NoError(t, ch.Connect(SourceName, "tail", true))
	require.True(t, ch.IsValid())

	err := c.HandleFrameReady(context.Background(), FrameReadyNotification{FrameNumber: 1, BufferID: 0})
	require.NoError(t, err)

	assert.Equal(t, int64(1), c.FramesCompleted())
	assert.Equal(t, []int{0}, releaser.released)
}

func TestTailCallbackSignalsShutdownAtFrameCount(t *testing.T) {
	var shutdownCalled sync.WaitGroup
	shutdownCalled.Add(1)

	ch := chain.New(nil)
	c := New(Config{
		Chain:              ch,
		Arena:              newFakeArena(),
		ShutdownFrameCount: 2,
		OnShutdown:         func() { shutdownCalled.Done() },
	})
	tail := &tailPlugin{controller: c}
	ch.Register("tail", tail)
	require.NoError(t, ch.Connect(SourceName, "tail", true))

	ctx := context.Background()
	require.NoError(t, c.HandleFrameReady(ctx, FrameReadyNotification{FrameNumber: 1, BufferID: 0}))
	require.NoError(t, c.HandleFrameReady(ctx, FrameReadyNotification{FrameNumber: 2, BufferID: 1}))

	shutdownCalled.Wait()
}

func TestMasterDatasetCountsOnlyMatchingFrames(t *testing.T) {
	ch := chain.New(nil)
	c := New(Config{
		Chain:              ch,
		Arena:              newFakeArena(),
		ShutdownFrameCount: 1,
		MasterDataset:      "master",
		OnShutdown:         func() {},
	})
	tail := &tailPlugin{controller: c}
	ch.Register("tail", tail)
	require.NoError(t, ch.Connect(SourceName, "tail", true))

	ctx := context.Background()
	require.NoError(t, c.HandleFrameReady(ctx, FrameReadyNotification{FrameNumber: 1, BufferID: 0, DatasetName: "other"}))
	assert.False(t, c.shutdownNotified)

	require.NoError(t, c.HandleFrameReady(ctx, FrameReadyNotification{FrameNumber: 2, BufferID: 1, DatasetName: "master"}))
	assert.True(t, c.shutdownNotified)
}

func TestSaveAndApplyStoredConfiguration(t *testing.T) {
	store := newFakeStore()
	c := New(Config{Chain: chain.New(nil), Arena: newFakeArena(), Store: store})

	require.NoError(t, c.SaveConfiguration("run1", []byte(`{"gain":2}`)))

	var applied []byte
	err := c.ApplyStoredConfiguration(context.Background(), "run1", func(ctx context.Context, payload []byte) error {
		applied = payload
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, `{"gain":2}`, string(applied))
}

type commandPlugin struct{}

func (commandPlugin) Name() string                                       { return "cmds" }
func (commandPlugin) Configure(ctx context.Context, config []byte) error { return nil }
func (commandPlugin) ProcessFrame(ctx context.Context, f interfaces.Frame) (interfaces.Frame, error) {
	return f, nil
}
func (commandPlugin) Commands() []string { return []string{"reset", "calibrate"} }
func (commandPlugin) Execute(ctx context.Context, cmd string, params []byte) ([]byte, error) {
	return []byte("ok:" + cmd), nil
}

func TestRequestCommandsAggregatesProviders(t *testing.T) {
	plugins := map[string]interfaces.Plugin{"cmds": commandPlugin{}}
	cmds := RequestCommands(plugins)
	assert.Equal(t, []string{"reset", "calibrate"}, cmds["cmds"])
}

func TestExecuteDispatchesToPlugin(t *testing.T) {
	plugins := map[string]interfaces.Plugin{"cmds": commandPlugin{}}
	out, err := Execute(context.Background(), plugins, "cmds", "reset", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok:reset", string(out))
}

func TestExecuteUnknownPluginFails(t *testing.T) {
	plugins := map[string]interfaces.Plugin{}
	_, err := Execute(context.Background(), plugins, "missing", "reset", nil)
	assert.Error(t, err)
}
