package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mqttlog/src/internal/broker"
	"mqttlog/src/internal/config"
	"mqttlog/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport stands in for a broker connection. failCount > 0 fails that
// many publishes; -1 fails every publish.
type fakeTransport struct {
	mu        sync.Mutex
	published []core.EncodedMessage
	state     atomic.Int32
	attempts  atomic.Uint64
	failCount atomic.Int64
	closed    atomic.Bool
}

func newFakeTransport(state broker.State) *fakeTransport {
	f := &fakeTransport{}
	f.state.Store(int32(state))
	return f
}

func (f *fakeTransport) Start(ctx context.Context) error { return nil }

func (f *fakeTransport) State() broker.State {
	return broker.State(f.state.Load())
}

func (f *fakeTransport) setState(s broker.State) {
	f.state.Store(int32(s))
}

func (f *fakeTransport) Publish(msg core.EncodedMessage) error {
	f.attempts.Add(1)
	if f.State() != broker.StateConnected {
		return broker.ErrNotConnected
	}
	if n := f.failCount.Load(); n != 0 {
		if n > 0 {
			f.failCount.Add(-1)
		}
		return fmt.Errorf("injected publish failure")
	}
	f.mu.Lock()
	f.published = append(f.published, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() {
	f.closed.Store(true)
	f.state.Store(int32(broker.StateClosed))
}

func (f *fakeTransport) GetStats() map[string]any {
	return map[string]any{"state": f.State().String()}
}

func (f *fakeTransport) publishedPayloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	for i, m := range f.published {
		out[i] = string(m.Payload)
	}
	return out
}

func (f *fakeTransport) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// testPipelineConfig returns a valid config with timings small enough for
// fast tests.
func testPipelineConfig(name string) config.PipelineConfig {
	cfg := config.DefaultPipelineConfig(name)
	cfg.BatchIntervalMS = 10
	cfg.Broker.BackoffBaseMS = 1
	cfg.Broker.BackoffCapMS = 5
	return cfg
}

func newTestService(t *testing.T) (*Service, *atomic.Int64, *fakeTransport) {
	t.Helper()

	fake := newFakeTransport(broker.StateConnected)
	var created atomic.Int64

	svc := New(context.Background(), log.NewLogger())
	svc.newTransport = func(config.BrokerConfig) broker.Transport {
		created.Add(1)
		return fake
	}
	return svc, &created, fake
}

func TestGetOrCreateReturnsSingleton(t *testing.T) {
	svc, created, _ := newTestService(t)
	defer svc.ShutdownAll()

	first, err := svc.GetOrCreate(testPipelineConfig("app"))
	require.NoError(t, err)

	// Same name, different config: the existing pipeline wins
	other := testPipelineConfig("app")
	other.QueueCapacity = 2
	second, err := svc.GetOrCreate(other)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), created.Load())
}

func TestGetOrCreateConcurrent(t *testing.T) {
	svc, created, _ := newTestService(t)
	defer svc.ShutdownAll()

	const goroutines = 16
	results := make([]*Pipeline, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := svc.GetOrCreate(testPipelineConfig("shared"))
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, int64(1), created.Load())
}

func TestGetOrCreateValidatesConfig(t *testing.T) {
	svc, created, _ := newTestService(t)
	defer svc.ShutdownAll()

	bad := testPipelineConfig("broken")
	bad.QueueCapacity = 0
	_, err := svc.GetOrCreate(bad)
	assert.Error(t, err)
	assert.Equal(t, int64(0), created.Load())
}

func TestGetAndList(t *testing.T) {
	svc, _, _ := newTestService(t)
	defer svc.ShutdownAll()

	_, err := svc.Get("missing")
	assert.Error(t, err)

	created, err := svc.GetOrCreate(testPipelineConfig("app"))
	require.NoError(t, err)

	got, err := svc.Get("app")
	require.NoError(t, err)
	assert.Same(t, created, got)

	assert.Equal(t, []string{"app"}, svc.List())
}

func TestShutdownRemovesPipeline(t *testing.T) {
	svc, _, fake := newTestService(t)
	defer svc.ShutdownAll()

	_, err := svc.GetOrCreate(testPipelineConfig("app"))
	require.NoError(t, err)

	require.NoError(t, svc.Shutdown("app"))
	assert.True(t, fake.closed.Load())

	_, err = svc.Get("app")
	assert.Error(t, err)

	// Unknown name is an error
	assert.Error(t, svc.Shutdown("app"))
}

func TestShutdownAll(t *testing.T) {
	fakes := make(map[string]*fakeTransport)
	var mu sync.Mutex

	svc := New(context.Background(), log.NewLogger())
	svc.newTransport = func(cfg config.BrokerConfig) broker.Transport {
		f := newFakeTransport(broker.StateConnected)
		mu.Lock()
		fakes[cfg.ClientID] = f
		mu.Unlock()
		return f
	}

	for _, name := range []string{"a", "b", "c"} {
		cfg := testPipelineConfig(name)
		cfg.Broker.ClientID = name
		_, err := svc.GetOrCreate(cfg)
		require.NoError(t, err)
	}

	svc.ShutdownAll()

	assert.Empty(t, svc.List())
	for name, f := range fakes {
		assert.True(t, f.closed.Load(), "transport %s not closed", name)
	}
}

func TestGetGlobalStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	defer svc.ShutdownAll()

	_, err := svc.GetOrCreate(testPipelineConfig("app"))
	require.NoError(t, err)

	stats := svc.GetGlobalStats()
	assert.Equal(t, 1, stats["total_pipelines"])

	pipelines, ok := stats["pipelines"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, pipelines, "app")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
