package rpcsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/shmrpc/internal/daemonstub"
	"github.com/srg/shmrpc/internal/rpcpump"
	"github.com/srg/shmrpc/internal/shmring"
	"github.com/srg/shmrpc/pkg/config"
)

// newConnectedFacade builds a Facade already wired to an in-memory
// daemonstub, bypassing ConnectSync's real shared-memory attach (which
// Facade only reaches through rpcpump.Connect). Facade's own concurrency
// contract — lifecycle transitions serialized through one executor
// goroutine, calls dispatched on the caller's own goroutine — is what's
// under test here, not the POSIX attach path (covered in
// internal/shmring and exercised end-to-end by cmd/shmrpc-bench).
func newConnectedFacade(t *testing.T, handler daemonstub.Handler) (*Facade, func()) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Capacity = 64 * 1024
	cfg.PollInterval = time.Millisecond

	reqBackend := shmring.NewInMemoryBackend(cfg.Capacity)
	respBackend := shmring.NewInMemoryBackend(cfg.Capacity)

	facadeReqRing := shmring.NewRing(shmring.NewRegion(reqBackend, cfg.Capacity), shmring.RoleWriter)
	daemonReqRing := shmring.NewRing(shmring.NewRegion(reqBackend, cfg.Capacity), shmring.RoleReader)
	daemonRespRing := shmring.NewRing(shmring.NewRegion(respBackend, cfg.Capacity), shmring.RoleWriter)
	facadeRespRing := shmring.NewRing(shmring.NewRegion(respBackend, cfg.Capacity), shmring.RoleReader)

	ctx := context.Background()
	daemon := daemonstub.New(ctx, nil, daemonReqRing, daemonRespRing, time.Millisecond, 0, handler)

	f := New(cfg)
	f.submit(func() {
		f.client = rpcpump.NewWithRings(ctx, cfg, nil, facadeReqRing, facadeRespRing)
	})

	cleanup := func() {
		_ = f.Shutdown()
		daemon.Stop()
	}
	return f, cleanup
}

func TestFacade_CallSyncHappyPath(t *testing.T) {
	f, cleanup := newConnectedFacade(t, func(method string, args []any) (any, string, error) {
		return method, "", nil
	})
	defer cleanup()

	result, err := f.CallSync(context.Background(), "ping", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", result)
}

func TestFacade_ConnectedReflectsState(t *testing.T) {
	f, cleanup := newConnectedFacade(t, func(string, []any) (any, string, error) { return nil, "", nil })
	defer cleanup()

	assert.True(t, f.Connected())
	require.NoError(t, f.DisconnectSync())
	assert.False(t, f.Connected())
}

func TestFacade_DisconnectSyncIsNoOpWhenNotConnected(t *testing.T) {
	f := New(config.DefaultConfig())
	defer f.Shutdown()

	assert.False(t, f.Connected())
	assert.NoError(t, f.DisconnectSync())
}

func TestCallTyped_ResultShapeMismatch(t *testing.T) {
	f, cleanup := newConnectedFacade(t, func(method string, args []any) (any, string, error) {
		return "not-an-int", "", nil
	})
	defer cleanup()

	_, err := CallTyped[int](context.Background(), f, "count", nil, time.Second)
	assert.Error(t, err)
}

func TestCallTyped_Success(t *testing.T) {
	f, cleanup := newConnectedFacade(t, func(method string, args []any) (any, string, error) {
		return "pong", "", nil
	})
	defer cleanup()

	result, err := CallTyped[string](context.Background(), f, "ping", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
}

func TestFacade_CallSyncCallersSuspendConcurrently(t *testing.T) {
	// The daemon holds "first"'s reply back until it has also seen
	// "second". If CallSync serialized callers behind one executor
	// goroutine (as it once did), "second" could never reach the daemon
	// until "first" returned, and this test would hang until it times
	// out. Both calls are issued through the Facade, the only public
	// entry point, so this proves concurrency is reachable in practice.
	released := make(chan struct{})
	var once sync.Once

	f, cleanup := newConnectedFacade(t, func(method string, args []any) (any, string, error) {
		if method == "first" {
			<-released
		}
		return method, "", nil
	})
	defer cleanup()

	var wg sync.WaitGroup
	results := make(map[string]any)
	var mu sync.Mutex

	wg.Add(2)
	go func() {
		defer wg.Done()
		r, err := f.CallSync(context.Background(), "first", nil, 2*time.Second)
		require.NoError(t, err)
		mu.Lock()
		results["first"] = r
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		r, err := f.CallSync(context.Background(), "second", nil, 2*time.Second)
		require.NoError(t, err)
		mu.Lock()
		results["second"] = r
		mu.Unlock()
		once.Do(func() { close(released) })
	}()

	wg.Wait()
	assert.Equal(t, "first", results["first"])
	assert.Equal(t, "second", results["second"])
}

func TestFacade_Telemetry(t *testing.T) {
	f, cleanup := newConnectedFacade(t, func(method string, args []any) (any, string, error) {
		return method, "", nil
	})
	defer cleanup()

	_, err := f.CallSync(context.Background(), "ping", nil, time.Second)
	require.NoError(t, err)

	metrics := f.Telemetry()
	assert.Equal(t, int64(1), metrics.Completed)

	records := f.DrainTelemetry()
	require.Len(t, records, 1)
	assert.Equal(t, "ping", records[0].Method)
}

func TestDefault_ReturnsSameInstance(t *testing.T) {
	a := Default()
	b := Default()
	assert.Same(t, a, b)
}
