// Package rpcsync is the blocking façade most callers use. Connection
// lifecycle (Connect/Disconnect, and every other access to the Facade's
// client pointer) runs on one dedicated, OS-thread-pinned goroutine, the
// way the teacher's LuaEngine funnels all access to its embedded
// interpreter through one goroutine via DoWithState — a thread-sensitive
// interpreter's state must only ever be touched from the thread that
// created it (spec.md §2). CallSync itself dispatches on the caller's
// own goroutine once it has the client pointer in hand: rpcpump.Client
// is already safe for concurrent use by many goroutines (its reader
// loop demultiplexes replies by call_id), so many CallSync callers
// suspend concurrently instead of queuing behind one executor — matching
// the cooperative, many-suspended-callers model spec.md §5 describes.
package rpcsync

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/shmrpc/internal/rpcerr"
	"github.com/srg/shmrpc/internal/rpcpump"
	"github.com/srg/shmrpc/pkg/config"
)

// op is a unit of work submitted to the executor goroutine.
type op func()

// Facade is the synchronous, single-connection entry point. ConnectSync
// and DisconnectSync run on one pinned goroutine so the client pointer
// is never assigned or cleared from two OS threads at once; CallSync
// reads that pointer through the same goroutine but then calls and
// blocks on the caller's own goroutine, leaving many calls outstanding
// at once.
type Facade struct {
	cfg *config.Config
	log *logrus.Entry

	ops     chan op
	stop    chan struct{}
	stopped chan struct{}

	client *rpcpump.Client
}

// New creates a Facade and starts its executor goroutine. The Facade is
// not connected until ConnectSync succeeds.
func New(cfg *config.Config) *Facade {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	f := &Facade{
		cfg:     cfg,
		log:     logrus.NewEntry(cfg.NewLogger()),
		ops:     make(chan op),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go f.run()
	return f
}

// run is the body of the pinned executor goroutine. LockOSThread is not
// released for the lifetime of the goroutine: Go never reuses a locked
// thread for other goroutines, matching the "one OS thread forever"
// contract a thread-sensitive daemon handle requires.
func (f *Facade) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(f.stopped)

	for {
		select {
		case o := <-f.ops:
			o()
		case <-f.stop:
			return
		}
	}
}

// submit runs fn on the executor goroutine and blocks for its result.
func (f *Facade) submit(fn func()) {
	done := make(chan struct{})
	f.ops <- func() {
		fn()
		close(done)
	}
	<-done
}

// ConnectSync attaches to the daemon's shared region pair. It is a no-op
// returning nil if already connected (spec.md's decision that back-to-back
// connect() calls do not error while already connected).
func (f *Facade) ConnectSync(ctx context.Context) error {
	var err error
	f.submit(func() {
		if f.client != nil {
			return
		}
		f.client, err = rpcpump.Connect(ctx, f.cfg, f.log)
	})
	return err
}

// CallSync issues method(args) and blocks for a reply, a timeout, or ctx
// cancellation. Only the client-pointer handoff is funneled through the
// executor goroutine; the call itself runs and blocks on the caller's
// own goroutine, so concurrent CallSync callers suspend concurrently
// rather than queuing behind one another.
func (f *Facade) CallSync(ctx context.Context, method string, args []any, timeout time.Duration) (any, error) {
	client, err := f.currentClient()
	if err != nil {
		return nil, err
	}
	return client.Call(ctx, method, args, timeout)
}

// currentClient fetches the live client pointer via the executor
// goroutine, the only place the pointer is ever assigned or cleared.
func (f *Facade) currentClient() (*rpcpump.Client, error) {
	var client *rpcpump.Client
	f.submit(func() { client = f.client })
	if client == nil {
		return nil, rpcerr.ErrNotConnected
	}
	return client, nil
}

// CallTyped is CallSync with the result asserted into R. It returns an
// error if the daemon's result does not match the expected shape.
func CallTyped[R any](ctx context.Context, f *Facade, method string, args []any, timeout time.Duration) (R, error) {
	var zero R
	raw, err := f.CallSync(ctx, method, args, timeout)
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(R)
	if !ok {
		return zero, fmt.Errorf("rpcsync: result for %q is %T, not %T", method, raw, zero)
	}
	return typed, nil
}

// DisconnectSync releases the connection. It is a no-op if not connected.
func (f *Facade) DisconnectSync() error {
	var err error
	f.submit(func() {
		if f.client == nil {
			return
		}
		err = f.client.Disconnect()
		f.client = nil
	})
	return err
}

// Connected reports whether ConnectSync has succeeded and DisconnectSync
// has not since been called.
func (f *Facade) Connected() bool {
	var connected bool
	f.submit(func() { connected = f.client != nil })
	return connected
}

// Telemetry returns a snapshot of the completed-call counters for the
// current connection, or a zero TelemetryMetrics if not connected.
func (f *Facade) Telemetry() rpcpump.TelemetryMetrics {
	var metrics rpcpump.TelemetryMetrics
	f.submit(func() {
		if f.client != nil {
			metrics = f.client.Telemetry()
		}
	})
	return metrics
}

// DrainTelemetry removes and returns every currently buffered completed-
// call record for the current connection, oldest first.
func (f *Facade) DrainTelemetry() []rpcpump.CompletedCall {
	var records []rpcpump.CompletedCall
	f.submit(func() {
		if f.client != nil {
			records = f.client.DrainTelemetry()
		}
	})
	return records
}

// Shutdown stops the executor goroutine after disconnecting, if
// connected. A Facade must not be used after Shutdown.
func (f *Facade) Shutdown() error {
	err := f.DisconnectSync()
	close(f.stop)
	<-f.stopped
	return err
}
