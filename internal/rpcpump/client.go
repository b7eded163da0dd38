// Package rpcpump implements the async RPC pump: one request ring, one
// response ring, a pending-call table, and a single long-lived reader
// goroutine demultiplexing replies by call_id (spec.md §5).
//
// Client is the asynchronous primitive. rpcsync builds the blocking
// façade callers normally use on top of it (one executor goroutine
// funneling ConnectSync/DisconnectSync through this Client, the way the
// teacher's LuaEngine funnels all Lua access through DoWithState;
// CallSync calls this Client directly from the caller's goroutine).
package rpcpump

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"

	"github.com/srg/shmrpc/internal/groutine"
	"github.com/srg/shmrpc/internal/rpcerr"
	"github.com/srg/shmrpc/internal/shmring"
	"github.com/srg/shmrpc/internal/wire"
	"github.com/srg/shmrpc/pkg/config"
)

// pendingCall is a single outstanding request awaiting its reply.
type pendingCall struct {
	method    string
	startedAt time.Time
	resultCh  chan callResult
}

type callResult struct {
	value any
	err   error
}

// Client is the client-side async RPC pump: one open pair of rings, a
// background reader goroutine, and a table of calls awaiting reply.
//
// Safe for concurrent use: Call may be invoked from many goroutines, each
// correlated with its own call_id on one shared wire pair (spec.md §5's
// "single connection multiplexes many outstanding calls").
type Client struct {
	cfg *config.Config
	log *logrus.Entry

	reqRing  *shmring.Ring
	respRing *shmring.Ring

	nextCallID atomic.Uint64

	// writeMu serializes TryWrite calls onto reqRing: the ring is a
	// single-producer queue, but Call is invoked from many goroutines at
	// once, so the client itself is the one producer multiplexing their
	// frames onto the wire.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]*pendingCall
	closed  bool

	readerDone chan struct{}
	stopReader context.CancelFunc

	telemetry        mpmc.RichOverlappedRingBuffer[CompletedCall]
	telemetryMetrics TelemetryMetrics
}

// Connect opens the request and response rings by attaching to the named
// shared region pair (the daemon must already have created them) and
// starts the reader goroutine. It fails with rpcerr.ErrRegionMissing if
// the daemon is not running.
func Connect(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*Client, error) {
	if log == nil {
		log = logrus.NewEntry(cfg.NewLogger())
	}

	reqRegion, err := shmring.OpenRegion(cfg.RequestRingName(), cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("rpcpump: opening request ring: %w", err)
	}
	respRegion, err := shmring.OpenRegion(cfg.ResponseRingName(), cfg.Capacity)
	if err != nil {
		_ = reqRegion.Close()
		return nil, fmt.Errorf("rpcpump: opening response ring: %w", err)
	}

	c := newClient(cfg, log, shmring.NewRing(reqRegion, shmring.RoleWriter), shmring.NewRing(respRegion, shmring.RoleReader))
	c.startReader(ctx)
	return c, nil
}

// NewWithRings wires an already-opened ring pair and starts the reader
// goroutine, bypassing Connect's region attachment. It exists for tests
// (this package's and rpcsync's), which build rings over an in-memory
// backend shared with an internal/daemonstub fake daemon in the same
// process.
func NewWithRings(ctx context.Context, cfg *config.Config, log *logrus.Entry, reqRing, respRing *shmring.Ring) *Client {
	if log == nil {
		log = logrus.NewEntry(cfg.NewLogger())
	}
	c := newClient(cfg, log, reqRing, respRing)
	c.startReader(ctx)
	return c
}

// newClient wires an already-opened ring pair, for production Connect and
// for tests that inject in-memory rings directly.
func newClient(cfg *config.Config, log *logrus.Entry, reqRing, respRing *shmring.Ring) *Client {
	return &Client{
		cfg:        cfg,
		log:        log,
		reqRing:    reqRing,
		respRing:   respRing,
		pending:    make(map[uint64]*pendingCall),
		readerDone: make(chan struct{}),
		telemetry:  newTelemetryRing(),
	}
}

func (c *Client) startReader(ctx context.Context) {
	readerCtx, cancel := context.WithCancel(ctx)
	c.stopReader = cancel
	groutine.Go(readerCtx, "rpcpump-reader", func(ctx context.Context) {
		defer close(c.readerDone)
		c.readLoop(ctx)
	})
}

// readLoop polls the response ring until cancelled, dispatching each
// decoded reply to its pending call. Unknown call_ids (a reply for a call
// this client never made, or already timed out and removed) are logged
// and dropped — never escalated, since a late or stray reply must not
// destabilize an otherwise healthy connection.
func (c *Client) readLoop(ctx context.Context) {
	defer c.log.Debugf("%s: exiting", groutine.GetName(ctx))

	// Defensive recover ensures readerDone is always closed even if a
	// codec or dispatch bug panics, so Disconnect never hangs waiting on
	// a dead reader goroutine.
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("rpcpump: reader loop panicked (recovered): %v", r)
		}
	}()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.drainReplies()
		}
	}
}

func (c *Client) drainReplies() {
	for {
		frame, err := c.respRing.TryRead()
		if err != nil {
			return
		}

		env, err := wire.Decode(frame)
		if err != nil {
			c.log.WithError(err).Warn("rpcpump: dropping undecodable reply frame")
			continue
		}

		c.dispatch(env)
	}
}

func (c *Client) dispatch(env wire.Envelope) {
	c.mu.Lock()
	call, ok := c.pending[env.CallID]
	if ok {
		delete(c.pending, env.CallID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.WithField("call_id", env.CallID).Debug("rpcpump: reply for unknown or expired call_id")
		return
	}

	var res callResult
	switch {
	case env.Error != nil:
		res = callResult{err: &rpcerr.RemoteError{Code: env.Error.Code, Message: env.Error.Message}}
	case env.Response != nil:
		res = callResult{value: env.Response.Result}
	default:
		res = callResult{err: fmt.Errorf("rpcpump: reply for call_id %d carries neither result nor error", env.CallID)}
	}

	c.recordCompletion(env.CallID, call.method, time.Since(call.startedAt), res.err)
	call.resultCh <- res
}

// backpressure policy: bounded retry with a fixed back-off. A write that
// fails BufferFull is attempted up to maxEnqueueAttempts times in total,
// sleeping retryBackoff between attempts, before the call fails with
// rpcerr.ErrBackpressure (spec.md §9's documented backpressure policy —
// Call never blocks indefinitely on a full ring).
const (
	maxEnqueueAttempts = 20
	retryBackoff       = 2 * time.Millisecond
)

// Call issues method(args) and blocks until a reply arrives, ctx is
// cancelled, or timeout elapses. On success it returns the decoded
// result value; on failure it returns one of the rpcerr sentinels/types.
func (c *Client) Call(ctx context.Context, method string, args []any, timeout time.Duration) (any, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, rpcerr.ErrNotConnected
	}
	callID := c.nextCallID.Add(1)
	call := &pendingCall{method: method, startedAt: time.Now(), resultCh: make(chan callResult, 1)}
	c.pending[callID] = call
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		delete(c.pending, callID)
		c.mu.Unlock()
	}

	frame, err := wire.EncodeRequest(callID, method, args)
	if err != nil {
		cleanup()
		return nil, &rpcerr.SerializationError{Underlying: err}
	}

	if err := c.enqueueWithBackoff(ctx, frame); err != nil {
		cleanup()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-call.resultCh:
		return res.value, res.err
	case <-timer.C:
		cleanup()
		c.recordCompletion(callID, method, time.Since(call.startedAt), rpcerr.ErrTimeout)
		return nil, rpcerr.ErrTimeout
	case <-ctx.Done():
		cleanup()
		c.recordCompletion(callID, method, time.Since(call.startedAt), rpcerr.ErrCancelled)
		return nil, rpcerr.ErrCancelled
	}
}

func (c *Client) enqueueWithBackoff(ctx context.Context, frame []byte) error {
	for attempt := 0; attempt < maxEnqueueAttempts; attempt++ {
		c.writeMu.Lock()
		err := c.reqRing.TryWrite(frame)
		c.writeMu.Unlock()
		if err == nil {
			return nil
		}
		if attempt == maxEnqueueAttempts-1 {
			break
		}
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return rpcerr.ErrCancelled
		}
	}
	return rpcerr.ErrBackpressure
}

// Disconnect stops the reader goroutine, failing every still-outstanding
// call with rpcerr.ErrCancelled, and releases both rings. It waits up to
// cfg.DisconnectGrace for the reader to observe cancellation before
// closing the rings out from under it (modeled on the teacher's bounded
// join of its poller on Close).
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	outstanding := c.pending
	c.pending = make(map[uint64]*pendingCall)
	c.mu.Unlock()

	if c.stopReader != nil {
		c.stopReader()
	}

	select {
	case <-c.readerDone:
	case <-time.After(c.cfg.DisconnectGrace):
		c.log.Warn("rpcpump: reader goroutine did not exit within disconnect grace period")
	}

	for callID, call := range outstanding {
		c.recordCompletion(callID, call.method, time.Since(call.startedAt), rpcerr.ErrCancelled)
		call.resultCh <- callResult{err: rpcerr.ErrCancelled}
	}

	var firstErr error
	if err := c.reqRing.Close(); err != nil {
		firstErr = err
	}
	if err := c.respRing.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
