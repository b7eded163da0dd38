// Package daemonstub is a minimal, method-agnostic daemon used to
// exercise the client-side pump and façade end to end without a real
// interpreter process. It reads requests off one ring, dispatches them
// to a registered handler, and writes replies to the other — the same
// role shmrpc's real daemon plays, simplified to what the test suite
// needs (spec.md §8's scenarios).
//
// Modeled on the teacher's peripheral device builders: a small, composable
// fake that stands in for real hardware/process boundaries during tests.
package daemonstub

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/shmrpc/internal/groutine"
	"github.com/srg/shmrpc/internal/rpcerr"
	"github.com/srg/shmrpc/internal/shmring"
	"github.com/srg/shmrpc/internal/wire"
)

// Handler answers one decoded request. Returning a non-nil err encodes
// an ErrorPayload reply; code is used verbatim as the wire error code,
// except that an empty code is sent as "INTERNAL".
type Handler func(method string, args []any) (result any, code string, err error)

// Daemon polls a request ring, dispatches each frame to Handler, and
// writes the reply to a response ring.
type Daemon struct {
	log      *logrus.Entry
	reqRing  *shmring.Ring
	respRing *shmring.Ring
	handler  Handler

	pollInterval time.Duration
	delay        time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New starts a daemon loop immediately, reading reqRing (reader role) and
// writing respRing (writer role). delay, if non-zero, is applied before
// every reply — used to exercise client-side timeout handling.
func New(ctx context.Context, log *logrus.Entry, reqRing, respRing *shmring.Ring, pollInterval, delay time.Duration, handler Handler) *Daemon {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	runCtx, cancel := context.WithCancel(ctx)
	d := &Daemon{
		log:          log,
		reqRing:      reqRing,
		respRing:     respRing,
		handler:      handler,
		pollInterval: pollInterval,
		delay:        delay,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	groutine.Go(runCtx, "daemonstub-loop", func(ctx context.Context) {
		defer close(d.done)
		d.loop(ctx)
	})
	return d
}

func (d *Daemon) loop(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

func (d *Daemon) drainOnce(ctx context.Context) {
	for {
		frame, err := d.reqRing.TryRead()
		if err != nil {
			return
		}

		env, err := wire.Decode(frame)
		if err != nil {
			d.log.WithError(err).Warn("daemonstub: dropping undecodable request frame")
			continue
		}
		if env.Request == nil {
			d.log.WithField("call_id", env.CallID).Warn("daemonstub: frame on request ring without a request body")
			continue
		}

		d.handle(ctx, env.CallID, *env.Request)
	}
}

func (d *Daemon) handle(ctx context.Context, callID uint64, req wire.Request) {
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return
		}
	}

	result, code, err := d.handler(req.Method, req.Args)

	var frame []byte
	var encErr error
	if err != nil {
		if code == "" {
			code = "INTERNAL"
		}
		frame, encErr = wire.EncodeError(callID, code, err.Error())
	} else {
		frame, encErr = wire.EncodeResponse(callID, result)
	}
	if encErr != nil {
		d.log.WithError(encErr).Error("daemonstub: encoding reply")
		return
	}

	for attempt := 0; attempt < 50; attempt++ {
		if writeErr := d.respRing.TryWrite(frame); writeErr == nil {
			return
		} else if writeErr != rpcerr.ErrBufferFull {
			d.log.WithError(writeErr).Error("daemonstub: writing reply")
			return
		}
		time.Sleep(time.Millisecond)
	}
	d.log.WithField("call_id", callID).Warn("daemonstub: response ring stayed full, dropping reply")
}

// Stop cancels the daemon loop and waits for it to exit.
func (d *Daemon) Stop() {
	d.cancel()
	<-d.done
}
