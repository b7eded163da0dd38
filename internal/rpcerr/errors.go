// Package rpcerr defines the stable error taxonomy surfaced by the IPC
// core (spec.md §7). Errors are sentinels or wrapped structs so callers
// can dispatch on them with errors.Is / errors.As; the wire-level error
// code travelling in a Reply is a plain string (see internal/wire) and is
// only turned into a *RemoteError on the client side.
package rpcerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Compare with errors.Is.
var (
	// ErrNotConnected is returned when an operation is issued before
	// Connect or after Disconnect.
	ErrNotConnected = errors.New("shmrpc: not connected")

	// ErrRegionMissing is returned when the named shared region does not
	// exist at open time. It is actionable: the daemon is not running.
	ErrRegionMissing = errors.New("shmrpc: shared region missing (is the daemon running?)")

	// ErrBufferFull signals a ring buffer with insufficient contiguous
	// space for the attempted write. Internal to the ring/pump layers;
	// never surfaced to an RPC caller except as ErrBackpressure.
	ErrBufferFull = errors.New("shmrpc: ring buffer full")

	// ErrBufferEmpty signals a ring buffer with no pending frame.
	// Internal to the ring/pump layers.
	ErrBufferEmpty = errors.New("shmrpc: ring buffer empty")

	// ErrRegionClosed names the closed-region condition. No operation in
	// this module returns it: ring operations do not check whether their
	// region has been closed.
	ErrRegionClosed = errors.New("shmrpc: shared region closed")

	// ErrTimeout is returned when a call receives no reply within its
	// deadline. The pending entry is removed before this is returned.
	ErrTimeout = errors.New("shmrpc: call timed out")

	// ErrCancelled is returned for completions failed by a client
	// shutdown (Disconnect).
	ErrCancelled = errors.New("shmrpc: call cancelled")

	// ErrBackpressure is returned by Call when the request ring stays
	// full through the retry/back-off policy's budget (see
	// rpcpump.Client.Call).
	ErrBackpressure = errors.New("shmrpc: request ring under sustained backpressure")
)

// RemoteError wraps a daemon-reported failure. Code and Message propagate
// verbatim from the wire (spec.md §6, §7).
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("shmrpc: remote error %s: %s", e.Code, e.Message)
}

// Is reports whether target is also a *RemoteError, ignoring Code/Message.
// Use errors.As to inspect Code/Message of a specific instance.
func (e *RemoteError) Is(target error) bool {
	_, ok := target.(*RemoteError)
	return ok
}

// SerializationError wraps a local codec failure encoding a request.
// Fatal for the affected call only.
type SerializationError struct {
	Underlying error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("shmrpc: serialization error: %v", e.Underlying)
}

func (e *SerializationError) Unwrap() error { return e.Underlying }

func (e *SerializationError) Is(target error) bool {
	_, ok := target.(*SerializationError)
	return ok
}

// DeserializationError wraps a local codec failure decoding a reply.
// Fatal for the affected call only; the reader logs and continues.
type DeserializationError struct {
	Underlying error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("shmrpc: deserialization error: %v", e.Underlying)
}

func (e *DeserializationError) Unwrap() error { return e.Underlying }

func (e *DeserializationError) Is(target error) bool {
	_, ok := target.(*DeserializationError)
	return ok
}
