package rpcpump

import (
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
)

// CompletedCall is one entry in a Client's completed-call telemetry ring:
// a record of a call that received a reply, timed out, or was cancelled.
type CompletedCall struct {
	CallID   uint64
	Method   string
	Duration time.Duration
	Err      error
}

// TelemetryMetrics is lock-free bookkeeping alongside the completed-call
// ring, mirroring the teacher's LuaOutputCollectorMetrics: every counter
// is updated with a single atomic op, never a mutex.
type TelemetryMetrics struct {
	Completed   int64
	Failed      int64
	Overwritten int64
}

func (m *TelemetryMetrics) incCompleted() { atomic.AddInt64(&m.Completed, 1) }
func (m *TelemetryMetrics) incFailed()    { atomic.AddInt64(&m.Failed, 1) }
func (m *TelemetryMetrics) incOverwritten(n uint32) {
	atomic.AddInt64(&m.Overwritten, int64(n))
}

// Snapshot returns a copy of the current counters.
func (m *TelemetryMetrics) Snapshot() TelemetryMetrics {
	return TelemetryMetrics{
		Completed:   atomic.LoadInt64(&m.Completed),
		Failed:      atomic.LoadInt64(&m.Failed),
		Overwritten: atomic.LoadInt64(&m.Overwritten),
	}
}

// defaultTelemetryCapacity bounds the completed-call ring; once full,
// the oldest record is silently overwritten (tracked in Overwritten), the
// same overflow-by-design behavior as the teacher's output collector.
const defaultTelemetryCapacity = 4096

// recordCompletion pushes a finished call's record onto the telemetry
// ring. It never blocks and never fails the call itself: telemetry is
// best-effort observability, not part of the RPC contract.
func (c *Client) recordCompletion(callID uint64, method string, duration time.Duration, err error) {
	overwrites, enqueueErr := c.telemetry.EnqueueM(CompletedCall{
		CallID:   callID,
		Method:   method,
		Duration: duration,
		Err:      err,
	})
	if enqueueErr != nil {
		c.log.WithError(enqueueErr).Warn("rpcpump: telemetry ring enqueue failed")
		return
	}
	c.telemetryMetrics.incOverwritten(overwrites)
	if err != nil {
		c.telemetryMetrics.incFailed()
	} else {
		c.telemetryMetrics.incCompleted()
	}
}

// DrainTelemetry removes and returns every currently buffered completed-
// call record, oldest first.
func (c *Client) DrainTelemetry() []CompletedCall {
	var out []CompletedCall
	for !c.telemetry.IsEmpty() {
		rec, err := c.telemetry.Dequeue()
		if err != nil {
			break
		}
		out = append(out, rec)
	}
	return out
}

// Telemetry returns a snapshot of the completed-call counters.
func (c *Client) Telemetry() TelemetryMetrics {
	return c.telemetryMetrics.Snapshot()
}

func newTelemetryRing() mpmc.RichOverlappedRingBuffer[CompletedCall] {
	return mpmc.NewOverlappedRingBuffer[CompletedCall](defaultTelemetryCapacity)
}
