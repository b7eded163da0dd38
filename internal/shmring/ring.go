package shmring

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/srg/shmrpc/internal/rpcerr"
)

// frameHeaderSize is the length of the 4-byte little-endian length
// prefix in front of every framed message (spec.md §3, §6).
const frameHeaderSize = 4

// frameAlign is the unit every frame's total on-ring footprint
// (header+payload) is rounded up to. Keeping every frame's footprint a
// multiple of frameAlign keeps every write offset a multiple of
// frameAlign too, which in turn guarantees the physical tail span
// remaining before the data area wraps is always either 0 or large
// enough (>= frameHeaderSize) to hold a skip marker — see the wrap
// policy on TryWrite/TryRead below. Capacity must be a multiple of
// frameAlign for this invariant to hold; every capacity this core is
// documented to use (spec.md §6's power-of-two-of-cache-line default,
// and every capacity exercised by the test suite) already is.
const frameAlign = 4

// skipMarker is a reserved frame-length value that can never occur for a
// real payload (a real payload's length is always far smaller than the
// ring's capacity). TryRead, on seeing it, knows the rest of the
// physical tail is unused padding rather than a real frame.
const skipMarker = math.MaxUint32

// Role distinguishes the two SPSC endpoints over one Region. A ring is
// writer-owned or reader-owned, never both: concurrent writers or
// concurrent readers on one ring is undefined behavior, prevented by
// construction (one client uses two rings, never shares a role).
type Role int

const (
	// RoleWriter mutates write_pos and reads read_pos as the peer index.
	RoleWriter Role = iota
	// RoleReader mutates read_pos and reads write_pos as the peer index.
	RoleReader
)

// Ring is a role-specialized, lock-free SPSC byte queue over a Region.
type Ring struct {
	region *Region
	role   Role
}

// NewRing returns a Ring handle bound to the given role over region. It
// panics if region's capacity is not a multiple of frameAlign: the wrap
// padding scheme requires every offset to stay frameAlign-aligned, which
// only holds if the data area itself is.
func NewRing(region *Region, role Role) *Ring {
	if uint64(region.Capacity())%frameAlign != 0 {
		panic(fmt.Sprintf("shmring: capacity %d is not a multiple of %d", region.Capacity(), frameAlign))
	}
	return &Ring{region: region, role: role}
}

// alignUp rounds n up to the next multiple of frameAlign.
func alignUp(n uint64) uint64 {
	return (n + frameAlign - 1) &^ (frameAlign - 1)
}

// TryWrite attempts to enqueue payload as a length-prefixed frame. It
// never blocks: on insufficient space it returns rpcerr.ErrBufferFull and
// makes no mutation (spec.md §4.2 step 3).
//
// A payload larger than capacity-4 can never fit and is rejected
// immediately regardless of current occupancy.
//
// A frame is never physically split across the end of the data area.
// When a frame doesn't fit in the remaining physical tail, TryWrite
// writes a skipMarker at the current offset, consumes the whole
// remaining tail, and places the real frame at offset 0 — the wrap
// policy spec.md §9 leaves open; TryRead (below) recognizes and skips
// the marker the same way. This is what lets the ring serve more writes
// than fit in one trip around the data area, per spec.md testable
// property #3 and scenario #7's repeated large-payload round-trips.
func (r *Ring) TryWrite(payload []byte) error {
	if r.role != RoleWriter {
		panic("shmring: TryWrite called on a reader-role Ring")
	}

	capacity := uint64(r.region.Capacity())
	size := uint64(frameHeaderSize + len(payload))
	if size > capacity {
		return fmt.Errorf("%w: payload of %d bytes exceeds capacity-%d", rpcerr.ErrBufferFull, len(payload), frameHeaderSize)
	}
	consumed := alignUp(size)

	writePos := r.region.loadWritePosOwned()
	readPos := r.region.loadReadPosPeer()
	available := capacity - (writePos - readPos)

	offset := writePos % capacity
	tailSpan := capacity - offset

	needsPad := tailSpan < consumed
	required := consumed
	if needsPad {
		required = tailSpan + consumed
	}
	if available < required {
		return rpcerr.ErrBufferFull
	}

	data := r.region.data()
	writeOffset := offset
	if needsPad {
		binary.LittleEndian.PutUint32(data[offset:offset+frameHeaderSize], skipMarker)
		writeOffset = 0
	}

	binary.LittleEndian.PutUint32(data[writeOffset:writeOffset+frameHeaderSize], uint32(len(payload)))
	copy(data[writeOffset+frameHeaderSize:writeOffset+size], payload)

	r.region.storeWritePos(writePos + required)
	return nil
}

// TryRead attempts to dequeue the next frame. It never blocks: on an
// empty ring it returns rpcerr.ErrBufferEmpty and makes no mutation. The
// returned slice is a caller-owned copy; it never aliases the shared
// region (spec.md §4.2 step 3).
//
// A skipMarker encountered at the current offset (see TryWrite) means
// the physical tail from here to the end of the data area is unused
// padding; TryRead silently advances past it and decodes the real frame
// that follows at offset 0, matching the writer's wrap policy.
func (r *Ring) TryRead() ([]byte, error) {
	if r.role != RoleReader {
		panic("shmring: TryRead called on a writer-role Ring")
	}

	capacity := uint64(r.region.Capacity())
	readPos := r.region.loadReadPosOwned()
	writePos := r.region.loadWritePosPeer()
	if readPos == writePos {
		return nil, rpcerr.ErrBufferEmpty
	}

	data := r.region.data()
	offset := readPos % capacity
	padSkipped := uint64(0)

	length := binary.LittleEndian.Uint32(data[offset : offset+frameHeaderSize])
	if length == skipMarker {
		padSkipped = capacity - offset
		offset = 0
		length = binary.LittleEndian.Uint32(data[offset : offset+frameHeaderSize])
	}

	payloadStart := offset + frameHeaderSize
	out := make([]byte, length)
	copy(out, data[payloadStart:payloadStart+uint64(length)])

	consumed := alignUp(uint64(frameHeaderSize) + uint64(length))
	r.region.storeReadPos(readPos + padSkipped + consumed)
	return out, nil
}

// Utilization returns the fraction of capacity currently occupied, in
// [0, 1]. It strictly increases on successful writes, strictly decreases
// on successful reads, and is zero on a quiescent ring.
func (r *Ring) Utilization() float64 {
	capacity := uint64(r.region.Capacity())
	writePos := r.region.loadWritePosPeer()
	readPos := r.region.loadReadPosPeer()
	if r.role == RoleWriter {
		writePos = r.region.loadWritePosOwned()
	} else {
		readPos = r.region.loadReadPosOwned()
	}
	used := writePos - readPos
	return float64(used) / float64(capacity)
}

// Close releases the underlying region mapping.
func (r *Ring) Close() error {
	return r.region.Close()
}
