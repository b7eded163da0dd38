// Package shmring implements the shared region and SPSC ring buffer
// layers of the IPC core (spec.md §3, §4.1, §4.2).
//
// Layout, little-endian, at offset 0 of the mapped region:
//
//	bytes 0..8:            write_pos  (u64, owned by the writer)
//	bytes 8..16:           read_pos   (u64, owned by the reader)
//	bytes 16..64:          padding (separates the two counters onto
//	                       distinct cache lines)
//	bytes 64..64+capacity: data area
//
// A Region is a named, fixed-size mapped segment. The creator
// (CreateRegion) formats the header to zero; an attacher (OpenRegion)
// performs no formatting and fails with rpcerr.ErrRegionMissing if the
// named mapping does not exist — an absent region means the daemon isn't
// running, which must be reported distinctly from a transient I/O error
// (spec.md §4.1).
package shmring

import (
	"sync/atomic"
	"unsafe"
)

// HeaderSize is the fixed size of the region header (two 8-byte counters
// plus 48 bytes of padding).
const HeaderSize = 64

const (
	writePosOffset = 0
	readPosOffset  = 8
)

// Backend is the minimal byte-addressable surface a Region needs. The
// production backend (posixBackend, region_unix.go) maps a POSIX named
// shared-memory object; tests may substitute an in-process fake backed by
// a plain byte slice (region_fake.go) so ring invariants can be exercised
// without real /dev/shm I/O.
type Backend interface {
	// Bytes returns the mapped region, including the header. The slice
	// must be at least HeaderSize+capacity long and 8-byte aligned.
	Bytes() []byte
	// Close releases local resources. The underlying region (if
	// process-shared) persists for other attached processes.
	Close() error
}

// Region is an in-process handle over a shared memory mapping of known
// layout.
type Region struct {
	backend  Backend
	capacity int

	writePos *uint64
	readPos  *uint64
}

// newRegion wraps a backend whose Bytes() is already sized
// HeaderSize+capacity.
func newRegion(backend Backend, capacity int) *Region {
	base := backend.Bytes()
	r := &Region{
		backend:  backend,
		capacity: capacity,
		writePos: (*uint64)(unsafe.Pointer(&base[writePosOffset])),
		readPos:  (*uint64)(unsafe.Pointer(&base[readPosOffset])),
	}
	return r
}

// Capacity returns the fixed data-area size of this region.
func (r *Region) Capacity() int { return r.capacity }

// Close releases the local mapping.
func (r *Region) Close() error {
	return r.backend.Close()
}

func (r *Region) data() []byte {
	base := r.backend.Bytes()
	return base[HeaderSize : HeaderSize+r.capacity]
}

// loadOwned/loadPeer/storeOwned below exist only to document which side
// of the §4.2 ordering contract each access plays; Go's sync/atomic has
// no separate relaxed/acquire/release API, so every access is a full
// sequentially-consistent atomic op — strictly stronger than the
// acquire/release pairing the spec requires, never weaker.

func (r *Region) loadWritePosOwned() uint64 { return atomic.LoadUint64(r.writePos) }
func (r *Region) loadWritePosPeer() uint64  { return atomic.LoadUint64(r.writePos) }
func (r *Region) loadReadPosOwned() uint64  { return atomic.LoadUint64(r.readPos) }
func (r *Region) loadReadPosPeer() uint64   { return atomic.LoadUint64(r.readPos) }

func (r *Region) storeWritePos(v uint64) { atomic.StoreUint64(r.writePos, v) }
func (r *Region) storeReadPos(v uint64)  { atomic.StoreUint64(r.readPos, v) }

// zeroHeader formats a freshly created region's header to zero, as
// required of the creator by spec.md §4.1.
func (r *Region) zeroHeader() {
	h := r.backend.Bytes()[:HeaderSize]
	for i := range h {
		h[i] = 0
	}
}
