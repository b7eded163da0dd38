//go:build linux || darwin

package shmring

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/srg/shmrpc/internal/rpcerr"
)

// posixBackend maps a POSIX named shared-memory object under /dev/shm,
// following the layout and naming convention of the original daemon's
// RingBuffer (assassinate/ipc/shm.py: shm_path = "/dev/shm" + name).
type posixBackend struct {
	path string
	fd   int
	data []byte
}

const shmDir = "/dev/shm"

func shmPath(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return shmDir + name
	}
	return shmDir + "/" + name
}

// createPosixRegion creates and formats a new named shared-memory region
// of HeaderSize+capacity bytes. Only the daemon (creator) calls this.
func createPosixRegion(name string, capacity int) (*Region, error) {
	path := shmPath(name)
	total := HeaderSize + capacity

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("shmring: create %q: %w", path, err)
	}

	if err := unix.Ftruncate(fd, int64(total)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shmring: ftruncate %q to %d: %w", path, total, err)
	}

	data, err := unix.Mmap(fd, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shmring: mmap %q: %w", path, err)
	}

	backend := &posixBackend{path: path, fd: fd, data: data}
	region := newRegion(backend, capacity)
	region.zeroHeader()
	return region, nil
}

// openPosixRegion attaches to an already-created named shared-memory
// region. It fails with rpcerr.ErrRegionMissing if the named mapping does
// not exist (spec.md §4.1) — no formatting is performed.
func openPosixRegion(name string, capacity int) (*Region, error) {
	path := shmPath(name)
	total := HeaderSize + capacity

	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		if err == unix.ENOENT {
			return nil, fmt.Errorf("%w: %q", rpcerr.ErrRegionMissing, path)
		}
		return nil, fmt.Errorf("shmring: open %q: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shmring: mmap %q: %w", path, err)
	}

	backend := &posixBackend{path: path, fd: fd, data: data}
	return newRegion(backend, capacity), nil
}

func (b *posixBackend) Bytes() []byte { return b.data }

func (b *posixBackend) Close() error {
	var firstErr error
	if b.data != nil {
		if err := unix.Munmap(b.data); err != nil {
			firstErr = fmt.Errorf("shmring: munmap %q: %w", b.path, err)
		}
		b.data = nil
	}
	if b.fd >= 0 {
		if err := unix.Close(b.fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shmring: close %q: %w", b.path, err)
		}
		b.fd = -1
	}
	return firstErr
}
