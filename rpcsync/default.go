package rpcsync

import (
	"sync"

	"github.com/srg/shmrpc/pkg/config"
)

var (
	defaultOnce   sync.Once
	defaultFacade *Facade
)

// Default returns the process-wide Facade singleton, built with
// config.DefaultConfig() on first use. Most callers that only ever talk
// to one daemon should use this instead of constructing their own
// Facade; tests and multi-daemon callers should use New directly.
//
// There is no finalizer reclaiming the singleton's executor goroutine:
// defaultFacade is a package global and stays reachable for the life of
// the process, so a finalizer attached to it would never run. A caller
// that knows it's done with Default() should call Shutdown explicitly.
func Default() *Facade {
	defaultOnce.Do(func() {
		defaultFacade = New(config.DefaultConfig())
	})
	return defaultFacade
}
