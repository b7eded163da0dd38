package shmring

// CreateRegion creates and formats a new named shared-memory region. Only
// the daemon (creator) calls this; clients are not authorized to create
// the region (spec.md §4.1).
func CreateRegion(name string, capacity int) (*Region, error) {
	return createPosixRegion(name, capacity)
}

// OpenRegion attaches to an already-created named shared-memory region.
// It fails with rpcerr.ErrRegionMissing if the named mapping does not
// exist.
func OpenRegion(name string, capacity int) (*Region, error) {
	return openPosixRegion(name, capacity)
}
