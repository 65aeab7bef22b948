// Package workqueue implements the work-queueing policies that route a
// completed work unit to the per-worker queue that owns its physical
// disk, and the fair round-robin queue that downstream stages drain
// from.
package workqueue

// Config carries the per-job/per-node layout needed to map a work unit
// to a physical disk and a worker queue.
type Config struct {
	PartitionsPerOutputDiskForJob uint64
	DisksPerNode                  uint64
	DisksPerWorker                uint64
}

// WorkUnit is either a KV-pair buffer, which carries a logical disk id
// that must be mapped down to a physical disk, or a buffer-list
// container, which already names its physical disk explicitly.
type WorkUnit interface {
	physicalDisk(cfg Config) uint64
}

// KVBuffer is a work unit identified by a logical disk id.
type KVBuffer struct {
	LogicalDiskID uint64
	Payload       []byte
}

func (b KVBuffer) physicalDisk(cfg Config) uint64 {
	return PhysicalDisk(b.LogicalDiskID, cfg)
}

// BufferList is a work unit that already names its physical disk.
type BufferList struct {
	DiskID  uint64
	Buffers [][]byte
}

func (b BufferList) physicalDisk(cfg Config) uint64 {
	return b.DiskID
}

// PhysicalDisk maps a logical disk id to the physical disk that backs
// it for this job's partition layout.
func PhysicalDisk(logicalDiskID uint64, cfg Config) uint64 {
	return (logicalDiskID / cfg.PartitionsPerOutputDiskForJob) % cfg.DisksPerNode
}

// WorkerQueueForDisk maps a physical disk to the worker queue that
// owns it.
func WorkerQueueForDisk(disk uint64, cfg Config) uint64 {
	return disk / cfg.DisksPerWorker
}

// WorkerQueueFor is the composition PhysicalDiskWorkQueue performs:
// resolve a work unit straight to the worker queue index it belongs
// on.
func WorkerQueueFor(u WorkUnit, cfg Config) uint64 {
	return WorkerQueueForDisk(u.physicalDisk(cfg), cfg)
}
