// Package rt implements a partitioned global address space (PGAS) runtime
// emulated inside a single process. Each processing element (PE) is modeled
// by one dedicated worker thread with its own region of a shared memory
// arena; remote-memory get/put, collective communication and barrier
// synchronization are built on top of that.
//
// # Reading Guide
//
// Start with these three files to understand the runtime kernel:
//   - runtime.go: Init/Close lifecycle, the Runtime facade and the per-PE view
//   - remote.go: bounds-checked get/put, the primitive everything else uses
//   - barrier.go: the sense-reversing barrier that orders PEs across rounds
//
// # Architecture
//
// The runtime composes a small number of components, leaf-first:
//   - pedir.go: static PE directory (logical id -> physical worker, base offset)
//   - alloc.go: shared-region allocator handing out bounds-carrying handles
//   - pool.go: fixed worker pool, one thread per PE, FIFO queues, no stealing
//   - barrier.go: sense-reversing barrier with optional timeout + poisoning
//   - remote.go: (pe, handle, offset) -> physical offset translation and copy
//   - collective.go: broadcast and reduction built from get/put plus barriers
//
// Sub-packages:
//   - rt/trace: per-operation trace recording (enabled by config, off by default)
//
// # Memory model
//
// A single Get or Put is atomic only for naturally aligned 8-byte transfers.
// Larger transfers are plain copies: concurrent overlapping writes from
// different PEs are last-writer-wins and must be serialized by the caller
// with Barrier if ordering matters. The only cross-PE happens-before edge
// the runtime provides is the barrier round; remote accesses take no hidden
// locks. Payload data races are therefore the caller's responsibility,
// mitigated only by handle bounds checks.
package rt
