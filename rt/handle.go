package rt

import "fmt"

// Handle is a bounds-carrying reference ("capability") to one live
// allocation in the shared region. It is the only way to reach shared
// memory: every read or write through it validates the access offset and
// length before any byte is touched. Handles are issued by the allocator
// and become invalid after Free.
//
// Offsets are symmetric: the same handle denotes the same span inside every
// PE's region, so a (pe, handle) pair fully addresses remote memory.
type Handle struct {
	slot   int    // owning slot index in the slot table
	gen    uint64 // slot generation at allocation time; stale after Free
	offset int64  // byte offset of the span within a PE region
	length int64  // usable length in bytes as requested by the caller
	owner  int    // logical PE that allocated the span
}

// Length returns the usable length of the allocation in bytes.
func (h Handle) Length() int64 { return h.length }

// Owner returns the logical id of the PE that performed the allocation.
func (h Handle) Owner() int { return h.owner }

// Offset returns the region-local byte offset of the allocation.
func (h Handle) Offset() int64 { return h.offset }

// IsZero reports whether h is the zero Handle (never issued).
func (h Handle) IsZero() bool { return h == Handle{} }

func (h Handle) String() string {
	return fmt.Sprintf("handle{pe=%d off=%d len=%d}", h.owner, h.offset, h.length)
}

// checkBounds validates an access of n bytes at off against the handle span.
// Violations refuse the access with ErrOutOfBounds; memory stays untouched.
func (h Handle) checkBounds(off, n int64) error {
	if h.IsZero() {
		return fmt.Errorf("%w: zero handle", ErrInvalidHandle)
	}
	if off < 0 || n < 0 || off+n > h.length {
		return fmt.Errorf("%w: [%d,%d) of %s", ErrOutOfBounds, off, off+n, h)
	}
	return nil
}
