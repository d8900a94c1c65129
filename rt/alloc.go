package rt

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// slotEntry is one bookkeeping record in the allocator's slot table.
// The generation counter advances on every free, so a handle minted for an
// earlier generation can be recognized as already freed (double free)
// rather than merely unknown.
type slotEntry struct {
	inUse  bool
	offset int64  // region-local byte offset of the reserved span
	length int64  // reserved span length (alignment-rounded)
	gen    uint64 // bumped on free
}

// Allocator carves the per-PE shared region into bounded spans and hands
// out Handles. Offsets are symmetric across PEs, so one slot table covers
// the whole runtime. All slot-table mutation happens under a single lock;
// the critical section is bounded (no I/O, no blocking).
//
// Placement is first-fit over the live spans with 8-byte alignment. The
// table never holds two live spans with overlapping [offset, offset+length).
type Allocator struct {
	mu         sync.Mutex
	regionSize int64
	slots      []slotEntry
	live       int
}

func newAllocator(regionSize int64, nslots int) *Allocator {
	return &Allocator{
		regionSize: regionSize,
		slots:      make([]slotEntry, nslots),
	}
}

// Alloc reserves size bytes and returns a bounds-carrying handle owned by
// the calling PE. Fails with ErrOutOfSlots when every slot entry is
// occupied and ErrOutOfMemory when no contiguous free span fits.
func (a *Allocator) Alloc(owner int, size int64) (Handle, error) {
	if size <= 0 {
		return Handle{}, fmt.Errorf("%w: alloc %d bytes", ErrInvalidSize, size)
	}
	rounded := (size + allocAlign - 1) &^ (allocAlign - 1)

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := -1
	for i := range a.slots {
		if !a.slots[i].inUse {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Handle{}, fmt.Errorf("%w: all %d slots occupied", ErrOutOfSlots, len(a.slots))
	}

	offset, ok := a.firstFitLocked(rounded)
	if !ok {
		return Handle{}, fmt.Errorf("%w: no free span of %d bytes in %d-byte region",
			ErrOutOfMemory, rounded, a.regionSize)
	}

	s := &a.slots[idx]
	s.inUse = true
	s.offset = offset
	s.length = rounded
	a.live++

	h := Handle{slot: idx, gen: s.gen, offset: offset, length: size, owner: owner}
	logrus.Tracef("alloc: pe=%d slot=%d offset=%d size=%d", owner, idx, offset, size)
	return h, nil
}

// firstFitLocked scans the gaps between live spans in ascending offset
// order and returns the first one that fits. Spans are alignment-rounded,
// so every gap boundary is already aligned.
func (a *Allocator) firstFitLocked(size int64) (int64, bool) {
	type span struct{ off, end int64 }
	livespans := make([]span, 0, a.live)
	for i := range a.slots {
		if a.slots[i].inUse {
			livespans = append(livespans, span{a.slots[i].offset, a.slots[i].offset + a.slots[i].length})
		}
	}
	sort.Slice(livespans, func(i, j int) bool { return livespans[i].off < livespans[j].off })

	cursor := int64(0)
	for _, sp := range livespans {
		if sp.off-cursor >= size {
			return cursor, true
		}
		if sp.end > cursor {
			cursor = sp.end
		}
	}
	if a.regionSize-cursor >= size {
		return cursor, true
	}
	return 0, false
}

// Free releases the span behind h. A handle the allocator never issued (or
// whose slot has since been reused for a different span) fails with
// ErrInvalidHandle; freeing the same handle twice fails with ErrDoubleFree.
// Neither is ever undefined behavior.
func (a *Allocator) Free(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if h.IsZero() || h.slot < 0 || h.slot >= len(a.slots) {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	s := &a.slots[h.slot]
	if h.gen < s.gen {
		return fmt.Errorf("%w: %s", ErrDoubleFree, h)
	}
	if !s.inUse || h.gen != s.gen || s.offset != h.offset {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}

	s.inUse = false
	s.gen++
	a.live--
	logrus.Tracef("free: pe=%d slot=%d offset=%d", h.owner, h.slot, h.offset)
	return nil
}

// LiveSlots returns the number of slots currently in use.
func (a *Allocator) LiveSlots() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// UsedBytes returns the total reserved bytes across live spans.
func (a *Allocator) UsedBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var used int64
	for i := range a.slots {
		if a.slots[i].inUse {
			used += a.slots[i].length
		}
	}
	return used
}

// SlotCapacity returns the configured slot table capacity.
func (a *Allocator) SlotCapacity() int {
	return len(a.slots)
}
