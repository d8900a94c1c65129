package rt

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// memory is the remote access layer: it owns the shared arena and performs
// bounds-checked copies between a caller's local buffer and a location in a
// (possibly different) PE's region.
//
// A transfer is atomic only when it is a single naturally aligned 8-byte
// word (load64/store64). Everything else is a plain copy with no mutual
// exclusion: concurrent overlapping writes are last-writer-wins, and
// callers that care must serialize via the barrier. The runtime
// deliberately adds no hidden locks on the access path.
type memory struct {
	dir   *Directory
	arena []byte
}

func newMemory(dir *Directory) *memory {
	return &memory{
		dir:   dir,
		arena: make([]byte, int64(dir.NumPEs())*dir.regionSize),
	}
}

// get copies len(dst) bytes from (srcPE, h, off) into dst.
func (m *memory) get(srcPE int, h Handle, off int64, dst []byte) error {
	n := int64(len(dst))
	if err := h.checkBounds(off, n); err != nil {
		return err
	}
	phys, err := m.dir.Translate(srcPE, h.offset+off)
	if err != nil {
		return err
	}
	copy(dst, m.arena[phys:phys+n])
	logrus.Tracef("get: pe=%d %s off=%d n=%d", srcPE, h, off, n)
	return nil
}

// put copies src into (dstPE, h, off).
func (m *memory) put(dstPE int, h Handle, off int64, src []byte) error {
	n := int64(len(src))
	if err := h.checkBounds(off, n); err != nil {
		return err
	}
	phys, err := m.dir.Translate(dstPE, h.offset+off)
	if err != nil {
		return err
	}
	copy(m.arena[phys:phys+n], src)
	logrus.Tracef("put: pe=%d %s off=%d n=%d", dstPE, h, off, n)
	return nil
}

// load64 atomically reads the 8-byte word at (pe, h, off). off must be
// 8-byte aligned; allocation offsets always are.
func (m *memory) load64(pe int, h Handle, off int64) (uint64, error) {
	if err := m.checkWord(h, off); err != nil {
		return 0, err
	}
	phys, err := m.dir.Translate(pe, h.offset+off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&m.arena[phys]))), nil
}

// store64 atomically writes the 8-byte word at (pe, h, off).
func (m *memory) store64(pe int, h Handle, off int64, v uint64) error {
	if err := m.checkWord(h, off); err != nil {
		return err
	}
	phys, err := m.dir.Translate(pe, h.offset+off)
	if err != nil {
		return err
	}
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&m.arena[phys])), v)
	return nil
}

func (m *memory) checkWord(h Handle, off int64) error {
	if err := h.checkBounds(off, 8); err != nil {
		return err
	}
	if (h.offset+off)%8 != 0 {
		return fmt.Errorf("%w: word access at unaligned offset %d", ErrOutOfBounds, off)
	}
	return nil
}

// getStride64 reads nelems 8-byte words from (pe, h) starting at element
// index 0, stride elements apart, into dst. Stride 1 is the dense fast path.
func (m *memory) getStride64(pe int, h Handle, dst []uint64, nelems, stride int) error {
	if err := m.checkStride(h, nelems, stride, len(dst)); err != nil {
		return err
	}
	if stride == 1 {
		buf := make([]byte, 8*nelems)
		if err := m.get(pe, h, 0, buf); err != nil {
			return err
		}
		for i := 0; i < nelems; i++ {
			dst[i] = binary.LittleEndian.Uint64(buf[8*i:])
		}
		return nil
	}
	var word [8]byte
	for i := 0; i < nelems; i++ {
		if err := m.get(pe, h, int64(i*stride)*8, word[:]); err != nil {
			return err
		}
		dst[i] = binary.LittleEndian.Uint64(word[:])
	}
	return nil
}

// putStride64 writes nelems 8-byte words from src into (pe, h), stride
// elements apart.
func (m *memory) putStride64(pe int, h Handle, src []uint64, nelems, stride int) error {
	if err := m.checkStride(h, nelems, stride, len(src)); err != nil {
		return err
	}
	if stride == 1 {
		buf := make([]byte, 8*nelems)
		for i := 0; i < nelems; i++ {
			binary.LittleEndian.PutUint64(buf[8*i:], src[i])
		}
		return m.put(pe, h, 0, buf)
	}
	var word [8]byte
	for i := 0; i < nelems; i++ {
		binary.LittleEndian.PutUint64(word[:], src[i])
		if err := m.put(pe, h, int64(i*stride)*8, word[:]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memory) checkStride(h Handle, nelems, stride, buflen int) error {
	if nelems < 0 || stride < 1 {
		return fmt.Errorf("%w: nelems=%d stride=%d", ErrInvalidSize, nelems, stride)
	}
	if buflen < nelems {
		return fmt.Errorf("%w: buffer holds %d of %d elements", ErrInvalidSize, buflen, nelems)
	}
	if nelems == 0 {
		return nil
	}
	// Highest element touched determines the bound.
	last := int64((nelems-1)*stride) * 8
	return h.checkBounds(last, 8)
}

// accessible reports whether h's whole span can be reached inside pe's
// region: the PE exists and [offset, offset+length) fits the region.
func (m *memory) accessible(pe int, h Handle) bool {
	if h.IsZero() {
		return false
	}
	if _, err := m.dir.Lookup(pe); err != nil {
		return false
	}
	return h.offset >= 0 && h.offset+h.length <= m.dir.regionSize
}
