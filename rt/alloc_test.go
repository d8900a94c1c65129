package rt

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgasrt/pgasrt/rt/internal/testutil"
)

func TestAllocator_Alloc_ReturnsBoundedHandle(t *testing.T) {
	a := newAllocator(1024, 8)
	h, err := a.Alloc(0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), h.Length())
	assert.Equal(t, 0, h.Owner())
	assert.Equal(t, 1, a.LiveSlots())
	// Reservation rounds up to the 8-byte alignment grain.
	assert.Equal(t, int64(104), a.UsedBytes())
}

func TestAllocator_Alloc_ZeroOrNegativeSize_Fails(t *testing.T) {
	a := newAllocator(1024, 8)
	_, err := a.Alloc(0, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = a.Alloc(0, -8)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestAllocator_Alloc_RegionExhausted_Fails(t *testing.T) {
	a := newAllocator(64, 8)
	_, err := a.Alloc(0, 64)
	require.NoError(t, err)
	_, err = a.Alloc(0, 8)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestAllocator_Alloc_SlotsExhausted_Fails(t *testing.T) {
	// N slots in a region big enough for N+1 spans: the N+1th allocation
	// must fail on slots, not on memory.
	a := newAllocator(1024, 4)
	for i := 0; i < 4; i++ {
		_, err := a.Alloc(0, 8)
		require.NoError(t, err)
	}
	_, err := a.Alloc(0, 8)
	assert.ErrorIs(t, err, ErrOutOfSlots)
}

func TestAllocator_Free_ReleasesSpanForReuse(t *testing.T) {
	a := newAllocator(64, 8)
	h, err := a.Alloc(0, 64)
	require.NoError(t, err)
	require.NoError(t, a.Free(h))
	assert.Equal(t, 0, a.LiveSlots())

	h2, err := a.Alloc(1, 64)
	require.NoError(t, err)
	assert.Equal(t, h.Offset(), h2.Offset())
}

func TestAllocator_Free_Twice_ReportsDoubleFree(t *testing.T) {
	a := newAllocator(1024, 8)
	h, err := a.Alloc(0, 16)
	require.NoError(t, err)
	require.NoError(t, a.Free(h))
	assert.ErrorIs(t, a.Free(h), ErrDoubleFree)
}

func TestAllocator_Free_StaleHandleAfterReuse_ReportsDoubleFree(t *testing.T) {
	// The slot was recycled for a new span: the old generation identifies
	// the first handle as already freed even though the slot is live again.
	a := newAllocator(1024, 1)
	h1, err := a.Alloc(0, 16)
	require.NoError(t, err)
	require.NoError(t, a.Free(h1))
	_, err = a.Alloc(0, 16)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Free(h1), ErrDoubleFree)
}

func TestAllocator_Free_ZeroHandle_Fails(t *testing.T) {
	a := newAllocator(1024, 8)
	assert.ErrorIs(t, a.Free(Handle{}), ErrInvalidHandle)
}

func TestAllocator_Free_ForgedHandle_Fails(t *testing.T) {
	a := newAllocator(1024, 8)
	_, err := a.Alloc(0, 16)
	require.NoError(t, err)
	// Same slot, wrong offset: never issued by this allocator.
	forged := Handle{slot: 0, gen: 0, offset: 512, length: 16, owner: 0}
	assert.ErrorIs(t, a.Free(forged), ErrInvalidHandle)
}

func TestAllocator_FirstFit_FillsEarliestGap(t *testing.T) {
	a := newAllocator(256, 8)
	h1, err := a.Alloc(0, 64)
	require.NoError(t, err)
	h2, err := a.Alloc(0, 64)
	require.NoError(t, err)
	_, err = a.Alloc(0, 64)
	require.NoError(t, err)

	require.NoError(t, a.Free(h1))
	require.NoError(t, a.Free(h2))

	// A span that fits the first gap lands there, not at the tail.
	h4, err := a.Alloc(0, 32)
	require.NoError(t, err)
	assert.Equal(t, int64(0), h4.Offset())

	// A span too big for either gap alone lands past the live tail span.
	_, err = a.Alloc(0, 160)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestAllocator_ConcurrentStress_NoOverlappingSpans(t *testing.T) {
	const workers = 8
	a := newAllocator(1<<16, 256)
	prng := testutil.NewPartitionedRNG(7)
	rngs := make([][]int64, workers)
	for w := 0; w < workers; w++ {
		rng := prng.ForWorker(w)
		sizes := make([]int64, 10000)
		for i := range sizes {
			sizes[i] = 1 + rng.Int63n(128)
		}
		rngs[w] = sizes
	}

	var mu sync.Mutex
	var held []Handle
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var local []Handle
			for i, size := range rngs[w] {
				h, err := a.Alloc(w, size)
				if err != nil {
					continue
				}
				local = append(local, h)
				// Free every other allocation to churn the slot table.
				if i%2 == 1 {
					last := local[len(local)-1]
					local = local[:len(local)-1]
					if err := a.Free(last); err != nil {
						t.Errorf("worker %d: free: %v", w, err)
						return
					}
				}
			}
			mu.Lock()
			held = append(held, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	// No two surviving spans may overlap.
	sort.Slice(held, func(i, j int) bool { return held[i].Offset() < held[j].Offset() })
	for i := 1; i < len(held); i++ {
		prev, cur := held[i-1], held[i]
		assert.LessOrEqual(t, prev.Offset()+prev.Length(), cur.Offset(),
			"spans %s and %s overlap", prev, cur)
	}
	assert.Equal(t, len(held), a.LiveSlots())
}
