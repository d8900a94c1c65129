package rt

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrier_SinglePE_NeverBlocks(t *testing.T) {
	b := newBarrier(1, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Enter())
	}
	assert.Equal(t, uint64(5), b.Round())
}

func TestBarrier_AllWritesBeforeVisibleAfter(t *testing.T) {
	for _, n := range []int{2, 4, 8} {
		b := newBarrier(n, 0)
		counters := make([]int, n)

		var wg sync.WaitGroup
		errs := make([]error, n)
		seen := make([][]int, n)
		for pe := 0; pe < n; pe++ {
			wg.Add(1)
			go func(pe int) {
				defer wg.Done()
				counters[pe] = pe + 1
				if errs[pe] = b.Enter(); errs[pe] != nil {
					return
				}
				// Everything written before the round must be visible now.
				snap := make([]int, n)
				copy(snap, counters)
				seen[pe] = snap
			}(pe)
		}
		wg.Wait()

		for pe := 0; pe < n; pe++ {
			require.NoError(t, errs[pe], "n=%d pe=%d", n, pe)
			for i := 0; i < n; i++ {
				assert.Equal(t, i+1, seen[pe][i], "n=%d pe=%d slot=%d", n, pe, i)
			}
		}
		assert.Equal(t, uint64(1), b.Round())
	}
}

func TestBarrier_SenseFlipsEachRound(t *testing.T) {
	b := newBarrier(1, 0)
	assert.False(t, b.Sense())
	require.NoError(t, b.Enter())
	assert.True(t, b.Sense())
	require.NoError(t, b.Enter())
	assert.False(t, b.Sense())
}

func TestBarrier_ConsecutiveRounds_NoCrossRoundRelease(t *testing.T) {
	const n, rounds = 4, 50
	b := newBarrier(n, 0)

	var wg sync.WaitGroup
	for pe := 0; pe < n; pe++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				if err := b.Enter(); err != nil {
					t.Errorf("round %d: %v", r, err)
					return
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(rounds), b.Round())
}

func TestBarrier_Timeout_PoisonsBarrier(t *testing.T) {
	b := newBarrier(2, 0)

	// Only one of two PEs arrives: the round must time out, and every
	// later round must fail fast without waiting.
	err := b.EnterTimeout(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrBarrierTimeout)
	assert.True(t, b.Poisoned())

	start := time.Now()
	err = b.Enter()
	assert.ErrorIs(t, err, ErrBarrierPoisoned)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestBarrier_Timeout_FailsAllWaitersInRound(t *testing.T) {
	const n = 4
	b := newBarrier(n, 0)

	// n-1 waiters with timeouts, the nth never arrives.
	var wg sync.WaitGroup
	errs := make([]error, n-1)
	for i := 0; i < n-1; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.EnterTimeout(20 * time.Millisecond)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.ErrorIs(t, err, ErrBarrierTimeout, "waiter %d", i)
	}
	assert.True(t, b.Poisoned())
}

func TestBarrier_CompletedRound_SurvivesLateTimer(t *testing.T) {
	// The round completes well before the timeout: the timer firing later
	// must not poison anything.
	b := newBarrier(2, 0)

	var wg sync.WaitGroup
	var other error
	wg.Add(1)
	go func() {
		defer wg.Done()
		other = b.EnterTimeout(time.Second)
	}()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, b.Enter())
	wg.Wait()

	require.NoError(t, other)
	assert.False(t, b.Poisoned())
	assert.Equal(t, uint64(1), b.Round())
}

func TestBarrier_DefaultTimeout_AppliesToEnter(t *testing.T) {
	b := newBarrier(2, 20*time.Millisecond)
	err := b.Enter()
	assert.ErrorIs(t, err, ErrBarrierTimeout)
}
