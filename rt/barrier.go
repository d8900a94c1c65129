package rt

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// barrierRound is the state of one barrier round. Waiters block on ch; the
// last arriver (or a poisoning timeout) closes it. done distinguishes a
// completed round from a poisoned one after the close.
type barrierRound struct {
	ch       chan struct{}
	done     bool
	poisoned bool
}

// Barrier is the sense-reversing synchronization point shared by all PEs.
// No PE proceeds past Enter until every PE has called Enter for that round,
// which makes the round boundary the runtime's only cross-PE happens-before
// edge: everything written before round k is visible to every PE after
// round k returns.
//
// Release works by closing the round's channel; the sense bit flips once
// per round so release is immediate re-entry into the next round with no
// separate reset step. State lives for the whole run, no per-call allocation
// beyond the round channel.
//
// If a PE never arrives, a round with no timeout deadlocks permanently by
// design. With a timeout, the expiring waiter poisons the barrier: the
// current round fails with ErrBarrierTimeout for every waiter and all
// subsequent rounds fail fast with ErrBarrierPoisoned.
type Barrier struct {
	mu       sync.Mutex
	n        int
	arrived  uint32
	sense    bool
	round    uint64
	cur      *barrierRound
	poisoned bool
	timeout  time.Duration // default for Enter; 0 waits forever
}

func newBarrier(n int, timeout time.Duration) *Barrier {
	return &Barrier{
		n:       n,
		cur:     &barrierRound{ch: make(chan struct{})},
		timeout: timeout,
	}
}

// Enter joins the current round using the configured default timeout.
func (b *Barrier) Enter() error {
	return b.enter(b.timeout)
}

// EnterTimeout joins the current round, failing with ErrBarrierTimeout if
// the round does not complete within d. d <= 0 waits forever.
func (b *Barrier) EnterTimeout(d time.Duration) error {
	return b.enter(d)
}

func (b *Barrier) enter(d time.Duration) error {
	b.mu.Lock()
	if b.poisoned {
		b.mu.Unlock()
		return ErrBarrierPoisoned
	}

	b.arrived++
	if b.arrived == uint32(b.n) {
		// Last arriver releases everyone and opens the next round.
		r := b.cur
		r.done = true
		b.arrived = 0
		b.sense = !b.sense
		b.round++
		b.cur = &barrierRound{ch: make(chan struct{})}
		logrus.Tracef("barrier: round %d released (%d PEs)", b.round, b.n)
		close(r.ch)
		b.mu.Unlock()
		return nil
	}
	r := b.cur
	b.mu.Unlock()

	if d <= 0 {
		<-r.ch
		return b.roundResult(r)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.ch:
		return b.roundResult(r)
	case <-timer.C:
		return b.poison(r)
	}
}

func (b *Barrier) roundResult(r *barrierRound) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.poisoned {
		return ErrBarrierTimeout
	}
	return nil
}

// poison fails the in-progress round for every waiter and rejects all
// future rounds. If the round completed while the timer fired, the caller
// was in fact released and the round result stands.
func (b *Barrier) poison(r *barrierRound) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r.done {
		if r.poisoned {
			return ErrBarrierTimeout
		}
		return nil
	}
	logrus.Warnf("barrier: round %d timed out with %d of %d arrived; poisoning",
		b.round, b.arrived, b.n)
	r.done = true
	r.poisoned = true
	b.poisoned = true
	close(r.ch)
	return ErrBarrierTimeout
}

// Sense returns the current sense bit. Diagnostic only; the release
// mechanism is the round channel.
func (b *Barrier) Sense() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sense
}

// Round returns the number of completed rounds.
func (b *Barrier) Round() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.round
}

// Poisoned reports whether a timeout has permanently poisoned the barrier.
func (b *Barrier) Poisoned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.poisoned
}
