package rt

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one unit of work executed on a PE's worker thread. A returned
// error is collected and surfaced to whoever drains the pool; it never
// crashes the worker.
type Job func() error

// WorkerPool owns one OS-locked goroutine per PE and a FIFO queue per PE.
// PE-to-thread affinity is fixed for the run: jobs submitted to a PE run on
// that PE's thread in submission order, and there is no work stealing.
// That preserves the "one thread models one PE" semantic.
type WorkerPool struct {
	mu       sync.Mutex
	cond     *sync.Cond // signaled on submit, job completion and shutdown
	queues   [][]Job
	pending  int // queued, not yet started
	inflight int // started, not yet finished
	errs     []error
	shutdown bool
	wg       sync.WaitGroup
}

func newWorkerPool(pes int, pin bool) *WorkerPool {
	p := &WorkerPool{queues: make([][]Job, pes)}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(pes)
	for pe := 0; pe < pes; pe++ {
		go p.worker(pe, pin)
	}
	return p
}

// Submit enqueues job onto PE pe's queue. It never blocks; it fails when pe
// is out of range, the job is nil, or the pool has been shut down.
func (p *WorkerPool) Submit(pe int, job Job) error {
	if job == nil {
		return fmt.Errorf("rt: submit nil job to PE %d", pe)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pe < 0 || pe >= len(p.queues) {
		return fmt.Errorf("%w: %d (have %d)", ErrUnknownPE, pe, len(p.queues))
	}
	if p.shutdown {
		return ErrPoolShutdown
	}
	p.queues[pe] = append(p.queues[pe], job)
	p.pending++
	p.cond.Broadcast()
	return nil
}

// Drain blocks until every queue is empty and every in-flight job has
// completed, then returns the joined errors of all jobs finished since the
// previous drain. This is the "wait for all PEs to finish a phase" join point.
func (p *WorkerPool) Drain() error {
	return p.drain(nil)
}

// DrainTimeout is Drain with a deadline; it fails with ErrDrainTimeout if
// the pool is still busy when the timeout fires. Queued work keeps running.
func (p *WorkerPool) DrainTimeout(d time.Duration) error {
	var timedOut atomic.Bool
	timer := time.AfterFunc(d, func() {
		timedOut.Store(true)
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()
	return p.drain(&timedOut)
}

func (p *WorkerPool) drain(timedOut *atomic.Bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending+p.inflight > 0 {
		if timedOut != nil && timedOut.Load() {
			return fmt.Errorf("%w: %d queued, %d in flight", ErrDrainTimeout, p.pending, p.inflight)
		}
		p.cond.Wait()
	}
	errs := p.errs
	p.errs = nil
	return errors.Join(errs...)
}

// Shutdown signals all workers to stop once their queues are drained and
// joins them. Idempotent.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.shutdown = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// worker is the per-PE thread loop: pop next job (blocking while the queue
// is empty and the pool is live), execute, repeat. The goroutine is locked
// to its OS thread so the PE model holds even when jobs touch thread state.
func (p *WorkerPool) worker(pe int, pin bool) {
	defer p.wg.Done()
	runtime.LockOSThread()
	if pin {
		pinThread(pe)
	}

	for {
		p.mu.Lock()
		for len(p.queues[pe]) == 0 && !p.shutdown {
			p.cond.Wait()
		}
		if len(p.queues[pe]) == 0 && p.shutdown {
			p.mu.Unlock()
			return
		}
		job := p.queues[pe][0]
		p.queues[pe] = p.queues[pe][1:]
		p.pending--
		p.inflight++
		p.mu.Unlock()

		err := runJob(pe, job)

		p.mu.Lock()
		p.inflight--
		if err != nil {
			p.errs = append(p.errs, err)
		}
		p.cond.Broadcast()
		p.mu.Unlock()
	}
}

// runJob executes one job, converting a panic into a reported error so a
// misbehaving job cannot take down its PE thread.
func runJob(pe int, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rt: job on PE %d panicked: %v", pe, r)
			logrus.Errorf("recovered job panic on PE %d: %v", pe, r)
		}
	}()
	if err := job(); err != nil {
		return fmt.Errorf("rt: job on PE %d: %w", pe, err)
	}
	return nil
}
