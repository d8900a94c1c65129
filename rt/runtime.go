package rt

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pgasrt/pgasrt/rt/trace"
)

// Runtime is the facade composing the PE directory, the shared-region
// allocator, the worker pool, the barrier and the remote access layer.
// There is no ambient global state: a Runtime is created by Init and passed
// (or captured) by whoever needs it.
type Runtime struct {
	cfg     Config
	dir     *Directory
	mem     *memory
	alloc   *Allocator
	pool    *WorkerPool
	barrier *Barrier
	tracer  *trace.OpTrace
	pes     []*PE
	closed  atomic.Bool

	// Collective scratch: one word per PE plus one result cell, reserved
	// at init so reductions never allocate.
	scratch Handle
	result  Handle
}

// Init builds the directory and allocator and starts the worker pool.
// The configuration is validated up front; configuration errors are fatal
// to the call and nothing is started.
func Init(cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:     cfg,
		dir:     newDirectory(cfg.PEs, cfg.RegionSize),
		alloc:   newAllocator(cfg.RegionSize, cfg.Slots),
		barrier: newBarrier(cfg.PEs, cfg.BarrierTimeout),
		tracer:  trace.New(trace.Config{Level: cfg.TraceLevel}),
	}
	r.mem = newMemory(r.dir)

	var err error
	if r.scratch, err = r.alloc.Alloc(combinerPE, int64(cfg.PEs)*8); err != nil {
		return nil, fmt.Errorf("rt: reserving reduce scratch: %w", err)
	}
	if r.result, err = r.alloc.Alloc(combinerPE, 8); err != nil {
		return nil, fmt.Errorf("rt: reserving reduce result: %w", err)
	}

	r.pes = make([]*PE, cfg.PEs)
	for i := range r.pes {
		r.pes[i] = &PE{id: i, rt: r}
	}
	r.pool = newWorkerPool(cfg.PEs, cfg.PinThreads)

	logrus.Infof("rt: initialized %d PEs, %d-byte regions, %d slots",
		cfg.PEs, cfg.RegionSize, cfg.Slots)
	return r, nil
}

// NumPEs returns the number of configured processing elements.
func (r *Runtime) NumPEs() int {
	return r.dir.NumPEs()
}

// Config returns the configuration the runtime was initialized with.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Trace returns the operation trace (empty unless tracing is configured).
func (r *Runtime) Trace() *trace.OpTrace {
	return r.tracer
}

// PE returns the view for one processing element. All per-PE operations
// (alloc, barrier, get/put, collectives) hang off this view, which carries
// the calling PE's identity.
func (r *Runtime) PE(id int) (*PE, error) {
	if id < 0 || id >= len(r.pes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPE, id)
	}
	return r.pes[id], nil
}

// Submit enqueues a job on one PE's worker thread.
func (r *Runtime) Submit(pe int, job Job) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.pool.Submit(pe, job)
}

// Drain blocks until all submitted work has completed and returns the
// joined job errors.
func (r *Runtime) Drain() error {
	return r.pool.Drain()
}

// DrainTimeout is Drain with a deadline.
func (r *Runtime) DrainTimeout(d time.Duration) error {
	return r.pool.DrainTimeout(d)
}

// Run executes fn once on every PE's worker thread and drains: the SPMD
// idiom the benchmarks use. fn runs with that PE's view; errors from all
// PEs are joined. A submit failure stops fan-out but still drains whatever
// was already queued, so the phase never returns with work in flight.
func (r *Runtime) Run(fn func(*PE) error) error {
	if r.closed.Load() {
		return ErrClosed
	}
	var submitErr error
	for _, pe := range r.pes {
		pe := pe
		if err := r.pool.Submit(pe.id, func() error { return fn(pe) }); err != nil {
			submitErr = err
			break
		}
	}
	return errors.Join(submitErr, r.pool.Drain())
}

// Close drains outstanding work, stops the worker pool and releases the
// shared arena. Idempotent; the first call's drain errors are returned.
func (r *Runtime) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	err := r.pool.Drain()
	r.pool.Shutdown()
	r.mem.arena = nil
	logrus.Info("rt: closed")
	return err
}

// PE is one processing element's view of the runtime. Methods are safe to
// call from that PE's jobs; the remote access path takes no locks.
type PE struct {
	id int
	rt *Runtime
}

// ID returns the logical id of this processing element.
func (p *PE) ID() int { return p.id }

// NumPEs returns the number of configured processing elements.
func (p *PE) NumPEs() int { return p.rt.NumPEs() }

// Malloc reserves size bytes of shared memory owned by this PE. The span
// is addressable on every PE at the handle's symmetric offset.
func (p *PE) Malloc(size int64) (Handle, error) {
	if p.rt.closed.Load() {
		return Handle{}, ErrClosed
	}
	h, err := p.rt.alloc.Alloc(p.id, size)
	p.record(trace.Record{Op: trace.OpAlloc, PE: p.id, Target: -1, Offset: h.offset, Bytes: size, Err: errText(err)})
	return h, err
}

// Free releases a handle previously returned by Malloc.
func (p *PE) Free(h Handle) error {
	if p.rt.closed.Load() {
		return ErrClosed
	}
	err := p.rt.alloc.Free(h)
	p.record(trace.Record{Op: trace.OpFree, PE: p.id, Target: -1, Offset: h.offset, Err: errText(err)})
	return err
}

// ensureOpen refuses operations on a closed runtime. The arena is released
// at Close, so every path that could touch it must fail with ErrClosed
// instead of reaching freed memory.
func (p *PE) ensureOpen() error {
	if p.rt.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Barrier enters the global barrier with the configured default timeout.
func (p *PE) Barrier() error {
	err := p.ensureOpen()
	if err == nil {
		err = p.rt.barrier.Enter()
	}
	p.record(trace.Record{Op: trace.OpBarrier, PE: p.id, Target: -1, Err: errText(err)})
	return err
}

// BarrierTimeout enters the global barrier with an explicit timeout.
func (p *PE) BarrierTimeout(d time.Duration) error {
	err := p.ensureOpen()
	if err == nil {
		err = p.rt.barrier.EnterTimeout(d)
	}
	p.record(trace.Record{Op: trace.OpBarrier, PE: p.id, Target: -1, Err: errText(err)})
	return err
}

// Get copies len(dst) bytes from srcPE's copy of h at off into dst.
func (p *PE) Get(srcPE int, h Handle, off int64, dst []byte) error {
	err := p.ensureOpen()
	if err == nil {
		err = p.rt.mem.get(srcPE, h, off, dst)
	}
	p.record(trace.Record{Op: trace.OpGet, PE: p.id, Target: srcPE, Offset: off, Bytes: int64(len(dst)), Err: errText(err)})
	return err
}

// Put copies src into dstPE's copy of h at off.
func (p *PE) Put(dstPE int, h Handle, off int64, src []byte) error {
	err := p.ensureOpen()
	if err == nil {
		err = p.rt.mem.put(dstPE, h, off, src)
	}
	p.record(trace.Record{Op: trace.OpPut, PE: p.id, Target: dstPE, Offset: off, Bytes: int64(len(src)), Err: errText(err)})
	return err
}

// GetUint64 atomically reads the word at (pe, h, off).
func (p *PE) GetUint64(pe int, h Handle, off int64) (uint64, error) {
	var v uint64
	err := p.ensureOpen()
	if err == nil {
		v, err = p.rt.mem.load64(pe, h, off)
	}
	p.record(trace.Record{Op: trace.OpGet, PE: p.id, Target: pe, Offset: off, Bytes: 8, Err: errText(err)})
	return v, err
}

// PutUint64 atomically writes the word at (pe, h, off).
func (p *PE) PutUint64(pe int, h Handle, off int64, v uint64) error {
	err := p.ensureOpen()
	if err == nil {
		err = p.rt.mem.store64(pe, h, off, v)
	}
	p.record(trace.Record{Op: trace.OpPut, PE: p.id, Target: pe, Offset: off, Bytes: 8, Err: errText(err)})
	return err
}

// GetInt64s reads len(dst) int64 elements from srcPE's copy of h, stride
// elements apart (stride 1 is dense).
func (p *PE) GetInt64s(srcPE int, h Handle, dst []int64, stride int) error {
	err := p.ensureOpen()
	if err == nil {
		raw := make([]uint64, len(dst))
		if err = p.rt.mem.getStride64(srcPE, h, raw, len(dst), stride); err == nil {
			for i, v := range raw {
				dst[i] = int64(v)
			}
		}
	}
	p.record(trace.Record{Op: trace.OpGet, PE: p.id, Target: srcPE, Bytes: int64(len(dst)) * 8, Err: errText(err)})
	return err
}

// PutInt64s writes src into dstPE's copy of h, stride elements apart.
func (p *PE) PutInt64s(dstPE int, h Handle, src []int64, stride int) error {
	err := p.ensureOpen()
	if err == nil {
		raw := make([]uint64, len(src))
		for i, v := range src {
			raw[i] = uint64(v)
		}
		err = p.rt.mem.putStride64(dstPE, h, raw, len(src), stride)
	}
	p.record(trace.Record{Op: trace.OpPut, PE: p.id, Target: dstPE, Bytes: int64(len(src)) * 8, Err: errText(err)})
	return err
}

// AddrAccessible reports whether h's span is reachable inside pe's region.
func (p *PE) AddrAccessible(h Handle, pe int) bool {
	return p.rt.mem.accessible(pe, h)
}

func (p *PE) record(rec trace.Record) {
	rec.PE = p.id
	p.rt.tracer.Record(rec)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
