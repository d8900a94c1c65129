package rt

import "errors"

// Error taxonomy. Configuration errors are fatal and surfaced at Init.
// Resource exhaustion (ErrOutOfSlots, ErrOutOfMemory) is recoverable: the
// caller may free and retry. Protocol misuse (ErrDoubleFree, ErrInvalidHandle,
// ErrUnknownPE) and bounds violations are always reported as typed errors,
// never as a crash or a silent wild access. Nothing is retried automatically.
var (
	// ErrInvalidPECount reports a PE count outside [1, MaxPEs].
	ErrInvalidPECount = errors.New("rt: invalid PE count")

	// ErrInvalidRegionSize reports a non-positive or unaligned region size.
	ErrInvalidRegionSize = errors.New("rt: invalid region size")

	// ErrInvalidSlotCount reports a non-positive allocation slot capacity.
	ErrInvalidSlotCount = errors.New("rt: invalid slot count")

	// ErrClosed reports use of a runtime after Close.
	ErrClosed = errors.New("rt: runtime closed")

	// ErrUnknownPE reports a PE id with no entry in the directory.
	ErrUnknownPE = errors.New("rt: unknown PE")

	// ErrOutOfSlots reports that all allocation slots are occupied.
	ErrOutOfSlots = errors.New("rt: out of allocation slots")

	// ErrOutOfMemory reports that no contiguous free span fits the request.
	ErrOutOfMemory = errors.New("rt: out of shared memory")

	// ErrInvalidSize reports a non-positive allocation or transfer size.
	ErrInvalidSize = errors.New("rt: invalid size")

	// ErrInvalidHandle reports a free or access through a handle the
	// allocator never issued (or whose slot no longer matches it).
	ErrInvalidHandle = errors.New("rt: invalid handle")

	// ErrDoubleFree reports a second free of an already-freed handle.
	ErrDoubleFree = errors.New("rt: double free")

	// ErrOutOfBounds reports an access outside a handle's [0, length) span.
	// The access is refused before any memory is touched.
	ErrOutOfBounds = errors.New("rt: access out of handle bounds")

	// ErrBarrierTimeout reports that a barrier round did not complete within
	// the configured timeout. The barrier is poisoned afterwards.
	ErrBarrierTimeout = errors.New("rt: barrier timeout")

	// ErrBarrierPoisoned reports entry into a barrier that a previous
	// timeout has poisoned. All subsequent rounds fail fast.
	ErrBarrierPoisoned = errors.New("rt: barrier poisoned")

	// ErrPoolShutdown reports a submit to a worker pool after Shutdown.
	ErrPoolShutdown = errors.New("rt: worker pool shut down")

	// ErrDrainTimeout reports that Drain did not observe an idle pool
	// within the given timeout.
	ErrDrainTimeout = errors.New("rt: drain timeout")
)
