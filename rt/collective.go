package rt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pgasrt/pgasrt/rt/trace"
)

// ReduceOp is the enumerated operator tag for reductions. Operators are
// tags rather than closures so the protocol stays portable across PEs that
// do not share code pointers.
type ReduceOp int

const (
	ReduceSum ReduceOp = iota
	ReduceMin
	ReduceMax
)

func (op ReduceOp) String() string {
	switch op {
	case ReduceSum:
		return "sum"
	case ReduceMin:
		return "min"
	case ReduceMax:
		return "max"
	default:
		return fmt.Sprintf("ReduceOp(%d)", int(op))
	}
}

// ParseReduceOp resolves an operator by name. Valid names: "sum", "min", "max".
func ParseReduceOp(name string) (ReduceOp, error) {
	switch name {
	case "sum":
		return ReduceSum, nil
	case "min":
		return ReduceMin, nil
	case "max":
		return ReduceMax, nil
	default:
		return 0, fmt.Errorf("rt: unknown reduce op %q", name)
	}
}

// BroadcastUint64 distributes v from root's handle to all PEs: root writes
// v into its own copy of h, all PEs enter one barrier, then every non-root
// PE reads root's word. Every PE returns the broadcast value.
//
// The runtime performs exactly one barrier, before the reads. If root will
// reuse the buffer, it must barrier again itself once readers are known to
// have finished; that second round is the caller's responsibility.
func (p *PE) BroadcastUint64(root int, h Handle, v uint64) (uint64, error) {
	rt := p.rt
	if err := p.ensureOpen(); err != nil {
		return 0, err
	}
	if _, err := rt.dir.Lookup(root); err != nil {
		return 0, err
	}
	if p.id == root {
		if err := rt.mem.store64(root, h, 0, v); err != nil {
			return 0, err
		}
	}
	if err := p.Barrier(); err != nil {
		return 0, err
	}
	out := v
	if p.id != root {
		var err error
		out, err = rt.mem.load64(root, h, 0)
		if err != nil {
			return 0, err
		}
	}
	p.record(trace.Record{Op: trace.OpBroadcast, Target: root, Bytes: 8})
	return out, nil
}

// BroadcastInt64 is BroadcastUint64 for signed values.
func (p *PE) BroadcastInt64(root int, h Handle, v int64) (int64, error) {
	out, err := p.BroadcastUint64(root, h, uint64(v))
	return int64(out), err
}

// BroadcastFloat64 is BroadcastUint64 over the value's bit pattern.
func (p *PE) BroadcastFloat64(root int, h Handle, v float64) (float64, error) {
	out, err := p.BroadcastUint64(root, h, math.Float64bits(v))
	return math.Float64frombits(out), err
}

// BroadcastBytes distributes root's buf through h to all PEs: root writes
// buf into its own copy of h, one barrier, then every non-root PE reads
// root's copy into buf. Same single-barrier contract as BroadcastUint64.
func (p *PE) BroadcastBytes(root int, h Handle, buf []byte) error {
	rt := p.rt
	if err := p.ensureOpen(); err != nil {
		return err
	}
	if _, err := rt.dir.Lookup(root); err != nil {
		return err
	}
	if p.id == root {
		if err := rt.mem.put(root, h, 0, buf); err != nil {
			return err
		}
	}
	if err := p.Barrier(); err != nil {
		return err
	}
	if p.id != root {
		if err := rt.mem.get(root, h, 0, buf); err != nil {
			return err
		}
	}
	p.record(trace.Record{Op: trace.OpBroadcast, Target: root, Bytes: int64(len(buf))})
	return nil
}

// ReduceInt64 combines one value per PE and returns the combined result on
// every PE. All PEs put their value into a pre-assigned word of PE 0's
// scratch region, barrier, PE 0 folds op over the values in ascending PE-id
// order, writes the result to the well-known result cell, barriers again,
// and all PEs read it back. Two barriers, deterministic combine order.
func (p *PE) ReduceInt64(op ReduceOp, v int64) (int64, error) {
	out, err := p.reduce(op, uint64(v), false)
	return int64(out), err
}

// ReduceFloat64 is ReduceInt64 over float64 values. The ascending PE-id
// fold makes the result deterministic even though float addition is not
// associative.
func (p *PE) ReduceFloat64(op ReduceOp, v float64) (float64, error) {
	out, err := p.reduce(op, math.Float64bits(v), true)
	return math.Float64frombits(out), err
}

// reduce is the shared combiner protocol on raw 64-bit patterns.
// The combiner PE is PE 0 by convention.
func (p *PE) reduce(op ReduceOp, bits uint64, isFloat bool) (uint64, error) {
	rt := p.rt
	if err := p.ensureOpen(); err != nil {
		return 0, err
	}
	n := rt.dir.NumPEs()

	if err := rt.mem.store64(combinerPE, rt.scratch, int64(p.id)*8, bits); err != nil {
		return 0, err
	}
	if err := p.Barrier(); err != nil {
		return 0, err
	}

	if p.id == combinerPE {
		vals := make([]uint64, n)
		if err := rt.mem.getStride64(combinerPE, rt.scratch, vals, n, 1); err != nil {
			return 0, err
		}
		var folded uint64
		if isFloat {
			folded = math.Float64bits(foldFloat64(op, vals))
		} else {
			folded = uint64(foldInt64(op, vals))
		}
		if err := rt.mem.store64(combinerPE, rt.result, 0, folded); err != nil {
			return 0, err
		}
	}
	if err := p.Barrier(); err != nil {
		return 0, err
	}

	out, err := rt.mem.load64(combinerPE, rt.result, 0)
	if err != nil {
		return 0, err
	}
	p.record(trace.Record{Op: trace.OpReduce, Target: combinerPE, Bytes: 8})
	return out, nil
}

// combinerPE designates which PE folds reductions.
const combinerPE = 0

func foldInt64(op ReduceOp, vals []uint64) int64 {
	acc := int64(vals[0])
	for _, raw := range vals[1:] {
		v := int64(raw)
		switch op {
		case ReduceSum:
			acc += v
		case ReduceMin:
			if v < acc {
				acc = v
			}
		case ReduceMax:
			if v > acc {
				acc = v
			}
		}
	}
	return acc
}

func foldFloat64(op ReduceOp, vals []uint64) float64 {
	fs := make([]float64, len(vals))
	for i, raw := range vals {
		fs[i] = math.Float64frombits(raw)
	}
	switch op {
	case ReduceMin:
		return floats.Min(fs)
	case ReduceMax:
		return floats.Max(fs)
	default:
		// floats.Sum folds left to right, preserving the ascending
		// PE-id order the protocol promises.
		return floats.Sum(fs)
	}
}
