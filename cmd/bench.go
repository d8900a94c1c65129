package cmd

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/pgasrt/pgasrt/rt"
)

var (
	benchIters      int   // Updates (gups) or rounds (reduce) per PE
	benchTableWords int   // Shared table size in 64-bit words (gups)
	benchMatrixN    int   // Square matrix dimension (matmul)
	benchSeed       int64 // Master seed for benchmark RNGs
)

// benchCmd dispatches to one of the built-in benchmark kernels. Each kernel
// verifies its own result before reporting a rate, so a silently broken
// runtime shows up as an error rather than a fast number.
var benchCmd = &cobra.Command{
	Use:       "bench [gups|reduce|matmul]",
	Short:     "Run a benchmark kernel across all PEs",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"gups", "reduce", "matmul"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		r, err := rt.Init(cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		logrus.Debugf("bench %s: %d PEs, iters=%d", args[0], r.NumPEs(), benchIters)
		switch args[0] {
		case "gups":
			return benchGUPS(r)
		case "reduce":
			return benchReduce(r)
		case "matmul":
			return benchMatmul(r)
		default:
			return fmt.Errorf("unknown benchmark %q", args[0])
		}
	},
}

// gupsPlan is one PE's pre-generated update schedule.
type gupsPlan struct {
	pe   []int
	word []int64
	val  []uint64
}

// benchGUPS performs random remote read-modify-write updates against a
// symmetric table: each update XORs a word on a random PE. Word indices are
// striped so PE i only ever touches words congruent to i mod n; the
// read-modify-write is not atomic, and disjoint stripes keep concurrent
// updates from clobbering each other. The XOR trick makes verification
// cheap: applying every update twice restores the table to zero.
func benchGUPS(r *rt.Runtime) error {
	n := r.NumPEs()
	if benchTableWords < n {
		return fmt.Errorf("gups: --table-words must be at least the PE count (%d)", n)
	}
	pe0, err := r.PE(0)
	if err != nil {
		return err
	}
	table, err := pe0.Malloc(int64(benchTableWords) * 8)
	if err != nil {
		return err
	}
	defer pe0.Free(table)

	plans := make([]*gupsPlan, n)
	stripe := int64(benchTableWords / n)
	for i := 0; i < n; i++ {
		// Each PE gets an isolated stream so schedules stay reproducible.
		rng := rand.New(rand.NewSource(benchSeed + int64(i)))
		plan := &gupsPlan{
			pe:   make([]int, benchIters),
			word: make([]int64, benchIters),
			val:  make([]uint64, benchIters),
		}
		for j := 0; j < benchIters; j++ {
			plan.pe[j] = rng.Intn(n)
			plan.word[j] = rng.Int63n(stripe)*int64(n) + int64(i)
			plan.val[j] = rng.Uint64()
		}
		plans[i] = plan
	}

	start := time.Now()
	pass := func(pe *rt.PE) error {
		plan := plans[pe.ID()]
		for j := 0; j < benchIters; j++ {
			off := plan.word[j] * 8
			v, err := pe.GetUint64(plan.pe[j], table, off)
			if err != nil {
				return err
			}
			if err := pe.PutUint64(plan.pe[j], table, off, v^plan.val[j]); err != nil {
				return err
			}
		}
		return pe.Barrier()
	}
	// Two identical passes: every XOR is applied twice, so the table must
	// come back to all zeros if no update was lost.
	if err := r.Run(pass); err != nil {
		return err
	}
	if err := r.Run(pass); err != nil {
		return err
	}
	elapsed := time.Since(start)

	for i := 0; i < n; i++ {
		for w := 0; w < benchTableWords; w++ {
			v, err := pe0.GetUint64(i, table, int64(w)*8)
			if err != nil {
				return err
			}
			if v != 0 {
				return fmt.Errorf("gups: PE %d word %d not restored: %#x", i, w, v)
			}
		}
	}

	updates := float64(2*benchIters) * float64(n)
	fmt.Printf("gups: %d PEs, %d updates in %s (%.3f MUP/s)\n",
		n, int64(updates), elapsed.Round(time.Millisecond), updates/elapsed.Seconds()/1e6)
	return nil
}

// benchReduce times back-to-back sum reductions of the PE ids. Every round
// must yield k(k-1)/2 on every PE.
func benchReduce(r *rt.Runtime) error {
	n := r.NumPEs()
	want := int64(n) * int64(n-1) / 2

	start := time.Now()
	err := r.Run(func(pe *rt.PE) error {
		for i := 0; i < benchIters; i++ {
			got, err := pe.ReduceInt64(rt.ReduceSum, int64(pe.ID()))
			if err != nil {
				return err
			}
			if got != want {
				return fmt.Errorf("reduce: PE %d round %d got %d, want %d", pe.ID(), i, got, want)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("reduce: %d PEs, %d rounds in %s (%.1f us/round)\n",
		n, benchIters, elapsed.Round(time.Millisecond),
		float64(elapsed.Microseconds())/float64(benchIters))
	return nil
}

// benchMatmul multiplies two NxN float64 matrices with a row-block
// decomposition: PE 0 owns A, B and C, each PE pulls its row block of A plus
// all of B, computes locally and pushes its C rows back. The result is
// checked against gonum's mat.Dense product.
func benchMatmul(r *rt.Runtime) error {
	n := r.NumPEs()
	dim := benchMatrixN
	bytes := int64(dim) * int64(dim) * 8

	pe0, err := r.PE(0)
	if err != nil {
		return err
	}
	ha, err := pe0.Malloc(bytes)
	if err != nil {
		return err
	}
	hb, err := pe0.Malloc(bytes)
	if err != nil {
		return err
	}
	hc, err := pe0.Malloc(bytes)
	if err != nil {
		return err
	}
	defer pe0.Free(ha)
	defer pe0.Free(hb)
	defer pe0.Free(hc)

	rng := rand.New(rand.NewSource(benchSeed))
	a := make([]float64, dim*dim)
	b := make([]float64, dim*dim)
	for i := range a {
		a[i] = rng.Float64()
		b[i] = rng.Float64()
	}
	if err := pe0.Put(0, ha, 0, floatBytes(a)); err != nil {
		return err
	}
	if err := pe0.Put(0, hb, 0, floatBytes(b)); err != nil {
		return err
	}

	start := time.Now()
	err = r.Run(func(pe *rt.PE) error {
		lo, hi := rowBlock(pe.ID(), n, dim)
		if lo == hi {
			return pe.Barrier()
		}
		rows := hi - lo

		ablock := make([]byte, rows*dim*8)
		ball := make([]byte, dim*dim*8)
		if err := pe.Get(0, ha, int64(lo)*int64(dim)*8, ablock); err != nil {
			return err
		}
		if err := pe.Get(0, hb, 0, ball); err != nil {
			return err
		}
		av := bytesFloats(ablock)
		bv := bytesFloats(ball)

		cm := mat.NewDense(rows, dim, nil)
		cm.Mul(mat.NewDense(rows, dim, av), mat.NewDense(dim, dim, bv))

		if err := pe.Put(0, hc, int64(lo)*int64(dim)*8, floatBytes(cm.RawMatrix().Data)); err != nil {
			return err
		}
		return pe.Barrier()
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	cbuf := make([]byte, dim*dim*8)
	if err := pe0.Get(0, hc, 0, cbuf); err != nil {
		return err
	}
	got := mat.NewDense(dim, dim, bytesFloats(cbuf))
	want := mat.NewDense(dim, dim, nil)
	want.Mul(mat.NewDense(dim, dim, a), mat.NewDense(dim, dim, b))
	if !mat.EqualApprox(got, want, 1e-9) {
		return fmt.Errorf("matmul: distributed result diverges from dense reference")
	}

	flops := 2 * float64(dim) * float64(dim) * float64(dim)
	fmt.Printf("matmul: %dx%d over %d PEs in %s (%.2f MFLOP/s)\n",
		dim, dim, n, elapsed.Round(time.Millisecond), flops/elapsed.Seconds()/1e6)
	return nil
}

// rowBlock splits dim rows across n PEs, spreading the remainder over the
// lowest-numbered PEs.
func rowBlock(pe, n, dim int) (lo, hi int) {
	base := dim / n
	extra := dim % n
	lo = pe*base + min(pe, extra)
	hi = lo + base
	if pe < extra {
		hi++
	}
	return lo, hi
}

func floatBytes(fs []float64) []byte {
	out := make([]byte, len(fs)*8)
	for i, f := range fs {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(f))
	}
	return out
}

func bytesFloats(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

func init() {
	benchCmd.Flags().IntVar(&benchIters, "iters", 1000, "Updates or rounds per PE")
	benchCmd.Flags().IntVar(&benchTableWords, "table-words", 4096, "Shared table size in 64-bit words (gups)")
	// Three 128x128 float64 matrices fit the default 1 MiB region.
	benchCmd.Flags().IntVar(&benchMatrixN, "matrix-n", 128, "Square matrix dimension (matmul)")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 42, "Benchmark RNG seed")
}
