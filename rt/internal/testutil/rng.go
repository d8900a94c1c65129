// Package testutil provides shared test infrastructure for the PGAS
// runtime: deterministically partitioned RNGs so concurrent stress tests
// stay reproducible per worker.
package testutil

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// PartitionedRNG derives isolated, deterministic RNG instances per named
// subsystem from one master seed.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: the partition map is NOT thread-safe; derive all RNGs
// before fanning out, then hand each goroutine its own *rand.Rand.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same name always returns the same instance (cached).
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// ForWorker returns the RNG for stress-test worker i.
func (p *PartitionedRNG) ForWorker(i int) *rand.Rand {
	return p.ForSubsystem(fmt.Sprintf("worker_%d", i))
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
