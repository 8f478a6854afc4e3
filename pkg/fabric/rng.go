package fabric

import (
	"math/rand"
	"sort"
)

// RNG is the deterministic random source the device model hands to the
// router and placer. Every method must be reproducible given a fixed
// seed and a fixed sequence of calls (spec requirement: determinism at a
// fixed thread count and seed).
type RNG interface {
	// Intn returns a pseudo-random int in [0, n).
	Intn(n int) int
	// Int63 returns a pseudo-random non-negative int64, used to tag
	// priority-queue entries so ties break deterministically but without
	// favoring queue insertion order.
	Int63() int64
	// SortedShuffle shuffles ids in place. The name documents the
	// implementation strategy required for determinism across runs that
	// build the slice in different orders: ids are first sorted, then
	// permuted, so the result depends only on the RNG state and the
	// *set* of ids, not on their incoming order.
	SortedShuffle(ids []int)
	// Spawn derives a fresh, independent RNG from this one's state mixed
	// with extra bits, so per-worker randomness never depends on
	// goroutine scheduling order (spec §5).
	Spawn(extra uint64) RNG
}

// DeterministicRNG is an RNG backed by a seeded math/rand source. It is
// not safe for concurrent use; each router worker owns its own instance
// (the router's dispatcher derives per-worker instances via Spawn).
type DeterministicRNG struct {
	r *rand.Rand
}

// NewDeterministicRNG builds an RNG seeded with the given value.
func NewDeterministicRNG(seed int64) *DeterministicRNG {
	return &DeterministicRNG{r: rand.New(rand.NewSource(seed))}
}

func (d *DeterministicRNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return d.r.Intn(n)
}

func (d *DeterministicRNG) Int63() int64 {
	return d.r.Int63()
}

func (d *DeterministicRNG) SortedShuffle(ids []int) {
	sort.Ints(ids)
	d.r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// Spawn derives a fresh deterministic RNG from this one's state mixed
// with extra bits, used by the router's dispatcher so that each worker
// goroutine's randomness does not depend on thread-scheduling order
// (spec §5).
func (d *DeterministicRNG) Spawn(extra uint64) RNG {
	mixed := uint64(d.r.Int63()) ^ extra
	return NewDeterministicRNG(int64(mixed))
}
