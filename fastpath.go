package quit

import "math"

// maxKey is the open upper bound used when the fast-path leaf is the
// tail of the chain (spec.md §3's "If fp_id equals tail_id, fp_max is
// the maximum possible key").
const maxKey = math.MaxUint64

// minKey is the open lower bound used when the fast-path leaf is the
// head of the chain.
const minKey = 0

// fastPath is the coherent {fp_id, fp_min, fp_max, fp_size, fp_sorted}
// tuple spec.md §3 describes. It is read and written as a unit: the
// single-threaded QuIT tree guards it implicitly (no concurrent
// access), while ConcurrentTree keeps it in an atomic snapshot updated
// by compare-and-swap — see concurrent.go.
type fastPath struct {
	id     BlockID
	min    uint64
	max    uint64
	size   int
	sorted bool
}

// shadowMeta is the {fp_prev_id, fp_prev_min, fp_prev_size} tuple that
// exists solely to drive the IQR split-position calculation (spec.md
// §4.4.2).
type shadowMeta struct {
	prevID   BlockID
	prevMin  uint64
	prevSize int
}

// qualifies implements the fast-path test of spec.md §4.4.1:
// (fp_id = head_id ∨ fp_min ≤ k) ∧ (fp_id = tail_id ∨ k < fp_max).
// headID/tailID are passed in rather than captured, since the tree
// mutates them: headID on the first root split, tailID whenever the
// tail leaf splits.
func (fp *fastPath) qualifies(k uint64, headID, tailID BlockID) bool {
	lowOK := fp.id == headID || fp.min <= k
	highOK := fp.id == tailID || k < fp.max
	return lowOK && highOK
}

// missCounter tracks consecutive fast-path misses and decides when a
// hard reset is due (spec.md §4.4.4). threshold is fixed at
// construction to ceil(sqrt(leafCapacity)).
type missCounter struct {
	fails     int
	threshold int
}

func newMissCounter() missCounter {
	return missCounter{threshold: fastPathResetThreshold()}
}

// recordHit resets the consecutive-miss count.
func (m *missCounter) recordHit() { m.fails = 0 }

// recordMiss increments the miss count and reports whether this miss
// should trigger a hard reset.
func (m *missCounter) recordMiss() bool {
	m.fails++
	if m.fails >= m.threshold {
		m.fails = 0
		return true
	}
	return false
}
