package quit

import "sync/atomic"

// Stats holds the monotonic counters spec.md §6's CSV self-report and
// §5's "statistics counters... mutated under relaxed atomics" describe.
// A single atomic per counter, per spec.md §9's resolution of the two
// competing (atomic and non-atomic) leaf counters the source carries in
// different variants.
type Stats struct {
	size              atomic.Int64
	internalCount     atomic.Int64
	leafCount         atomic.Int64
	fastHits          atomic.Int64
	fastFails         atomic.Int64
	redistributeCount atomic.Int64 // split count
	softResets        atomic.Int64
	hardResets        atomic.Int64
	sortCount         atomic.Int64
}

func NewStats() *Stats { return &Stats{} }

func (s *Stats) Size() int64              { return s.size.Load() }
func (s *Stats) InternalCount() int64      { return s.internalCount.Load() }
func (s *Stats) LeafCount() int64          { return s.leafCount.Load() }
func (s *Stats) FastHits() int64           { return s.fastHits.Load() }
func (s *Stats) FastFails() int64          { return s.fastFails.Load() }
func (s *Stats) RedistributeCount() int64  { return s.redistributeCount.Load() }
func (s *Stats) SoftResets() int64         { return s.softResets.Load() }
func (s *Stats) HardResets() int64         { return s.hardResets.Load() }
func (s *Stats) SortCount() int64          { return s.sortCount.Load() }
