package quit

import "math"

// saturatingAdd adds b to a, clamping at the maximum representable key
// instead of wrapping, since fp_min + max_distance is a logical bound,
// not a stored key.
func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// dist is the distance metric spec.md §4.4.2 asks for: subtraction for
// the fixed-width unsigned integer key instantiation. An implementer
// generalising to other orderable types would replace this function.
func dist(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return b - a
}

// ikrUpperBound is the IQR-style monotone estimator spec.md §4.4.2
// names IKR.upper_bound: given a neighbouring leaf's key-range width and
// the neighbour's and current leaf's populations, it returns a threshold
// beyond which a key is considered an outlier relative to that
// neighbour's observed density.
//
// No pack example implements an IQR fence, so this is built directly
// from the stated contract: monotone in d, and upper_bound(d,n,n) >= d.
// The estimator scales the neighbour's range width by the ratio of
// "typical" per-key spacing (nPrev entries across width dPrev) applied
// to the current leaf's population, then adds a classic 1.5x IQR-style
// fence on top of that scaled width.
func ikrUpperBound(dPrev uint64, nPrev, nCur int) uint64 {
	if nPrev <= 0 {
		nPrev = 1
	}
	if nCur <= 0 {
		nCur = 1
	}
	// Expected width of a region holding nCur keys at the neighbour's
	// observed density (dPrev spread across nPrev keys).
	scaled := dPrev
	if nCur != nPrev {
		scaled = (dPrev * uint64(nCur)) / uint64(nPrev)
	}
	// 1.5x IQR-style upper fence: scaled + 0.5*scaled, floor-guarded so
	// the estimator never returns less than the unscaled distance.
	fence := scaled + scaled/2
	if fence < dPrev {
		fence = dPrev
	}
	return fence
}
