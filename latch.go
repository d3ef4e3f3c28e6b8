package quit

import "sync"

// LatchTable holds one readers-writer latch per block id, pre-sized to
// the block manager's capacity the same way BlockManager pre-sizes its
// arena (spec.md §4.5, §9's "per-tree latch table ... process-wide
// state scoped to a single benchmark run"). A zero-value sync.RWMutex
// is ready to use, so no per-entry initialization is needed.
type LatchTable struct {
	latches []sync.RWMutex
}

// NewLatchTable allocates a latch table large enough to cover every
// block id the paired BlockManager can ever hand out.
func NewLatchTable(capacity int) *LatchTable {
	return &LatchTable{latches: make([]sync.RWMutex, capacity)}
}

func (lt *LatchTable) RLock(id BlockID)   { lt.latches[id].RLock() }
func (lt *LatchTable) RUnlock(id BlockID) { lt.latches[id].RUnlock() }
func (lt *LatchTable) Lock(id BlockID)    { lt.latches[id].Lock() }
func (lt *LatchTable) Unlock(id BlockID)  { lt.latches[id].Unlock() }

// DescendShared walks root-to-leaf in shared mode, releasing each
// parent only once its child is latched (spec.md §4.5's latch
// coupling). The returned leaf id is left shared-latched; the caller
// must RUnlock it.
func (lt *LatchTable) DescendShared(ts *treeState, k uint64) BlockID {
	nodeID := ts.rootID
	lt.RLock(nodeID)
	for depth := 0; depth < ts.height; depth++ {
		node := AsInternal(ts.mgr.Open(nodeID))
		child := node.Child(node.ChildSlot(k))
		lt.RLock(child)
		lt.RUnlock(nodeID)
		nodeID = child
	}
	return nodeID
}

// DescendExclusiveOptimistic is spec.md §4.5's find_leaf_exclusive
// shape for non-splitting inserts: shared on every internal level,
// exclusive only on the leaf. The returned leaf id is left
// exclusive-latched; the caller must Unlock it.
func (lt *LatchTable) DescendExclusiveOptimistic(ts *treeState, k uint64) BlockID {
	nodeID := ts.rootID
	if ts.height == 0 {
		lt.Lock(nodeID)
		return nodeID
	}
	lt.RLock(nodeID)
	for depth := 0; depth < ts.height; depth++ {
		node := AsInternal(ts.mgr.Open(nodeID))
		child := node.Child(node.ChildSlot(k))
		if depth == ts.height-1 {
			lt.Lock(child)
		} else {
			lt.RLock(child)
		}
		lt.RUnlock(nodeID)
		nodeID = child
	}
	return nodeID
}

// DescendExclusivePessimistic is spec.md §4.5's exclusive-all-the-way
// shape used when a split is possible. It implements safe-ancestor
// release: whenever a node on the path has room for one more entry, it
// cannot itself split, so every ancestor held above it is released —
// it alone remains the nearest guaranteed stopping point for any split
// that bubbles up from the leaf. The returned path (topmost first)
// holds exactly the ancestors still latched, ready to hand to
// treeState.splitLeafAt / propagateSeparator; the leaf itself is
// returned separately, exclusive-latched. lo/hi are computed during
// this same forward pass rather than by re-reading released ancestors
// afterward, since a concurrent insert into a released ancestor could
// shift its entries before anyone looks at it again.
func (lt *LatchTable) DescendExclusivePessimistic(ts *treeState, k uint64) (path []pathStep, leafID BlockID, lo, hi uint64) {
	lo, hi = minKey, maxKey
	nodeID := ts.rootID
	lt.Lock(nodeID)
	cur := nodeID
	var held []pathStep
	for depth := 0; depth < ts.height; depth++ {
		node := AsInternal(ts.mgr.Open(cur))
		idx := node.ChildSlot(k)
		if idx > 0 {
			lo = node.Key(idx - 1)
		}
		if idx < node.Size() {
			hi = node.Key(idx)
		}
		child := node.Child(idx)
		lt.Lock(child)
		held = append(held, pathStep{nodeID: cur, childIdx: idx})
		if node.Size() < internalCapacity {
			for _, anc := range held[:len(held)-1] {
				lt.Unlock(anc.nodeID)
			}
			held = held[len(held)-1:]
		}
		cur = child
	}
	return held, cur, lo, hi
}

// ReleasePath unlocks every ancestor latch still held in path, in
// bottom-to-top order, mirroring how they were acquired top-to-bottom.
func (lt *LatchTable) ReleasePath(path []pathStep) {
	for i := len(path) - 1; i >= 0; i-- {
		lt.Unlock(path[i].nodeID)
	}
}
