package quit

// QuITTree is the full fast-path tree of spec.md §4.4: richer fast-path
// state, IQR-driven split-position selection, shadow metadata, and an
// optional append-then-sort mode. It is single-threaded; ConcurrentTree
// (concurrent.go) wraps the same decision logic under latches.
type QuITTree struct {
	ts   *treeState
	opts Options

	fp     fastPath
	shadow shadowMeta
	miss   missCounter
}

// NewQuITTree constructs a QuIT tree backed by mgr, with the fast-path
// initially pointed at the tree's sole leaf.
func NewQuITTree(mgr *BlockManager, opts Options) *QuITTree {
	ts, leafID := newTreeState(mgr)
	return &QuITTree{
		ts:     ts,
		opts:   opts,
		fp:     fastPath{id: leafID, min: minKey, max: maxKey, size: 0, sorted: true},
		shadow: shadowMeta{prevID: InvalidBlockID},
		miss:   newMissCounter(),
	}
}

func (t *QuITTree) Stats() *Stats { return t.ts.stats }
func (t *QuITTree) Height() int  { return t.ts.height }

// Insert implements spec.md §4.4.1's fast-path test followed by §4.4.2's
// split policy when the fast-path leaf is the one that fills up.
func (t *QuITTree) Insert(k, v uint64) {
	if t.fp.qualifies(k, t.ts.headID, t.ts.tailID) {
		t.miss.recordHit()
		t.ts.stats.fastHits.Add(1)
		if t.fastInsert(k, v) {
			return
		}
		t.splitFastPath(k, v)
		return
	}
	t.ts.stats.fastFails.Add(1)
	hardReset := t.miss.recordMiss()
	t.insertMiss(k, v, hardReset)
}

// fastInsert attempts to absorb (k, v) into the current fast-path leaf
// without a split. Returns false if the leaf is full and a split is
// required.
func (t *QuITTree) fastInsert(k, v uint64) bool {
	leaf := AsLeaf(t.ts.mgr.Open(t.fp.id))

	var idx int
	var found bool
	if t.fp.sorted {
		idx, found = leafLocate(leaf, true, k)
	} else {
		idx, found = leaf.FindUnsorted(k), false
		if idx >= 0 {
			found = true
		}
	}
	if found {
		leaf.SetValue(idx, v)
		return true
	}
	if leaf.Size() >= leafCapacity {
		return false
	}

	if t.opts.LeafAppendsEnabled {
		// Append-mode writes to the next free slot regardless of order
		// and marks the leaf unsorted (spec.md §4.4, point 3).
		leaf.AppendUnsorted(k, v)
		t.fp.sorted = false
	} else {
		leaf.InsertAt(idx, k, v)
	}
	t.ts.stats.size.Add(1)
	t.fp.size = leaf.Size()
	return true
}

// splitFastPath handles an insert that qualified for the fast path but
// found its leaf full: it picks a split position via IQR-based outlier
// detection, performs the structural split, and updates the fast-path
// and shadow metadata per spec.md §4.4.2/§4.4.3.
func (t *QuITTree) splitFastPath(k, v uint64) {
	path, leafID, lo, hi := t.ts.descend(k)
	leaf := AsLeaf(t.ts.mgr.Open(leafID))
	if !t.fp.sorted {
		sortLeaf(leaf)
		t.fp.sorted = true
		t.ts.stats.sortCount.Add(1)
	}
	t.splitFastLeaf(path, leafID, k, v, lo, hi, leaf, false)
}

// splitFastLeaf performs the IQR-driven split of an already-sorted,
// full leaf and updates the fast-path/shadow metadata per spec.md
// §4.4.2/§4.4.3. When resetFirst is true, it repoints the fast path at
// this exact leaf (via hardResetTo, which sets fp and the adjacency-
// based shadow) before computing the split position, so a hard reset
// landing on a leaf that turns out to be full picks its split position
// via the same IQR logic a fast-path hit would use instead of
// defaulting to a naive midpoint — mirroring
// ConcurrentQuITBTree.hpp's insert(), which reassigns fp_id ahead of
// split_insert for exactly this reason.
func (t *QuITTree) splitFastLeaf(path []pathStep, leafID BlockID, k, v, lo, hi uint64, leaf LeafNode, resetFirst bool) {
	if resetFirst {
		t.hardResetTo(leafID, lo, hi, leaf.Size())
	}

	splitPos, move := t.chooseSplitPosition(leaf, k)
	oldFP := t.fp

	res := t.ts.splitLeafAt(path, leafID, k, v, lo, hi, splitPos)

	if move {
		t.shadow = shadowMeta{prevID: oldFP.id, prevMin: oldFP.min, prevSize: oldFP.size}
		t.fp = fastPath{id: res.rightID, min: res.separator, max: res.rightHi, size: res.rightSize, sorted: true}
	} else {
		t.fp.max = res.separator
		t.fp.size = res.leftSize
	}
}

// chooseSplitPosition implements spec.md §4.4.2. leaf is the full
// fast-path leaf, already sorted; k is the incoming key about to be
// inserted on one side of the split.
func (t *QuITTree) chooseSplitPosition(leaf LeafNode, k uint64) (pos int, move bool) {
	return quitSplitPosition(t.fp, t.shadow, leaf, k)
}

// quitSplitPosition is the free-standing form of spec.md §4.4.2's split
// policy, shared by the single-threaded QuITTree and ConcurrentTree so
// the IQR decision logic exists in exactly one place.
func quitSplitPosition(fp fastPath, shadow shadowMeta, leaf LeafNode, k uint64) (pos int, move bool) {
	if shadow.prevID == InvalidBlockID || shadow.prevSize < iqrSizeThresh {
		return splitLeafPos, true
	}

	dPrev := dist(fp.min, shadow.prevMin)
	maxDistance := ikrUpperBound(dPrev, shadow.prevSize, fp.size)
	outlierPos := leaf.ValueSlot2(saturatingAdd(fp.min, maxDistance))

	if outlierPos <= splitLeafPos {
		pos, move = outlierPos, false
	} else {
		pos = splitLeafPos
		if cand := outlierPos - outlierSplitMargin; cand > pos {
			pos = cand
		}
		move = true
	}

	// Keep the incoming key on the correct side of the chosen position.
	if leaf.ValueSlot(k) < outlierPos {
		pos++
	}

	if pos < 1 {
		pos = 1
	}
	if max := leaf.Size() - 1; pos > max {
		pos = max
	}
	return pos, move
}

// insertMiss handles an insert whose key did not qualify for the fast
// path: a full descend, ordinary leaf insert or split, and — if the
// miss counter says so — a hard reset of the fast path. The reset
// follows the insert, except when the leaf is full: then the fast path
// is repointed first and the split goes through splitFastLeaf.
func (t *QuITTree) insertMiss(k, v uint64, hardReset bool) {
	path, leafID, lo, hi := t.ts.descend(k)
	leaf := AsLeaf(t.ts.mgr.Open(leafID))

	// Only the current fast-path leaf may ever be unsorted; any other
	// leaf reached by descent is sorted by invariant. Defend anyway.
	if leafID == t.fp.id && !t.fp.sorted {
		sortLeaf(leaf)
		t.fp.sorted = true
		t.ts.stats.sortCount.Add(1)
	}

	idx, found := leafLocate(leaf, true, k)
	if found {
		leaf.SetValue(idx, v)
		if hardReset {
			t.hardResetTo(leafID, lo, hi, leaf.Size())
		}
		return
	}
	if leaf.Size() < leafCapacity {
		leaf.InsertAt(idx, k, v)
		t.ts.stats.size.Add(1)
		if hardReset {
			t.hardResetTo(leafID, lo, hi, leaf.Size())
		}
		return
	}

	if hardReset {
		t.splitFastLeaf(path, leafID, k, v, lo, hi, leaf, true)
		return
	}

	res := t.ts.splitLeafAt(path, leafID, k, v, lo, hi, splitLeafPos)
	t.maybeAdoptShadow(res)
}

// maybeAdoptShadow implements spec.md §4.4.3's third case: a split of a
// leaf other than the fast-path leaf may create a new right sibling
// that becomes the fast-path leaf's immediate chain predecessor. When
// that happens the shadow metadata must track the new leaf instead of
// whatever preceded the fast-path leaf before the split.
func (t *QuITTree) maybeAdoptShadow(res splitResult) {
	right := AsLeaf(t.ts.mgr.Open(res.rightID))
	if right.NextID() == t.fp.id {
		t.shadow = shadowMeta{prevID: res.rightID, prevMin: res.separator, prevSize: res.rightSize}
	}
}

// hardResetTo repoints the fast path at a freshly located leaf, sorting
// it first if needed (spec.md §4.4.4), and sorts the outgoing fast-path
// leaf if append-mode left it unsorted. It is the only way the fast
// path acquires a new hot leaf outside of its own split. It also
// carries the outgoing fast-path leaf into the shadow when it is the
// new leaf's immediate chain predecessor, the same adjacency check
// ConcurrentQuITBTree.hpp's insert() applies on every reset, not just
// ones that happen to be followed by a split.
func (t *QuITTree) hardResetTo(id BlockID, lo, hi uint64, size int) {
	leaf := AsLeaf(t.ts.mgr.Open(id))
	if !leaf.IsSortedRange() {
		sortLeaf(leaf)
		t.ts.stats.sortCount.Add(1)
	}
	old := t.fp
	if !old.sorted && old.id != id {
		sortLeaf(AsLeaf(t.ts.mgr.Open(old.id)))
		t.ts.stats.sortCount.Add(1)
	}
	if old.id != t.ts.tailID && lo == old.max {
		t.shadow = shadowMeta{prevID: old.id, prevMin: old.min, prevSize: old.size}
	} else {
		t.shadow = shadowMeta{prevID: InvalidBlockID}
	}
	t.fp = fastPath{id: id, min: lo, max: hi, size: size, sorted: true}
	t.ts.stats.hardResets.Add(1)
}

// ensureFPSorted sorts the fast-path leaf if append-mode left it
// unsorted, so that a non-fast-path reader "takes no chances on
// ordering" (spec.md §4.4.5 case ii).
func (t *QuITTree) ensureFPSorted() {
	if t.fp.sorted {
		return
	}
	leaf := AsLeaf(t.ts.mgr.Open(t.fp.id))
	sortLeaf(leaf)
	t.fp.sorted = true
	t.ts.stats.sortCount.Add(1)
}

func (t *QuITTree) Get(k uint64) (uint64, bool) {
	t.ensureFPSorted()
	return t.ts.Get(k, nil)
}

func (t *QuITTree) Contains(k uint64) bool {
	t.ensureFPSorted()
	return t.ts.Contains(k, nil)
}

func (t *QuITTree) Update(k, v uint64) bool {
	t.ensureFPSorted()
	return t.ts.Update(k, v, nil)
}

func (t *QuITTree) SelectK(count int, minK uint64) int {
	t.ensureFPSorted()
	return t.ts.SelectK(count, minK)
}

func (t *QuITTree) Range(minK, maxK uint64) int {
	t.ensureFPSorted()
	return t.ts.Range(minK, maxK)
}
