package quit

import (
	"sync"
	"sync/atomic"
)

// ConcurrentTree is the Atomic2 variant of spec.md §4.5: the coherent
// fast-path tuple is packed into an atomic snapshot pointer, read
// lock-free and updated by compare-and-swap, the same technique
// gdbx/env.go uses for its atomic.Pointer[metaTriple] meta snapshot.
// Per-block latches still guard node contents; the shadow metadata and
// miss counter keep their own small mutexes, acquired only in the
// order fp -> shadow the spec requires.
type ConcurrentTree struct {
	ts      *treeState
	latches *LatchTable
	opts    Options

	fp atomic.Pointer[fastPath]

	shadowMu sync.Mutex
	shadow   shadowMeta

	missMu sync.Mutex
	miss   missCounter
}

// NewConcurrentTree constructs a concurrent tree over mgr, using
// latches for per-block synchronization. mgr and latches must be sized
// consistently (latches.capacity >= mgr.Capacity()).
func NewConcurrentTree(mgr *BlockManager, latches *LatchTable, opts Options) *ConcurrentTree {
	ts, leafID := newTreeState(mgr)
	ct := &ConcurrentTree{ts: ts, latches: latches, opts: opts, shadow: shadowMeta{prevID: InvalidBlockID}, miss: newMissCounter()}
	ct.fp.Store(&fastPath{id: leafID, min: minKey, max: maxKey, size: 0, sorted: true})
	return ct
}

func (ct *ConcurrentTree) Stats() *Stats { return ct.ts.stats }
func (ct *ConcurrentTree) Height() int  { return ct.ts.height }

// Insert implements spec.md §4.5's insert lock ordering: load the
// atomic fast-path snapshot, evaluate the fast-path test, and either
// latch the hot leaf directly or fall back to a latch-coupled descent.
func (ct *ConcurrentTree) Insert(k, v uint64) {
	snap := ct.fp.Load()
	if snap.qualifies(k, ct.ts.headID, ct.ts.tailID) {
		ct.ts.stats.fastHits.Add(1)
		ct.recordHit()
		if ct.fastInsert(snap, k, v) {
			return
		}
		ct.splitFastPath(k, v)
		return
	}

	ct.ts.stats.fastFails.Add(1)
	hardReset := ct.recordMiss()
	ct.insertMiss(k, v, hardReset)
}

func (ct *ConcurrentTree) recordHit() {
	ct.missMu.Lock()
	ct.miss.recordHit()
	ct.missMu.Unlock()
}

func (ct *ConcurrentTree) recordMiss() bool {
	ct.missMu.Lock()
	reset := ct.miss.recordMiss()
	ct.missMu.Unlock()
	return reset
}

// fastInsert latches the snapshot's leaf exclusively and re-reads the
// fast path under that latch: if it has moved off this leaf or no
// longer covers k, the insert goes through insertMiss instead.
// Otherwise it attempts an in-leaf insert and publishes the leaf's new
// population via a bounded CAS loop before releasing the latch.
// Returns false if the leaf was (or had become) full and a split is
// required.
func (ct *ConcurrentTree) fastInsert(snap *fastPath, k, v uint64) bool {
	ct.latches.Lock(snap.id)
	cur := ct.fp.Load()
	if cur.id != snap.id || !cur.qualifies(k, ct.ts.headID, ct.ts.tailID) {
		ct.latches.Unlock(snap.id)
		ct.insertMiss(k, v, false)
		return true
	}
	snap = cur
	leaf := AsLeaf(ct.ts.mgr.Open(snap.id))

	var idx int
	var found bool
	if snap.sorted {
		idx, found = leafLocate(leaf, true, k)
	} else {
		idx, found = leaf.FindUnsorted(k), false
		if idx >= 0 {
			found = true
		}
	}
	if found {
		leaf.SetValue(idx, v)
		ct.latches.Unlock(snap.id)
		return true
	}
	if leaf.Size() >= leafCapacity {
		ct.latches.Unlock(snap.id)
		return false
	}

	newSorted := true
	if ct.opts.LeafAppendsEnabled {
		leaf.AppendUnsorted(k, v)
		newSorted = false
	} else {
		leaf.InsertAt(idx, k, v)
	}
	ct.ts.stats.size.Add(1)
	newSize := leaf.Size()
	ct.publishFP(snap.id, func(cur *fastPath) fastPath {
		next := *cur
		next.size = newSize
		next.sorted = newSorted
		return next
	})
	ct.latches.Unlock(snap.id)
	return true
}

// publishFP re-loads the current snapshot and CASes in an update
// computed by update, retrying up to maxFastPathCASRetries times. If
// the fast path has moved to a different leaf id since the caller
// observed it, the update is simply skipped — someone else's split or
// hard reset has already superseded it. Exceeding the retry bound is
// treated as the structural bug spec.md §9 permits aborting on.
func (ct *ConcurrentTree) publishFP(expectID BlockID, update func(cur *fastPath) fastPath) {
	for attempt := 0; attempt < maxFastPathCASRetries; attempt++ {
		cur := ct.fp.Load()
		if cur.id != expectID {
			return
		}
		next := update(cur)
		if ct.fp.CompareAndSwap(cur, &next) {
			return
		}
	}
	panic(ErrCASRetriesExceeded)
}

// publishFPReplace installs next as the fast-path snapshot via the same
// bounded CAS loop publishFP uses. Each attempt CASes against a freshly
// loaded snapshot, so it always installs next: a snapshot another
// publisher installed just before is overwritten, not detected.
func (ct *ConcurrentTree) publishFPReplace(next fastPath) {
	for attempt := 0; attempt < maxFastPathCASRetries; attempt++ {
		cur := ct.fp.Load()
		if ct.fp.CompareAndSwap(cur, &next) {
			return
		}
	}
	panic(ErrCASRetriesExceeded)
}

// splitFastPath handles a fast-path hit whose leaf turned out to be
// full. It takes the pessimistic exclusive descent (latching every
// ancestor that might itself split) to get both the leaf latch and a
// safe path for propagateSeparator, then, if the leaf is still full,
// applies the same IQR split policy as QuITTree under the shadow lock,
// publishing the new fast path by CAS.
func (ct *ConcurrentTree) splitFastPath(k, v uint64) {
	path, leafID, lo, hi := ct.latches.DescendExclusivePessimistic(ct.ts, k)
	defer ct.latches.Unlock(leafID)
	defer ct.latches.ReleasePath(path)

	leaf := AsLeaf(ct.ts.mgr.Open(leafID))

	// Re-load the fast path rather than trusting the snapshot Insert
	// observed before this call: another thread may have already
	// hard-reset or split this same leaf between that lock-free read and
	// this latch acquisition, and only a fresh load sees it.
	if cur := ct.fp.Load(); cur.id == leafID && !cur.sorted && !leaf.IsSortedRange() {
		sortLeaf(leaf)
		ct.ts.stats.sortCount.Add(1)
	}

	idx, found := leafLocate(leaf, true, k)
	if found {
		leaf.SetValue(idx, v)
		return
	}
	if leaf.Size() < leafCapacity {
		leaf.InsertAt(idx, k, v)
		ct.ts.stats.size.Add(1)
		newSize := leaf.Size()
		ct.publishFP(leafID, func(cur *fastPath) fastPath {
			next := *cur
			next.size = newSize
			next.sorted = true
			return next
		})
		return
	}

	ct.splitFastLeaf(path, leafID, k, v, lo, hi, leaf)
}

// splitFastLeaf performs the IQR-driven split of an already-sorted,
// full leaf and publishes the resulting fast-path/shadow metadata. It
// assumes the caller already holds leafID's exclusive latch (and, if
// this split follows a hard reset, that the fast path has already been
// repointed at leafID by hardResetTo) so the fp/shadow state it reads
// genuinely describes the leaf being split — mirroring
// ConcurrentQuITBTree.hpp's insert(), which reassigns fp_id ahead of
// split_insert before ever computing a split position.
func (ct *ConcurrentTree) splitFastLeaf(path []pathStep, leafID BlockID, k, v, lo, hi uint64, leaf LeafNode) {
	ct.shadowMu.Lock()
	defer ct.shadowMu.Unlock()

	curFP := fastPath{id: leafID, min: lo, max: hi, size: leaf.Size(), sorted: true}
	splitPos, move := quitSplitPosition(curFP, ct.shadow, leaf, k)

	res := ct.ts.splitLeafAt(path, leafID, k, v, lo, hi, splitPos)

	if move {
		ct.shadow = shadowMeta{prevID: curFP.id, prevMin: curFP.min, prevSize: curFP.size}
		ct.publishFPReplace(fastPath{id: res.rightID, min: res.separator, max: res.rightHi, size: res.rightSize, sorted: true})
	} else {
		ct.publishFPReplace(fastPath{id: res.leftID, min: lo, max: res.separator, size: res.leftSize, sorted: true})
	}
}

// insertMiss is the non-fast-path fallback: a full pessimistic descent,
// an ordinary leaf insert or split, and an optional hard reset of the
// fast path. A full leaf that is (or is being reset to) the fast-path
// leaf is split through splitFastLeaf so the fast path is republished.
func (ct *ConcurrentTree) insertMiss(k, v uint64, hardReset bool) {
	path, leafID, lo, hi := ct.latches.DescendExclusivePessimistic(ct.ts, k)
	defer ct.latches.Unlock(leafID)
	defer ct.latches.ReleasePath(path)

	leaf := AsLeaf(ct.ts.mgr.Open(leafID))

	if snap := ct.fp.Load(); snap.id == leafID && !snap.sorted {
		sortLeaf(leaf)
		ct.ts.stats.sortCount.Add(1)
		ct.publishFP(leafID, func(cur *fastPath) fastPath {
			next := *cur
			next.sorted = true
			return next
		})
	}

	idx, found := leafLocate(leaf, true, k)
	if found {
		leaf.SetValue(idx, v)
		if hardReset {
			ct.hardResetTo(leafID, lo, hi, leaf.Size())
		}
		return
	}
	if leaf.Size() < leafCapacity {
		leaf.InsertAt(idx, k, v)
		ct.ts.stats.size.Add(1)
		if hardReset {
			ct.hardResetTo(leafID, lo, hi, leaf.Size())
		}
		return
	}

	if hardReset {
		ct.hardResetTo(leafID, lo, hi, leaf.Size())
		ct.splitFastLeaf(path, leafID, k, v, lo, hi, leaf)
		return
	}

	if ct.fp.Load().id == leafID {
		ct.splitFastLeaf(path, leafID, k, v, lo, hi, leaf)
		return
	}

	res := ct.ts.splitLeafAt(path, leafID, k, v, lo, hi, splitLeafPos)
	ct.maybeAdoptShadow(res)
}

func (ct *ConcurrentTree) maybeAdoptShadow(res splitResult) {
	ct.shadowMu.Lock()
	defer ct.shadowMu.Unlock()
	right := AsLeaf(ct.ts.mgr.Open(res.rightID))
	snap := ct.fp.Load()
	if right.NextID() == snap.id {
		ct.shadow = shadowMeta{prevID: res.rightID, prevMin: res.separator, prevSize: res.rightSize}
	}
}

// hardResetTo repoints the fast path at a freshly located leaf, sorting
// it first if needed, and carries the outgoing fast-path leaf into the
// shadow when it is the new leaf's immediate chain predecessor — the
// same adjacency check ConcurrentQuITBTree.hpp's insert() applies on
// every reset, not just ones followed by a split.
func (ct *ConcurrentTree) hardResetTo(id BlockID, lo, hi uint64, size int) {
	leaf := AsLeaf(ct.ts.mgr.Open(id))
	if !leaf.IsSortedRange() {
		sortLeaf(leaf)
		ct.ts.stats.sortCount.Add(1)
	}

	old := ct.fp.Load()
	ct.shadowMu.Lock()
	if old.id != ct.ts.tailID && lo == old.max {
		ct.shadow = shadowMeta{prevID: old.id, prevMin: old.min, prevSize: old.size}
	} else {
		ct.shadow = shadowMeta{prevID: InvalidBlockID}
	}
	ct.shadowMu.Unlock()

	ct.publishFPReplace(fastPath{id: id, min: lo, max: hi, size: size, sorted: true})
	ct.ts.stats.hardResets.Add(1)
}

// Get, Contains, Update, SelectK and Range use shared latch coupling
// (spec.md §4.5): lookups never block writers on other leaves.
func (ct *ConcurrentTree) Get(k uint64) (uint64, bool) {
	leafID := ct.latches.DescendShared(ct.ts, k)
	leaf := AsLeaf(ct.ts.mgr.Open(leafID))
	ct.ensureSortedLocked(leafID, leaf) // upgrades to exclusive only if unsorted
	idx, found := leafLocate(leaf, true, k)
	ct.latches.RUnlock(leafID)
	if !found {
		return 0, false
	}
	return leaf.Value(idx), true
}

func (ct *ConcurrentTree) Contains(k uint64) bool {
	_, ok := ct.Get(k)
	return ok
}

func (ct *ConcurrentTree) Update(k, v uint64) bool {
	leafID := ct.latches.DescendExclusiveOptimistic(ct.ts, k)
	defer ct.latches.Unlock(leafID)
	leaf := AsLeaf(ct.ts.mgr.Open(leafID))
	if !ct.leafIsSorted(leafID, leaf) {
		sortLeaf(leaf)
		ct.ts.stats.sortCount.Add(1)
		ct.publishFP(leafID, func(cur *fastPath) fastPath {
			next := *cur
			next.sorted = true
			return next
		})
	}
	idx, found := leafLocate(leaf, true, k)
	if !found {
		return false
	}
	leaf.SetValue(idx, v)
	return true
}

func (ct *ConcurrentTree) SelectK(count int, minK uint64) int {
	leafID := ct.latches.DescendShared(ct.ts, minK)
	visited, remaining := 0, count
	for {
		leaf := AsLeaf(ct.ts.mgr.Open(leafID))
		visited++
		remaining -= leaf.Size()
		if remaining <= 0 || leafID == ct.ts.tailID {
			ct.latches.RUnlock(leafID)
			return visited
		}
		next := leaf.NextID()
		if next == InvalidBlockID {
			ct.latches.RUnlock(leafID)
			return visited
		}
		ct.latches.RLock(next)
		ct.latches.RUnlock(leafID)
		leafID = next
	}
}

func (ct *ConcurrentTree) Range(minK, maxK uint64) int {
	leafID := ct.latches.DescendShared(ct.ts, minK)
	visited := 0
	for {
		leaf := AsLeaf(ct.ts.mgr.Open(leafID))
		ct.ensureSortedLocked(leafID, leaf)
		visited++
		size := leaf.Size()
		if (size > 0 && leaf.Key(size-1) >= maxK) || leafID == ct.ts.tailID {
			ct.latches.RUnlock(leafID)
			return visited
		}
		next := leaf.NextID()
		if next == InvalidBlockID {
			ct.latches.RUnlock(leafID)
			return visited
		}
		ct.latches.RLock(next)
		ct.latches.RUnlock(leafID)
		leafID = next
	}
}

// leafIsSorted reports whether leafID can be trusted as sorted without
// taking the fast-path's exclusive latch: true unless it is currently
// the (possibly unsorted) fast-path leaf.
func (ct *ConcurrentTree) leafIsSorted(leafID BlockID, leaf LeafNode) bool {
	snap := ct.fp.Load()
	if snap.id != leafID {
		return true
	}
	return snap.sorted
}

// ensureSortedLocked sorts leaf in place if it is the unsorted
// fast-path leaf. The caller holds leafID's shared latch; to sort, it
// releases that latch, takes the exclusive one, sorts, and returns
// with the shared latch held again. Get and Range call it before
// searching or reading the leaf's last key.
func (ct *ConcurrentTree) ensureSortedLocked(leafID BlockID, leaf LeafNode) {
	if ct.leafIsSorted(leafID, leaf) {
		return
	}
	ct.latches.RUnlock(leafID)
	ct.latches.Lock(leafID)
	if !leaf.IsSortedRange() {
		sortLeaf(leaf)
		ct.ts.stats.sortCount.Add(1)
		ct.publishFP(leafID, func(cur *fastPath) fastPath {
			next := *cur
			next.sorted = true
			return next
		})
	}
	ct.latches.Unlock(leafID)
	ct.latches.RLock(leafID)
}
