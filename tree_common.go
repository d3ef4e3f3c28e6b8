package quit

// Options configures a QuIT tree. LIL (the baseline in tree_lil.go)
// takes no options — it exists purely as the reference implementation
// spec.md §4.3 describes.
type Options struct {
	// LeafAppendsEnabled turns on append-mode (spec.md §4.4): fast-path
	// inserts write to the next free slot instead of the sorted
	// position, deferring sorting until forced.
	LeafAppendsEnabled bool
}

func DefaultOptions() Options { return Options{} }

// pathStep records one hop of a root-to-leaf descent: the internal
// node visited and the child index taken, so a split can propagate a
// separator into exactly the right slot without re-searching.
type pathStep struct {
	nodeID   BlockID
	childIdx int
}

// treeState is the shared tree skeleton both the LIL and QuIT variants
// build on: block storage, chain bounds, height, and stats. Splitting
// this out (rather than duplicating descend/split/propagate in both
// tree_lil.go and tree_quit.go) mirrors how gdbx's cursor and
// cursor_modify share page/node primitives across read and write paths.
type treeState struct {
	mgr    *BlockManager
	rootID BlockID
	headID BlockID
	tailID BlockID
	height int
	stats  *Stats
}

func newTreeState(mgr *BlockManager) (*treeState, BlockID) {
	leafID, err := mgr.Allocate()
	if err != nil {
		panic(err) // arena exhausted before a tree could even start
	}
	leaf := AsLeaf(mgr.Open(leafID))
	leaf.init(kindLeaf, leafID)
	leaf.SetNextID(InvalidBlockID)

	ts := &treeState{
		mgr:    mgr,
		rootID: leafID,
		headID: leafID,
		tailID: leafID,
		height: 0,
		stats:  NewStats(),
	}
	ts.stats.leafCount.Add(1)
	return ts, leafID
}

// descend walks from the root to the leaf that should contain k,
// returning the ancestor path (topmost first) and the [lo, hi) bounds
// the leaf's subrange is known to satisfy.
func (ts *treeState) descend(k uint64) (path []pathStep, leafID BlockID, lo, hi uint64) {
	lo, hi = minKey, maxKey
	nodeID := ts.rootID
	for depth := 0; depth < ts.height; depth++ {
		node := AsInternal(ts.mgr.Open(nodeID))
		idx := node.ChildSlot(k)
		if idx > 0 {
			lo = node.Key(idx - 1)
		}
		if idx < node.Size() {
			hi = node.Key(idx)
		}
		path = append(path, pathStep{nodeID: nodeID, childIdx: idx})
		nodeID = node.Child(idx)
	}
	return path, nodeID, lo, hi
}

// leafLocate finds k's position in a leaf, sorting it first if it is
// unsorted (append-mode readers "take no chances on ordering" per
// spec.md §4.4.5 case (ii)).
func leafLocate(leaf LeafNode, sorted bool, k uint64) (idx int, found bool) {
	if !sorted {
		sortLeaf(leaf)
	}
	idx = leaf.ValueSlot(k)
	found = idx < leaf.Size() && leaf.Key(idx) == k
	return idx, found
}

// Get performs the standard descend-and-binary-search (spec.md §4.3).
func (ts *treeState) Get(k uint64, sortedHint func(BlockID) bool) (uint64, bool) {
	_, leafID, _, _ := ts.descend(k)
	leaf := AsLeaf(ts.mgr.Open(leafID))
	sorted := sortedHint == nil || sortedHint(leafID)
	idx, found := leafLocate(leaf, sorted, k)
	if !found {
		return 0, false
	}
	return leaf.Value(idx), true
}

// Contains is Get without materialising the value.
func (ts *treeState) Contains(k uint64, sortedHint func(BlockID) bool) bool {
	_, ok := ts.Get(k, sortedHint)
	return ok
}

// Update overwrites the value for an existing key, returning false if
// absent (spec.md §4.3).
func (ts *treeState) Update(k, v uint64, sortedHint func(BlockID) bool) bool {
	_, leafID, _, _ := ts.descend(k)
	leaf := AsLeaf(ts.mgr.Open(leafID))
	sorted := sortedHint == nil || sortedHint(leafID)
	idx, found := leafLocate(leaf, sorted, k)
	if !found {
		return false
	}
	leaf.SetValue(idx, v)
	return true
}

// SelectK locates the leaf containing min_k, counts count items forward
// across the leaf chain, and returns the number of leaf blocks visited
// (spec.md §4.3).
func (ts *treeState) SelectK(count int, minK uint64) int {
	_, leafID, _, _ := ts.descend(minK)
	visited := 0
	remaining := count
	for {
		leaf := AsLeaf(ts.mgr.Open(leafID))
		visited++
		remaining -= leaf.Size()
		if remaining <= 0 || leafID == ts.tailID {
			return visited
		}
		next := leaf.NextID()
		if next == InvalidBlockID {
			return visited
		}
		leafID = next
	}
}

// Range locates the leaf for minK, traverses until a leaf's maximum
// key >= maxK, and returns the leaf-block count (spec.md §4.3).
func (ts *treeState) Range(minK, maxK uint64) int {
	_, leafID, _, _ := ts.descend(minK)
	visited := 0
	for {
		leaf := AsLeaf(ts.mgr.Open(leafID))
		visited++
		size := leaf.Size()
		if size > 0 && leaf.Key(size-1) >= maxK {
			return visited
		}
		if leafID == ts.tailID {
			return visited
		}
		next := leaf.NextID()
		if next == InvalidBlockID {
			return visited
		}
		leafID = next
	}
}

// splitResult describes the structural outcome of splitting a leaf,
// independent of any fast-path bookkeeping.
type splitResult struct {
	leftID, rightID     BlockID
	leftSize, rightSize int
	separator           uint64
	leftLo, rightHi     uint64 // the two new leaves' outer bounds
}

// splitLeafAt performs the structural leaf split: allocate a right
// sibling, move entries [splitPos, oldSize) into it, insert the
// incoming (k,v) into whichever side its index falls in, splice the
// chain pointers, and propagate a separator up the ancestor path
// (splitting internal nodes as needed). lo/hi are the pre-split leaf's
// known bounds, from descend.
func (ts *treeState) splitLeafAt(path []pathStep, leafID BlockID, k, v uint64, lo, hi uint64, splitPos int) splitResult {
	leaf := AsLeaf(ts.mgr.Open(leafID))
	oldSize := leaf.Size()
	origSeparator := leaf.Key(splitPos) // captured before the move trims leaf

	rightID, err := ts.mgr.Allocate()
	if err != nil {
		panic(err)
	}
	right := AsLeaf(ts.mgr.Open(rightID))
	right.init(kindLeaf, rightID)

	for i := splitPos; i < oldSize; i++ {
		right.SetKey(i-splitPos, leaf.Key(i))
		right.SetValue(i-splitPos, leaf.Value(i))
	}
	right.SetSize(oldSize - splitPos)
	leaf.SetSize(splitPos)

	right.SetNextID(leaf.NextID())
	leaf.SetNextID(rightID)
	if leafID == ts.tailID {
		ts.tailID = rightID
	}
	ts.stats.leafCount.Add(1)
	ts.stats.redistributeCount.Add(1)

	if k < origSeparator {
		leaf.InsertAt(leaf.ValueSlot(k), k, v)
	} else {
		right.InsertAt(right.ValueSlot(k), k, v)
	}
	ts.stats.size.Add(1)

	separator := right.Key(0)
	leftSize, rightSize := leaf.Size(), right.Size()
	wasRoot := leafID == ts.rootID
	ts.propagateSeparator(path, leafID, rightID, separator)
	if wasRoot {
		// The root leaf's content now lives in a relocated block (the new
		// head); the root block itself has become an internal node.
		leafID = ts.headID
	}

	return splitResult{
		leftID: leafID, rightID: rightID,
		leftSize: leftSize, rightSize: rightSize,
		separator: separator,
		leftLo:    lo, rightHi: hi,
	}
}

// propagateSeparator inserts (separator, rightID) into the parent named
// by the last step of path. If the parent is full, the parent itself
// splits and the new separator propagates further up; if path is
// exhausted, a new root is created and height increases.
func (ts *treeState) propagateSeparator(path []pathStep, leftID, rightID BlockID, separator uint64) {
	for i := len(path) - 1; i >= 0; i-- {
		step := path[i]
		parent := AsInternal(ts.mgr.Open(step.nodeID))
		if parent.Size() < internalCapacity {
			parent.InsertSeparator(step.childIdx, separator, rightID)
			return
		}

		// Parent is full: split it too. step.nodeID is the left half
		// after the split, so it becomes the next iteration's leftID.
		newRightID, err := ts.mgr.Allocate()
		if err != nil {
			panic(err)
		}
		newRight := AsInternal(ts.mgr.Open(newRightID))
		newRight.init(kindInternal, newRightID)
		ts.stats.internalCount.Add(1)

		mid := (internalCapacity + 1) / 2
		// Insert (separator, rightID) into a logical view of parent
		// first, then split the combined array at mid.
		sep := ts.splitInternalWithInsert(parent, newRight, step.childIdx, separator, rightID, mid)

		leftID, rightID, separator = step.nodeID, newRightID, sep
	}

	// Ran out of ancestors: the root itself just split, and leftID is
	// that same root's block id (its content already holds the left
	// half). root_id is fixed for the life of the tree (spec.md §3), so
	// rather than reassign ts.rootID, relocate the root's current
	// content into a fresh block and rebuild the root in place as the
	// new top level — mirroring the original's create_new_root, which
	// copies the old root into a new left child and overwrites the
	// root block itself.
	leftCopyID, err := ts.mgr.Allocate()
	if err != nil {
		panic(err)
	}
	oldRoot := ts.mgr.Open(ts.rootID)
	leftCopy := ts.mgr.Open(leftCopyID)
	copy(leftCopy.Data, oldRoot.Data)
	leftCopy.setID(leftCopyID)
	if ts.headID == ts.rootID {
		ts.headID = leftCopyID
	}

	newRoot := AsInternal(ts.mgr.Open(ts.rootID))
	newRoot.init(kindInternal, ts.rootID)
	newRoot.SetSize(1)
	newRoot.SetKey(0, separator)
	newRoot.SetChild(0, leftCopyID)
	newRoot.SetChild(1, rightID)
	ts.stats.internalCount.Add(1)
	ts.height++
}

// splitInternalWithInsert inserts (separator, rightChild) at childIdx
// into parent's logical (size+1)-child array, then splits the combined
// size+1 keys / size+2 children at mid, leaving the left half in
// parent and moving the right half into newRight. Returns the
// separator that propagates to the grandparent.
func (ts *treeState) splitInternalWithInsert(parent, newRight InternalNode, childIdx int, separator uint64, rightChild BlockID, mid int) uint64 {
	oldSize := parent.Size()

	keys := make([]uint64, 0, oldSize+1)
	children := make([]BlockID, 0, oldSize+2)
	for i := 0; i < oldSize; i++ {
		keys = append(keys, parent.Key(i))
	}
	for i := 0; i <= oldSize; i++ {
		children = append(children, parent.Child(i))
	}
	// Insert separator at position childIdx, rightChild right after the
	// child it split from.
	keys = append(keys[:childIdx], append([]uint64{separator}, keys[childIdx:]...)...)
	children = append(children[:childIdx+1], append([]BlockID{rightChild}, children[childIdx+1:]...)...)

	upSeparator := keys[mid]

	parent.SetSize(mid)
	for i := 0; i < mid; i++ {
		parent.SetKey(i, keys[i])
	}
	for i := 0; i <= mid; i++ {
		parent.SetChild(i, children[i])
	}

	rightKeys := keys[mid+1:]
	rightChildren := children[mid+1:]
	newRight.SetSize(len(rightKeys))
	for i, kk := range rightKeys {
		newRight.SetKey(i, kk)
	}
	for i, c := range rightChildren {
		newRight.SetChild(i, c)
	}

	return upSeparator
}
