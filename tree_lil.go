package quit

// Tree is the baseline, single-threaded B+Tree of spec.md §4.3: the LIL
// ("last inserted leaf") variant. It caches only the most recently
// touched leaf and its bounds — no shadow metadata, no outlier-driven
// split position, no append-mode. It exists as the reference semantics
// every other variant's behaviour is checked against.
type Tree struct {
	ts *treeState

	lilID  BlockID
	lilMin uint64
	lilMax uint64
}

// NewTree constructs a LIL tree backed by mgr. mgr must be freshly
// reset or otherwise not shared with another live tree, per spec.md
// §9's "parameterize the tree over the block manager" guidance.
func NewTree(mgr *BlockManager) *Tree {
	ts, leafID := newTreeState(mgr)
	return &Tree{ts: ts, lilID: leafID, lilMin: minKey, lilMax: maxKey}
}

func (t *Tree) Stats() *Stats { return t.ts.stats }
func (t *Tree) Height() int  { return t.ts.height }

// Insert places (k, v). A duplicate key overwrites its value without
// incrementing the size counter (spec.md §8's idempotence property).
func (t *Tree) Insert(k, v uint64) {
	if t.lilMin <= k && k < t.lilMax {
		leaf := AsLeaf(t.ts.mgr.Open(t.lilID))
		if idx, found := leafLocate(leaf, true, k); found {
			leaf.SetValue(idx, v)
			return
		}
		if leaf.Size() < leafCapacity {
			leaf.InsertAt(leaf.ValueSlot(k), k, v)
			t.ts.stats.size.Add(1)
			return
		}
		// Cached leaf is full: fall back to a full descent so a split
		// has an ancestor path to propagate its separator through.
	}
	t.insertSlow(k, v)
}

func (t *Tree) insertSlow(k, v uint64) {
	path, leafID, lo, hi := t.ts.descend(k)
	leaf := AsLeaf(t.ts.mgr.Open(leafID))
	idx, found := leafLocate(leaf, true, k)
	if found {
		leaf.SetValue(idx, v)
		t.lilID, t.lilMin, t.lilMax = leafID, lo, hi
		return
	}
	if leaf.Size() < leafCapacity {
		leaf.InsertAt(idx, k, v)
		t.ts.stats.size.Add(1)
		t.lilID, t.lilMin, t.lilMax = leafID, lo, hi
		return
	}

	// Split policy (spec.md §4.3): fixed split position, right-sibling
	// allocation, separator spliced into the collected path. The cache
	// re-points at whichever side absorbed the incoming key.
	res := t.ts.splitLeafAt(path, leafID, k, v, lo, hi, splitLeafPos)
	if k < res.separator {
		t.lilID, t.lilMin, t.lilMax = res.leftID, res.leftLo, res.separator
	} else {
		t.lilID, t.lilMin, t.lilMax = res.rightID, res.separator, res.rightHi
	}
}

func (t *Tree) Get(k uint64) (uint64, bool) { return t.ts.Get(k, nil) }
func (t *Tree) Contains(k uint64) bool      { return t.ts.Contains(k, nil) }
func (t *Tree) Update(k, v uint64) bool     { return t.ts.Update(k, v, nil) }

func (t *Tree) SelectK(count int, minK uint64) int { return t.ts.SelectK(count, minK) }
func (t *Tree) Range(minK, maxK uint64) int        { return t.ts.Range(minK, maxK) }
