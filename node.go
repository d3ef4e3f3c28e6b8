package quit

// Node layout reinterprets a Block's bytes as either an internal or leaf
// node: header, then a fixed-offset key array, then a fixed-offset
// child (internal) or value (leaf) array. Offsets are constants derived
// from blockHeaderSize and the node kind's capacity, the same "typed
// accessor over raw block bytes" technique as gdbx/page.go's pageHeader
// aliasing — simplified here because every entry is fixed-width, so
// there is no per-entry offset table, no compaction, and no variable
// node size to track.

const (
	internalKeysOff     = blockHeaderSize
	internalChildrenOff = internalKeysOff + internalCapacity*keyWidth

	leafKeysOff   = blockHeaderSize
	leafValuesOff = leafKeysOff + leafCapacity*keyWidth
)

// InternalNode views a Block as a branch node: `size` separator keys and
// `size+1` child block ids. The subtree rooted at children[i] holds keys
// k such that (i>0 => keys[i-1]<=k) and (i<size => k<keys[i]).
type InternalNode struct{ Block }

func AsInternal(b Block) InternalNode { return InternalNode{b} }

func (n InternalNode) Size() int     { return n.size() }
func (n InternalNode) SetSize(s int) { n.setSize(s) }

func (n InternalNode) Key(i int) uint64 {
	return getU64(n.Data[internalKeysOff+i*keyWidth:])
}

func (n InternalNode) SetKey(i int, k uint64) {
	putU64(n.Data[internalKeysOff+i*keyWidth:], k)
}

func (n InternalNode) Child(i int) BlockID {
	return getU32(n.Data[internalChildrenOff+i*childWidth:])
}

func (n InternalNode) SetChild(i int, id BlockID) {
	putU32(n.Data[internalChildrenOff+i*childWidth:], id)
}

// ChildSlot performs the binary search spec.md §4.2 describes: the
// smallest index i such that k < keys[i] (upper_bound), so that an
// equal key routes to the right subtree. Returns size if k is >= every
// separator (route into the rightmost child).
func (n InternalNode) ChildSlot(k uint64) int {
	size := n.Size()
	lo, hi := 0, size
	for lo < hi {
		mid := (lo + hi) / 2
		if k < n.Key(mid) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// InsertSeparator inserts a new separator key and its right child at
// position idx, shifting later keys/children right by one. Caller must
// ensure Size() < internalCapacity before calling.
func (n InternalNode) InsertSeparator(idx int, key uint64, rightChild BlockID) {
	size := n.Size()
	for i := size; i > idx; i-- {
		n.SetKey(i, n.Key(i-1))
	}
	for i := size + 1; i > idx+1; i-- {
		n.SetChild(i, n.Child(i-1))
	}
	n.SetKey(idx, key)
	n.SetChild(idx+1, rightChild)
	n.SetSize(size + 1)
}

// LeafNode views a Block as a leaf node: `size` (key, value) pairs plus
// a NextID link to the next leaf in ascending key order. Unless
// append-mode left it unsorted, entries [0,size) are sorted by key.
type LeafNode struct{ Block }

func AsLeaf(b Block) LeafNode { return LeafNode{b} }

func (n LeafNode) Size() int     { return n.size() }
func (n LeafNode) SetSize(s int) { n.setSize(s) }

func (n LeafNode) NextID() BlockID      { return n.nextID() }
func (n LeafNode) SetNextID(id BlockID) { n.setNextID(id) }

func (n LeafNode) Key(i int) uint64 {
	return getU64(n.Data[leafKeysOff+i*keyWidth:])
}

func (n LeafNode) SetKey(i int, k uint64) {
	putU64(n.Data[leafKeysOff+i*keyWidth:], k)
}

func (n LeafNode) Value(i int) uint64 {
	return getU64(n.Data[leafValuesOff+i*valueWidth:])
}

func (n LeafNode) SetValue(i int, v uint64) {
	putU64(n.Data[leafValuesOff+i*valueWidth:], v)
}

func (n LeafNode) swap(i, j int) {
	ki, kj := n.Key(i), n.Key(j)
	vi, vj := n.Value(i), n.Value(j)
	n.SetKey(i, kj)
	n.SetKey(j, ki)
	n.SetValue(i, vj)
	n.SetValue(j, vi)
}

// ValueSlot performs the lower_bound binary search spec.md §4.2
// describes: the position where k would appear, or already appears.
// Assumes the leaf is currently sorted; callers in append-mode must
// sort first (see sort.go).
func (n LeafNode) ValueSlot(k uint64) int {
	size := n.Size()
	lo, hi := 0, size
	for lo < hi {
		mid := (lo + hi) / 2
		if n.Key(mid) < k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// ValueSlot2 is the cheap linear-scan variant spec.md §4.2 and §4.4.2
// describe: it returns the index of the first entry whose key exceeds
// threshold, i.e. how many entries fall at or below the outlier
// threshold. Assumes the leaf is sorted (the QuIT split path sorts an
// append-mode leaf before computing an outlier position, per spec.md
// §4.4.5 case (iii)).
func (n LeafNode) ValueSlot2(threshold uint64) int {
	size := n.Size()
	i := 0
	for i < size && n.Key(i) <= threshold {
		i++
	}
	return i
}

// InsertAt inserts (k, v) at position idx, shifting later entries right.
// Caller must ensure Size() < leafCapacity.
func (n LeafNode) InsertAt(idx int, k, v uint64) {
	size := n.Size()
	for i := size; i > idx; i-- {
		n.SetKey(i, n.Key(i-1))
		n.SetValue(i, n.Value(i-1))
	}
	n.SetKey(idx, k)
	n.SetValue(idx, v)
	n.SetSize(size + 1)
}

// FindUnsorted linearly scans an unsorted (append-mode) leaf for k,
// returning its index or -1. Binary search is unsafe on a leaf whose
// fp_sorted bit is false (spec.md §4.4.5).
func (n LeafNode) FindUnsorted(k uint64) int {
	size := n.Size()
	for i := 0; i < size; i++ {
		if n.Key(i) == k {
			return i
		}
	}
	return -1
}

// AppendUnsorted writes (k, v) to the next free slot regardless of
// order, for append-mode fast-path inserts (spec.md §4.4.3). The caller
// is responsible for marking the leaf's fp_sorted bit false.
func (n LeafNode) AppendUnsorted(k, v uint64) {
	size := n.Size()
	n.SetKey(size, k)
	n.SetValue(size, v)
	n.SetSize(size + 1)
}

// IsSortedRange reports whether entries [0,size) are in ascending key
// order, used by read paths that take no chances on append-mode leaves
// (spec.md §4.4.5 case (ii)).
func (n LeafNode) IsSortedRange() bool {
	size := n.Size()
	for i := 1; i < size; i++ {
		if n.Key(i) < n.Key(i-1) {
			return false
		}
	}
	return true
}
