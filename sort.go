package quit

// sortLeaf sorts a leaf's (key, value) entries in place by ascending
// key, for append-mode leaves left unsorted by fast-path inserts
// (spec.md §4.4.5). It is introsort: quicksort with median-of-three
// pivot selection, falling back to heapsort once the recursion depth
// exceeds 2*floor(log2 n) — the spec's exact stated algorithm. Neither
// stability direction is required: keys are unique within a leaf
// (duplicates are updates, found by the insert paths' leafLocate or
// FindUnsorted lookup before a second copy could be written).
func sortLeaf(n LeafNode) {
	size := n.Size()
	if size < 2 {
		return
	}
	depthLimit := 2 * floorLog2(size)
	introsort(n, 0, size-1, depthLimit)
}

func floorLog2(n int) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

const insertionSortThreshold = 16

func introsort(n LeafNode, lo, hi, depthLimit int) {
	for hi-lo > insertionSortThreshold {
		if depthLimit == 0 {
			heapsort(n, lo, hi)
			return
		}
		depthLimit--
		p := medianOfThreePivot(n, lo, hi)
		p = partition(n, lo, hi, p)
		// Recurse into the smaller side, loop over the larger side, to
		// bound worst-case stack depth.
		if p-lo < hi-p {
			introsort(n, lo, p-1, depthLimit)
			lo = p + 1
		} else {
			introsort(n, p+1, hi, depthLimit)
			hi = p - 1
		}
	}
	insertionSort(n, lo, hi)
}

func medianOfThreePivot(n LeafNode, lo, hi int) int {
	mid := lo + (hi-lo)/2
	a, b, c := n.Key(lo), n.Key(mid), n.Key(hi)
	switch {
	case (a <= b && b <= c) || (c <= b && b <= a):
		return mid
	case (b <= a && a <= c) || (c <= a && a <= b):
		return lo
	default:
		return hi
	}
}

func partition(n LeafNode, lo, hi, pivotIdx int) int {
	n.swap(pivotIdx, hi)
	pivot := n.Key(hi)
	store := lo
	for i := lo; i < hi; i++ {
		if n.Key(i) < pivot {
			n.swap(i, store)
			store++
		}
	}
	n.swap(store, hi)
	return store
}

func insertionSort(n LeafNode, lo, hi int) {
	for i := lo + 1; i <= hi; i++ {
		for j := i; j > lo && n.Key(j) < n.Key(j-1); j-- {
			n.swap(j, j-1)
		}
	}
}

// heapsort is the depth-limit fallback, guaranteeing O(n log n)
// worst-case for the pathological inputs that degrade quicksort.
func heapsort(n LeafNode, lo, hi int) {
	size := hi - lo + 1
	for i := size/2 - 1; i >= 0; i-- {
		siftDown(n, lo, i, size)
	}
	for end := size - 1; end > 0; end-- {
		n.swap(lo, lo+end)
		siftDown(n, lo, 0, end)
	}
}

func siftDown(n LeafNode, base, root, size int) {
	for {
		child := 2*root + 1
		if child >= size {
			return
		}
		if child+1 < size && n.Key(base+child) < n.Key(base+child+1) {
			child++
		}
		if n.Key(base+root) >= n.Key(base+child) {
			return
		}
		n.swap(base+root, base+child)
		root = child
	}
}
