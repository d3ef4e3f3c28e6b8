package quit

import (
	"math/rand"
	"testing"
)

func TestSortLeafRandomPermutation(t *testing.T) {
	mgr := NewBlockManager(1)
	leaf := AsLeaf(mgr.Open(0))
	leaf.init(kindLeaf, 0)

	rng := rand.New(rand.NewSource(42))
	n := leafCapacity
	perm := rng.Perm(n)
	for i, k := range perm {
		leaf.AppendUnsorted(uint64(k), uint64(i))
	}

	sortLeaf(leaf)

	if !leaf.IsSortedRange() {
		t.Fatal("leaf not sorted after sortLeaf")
	}
	for i := 0; i < n; i++ {
		if leaf.Key(i) != uint64(i) {
			t.Fatalf("Key(%d) = %d, want %d", i, leaf.Key(i), i)
		}
	}
}

func TestSortLeafAlreadySortedIsNoop(t *testing.T) {
	mgr := NewBlockManager(1)
	leaf := AsLeaf(mgr.Open(0))
	leaf.init(kindLeaf, 0)
	for i := 0; i < 40; i++ {
		leaf.AppendUnsorted(uint64(i), uint64(i))
	}
	sortLeaf(leaf)
	for i := 0; i < 40; i++ {
		if leaf.Key(i) != uint64(i) {
			t.Fatalf("Key(%d) = %d, want %d", i, leaf.Key(i), i)
		}
	}
}

func TestSortLeafTriggersHeapsortFallback(t *testing.T) {
	// A small leaf with a depth limit of zero forces heapsort on the
	// very first introsort call, exercising the fallback path directly
	// rather than hoping an adversarial input degrades quicksort.
	mgr := NewBlockManager(1)
	leaf := AsLeaf(mgr.Open(0))
	leaf.init(kindLeaf, 0)
	n := insertionSortThreshold + 10
	rng := rand.New(rand.NewSource(7))
	for i, k := range rng.Perm(n) {
		leaf.AppendUnsorted(uint64(k), uint64(i))
	}
	introsort(leaf, 0, leaf.Size()-1, 0)
	for i := 1; i < leaf.Size(); i++ {
		if leaf.Key(i-1) > leaf.Key(i) {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestFloorLog2(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 1, 4: 2, 7: 2, 8: 3, 1023: 9, 1024: 10}
	for n, want := range cases {
		if got := floorLog2(n); got != want {
			t.Errorf("floorLog2(%d) = %d, want %d", n, got, want)
		}
	}
}
