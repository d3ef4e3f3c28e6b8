package quit

import (
	"math/rand"
	"testing"
)

func newQuITTreeForTest(capacity int, opts Options) *QuITTree {
	mgr := NewBlockManager(capacity)
	return NewQuITTree(mgr, opts)
}

func TestQuITInsertGetRoundTrip(t *testing.T) {
	tree := newQuITTreeForTest(4096, DefaultOptions())
	const n = 10_000
	for k := uint64(1); k <= n; k++ {
		tree.Insert(k, k*2)
	}
	for k := uint64(1); k <= n; k++ {
		v, ok := tree.Get(k)
		if !ok || v != k*2 {
			t.Fatalf("Get(%d) = (%d,%v), want (%d,true)", k, v, ok, k*2)
		}
	}
	if tree.Contains(n + 1) {
		t.Errorf("Contains(%d) = true, want false", n+1)
	}
}

// TestQuITStrictAscendingMostlyHitsFastPath mirrors spec.md §8's first
// seed scenario: strictly ascending inserts should mostly land on the
// fast path, since each key is at least fp_min of the tail fast-path
// leaf, whose upper bound is open.
func TestQuITStrictAscendingMostlyHitsFastPath(t *testing.T) {
	tree := newQuITTreeForTest(4096, DefaultOptions())
	const n = 10_000
	for k := uint64(1); k <= n; k++ {
		tree.Insert(k, k)
	}
	if tree.Stats().Size() != n {
		t.Fatalf("Size() = %d, want %d", tree.Stats().Size(), n)
	}
	hits := tree.Stats().FastHits()
	fails := tree.Stats().FastFails()
	if hits+fails != n {
		t.Fatalf("fastHits(%d)+fastFails(%d) = %d, want %d", hits, fails, hits+fails, n)
	}
	// The overwhelming majority of a strictly ascending stream should
	// stay on the fast path; only the very first insert and whatever
	// transitions a split forces should miss.
	if float64(fails) > 0.05*float64(n) {
		t.Errorf("fastFails = %d, suspiciously high for strictly ascending input (%d total)", fails, n)
	}
	if tree.ts.headID == tree.ts.tailID {
		t.Error("head_id == tail_id after enough inserts to force splits")
	}
	if !tree.Contains(5_000) {
		t.Error("Contains(5000) = false, want true")
	}
	if tree.Contains(n + 1) {
		t.Error("Contains(10001) = true, want false")
	}
}

// TestQuITReverseMonotonicForcesHardResets mirrors spec.md §8's second
// seed scenario: a descending stream invalidates the fast path on
// nearly every insert, so hard_resets must eventually fire.
func TestQuITReverseMonotonicForcesHardResets(t *testing.T) {
	tree := newQuITTreeForTest(4096, DefaultOptions())
	const n = 10_000
	for k := uint64(n); k >= 1; k-- {
		tree.Insert(k, k)
	}
	if tree.Stats().Size() != n {
		t.Fatalf("Size() = %d, want %d", tree.Stats().Size(), n)
	}
	if tree.Stats().HardResets() == 0 {
		t.Error("hardResets = 0 for a fully descending insert stream")
	}
	keys := collectLeafChain(t, tree.ts.mgr, tree.ts.headID)
	if len(keys) != n {
		t.Fatalf("traversal visited %d keys, want %d", len(keys), n)
	}
	for i, k := range keys {
		if k != uint64(i+1) {
			t.Fatalf("key at position %d = %d, want %d", i, k, i+1)
		}
	}
}

func TestQuITUniformRandomPermutation(t *testing.T) {
	tree := newQuITTreeForTest(4096, DefaultOptions())
	const n = 10_000
	perm := rand.New(rand.NewSource(42)).Perm(n)
	for _, k := range perm {
		tree.Insert(uint64(k+1), uint64(k+1))
	}
	if tree.Stats().Size() != n {
		t.Fatalf("Size() = %d, want %d", tree.Stats().Size(), n)
	}
	keys := collectLeafChain(t, tree.ts.mgr, tree.ts.headID)
	if len(keys) != n {
		t.Fatalf("traversal visited %d keys, want %d", len(keys), n)
	}
	for i, k := range keys {
		if k != uint64(i+1) {
			t.Fatalf("key at position %d = %d, want %d", i, k, i+1)
		}
	}
}

// TestQuITBurstWithOutliersKeepsHotRangeFast mirrors spec.md §8's
// fourth seed scenario: a small ascending burst, then a wild outlier,
// then the burst's continuation, repeated. The IQR split policy should
// keep the hot small-key range mostly on the fast path throughout.
func TestQuITBurstWithOutliersKeepsHotRangeFast(t *testing.T) {
	tree := newQuITTreeForTest(4096, DefaultOptions())
	const bursts = 50
	var next uint64 = 1
	for b := 0; b < bursts; b++ {
		for i := 0; i < 100; i++ {
			tree.Insert(next, next)
			next++
		}
		tree.Insert(1_000_000+uint64(b), 0)
	}
	hits := tree.Stats().FastHits()
	fails := tree.Stats().FastFails()
	if hits == 0 {
		t.Fatal("fastHits = 0 across 50 bursts, IQR policy not keeping the hot range live")
	}
	if hits <= fails {
		t.Errorf("fastHits(%d) <= fastFails(%d), burst workload should favor the fast path", hits, fails)
	}
}

// TestQuITDuplicateKeyUpdates mirrors spec.md §8's fifth seed scenario.
func TestQuITDuplicateKeyUpdates(t *testing.T) {
	tree := newQuITTreeForTest(64, DefaultOptions())
	tree.Insert(7, 1)
	tree.Insert(7, 2)
	tree.Insert(7, 3)
	if tree.Stats().Size() != 1 {
		t.Errorf("Size() = %d, want 1", tree.Stats().Size())
	}
	if v, ok := tree.Get(7); !ok || v != 3 {
		t.Errorf("Get(7) = (%d,%v), want (3,true)", v, ok)
	}
}

func TestQuITAppendModeLeafStaysReadableUnsorted(t *testing.T) {
	tree := newQuITTreeForTest(4096, Options{LeafAppendsEnabled: true})
	keys := []uint64{50, 10, 90, 30, 70, 20, 60, 80, 40}
	for _, k := range keys {
		tree.Insert(k, k*2)
	}
	for _, k := range keys {
		v, ok := tree.Get(k)
		if !ok || v != k*2 {
			t.Fatalf("Get(%d) = (%d,%v), want (%d,true)", k, v, ok, k*2)
		}
	}
}

// TestQuITAppendModeStaysOrderedUnderRandomLoad drives enough random
// append-mode inserts to force multiple splits (and therefore several
// lazy re-sorts of the unsorted fast-path leaf, per spec.md §4.4.5)
// and checks the leaf chain still comes out fully ordered.
func TestQuITAppendModeStaysOrderedUnderRandomLoad(t *testing.T) {
	tree := newQuITTreeForTest(4096, Options{LeafAppendsEnabled: true})
	const n = 5_000
	perm := rand.New(rand.NewSource(7)).Perm(n)
	for _, k := range perm {
		tree.Insert(uint64(k+1), uint64(k+1))
	}
	if tree.Stats().Size() != n {
		t.Fatalf("Size() = %d, want %d", tree.Stats().Size(), n)
	}
	keys := collectLeafChain(t, tree.ts.mgr, tree.ts.headID)
	if len(keys) != n {
		t.Fatalf("traversal visited %d keys, want %d", len(keys), n)
	}
	for i, k := range keys {
		if k != uint64(i+1) {
			t.Fatalf("key at position %d = %d, want %d", i, k, i+1)
		}
	}
}
