// Package quit implements an in-memory, block-structured B+Tree whose
// insert fast-path exploits local monotonicity in the key stream: a
// cached pointer to one "hot" leaf, tried first on every insert before
// falling back to a root-to-leaf descent.
//
// Two tree variants share the same block format:
//
//   - Tree (the LIL variant) caches only the last-inserted leaf and its
//     key range. It is single-threaded and serves as the reference
//     implementation for split/insert/lookup semantics.
//   - QuITTree extends Tree with IQR-driven split-position selection,
//     shadow metadata for the leaf preceding the fast-path leaf, and an
//     optional append-mode that defers in-leaf sorting.
//
// ConcurrentTree applies the QuIT fast-path and split policy under
// per-block latches and a latch-coupled traversal so multiple
// goroutines can insert, read, and split concurrently. It is a separate
// type; it does not wrap a Tree or QuITTree value.
//
// Basic usage:
//
//	mgr := quit.NewBlockManager(1 << 20)
//	tree := quit.NewQuITTree(mgr, quit.DefaultOptions())
//	tree.Insert(42, 100)
//	v, ok := tree.Get(42)
//	if !ok {
//	    log.Fatal("missing key")
//	}
//
// Durability, crash recovery, on-disk persistence, MVCC, deletion,
// secondary indexes, and variable-length keys are explicitly out of
// scope; keys and values are fixed-width uint64.
package quit
