package main

import (
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/hotleaf/quit"
)

// workload drives the phase sequence spec.md §6 describes against one
// freshly constructed tree, timing each phase with time.Now/time.Since
// the way a benchmark harness without a dedicated profiling dependency
// naturally would (none of the retrieval pack carries one).
type workload struct {
	cfg     Config
	rng     *rand.Rand
	tree    *quit.ConcurrentTree
	latches *quit.LatchTable
	mgr     *quit.BlockManager
}

func newWorkload(cfg Config) *workload {
	mgr := quit.NewBlockManager(cfg.BlocksInMemory)
	latches := quit.NewLatchTable(cfg.BlocksInMemory)
	tree := quit.NewConcurrentTree(mgr, latches, quit.DefaultOptions())
	return &workload{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		tree:    tree,
		latches: latches,
		mgr:     mgr,
	}
}

// forEachThread fans work out across cfg.Threads goroutines, each
// handling a disjoint slice of [0,n), optionally pinned to a CPU.
func (w *workload) forEachThread(n int, fn func(lo, hi, tid int)) {
	threads := w.cfg.Threads
	if threads < 1 {
		threads = 1
	}
	if threads > n && n > 0 {
		threads = n
	}
	if threads == 0 {
		return
	}

	var wg sync.WaitGroup
	chunk := (n + threads - 1) / threads
	for t := 0; t < threads; t++ {
		lo := t * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(lo, hi, tid int) {
			defer wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			if err := pinCurrentGoroutine(tid % runtime.NumCPU()); err != nil {
				logVerbose(w.cfg, "pin thread %d: %v", tid, err)
			}
			fn(lo, hi, tid)
		}(lo, hi, t)
	}
	wg.Wait()
}

// run executes one full (preload, raw write, mixed, raw read, update,
// short/mid/long range) sequence against w's tree and returns the row
// to append to the results CSV. Because the tree is not rebuilt between
// calls, a run called again with the same or another file's keys finds
// the tree already populated from every prior call, so its preload
// phase exercises duplicate-key update paths rather than fresh inserts
// once the tree is warm — the REPEAT semantics SPEC_FULL.md §6 restores
// from original_source/'s tree_analysis.cpp driver.
func (w *workload) run(treeName, inputStem string, keyOffset int, keys []uint64) resultRow {
	n := len(keys)
	preloadN := n * (100 - w.cfg.RawWritesPercentage) / 100
	if preloadN > n {
		preloadN = n
	}
	rawWriteKeys := keys[preloadN:]
	loadKeys := keys[:preloadN]

	row := resultRow{TreeName: treeName, Threads: w.cfg.Threads, InputStem: inputStem, KeyOffset: keyOffset}

	logVerbose(w.cfg, "preload: %d keys", len(loadKeys))
	start := time.Now()
	w.forEachThread(len(loadKeys), func(lo, hi, tid int) {
		for i := lo; i < hi; i++ {
			w.tree.Insert(loadKeys[i], loadKeys[i])
		}
	})
	row.PreloadNS = time.Since(start).Nanoseconds()
	row.HasPreload = len(loadKeys) > 0

	if len(rawWriteKeys) > 0 {
		logVerbose(w.cfg, "raw write: %d keys", len(rawWriteKeys))
		start = time.Now()
		w.forEachThread(len(rawWriteKeys), func(lo, hi, tid int) {
			for i := lo; i < hi; i++ {
				w.tree.Insert(rawWriteKeys[i], rawWriteKeys[i])
			}
		})
		row.RawWriteNS = time.Since(start).Nanoseconds()
		row.HasRawWrite = true
	}

	w.runMixedPhase(&row, loadKeys)
	w.runRawReadPhase(&row, loadKeys)
	w.runUpdatePhase(&row, loadKeys)
	w.runRangePhase(&row, loadKeys)

	row.Size = w.tree.Stats().Size()
	row.Height = w.tree.Height()
	row.InternalCount = w.tree.Stats().InternalCount()
	row.LeafCount = w.tree.Stats().LeafCount()
	row.FastHits = w.tree.Stats().FastHits()
	row.RedistributeCount = w.tree.Stats().RedistributeCount()
	row.SoftResets = w.tree.Stats().SoftResets()
	row.HardResets = w.tree.Stats().HardResets()
	row.FastFails = w.tree.Stats().FastFails()
	row.SortCount = w.tree.Stats().SortCount()

	if w.cfg.Validate {
		w.validate(loadKeys)
	}

	return row
}

func (w *workload) runMixedPhase(row *resultRow, loadKeys []uint64) {
	writeN := len(loadKeys) * w.cfg.MixedWritesPercentage / 100
	readN := len(loadKeys) * w.cfg.MixedReadPercentage / 100
	if writeN == 0 && readN == 0 {
		return
	}
	logVerbose(w.cfg, "mixed: %d writes, %d reads", writeN, readN)

	var emptyLookups int64
	start := time.Now()
	w.forEachThread(writeN+readN, func(lo, hi, tid int) {
		localRng := rand.New(rand.NewSource(w.cfg.Seed + int64(tid) + 1))
		var misses int64
		for i := lo; i < hi; i++ {
			if i%2 == 0 {
				k := syntheticKey(w.cfg.Seed, i)
				w.tree.Insert(k, k)
			} else if len(loadKeys) > 0 {
				k := loadKeys[localRng.Intn(len(loadKeys))]
				if _, ok := w.tree.Get(k); !ok {
					misses++
				}
			}
		}
		atomicAdd(&emptyLookups, misses)
	})
	row.MixedNS = time.Since(start).Nanoseconds()
	row.MixedEmptyCt = emptyLookups
	row.HasMixed = true
}

func (w *workload) runRawReadPhase(row *resultRow, loadKeys []uint64) {
	readN := len(loadKeys) * w.cfg.RawReadsPercentage / 100
	if readN == 0 {
		return
	}
	logVerbose(w.cfg, "raw read: %d lookups", readN)
	start := time.Now()
	w.forEachThread(readN, func(lo, hi, tid int) {
		for i := lo; i < hi; i++ {
			w.tree.Get(loadKeys[i%len(loadKeys)])
		}
	})
	row.RawReadNS = time.Since(start).Nanoseconds()
	row.HasRawRead = true
}

func (w *workload) runUpdatePhase(row *resultRow, loadKeys []uint64) {
	updN := len(loadKeys) * w.cfg.UpdatesPercentage / 100
	if updN == 0 {
		return
	}
	logVerbose(w.cfg, "update: %d overwrites", updN)
	start := time.Now()
	w.forEachThread(updN, func(lo, hi, tid int) {
		for i := lo; i < hi; i++ {
			k := loadKeys[i%len(loadKeys)]
			w.tree.Update(k, ^k)
		}
	})
	row.UpdateNS = time.Since(start).Nanoseconds()
	row.HasUpdate = true
}

// runRangePhase issues the three range-query tiers spec.md §6 names,
// targeting result sets of 1/1000, 1/100, and 1/10 of the load size.
func (w *workload) runRangePhase(row *resultRow, loadKeys []uint64) {
	n := len(loadKeys)
	if n == 0 {
		return
	}
	runTier := func(count int, fraction int) (ns int64, avgAccesses float64) {
		if count == 0 {
			return 0, 0
		}
		span := n / fraction
		if span < 1 {
			span = 1
		}
		var totalAccesses int64
		start := time.Now()
		for i := 0; i < count; i++ {
			lo := loadKeys[w.rng.Intn(n)]
			hi := lo + uint64(span)
			totalAccesses += int64(w.tree.Range(lo, hi))
		}
		return time.Since(start).Nanoseconds(), float64(totalAccesses) / float64(count)
	}

	if w.cfg.ShortRangeQueries > 0 {
		row.ShortRangeNS, row.ShortRangeAcc = runTier(w.cfg.ShortRangeQueries, 1000)
		row.HasShortRange = true
	}
	if w.cfg.MidRangeQueries > 0 {
		row.MidRangeNS, row.MidRangeAcc = runTier(w.cfg.MidRangeQueries, 100)
		row.HasMidRange = true
	}
	if w.cfg.LongRangeQueries > 0 {
		row.LongRangeNS, row.LongRangeAcc = runTier(w.cfg.LongRangeQueries, 10)
		row.HasLongRange = true
	}
}

// validate issues contains() on every loaded key and logs any miss,
// per spec.md §6's VALIDATE knob.
func (w *workload) validate(loadKeys []uint64) {
	var misses int64
	for _, k := range loadKeys {
		if !w.tree.Contains(k) {
			misses++
		}
	}
	if misses > 0 {
		log.Printf("validate: %d keys missing after load", misses)
	}
}

// syntheticKey derives a reproducible key for the mixed phase's write
// half, disjoint from the loaded key space by construction (offset
// beyond any plausible input file size).
func syntheticKey(seed int64, i int) uint64 {
	return uint64(seed)*1_000_000_007 + uint64(i) + 1<<40
}
