// Command quitbench drives the phased insert/lookup/range workload
// spec.md §6 describes against the quit package's concurrent tree,
// reading keys from one or more input files and appending one result
// row per (tree, thread-count, input, key-offset) combination to a CSV.
package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

func main() {
	cfg := defaultConfig()
	inputs := parseFlags(&cfg, os.Args[1:])

	if cfg.ResultsLog != "" {
		f, err := os.OpenFile(cfg.ResultsLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if len(inputs) == 0 {
		log.Fatal("quitbench: no input key files given")
	}

	rw, err := openResultsWriter(cfg.ResultsFile)
	if err != nil {
		log.Fatal(err)
	}
	defer rw.Close()

	var files []inputFile
	for _, path := range inputs {
		keys, err := readKeyFile(cfg, path)
		if err != nil {
			log.Fatal(err)
		}
		if len(keys) == 0 {
			log.Printf("quitbench: %s: no keys, skipping", path)
			continue
		}
		files = append(files, inputFile{
			stem: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			keys: keys,
		})
	}

	runAll(cfg, rw, files)

	os.Exit(0)
}

type inputFile struct {
	stem string
	keys []uint64
}

// runAll runs cfg.Runs independent experiments, each against its own
// freshly built tree. Within a run, cfg.Repeat replays the full phase
// sequence over every input file against that same tree without
// rebuilding it, so later repeats land on a tree already populated by
// earlier ones — the RUNS/REPEAT split recovered from
// original_source/'s tree_analysis.cpp + executor.hpp driver per
// SPEC_FULL.md §6, where REPEAT is the inner loop over a warm tree and
// RUNS is the outer loop that starts over from empty.
func runAll(cfg Config, rw *resultsWriter, files []inputFile) {
	for run := 0; run < cfg.Runs; run++ {
		w := newWorkload(cfg)
		for rep := 0; rep < cfg.Repeat; rep++ {
			for _, f := range files {
				offset := run*cfg.Repeat + rep
				logVerbose(cfg, "run %d repeat %d on %s (%d keys)", run, rep, f.stem, len(f.keys))

				row := w.run("quit", f.stem, offset, f.keys)
				if err := rw.write(row); err != nil {
					log.Fatal(err)
				}
			}
		}
	}
}

func logVerbose(cfg Config, format string, args ...any) {
	if cfg.Verbose {
		log.Printf(format, args...)
	}
}

func atomicAdd(dst *int64, delta int64) {
	atomic.AddInt64(dst, delta)
}
