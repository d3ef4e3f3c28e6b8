package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Config mirrors every option spec.md §6's table names, with defaults
// chosen to exercise every phase of workload.go on a small run.
type Config struct {
	BlocksInMemory int

	RawReadsPercentage    int
	RawWritesPercentage   int
	MixedWritesPercentage int
	MixedReadPercentage   int
	UpdatesPercentage     int

	ShortRangeQueries int
	MidRangeQueries   int
	LongRangeQueries  int

	Runs    int
	Repeat  int
	Seed    int64
	Threads int

	ResultsFile string
	ResultsLog  string

	BinaryInput bool
	Validate    bool
	Verbose     bool
}

func defaultConfig() Config {
	return Config{
		BlocksInMemory:        1 << 20,
		RawReadsPercentage:    10,
		RawWritesPercentage:  10,
		MixedWritesPercentage: 10,
		MixedReadPercentage:   10,
		UpdatesPercentage:     10,
		ShortRangeQueries:     100,
		MidRangeQueries:       10,
		LongRangeQueries:      1,
		Runs:                  1,
		Repeat:                1,
		Seed:                  42,
		Threads:               1,
		ResultsFile:           "results.csv",
		ResultsLog:            "",
		BinaryInput:           false,
		Validate:              false,
		Verbose:               false,
	}
}

// loadConfigFile parses a key=value file, one assignment per line,
// lines starting with '#' ignored. Unrecognised keys log a diagnostic
// and are skipped, per spec.md §6.
func loadConfigFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			log.Printf("quitbench: ignoring malformed config line %q", line)
			continue
		}
		applyKnob(cfg, strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]))
	}
	return errors.Wrap(scanner.Err(), "scan config")
}

func applyKnob(cfg *Config, key, value string) {
	switch key {
	case "BLOCKS_IN_MEMORY":
		cfg.BlocksInMemory = atoiOr(key, value, cfg.BlocksInMemory)
	case "RAW_READS_PERCENTAGE":
		cfg.RawReadsPercentage = atoiOr(key, value, cfg.RawReadsPercentage)
	case "RAW_WRITES_PERCENTAGE":
		cfg.RawWritesPercentage = atoiOr(key, value, cfg.RawWritesPercentage)
	case "MIXED_WRITES_PERCENTAGE":
		cfg.MixedWritesPercentage = atoiOr(key, value, cfg.MixedWritesPercentage)
	case "MIXED_READ_PERCENTAGE":
		cfg.MixedReadPercentage = atoiOr(key, value, cfg.MixedReadPercentage)
	case "UPDATES_PERCENTAGE":
		cfg.UpdatesPercentage = atoiOr(key, value, cfg.UpdatesPercentage)
	case "SHORT_RANGE_QUERIES":
		cfg.ShortRangeQueries = atoiOr(key, value, cfg.ShortRangeQueries)
	case "MID_RANGE_QUERIES":
		cfg.MidRangeQueries = atoiOr(key, value, cfg.MidRangeQueries)
	case "LONG_RANGE_QUERIES":
		cfg.LongRangeQueries = atoiOr(key, value, cfg.LongRangeQueries)
	case "RUNS":
		cfg.Runs = atoiOr(key, value, cfg.Runs)
	case "REPEAT":
		cfg.Repeat = atoiOr(key, value, cfg.Repeat)
	case "SEED":
		cfg.Seed = int64(atoiOr(key, value, int(cfg.Seed)))
	case "NUM_THREADS":
		cfg.Threads = atoiOr(key, value, cfg.Threads)
	case "RESULTS_FILE":
		cfg.ResultsFile = value
	case "RESULTS_LOG":
		cfg.ResultsLog = value
	case "BINARY_INPUT":
		cfg.BinaryInput = boolOr(key, value, cfg.BinaryInput)
	case "VALIDATE":
		cfg.Validate = boolOr(key, value, cfg.Validate)
	case "VERBOSE":
		cfg.Verbose = boolOr(key, value, cfg.Verbose)
	default:
		log.Printf("quitbench: unrecognised config key %q, ignoring", key)
	}
}

func atoiOr(key, value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("quitbench: bad integer for %s=%q, keeping %d", key, value, fallback)
		return fallback
	}
	return n
}

func boolOr(key, value string, fallback bool) bool {
	switch value {
	case "true":
		return true
	case "false":
		return false
	default:
		log.Printf("quitbench: bad boolean for %s=%q, keeping %v", key, value, fallback)
		return fallback
	}
}

// parseFlags registers every Config field as a flag.FlagSet flag, so
// command-line values override anything loaded from a config file, and
// returns the positional arguments left over (input file paths).
func parseFlags(cfg *Config, args []string) []string {
	fs := flag.NewFlagSet("quitbench", flag.ExitOnError)

	fs.IntVar(&cfg.BlocksInMemory, "blocks-in-memory", cfg.BlocksInMemory, "block manager arena size")
	fs.IntVar(&cfg.RawReadsPercentage, "raw-reads-percentage", cfg.RawReadsPercentage, "percentage of inserts issued as lookups after load")
	fs.IntVar(&cfg.RawWritesPercentage, "raw-writes-percentage", cfg.RawWritesPercentage, "percentage of data reserved for post-load writes")
	fs.IntVar(&cfg.MixedWritesPercentage, "mixed-writes-percentage", cfg.MixedWritesPercentage, "size of the interleaved write phase")
	fs.IntVar(&cfg.MixedReadPercentage, "mixed-read-percentage", cfg.MixedReadPercentage, "size of the interleaved read phase")
	fs.IntVar(&cfg.UpdatesPercentage, "updates-percentage", cfg.UpdatesPercentage, "number of value-overwrite operations")
	fs.IntVar(&cfg.ShortRangeQueries, "short-range-queries", cfg.ShortRangeQueries, "count of 1/1000-sized range scans")
	fs.IntVar(&cfg.MidRangeQueries, "mid-range-queries", cfg.MidRangeQueries, "count of 1/100-sized range scans")
	fs.IntVar(&cfg.LongRangeQueries, "long-range-queries", cfg.LongRangeQueries, "count of 1/10-sized range scans")
	fs.IntVar(&cfg.Runs, "runs", cfg.Runs, "benchmark replication count")
	fs.IntVar(&cfg.Repeat, "repeat", cfg.Repeat, "phase-sequence repeat count per run")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "RNG seed")
	fs.IntVar(&cfg.Threads, "num-threads", cfg.Threads, "worker-pool size")
	fs.StringVar(&cfg.ResultsFile, "results-file", cfg.ResultsFile, "output CSV path")
	fs.StringVar(&cfg.ResultsLog, "results-log", cfg.ResultsLog, "log output path")
	fs.BoolVar(&cfg.BinaryInput, "binary-input", cfg.BinaryInput, "parse input as fixed-width binary keys")
	fs.BoolVar(&cfg.Validate, "validate", cfg.Validate, "contains() every inserted key after each run")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable per-phase log output")
	configPath := fs.String("config", "", "key=value config file")

	fs.Parse(args)

	if *configPath != "" {
		// A -config flag is loaded first, then the rest of the already-
		// parsed flags win, matching spec.md §6's "flags override file
		// values" — re-parse so explicit flags re-apply on top.
		if err := loadConfigFile(cfg, *configPath); err != nil {
			log.Fatal(err)
		}
		fs.Parse(args)
	}

	return fs.Args()
}
