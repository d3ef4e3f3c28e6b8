package main

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// resultRow is one output line: spec.md §6's "(tree-name, thread-count,
// input-file-stem, key-offset)" key plus whichever phase columns that
// combination actually exercised. A phase whose HasX flag is false
// keeps a zero duration and its columns are written blank.
type resultRow struct {
	TreeName      string
	Threads       int
	InputStem     string
	KeyOffset     int
	PreloadNS     int64
	RawWriteNS    int64
	MixedNS       int64
	MixedEmptyCt  int64
	RawReadNS     int64
	UpdateNS      int64
	ShortRangeNS  int64
	ShortRangeAcc float64
	MidRangeNS    int64
	MidRangeAcc   float64
	LongRangeNS   int64
	LongRangeAcc  float64

	Size              int64
	Height            int
	InternalCount     int64
	LeafCount         int64
	FastHits          int64
	RedistributeCount int64
	SoftResets        int64
	HardResets        int64
	FastFails         int64
	SortCount         int64

	// hasX flags record which optional phases actually ran, so their
	// columns can be elided per spec.md §6 ("elided when the
	// corresponding phase has zero work").
	HasPreload, HasRawWrite, HasMixed, HasRawRead, HasUpdate bool
	HasShortRange, HasMidRange, HasLongRange                bool
}

// csvHeader lists every column resultRow can emit, in spec.md §6's
// stated order. Columns for phases a given run skipped are left blank
// rather than physically removed from the row — encoding/csv requires
// every record to match the header's field count, and a sparse-but-
// aligned table is easier for downstream tooling to parse than a
// variable-width one.
var csvHeader = []string{
	"tree", "threads", "input", "key_offset",
	"preload_ns", "raw_write_ns",
	"mixed_ns", "mixed_empty_lookups",
	"raw_read_ns", "update_ns",
	"short_range_ns", "short_range_avg_accesses",
	"mid_range_ns", "mid_range_avg_accesses",
	"long_range_ns", "long_range_avg_accesses",
	"size", "height", "internal_count", "leaf_count",
	"fast_hits", "redistribute_count", "soft_resets", "hard_resets",
	"fast_fails", "sort_count",
}

// resultsWriter wraps an encoding/csv.Writer, writing the header once.
type resultsWriter struct {
	f *os.File
	w *csv.Writer
}

func openResultsWriter(path string) (*resultsWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create results file %s", path)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "write results header")
	}
	return &resultsWriter{f: f, w: w}, nil
}

func optNS(has bool, ns int64) string {
	if !has {
		return ""
	}
	return strconv.FormatInt(ns, 10)
}

func optFloat(has bool, v float64) string {
	if !has {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optInt(has bool, v int64) string {
	if !has {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func (rw *resultsWriter) write(r resultRow) error {
	record := []string{
		r.TreeName,
		strconv.Itoa(r.Threads),
		r.InputStem,
		strconv.Itoa(r.KeyOffset),
		optNS(r.HasPreload, r.PreloadNS),
		optNS(r.HasRawWrite, r.RawWriteNS),
		optNS(r.HasMixed, r.MixedNS),
		optInt(r.HasMixed, r.MixedEmptyCt),
		optNS(r.HasRawRead, r.RawReadNS),
		optNS(r.HasUpdate, r.UpdateNS),
		optNS(r.HasShortRange, r.ShortRangeNS),
		optFloat(r.HasShortRange, r.ShortRangeAcc),
		optNS(r.HasMidRange, r.MidRangeNS),
		optFloat(r.HasMidRange, r.MidRangeAcc),
		optNS(r.HasLongRange, r.LongRangeNS),
		optFloat(r.HasLongRange, r.LongRangeAcc),
		strconv.FormatInt(r.Size, 10),
		strconv.Itoa(r.Height),
		strconv.FormatInt(r.InternalCount, 10),
		strconv.FormatInt(r.LeafCount, 10),
		strconv.FormatInt(r.FastHits, 10),
		strconv.FormatInt(r.RedistributeCount, 10),
		strconv.FormatInt(r.SoftResets, 10),
		strconv.FormatInt(r.HardResets, 10),
		strconv.FormatInt(r.FastFails, 10),
		strconv.FormatInt(r.SortCount, 10),
	}
	if err := rw.w.Write(record); err != nil {
		return errors.Wrap(err, "write result row")
	}
	rw.w.Flush()
	return rw.w.Error()
}

func (rw *resultsWriter) Close() error {
	rw.w.Flush()
	return rw.f.Close()
}
