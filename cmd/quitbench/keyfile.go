package main

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
)

// readBinaryKeys reads a stream of fixed-width uint64s in host byte
// order, one key per element, length implied by file size (spec.md §6).
// Host order is exactly what's wanted here — unlike gdbx's on-disk
// endian_le.go/endian_be.go split, which canonicalizes to little-endian
// for cross-machine durability, there is nothing to canonicalize for a
// file consumed only on the machine that wrote it.
func readBinaryKeys(path string) ([]uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read binary key file %s", path)
	}
	if len(data)%8 != 0 {
		return nil, errors.Errorf("binary key file %s: size %d not a multiple of 8", path, len(data))
	}
	if len(data) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&data[0])), len(data)/8), nil
}

// readTextKeys reads one decimal integer per line, trailing whitespace
// tolerated (spec.md §6).
func readTextKeys(path string) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open text key file %s", path)
	}
	defer f.Close()

	var keys []uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "text key file %s: bad integer %q", path, line)
		}
		keys = append(keys, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan text key file %s", path)
	}
	return keys, nil
}

// readKeyFile dispatches on cfg.BinaryInput.
func readKeyFile(cfg Config, path string) ([]uint64, error) {
	if cfg.BinaryInput {
		return readBinaryKeys(path)
	}
	return readTextKeys(path)
}
