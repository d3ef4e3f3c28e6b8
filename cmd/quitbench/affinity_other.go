//go:build !unix

package main

// pinCurrentGoroutine is a no-op on platforms without a SchedSetaffinity
// syscall (mirroring gdbx/mmap/mmap_windows.go's platform split — a
// different API shape there, but the same "not every OS needs this"
// justification for stubbing rather than failing).
func pinCurrentGoroutine(cpu int) error {
	return nil
}
