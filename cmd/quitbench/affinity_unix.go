//go:build unix

package main

import "golang.org/x/sys/unix"

// pinCurrentGoroutine pins the calling OS thread to a single CPU, the
// same golang.org/x/sys/unix surface gdbx's mmap/mmap_unix.go uses for
// its own unix-only syscalls, re-wired from mmap to scheduler affinity.
// The caller must have already called runtime.LockOSThread.
func pinCurrentGoroutine(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
