package quit

import "unsafe"

// putU64/getU64 and friends read and write fixed-width integers directly
// into a block's byte slice using host byte order. Unlike an on-disk
// format, nothing here is ever persisted or shared across machines, so
// there is no need for the little/big-endian canonicalization gdbx's
// on-disk page format requires (gdbx/endian_le.go, gdbx/endian_be.go) —
// a single unsafe pointer cast is both simpler and correct for an
// in-memory-only structure.

//go:nosplit
func putU64(b []byte, v uint64) {
	*(*uint64)(unsafe.Pointer(&b[0])) = v
}

//go:nosplit
func getU64(b []byte) uint64 {
	return *(*uint64)(unsafe.Pointer(&b[0]))
}

//go:nosplit
func putU32(b []byte, v uint32) {
	*(*uint32)(unsafe.Pointer(&b[0])) = v
}

//go:nosplit
func getU32(b []byte) uint32 {
	return *(*uint32)(unsafe.Pointer(&b[0]))
}

//go:nosplit
func putU8(b []byte, v uint8) {
	b[0] = v
}

//go:nosplit
func getU8(b []byte) uint8 {
	return b[0]
}
