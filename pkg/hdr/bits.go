package hdr

import "math/bits"

// leadingZeros64 returns the number of leading zero bits in v, treating v as
// a 64-bit word. leadingZeros64(0) is defined as 64 (matching
// math/bits.LeadingZeros64), which routes the value 0 into bucket 0 after
// bucketIndex is clamped to >= 0. See geometry.go.
func leadingZeros64(v uint64) int {
	return bits.LeadingZeros64(v)
}
