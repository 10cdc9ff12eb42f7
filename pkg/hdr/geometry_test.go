package hdr

import "testing"

// P1: round-trip indexing.
func TestRoundTripIndexing(t *testing.T) {
	g := newGeometry(1, 3_600_000_000, 3)
	values := []int64{0, 1, 2, 99, 100, 101, 9999, 10000, 1_000_000, 3_600_000_000}
	for _, v := range values {
		low := g.lowestEquivalentValue(v)
		next := g.nextNonEquivalentValue(v)
		if !(low <= v && v < next) {
			t.Errorf("v=%d: want lowestEquivalentValue<=v<nextNonEquivalent, got low=%d next=%d", v, low, next)
		}
		b := g.bucketIndex(v)
		s := g.subBucketIndex(v, b)
		idx := g.countsIndex(b, s)
		if got := g.valueFromIndex(idx); got != low {
			t.Errorf("v=%d: valueFromIndex(countsIndex(...)) = %d, want lowestEquivalentValue = %d", v, got, low)
		}
	}
}

// P2: relative error bound. For v < 1/bound even a bin of width 1 exceeds
// the ratio, so those values must instead sit in unit-width (exact) bins.
func TestRelativeErrorBound(t *testing.T) {
	const digits = 3
	g := newGeometry(1, 3_600_000_000, digits)
	bound := 2.0
	for i := 0; i < digits; i++ {
		bound /= 10
	}
	for _, v := range []int64{1, 2, 1000, 1_000_000, 3_600_000_000} {
		rangeSize := g.sizeOfEquivalentValueRange(v)
		if float64(v)*bound < 1 {
			if rangeSize != 1 {
				t.Errorf("v=%d: sizeOfEquivalentValueRange = %d, want 1", v, rangeSize)
			}
			continue
		}
		if rel := float64(rangeSize) / float64(v); rel > bound {
			t.Errorf("v=%d: sizeOfEquivalentValueRange/v = %v, want <= %v", v, rel, bound)
		}
	}
}

func TestCountsArrayLengthCoversHighest(t *testing.T) {
	g := newGeometry(1, 3_600_000_000, 3)
	idx := g.countsIndexFor(3_600_000_000)
	if idx < 0 || idx >= g.countsArrayLength {
		t.Fatalf("countsIndexFor(highest) = %d, out of [0, %d)", idx, g.countsArrayLength)
	}
}

func TestLeadingZeros64(t *testing.T) {
	if got := leadingZeros64(0); got != 64 {
		t.Errorf("leadingZeros64(0) = %d, want 64", got)
	}
	if got := leadingZeros64(1); got != 63 {
		t.Errorf("leadingZeros64(1) = %d, want 63", got)
	}
}
