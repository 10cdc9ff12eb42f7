package hdr

import "math"

// geometry holds the immutable layout derived from (lowest, highest,
// significantDigits). Every index computation in this package is a pure
// function of these fields, so two histograms with equal geometry always
// agree on countsIndex for every value in range (spec section 4.1).
//
// The derivation mirrors the reference construction in
// cockroachdb-cockroach__hdr.go's New, generalized to track
// bucketIndexOffset explicitly (spec section 3) instead of recomputing the
// leading-zero count relative to unitMagnitude on every lookup.
type geometry struct {
	lowest           int64
	highest          int64
	significantDigits int64

	unitMagnitude               int32
	subBucketCountMagnitude     int32
	subBucketHalfCountMagnitude int32
	subBucketCount              int32
	subBucketHalfCount          int32
	subBucketMask               int64
	bucketIndexOffset           int32
	bucketCount                 int32
	countsArrayLength           int32
}

// newGeometry derives a geometry from construction parameters. Callers
// must validate lowest/highest/significantDigits bounds before calling;
// New does that and returns argument-invalid otherwise.
func newGeometry(lowest, highest int64, significantDigits int) geometry {
	largestValueWithSingleUnitResolution := 2 * math.Pow10(significantDigits)

	subBucketCountMagnitude := int32(math.Ceil(math.Log2(largestValueWithSingleUnitResolution)))
	subBucketHalfCountMagnitude := subBucketCountMagnitude
	if subBucketHalfCountMagnitude < 2 {
		subBucketHalfCountMagnitude = 2
	}
	subBucketHalfCountMagnitude--

	unitMagnitude := int32(math.Floor(math.Log2(float64(lowest))))

	subBucketCount := int32(1) << uint(subBucketHalfCountMagnitude+1)
	subBucketHalfCount := subBucketCount / 2
	subBucketMask := int64(subBucketCount-1) << uint(unitMagnitude)

	bucketIndexOffset := int32(64) - unitMagnitude - (subBucketHalfCountMagnitude + 1)

	bucketCount := bucketsNeeded(unitMagnitude, subBucketCount, highest)
	countsArrayLength := (bucketCount + 1) * subBucketHalfCount

	return geometry{
		lowest:                      lowest,
		highest:                     highest,
		significantDigits:           int64(significantDigits),
		unitMagnitude:               unitMagnitude,
		subBucketCountMagnitude:     subBucketCountMagnitude,
		subBucketHalfCountMagnitude: subBucketHalfCountMagnitude,
		subBucketCount:              subBucketCount,
		subBucketHalfCount:          subBucketHalfCount,
		subBucketMask:               subBucketMask,
		bucketIndexOffset:           bucketIndexOffset,
		bucketCount:                 bucketCount,
		countsArrayLength:           countsArrayLength,
	}
}

// bucketsNeeded returns the smallest b >= 1 such that
// ((subBucketCount-1) << unitMagnitude) << (b-1) >= highest.
func bucketsNeeded(unitMagnitude int32, subBucketCount int32, highest int64) int32 {
	trackable := int64(subBucketCount-1) << uint(unitMagnitude)
	count := int32(1)
	for trackable < highest {
		if trackable > (1<<63-1)/2 {
			return count + 1
		}
		trackable <<= 1
		count++
	}
	return count
}

// bucketIndex implements spec section 3's
// bucketIndex(v) = bucketIndexOffset - leadingZeros(v | subBucketMask).
func (g geometry) bucketIndex(v int64) int32 {
	return g.bucketIndexOffset - int32(leadingZeros64(uint64(v)|uint64(g.subBucketMask)))
}

// subBucketIndex implements subBucketIndex(v, b) = v >> (b + unitMagnitude).
func (g geometry) subBucketIndex(v int64, bucketIdx int32) int32 {
	return int32(v >> uint(bucketIdx+g.unitMagnitude))
}

// countsIndex implements countsIndex(b, s) = ((b+1) << subBucketHalfCountMagnitude) + (s - subBucketHalfCount).
func (g geometry) countsIndex(bucketIdx, subBucketIdx int32) int32 {
	bucketBaseIdx := (bucketIdx + 1) << uint(g.subBucketHalfCountMagnitude)
	return bucketBaseIdx + subBucketIdx - g.subBucketHalfCount
}

// countsIndexFor combines bucketIndex/subBucketIndex/countsIndex for a raw
// value. Returns an index that may fall outside [0, countsArrayLength) if v
// is out of range; callers check bounds (see RecordValueWithCount).
func (g geometry) countsIndexFor(v int64) int32 {
	b := g.bucketIndex(v)
	s := g.subBucketIndex(v, b)
	return g.countsIndex(b, s)
}

// valueFromIndex is the inverse of countsIndex: given a counts-array index,
// returns the lowest value that maps to it (spec section 3).
func (g geometry) valueFromIndex(idx int32) int64 {
	bucketIdx := (idx >> uint(g.subBucketHalfCountMagnitude)) - 1
	subBucketIdx := (idx & (g.subBucketHalfCount - 1)) + g.subBucketHalfCount
	if bucketIdx < 0 {
		subBucketIdx -= g.subBucketHalfCount
		bucketIdx = 0
	}
	return int64(subBucketIdx) << uint(int64(bucketIdx)+int64(g.unitMagnitude))
}

// valueFromBucket is the non-inverse form used by iterators that already
// know (bucketIdx, subBucketIdx) without needing to recover them from a
// linear index.
func (g geometry) valueFromBucket(bucketIdx, subBucketIdx int32) int64 {
	return int64(subBucketIdx) << uint(int64(bucketIdx)+int64(g.unitMagnitude))
}

// sizeOfEquivalentValueRange implements spec invariant I2: the bin width
// covering v, i.e. 1 << (unitMagnitude + adjustedBucketIndex). The
// adjustment below is the open question from spec section 9: when v's
// sub-bucket index computed against bucketIdx already falls at or past
// subBucketCount, v actually belongs to the next bucket up (each bucket's
// sub-bucket index for values in its top half re-appears, doubled, as the
// bottom half of the next bucket), so the bin width must use bucketIdx+1.
func (g geometry) sizeOfEquivalentValueRange(v int64) int64 {
	bucketIdx := g.bucketIndex(v)
	subBucketIdx := g.subBucketIndex(v, bucketIdx)
	adjustedBucket := bucketIdx
	if subBucketIdx >= g.subBucketCount {
		adjustedBucket++
	}
	return int64(1) << uint(int64(g.unitMagnitude)+int64(adjustedBucket))
}

func (g geometry) lowestEquivalentValue(v int64) int64 {
	bucketIdx := g.bucketIndex(v)
	subBucketIdx := g.subBucketIndex(v, bucketIdx)
	return g.valueFromBucket(bucketIdx, subBucketIdx)
}

func (g geometry) nextNonEquivalentValue(v int64) int64 {
	return g.lowestEquivalentValue(v) + g.sizeOfEquivalentValueRange(v)
}

func (g geometry) highestEquivalentValue(v int64) int64 {
	return g.nextNonEquivalentValue(v) - 1
}

func (g geometry) medianEquivalentValue(v int64) int64 {
	return g.lowestEquivalentValue(v) + (g.sizeOfEquivalentValueRange(v) >> 1)
}
