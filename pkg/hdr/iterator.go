package hdr

import "math"

// Strategy selects which of the five iteration strategies spec section 4.9
// names an Iterator walks with. DESIGN NOTES calls for "a sum type over
// {all, recorded, linear, log, percentile}" rather than the reference's
// iterator/rIterator/pIterator embedding hierarchy
// (cockroachdb-cockroach__hdr.go); this type plus Iterator.next's switch is
// that sum type.
type Strategy int

const (
	AllValues Strategy = iota
	RecordedValues
	LinearBucket
	LogarithmicBucket
	Percentile
)

// Iterator walks a Histogram's counts array under one of the five
// strategies, emitting the eight-field step spec section 4.9 describes.
// Each field is exported directly on the Iterator so callers read it after
// a successful Next().
type Iterator struct {
	h        *Histogram
	strategy Strategy

	// raw cursor over (bucketIdx, subBucketIdx)
	bucketIdx, subBucketIdx int32
	rawDone                 bool

	prevHighest int64 // one past the last emitted ValueIteratedTo

	// linear/log accumulation state
	nextThreshold float64 // next upper bound (exclusive start of next bin)
	step          int64   // linear step
	logFirst      float64
	logExponent   float64
	emittedAny    bool

	// percentile state
	ticksPerHalfDistance   int32
	percentileToIterateTo  float64
	seenLast               bool

	ValueIteratedTo           int64
	ValueIteratedFrom         int64
	CountAtValueIteratedTo    int64
	CountAddedInThisStep      int64
	TotalCountToThisValue     int64
	TotalValueToThisValue     int64
	Percentile           float64
	PercentileLevelIteratedTo float64
}

func newIterator(h *Histogram, strategy Strategy) *Iterator {
	return &Iterator{h: h, strategy: strategy, subBucketIdx: -1}
}

// NewAllValuesIterator visits every bucket, empty or not, in index order.
func (h *Histogram) NewAllValuesIterator() *Iterator { return newIterator(h, AllValues) }

// NewRecordedValuesIterator visits only buckets with a non-zero count.
func (h *Histogram) NewRecordedValuesIterator() *Iterator { return newIterator(h, RecordedValues) }

// NewLinearBucketIterator emits one step per multiple of step, covering all
// recorded data.
func (h *Histogram) NewLinearBucketIterator(step int64) *Iterator {
	it := newIterator(h, LinearBucket)
	it.step = step
	it.nextThreshold = float64(step)
	return it
}

// NewLogarithmicBucketIterator emits steps at firstStep, firstStep*exponent,
// firstStep*exponent^2, ... covering all recorded data.
func (h *Histogram) NewLogarithmicBucketIterator(firstStep float64, exponent float64) *Iterator {
	it := newIterator(h, LogarithmicBucket)
	it.logFirst = firstStep
	it.logExponent = exponent
	it.nextThreshold = firstStep
	return it
}

// NewPercentileIterator emits a step at each percentile tick, with
// ticksPerHalfDistance controlling resolution as the percentile approaches
// 100 (spec section 4.9).
func (h *Histogram) NewPercentileIterator(ticksPerHalfDistance int32) *Iterator {
	it := newIterator(h, Percentile)
	it.ticksPerHalfDistance = ticksPerHalfDistance
	return it
}

// nextRaw advances the low-level cursor by one counts-array slot, returning
// the bucket's representative value and count, or ok=false once the array
// is exhausted. Mirrors cockroachdb-cockroach__hdr.go's iterator.next.
func (it *Iterator) nextRaw() (value, count int64, ok bool) {
	if it.rawDone {
		return 0, 0, false
	}
	g := it.h.geometry
	subBucketIdx := it.subBucketIdx + 1
	bucketIdx := it.bucketIdx
	if subBucketIdx >= g.subBucketCount {
		subBucketIdx = g.subBucketHalfCount
		bucketIdx++
	}
	if bucketIdx >= g.bucketCount {
		it.rawDone = true
		return 0, 0, false
	}
	it.bucketIdx, it.subBucketIdx = bucketIdx, subBucketIdx
	idx := g.countsIndex(bucketIdx, subBucketIdx)
	count = it.h.counts.get(idx)
	value = g.valueFromBucket(bucketIdx, subBucketIdx)
	return value, count, true
}

func (it *Iterator) emit(value, countThisStep int64) {
	g := it.h.geometry
	it.ValueIteratedFrom = it.prevHighest
	it.ValueIteratedTo = g.highestEquivalentValue(value)
	it.CountAtValueIteratedTo = countThisStep
	it.CountAddedInThisStep = countThisStep
	it.TotalCountToThisValue += countThisStep
	it.TotalValueToThisValue += countThisStep * g.medianEquivalentValue(value)
	if it.h.totalCount > 0 {
		it.Percentile = 100.0 * float64(it.TotalCountToThisValue) / float64(it.h.totalCount)
	}
	it.prevHighest = it.ValueIteratedTo + 1
	it.emittedAny = true
}

// Next advances the iterator. It returns false once iteration is complete.
func (it *Iterator) Next() bool {
	switch it.strategy {
	case AllValues:
		return it.nextAllValues()
	case RecordedValues:
		return it.nextRecordedValues()
	case LinearBucket:
		return it.nextLinear()
	case LogarithmicBucket:
		return it.nextLogarithmic()
	case Percentile:
		return it.nextPercentile()
	default:
		return false
	}
}

func (it *Iterator) nextAllValues() bool {
	v, c, ok := it.nextRaw()
	if !ok {
		return false
	}
	it.emit(v, c)
	return true
}

func (it *Iterator) nextRecordedValues() bool {
	for {
		v, c, ok := it.nextRaw()
		if !ok {
			return false
		}
		if c != 0 {
			it.emit(v, c)
			return true
		}
	}
}

// accumulatingStep drives both LinearBucket and LogarithmicBucket: raw
// counts-array steps are pulled and summed until a step's
// highestEquivalentValue reaches or passes the current threshold, at which
// point one aggregated entry is emitted and the threshold advances.
// advance computes the next threshold from the current one.
func (it *Iterator) accumulatingStep(advance func(float64) float64) bool {
	if it.rawDone {
		return false
	}

	var accumCount int64
	var accumValue int64
	var lastValue int64
	sawAny := false

	for {
		if it.rawDone {
			break
		}
		v, c, ok := it.nextRaw()
		if !ok {
			break
		}
		sawAny = true
		accumCount += c
		accumValue += c * it.h.medianEquivalentValue(v)
		lastValue = v
		if float64(it.h.highestEquivalentValue(v)) >= it.nextThreshold-1 {
			break
		}
	}

	if !sawAny {
		// raw array exhausted with nothing left to fold into this bin.
		return false
	}

	it.ValueIteratedFrom = it.prevHighest
	it.ValueIteratedTo = int64(it.nextThreshold) - 1
	if it.rawDone {
		// last bin: report the true highest equivalent value actually seen,
		// rather than a threshold that may run past the tracked range.
		it.ValueIteratedTo = it.h.highestEquivalentValue(lastValue)
	}
	it.CountAtValueIteratedTo = accumCount
	it.CountAddedInThisStep = accumCount
	it.TotalCountToThisValue += accumCount
	it.TotalValueToThisValue += accumValue
	if it.h.totalCount > 0 {
		it.Percentile = 100.0 * float64(it.TotalCountToThisValue) / float64(it.h.totalCount)
	}
	it.prevHighest = it.ValueIteratedTo + 1
	it.emittedAny = true
	it.nextThreshold = advance(it.nextThreshold)
	return true
}

func (it *Iterator) nextLinear() bool {
	return it.accumulatingStep(func(cur float64) float64 { return cur + float64(it.step) })
}

func (it *Iterator) nextLogarithmic() bool {
	return it.accumulatingStep(func(cur float64) float64 { return cur * it.logExponent })
}

// nextPercentile ports cockroachdb-cockroach__hdr.go's pIterator almost
// directly: walk raw values until the cumulative percentile reaches the
// next reporting tick, emit, and geometrically shrink the remaining gap to
// 100% by doubling the tick density every halving of the distance to 100.
func (it *Iterator) nextPercentile() bool {
	if it.h.totalCount == 0 {
		return false
	}
	if it.TotalCountToThisValue >= it.h.totalCount {
		if it.seenLast {
			return false
		}
		it.seenLast = true
		it.PercentileLevelIteratedTo = 100
		return true
	}

	for {
		v, c, ok := it.nextRaw()
		if !ok {
			return false
		}
		if c == 0 {
			continue
		}
		it.emit(v, c)
		currentPercentile := 100.0 * float64(it.TotalCountToThisValue) / float64(it.h.totalCount)
		if it.percentileToIterateTo <= currentPercentile {
			it.PercentileLevelIteratedTo = it.percentileToIterateTo
			halfDistance := math.Trunc(math.Pow(2, math.Trunc(math.Log2(100.0/(100.0-it.percentileToIterateTo)))+1))
			ticks := float64(it.ticksPerHalfDistance) * halfDistance
			it.percentileToIterateTo += 100.0 / ticks
			return true
		}
	}
}
