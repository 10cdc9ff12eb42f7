// Package hdr implements the core of an HDR (High Dynamic Range) histogram:
// a fixed-memory structure that records a stream of non-negative integer
// samples and answers quantile queries with a bounded relative error.
//
// The bucket/sub-bucket encoding, counter-width storage, single-writer
// histogram, and iteration strategies live here. The concurrent,
// multi-writer variant lives in pkg/hdr/concurrent; wire encoding lives in
// pkg/hdrcodec; text log framing lives in pkg/hdrlog.
package hdr

import (
	"math"

	"github.com/zeebo/errs/v2"
)

// Histogram is a single-writer HDR histogram. It is not safe for
// concurrent use by multiple goroutines without external synchronization;
// see pkg/hdr/concurrent for the wait-free multi-writer variant.
type Histogram struct {
	geometry
	width  CounterWidth
	counts counts

	totalCount int64

	startTimestamp int64
	endTimestamp   int64
	tag            string
	instanceID     uint64
	hasInstanceID  bool
}

// Option configures optional metadata at construction (spec section 6).
type Option func(*Histogram)

// WithCounterWidth selects a fixed or atomic counter width. Width64 is the
// default.
func WithCounterWidth(w CounterWidth) Option {
	return func(h *Histogram) { h.width = w }
}

// WithTag attaches a tag string carried through log-stream persistence.
func WithTag(tag string) Option {
	return func(h *Histogram) { h.tag = tag }
}

// WithInstanceID attaches an instance identifier carried in metadata; it
// never affects counting.
func WithInstanceID(id uint64) Option {
	return func(h *Histogram) { h.instanceID, h.hasInstanceID = id, true }
}

// New constructs a Histogram tracking values in [0, highest] with the
// requested relative-error target. lowest must be >= 1, highest >=
// 2*lowest, and significantDigits in [0, 5]; violating any of these
// returns argument-invalid.
func New(lowest, highest int64, significantDigits int, opts ...Option) (*Histogram, error) {
	if lowest < 1 {
		return nil, errs.Errorf("%w: lowestTrackableValue must be >= 1, got %d", ErrArgumentInvalid, lowest)
	}
	if highest < 2*lowest {
		return nil, errs.Errorf("%w: highestTrackableValue must be >= 2*lowest (%d), got %d", ErrArgumentInvalid, 2*lowest, highest)
	}
	if significantDigits < 0 || significantDigits > 5 {
		return nil, errs.Errorf("%w: numberOfSignificantValueDigits must be in [0,5], got %d", ErrArgumentInvalid, significantDigits)
	}

	g := newGeometry(lowest, highest, significantDigits)
	h := &Histogram{
		geometry: g,
		width:    Width64,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.counts = newCounts(h.width, g.countsArrayLength)
	return h, nil
}

// LowestTrackableValue returns the smallest distinguishable positive value
// requested at construction. Recording still accepts any value in
// [0, HighestTrackableValue].
func (h *Histogram) LowestTrackableValue() int64 { return h.lowest }

// HighestTrackableValue returns the upper bound on values that may be
// recorded.
func (h *Histogram) HighestTrackableValue() int64 { return h.highest }

// SignificantFigures returns the significant-digit precision requested at
// construction.
func (h *Histogram) SignificantFigures() int64 { return h.significantDigits }

// CountsArrayLength returns the length of the underlying counts array.
func (h *Histogram) CountsArrayLength() int32 { return h.countsArrayLength }

// TotalCount returns the number of values recorded so far.
func (h *Histogram) TotalCount() int64 { return h.totalCount }

func (h *Histogram) Tag() string       { return h.tag }
func (h *Histogram) SetTag(tag string) { h.tag = tag }

// InstanceID returns the instance identifier and whether one was set.
func (h *Histogram) InstanceID() (uint64, bool) { return h.instanceID, h.hasInstanceID }

func (h *Histogram) StartTimestamp() int64     { return h.startTimestamp }
func (h *Histogram) SetStartTimestamp(t int64) { h.startTimestamp = t }
func (h *Histogram) EndTimestamp() int64       { return h.endTimestamp }
func (h *Histogram) SetEndTimestamp(t int64)   { h.endTimestamp = t }

// ByteSize estimates the histogram's in-memory footprint in bytes,
// excluding slice-header overhead. Grounded on
// cockroachdb-cockroach__hdr.go's ByteSize.
func (h *Histogram) ByteSize() int {
	width := 8
	switch h.width {
	case Width32:
		width = 4
	case Width16:
		width = 2
	}
	return 96 + int(h.countsArrayLength)*width
}

// RecordValue records one occurrence of v. It fails with value-out-of-range
// if v is negative or exceeds HighestTrackableValue, or counter-overflow if
// the target counter would exceed its representable range.
func (h *Histogram) RecordValue(v int64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v.
func (h *Histogram) RecordValueWithCount(v, n int64) error {
	if v < 0 || v > h.highest {
		return errs.Errorf("%w: value %d outside [0, %d]", ErrValueOutOfRange, v, h.highest)
	}
	if n < 0 {
		return errs.Errorf("%w: count %d must be >= 0", ErrArgumentInvalid, n)
	}
	idx := h.countsIndexFor(v)
	if idx < 0 || idx >= h.counts.length() {
		return errs.Errorf("%w: value %d maps outside the counts array", ErrValueOutOfRange, v)
	}
	if n == 0 {
		return nil
	}
	if err := h.counts.add(idx, n); err != nil {
		return err
	}
	h.totalCount += n
	return nil
}

// RecordValueWithExpectedInterval records v and, to correct for
// coordinated omission, an additional unit at every v-k*expected that is
// still >= expected, for k = 1, 2, ... (spec section 4.3).
func (h *Histogram) RecordValueWithExpectedInterval(v, expected int64) error {
	return h.recordValueWithCountAndExpectedInterval(v, 1, expected)
}

func (h *Histogram) recordValueWithCountAndExpectedInterval(v, n, expected int64) error {
	if err := h.RecordValueWithCount(v, n); err != nil {
		return err
	}
	if expected <= 0 || v <= expected {
		return nil
	}
	for missing := v - expected; missing >= expected; missing -= expected {
		if err := h.RecordValueWithCount(missing, n); err != nil {
			return err
		}
	}
	return nil
}

// sameGeometry reports whether h and o would compute identical countsIndex
// values for every input, i.e. their derived layouts are equal.
func (h *Histogram) sameGeometry(o *Histogram) bool {
	return h.geometry == o.geometry
}

// Add merges other's recorded values into h. other.HighestTrackableValue()
// must be <= h.HighestTrackableValue(); violating that returns
// geometry-mismatch (spec section 4.3).
func (h *Histogram) Add(other *Histogram) error {
	if other.highest > h.highest {
		return errs.Errorf("%w: source highest %d exceeds destination highest %d", ErrGeometryMismatch, other.highest, h.highest)
	}
	if h.sameGeometry(other) {
		n := h.counts.length()
		for i := int32(0); i < n; i++ {
			d := other.counts.get(i)
			if d == 0 {
				continue
			}
			if err := h.counts.add(i, d); err != nil {
				return err
			}
			h.totalCount += d
		}
		return nil
	}
	it := other.NewRecordedValuesIterator()
	for it.Next() {
		v := other.medianEquivalentValue(it.ValueIteratedTo)
		if err := h.RecordValueWithCount(v, it.CountAtValueIteratedTo); err != nil {
			return err
		}
	}
	return nil
}

// Subtract removes other's recorded values from h. Fails with underflow,
// leaving h unchanged, if any resulting counter would go negative.
func (h *Histogram) Subtract(other *Histogram) error {
	if other.highest > h.highest {
		return errs.Errorf("%w: source highest %d exceeds destination highest %d", ErrGeometryMismatch, other.highest, h.highest)
	}

	if h.sameGeometry(other) {
		n := h.counts.length()
		for i := int32(0); i < n; i++ {
			d := other.counts.get(i)
			if d == 0 {
				continue
			}
			if h.counts.get(i)-d < 0 {
				return errs.Errorf("%w: counter %d would go negative", ErrUnderflow, i)
			}
		}
		for i := int32(0); i < n; i++ {
			d := other.counts.get(i)
			if d == 0 {
				continue
			}
			if err := h.counts.add(i, -d); err != nil {
				return err
			}
			h.totalCount -= d
		}
		return nil
	}

	deltas := make(map[int32]int64)
	it := other.NewRecordedValuesIterator()
	for it.Next() {
		v := other.medianEquivalentValue(it.ValueIteratedTo)
		idx := h.countsIndexFor(v)
		if idx < 0 || idx >= h.counts.length() {
			return errs.Errorf("%w: value %d maps outside the counts array", ErrValueOutOfRange, v)
		}
		deltas[idx] += it.CountAtValueIteratedTo
	}
	for idx, d := range deltas {
		if h.counts.get(idx)-d < 0 {
			return errs.Errorf("%w: counter %d would go negative", ErrUnderflow, idx)
		}
	}
	for idx, d := range deltas {
		if err := h.counts.add(idx, -d); err != nil {
			return err
		}
		h.totalCount -= d
	}
	return nil
}

// LoadCounts overwrites h's counters and totalCount from a raw,
// logical-index-ordered counts array of length CountsArrayLength. It is
// used by pkg/hdr/concurrent's Recorder to install an interval snapshot
// and by pkg/hdrcodec after decoding a wire payload; ordinary callers
// should use RecordValue* instead.
func (h *Histogram) LoadCounts(vs []int64, totalCount int64) error {
	if int32(len(vs)) != h.countsArrayLength {
		return errs.Errorf("%w: counts array has %d entries, geometry expects %d", ErrCodecCorrupt, len(vs), h.countsArrayLength)
	}
	h.counts.loadFrom(vs)
	h.totalCount = totalCount
	return nil
}

// Reset clears all counts, totalCount, and the start/end timestamps.
func (h *Histogram) Reset() {
	h.counts.clear()
	h.totalCount = 0
	h.startTimestamp = 0
	h.endTimestamp = 0
}

// Copy returns a deep copy with identical geometry, counters, and
// metadata.
func (h *Histogram) Copy() *Histogram {
	out := &Histogram{
		geometry:       h.geometry,
		width:          h.width,
		counts:         newCounts(h.width, h.countsArrayLength),
		totalCount:     h.totalCount,
		startTimestamp: h.startTimestamp,
		endTimestamp:   h.endTimestamp,
		tag:            h.tag,
		instanceID:     h.instanceID,
		hasInstanceID:  h.hasInstanceID,
	}
	out.counts.loadFrom(h.counts.snapshot())
	return out
}

// CopyCorrectedForCoordinatedOmission returns a new histogram where every
// recorded value v with count n becomes n records at v plus n records at
// each v-k*expected >= expected (spec section 4.3). Applying this to a
// histogram that only ever recorded raw (uncorrected) values yields the
// same result as recording those same raw values directly with
// RecordValueWithExpectedInterval(v, expected) (P10).
func (h *Histogram) CopyCorrectedForCoordinatedOmission(expected int64) *Histogram {
	out := h.Copy()
	out.Reset()
	it := h.NewRecordedValuesIterator()
	for it.Next() {
		v := h.medianEquivalentValue(it.ValueIteratedTo)
		_ = out.recordValueWithCountAndExpectedInterval(v, it.CountAtValueIteratedTo, expected)
	}
	return out
}

// GetCountAtValue returns the count recorded at v's equivalent range.
func (h *Histogram) GetCountAtValue(v int64) int64 {
	idx := h.countsIndexFor(v)
	if idx < 0 || idx >= h.counts.length() {
		return 0
	}
	return h.counts.get(idx)
}

// GetCountBetweenValues sums counts for every equivalent range overlapping
// [lo, hi].
func (h *Histogram) GetCountBetweenValues(lo, hi int64) int64 {
	var total int64
	it := h.NewAllValuesIterator()
	for it.Next() {
		if it.ValueIteratedTo >= lo && it.ValueIteratedFrom <= hi {
			total += it.CountAtValueIteratedTo
		}
	}
	return total
}

// GetValueAtPercentile returns the largest value that (100-percentile)% of
// recorded entries are larger than or equivalent to (spec section 4.3).
func (h *Histogram) GetValueAtPercentile(percentile float64) int64 {
	if h.totalCount == 0 {
		return 0
	}
	if percentile > 100 {
		percentile = 100
	}
	if percentile < 0 {
		percentile = 0
	}
	target := int64(math.Ceil((percentile / 100.0) * float64(h.totalCount)))
	if target < 1 {
		target = 1
	}

	var running int64
	n := h.counts.length()
	for i := int32(0); i < n; i++ {
		running += h.counts.get(i)
		if running >= target {
			v := h.valueFromIndex(i)
			if percentile == 0.0 {
				return h.lowestEquivalentValue(v)
			}
			return h.highestEquivalentValue(v)
		}
	}
	return h.GetMax()
}

// GetMean returns the approximate arithmetic mean of recorded values.
func (h *Histogram) GetMean() float64 {
	if h.totalCount == 0 {
		return 0
	}
	var total int64
	it := h.NewRecordedValuesIterator()
	for it.Next() {
		total += it.CountAtValueIteratedTo * h.medianEquivalentValue(it.ValueIteratedTo)
	}
	return float64(total) / float64(h.totalCount)
}

// GetStdDeviation returns the approximate standard deviation of recorded
// values.
func (h *Histogram) GetStdDeviation() float64 {
	if h.totalCount == 0 {
		return 0
	}
	mean := h.GetMean()
	var geometricDevTotal float64
	it := h.NewRecordedValuesIterator()
	for it.Next() {
		dev := float64(h.medianEquivalentValue(it.ValueIteratedTo)) - mean
		geometricDevTotal += dev * dev * float64(it.CountAtValueIteratedTo)
	}
	return math.Sqrt(geometricDevTotal / float64(h.totalCount))
}

// GetMin returns the approximate minimum recorded value, or 0 if nothing
// has been recorded.
func (h *Histogram) GetMin() int64 {
	it := h.NewRecordedValuesIterator()
	if !it.Next() {
		return 0
	}
	return h.lowestEquivalentValue(it.ValueIteratedTo)
}

// GetMax returns the approximate maximum recorded value, or 0 if nothing
// has been recorded.
func (h *Histogram) GetMax() int64 {
	var max int64
	it := h.NewRecordedValuesIterator()
	for it.Next() {
		max = it.ValueIteratedTo
	}
	if max == 0 {
		return 0
	}
	return h.highestEquivalentValue(max)
}

// HasOverflowed re-sums every counter and reports whether the sum
// disagrees with totalCount, which for fixed-width counters signals that
// an add silently saturated before this check (spec section 4.3).
func (h *Histogram) HasOverflowed() bool {
	var sum int64
	n := h.counts.length()
	for i := int32(0); i < n; i++ {
		sum += h.counts.get(i)
		if sum < 0 {
			return true
		}
	}
	return sum != h.totalCount
}

// ValuesAreEquivalent reports whether two values fall in the same counted
// range.
func (h *Histogram) ValuesAreEquivalent(v1, v2 int64) bool {
	return h.lowestEquivalentValue(v1) == h.lowestEquivalentValue(v2)
}

// Equals reports whether h and other have identical geometry, counter
// width, total count, and counters. Metadata (tag, instance ID, start/end
// timestamps) is not compared. Grounded on cockroachdb-cockroach__hdr.go's
// Equals.
func (h *Histogram) Equals(other *Histogram) bool {
	if !h.sameGeometry(other) || h.width != other.width || h.totalCount != other.totalCount {
		return false
	}
	n := h.counts.length()
	if n != other.counts.length() {
		return false
	}
	for i := int32(0); i < n; i++ {
		if h.counts.get(i) != other.counts.get(i) {
			return false
		}
	}
	return true
}

// Snapshot is an exported, codec-independent view of a Histogram, used for
// in-process handoff without going through pkg/hdrcodec's wire format.
// Grounded on cockroachdb-cockroach__hdr.go's Snapshot/Export/Import.
type Snapshot struct {
	LowestTrackableValue  int64
	HighestTrackableValue int64
	SignificantFigures    int
	CounterWidth          CounterWidth
	Counts                []int64
	TotalCount            int64
	Tag                   string
	InstanceID            uint64
	HasInstanceID         bool
	StartTimestamp        int64
	EndTimestamp          int64
}

// Export returns a snapshot view of h.
func (h *Histogram) Export() *Snapshot {
	return &Snapshot{
		LowestTrackableValue:  h.lowest,
		HighestTrackableValue: h.highest,
		SignificantFigures:    int(h.significantDigits),
		CounterWidth:          h.width,
		Counts:                h.counts.snapshot(),
		TotalCount:            h.totalCount,
		Tag:                   h.tag,
		InstanceID:            h.instanceID,
		HasInstanceID:         h.hasInstanceID,
		StartTimestamp:        h.startTimestamp,
		EndTimestamp:          h.endTimestamp,
	}
}

// Import constructs a new Histogram from a Snapshot.
func Import(s *Snapshot) (*Histogram, error) {
	opts := []Option{WithCounterWidth(s.CounterWidth)}
	if s.Tag != "" {
		opts = append(opts, WithTag(s.Tag))
	}
	if s.HasInstanceID {
		opts = append(opts, WithInstanceID(s.InstanceID))
	}
	h, err := New(s.LowestTrackableValue, s.HighestTrackableValue, s.SignificantFigures, opts...)
	if err != nil {
		return nil, err
	}
	if int32(len(s.Counts)) != h.countsArrayLength {
		return nil, errs.Errorf("%w: snapshot has %d counters, geometry expects %d", ErrCodecCorrupt, len(s.Counts), h.countsArrayLength)
	}
	h.counts.loadFrom(s.Counts)
	h.totalCount = s.TotalCount
	h.startTimestamp = s.StartTimestamp
	h.endTimestamp = s.EndTimestamp
	return h, nil
}
