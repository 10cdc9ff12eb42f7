package hdr

import "github.com/zeebo/errs/v2"

// Layout exposes a Histogram's value-to-index geometry to other packages
// (pkg/hdr/concurrent in particular) without exposing the Histogram's
// counter storage itself. A concurrent histogram needs the same bucket
// math this package uses internally but owns its own atomic counts
// arrays, so it holds a Layout rather than a Histogram.
type Layout struct {
	g geometry
}

// NewLayout derives the same geometry New does, and fails under the same
// conditions.
func NewLayout(lowest, highest int64, significantDigits int) (Layout, error) {
	if lowest < 1 {
		return Layout{}, errs.Errorf("%w: lowestTrackableValue must be >= 1, got %d", ErrArgumentInvalid, lowest)
	}
	if highest < 2*lowest {
		return Layout{}, errs.Errorf("%w: highestTrackableValue must be >= 2*lowest (%d), got %d", ErrArgumentInvalid, 2*lowest, highest)
	}
	if significantDigits < 0 || significantDigits > 5 {
		return Layout{}, errs.Errorf("%w: numberOfSignificantValueDigits must be in [0,5], got %d", ErrArgumentInvalid, significantDigits)
	}
	return Layout{g: newGeometry(lowest, highest, significantDigits)}, nil
}

// LayoutOf returns h's geometry as a standalone Layout.
func (h *Histogram) LayoutOf() Layout { return Layout{g: h.geometry} }

func (l Layout) LowestTrackableValue() int64  { return l.g.lowest }
func (l Layout) HighestTrackableValue() int64 { return l.g.highest }
func (l Layout) SignificantFigures() int64    { return l.g.significantDigits }
func (l Layout) CountsArrayLength() int32     { return l.g.countsArrayLength }

// Equal reports whether l and o agree on every derived field, i.e.
// whether they produce identical CountsIndexFor results for every value.
func (l Layout) Equal(o Layout) bool { return l.g == o.g }

func (l Layout) CountsIndexFor(v int64) int32 { return l.g.countsIndexFor(v) }
func (l Layout) ValueFromIndex(idx int32) int64 { return l.g.valueFromIndex(idx) }
func (l Layout) LowestEquivalentValue(v int64) int64 { return l.g.lowestEquivalentValue(v) }
func (l Layout) HighestEquivalentValue(v int64) int64 { return l.g.highestEquivalentValue(v) }
func (l Layout) MedianEquivalentValue(v int64) int64 { return l.g.medianEquivalentValue(v) }
func (l Layout) SizeOfEquivalentValueRange(v int64) int64 {
	return l.g.sizeOfEquivalentValueRange(v)
}

// NewHistogram builds a plain Histogram sharing this Layout's geometry,
// e.g. for use as a Recorder's reusable interval histogram.
func (l Layout) NewHistogram(opts ...Option) *Histogram {
	h := &Histogram{geometry: l.g, width: Width64}
	for _, opt := range opts {
		opt(h)
	}
	h.counts = newCounts(h.width, l.g.countsArrayLength)
	return h
}
