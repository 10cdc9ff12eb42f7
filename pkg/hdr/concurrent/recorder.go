package concurrent

import (
	"sync/atomic"

	"github.com/runningwild/hdr/pkg/hdr"
	"github.com/zeebo/errs/v2"
)

// Recorder pairs a concurrent Histogram with a caller-owned interval
// Histogram that Sample reuses on every call, per spec section 4.6.
// Consecutive Sample calls partition the recorded stream exactly: every
// record belongs to exactly one interval.
type Recorder struct {
	h        *Histogram
	interval *hdr.Histogram
}

// NewRecorder pairs h with interval, which must share h's layout.
func NewRecorder(h *Histogram, interval *hdr.Histogram) (*Recorder, error) {
	if !interval.LayoutOf().Equal(h.Layout()) {
		return nil, errs.Errorf("%w: interval histogram layout does not match recorder's histogram", hdr.ErrGeometryMismatch)
	}
	return &Recorder{h: h, interval: interval}, nil
}

// Sample swaps the recorder's histogram's active and inactive buffers,
// waits for writers in flight against the just-inactivated buffer to
// exit, then installs its counts into the interval histogram and zeroes
// it in place. The returned histogram is r's own interval histogram,
// valid until the next Sample call.
func (r *Recorder) Sample() (*hdr.Histogram, error) {
	r.h.ph.ReaderLock()
	defer r.h.ph.ReaderUnlock()

	quiescedOdd := r.h.ph.FlipPhase()
	quiesced := r.h.bufFor(quiescedOdd)

	n := int32(len(quiesced.counts))
	vs := make([]int64, n)
	var total int64
	for phys := int32(0); phys < n; phys++ {
		c := atomic.SwapInt64(&quiesced.counts[phys], 0)
		if c == 0 {
			continue
		}
		logical := unnormalize(phys, quiesced.normalizingOffset, n)
		vs[logical] = c
		total += c
	}
	quiesced.normalizingOffset = 0
	atomic.AddInt64(&r.h.totalCount, -total)

	r.interval.Reset()
	if err := r.interval.LoadCounts(vs, total); err != nil {
		return nil, err
	}
	r.interval.SetStartTimestamp(r.h.StartTimestamp())
	r.interval.SetEndTimestamp(r.h.EndTimestamp())
	return r.interval, nil
}
