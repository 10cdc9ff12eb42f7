// Package concurrent implements the multi-writer HDR histogram: wait-free
// recording from any number of goroutines, coordinated with a single
// reader at a time via pkg/hdr/phaser, so that reads (Add, Sample,
// snapshotting) observe an internally consistent view without
// ever blocking a writer.
//
// Grounded on runningwild-jolt's pkg/cluster/client.go fan-out-then-merge
// pattern, retargeted at spec section 4.5's dual active/inactive counts
// arrays with a normalizing offset.
package concurrent

import (
	"sync/atomic"

	"github.com/runningwild/hdr/pkg/hdr"
	"github.com/runningwild/hdr/pkg/hdr/phaser"
	"github.com/zeebo/errs/v2"
)

// buffer is one of the two counts arrays a Histogram alternates between.
// normalizingOffset lets ShiftValuesLeft/Right rotate the logical-to-
// physical index mapping without moving data.
type buffer struct {
	counts            []int64
	normalizingOffset int32
}

func newBuffer(n int32) *buffer {
	return &buffer{counts: make([]int64, n)}
}

// normalize maps a logical counts-array index to a physical index in this
// buffer, honoring normalizingOffset (spec section 4.5).
func (b *buffer) normalize(logical int32) int32 {
	n := int32(len(b.counts))
	if b.normalizingOffset == 0 {
		return logical
	}
	idx := logical - b.normalizingOffset
	if idx < 0 {
		idx += n
	} else if idx >= n {
		idx -= n
	}
	return idx
}

// unnormalize is normalize's inverse: recovers the logical index a
// physical slot represents.
func unnormalize(phys, offset, n int32) int32 {
	if offset == 0 {
		return phys
	}
	idx := phys + offset
	if idx >= n {
		idx -= n
	} else if idx < 0 {
		idx += n
	}
	return idx
}

// Histogram is a wait-free-writer, single-reader-at-a-time HDR histogram.
// RecordValue* never blocks; Add, Recorder.Sample, CopyCountsInto,
// ShiftValuesLeft/Right, and Reset are reader operations serialized
// against each other and against in-flight writers by an internal
// phaser. There is no Subtract or Copy on this type.
//
// Buffer selection is keyed directly on the phaser's own phase parity
// (evenBuf/oddBuf, chosen by a writer's Token.Odd) rather than by a
// separately-read flag: reading a second flag after WriterEnter would let
// a concurrent FlipPhase swap which buffer is "active" between the two
// reads, so the token's own Odd value must be the sole source of truth
// for which buffer a given critical section targets.
type Histogram struct {
	layout hdr.Layout
	ph     phaser.Phaser

	totalCount int64 // atomic

	evenBuf, oddBuf *buffer

	startTimestamp int64
	endTimestamp   int64
	tag            string
}

// New constructs a concurrent Histogram over the given layout.
func New(layout hdr.Layout) *Histogram {
	n := layout.CountsArrayLength()
	return &Histogram{
		layout:  layout,
		evenBuf: newBuffer(n),
		oddBuf:  newBuffer(n),
	}
}

func (h *Histogram) bufFor(odd bool) *buffer {
	if odd {
		return h.oddBuf
	}
	return h.evenBuf
}

func (h *Histogram) Layout() hdr.Layout { return h.layout }
func (h *Histogram) TotalCount() int64  { return atomic.LoadInt64(&h.totalCount) }

func (h *Histogram) Tag() string       { return h.tag }
func (h *Histogram) SetTag(tag string) { h.tag = tag }

func (h *Histogram) StartTimestamp() int64     { return atomic.LoadInt64(&h.startTimestamp) }
func (h *Histogram) EndTimestamp() int64       { return atomic.LoadInt64(&h.endTimestamp) }
func (h *Histogram) SetStartTimestamp(t int64) { atomic.StoreInt64(&h.startTimestamp, t) }
func (h *Histogram) SetEndTimestamp(t int64)   { atomic.StoreInt64(&h.endTimestamp, t) }

// RecordValue is the wait-free write path (spec section 4.5): enter the
// phaser, atomically add into the buffer the entry token names, exit.
func (h *Histogram) RecordValue(v int64) error {
	return h.RecordValueWithCount(v, 1)
}

// RecordValueWithCount adds n to v's counter, wait-free.
func (h *Histogram) RecordValueWithCount(v, n int64) error {
	if v < 0 || v > h.layout.HighestTrackableValue() {
		return errs.Errorf("%w: value %d outside [0, %d]", hdr.ErrValueOutOfRange, v, h.layout.HighestTrackableValue())
	}
	if n < 0 {
		return errs.Errorf("%w: count %d must be >= 0", hdr.ErrArgumentInvalid, n)
	}
	logical := h.layout.CountsIndexFor(v)
	if logical < 0 || logical >= h.layout.CountsArrayLength() {
		return errs.Errorf("%w: value %d maps outside the counts array", hdr.ErrValueOutOfRange, v)
	}
	if n == 0 {
		return nil
	}

	tok := h.ph.WriterEnter()
	buf := h.bufFor(tok.Odd)
	phys := buf.normalize(logical)
	atomic.AddInt64(&buf.counts[phys], n)
	atomic.AddInt64(&h.totalCount, n)
	h.ph.WriterExit(tok)
	return nil
}

// RecordValueWithExpectedInterval records v and backfills coordinated
// omission gaps, same semantics as hdr.Histogram's method of the same
// name.
func (h *Histogram) RecordValueWithExpectedInterval(v, expected int64) error {
	if err := h.RecordValueWithCount(v, 1); err != nil {
		return err
	}
	if expected <= 0 || v <= expected {
		return nil
	}
	for missing := v - expected; missing >= expected; missing -= expected {
		if err := h.RecordValueWithCount(missing, 1); err != nil {
			return err
		}
	}
	return nil
}

// drainInto reads every non-zero counter out of buf into dst, keyed by
// dst's own geometry rather than assuming an identical layout, and clears
// buf's normalizing offset once it has been fully consumed. When zero is
// true, drained counters are removed from buf and from h's totalCount, so
// h.TotalCount() keeps reflecting only what the live buffers still hold.
func (h *Histogram) drainInto(buf *buffer, dst *hdr.Histogram, zero bool) error {
	n := int32(len(buf.counts))
	var drained int64
	for phys := int32(0); phys < n; phys++ {
		var c int64
		if zero {
			c = atomic.SwapInt64(&buf.counts[phys], 0)
		} else {
			c = atomic.LoadInt64(&buf.counts[phys])
		}
		if c == 0 {
			continue
		}
		drained += c
		logical := unnormalize(phys, buf.normalizingOffset, n)
		v := h.layout.ValueFromIndex(logical)
		if err := dst.RecordValueWithCount(h.layout.MedianEquivalentValue(v), c); err != nil {
			return err
		}
	}
	if zero {
		buf.normalizingOffset = 0
		atomic.AddInt64(&h.totalCount, -drained)
	}
	return nil
}

// CopyCountsInto merges every counter from both buffers into dst. It is a
// reader operation: it flips the phase once to drain in-flight writers
// out of one buffer, then reads both without disturbing either.
func (h *Histogram) CopyCountsInto(dst *hdr.Histogram) error {
	h.ph.ReaderLock()
	defer h.ph.ReaderUnlock()

	quiescedOdd := h.ph.FlipPhase()
	quiesced := h.bufFor(quiescedOdd)
	other := h.bufFor(!quiescedOdd)

	if err := h.drainInto(quiesced, dst, false); err != nil {
		return err
	}
	return h.drainInto(other, dst, false)
}

// Add merges another concurrent Histogram's recorded values into h,
// recording each through h's normal wait-free write path. It is a reader
// operation with respect to other (it flips other's phase to quiesce a
// stable view of it) and a writer with respect to h.
func (h *Histogram) Add(other *Histogram) error {
	other.ph.ReaderLock()
	defer other.ph.ReaderUnlock()

	quiescedOdd := other.ph.FlipPhase()
	for _, buf := range []*buffer{other.bufFor(quiescedOdd), other.bufFor(!quiescedOdd)} {
		n := int32(len(buf.counts))
		for phys := int32(0); phys < n; phys++ {
			c := atomic.LoadInt64(&buf.counts[phys])
			if c == 0 {
				continue
			}
			logical := unnormalize(phys, buf.normalizingOffset, n)
			v := other.layout.ValueFromIndex(logical)
			if err := h.RecordValueWithCount(other.layout.MedianEquivalentValue(v), c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reset zeroes both buffers, totalCount, and the interval timestamps.
// Reader operation.
func (h *Histogram) Reset() {
	h.ph.ReaderLock()
	defer h.ph.ReaderUnlock()

	quiescedOdd := h.ph.FlipPhase()
	clearBuffer(h.bufFor(quiescedOdd))
	clearBuffer(h.bufFor(!quiescedOdd))
	atomic.StoreInt64(&h.totalCount, 0)
	atomic.StoreInt64(&h.startTimestamp, 0)
	atomic.StoreInt64(&h.endTimestamp, 0)
}

func clearBuffer(b *buffer) {
	for i := range b.counts {
		atomic.StoreInt64(&b.counts[i], 0)
	}
	b.normalizingOffset = 0
}

// ShiftValuesLeft rotates the distribution left by binCount sub-bucket
// positions by adjusting the normalizing offset of both buffers, run
// inside a reader critical section so it is safe under concurrent
// recording (spec section 4.5).
func (h *Histogram) ShiftValuesLeft(binCount int32) {
	h.shiftValues(binCount)
}

// ShiftValuesRight rotates the distribution right by binCount sub-bucket
// positions.
func (h *Histogram) ShiftValuesRight(binCount int32) {
	h.shiftValues(-binCount)
}

func (h *Histogram) shiftValues(binCount int32) {
	if binCount == 0 {
		return
	}
	h.ph.ReaderLock()
	defer h.ph.ReaderUnlock()

	quiescedOdd := h.ph.FlipPhase()
	for _, buf := range []*buffer{h.bufFor(quiescedOdd), h.bufFor(!quiescedOdd)} {
		n := int32(len(buf.counts))
		buf.normalizingOffset = ((buf.normalizingOffset+binCount)%n + n) % n
	}
}
