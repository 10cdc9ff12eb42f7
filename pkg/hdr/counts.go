package hdr

import (
	"sync/atomic"

	"github.com/zeebo/errs/v2"
)

// counts is the storage abstraction spec section 4.2 describes: one
// operation surface, realized by four counter widths. Public Histogram
// operations are defined once against this interface (DESIGN NOTES,
// "Polymorphism over counter width"), instead of the reference's
// inheritance hierarchy across long/int/short/atomic variants.
type counts interface {
	get(i int32) int64
	// set overwrites counter i to v, returning the delta applied to
	// totalCount.
	set(i int32, v int64) int64
	// add adds d to counter i. Returns an error for fixed-width variants
	// whose counter would over- or under-flow its representable range.
	add(i int32, d int64) error
	increment(i int32) error
	clear()
	length() int32
	// maxAllowable is the largest magnitude a single counter may hold;
	// the unbounded 64-bit variants report math.MaxInt64.
	maxAllowable() int64
	// snapshot copies the live counters into a fresh []int64, used by
	// Copy/codec/Export.
	snapshot() []int64
	// loadFrom overwrites all counters from a []int64 of the same length.
	loadFrom(vs []int64)
}

// --- 64-bit plain counters ---

type counts64 struct {
	vs []int64
}

func newCounts64(n int32) *counts64 { return &counts64{vs: make([]int64, n)} }

func (c *counts64) get(i int32) int64 { return c.vs[i] }

func (c *counts64) set(i int32, v int64) int64 {
	delta := v - c.vs[i]
	c.vs[i] = v
	return delta
}

func (c *counts64) add(i int32, d int64) error {
	c.vs[i] += d
	return nil
}

func (c *counts64) increment(i int32) error { return c.add(i, 1) }

func (c *counts64) clear() {
	for i := range c.vs {
		c.vs[i] = 0
	}
}

func (c *counts64) length() int32      { return int32(len(c.vs)) }
func (c *counts64) maxAllowable() int64 { return 1<<63 - 1 }

func (c *counts64) snapshot() []int64 {
	out := make([]int64, len(c.vs))
	copy(out, c.vs)
	return out
}

func (c *counts64) loadFrom(vs []int64) { copy(c.vs, vs) }

// --- fixed-width counters (32/16-bit) ---

type countsFixed struct {
	vs   []int64 // stored as int64 for simple totalCount bookkeeping
	bits int      // 32 or 16
	max  int64
	min  int64
}

func newCounts32(n int32) *countsFixed {
	return &countsFixed{vs: make([]int64, n), bits: 32, max: 1<<31 - 1, min: -(1 << 31)}
}

func newCounts16(n int32) *countsFixed {
	return &countsFixed{vs: make([]int64, n), bits: 16, max: 1<<15 - 1, min: -(1 << 15)}
}

func (c *countsFixed) get(i int32) int64 { return c.vs[i] }

func (c *countsFixed) set(i int32, v int64) int64 {
	delta := v - c.vs[i]
	c.vs[i] = v
	return delta
}

func (c *countsFixed) add(i int32, d int64) error {
	nv := c.vs[i] + d
	if nv > c.max || nv < c.min {
		return errs.Errorf("%w: counter %d would become %d, outside [%d, %d]", ErrCounterOverflow, i, nv, c.min, c.max)
	}
	c.vs[i] = nv
	return nil
}

func (c *countsFixed) increment(i int32) error { return c.add(i, 1) }

func (c *countsFixed) clear() {
	for i := range c.vs {
		c.vs[i] = 0
	}
}

func (c *countsFixed) length() int32      { return int32(len(c.vs)) }
func (c *countsFixed) maxAllowable() int64 { return c.max }

func (c *countsFixed) snapshot() []int64 {
	out := make([]int64, len(c.vs))
	copy(out, c.vs)
	return out
}

func (c *countsFixed) loadFrom(vs []int64) { copy(c.vs, vs) }

// --- atomic 64-bit counters ---
//
// add/increment are lock-free per counter: writes to distinct indices never
// contend, matching spec section 4.2's atomic-variant contract. Grounded in
// the teacher's own concurrency idiom (engine.go's atomic.AddInt64 against
// a shared opsCounter).
type countsAtomic struct {
	vs []int64
}

func newCountsAtomic(n int32) *countsAtomic { return &countsAtomic{vs: make([]int64, n)} }

func (c *countsAtomic) get(i int32) int64 { return atomic.LoadInt64(&c.vs[i]) }

func (c *countsAtomic) set(i int32, v int64) int64 {
	old := atomic.SwapInt64(&c.vs[i], v)
	return v - old
}

func (c *countsAtomic) add(i int32, d int64) error {
	atomic.AddInt64(&c.vs[i], d)
	return nil
}

func (c *countsAtomic) increment(i int32) error { return c.add(i, 1) }

func (c *countsAtomic) clear() {
	for i := range c.vs {
		atomic.StoreInt64(&c.vs[i], 0)
	}
}

func (c *countsAtomic) length() int32      { return int32(len(c.vs)) }
func (c *countsAtomic) maxAllowable() int64 { return 1<<63 - 1 }

func (c *countsAtomic) snapshot() []int64 {
	out := make([]int64, len(c.vs))
	for i := range out {
		out[i] = atomic.LoadInt64(&c.vs[i])
	}
	return out
}

func (c *countsAtomic) loadFrom(vs []int64) {
	for i, v := range vs {
		atomic.StoreInt64(&c.vs[i], v)
	}
}

// CounterWidth selects the counts storage realization a Histogram uses.
type CounterWidth int

const (
	// Width64 is a plain (non-atomic) 64-bit counter array; unbounded in
	// practice.
	Width64 CounterWidth = iota
	// Width32 is a plain 32-bit counter array; add fails with
	// counter-overflow if a counter would leave [-2^31, 2^31-1].
	Width32
	// Width16 is a plain 16-bit counter array; add fails with
	// counter-overflow if a counter would leave [-2^15, 2^15-1].
	Width16
	// WidthAtomic64 is a lock-free 64-bit counter array, used by the
	// concurrent histogram (pkg/hdr/concurrent).
	WidthAtomic64
)

func newCounts(width CounterWidth, n int32) counts {
	switch width {
	case Width32:
		return newCounts32(n)
	case Width16:
		return newCounts16(n)
	case WidthAtomic64:
		return newCountsAtomic(n)
	default:
		return newCounts64(n)
	}
}
