package hdr

import "testing"

func TestCounts64Unbounded(t *testing.T) {
	c := newCounts(Width64, 4)
	if err := c.add(0, 1<<40); err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := c.get(0); got != 1<<40 {
		t.Errorf("get(0) = %d, want %d", got, int64(1)<<40)
	}
}

func TestCountsFixedOverflow(t *testing.T) {
	c := newCounts(Width16, 1)
	if err := c.add(0, 1<<15-1); err != nil {
		t.Fatalf("add to max: %v", err)
	}
	if err := c.add(0, 1); err == nil {
		t.Fatalf("add past max: want counter-overflow, got nil")
	}
}

func TestCountsAtomicConcurrentAdd(t *testing.T) {
	c := newCounts(WidthAtomic64, 1)
	done := make(chan struct{})
	const goroutines, perGoroutine = 8, 1000
	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < perGoroutine; j++ {
				_ = c.add(0, 1)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}
	if got := c.get(0); got != goroutines*perGoroutine {
		t.Errorf("get(0) = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestCountsSnapshotLoadFromRoundTrip(t *testing.T) {
	c := newCounts(Width64, 4)
	_ = c.add(1, 5)
	_ = c.add(3, 9)
	snap := c.snapshot()

	c2 := newCounts(Width64, 4)
	c2.loadFrom(snap)
	for i := int32(0); i < 4; i++ {
		if c.get(i) != c2.get(i) {
			t.Errorf("index %d: %d != %d after loadFrom(snapshot)", i, c.get(i), c2.get(i))
		}
	}
}
