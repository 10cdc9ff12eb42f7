package concurrent

import (
	"sync"
	"testing"

	"github.com/runningwild/hdr/pkg/hdr"
)

func mustLayout(t *testing.T, lowest, highest int64, digits int) hdr.Layout {
	t.Helper()
	l, err := hdr.NewLayout(lowest, highest, digits)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

// Scenario 5: 8 goroutines each RecordValue(i) for i in [0, 1_000_000);
// TotalCount = 8_000_000 and GetCountAtValue(0) = 8.
func TestScenario5ConcurrentRecording(t *testing.T) {
	layout := mustLayout(t, 1, 1<<62, 3)
	h := New(layout)

	const goroutines = 8
	const n = 1_000_000
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := int64(0); i < n; i++ {
				if err := h.RecordValue(i); err != nil {
					t.Errorf("RecordValue(%d): %v", i, err)
				}
			}
		}()
	}
	wg.Wait()

	if got := h.TotalCount(); got != goroutines*n {
		t.Fatalf("TotalCount = %d, want %d", got, int64(goroutines*n))
	}

	dst := layout.NewHistogram()
	if err := h.CopyCountsInto(dst); err != nil {
		t.Fatalf("CopyCountsInto: %v", err)
	}
	if got := dst.GetCountAtValue(0); got != goroutines {
		t.Errorf("GetCountAtValue(0) = %d, want %d", got, goroutines)
	}
}

func TestRecordValueOutOfRange(t *testing.T) {
	h := New(mustLayout(t, 1, 1000, 3))
	if err := h.RecordValue(-1); err == nil {
		t.Fatalf("RecordValue(-1): want error, got nil")
	}
	if err := h.RecordValue(1001); err == nil {
		t.Fatalf("RecordValue(1001): want error, got nil")
	}
}

func TestResetZeroesBothBuffers(t *testing.T) {
	h := New(mustLayout(t, 1, 100_000, 3))
	for i := 0; i < 5; i++ {
		if err := h.RecordValue(42); err != nil {
			t.Fatalf("RecordValue: %v", err)
		}
	}
	h.Reset()
	if h.TotalCount() != 0 {
		t.Fatalf("TotalCount after Reset = %d, want 0", h.TotalCount())
	}
	dst := h.Layout().NewHistogram()
	if err := h.CopyCountsInto(dst); err != nil {
		t.Fatalf("CopyCountsInto: %v", err)
	}
	if dst.TotalCount() != 0 {
		t.Fatalf("dst.TotalCount after Reset = %d, want 0", dst.TotalCount())
	}
}

// ShiftValuesLeft moves a recorded count to a higher-indexed bucket, and
// shifting right by the same amount restores the original distribution
// (spec section 4.5).
func TestShiftValuesLeftMovesCount(t *testing.T) {
	layout := mustLayout(t, 1, 100_000, 3)
	h := New(layout)

	const idx = int32(100)
	v := layout.ValueFromIndex(idx)
	if err := h.RecordValueWithCount(v, 7); err != nil {
		t.Fatalf("RecordValueWithCount: %v", err)
	}

	h.ShiftValuesLeft(3)

	dst := layout.NewHistogram()
	if err := h.CopyCountsInto(dst); err != nil {
		t.Fatalf("CopyCountsInto: %v", err)
	}
	if got := dst.GetCountAtValue(v); got != 0 {
		t.Errorf("GetCountAtValue(original value) after shift = %d, want 0", got)
	}
	shifted := layout.ValueFromIndex(idx + 3)
	if got := dst.GetCountAtValue(shifted); got != 7 {
		t.Errorf("GetCountAtValue(shifted value) = %d, want 7", got)
	}
	if dst.TotalCount() != 7 {
		t.Errorf("TotalCount after shift = %d, want 7", dst.TotalCount())
	}
}

func TestShiftValuesLeftThenRightRoundTrips(t *testing.T) {
	layout := mustLayout(t, 1, 100_000, 3)
	h := New(layout)

	values := []int64{10, 500, 42_000}
	for _, v := range values {
		if err := h.RecordValue(v); err != nil {
			t.Fatalf("RecordValue(%d): %v", v, err)
		}
	}

	h.ShiftValuesLeft(5)
	h.ShiftValuesRight(5)

	dst := layout.NewHistogram()
	if err := h.CopyCountsInto(dst); err != nil {
		t.Fatalf("CopyCountsInto: %v", err)
	}
	for _, v := range values {
		if got := dst.GetCountAtValue(v); got != 1 {
			t.Errorf("GetCountAtValue(%d) after round trip = %d, want 1", v, got)
		}
	}
	if dst.TotalCount() != int64(len(values)) {
		t.Errorf("TotalCount after round trip = %d, want %d", dst.TotalCount(), len(values))
	}
}

func TestShiftValuesByZeroIsNoop(t *testing.T) {
	layout := mustLayout(t, 1, 100_000, 3)
	h := New(layout)
	if err := h.RecordValue(1234); err != nil {
		t.Fatalf("RecordValue: %v", err)
	}
	h.ShiftValuesLeft(0)

	dst := layout.NewHistogram()
	if err := h.CopyCountsInto(dst); err != nil {
		t.Fatalf("CopyCountsInto: %v", err)
	}
	if got := dst.GetCountAtValue(1234); got != 1 {
		t.Errorf("GetCountAtValue(1234) = %d, want 1", got)
	}
}

func TestAddMergesIntoDestination(t *testing.T) {
	layout := mustLayout(t, 1, 100_000, 3)
	src := New(layout)
	dst := New(layout)
	for i := 0; i < 10; i++ {
		if err := src.RecordValue(500); err != nil {
			t.Fatalf("RecordValue: %v", err)
		}
	}
	if err := dst.Add(src); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if dst.TotalCount() != 10 {
		t.Fatalf("dst.TotalCount = %d, want 10", dst.TotalCount())
	}
}
