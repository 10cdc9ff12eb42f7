package hdr

import "testing"

func TestAllValuesIteratorCoversArray(t *testing.T) {
	h := mustNew(t, 1, 1000, 2)
	mustRecordN(t, h, 5, 1)

	var count int32
	it := h.NewAllValuesIterator()
	for it.Next() {
		count++
	}
	if count != h.countsArrayLength {
		t.Errorf("AllValuesIterator visited %d entries, want %d", count, h.countsArrayLength)
	}
}

func TestRecordedValuesIteratorSkipsZeros(t *testing.T) {
	h := mustNew(t, 1, 1_000_000, 3)
	mustRecordN(t, h, 5, 2)
	mustRecordN(t, h, 5000, 3)

	var total int64
	it := h.NewRecordedValuesIterator()
	seen := 0
	for it.Next() {
		seen++
		total += it.CountAtValueIteratedTo
	}
	if seen != 2 {
		t.Errorf("RecordedValuesIterator visited %d entries, want 2", seen)
	}
	if total != 5 {
		t.Errorf("RecordedValuesIterator total count = %d, want 5", total)
	}
}

func TestLinearBucketIteratorCoversAllRecords(t *testing.T) {
	h := mustNew(t, 1, 100_000, 3)
	for v := int64(1); v <= 1000; v += 7 {
		mustRecordN(t, h, v, 1)
	}
	var total int64
	it := h.NewLinearBucketIterator(100)
	for it.Next() {
		total += it.CountAddedInThisStep
	}
	if total != h.TotalCount() {
		t.Errorf("LinearBucketIterator total = %d, want %d", total, h.TotalCount())
	}
}

func TestLogarithmicBucketIteratorCoversAllRecords(t *testing.T) {
	h := mustNew(t, 1, 1_000_000, 3)
	for v := int64(1); v <= 500_000; v *= 3 {
		mustRecordN(t, h, v, 1)
	}
	var total int64
	it := h.NewLogarithmicBucketIterator(1, 2.0)
	for it.Next() {
		total += it.CountAddedInThisStep
	}
	if total != h.TotalCount() {
		t.Errorf("LogarithmicBucketIterator total = %d, want %d", total, h.TotalCount())
	}
}

func TestPercentileIteratorReachesHundred(t *testing.T) {
	h := mustNew(t, 1, 1_000_000, 3)
	for v := int64(1); v <= 1000; v++ {
		mustRecordN(t, h, v, 1)
	}
	var last float64
	var total int64
	it := h.NewPercentileIterator(5)
	for it.Next() {
		last = it.PercentileLevelIteratedTo
		total = it.TotalCountToThisValue
	}
	if last != 100 {
		t.Errorf("final PercentileLevelIteratedTo = %v, want 100", last)
	}
	if total != h.TotalCount() {
		t.Errorf("PercentileIterator final TotalCountToThisValue = %d, want %d", total, h.TotalCount())
	}
}
