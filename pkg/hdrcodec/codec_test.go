package hdrcodec

import (
	"testing"

	"github.com/runningwild/hdr/pkg/hdr"
)

func buildHistogram(t *testing.T) *hdr.Histogram {
	t.Helper()
	h, err := hdr.New(1, 3_600_000_000, 3)
	if err != nil {
		t.Fatalf("hdr.New: %v", err)
	}
	for _, v := range []int64{1, 100, 10_000, 1_000_000, 3_600_000_000} {
		if err := h.RecordValue(v); err != nil {
			t.Fatalf("RecordValue(%d): %v", v, err)
		}
	}
	return h
}

// P6: decode(encode(h)) is value-equal to h.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := buildHistogram(t)
	payload, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !h.Equals(got) {
		t.Fatalf("Decode(Encode(h)) != h")
	}
}

// P6: decode(compress(encode(h))) is value-equal to h.
func TestEncodeCompressedRoundTrip(t *testing.T) {
	h := buildHistogram(t)
	payload, err := EncodeCompressed(h)
	if err != nil {
		t.Fatalf("EncodeCompressed: %v", err)
	}
	got, err := DecodeCompressed(payload)
	if err != nil {
		t.Fatalf("DecodeCompressed: %v", err)
	}
	if !h.Equals(got) {
		t.Fatalf("DecodeCompressed(EncodeCompressed(h)) != h")
	}
}

func TestEncodeCountsZeroRunCollapse(t *testing.T) {
	stream := encodeCounts([]int64{0, 0, 0, 5, 0, 3})
	counts, total, err := decodeCounts(stream, 6)
	if err != nil {
		t.Fatalf("decodeCounts: %v", err)
	}
	want := []int64{0, 0, 0, 5, 0, 3}
	for i, w := range want {
		if counts[i] != w {
			t.Errorf("counts[%d] = %d, want %d", i, counts[i], w)
		}
	}
	if total != 8 {
		t.Errorf("total = %d, want 8", total)
	}
}

func TestDecodeRejectsBadCookie(t *testing.T) {
	h := buildHistogram(t)
	payload, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	payload[0] ^= 0xff
	if _, err := Decode(payload); err == nil {
		t.Fatalf("Decode with corrupted cookie: want error, got nil")
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	h := buildHistogram(t)
	payload, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(payload[:len(payload)-5]); err == nil {
		t.Fatalf("Decode with truncated payload: want error, got nil")
	}
}
