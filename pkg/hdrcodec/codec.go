// Package hdrcodec implements the V2 wire format for persisting and
// transmitting HDR histograms: a fixed big-endian header describing
// geometry, followed by a zig-zag LEB128 varint stream of counter values
// (runs of zero counters are collapsed into a single negative varint),
// optionally wrapped in a deflate-compressed envelope.
//
// Grounded on cockroachdb-cockroach__hdr_encoding.go's header layout,
// cookie constants, and zero-run varint scheme; the compressed envelope
// swaps that reference's zlib for github.com/klauspost/compress/flate per
// spec section 4.7's literal "deflate/inflate" framing (raw deflate, no
// zlib wrapper).
package hdrcodec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/runningwild/hdr/pkg/hdr"
	"github.com/zeebo/errs/v2"
)

const (
	// V2EncodingCookieBase identifies an uncompressed V2 payload.
	V2EncodingCookieBase int32 = 0x1c849303
	// V2CompressedEncodingCookieBase identifies a deflate-wrapped V2
	// payload.
	V2CompressedEncodingCookieBase int32 = 0x1c849304

	// wordSizeNibble encodes a word size of 8 bytes as 0x10, in bits 4-7
	// of the cookie; decode masks those bits out (cookie &^ 0xf0) before
	// comparing against the base constant. The varint counts stream is
	// width-independent, so this is metadata only; decode does not key
	// behavior off it beyond validating the base cookie.
	wordSizeNibble = 0x10

	headerSize = 40
)

// Encode writes h's uncompressed V2 payload: the 40-byte header followed
// by the zig-zag varint counts stream.
func Encode(h *hdr.Histogram) ([]byte, error) {
	snap := h.Export()
	countsStream := encodeCounts(snap.Counts)

	buf := new(bytes.Buffer)
	buf.Grow(headerSize + len(countsStream))

	writeHeader(buf, V2EncodingCookieBase|wordSizeNibble, int32(len(countsStream)), 0, snap.SignificantFigures, snap.LowestTrackableValue, snap.HighestTrackableValue)
	buf.Write(countsStream)
	return buf.Bytes(), nil
}

// EncodeCompressed wraps Encode's payload in a deflate envelope: a 4-byte
// compressed cookie, a 4-byte compressed length, then the deflate stream.
func EncodeCompressed(h *hdr.Histogram) ([]byte, error) {
	payload, err := Encode(h)
	if err != nil {
		return nil, err
	}

	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if _, err := w.Write(payload); err != nil {
		return nil, errs.Wrap(err)
	}
	if err := w.Close(); err != nil {
		return nil, errs.Wrap(err)
	}

	out := new(bytes.Buffer)
	out.Grow(8 + compressed.Len())
	mustWrite(out, V2CompressedEncodingCookieBase|wordSizeNibble)
	mustWrite(out, int32(compressed.Len()))
	out.Write(compressed.Bytes())
	return out.Bytes(), nil
}

// Decode parses an uncompressed V2 payload produced by Encode.
func Decode(data []byte) (*hdr.Histogram, error) {
	if len(data) < headerSize {
		return nil, errs.Errorf("%w: payload shorter than header (%d bytes)", hdr.ErrCodecCorrupt, len(data))
	}
	cookie, payloadLength, _, sigDigits, lowest, highest := readHeader(data)
	if cookie&^0xf0 != V2EncodingCookieBase {
		return nil, errs.Errorf("%w: cookie 0x%x is not a V2 encoding cookie", hdr.ErrCodecCorrupt, cookie)
	}
	stream := data[headerSize:]
	if int(payloadLength) != len(stream) {
		return nil, errs.Errorf("%w: header payload length %d does not match actual %d", hdr.ErrCodecCorrupt, payloadLength, len(stream))
	}

	h, err := hdr.New(lowest, highest, int(sigDigits))
	if err != nil {
		return nil, errs.Wrap(err)
	}
	counts, total, err := decodeCounts(stream, h.CountsArrayLength())
	if err != nil {
		return nil, err
	}
	if err := h.LoadCounts(counts, total); err != nil {
		return nil, err
	}
	return h, nil
}

// DecodeCompressed parses a deflate-wrapped V2 payload produced by
// EncodeCompressed.
func DecodeCompressed(data []byte) (*hdr.Histogram, error) {
	if len(data) < 8 {
		return nil, errs.Errorf("%w: compressed envelope shorter than its own header (%d bytes)", hdr.ErrCodecCorrupt, len(data))
	}
	cookie := int32(binary.BigEndian.Uint32(data[0:4]))
	if cookie&^0xf0 != V2CompressedEncodingCookieBase {
		return nil, errs.Errorf("%w: cookie 0x%x is not a V2 compressed encoding cookie", hdr.ErrCodecCorrupt, cookie)
	}
	compressedLength := int32(binary.BigEndian.Uint32(data[4:8]))
	rest := data[8:]
	if int(compressedLength) > len(rest) {
		return nil, errs.Errorf("%w: compressed length %d exceeds available %d bytes", hdr.ErrCodecCorrupt, compressedLength, len(rest))
	}

	r := flate.NewReader(bytes.NewReader(rest[:compressedLength]))
	defer r.Close()
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Errorf("%w: inflate failed: %v", hdr.ErrCodecCorrupt, err)
	}
	return Decode(payload)
}

func writeHeader(buf *bytes.Buffer, cookie, payloadLength, normalizingOffset int32, sigDigits int, lowest, highest int64) {
	mustWrite(buf, cookie)
	mustWrite(buf, payloadLength)
	mustWrite(buf, normalizingOffset)
	mustWrite(buf, int32(sigDigits))
	mustWrite(buf, lowest)
	mustWrite(buf, highest)
	mustWrite(buf, 1.0) // integerToDoubleConversionRatio; always 1.0 for integer histograms
}

func readHeader(data []byte) (cookie, payloadLength, normalizingOffset int32, sigDigits int32, lowest, highest int64) {
	cookie = int32(binary.BigEndian.Uint32(data[0:4]))
	payloadLength = int32(binary.BigEndian.Uint32(data[4:8]))
	normalizingOffset = int32(binary.BigEndian.Uint32(data[8:12]))
	sigDigits = int32(binary.BigEndian.Uint32(data[12:16]))
	lowest = int64(binary.BigEndian.Uint64(data[16:24]))
	highest = int64(binary.BigEndian.Uint64(data[24:32]))
	return
}

func mustWrite(buf *bytes.Buffer, v any) {
	if err := binary.Write(buf, binary.BigEndian, v); err != nil {
		// binary.Write only fails for unfixed-size types, never for the
		// fixed-width values this package writes.
		panic(err)
	}
}

// encodeCounts produces the zig-zag LEB128 varint stream spec section 4.7
// describes: a positive varint is a literal counter value, a negative
// varint -n collapses a run of n consecutive zero counters.
func encodeCounts(counts []int64) []byte {
	var buf bytes.Buffer
	scratch := make([]byte, binary.MaxVarintLen64)

	i := 0
	for i < len(counts) {
		if counts[i] != 0 {
			n := binary.PutVarint(scratch, counts[i])
			buf.Write(scratch[:n])
			i++
			continue
		}
		run := int64(0)
		for i < len(counts) && counts[i] == 0 {
			run++
			i++
		}
		n := binary.PutVarint(scratch, -run)
		buf.Write(scratch[:n])
	}
	return buf.Bytes()
}

// decodeCounts is encodeCounts's inverse, writing into a fresh counts
// array of length n and returning the accumulated total.
func decodeCounts(stream []byte, n int32) ([]int64, int64, error) {
	counts := make([]int64, n)
	var dst int32
	var total int64
	pos := 0
	for pos < len(stream) {
		v, w := binary.Varint(stream[pos:])
		if w <= 0 {
			return nil, 0, errs.Errorf("%w: malformed varint at stream offset %d", hdr.ErrCodecCorrupt, pos)
		}
		pos += w
		if v < 0 {
			dst += int32(-v)
			if dst > n {
				return nil, 0, errs.Errorf("%w: zero run overruns counts array (length %d)", hdr.ErrCodecCorrupt, n)
			}
			continue
		}
		if dst >= n {
			return nil, 0, errs.Errorf("%w: counts stream overruns array (length %d)", hdr.ErrCodecCorrupt, n)
		}
		counts[dst] = v
		total += v
		dst++
	}
	return counts, total, nil
}
