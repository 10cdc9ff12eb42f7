// Package hdrlog implements the text log-stream format spec section 4.8
// describes: a line-oriented, UTF-8 interval log carrying one compressed
// histogram snapshot per record, independent of locale.
//
// Grounded on the teacher's cmd/jolt/sustain.go CSV-writing style
// (sequential encoding/csv-shaped output over a flushed writer); this
// format is not CSV (comment lines, a bracketed StartTime header, an
// optional leading Tag field) so it is hand-framed with bufio rather than
// forced through encoding/csv.
package hdrlog

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/runningwild/hdr/pkg/hdr"
	"github.com/runningwild/hdr/pkg/hdrcodec"
	"github.com/zeebo/errs/v2"
)

const columnHeader = `"StartTimestamp","Interval_Length","Interval_Max","Interval_Compressed_Histogram"`
const columnHeaderTagged = `"Tag","StartTimestamp","Interval_Length","Interval_Max","Interval_Compressed_Histogram"`

// Writer appends interval histogram records to an underlying io.Writer,
// flushing after every write.
type Writer struct {
	w             *bufio.Writer
	startTimeMs   int64
	wroteHeader   bool
	taggedColumns bool
}

// NewWriter starts a new log stream. startTimeMs is the epoch-millisecond
// instant recorded in the mandatory StartTime header line; every
// histogram's own StartTimestamp/EndTimestamp are reported relative to it.
func NewWriter(w io.Writer, startTimeMs int64) (*Writer, error) {
	lw := &Writer{w: bufio.NewWriter(w), startTimeMs: startTimeMs}
	sec := startTimeMs / 1000
	ms := startTimeMs % 1000
	iso := time.UnixMilli(startTimeMs).UTC().Format(time.RFC3339)
	if _, err := fmt.Fprintf(lw.w, "#[StartTime: %d.%03d (seconds since epoch), %s]\n", sec, ms, iso); err != nil {
		return nil, errs.Wrap(err)
	}
	return lw, nil
}

// WriteComment appends a free-form `# ...` header line. Must be called
// before the first WriteHistogram.
func (w *Writer) WriteComment(comment string) error {
	if w.wroteHeader {
		return errs.Errorf("comments must precede the first histogram record")
	}
	_, err := fmt.Fprintf(w.w, "# %s\n", comment)
	return errs.Wrap(err)
}

// WriteHistogram appends one interval record: h's start/end timestamps
// relative to the stream's StartTime, its max value, and its base64
// deflate-compressed V2 encoding. If tag is non-empty the record (and,
// for the first call, the column header) carries a leading Tag field.
func (w *Writer) WriteHistogram(tag string, h *hdr.Histogram) error {
	if !w.wroteHeader {
		if tag != "" {
			w.taggedColumns = true
		}
		header := columnHeader
		if w.taggedColumns {
			header = columnHeaderTagged
		}
		if _, err := fmt.Fprintln(w.w, header); err != nil {
			return errs.Wrap(err)
		}
		w.wroteHeader = true
	}

	start := float64(h.StartTimestamp()-w.startTimeMs) / 1000.0
	length := float64(h.EndTimestamp()-h.StartTimestamp()) / 1000.0
	max := h.GetMax()

	payload, err := hdrcodec.EncodeCompressed(h)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	if tag != "" {
		_, err = fmt.Fprintf(w.w, "Tag=%s,%.3f,%.3f,%d,%s\n", tag, start, length, max, encoded)
	} else {
		_, err = fmt.Fprintf(w.w, "%.3f,%.3f,%d,%s\n", start, length, max, encoded)
	}
	if err != nil {
		return errs.Wrap(err)
	}
	return errs.Wrap(w.w.Flush())
}

// Record is one decoded log-stream entry.
type Record struct {
	Tag       string
	Histogram *hdr.Histogram
}

// Reader yields a lazy sequence of Records from a log stream produced by
// Writer, skipping comment and column-header lines. It reads its
// io.Reader in a single pass and has no way to rewind; reading the stream
// again takes a new Reader over a fresh io.Reader.
type Reader struct {
	sc          *bufio.Scanner
	startTimeMs int64
	startSeen   bool
	err         error
}

// NewReader begins reading a log stream. It does not itself seek out the
// StartTime header; call Next repeatedly and it is parsed from whichever
// header line precedes the first record.
func NewReader(r io.Reader) *Reader {
	return &Reader{sc: bufio.NewScanner(r)}
}

// Err returns the first error encountered by Next, if any.
func (r *Reader) Err() error { return r.err }

// Next advances to the next record. It returns false at end of stream or
// on error; callers should check Err afterward to distinguish the two.
func (r *Reader) Next() (Record, bool) {
	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if ms, ok := parseStartTimeHeader(line); ok {
				r.startTimeMs = ms
				r.startSeen = true
			}
			continue
		}
		if strings.HasPrefix(line, `"StartTimestamp"`) || strings.HasPrefix(line, `"Tag"`) {
			continue
		}
		rec, err := r.parseRecord(line)
		if err != nil {
			r.err = err
			return Record{}, false
		}
		return rec, true
	}
	if err := r.sc.Err(); err != nil {
		r.err = errs.Wrap(err)
	}
	return Record{}, false
}

func (r *Reader) parseRecord(line string) (Record, error) {
	var tag string
	if strings.HasPrefix(line, "Tag=") {
		rest := line[len("Tag="):]
		idx := strings.IndexByte(rest, ',')
		if idx < 0 {
			return Record{}, errs.Errorf("%w: malformed tagged record: %q", hdr.ErrCodecCorrupt, line)
		}
		tag = rest[:idx]
		line = rest[idx+1:]
	}

	fields := strings.SplitN(line, ",", 4)
	if len(fields) != 4 {
		return Record{}, errs.Errorf("%w: record has %d fields, want 4: %q", hdr.ErrCodecCorrupt, len(fields), line)
	}
	start, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Record{}, errs.Errorf("%w: bad StartTimestamp %q: %v", hdr.ErrCodecCorrupt, fields[0], err)
	}
	length, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Record{}, errs.Errorf("%w: bad Interval_Length %q: %v", hdr.ErrCodecCorrupt, fields[1], err)
	}

	payload, err := base64.StdEncoding.DecodeString(fields[3])
	if err != nil {
		return Record{}, errs.Errorf("%w: bad base64 payload: %v", hdr.ErrCodecCorrupt, err)
	}
	h, err := hdrcodec.DecodeCompressed(payload)
	if err != nil {
		return Record{}, err
	}

	startMs := r.startTimeMs + int64(start*1000.0+0.5)
	h.SetStartTimestamp(startMs)
	h.SetEndTimestamp(startMs + int64(length*1000.0+0.5))
	if tag != "" {
		h.SetTag(tag)
	}
	return Record{Tag: tag, Histogram: h}, nil
}

// parseStartTimeHeader extracts the epoch-millisecond instant from a
// `#[StartTime: <sec>.<ms> (seconds since epoch), <iso>]` header line.
func parseStartTimeHeader(line string) (int64, bool) {
	const prefix = "#[StartTime:"
	if !strings.HasPrefix(line, prefix) {
		return 0, false
	}
	rest := strings.TrimSpace(line[len(prefix):])
	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		return 0, false
	}
	secs, err := strconv.ParseFloat(rest[:end], 64)
	if err != nil {
		return 0, false
	}
	return int64(secs*1000.0 + 0.5), true
}
