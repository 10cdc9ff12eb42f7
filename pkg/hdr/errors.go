package hdr

import "github.com/zeebo/errs/v2"

// Error kinds recorded per spec section 7. Each is a sentinel created with
// errs.Tag so callers can still errors.Is against it after a call site
// wraps it with additional context via errs.Errorf("%w: ...", ErrXxx, ...).
var (
	// ErrValueOutOfRange: a recorded value exceeds highest or is negative.
	ErrValueOutOfRange = errs.Tag("value-out-of-range")

	// ErrCounterOverflow: a fixed-width counter would exceed its positive
	// range. HasOverflowed also reports this post-hoc.
	ErrCounterOverflow = errs.Tag("counter-overflow")

	// ErrGeometryMismatch: Add/Subtract invoked with a source histogram
	// whose highest exceeds this instance's.
	ErrGeometryMismatch = errs.Tag("geometry-mismatch")

	// ErrUnderflow: Subtract would produce a negative counter.
	ErrUnderflow = errs.Tag("underflow")

	// ErrCodecCorrupt: cookie mismatch, truncated payload, or a varint
	// stream inconsistent with header geometry.
	ErrCodecCorrupt = errs.Tag("codec-corrupt")

	// ErrArgumentInvalid: construction parameters violate spec section 6's
	// bounds.
	ErrArgumentInvalid = errs.Tag("argument-invalid")
)
