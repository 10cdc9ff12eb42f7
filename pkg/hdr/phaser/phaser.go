// Package phaser implements a writer-reader phaser: a synchronization
// primitive that lets many writers enter and exit short critical sections
// wait-free, while a single reader at a time can wait for quiescence of
// every writer that was in-flight before it started waiting.
//
// It underlies pkg/hdr/concurrent's dual active/inactive counts arrays:
// writers record into the active array without ever blocking on a reader,
// and a reader wanting a stable snapshot of the active array flips which
// array is active, then waits only for the writers that were already
// in-flight at that instant.
package phaser

import (
	"sync"
	"sync/atomic"
	"time"
)

// defaultYieldSleep is the pause between FlipPhase spin iterations when the
// caller does not override it via FlipPhase's variadic argument.
const defaultYieldSleep = 500 * time.Microsecond

// Token is returned by WriterEnter and must be passed back to WriterExit
// unmodified. Odd reports which phase was current at WriterEnter: callers
// that alternate a resource between two instances per phase (as
// pkg/hdr/concurrent does with its active/inactive counts arrays) must
// pick the instance from Odd, not from re-reading current phase state,
// since the phase may flip between WriterEnter returning and the
// resource being selected.
type Token struct {
	Odd bool
}

// Phaser coordinates wait-free writers against a single reader. The zero
// value is ready to use.
//
// Quiescence for a phase is tracked with one entry counter and one exit
// counter per phase (evenStartEpoch/evenEndEpoch, oddStartEpoch/
// oddEndEpoch), both cumulative over the Phaser's whole lifetime rather
// than reset on each flip. A single shared, flip-reset start epoch (as
// the canonical WriterReaderPhaser uses, keyed by sign) would need the
// phase flag and the epoch reset to happen as one atomic step; splitting
// that into a separate bool store and a separate counter reset opens a
// window where a writer reads the new phase but still bumps the epoch
// being reset for the old phase's snapshot, so quiescence never
// converges. Two independent cumulative counters per phase sidestep the
// problem entirely: a phase's finished writers total (its end epoch) is
// compared against that same phase's all-time entries (its start epoch)
// captured at flip time, and since flips only ever wait for the phase
// being vacated, every entry counted in that snapshot belongs to a round
// that has already fully completed or is currently draining, never one
// that could still be misattributed by a racing flip.
type Phaser struct {
	evenStartEpoch, evenEndEpoch int64
	oddStartEpoch, oddEndEpoch   int64

	// oddPhase is true when new writers should target the odd epoch pair.
	// Only the reader, under readerMu and only inside FlipPhase, ever
	// flips it.
	oddPhase atomic.Bool

	readerMu sync.Mutex
}

// New returns a ready-to-use Phaser. Provided for symmetry with the rest
// of the package's constructors; the zero value works identically.
func New() *Phaser {
	return &Phaser{}
}

// WriterEnter marks entry into a writer critical section. Wait-free.
func (p *Phaser) WriterEnter() Token {
	odd := p.oddPhase.Load()
	if odd {
		atomic.AddInt64(&p.oddStartEpoch, 1)
	} else {
		atomic.AddInt64(&p.evenStartEpoch, 1)
	}
	return Token{Odd: odd}
}

// WriterExit marks exit from the critical section identified by tok.
// Wait-free.
func (p *Phaser) WriterExit(tok Token) {
	if tok.Odd {
		atomic.AddInt64(&p.oddEndEpoch, 1)
	} else {
		atomic.AddInt64(&p.evenEndEpoch, 1)
	}
}

// ReaderLock excludes other readers. Writers never contend for this lock.
func (p *Phaser) ReaderLock() { p.readerMu.Lock() }

// ReaderUnlock releases the reader lock acquired by ReaderLock.
func (p *Phaser) ReaderUnlock() { p.readerMu.Unlock() }

// FlipPhase must be called while holding ReaderLock. It flips which
// end-epoch new writers target, then spins until every writer that was
// in-flight before the flip has exited: the previous phase's end-epoch
// equals the startEpoch snapshot taken at flip time. Between spin
// iterations it sleeps for yieldSleep (default ~500us) if given, else
// defaultYieldSleep.
//
// FlipPhase returns the Odd value that WriterEnter reported to writers
// before the flip. After FlipPhase returns, every writer holding a Token
// with that Odd value has exited its critical section, so a resource
// keyed by that Odd value is safe to read without further coordination.
func (p *Phaser) FlipPhase(yieldSleep ...time.Duration) bool {
	sleep := defaultYieldSleep
	if len(yieldSleep) > 0 {
		sleep = yieldSleep[0]
	}

	wasOdd := p.oddPhase.Load()

	prevStartEpoch, prevEndEpoch := &p.evenStartEpoch, &p.evenEndEpoch
	if wasOdd {
		prevStartEpoch, prevEndEpoch = &p.oddStartEpoch, &p.oddEndEpoch
	}
	startSnapshot := atomic.LoadInt64(prevStartEpoch)

	p.oddPhase.Store(!wasOdd)

	for atomic.LoadInt64(prevEndEpoch) != startSnapshot {
		time.Sleep(sleep)
	}
	return wasOdd
}
