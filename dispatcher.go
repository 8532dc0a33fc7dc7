package segbuf

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Dispatcher is the façade that routes write/read/has_next/use operations to
// the right segment for a given participant, creates segments on demand, and
// enforces capability checks. It is the unique owner of the segment list.
//
// Construction mirrors coordinator.NewCoordinator(cfg, options ...
// CoordinatorOption): functional options plus a *zap.SugaredLogger field.
type Dispatcher[T any] struct {
	segments segmentList[T]
	ids      idGenerator

	defaultCapacity int
	log             *zap.SugaredLogger

	pruner *pruner[T]
	closed atomic.Bool

	// assignMu serializes "ensure participant has an id and a default
	// segment" so two goroutines racing use() on the same fresh participant
	// don't both allocate a first segment for it.
	assignMu sync.Mutex
}

// New creates a Dispatcher with no initial segments.
func New[T any](opts ...Option) *Dispatcher[T] {
	o := newDispatcherOptions()
	for _, opt := range opts {
		opt(o)
	}

	d := &Dispatcher[T]{
		defaultCapacity: o.defaultCapacity,
		log:             o.log,
	}
	d.pruner = newPruner(d, o.pruneInterval, o.log)
	d.pruner.start()
	return d
}

// NewWith creates a Dispatcher and immediately allocates one segment of
// initialCapacity claimed by p.
func NewWith[T any](initialCapacity int, p *Participant, opts ...Option) (*Dispatcher[T], error) {
	return NewWithN[T](initialCapacity, p, 1, opts...)
}

// NewWithN creates a Dispatcher and immediately allocates nSegments segments
// of initialCapacity, each claimed by p. Useful for pre-warming a buffer
// before the producer starts writing.
func NewWithN[T any](initialCapacity int, p *Participant, nSegments int, opts ...Option) (*Dispatcher[T], error) {
	if p == nil {
		return nil, ErrInvalidParticipant
	}
	d := New[T](opts...)
	if err := p.assignID(&d.ids); err != nil {
		return nil, err
	}
	for i := 0; i < nSegments; i++ {
		if _, err := d.newClaimedSegment(initialCapacity, p); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dispatcher[T]) newClaimedSegment(capacity int, p *Participant) (*Segment[T], error) {
	seg, err := newSegment[T](capacity, d.log)
	if err != nil {
		return nil, err
	}
	if err := seg.claim(p); err != nil {
		return nil, err
	}
	d.segments.append(seg)
	return seg, nil
}

// ensure assigns p an id if it lacks one and guarantees p has at least one
// claimed segment, creating a default-capacity one if needed. This is the
// only thing use()/Use guarantee before invoking the caller's operation: an
// explicit operation surface plus this single guarantee, rather than
// arbitrary dynamic dispatch into internal mutexes.
func (d *Dispatcher[T]) ensure(p *Participant) error {
	if p == nil {
		return ErrInvalidParticipant
	}
	d.assignMu.Lock()
	defer d.assignMu.Unlock()

	if err := p.assignID(&d.ids); err != nil {
		return err
	}
	if len(d.segments.claimedBy(p)) == 0 {
		if _, err := d.newClaimedSegment(d.defaultCapacity, p); err != nil {
			return err
		}
	}
	return nil
}

// Use assigns p an id if needed, ensures it owns at least one segment, then
// invokes op with no implicit locking beyond that guarantee. It is the
// generalized `use(participant, op, args) -> R` entry point, expressed as a
// free function because Go methods cannot introduce their own type
// parameter.
func Use[T, R any](d *Dispatcher[T], p *Participant, op func() (R, error)) (R, error) {
	var zero R
	if p == nil {
		return zero, ErrInvalidParticipant
	}
	if err := d.ensure(p); err != nil {
		return zero, err
	}
	return op()
}

// Write submits item through p. Writes by a single participant are observed
// by readers in submission order; writes by different participants are
// interleaved only at segment granularity.
func (d *Dispatcher[T]) Write(item T, p *Participant) error {
	if p == nil {
		return ErrInvalidParticipant
	}
	if !p.AccessLevel().CanWrite() {
		return ErrInsufficientCapability
	}
	if d.closed.Load() {
		return ErrClosed
	}

	// Serialize against this participant's previous in-flight op.
	p.execMu.Lock()
	defer p.execMu.Unlock()

	if err := d.ensure(p); err != nil {
		return err
	}

	claimed := d.segments.claimedBy(p)
	if len(claimed) == 0 {
		// ensure() just guaranteed at least one; this cannot happen, but
		// keep the explicit failure mode rather than indexing a nil slice.
		return ErrNoAssociatedSegment
	}
	tail := claimed[len(claimed)-1]

	if tail.Writable() {
		if err := tail.write(item, p); err == nil {
			return nil
		} else if err != errSegmentFull {
			return err
		}
		// fallthrough: segment filled between the Writable() check and the
		// write attempt; allocate a new one below.
	}

	next, err := d.newClaimedSegment(d.defaultCapacity, p)
	if err != nil {
		return err
	}
	return next.write(item, p)
}

// Read returns the next item in p's logical stream, advancing its cursor.
func (d *Dispatcher[T]) Read(p *Participant) (T, error) {
	var zero T
	if p == nil {
		return zero, ErrInvalidParticipant
	}
	if !p.AccessLevel().CanRead() {
		return zero, ErrInsufficientCapability
	}
	if d.closed.Load() {
		return zero, ErrClosed
	}

	p.execMu.Lock()
	defer p.execMu.Unlock()

	if err := d.ensure(p); err != nil {
		return zero, err
	}

	claimed := d.segments.claimedBy(p)
	if len(claimed) == 0 {
		return zero, ErrNoAssociatedSegment
	}

	p.cursorMu.Lock()
	defer p.cursorMu.Unlock()

	for {
		if p.segmentCursor >= len(claimed) {
			return zero, ErrEndOfStream
		}
		seg := claimed[p.segmentCursor]
		if item, ok := seg.readAt(p.slotCursor); ok {
			p.slotCursor++
			return item, nil
		}
		if p.segmentCursor+1 < len(claimed) {
			p.segmentCursor++
			p.slotCursor = 0
			continue
		}
		return zero, ErrEndOfStream
	}
}

// HasNext reports whether a subsequent Read would currently succeed, without
// mutating p's cursor.
func (d *Dispatcher[T]) HasNext(p *Participant) bool {
	if p == nil || !p.AccessLevel().CanRead() {
		return false
	}

	claimed := d.segments.claimedBy(p)
	if len(claimed) == 0 {
		return false
	}

	p.cursorMu.Lock()
	segIdx, slotIdx := p.segmentCursor, p.slotCursor
	p.cursorMu.Unlock()

	for i := segIdx; i < len(claimed); i++ {
		seg := claimed[i]
		start := 0
		if i == segIdx {
			start = slotIdx
		}
		if start < seg.Frontier() {
			return true
		}
	}
	return false
}

// BufferHookForWrite is an interface-only sketch for a future zero-copy
// kernel hand-off hook. It is intentionally unimplemented: callers should
// type-assert or compare against ErrHookUnimplemented rather than rely on
// a fallback behavior.
func (d *Dispatcher[T]) BufferHookForWrite(p *Participant) (view []T, remaining int, err error) {
	return nil, 0, ErrHookUnimplemented
}

// Stats reports coarse diagnostics for tests and the demo harness.
type Stats struct {
	SegmentCount int
}

// Stats returns a snapshot of dispatcher-wide diagnostics.
func (d *Dispatcher[T]) Stats() Stats {
	return Stats{SegmentCount: d.segments.len()}
}

// Shutdown stops the background pruner and releases every participant from
// every segment, then empties the segment list. It is the only global stop;
// no in-progress operation observes a cancellation signal.
func (d *Dispatcher[T]) Shutdown() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.pruner.stop()

	removed := d.segments.eraseEligible(func(*Segment[T]) bool { return false })
	for _, seg := range removed {
		for _, p := range seg.snapshotRoster() {
			_ = seg.release(p)
		}
	}
}
