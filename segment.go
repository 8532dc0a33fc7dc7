package segbuf

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap"
)

// errSegmentFull signals the dispatcher to allocate a new segment; it never
// escapes to a caller of Dispatcher.Write.
var errSegmentFull = errors.New("segbuf: segment full")

// Segment is a fixed-capacity slab of slots plus the metadata needed to
// arbitrate one designated writer against many independent readers.
//
// Write frontier w is an atomic counter rather than a plain int guarded by
// writerMu: a reader loads w without taking any lock, and needs the
// writer's store to w to be visible the moment it is observed, not merely
// eventually. This mirrors modules/pdump/controlplane/ring.go's workerArea,
// which exposes writeIdx/readIdx as atomics read across goroutines without a
// shared mutex.
type Segment[T any] struct {
	capacity int
	slots    []T

	w       atomic.Int64
	inWrite atomic.Bool
	readers atomic.Int32 // count of reads currently in flight (advisory in_read)

	writerMu sync.Mutex // exclusive writer-entry mutex

	rosterMu        sync.Mutex // serializes roster bookkeeping (reader cursors live on Participant)
	roster          []*Participant
	designatedWriter *Participant

	log *zap.SugaredLogger
}

func newSegment[T any](capacity int, log *zap.SugaredLogger) (seg *Segment[T], err error) {
	if capacity <= 0 {
		return nil, ErrAllocationFailed
	}
	defer func() {
		if r := recover(); r != nil {
			seg, err = nil, ErrAllocationFailed
		}
	}()
	return &Segment[T]{
		capacity: capacity,
		slots:    make([]T, capacity),
		log:      log,
	}, nil
}

// Size returns the segment's fixed capacity N.
func (s *Segment[T]) Size() int { return s.capacity }

// Frontier returns the current write frontier w.
func (s *Segment[T]) Frontier() int { return int(s.w.Load()) }

// FootprintBytes reports the segment's slab size for diagnostics.
func (s *Segment[T]) FootprintBytes() datasize.ByteSize {
	var zero T
	return datasize.ByteSize(s.capacity) * datasize.ByteSize(unsafe.Sizeof(zero))
}

// InUse reports in_write || in_read, the pruner's liveness signal.
func (s *Segment[T]) InUse() bool {
	return s.inWrite.Load() || s.readers.Load() > 0
}

// Writable reports whether the segment can still accept writes: not
// currently being written to, and the frontier has spare capacity.
func (s *Segment[T]) Writable() bool {
	w := s.w.Load()
	return !s.inWrite.Load() && (w == 0 || w < int64(s.capacity))
}

// claim adds participant to the roster if not already present and
// increments its refcount. The first WRITE-capable participant claimed
// becomes the segment's designated writer; later non-writer claims never
// gain write access.
func (s *Segment[T]) claim(p *Participant) error {
	if p == nil {
		return ErrInvalidParticipant
	}
	if p.ID() == 0 {
		return ErrUnassignedID
	}

	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()

	for _, existing := range s.roster {
		if sameParticipant(existing, p) {
			return ErrAlreadyClaimed
		}
	}

	s.roster = append(s.roster, p)
	p.refCount.Add(1)
	if s.designatedWriter == nil && p.AccessLevel().CanWrite() {
		s.designatedWriter = p
	}
	if s.log != nil {
		s.log.Debugw("segment: claimed participant", "participant_id", p.ID(), "roster_size", len(s.roster))
	}
	return nil
}

// release waits for any in-flight operation bound to p to quiesce, then
// removes p from the roster and decrements its refcount. If the refcount
// reaches zero the participant is destroyed.
func (s *Segment[T]) release(p *Participant) error {
	if p == nil {
		return ErrInvalidParticipant
	}

	// Join p's execution slot: wait for its current op to finish before
	// tearing down its roster membership.
	p.execMu.Lock()
	p.execMu.Unlock()

	s.rosterMu.Lock()
	idx := -1
	for i, existing := range s.roster {
		if sameParticipant(existing, p) {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.rosterMu.Unlock()
		return ErrNoAssociatedSegment
	}
	s.roster = append(s.roster[:idx], s.roster[idx+1:]...)
	if s.designatedWriter != nil && sameParticipant(s.designatedWriter, p) {
		s.designatedWriter = nil
	}
	remaining := p.refCount.Add(-1)
	s.rosterMu.Unlock()

	if remaining == 0 {
		p.markReleased()
	}
	return nil
}

// RosterContains reports whether p currently claims this segment.
func (s *Segment[T]) RosterContains(p *Participant) bool {
	if p == nil {
		return false
	}
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	for _, existing := range s.roster {
		if sameParticipant(existing, p) {
			return true
		}
	}
	return false
}

// snapshotRoster returns a copy of the current roster, safe to iterate
// without holding rosterMu.
func (s *Segment[T]) snapshotRoster() []*Participant {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	out := make([]*Participant, len(s.roster))
	copy(out, s.roster)
	return out
}

// rosterEmpty reports whether the roster has no claimants, the pruner's
// deletion precondition alongside InUse() == false.
func (s *Segment[T]) rosterEmpty() bool {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	return len(s.roster) == 0
}

// sameParticipant compares participants by id.
func sameParticipant(a, b *Participant) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID()
}

// write appends item at the current frontier under the writer-entry mutex,
// enforcing that only the designated writer may advance w. Returns
// ErrInsufficientCapability if p is not the designated writer, or
// errSegmentFull if the segment is full — callers are expected to call
// Writable() first and allocate a new segment instead.
func (s *Segment[T]) write(item T, p *Participant) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	if s.designatedWriter == nil || !sameParticipant(s.designatedWriter, p) {
		return ErrInsufficientCapability
	}

	w := s.w.Load()
	if w >= int64(s.capacity) {
		return errSegmentFull
	}

	s.inWrite.Store(true)
	s.slots[w] = item
	s.w.Store(w + 1)
	s.inWrite.Store(false)
	return nil
}

// readAt returns the slot at idx if it has been published (idx < w),
// bracketed by the readers counter so the pruner can see a read in flight.
func (s *Segment[T]) readAt(idx int) (T, bool) {
	s.readers.Add(1)
	defer s.readers.Add(-1)

	var zero T
	if int64(idx) >= s.w.Load() {
		return zero, false
	}
	return s.slots[idx], true
}
