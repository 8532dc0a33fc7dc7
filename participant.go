package segbuf

import (
	"sync"
	"sync/atomic"
)

// Capability is a participant's frozen access level.
type Capability uint8

const (
	// CapabilityNone grants neither read nor write access.
	CapabilityNone Capability = iota
	// CapabilityRead grants read access only.
	CapabilityRead
	// CapabilityWrite grants write access only.
	CapabilityWrite
	// CapabilityReadWrite grants both read and write access.
	CapabilityReadWrite
)

// CanRead reports whether the capability includes READ.
func (c Capability) CanRead() bool {
	return c == CapabilityRead || c == CapabilityReadWrite
}

// CanWrite reports whether the capability includes WRITE.
func (c Capability) CanWrite() bool {
	return c == CapabilityWrite || c == CapabilityReadWrite
}

// String implements fmt.Stringer for diagnostics.
func (c Capability) String() string {
	switch c {
	case CapabilityRead:
		return "READ"
	case CapabilityWrite:
		return "WRITE"
	case CapabilityReadWrite:
		return "READ_WRITE"
	default:
		return "NONE"
	}
}

// Participant is an addressable handle that reads or writes through a
// Dispatcher. Capability is frozen at construction; the id is assigned
// lazily by the dispatcher on first use.
//
// Participants never hold a pointer to a Segment: a
// reader's position is a (segmentCursor, slotCursor) pair interpreted against
// the dispatcher's re-derived, roster-filtered view of its segments. This
// keeps the participant/segment reference graph a DAG instead of a cycle.
type Participant struct {
	name       string
	capability Capability

	assignMu sync.Mutex
	id       uint64

	// execMu is the execution slot: at most one in-flight write/read bound
	// to this participant at a time. Use does not take it.
	execMu sync.Mutex

	partnerMu sync.Mutex
	partner   *Participant
	paired    bool

	cursorMu      sync.Mutex
	segmentCursor int
	slotCursor    int

	refCount atomic.Int64
	released atomic.Bool
}

// Make constructs a new participant with the given capability and optional
// display name. The id is unassigned (0) until the participant is first
// handed to a Dispatcher.
func Make(capability Capability, name string) *Participant {
	return &Participant{capability: capability, name: name}
}

// MakePair constructs two participants cross-linked as the two ends of a
// pipe: a READ-capable reader and a WRITE-capable writer. Pairing is
// advisory metadata only — the runtime does not couple their progress.
func MakePair(readerName, writerName string) (reader, writer *Participant) {
	reader = Make(CapabilityRead, readerName)
	writer = Make(CapabilityWrite, writerName)
	reader.partner, writer.partner = writer, reader
	reader.paired, writer.paired = true, true
	return reader, writer
}

// ID returns the participant's id, or 0 if unassigned.
func (p *Participant) ID() uint64 {
	p.assignMu.Lock()
	defer p.assignMu.Unlock()
	return p.id
}

// Name returns the participant's optional display name.
func (p *Participant) Name() string { return p.name }

// AccessLevel returns the participant's frozen capability.
func (p *Participant) AccessLevel() Capability { return p.capability }

// RefCount returns the number of segment rosters this participant currently
// appears in.
func (p *Participant) RefCount() int64 { return p.refCount.Load() }

// Partner returns the participant's paired counterpart, if any.
func (p *Participant) Partner() *Participant {
	p.partnerMu.Lock()
	defer p.partnerMu.Unlock()
	return p.partner
}

// Paired reports whether this participant was constructed via MakePair.
func (p *Participant) Paired() bool {
	p.partnerMu.Lock()
	defer p.partnerMu.Unlock()
	return p.paired
}

// Released reports whether the participant's refcount has dropped to zero
// and it has been torn down.
func (p *Participant) Released() bool { return p.released.Load() }

// assignID assigns an id from gen if the participant does not already have
// one. It is idempotent: concurrent callers racing to assign the same
// participant's id will only one of them actually draw from gen.
func (p *Participant) assignID(gen *idGenerator) error {
	p.assignMu.Lock()
	defer p.assignMu.Unlock()
	if p.id != 0 {
		return nil
	}
	id, err := gen.next()
	if err != nil {
		return err
	}
	p.id = id
	return nil
}

// markReleased clears cursor state once refCount has reached zero, so a
// released participant cannot be mistaken for one still mid-stream.
func (p *Participant) markReleased() {
	p.released.Store(true)
	p.cursorMu.Lock()
	p.segmentCursor, p.slotCursor = 0, 0
	p.cursorMu.Unlock()
}
