package segbuf

import "errors"

// Errors returned by the dispatcher and its collaborators. Callers should
// compare with errors.Is rather than on error string content.
var (
	// ErrInvalidParticipant is returned when an operation is given a nil
	// participant. A participant whose id has never been assigned is given
	// one by the dispatcher rather than rejected with this error.
	ErrInvalidParticipant = errors.New("segbuf: invalid participant")

	// ErrUnassignedID is returned by segment-level operations that require
	// a participant id and are handed an unassigned (id == 0) participant.
	ErrUnassignedID = errors.New("segbuf: participant has no assigned id")

	// ErrInsufficientCapability is returned when write is attempted without
	// WRITE capability, or read without READ capability.
	ErrInsufficientCapability = errors.New("segbuf: insufficient capability")

	// ErrAlreadyClaimed is returned when a participant is claimed onto a
	// segment roster it is already a member of.
	ErrAlreadyClaimed = errors.New("segbuf: participant already claimed")

	// ErrNoAssociatedSegment is returned when an operation requires at
	// least one segment claimed by the participant and there is none.
	ErrNoAssociatedSegment = errors.New("segbuf: participant has no associated segment")

	// ErrEndOfStream is returned when a reader has consumed everything
	// currently visible to it.
	ErrEndOfStream = errors.New("segbuf: end of stream")

	// ErrCapacityExhausted is returned when the dispatcher's id space rolls
	// over. The participant is left with id 0 and cannot be used.
	ErrCapacityExhausted = errors.New("segbuf: id space exhausted")

	// ErrAllocationFailed is returned when a new segment's slab cannot be
	// allocated.
	ErrAllocationFailed = errors.New("segbuf: segment allocation failed")

	// ErrHookUnimplemented is returned by BufferHookForWrite. The hook is
	// an interface-only sketch and is intentionally left unimplemented.
	ErrHookUnimplemented = errors.New("segbuf: buffer hook for write is not implemented")

	// ErrClosed is returned by operations attempted after Shutdown.
	ErrClosed = errors.New("segbuf: dispatcher is shut down")
)
