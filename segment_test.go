package segbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestParticipant(t *testing.T, gen *idGenerator, capability Capability) *Participant {
	t.Helper()
	p := Make(capability, "")
	require.NoError(t, p.assignID(gen))
	return p
}

func TestSegmentClaimRelease(t *testing.T) {
	gen := &idGenerator{}
	seg, err := newSegment[int](4, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	writer := newTestParticipant(t, gen, CapabilityWrite)
	reader := newTestParticipant(t, gen, CapabilityRead)

	require.NoError(t, seg.claim(writer))
	assert.ErrorIs(t, seg.claim(writer), ErrAlreadyClaimed)
	assert.EqualValues(t, 1, writer.RefCount())

	require.NoError(t, seg.claim(reader))
	assert.True(t, seg.RosterContains(writer))
	assert.True(t, seg.RosterContains(reader))
	assert.False(t, seg.rosterEmpty())

	require.NoError(t, seg.release(writer))
	assert.False(t, seg.RosterContains(writer))
	assert.EqualValues(t, 0, writer.RefCount())
	assert.True(t, writer.Released())

	require.NoError(t, seg.release(reader))
	assert.True(t, seg.rosterEmpty())
}

func TestSegmentClaimRequiresAssignedID(t *testing.T) {
	seg, err := newSegment[int](4, nil)
	require.NoError(t, err)

	unassigned := Make(CapabilityWrite, "")
	assert.ErrorIs(t, seg.claim(unassigned), ErrUnassignedID)
}

func TestSegmentDesignatedWriterOnly(t *testing.T) {
	gen := &idGenerator{}
	seg, err := newSegment[int](4, nil)
	require.NoError(t, err)

	writer := newTestParticipant(t, gen, CapabilityWrite)
	other := newTestParticipant(t, gen, CapabilityReadWrite)

	require.NoError(t, seg.claim(writer))
	require.NoError(t, seg.claim(other))

	require.NoError(t, seg.write(1, writer))
	assert.ErrorIs(t, seg.write(2, other), ErrInsufficientCapability,
		"a non-designated writer claimed later must not gain write access")
}

func TestSegmentWriteFillsFrontier(t *testing.T) {
	gen := &idGenerator{}
	seg, err := newSegment[int](2, nil)
	require.NoError(t, err)
	writer := newTestParticipant(t, gen, CapabilityWrite)
	require.NoError(t, seg.claim(writer))

	require.NoError(t, seg.write(10, writer))
	require.NoError(t, seg.write(20, writer))
	assert.ErrorIs(t, seg.write(30, writer), errSegmentFull)
	assert.False(t, seg.Writable())

	v, ok := seg.readAt(0)
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok = seg.readAt(1)
	assert.True(t, ok)
	assert.Equal(t, 20, v)

	_, ok = seg.readAt(2)
	assert.False(t, ok, "reading at or past the frontier must fail")
}

func TestSegmentAllocationFailsOnNonPositiveCapacity(t *testing.T) {
	_, err := newSegment[int](0, nil)
	assert.ErrorIs(t, err, ErrAllocationFailed)

	_, err = newSegment[int](-1, nil)
	assert.ErrorIs(t, err, ErrAllocationFailed)
}
