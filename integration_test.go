package segbuf

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegrationSingleThreadSpansMultipleSegments writes enough items to
// force several segment rollovers, then reads them all back in order on the
// same goroutine.
func TestIntegrationSingleThreadSpansMultipleSegments(t *testing.T) {
	const count = 10035
	reader, writer := MakePair("r", "w")
	d := New[int](WithDefaultCapacity(1024), WithPruneInterval(time.Hour))
	defer d.Shutdown()

	for i := 1; i <= count; i++ {
		require.NoError(t, d.Write(i, writer))
	}
	assert.GreaterOrEqual(t, d.Stats().SegmentCount, 10)

	for i := 1; i <= count; i++ {
		got, err := d.Read(reader)
		require.NoError(t, err)
		require.Equal(t, i, got)
	}

	_, err := d.Read(reader)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

// TestIntegrationConcurrentWriterAndReader drives a producer goroutine and a
// consumer goroutine concurrently over a large stream and checks the
// consumer observes every item in submission order.
func TestIntegrationConcurrentWriterAndReader(t *testing.T) {
	const count = 200_000
	reader, writer := MakePair("r", "w")
	d := New[int](WithDefaultCapacity(2048), WithPruneInterval(time.Hour))
	defer d.Shutdown()

	writeErrs := make(chan error, 1)
	go func() {
		for i := 1; i <= count; i++ {
			if err := d.Write(i, writer); err != nil {
				writeErrs <- err
				return
			}
		}
		writeErrs <- nil
	}()

	for i := 1; i <= count; i++ {
		var got int
		var err error
		for {
			got, err = d.Read(reader)
			if err == nil {
				break
			}
			require.ErrorIs(t, err, ErrEndOfStream)
			time.Sleep(time.Microsecond)
		}
		require.Equal(t, i, got)
	}
	require.NoError(t, <-writeErrs)
}

// TestIntegrationOneWriterManyReaders checks that every independent reader
// observes the exact same sequence regardless of relative pace.
func TestIntegrationOneWriterManyReaders(t *testing.T) {
	const count = 5000
	const numReaders = 8

	writer := Make(CapabilityWrite, "w")
	d, err := NewWith[int](256, writer, WithPruneInterval(time.Hour))
	require.NoError(t, err)
	defer d.Shutdown()

	readers := make([]*Participant, numReaders)
	for i := range readers {
		readers[i] = Make(CapabilityRead, "")
	}

	for i := 1; i <= count; i++ {
		require.NoError(t, d.Write(i, writer))
	}

	var wg sync.WaitGroup
	results := make([][]int, numReaders)
	readErrs := make(chan error, numReaders)
	for i, r := range readers {
		wg.Add(1)
		go func(idx int, reader *Participant) {
			defer wg.Done()
			got := make([]int, 0, count)
			for {
				v, err := d.Read(reader)
				if err != nil {
					if err != ErrEndOfStream {
						readErrs <- err
					}
					break
				}
				got = append(got, v)
			}
			results[idx] = got
		}(i, r)
	}
	wg.Wait()
	close(readErrs)
	for err := range readErrs {
		require.NoError(t, err)
	}

	want := make([]int, count)
	for i := range want {
		want[i] = i + 1
	}
	for i, got := range results {
		assert.Equal(t, want, got, "reader %d diverged from the written sequence", i)
	}
}

// TestIntegrationPruningDrainsReleasedSegments checks that once both ends of
// a pipe release their claims, the background pruner empties the segment
// list within a small multiple of the prune interval.
func TestIntegrationPruningDrainsReleasedSegments(t *testing.T) {
	const pruneInterval = 10 * time.Millisecond
	reader, writer := MakePair("r", "w")
	d := New[int](WithDefaultCapacity(16), WithPruneInterval(pruneInterval))
	defer d.Shutdown()

	for i := 1; i <= 200; i++ {
		require.NoError(t, d.Write(i, writer))
	}
	require.Greater(t, d.Stats().SegmentCount, 1)

	for _, seg := range d.segments.snapshot() {
		_ = seg.release(writer)
	}
	for {
		_, err := d.Read(reader)
		if err != nil {
			require.ErrorIs(t, err, ErrEndOfStream)
			break
		}
	}
	for _, seg := range d.segments.snapshot() {
		_ = seg.release(reader)
	}

	require.Eventually(t, func() bool {
		return d.Stats().SegmentCount == 0
	}, 20*pruneInterval, pruneInterval)
}

// TestIntegrationCapabilityEnforcement checks that a READ-only participant
// attempting to write is rejected and leaves the segment list untouched.
func TestIntegrationCapabilityEnforcement(t *testing.T) {
	d := New[int](WithPruneInterval(time.Hour))
	defer d.Shutdown()

	readOnly := Make(CapabilityRead, "ro")
	err := d.Write(99, readOnly)
	assert.ErrorIs(t, err, ErrInsufficientCapability)
	assert.Equal(t, 0, d.Stats().SegmentCount)
	assert.Zero(t, readOnly.RefCount())
}

// TestIntegrationParticipantIDsAreUniqueUnderConcurrency spins up many
// participants concurrently and checks every assigned id is distinct and
// nonzero.
func TestIntegrationParticipantIDsAreUniqueUnderConcurrency(t *testing.T) {
	const numParticipants = 1000
	d := New[int](WithPruneInterval(time.Hour))
	defer d.Shutdown()

	ids := make([]uint64, numParticipants)
	useErrs := make(chan error, numParticipants)
	var wg sync.WaitGroup
	for i := 0; i < numParticipants; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			p := Make(CapabilityReadWrite, "")
			_, err := Use(d, p, func() (struct{}, error) { return struct{}{}, nil })
			if err != nil {
				useErrs <- err
				return
			}
			ids[idx] = p.ID()
		}(i)
	}
	wg.Wait()
	close(useErrs)
	for err := range useErrs {
		require.NoError(t, err)
	}

	seen := make(map[uint64]struct{}, numParticipants)
	for _, id := range ids {
		require.NotZero(t, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate participant id %d", id)
		seen[id] = struct{}{}
	}
}
