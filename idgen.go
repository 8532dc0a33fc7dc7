package segbuf

import "sync/atomic"

// idGenerator issues monotonically increasing, dispatcher-scoped participant
// ids. The counter is scoped to a Dispatcher rather than a process-global,
// so participant pairs minted against different dispatchers never collide
// (and never contend on a shared global counter).
type idGenerator struct {
	counter atomic.Uint64
}

// next returns the next unique, nonzero id, or ErrCapacityExhausted if the
// counter would wrap around to zero.
func (g *idGenerator) next() (uint64, error) {
	id := g.counter.Add(1)
	if id == 0 {
		// Wrapped all the way around a uint64; roll back so a caller that
		// retries keeps seeing the same exhausted state instead of quietly
		// resuming at 1.
		g.counter.Store(^uint64(0))
		return 0, ErrCapacityExhausted
	}
	return id, nil
}
