package segbuf

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// pruner is the background actor that periodically sweeps the segment list
// and releases segments with an empty roster and InUse() == false.
//
// The per-pass fan-out over contiguous segment slices uses errgroup, grounded
// in modules/pdump/controlplane/ring.go's errgroup.WithContext fan-out over
// per-worker ring areas.
type pruner[T any] struct {
	d        *Dispatcher[T]
	interval time.Duration
	log      *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}
}

func newPruner[T any](d *Dispatcher[T], interval time.Duration, log *zap.SugaredLogger) *pruner[T] {
	return &pruner[T]{d: d, interval: interval, log: log}
}

func (pr *pruner[T]) start() {
	ctx, cancel := context.WithCancel(context.Background())
	pr.cancel = cancel
	pr.done = make(chan struct{})

	go func() {
		defer close(pr.done)
		ticker := time.NewTicker(pr.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pr.sweep(ctx); err != nil {
					pr.log.Warnw("pruner: sweep pass completed with errors", "error", err)
				}
			}
		}
	}()
}

func (pr *pruner[T]) stop() {
	if pr.cancel == nil {
		return
	}
	pr.cancel()
	<-pr.done
}

// workerCount returns the pruner's parallelism for a given segment-list
// length. Any monotone function of length satisfies the contract; this
// one assigns each worker a contiguous region of up to pruneRegionSize
// segments.
func workerCount(length int) int {
	if length == 0 {
		return 0
	}
	n := (length + pruneRegionSize - 1) / pruneRegionSize
	if n < 1 {
		n = 1
	}
	return n
}

// PruneOnce runs a single synchronous sweep pass and returns any per-segment
// errors accumulated during it (via go-multierror), instead of only logging
// them the way the background loop does. Intended for tests and the
// diagnostics harness.
func (d *Dispatcher[T]) PruneOnce() error {
	return d.pruner.sweep(context.Background())
}

// sweep snapshots the segment list, adapts worker parallelism to its length,
// scans each worker's contiguous slice for eligible segments, and erases
// them. Per-segment/per-worker errors are aggregated and returned; the sweep
// never aborts because of them.
func (pr *pruner[T]) sweep(ctx context.Context) error {
	segs := pr.d.segments.snapshot()
	n := len(segs)
	workers := workerCount(n)
	if workers == 0 {
		return nil
	}

	regionSize := (n + workers - 1) / workers
	eligible := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * regionSize
		end := min(start+regionSize, n)
		if start >= end {
			continue
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				seg := segs[i]
				if seg.rosterEmpty() && !seg.InUse() {
					eligible[i] = true
				}
			}
			return nil
		})
	}

	var result *multierror.Error
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}

	toDrop := make(map[*Segment[T]]struct{}, n)
	for i, drop := range eligible {
		if drop {
			toDrop[segs[i]] = struct{}{}
		}
	}

	removed := pr.d.segments.eraseEligible(func(seg *Segment[T]) bool {
		_, drop := toDrop[seg]
		return !drop
	})

	if len(removed) > 0 && pr.log != nil {
		pr.log.Debugw("pruner: removed segments", "count", len(removed))
	}

	return result.ErrorOrNil()
}
