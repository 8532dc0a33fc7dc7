package segbuf

import (
	"time"

	"go.uber.org/zap"
)

const (
	// defaultSegmentCapacity is the default number of slots per segment.
	defaultSegmentCapacity = 1024

	// defaultPruneInterval is the default period between pruner sweeps.
	defaultPruneInterval = 2000 * time.Millisecond

	// pruneRegionSize is how many segments a single pruner worker owns per
	// pass; the worker count is ceil(len(segments)/pruneRegionSize).
	pruneRegionSize = 64
)

type dispatcherOptions struct {
	defaultCapacity int
	pruneInterval   time.Duration
	log             *zap.SugaredLogger
}

func newDispatcherOptions() *dispatcherOptions {
	return &dispatcherOptions{
		defaultCapacity: defaultSegmentCapacity,
		pruneInterval:   defaultPruneInterval,
		log:             zap.NewNop().Sugar(),
	}
}

// Option configures a Dispatcher at construction time.
//
// Mirrors coordinator.CoordinatorOption's functional-options shape
// (coordinator/coordinator.go: newOptions/WithLog).
type Option func(*dispatcherOptions)

// WithDefaultCapacity sets the slot count for segments the dispatcher
// allocates on demand. Default 1024.
func WithDefaultCapacity(n int) Option {
	return func(o *dispatcherOptions) {
		if n > 0 {
			o.defaultCapacity = n
		}
	}
}

// WithPruneInterval sets the period between pruner sweeps. Default 2000ms.
func WithPruneInterval(d time.Duration) Option {
	return func(o *dispatcherOptions) {
		if d > 0 {
			o.pruneInterval = d
		}
	}
}

// WithLogger sets the dispatcher's structured logger. Default is a no-op
// logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *dispatcherOptions) {
		if log != nil {
			o.log = log
		}
	}
}
