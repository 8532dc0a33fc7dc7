package harness

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seglab/segbuf"
)

// Run wires a dispatcher with a reader/writer pair and drives a
// producer/consumer demo, writing cfg.WriteCount ints and reading them back.
// It exists only to exercise the core dispatcher end to end, the way
// coordinator.Coordinator.Run exercises the coordinator package.
func Run(ctx context.Context, cfg *Config, log *zap.SugaredLogger) error {
	reader, writer := segbuf.MakePair(
		"demo-reader", "demo-writer",
	)

	d := segbuf.New[int](
		segbuf.WithDefaultCapacity(cfg.DefaultCapacity),
		segbuf.WithPruneInterval(cfg.PruneInterval),
		segbuf.WithLogger(log),
	)
	defer d.Shutdown()

	for i := 1; i <= cfg.WriteCount; i++ {
		if err := d.Write(i, writer); err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}
	}
	log.Infow("harness: wrote items", "count", cfg.WriteCount, "segments", d.Stats().SegmentCount)

	for i := 1; i <= cfg.WriteCount; i++ {
		got, err := d.Read(reader)
		if err != nil {
			return fmt.Errorf("read %d: %w", i, err)
		}
		if got != i {
			return fmt.Errorf("read out of order: want %d, got %d", i, got)
		}
	}
	log.Infow("harness: read back items in order", "count", cfg.WriteCount)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
