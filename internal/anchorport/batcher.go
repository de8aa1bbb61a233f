package anchorport

import (
	"context"
	"errors"
	"time"

	"github.com/mapadevsports/uwbv2/internal/ingest"
	"github.com/mapadevsports/uwbv2/internal/monitoring"
)

// Batcher collects telemetry lines from a port and submits them to the
// raw-ingest path on a flush interval or when the batch fills up.
type Batcher struct {
	orch       *ingest.Orchestrator
	flushEvery time.Duration
	maxBatch   int
}

// NewBatcher creates a batcher over orch. Non-positive flushEvery defaults to
// one second, non-positive maxBatch to 64 lines.
func NewBatcher(orch *ingest.Orchestrator, flushEvery time.Duration, maxBatch int) *Batcher {
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	if maxBatch <= 0 {
		maxBatch = 64
	}
	return &Batcher{orch: orch, flushEvery: flushEvery, maxBatch: maxBatch}
}

// Run consumes events until the channel closes or the context is cancelled,
// flushing pending lines as batches. Row-level problems surface only in the
// logged summaries; storage faults are logged and the pending batch dropped.
func (b *Batcher) Run(ctx context.Context, events <-chan string) error {
	ticker := time.NewTicker(b.flushEvery)
	defer ticker.Stop()

	var pending []string
	for {
		select {
		case <-ctx.Done():
			b.flush(context.Background(), pending)
			return ctx.Err()
		case line, ok := <-events:
			if !ok {
				b.flush(ctx, pending)
				return nil
			}
			pending = append(pending, line)
			if len(pending) >= b.maxBatch {
				b.flush(ctx, pending)
				pending = nil
			}
		case <-ticker.C:
			b.flush(ctx, pending)
			pending = nil
		}
	}
}

func (b *Batcher) flush(ctx context.Context, lines []string) {
	if len(lines) == 0 {
		return
	}
	sum, err := b.orch.IngestRaw(ctx, lines)
	if err != nil {
		if !errors.Is(err, ingest.ErrEmptyBatch) {
			monitoring.Logf("anchorport: flush of %d lines failed: %v", len(lines), err)
		}
		return
	}
	monitoring.Logf("anchorport: saved=%d invalid=%d calibration=%d cmd0=%d forwarded=%v",
		sum.Saved, sum.SkippedInvalid, sum.SkippedCalibration, sum.SkippedCommandZero, sum.ForwardedOK)
}
