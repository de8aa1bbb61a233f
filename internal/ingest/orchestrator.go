// Package ingest sequences the telemetry pipeline: parse, calibrate, session
// update, eligibility, solve, motion delta, persist, forward.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mapadevsports/uwbv2/internal/db"
	"github.com/mapadevsports/uwbv2/internal/forward"
	"github.com/mapadevsports/uwbv2/internal/motion"
	"github.com/mapadevsports/uwbv2/internal/observability"
	"github.com/mapadevsports/uwbv2/internal/position"
	"github.com/mapadevsports/uwbv2/internal/report"
	"github.com/mapadevsports/uwbv2/internal/telemetry"
	"github.com/mapadevsports/uwbv2/internal/timeutil"
)

// ErrEmptyBatch rejects a request carrying no usable lines. It is distinct
// from a successful batch that saved zero rows.
var ErrEmptyBatch = errors.New("ingest: empty batch")

// BatchSummary aggregates the per-row outcomes of one batch. Row-level
// problems never fail a batch; they only show up here.
type BatchSummary struct {
	Saved                   int     `json:"saved"`
	SkippedInvalid          int     `json:"skipped_invalid"`
	SkippedCalibration      int     `json:"skipped_calibration"`
	SkippedCommandZero      int     `json:"skipped_command_zero"`
	SkippedUnsolvable       int     `json:"skipped_unsolvable"`
	SessionsOpenedOrUpdated int     `json:"sessions_opened_or_updated"`
	SessionsClosed          int     `json:"sessions_closed"`
	ForwardedOK             bool    `json:"forwarded_ok"`
	Offset                  float64 `json:"offset"`
}

// Config carries the orchestrator's tunables and optional collaborators.
type Config struct {
	// Offset is the calibration offset subtracted from raw values.
	Offset float64
	// CalibrationTags lists reserved tag ids excluded from storage,
	// positioning and forwarding.
	CalibrationTags []string
	// Forwarder receives committed raw batches; nil disables forwarding.
	Forwarder forward.Forwarder
	// Metrics is optional; nil runs without Prometheus counters.
	Metrics *observability.IngestCollector
	// Clock is optional; nil uses the real clock.
	Clock timeutil.Clock
}

// Orchestrator runs batches through the pipeline. Each batch persists its
// eligible rows in a single transaction; a skipped row never aborts the
// batch, a storage fault aborts it whole.
type Orchestrator struct {
	db        *db.DB
	sessions  *report.Machine
	cache     *motion.Cache
	forwarder forward.Forwarder
	metrics   *observability.IngestCollector
	clock     timeutil.Clock
	offset    float64
	calTags   telemetry.CalibrationSet
}

// New creates an orchestrator over database. The motion cache is owned by the
// orchestrator and lives for the process: restarting resets all odometry.
func New(database *db.DB, cfg Config) *Orchestrator {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	fw := cfg.Forwarder
	if fw == nil {
		fw = forward.Disabled{}
	}
	return &Orchestrator{
		db:        database,
		sessions:  report.NewMachine(database, clock),
		cache:     motion.NewCache(),
		forwarder: fw,
		metrics:   cfg.Metrics,
		clock:     clock,
		offset:    cfg.Offset,
		calTags:   telemetry.NewCalibrationSet(cfg.CalibrationTags...),
	}
}

// Offset returns the active calibration offset.
func (o *Orchestrator) Offset() float64 { return o.offset }

// IngestRaw runs the raw-ingest path: eligible calibrated readings are stored
// in one transaction and the committed batch is offered downstream. The
// forwarding outcome is a flag in the summary, never an error.
func (o *Orchestrator) IngestRaw(ctx context.Context, lines []string) (*BatchSummary, error) {
	lines = usableLines(lines)
	if len(lines) == 0 {
		return nil, ErrEmptyBatch
	}

	sum := &BatchSummary{Offset: o.offset}
	var rows []*db.Reading
	for _, line := range lines {
		c, eligible, err := o.screen(ctx, line, sum)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}
		rows = append(rows, &db.Reading{
			TagNumber: c.TagID,
			Distances: c.Distances,
			KX:        c.SpanX,
			KY:        c.SpanY,
			CreatedAt: o.clock.Now(),
		})
	}

	if err := o.db.InsertReadings(ctx, rows); err != nil {
		return nil, fmt.Errorf("store readings batch: %w", err)
	}
	sum.Saved = len(rows)
	o.metrics.CountRows(observability.OutcomeSaved, len(rows))

	if len(rows) > 0 {
		sum.ForwardedOK = o.forwarder.Forward(ctx, rows)
		o.metrics.CountForward(sum.ForwardedOK)
	}
	return sum, nil
}

// ProcessBatch runs the processing path: eligible readings are solved into
// positions, joined with their motion delta, and stored in one transaction.
func (o *Orchestrator) ProcessBatch(ctx context.Context, lines []string) (*BatchSummary, error) {
	lines = usableLines(lines)
	if len(lines) == 0 {
		return nil, ErrEmptyBatch
	}

	sum := &BatchSummary{Offset: o.offset}
	var rows []*db.Position
	for _, line := range lines {
		c, eligible, err := o.screen(ctx, line, sum)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}

		x, y, ok := position.Solve(position.CornerAnchors(c))
		if !ok {
			sum.SkippedUnsolvable++
			o.metrics.CountRow(observability.OutcomeUnsolvable)
			continue
		}

		now := o.clock.Now()
		delta := o.cache.Update(c.TagID, x, y, now)
		rows = append(rows, &db.Position{
			TagNumber:         c.TagID,
			X:                 x,
			Y:                 y,
			DistanceTravelled: delta.Distance,
			ElapsedSeconds:    delta.ElapsedSeconds,
			CreatedAt:         now,
		})
	}

	if err := o.db.InsertPositions(ctx, rows); err != nil {
		return nil, fmt.Errorf("store positions batch: %w", err)
	}
	sum.Saved = len(rows)
	o.metrics.CountRows(observability.OutcomeSaved, len(rows))
	return sum, nil
}

// screen runs the shared front of both paths on one line: parse, normalize,
// session update, eligibility. It reports whether the reading may be
// persisted. Session mutation and storage eligibility are independent: a
// line can update a session and still be dropped from storage.
func (o *Orchestrator) screen(ctx context.Context, line string, sum *BatchSummary) (*telemetry.CalibratedReading, bool, error) {
	raw, err := telemetry.ParseLine(line)
	if err != nil {
		sum.SkippedInvalid++
		o.metrics.CountRow(observability.OutcomeInvalid)
		return nil, false, nil
	}

	c := telemetry.Normalize(raw, o.offset, o.calTags)

	effect, err := o.sessions.Apply(ctx, raw.Command, raw.SessionUser, c.SpanX, c.SpanY)
	if err != nil {
		return nil, false, fmt.Errorf("session update: %w", err)
	}
	switch effect {
	case report.EffectOpenedOrUpdated:
		sum.SessionsOpenedOrUpdated++
		o.metrics.CountSession("opened_or_updated")
	case report.EffectClosed:
		sum.SessionsClosed++
		o.metrics.CountSession("closed")
	}

	if c.IsCalibrationTag {
		sum.SkippedCalibration++
		o.metrics.CountRow(observability.OutcomeCalibration)
		return nil, false, nil
	}
	if raw.Command == report.CmdDiscard {
		sum.SkippedCommandZero++
		o.metrics.CountRow(observability.OutcomeCommandZero)
		return nil, false, nil
	}
	return c, true, nil
}

// usableLines drops blank lines, preserving input order.
func usableLines(lines []string) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
