// Package observability registers and exposes Prometheus metrics for the
// ingest pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row outcome labels for IngestCollector.Rows.
const (
	OutcomeSaved       = "saved"
	OutcomeInvalid     = "skipped_invalid"
	OutcomeCalibration = "skipped_calibration"
	OutcomeCommandZero = "skipped_command_zero"
	OutcomeUnsolvable  = "skipped_unsolvable"
)

// IngestCollector bundles the Prometheus metrics of the ingest pipeline.
type IngestCollector struct {
	gatherer prometheus.Gatherer

	Rows     *prometheus.CounterVec
	Sessions *prometheus.CounterVec
	Forwards *prometheus.CounterVec
}

// NewIngestCollector registers the ingest metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewIngestCollector(reg prometheus.Registerer) (*IngestCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uwb_ingest_rows_total",
		Help: "Telemetry rows handled by the ingest pipeline, labeled by outcome.",
	}, []string{"outcome"})
	if err := reg.Register(rows); err != nil {
		return nil, err
	}

	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uwb_report_sessions_total",
		Help: "Report session transitions, labeled by action (opened_or_updated, closed).",
	}, []string{"action"})
	if err := reg.Register(sessions); err != nil {
		return nil, err
	}

	forwards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uwb_forward_batches_total",
		Help: "Downstream forwarding attempts, labeled by result (ok, failed).",
	}, []string{"result"})
	if err := reg.Register(forwards); err != nil {
		return nil, err
	}

	return &IngestCollector{
		gatherer: gatherer,
		Rows:     rows,
		Sessions: sessions,
		Forwards: forwards,
	}, nil
}

// Handler returns the HTTP handler serving the /metrics exposition.
func (c *IngestCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// CountRow increments the row counter for an outcome. Safe on a nil
// collector so the orchestrator can run without metrics wired.
func (c *IngestCollector) CountRow(outcome string) {
	if c == nil {
		return
	}
	c.Rows.WithLabelValues(outcome).Inc()
}

// CountRows adds n to the row counter for an outcome.
func (c *IngestCollector) CountRows(outcome string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.Rows.WithLabelValues(outcome).Add(float64(n))
}

// CountSession increments the session transition counter.
func (c *IngestCollector) CountSession(action string) {
	if c == nil {
		return
	}
	c.Sessions.WithLabelValues(action).Inc()
}

// CountForward increments the forwarding counter.
func (c *IngestCollector) CountForward(ok bool) {
	if c == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	c.Forwards.WithLabelValues(result).Inc()
}
