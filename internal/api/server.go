// Package api exposes the ingest pipeline over HTTP.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mapadevsports/uwbv2/internal/db"
	"github.com/mapadevsports/uwbv2/internal/ingest"
	"github.com/mapadevsports/uwbv2/internal/observability"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server wires the HTTP surface to the orchestrator and the database.
type Server struct {
	db      *db.DB
	orch    *ingest.Orchestrator
	metrics *observability.IngestCollector
}

// NewServer creates the HTTP server. metrics may be nil, in which case no
// /metrics route is registered.
func NewServer(database *db.DB, orch *ingest.Orchestrator, metrics *observability.IngestCollector) *Server {
	return &Server{
		db:      database,
		orch:    orch,
		metrics: metrics,
	}
}

// ServeMux returns the route table for the service.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/dados-crus/ingest", s.ingestRawHandler)
	mux.HandleFunc("/processamento-crus/ingest", s.processHandler)
	mux.HandleFunc("/api/readings", s.listReadingsHandler)
	mux.HandleFunc("/api/positions", s.listPositionsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
